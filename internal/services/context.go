package services

import "context"

type contextKey string

const (
	caseIDKey    contextKey = "case_id"
	stageKey     contextKey = "stage"
	requestIDKey contextKey = "request_id"
)

// WithCaseID annotates context with the public case identifier.
func WithCaseID(ctx context.Context, caseID string) context.Context {
	if caseID == "" {
		return ctx
	}
	return context.WithValue(ctx, caseIDKey, caseID)
}

// CaseIDFrom extracts the case identifier if present.
func CaseIDFrom(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(caseIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the workflow stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFrom returns the stage name if present.
func StageFrom(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFrom extracts the correlation identifier if present.
func RequestIDFrom(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
