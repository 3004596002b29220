package logging

import (
	"context"
	"log/slog"

	"caseflow/internal/services"
)

// Shared structured log field names.
const (
	FieldComponent = "component"
	FieldCaseID    = "case_id"
	FieldAssetID   = "asset_id"
	FieldStage     = "stage"
	FieldRequestID = "request_id"
	FieldStatus    = "status"
	FieldError     = "error"
)

// ContextFields extracts correlation attributes stored on the context.
func ContextFields(ctx context.Context) []Attr {
	if ctx == nil {
		return nil
	}
	var attrs []Attr
	if caseID, ok := services.CaseIDFrom(ctx); ok {
		attrs = append(attrs, String(FieldCaseID, caseID))
	}
	if stage, ok := services.StageFrom(ctx); ok {
		attrs = append(attrs, String(FieldStage, stage))
	}
	if requestID, ok := services.RequestIDFrom(ctx); ok {
		attrs = append(attrs, String(FieldRequestID, requestID))
	}
	return attrs
}

// WithContext returns a logger enriched with any correlation fields on ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
