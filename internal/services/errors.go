package services

import (
	"errors"
	"fmt"
	"strings"

	"caseflow/internal/store"
)

var (
	ErrConversion     = errors.New("conversion error")
	ErrBlobWrite      = errors.New("blob write error")
	ErrDatasetCommit  = errors.New("dataset commit error")
	ErrCaptionService = errors.New("caption service error")
	ErrValidation     = errors.New("validation error")
	ErrConfiguration  = errors.New("configuration error")
	ErrNotFound       = errors.New("not found")
	ErrTimeout        = errors.New("timeout")
	ErrTransient      = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureStatus maps a stage error to the status code that should be persisted
// after the stage fails. Transient markers map to pending so the next claim
// cycle retries the work; the rest are terminal until operator intervention.
func FailureStatus(err error) store.Status {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration):
		return store.StatusBadPayload
	case errors.Is(err, ErrNotFound):
		return store.StatusNoContent
	case errors.Is(err, ErrTransient), errors.Is(err, ErrTimeout),
		errors.Is(err, ErrBlobWrite), errors.Is(err, ErrCaptionService),
		errors.Is(err, ErrConversion):
		return store.StatusPending
	default:
		return store.StatusInternalError
	}
}

// IsRetryable reports whether the failure should release the claim for a
// later attempt instead of parking the record on a terminal code.
func IsRetryable(err error) bool {
	return FailureStatus(err) == store.StatusPending
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
