package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/store"
)

func TestWrapTagsMarkerAndDetail(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(ErrBlobWrite, "imaging", "put object", "uploading asset", cause)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBlobWrite)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "imaging: put object: uploading asset")
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := Wrap(nil, "captioning", "", "", nil)
	assert.ErrorIs(t, err, ErrTransient)
}

func TestFailureStatusMapping(t *testing.T) {
	cases := []struct {
		marker error
		want   store.Status
	}{
		{ErrValidation, store.StatusBadPayload},
		{ErrConfiguration, store.StatusBadPayload},
		{ErrNotFound, store.StatusNoContent},
		{ErrTransient, store.StatusPending},
		{ErrTimeout, store.StatusPending},
		{ErrBlobWrite, store.StatusPending},
		{ErrCaptionService, store.StatusPending},
		{ErrConversion, store.StatusPending},
		{ErrDatasetCommit, store.StatusInternalError},
	}
	for _, tc := range cases {
		err := Wrap(tc.marker, "stage", "op", "msg", nil)
		assert.Equal(t, tc.want, FailureStatus(err), "marker %v", tc.marker)
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(Wrap(ErrBlobWrite, "imaging", "", "", nil)))
	assert.False(t, IsRetryable(Wrap(ErrValidation, "imaging", "", "", nil)))
}
