package stage

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithHeartbeatBeatsWhileRunning(t *testing.T) {
	var beats atomic.Int64
	beat := func(context.Context) error {
		beats.Add(1)
		return nil
	}
	err := WithHeartbeat(context.Background(), 5*time.Millisecond, nil, beat, func(context.Context) error {
		time.Sleep(40 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)
	assert.Greater(t, beats.Load(), int64(2))

	// No beats after fn returns.
	settled := beats.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, settled, beats.Load())
}

func TestWithHeartbeatPropagatesError(t *testing.T) {
	wantErr := errors.New("boom")
	err := WithHeartbeat(context.Background(), time.Millisecond, nil, func(context.Context) error { return nil },
		func(context.Context) error { return wantErr })
	assert.ErrorIs(t, err, wantErr)
}

func TestWithHeartbeatZeroIntervalRunsDirectly(t *testing.T) {
	ran := false
	err := WithHeartbeat(context.Background(), 0, nil, func(context.Context) error {
		t.Fatal("beat should not run")
		return nil
	}, func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}
