package workflow_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/config"
	"caseflow/internal/stage"
	"caseflow/internal/testsupport"
	"caseflow/internal/workflow"
)

type scriptedStage struct {
	name    string
	runs    atomic.Int64
	claimed int
	err     error
}

func (s *scriptedStage) Name() string { return s.name }

func (s *scriptedStage) RunOnce(context.Context, int) (int, error) {
	s.runs.Add(1)
	return s.claimed, s.err
}

func (s *scriptedStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(s.name)
}

func fastConfig(t *testing.T) *config.Config {
	return testsupport.NewConfig(t, func(cfg *config.Config) {
		cfg.Workflow.PollInterval = 1
		cfg.Workflow.ErrorRetryInterval = 1
		cfg.Workflow.HeartbeatInterval = 1
		cfg.Workflow.HeartbeatTimeout = 2
	})
}

func TestStartRequiresStages(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	mgr := workflow.NewManager(fastConfig(t), st, nil, nil)
	require.Error(t, mgr.Start(context.Background()))
}

func TestStartStopLifecycle(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	first := &scriptedStage{name: "first"}
	second := &scriptedStage{name: "second"}
	mgr := workflow.NewManager(fastConfig(t), st, []stage.Handler{first, second}, nil)

	require.NoError(t, mgr.Start(context.Background()))
	assert.True(t, mgr.Running())
	require.Error(t, mgr.Start(context.Background()), "second start must be rejected")

	deadline := time.After(5 * time.Second)
	for first.runs.Load() == 0 || second.runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("stages never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}

	mgr.Stop()
	assert.False(t, mgr.Running())
	mgr.Stop()
}

func TestRunCycleSumsClaims(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	stages := []stage.Handler{
		&scriptedStage{name: "first", claimed: 2},
		&scriptedStage{name: "second", claimed: 3},
	}
	mgr := workflow.NewManager(fastConfig(t), st, stages, nil)

	claimed, err := mgr.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, claimed)
}

func TestRunCycleStopsOnStoreError(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	broken := &scriptedStage{name: "broken", err: errors.New("store unavailable")}
	after := &scriptedStage{name: "after"}
	mgr := workflow.NewManager(fastConfig(t), st, []stage.Handler{broken, after}, nil)

	_, err := mgr.RunCycle(context.Background())
	require.Error(t, err)
	assert.Zero(t, after.runs.Load(), "later stages skipped when a cycle aborts")
}

func TestHealthReportsEveryStage(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	stages := []stage.Handler{
		&scriptedStage{name: "first"},
		&scriptedStage{name: "second"},
	}
	mgr := workflow.NewManager(fastConfig(t), st, stages, nil)

	health := mgr.Health(context.Background())
	require.Len(t, health, 2)
	assert.Equal(t, "first", health[0].Name)
	assert.True(t, health[0].Ready)
	assert.Equal(t, "second", health[1].Name)
}
