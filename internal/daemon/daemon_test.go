package daemon_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/config"
	"caseflow/internal/daemon"
	"caseflow/internal/stage"
	"caseflow/internal/store"
	"caseflow/internal/testsupport"
	"caseflow/internal/workflow"
)

type idleStage struct{ name string }

func (s idleStage) Name() string { return s.name }

func (s idleStage) RunOnce(context.Context, int) (int, error) { return 0, nil }

func (s idleStage) HealthCheck(context.Context) stage.Health { return stage.Healthy(s.name) }

func newDaemon(t *testing.T, cfg *config.Config, st *store.Store) *daemon.Daemon {
	t.Helper()
	mgr := workflow.NewManager(cfg, st, []stage.Handler{idleStage{name: "imaging"}}, nil)
	d, err := daemon.New(cfg, st, mgr, nil)
	require.NoError(t, err)
	return d
}

func startDaemon(t *testing.T, cfg *config.Config, st *store.Store) *daemon.Daemon {
	t.Helper()
	d := newDaemon(t, cfg, st)
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(d.Stop)
	return d
}

func apiGet(t *testing.T, d *daemon.Daemon, path string, out any) int {
	t.Helper()
	url := fmt.Sprintf("http://%s%s", d.APIAddr(), path)
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestStartEnforcesSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t, func(cfg *config.Config) {
		cfg.Paths.APIBind = ""
	})
	st := testsupport.MustOpenStore(t)

	first := newDaemon(t, cfg, st)
	require.NoError(t, first.Start(context.Background()))
	defer first.Stop()

	second := newDaemon(t, cfg, st)
	err := second.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	first.Stop()
	require.NoError(t, second.Start(context.Background()))
	second.Stop()
}

func TestStartResetsInterruptedClaims(t *testing.T) {
	cfg := testsupport.NewConfig(t, func(cfg *config.Config) {
		cfg.Paths.APIBind = ""
	})
	st := testsupport.MustOpenStore(t)
	ctx := context.Background()

	testsupport.SeedCase(t, st, "interrupted", "<p>x</p>")
	claimed, err := st.ClaimPendingCases(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	d := startDaemon(t, cfg, st)
	defer d.Stop()

	got, err := st.GetCase(ctx, "interrupted")
	require.NoError(t, err)
	assert.Equal(t, store.StatusPending, got.ConvertStatus)
}

func TestHealthEndpoint(t *testing.T) {
	cfg := testsupport.NewConfig(t, func(cfg *config.Config) {
		cfg.Paths.APIBind = "127.0.0.1:0"
	})
	st := testsupport.MustOpenStore(t)
	d := startDaemon(t, cfg, st)
	require.NotEmpty(t, d.APIAddr())

	var health struct {
		Ready  bool `json:"ready"`
		Stages []struct {
			Name  string `json:"name"`
			Ready bool   `json:"ready"`
		} `json:"stages"`
	}
	code := apiGet(t, d, "/healthz", &health)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, health.Ready)
	require.Len(t, health.Stages, 1)
	assert.Equal(t, "imaging", health.Stages[0].Name)
}

func TestProgressEndpoint(t *testing.T) {
	cfg := testsupport.NewConfig(t, func(cfg *config.Config) {
		cfg.Paths.APIBind = "127.0.0.1:0"
	})
	st := testsupport.MustOpenStore(t)
	testsupport.SeedCase(t, st, "one", "<p>x</p>")
	testsupport.SeedCase(t, st, "two", "<p>x</p>")

	d := startDaemon(t, cfg, st)

	var progress struct {
		Total   int     `json:"total"`
		Pending int     `json:"pending"`
		Ratio   float64 `json:"completion_ratio"`
	}
	code := apiGet(t, d, "/api/progress", &progress)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, progress.Total)
	assert.Equal(t, 2, progress.Pending)
	assert.Zero(t, progress.Ratio)
}

func TestCaseEndpoint(t *testing.T) {
	cfg := testsupport.NewConfig(t, func(cfg *config.Config) {
		cfg.Paths.APIBind = "127.0.0.1:0"
	})
	st := testsupport.MustOpenStore(t)
	testsupport.SeedCase(t, st, "known-case", "<p>x</p>")

	d := startDaemon(t, cfg, st)

	var payload struct {
		Case struct {
			CaseID string `json:"CaseID"`
		} `json:"case"`
		Complete bool `json:"complete"`
	}
	code := apiGet(t, d, "/api/cases/known-case", &payload)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "known-case", payload.Case.CaseID)
	assert.False(t, payload.Complete)

	code = apiGet(t, d, "/api/cases/missing-case", nil)
	assert.Equal(t, http.StatusNotFound, code)
}
