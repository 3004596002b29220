// Package workflow coordinates pipeline stages against the status store.
// Stages are stateless; the manager supplies cadence, correlation ids,
// stale-claim recovery, and shutdown.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"caseflow/internal/config"
	"caseflow/internal/logging"
	"caseflow/internal/stage"
	"caseflow/internal/store"
)

// Manager polls registered stages in order until stopped.
type Manager struct {
	cfg    *config.Config
	store  *store.Store
	stages []stage.Handler
	logger *slog.Logger

	pollInterval time.Duration
	errorRetry   time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager constructs a workflow manager. Stage order is processing order
// within a cycle.
func NewManager(cfg *config.Config, st *store.Store, stages []stage.Handler, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:          cfg,
		store:        st,
		stages:       stages,
		logger:       logging.WithComponent(logger, "workflow"),
		pollInterval: time.Duration(cfg.Workflow.PollInterval) * time.Second,
		errorRetry:   time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
	}
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}
	if len(m.stages) == 0 {
		return errors.New("workflow stages not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		m.runLoop(runCtx)
	}()
	go func() {
		defer m.wg.Done()
		m.reclaimLoop(runCtx)
	}()

	m.logger.Info("workflow started", logging.Int("stages", len(m.stages)))
	return nil
}

// Stop terminates background processing and waits for in-flight work to
// settle on a status.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped")
}

// Running reports whether the manager loops are active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Health reports per-stage readiness.
func (m *Manager) Health(ctx context.Context) []stage.Health {
	health := make([]stage.Health, 0, len(m.stages))
	for _, handler := range m.stages {
		health = append(health, handler.HealthCheck(ctx))
	}
	return health
}
