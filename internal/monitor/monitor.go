// Package monitor periodically reports pipeline progress from the status
// store.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"caseflow/internal/logging"
	"caseflow/internal/store"
)

// Reporter receives each progress snapshot. The default reporter logs it.
type Reporter func(store.Snapshot)

// Monitor polls aggregate progress on a fixed interval.
type Monitor struct {
	store    *store.Store
	logger   *slog.Logger
	interval time.Duration
	report   Reporter

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures optional Monitor behavior.
type Option func(*Monitor)

// WithReporter replaces the default log-based reporter.
func WithReporter(report Reporter) Option {
	return func(m *Monitor) {
		m.report = report
	}
}

// New builds a monitor polling on the given interval.
func New(st *store.Store, interval time.Duration, logger *slog.Logger, opts ...Option) *Monitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	m := &Monitor{
		store:    st,
		logger:   logging.WithComponent(logger, "monitor"),
		interval: interval,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.report == nil {
		m.report = m.logSnapshot
	}
	return m
}

// Start launches the polling loop. Idempotent while running.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.loop(runCtx)
	}()
}

// Stop cancels the loop and waits for it to exit.
func (m *Monitor) Stop() {
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
}

// Poll takes one snapshot and reports it.
func (m *Monitor) Poll(ctx context.Context) (store.Snapshot, error) {
	snapshot, err := m.store.ProgressSnapshot(ctx)
	if err != nil {
		return store.Snapshot{}, err
	}
	m.report(snapshot)
	return snapshot, nil
}

func (m *Monitor) loop(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Poll(ctx); err != nil && ctx.Err() == nil {
				m.logger.Error("progress poll failed", logging.Error(err))
			}
		}
	}
}

func (m *Monitor) logSnapshot(snapshot store.Snapshot) {
	m.logger.Info("pipeline progress",
		logging.Int("total", snapshot.Total),
		logging.Int("pending", snapshot.Pending),
		logging.Int("processing", snapshot.Processing),
		logging.Int("completed", snapshot.Completed),
		logging.Int("failed", snapshot.Failed),
		logging.Int("assets_done", snapshot.AssetsDone),
		logging.Int("assets_expected", snapshot.AssetsExpected),
		logging.Float64("ratio", snapshot.CompletionRatio()))
}
