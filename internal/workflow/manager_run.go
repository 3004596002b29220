package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"caseflow/internal/logging"
	"caseflow/internal/services"
)

func (m *Manager) runLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		claimed, err := m.RunCycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.Error("cycle failed", logging.Error(err))
			if !sleepCtx(ctx, m.errorRetry) {
				return
			}
			continue
		}
		if claimed == 0 {
			if !sleepCtx(ctx, m.pollInterval) {
				return
			}
		}
	}
}

// RunCycle runs every stage once and reports how many records were claimed
// across the cycle. Zero means the pipeline is idle. Also used directly by
// the one-shot CLI mode.
func (m *Manager) RunCycle(ctx context.Context) (int, error) {
	total := 0
	for _, handler := range m.stages {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		cycleCtx := services.WithRequestID(ctx, uuid.NewString())
		cycleCtx = services.WithStage(cycleCtx, handler.Name())

		claimed, err := handler.RunOnce(cycleCtx, m.cfg.Workflow.BatchSize)
		if err != nil {
			// Store-level problem; the loop backs off rather than spinning.
			return total, err
		}
		total += claimed
	}
	return total, nil
}

func (m *Manager) reclaimLoop(ctx context.Context) {
	interval := time.Duration(m.cfg.Workflow.HeartbeatInterval) * time.Second
	timeout := time.Duration(m.cfg.Workflow.HeartbeatTimeout) * time.Second
	if interval <= 0 || timeout <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reclaimed, err := m.store.ReclaimStaleProcessing(ctx, time.Now().Add(-timeout))
			if err != nil {
				if ctx.Err() == nil {
					m.logger.Error("reclaim stale processing failed", logging.Error(err))
				}
				continue
			}
			if reclaimed > 0 {
				m.logger.Warn("reclaimed stale claims", logging.Int64("cases", reclaimed))
			}
		}
	}
}

// sleepCtx waits for d or until ctx is done; reports false on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
