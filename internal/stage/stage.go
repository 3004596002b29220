// Package stage defines the contract pipeline stages implement for the
// workflow manager.
package stage

import (
	"context"
	"log/slog"
	"time"
)

// Handler is one pipeline stage. RunOnce claims up to batch records, drives
// them as far as it can, and reports how many were claimed; zero means the
// stage is idle. RunOnce owns the status outcome of everything it claims:
// a claimed record always ends the call released, done, or parked on a
// failure code. The returned error signals a store-level problem the manager
// should back off from.
type Handler interface {
	Name() string
	RunOnce(ctx context.Context, batch int) (int, error)
	HealthCheck(ctx context.Context) Health
}

// Health describes whether a stage can currently do useful work.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy reports a ready stage.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy reports a stage that cannot run, with the reason.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// WithHeartbeat runs fn while calling beat on the given interval, stopping
// the beats when fn returns. Beat failures are logged and do not interrupt
// fn; a missing heartbeat only matters if it stays missing long enough for
// the reclaimer to act.
func WithHeartbeat(ctx context.Context, interval time.Duration, logger *slog.Logger, beat func(context.Context) error, fn func(context.Context) error) error {
	if interval <= 0 {
		return fn(ctx)
	}

	heartbeatCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-heartbeatCtx.Done():
				return
			case <-ticker.C:
				if err := beat(heartbeatCtx); err != nil && logger != nil {
					logger.Warn("heartbeat update failed", "error", err.Error())
				}
			}
		}
	}()

	err := fn(ctx)
	cancel()
	<-done
	return err
}
