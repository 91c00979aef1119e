package syncer

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/wareline/wareline/internal/connectivity"
)

// Scheduler retries the queue on a cron cadence, catching operations
// whose first replay failed while the device stayed online (the
// edge-triggered drain only fires on reconnect).
type Scheduler struct {
	cron   *cron.Cron
	rec    *Reconciler
	signal *connectivity.Signal
}

// NewScheduler wires a cron entry with the given spec (e.g. "@every 5m").
func NewScheduler(spec string, rec *Reconciler, sig *connectivity.Signal) (*Scheduler, error) {
	s := &Scheduler{cron: cron.New(), rec: rec, signal: sig}
	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

// Start launches the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and returns a context that completes when any
// running sweep finishes.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// sweep drains the queue if there is anything to do and we are online.
func (s *Scheduler) sweep() {
	if !s.signal.Online() {
		return
	}
	ctx := context.Background()
	pending, err := s.rec.store.PendingCount(ctx)
	if err != nil {
		slog.Error("scheduled sweep count failed", "error", err)
		return
	}
	if pending == 0 {
		return
	}
	if _, err := s.rec.Drain(ctx); err != nil {
		slog.Error("scheduled sweep failed", "error", err)
	}
}
