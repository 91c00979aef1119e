// Package syncer drains the pending-operation queue once connectivity
// returns, replaying deferred writes against the server in enqueue order.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/wareline/wareline/internal/connectivity"
	"github.com/wareline/wareline/internal/remote"
	"github.com/wareline/wareline/internal/store"
)

// Report is the aggregate outcome of one drain pass. Individual replay
// failures are swallowed (retry count bumped, operation left queued), but
// the aggregate is always surfaced.
type Report struct {
	// Synced operations were confirmed by the server and removed.
	Synced int
	// StillPending operations failed or were blocked behind a failure
	// for the same target and remain queued.
	StillPending int
	// Skipped operations exceeded the retry cutoff and were not
	// attempted. They stay queued for manual inspection.
	Skipped int
}

// Reconciler replays the queue. It processes operations sequentially -
// per-target ordering must hold, and parallel replay would exceed the
// server's concurrent-write assumptions.
type Reconciler struct {
	store  *store.Store
	remote remote.Transport
	signal *connectivity.Signal

	// maxRetries is the abandonment cutoff: operations at or past it are
	// skipped, not deleted. Zero means no cutoff. The value is owned by
	// configuration, not by replay logic.
	maxRetries int
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithMaxRetries sets the skip cutoff for repeatedly failing operations.
func WithMaxRetries(n int) Option {
	return func(r *Reconciler) { r.maxRetries = n }
}

// New creates a reconciler.
func New(st *store.Store, rt remote.Transport, sig *connectivity.Signal, opts ...Option) *Reconciler {
	r := &Reconciler{store: st, remote: rt, signal: sig}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Drain replays every queued operation in seq order.
//
// On success an operation is deleted; the local store is left untouched
// because it already reflects the optimistic write. On failure the retry
// count is bumped and every later operation touching any of the same
// tags is blocked for this pass, preserving per-target ordering while
// letting independent targets proceed.
//
// Cancelling the context stops the drain between operations: processed
// operations are gone, unprocessed ones untouched.
func (r *Reconciler) Drain(ctx context.Context) (Report, error) {
	var rep Report

	ops, err := r.store.Operations(ctx)
	if err != nil {
		return rep, fmt.Errorf("load pending operations: %w", err)
	}

	blocked := make(map[string]bool)
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			rep.StillPending += remaining(ops, op.Seq)
			return rep, err
		}

		if r.isBlocked(blocked, op) {
			rep.StillPending++
			continue
		}
		if r.maxRetries > 0 && op.RetryCount >= r.maxRetries {
			rep.Skipped++
			slog.Warn("operation past retry cutoff, skipping",
				"seq", op.Seq, "kind", op.Kind, "retries", op.RetryCount)
			continue
		}

		// Bookkeeping runs on a detached context: once the server has
		// confirmed a replay, the queue row must go even if the drain
		// was cancelled mid-call, or the operation would replay twice.
		if err := r.replay(ctx, op); err != nil {
			rep.StillPending++
			r.block(blocked, op)
			if bumpErr := r.store.BumpRetry(context.WithoutCancel(ctx), op.Seq); bumpErr != nil {
				slog.Error("retry bump failed", "seq", op.Seq, "error", bumpErr)
			}
			slog.Warn("replay failed, operation stays queued",
				"seq", op.Seq, "kind", op.Kind, "target", op.Target, "error", err)
			continue
		}

		if err := r.store.DeleteOperation(context.WithoutCancel(ctx), op.Seq); err != nil {
			return rep, fmt.Errorf("remove replayed operation %d: %w", op.Seq, err)
		}
		rep.Synced++
		slog.Info("operation replayed", "seq", op.Seq, "kind", op.Kind, "target", op.Target)
	}

	slog.Info("drain complete",
		"synced", rep.Synced, "still_pending", rep.StillPending, "skipped", rep.Skipped)
	return rep, nil
}

// Run blocks until ctx is cancelled, draining the queue every time the
// connectivity signal reports an offline→online edge.
func (r *Reconciler) Run(ctx context.Context) error {
	became := r.signal.BecameOnline()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-became:
			if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
				slog.Error("drain after reconnect failed", "error", err)
			}
		}
	}
}

// replay reconstructs and performs the remote call an operation deferred.
func (r *Reconciler) replay(ctx context.Context, op store.Operation) error {
	switch op.Kind {
	case store.OpSetStatus, store.OpClear, store.OpAdminUpdate:
		var p remote.UpdatePayload
		if err := json.Unmarshal(op.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		_, err := r.remote.ApplyUpdate(ctx, p)
		return err

	case store.OpBulkCreate, store.OpBulkUpdate:
		var p remote.BulkPayload
		if err := json.Unmarshal(op.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return r.remote.ApplyBulkUpdate(ctx, p)

	default:
		return fmt.Errorf("unknown operation kind %q", op.Kind)
	}
}

// isBlocked reports whether any tag the operation touches sits behind an
// earlier failure in this pass.
func (r *Reconciler) isBlocked(blocked map[string]bool, op store.Operation) bool {
	if blocked[op.Target] {
		return true
	}
	for _, tag := range op.Targets {
		if blocked[tag] {
			return true
		}
	}
	return false
}

// block marks the operation's target and every covered tag, so a failed
// batch also blocks later single-basket operations on its members.
func (r *Reconciler) block(blocked map[string]bool, op store.Operation) {
	blocked[op.Target] = true
	for _, tag := range op.Targets {
		blocked[tag] = true
	}
}

// remaining counts operations at or after seq, for cancellation reports.
func remaining(ops []store.Operation, seq int64) int {
	n := 0
	for _, op := range ops {
		if op.Seq >= seq {
			n++
		}
	}
	return n
}
