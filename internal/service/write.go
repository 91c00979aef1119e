package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wareline/wareline/internal/basket"
	"github.com/wareline/wareline/internal/remote"
	"github.com/wareline/wareline/internal/store"
)

// ApplyUpdate performs a single-basket write.
//
// The requested transition is validated against the state machine before
// any side effect: an illegal edge returns *basket.InvalidTransitionError
// with the store and queue untouched. Online, the remote call runs
// synchronously and its applied snapshot is mirrored; a retryable remote
// failure (and the offline path) enqueues a pending operation and applies
// the update optimistically so the device reflects intent immediately.
// Terminal remote rejections are returned with nothing applied.
func (s *Service) ApplyUpdate(ctx context.Context, tag string, upd basket.Update, actor string) error {
	current, err := s.currentOrUnassigned(ctx, tag, actor)
	if err != nil {
		return err
	}

	if err := basket.ValidateTransition(current.Status, upd.Status); err != nil {
		return err
	}
	if err := basket.ValidateQuantity(upd.Quantity); err != nil {
		return err
	}

	payload := updatePayload(tag, upd, actor)

	if s.signal.Online() {
		applied, err := s.remote.ApplyUpdate(ctx, payload)
		switch {
		case err == nil:
			return s.store.PutBasket(ctx, applied)
		case remote.IsRetryable(err):
			slog.Warn("update deferred to queue", "tag", tag, "status", upd.Status, "error", err)
		default:
			return err
		}
	}

	kind := store.OpSetStatus
	if upd.Status == basket.StatusUnassigned {
		kind = store.OpClear
	}
	if err := s.enqueueSingle(ctx, kind, tag, payload); err != nil {
		return err
	}
	return s.store.PutBasket(ctx, current.Apply(upd, actor, s.now()))
}

// AdminUpdate is an administrative field correction. It validates the
// status value but deliberately not the transition edge: an administrator
// may force a basket out of any state to repair bad data.
func (s *Service) AdminUpdate(ctx context.Context, tag string, upd basket.Update, actor string) error {
	if !upd.Status.Valid() {
		return fmt.Errorf("admin update: unknown status %q", upd.Status)
	}
	if err := basket.ValidateQuantity(upd.Quantity); err != nil {
		return err
	}

	current, err := s.currentOrUnassigned(ctx, tag, actor)
	if err != nil {
		return err
	}

	payload := updatePayload(tag, upd, actor)

	if s.signal.Online() {
		applied, err := s.remote.ApplyUpdate(ctx, payload)
		switch {
		case err == nil:
			return s.store.PutBasket(ctx, applied)
		case remote.IsRetryable(err):
			slog.Warn("admin update deferred to queue", "tag", tag, "error", err)
		default:
			return err
		}
	}

	if err := s.enqueueSingle(ctx, store.OpAdminUpdate, tag, payload); err != nil {
		return err
	}
	return s.store.PutBasket(ctx, current.Apply(upd, actor, s.now()))
}

// BulkUpdate applies one update to many baskets as a single unit of
// intent: one remote call online, one pending operation offline. Every
// target's transition is validated first; any illegal edge rejects the
// whole batch before side effects.
func (s *Service) BulkUpdate(ctx context.Context, tags []string, upd basket.Update, overrides map[string]remote.ItemOverride, actor string) error {
	if len(tags) == 0 {
		return nil
	}

	if err := basket.ValidateQuantity(upd.Quantity); err != nil {
		return err
	}
	for tag, ov := range overrides {
		if err := basket.ValidateQuantity(ov.Quantity); err != nil {
			return fmt.Errorf("basket %s: %w", tag, err)
		}
	}

	currents := make([]basket.Basket, 0, len(tags))
	for _, tag := range tags {
		current, err := s.currentOrUnassigned(ctx, tag, actor)
		if err != nil {
			return err
		}
		if err := basket.ValidateTransition(current.Status, upd.Status); err != nil {
			return fmt.Errorf("basket %s: %w", tag, err)
		}
		currents = append(currents, current)
	}

	payload := remote.BulkPayload{
		Tags:       tags,
		Status:     upd.Status.String(),
		ProductRef: upd.ProductRef,
		BatchRef:   upd.BatchRef,
		Warehouse:  upd.Warehouse,
		Quantity:   upd.Quantity,
		Overrides:  overrides,
		Actor:      actor,
	}

	if s.signal.Online() {
		err := s.remote.ApplyBulkUpdate(ctx, payload)
		switch {
		case err == nil:
			return s.applyBulkLocally(ctx, currents, upd, overrides, actor)
		case remote.IsRetryable(err):
			slog.Warn("bulk update deferred to queue", "tags", len(tags), "error", err)
		default:
			return err
		}
	}

	if err := s.enqueueBulk(ctx, store.OpBulkUpdate, tags, payload); err != nil {
		return err
	}
	return s.applyBulkLocally(ctx, currents, upd, overrides, actor)
}

// BulkClear resets a set of baskets back to unassigned in one operation,
// wiping product, batch, warehouse, and quantity on each.
func (s *Service) BulkClear(ctx context.Context, tags []string, actor string) error {
	return s.BulkUpdate(ctx, tags, basket.Update{Status: basket.StatusUnassigned}, nil, actor)
}

// currentOrUnassigned loads the local snapshot, treating an absent tag as
// a fresh unassigned basket per the implicit-registration rule.
func (s *Service) currentOrUnassigned(ctx context.Context, tag, actor string) (basket.Basket, error) {
	current, err := s.store.GetBasket(ctx, tag)
	if errors.Is(err, store.ErrBasketNotFound) {
		return basket.NewUnassigned(tag, actor, s.now()), nil
	}
	if err != nil {
		return basket.Basket{}, err
	}
	return current, nil
}

func (s *Service) applyBulkLocally(ctx context.Context, currents []basket.Basket, upd basket.Update, overrides map[string]remote.ItemOverride, actor string) error {
	now := s.now()
	for _, current := range currents {
		u := upd
		if ov, ok := overrides[current.Tag]; ok {
			if ov.Quantity != nil {
				u.Quantity = ov.Quantity
			}
			if ov.BatchRef != nil {
				u.BatchRef = ov.BatchRef
			}
		}
		if err := s.store.PutBasket(ctx, current.Apply(u, actor, now)); err != nil {
			return fmt.Errorf("apply bulk update to %s: %w", current.Tag, err)
		}
	}
	return nil
}

func (s *Service) enqueueSingle(ctx context.Context, kind store.OpKind, tag string, payload remote.UpdatePayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode pending operation: %w", err)
	}
	seq, err := s.store.Enqueue(ctx, store.Operation{
		Kind:       kind,
		Target:     tag,
		Targets:    []string{tag},
		Payload:    raw,
		EnqueuedAt: s.now(),
	})
	if err != nil {
		return err
	}
	slog.Info("operation queued", "seq", seq, "kind", kind, "tag", tag)
	return nil
}

func (s *Service) enqueueBulk(ctx context.Context, kind store.OpKind, tags []string, payload remote.BulkPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode pending operation: %w", err)
	}
	marker := s.newBatchMarker()
	seq, err := s.store.Enqueue(ctx, store.Operation{
		Kind:       kind,
		Target:     marker,
		Targets:    tags,
		Payload:    raw,
		EnqueuedAt: s.now(),
	})
	if err != nil {
		return err
	}
	slog.Info("bulk operation queued", "seq", seq, "kind", kind, "batch", marker, "tags", len(tags))
	return nil
}

func updatePayload(tag string, upd basket.Update, actor string) remote.UpdatePayload {
	return remote.UpdatePayload{
		Tag:        tag,
		Status:     upd.Status.String(),
		ProductRef: upd.ProductRef,
		BatchRef:   upd.BatchRef,
		Warehouse:  upd.Warehouse,
		Quantity:   upd.Quantity,
		Actor:      actor,
	}
}
