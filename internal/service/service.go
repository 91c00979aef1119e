// Package service implements the basket operation service: the single
// entry point for basket reads and writes. It hides the online/offline
// branch from callers - every write is validated against the state
// machine, attempted remotely when online, and otherwise recorded as a
// pending operation and applied to the local store optimistically.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wareline/wareline/internal/basket"
	"github.com/wareline/wareline/internal/connectivity"
	"github.com/wareline/wareline/internal/remote"
	"github.com/wareline/wareline/internal/store"
)

var (
	// ErrNotRegistered means the server authoritatively does not know
	// the tag. Never masked by the local snapshot: absence on the server
	// is meaningful.
	ErrNotRegistered = errors.New("basket not registered on server")

	// ErrNotFoundLocal means the device is offline and has no snapshot
	// for the tag.
	ErrNotFoundLocal = errors.New("basket not found in local store")
)

// Service is the dual-path read/write engine.
type Service struct {
	store  *store.Store
	remote remote.Transport
	signal *connectivity.Signal

	// purgeRemoteDeleted controls whether a remote 404 for a locally
	// known basket purges the snapshot and its queued operations.
	purgeRemoteDeleted bool

	// now is swapped out in tests for deterministic timestamps.
	now func() time.Time

	// newBatchMarker generates targets for multi-basket operations.
	newBatchMarker func() string
}

// Option configures a Service.
type Option func(*Service)

// WithPurgeRemoteDeleted makes FetchBasket purge local state when the
// server reports a previously known basket as deleted.
func WithPurgeRemoteDeleted() Option {
	return func(s *Service) { s.purgeRemoteDeleted = true }
}

// WithClock overrides the timestamp source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBatchMarkerFunc overrides batch marker generation. Tests only.
func WithBatchMarkerFunc(fn func() string) Option {
	return func(s *Service) { s.newBatchMarker = fn }
}

// New creates the operation service.
func New(st *store.Store, rt remote.Transport, sig *connectivity.Signal, opts ...Option) *Service {
	s := &Service{
		store:  st,
		remote: rt,
		signal: sig,
		now:    time.Now,
		newBatchMarker: func() string {
			return "batch-" + uuid.Must(uuid.NewV7()).String()
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchBasket returns the basket for a tag.
//
// Online, the server copy is authoritative: it overwrites the local
// snapshot and is returned. A remote 404 is ErrNotRegistered - the local
// snapshot is not consulted, since absence on the server means something.
// Any other remote failure is returned as-is (fail closed: a flaky
// network must not present stale data as current).
//
// Offline, only the local snapshot is read; absence is ErrNotFoundLocal.
func (s *Service) FetchBasket(ctx context.Context, tag string) (basket.Basket, error) {
	if !s.signal.Online() {
		b, err := s.store.GetBasket(ctx, tag)
		if errors.Is(err, store.ErrBasketNotFound) {
			return basket.Basket{}, ErrNotFoundLocal
		}
		return b, err
	}

	b, err := s.remote.GetBasket(ctx, tag)
	if errors.Is(err, remote.ErrNotFound) {
		if s.purgeRemoteDeleted {
			s.purgeLocal(ctx, tag)
		}
		return basket.Basket{}, ErrNotRegistered
	}
	if err != nil {
		return basket.Basket{}, err
	}

	if err := s.store.PutBasket(ctx, b); err != nil {
		return basket.Basket{}, fmt.Errorf("mirror authoritative snapshot: %w", err)
	}
	return b, nil
}

// purgeLocal drops the snapshot and queued single-basket operations for a
// tag that the server no longer knows. Best effort: a failed purge leaves
// stale data behind, which the next fetch retries.
func (s *Service) purgeLocal(ctx context.Context, tag string) {
	if _, err := s.store.GetBasket(ctx, tag); errors.Is(err, store.ErrBasketNotFound) {
		return
	}
	if err := s.store.DeleteBasket(ctx, tag); err != nil {
		slog.Error("purge of remotely deleted basket failed", "tag", tag, "error", err)
		return
	}
	cancelled, err := s.store.CancelForTag(ctx, tag)
	if err != nil {
		slog.Error("cancel of queued operations failed", "tag", tag, "error", err)
		return
	}
	slog.Info("purged remotely deleted basket", "tag", tag, "cancelled_ops", cancelled)
}

// Register creates the implicit unassigned snapshots for freshly scanned
// tags. Tags already known locally are skipped, so re-scanning a basket
// is idempotent. One remote call (or one pending operation) covers the
// whole set.
func (s *Service) Register(ctx context.Context, tags []string, actor string) error {
	fresh := make([]string, 0, len(tags))
	for _, tag := range tags {
		_, err := s.store.GetBasket(ctx, tag)
		if errors.Is(err, store.ErrBasketNotFound) {
			fresh = append(fresh, tag)
			continue
		}
		if err != nil {
			return err
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	payload := remote.BulkPayload{
		Tags:   fresh,
		Status: basket.StatusUnassigned.String(),
		Actor:  actor,
	}

	if s.signal.Online() {
		err := s.remote.ApplyBulkUpdate(ctx, payload)
		switch {
		case err == nil:
			return s.mirrorUnassigned(ctx, fresh, actor)
		case remote.IsRetryable(err):
			slog.Warn("registration deferred to queue", "tags", len(fresh), "error", err)
		default:
			return err
		}
	}

	if err := s.enqueueBulk(ctx, store.OpBulkCreate, fresh, payload); err != nil {
		return err
	}
	return s.mirrorUnassigned(ctx, fresh, actor)
}

func (s *Service) mirrorUnassigned(ctx context.Context, tags []string, actor string) error {
	now := s.now()
	for _, tag := range tags {
		if err := s.store.PutBasket(ctx, basket.NewUnassigned(tag, actor, now)); err != nil {
			return fmt.Errorf("mirror registration of %s: %w", tag, err)
		}
	}
	return nil
}

// AdminDelete removes a basket: the local snapshot is dropped and queued
// single-basket operations for the tag are cancelled. When online the
// server copy is deleted too; offline, the server cleanup is left to an
// administrator, since no pending-operation kind models a delete.
func (s *Service) AdminDelete(ctx context.Context, tag string) error {
	if s.signal.Online() {
		err := s.remote.DeleteBasket(ctx, tag)
		if err != nil && !errors.Is(err, remote.ErrNotFound) {
			return err
		}
	}

	if err := s.store.DeleteBasket(ctx, tag); err != nil {
		return err
	}
	cancelled, err := s.store.CancelForTag(ctx, tag)
	if err != nil {
		return err
	}
	slog.Info("basket deleted", "tag", tag, "cancelled_ops", cancelled)
	return nil
}

// PendingCount exposes the queue length for status surfaces.
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	return s.store.PendingCount(ctx)
}
