package syncer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wareline/wareline/internal/basket"
	"github.com/wareline/wareline/internal/connectivity"
	"github.com/wareline/wareline/internal/remote"
	"github.com/wareline/wareline/internal/service"
	"github.com/wareline/wareline/internal/store"
	"github.com/wareline/wareline/internal/testutil"
)

type fixture struct {
	store  *store.Store
	remote *testutil.FakeRemote
	signal *connectivity.Signal
	svc    *service.Service
	rec    *Reconciler
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	st, err := store.Open(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	clock := testutil.NewClock(time.Date(2026, 6, 1, 7, 0, 0, 0, time.UTC))
	rt := testutil.NewFakeRemote(clock.Now)
	sig := connectivity.NewSignal()

	return &fixture{
		store:  st,
		remote: rt,
		signal: sig,
		svc:    service.New(st, rt, sig, service.WithClock(clock.Now)),
		rec:    New(st, rt, sig, opts...),
	}
}

func retryableErr() error {
	return &remote.RequestError{StatusCode: 503, Message: "unavailable", Retryable: true}
}

func enqueueSetStatus(t *testing.T, f *fixture, tag string, status basket.Status) int64 {
	t.Helper()
	payload, err := json.Marshal(remote.UpdatePayload{Tag: tag, Status: status.String(), Actor: "test"})
	require.NoError(t, err)
	seq, err := f.store.Enqueue(context.Background(), store.Operation{
		Kind:       store.OpSetStatus,
		Target:     tag,
		Targets:    []string{tag},
		Payload:    payload,
		EnqueuedAt: time.Now(),
	})
	require.NoError(t, err)
	return seq
}

func TestDrain_OfflineRegistrationThenSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Device offline: the write is queued and applied optimistically.
	require.NoError(t, f.svc.ApplyUpdate(ctx, "TAG-001", basket.Update{Status: basket.StatusInProduction}, "line-1"))

	local, err := f.store.GetBasket(ctx, "TAG-001")
	require.NoError(t, err)
	assert.Equal(t, basket.StatusInProduction, local.Status)
	pending, _ := f.store.PendingCount(ctx)
	assert.Equal(t, 1, pending)

	// Connectivity returns.
	f.signal.Set(true)
	rep, err := f.rec.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Synced: 1}, rep)

	pending, _ = f.store.PendingCount(ctx)
	assert.Zero(t, pending)
	assert.Equal(t, basket.StatusInProduction, f.remote.Baskets["TAG-001"].Status)
}

func TestDrain_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	enqueueSetStatus(t, f, "TAG-001", basket.StatusInProduction)
	enqueueSetStatus(t, f, "TAG-002", basket.StatusInProduction)

	rep, err := f.rec.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Synced)

	calls := f.remote.CallCount()
	rep, err = f.rec.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{}, rep)
	assert.Equal(t, calls, f.remote.CallCount(), "second drain must make zero remote calls")
}

func TestDrain_FailureBlocksSameTargetOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seqA1 := enqueueSetStatus(t, f, "TAG-A", basket.StatusInProduction)
	seqA2 := enqueueSetStatus(t, f, "TAG-A", basket.StatusReceived)
	enqueueSetStatus(t, f, "TAG-B", basket.StatusInProduction)

	f.remote.SetFailTag("TAG-A", retryableErr())

	rep, err := f.rec.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Synced: 1, StillPending: 2}, rep)

	// TAG-A's first op was attempted once, its second not at all.
	opA1, err := f.store.GetOperation(ctx, seqA1)
	require.NoError(t, err)
	assert.Equal(t, 1, opA1.RetryCount)
	opA2, err := f.store.GetOperation(ctx, seqA2)
	require.NoError(t, err)
	assert.Zero(t, opA2.RetryCount, "blocked op must not be attempted")

	// TAG-B went through independently.
	assert.Equal(t, basket.StatusInProduction, f.remote.Baskets["TAG-B"].Status)
}

func TestDrain_ReplayOrderFollowsSeqPerTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	enqueueSetStatus(t, f, "TAG-A", basket.StatusInProduction)
	enqueueSetStatus(t, f, "TAG-A", basket.StatusReceived)
	enqueueSetStatus(t, f, "TAG-A", basket.StatusInStock)

	rep, err := f.rec.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Synced)

	require.Len(t, f.remote.Calls, 3)
	assert.Equal(t, []string{"update TAG-A", "update TAG-A", "update TAG-A"}, f.remote.Calls)
	// Final server state reflects the last write, proving t1 < t2 < t3 order.
	assert.Equal(t, basket.StatusInStock, f.remote.Baskets["TAG-A"].Status)
}

func TestDrain_FailedBatchBlocksMemberTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	payload, err := json.Marshal(remote.BulkPayload{
		Tags:   []string{"TAG-1", "TAG-2"},
		Status: basket.StatusUnassigned.String(),
		Actor:  "admin",
	})
	require.NoError(t, err)
	_, err = f.store.Enqueue(ctx, store.Operation{
		Kind:       store.OpBulkUpdate,
		Target:     "batch-1",
		Targets:    []string{"TAG-1", "TAG-2"},
		Payload:    payload,
		EnqueuedAt: time.Now(),
	})
	require.NoError(t, err)
	enqueueSetStatus(t, f, "TAG-1", basket.StatusInProduction)
	enqueueSetStatus(t, f, "TAG-3", basket.StatusInProduction)

	f.remote.SetFailTag("TAG-2", retryableErr()) // fails the whole batch

	rep, err := f.rec.Drain(ctx)
	require.NoError(t, err)
	// Batch fails, TAG-1's later op is blocked behind it, TAG-3 proceeds.
	assert.Equal(t, Report{Synced: 1, StillPending: 2}, rep)
	assert.Equal(t, basket.StatusInProduction, f.remote.Baskets["TAG-3"].Status)
	_, ok := f.remote.Baskets["TAG-1"]
	assert.False(t, ok, "blocked op must not have reached the server")
}

func TestDrain_RetryCutoffSkips(t *testing.T) {
	f := newFixture(t, WithMaxRetries(3))
	ctx := context.Background()

	seq := enqueueSetStatus(t, f, "TAG-A", basket.StatusInProduction)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.store.BumpRetry(ctx, seq))
	}
	enqueueSetStatus(t, f, "TAG-B", basket.StatusInProduction)

	rep, err := f.rec.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Synced: 1, Skipped: 1}, rep)

	// Skipped, not deleted: the row stays for inspection.
	op, err := f.store.GetOperation(ctx, seq)
	require.NoError(t, err)
	assert.Equal(t, 3, op.RetryCount, "skipped op must not be attempted again")
}

// cancellingTransport cancels the context after n successful calls.
type cancellingTransport struct {
	remote.Transport
	cancel context.CancelFunc
	left   int
}

func (c *cancellingTransport) ApplyUpdate(ctx context.Context, p remote.UpdatePayload) (basket.Basket, error) {
	b, err := c.Transport.ApplyUpdate(ctx, p)
	c.left--
	if c.left == 0 {
		c.cancel()
	}
	return b, err
}

func TestDrain_CancellationLeavesQueueValid(t *testing.T) {
	f := newFixture(t)

	enqueueSetStatus(t, f, "TAG-A", basket.StatusInProduction)
	seqB := enqueueSetStatus(t, f, "TAG-B", basket.StatusInProduction)

	ctx, cancel := context.WithCancel(context.Background())
	rec := New(f.store, &cancellingTransport{Transport: f.remote, cancel: cancel, left: 1}, f.signal)

	rep, err := rec.Drain(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, rep.Synced)

	// Processed op removed, unprocessed untouched.
	ops, err := f.store.Operations(context.Background())
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, seqB, ops[0].Seq)
	assert.Zero(t, ops[0].RetryCount)
}

func TestDrain_OfflineSequenceConvergesToOnlineResult(t *testing.T) {
	ctx := context.Background()

	// Device A: everything applied while online.
	online := newFixture(t)
	online.signal.Set(true)
	// Device B: same writes recorded offline, then reconciled.
	offline := newFixture(t)

	product := "PRD-5"
	qty := 60
	script := func(svc *service.Service) {
		require.NoError(t, svc.ApplyUpdate(ctx, "TAG-X", basket.Update{
			Status: basket.StatusInProduction, ProductRef: &product, Quantity: &qty,
		}, "line-1"))
		require.NoError(t, svc.ApplyUpdate(ctx, "TAG-X", basket.Update{Status: basket.StatusReceived}, "dock-1"))
		require.NoError(t, svc.ApplyUpdate(ctx, "TAG-X", basket.Update{Status: basket.StatusInStock}, "wh-1"))
	}

	script(online.svc)
	script(offline.svc)

	offline.signal.Set(true)
	rep, err := offline.rec.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Synced: 3}, rep)

	got := offline.remote.Baskets["TAG-X"]
	want := online.remote.Baskets["TAG-X"]
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.Quantity, got.Quantity)
	require.NotNil(t, got.ProductRef)
	assert.Equal(t, *want.ProductRef, *got.ProductRef)
}

func TestRun_DrainsOnOnlineEdge(t *testing.T) {
	f := newFixture(t)
	enqueueSetStatus(t, f, "TAG-001", basket.StatusInProduction)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.rec.Run(ctx) }()

	f.signal.Set(true)

	require.Eventually(t, func() bool {
		pending, err := f.store.PendingCount(context.Background())
		return err == nil && pending == 0
	}, 2*time.Second, 10*time.Millisecond, "reconnect edge must trigger a drain")

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
