package testutil

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/wareline/wareline/internal/basket"
	"github.com/wareline/wareline/internal/remote"
)

// FakeRemote is an in-memory basket server implementing remote.Transport.
//
// Tests script failures by setting Fail; while set, every call records
// itself and returns that error. Successful updates mutate the in-memory
// server state the way the real server would, so reconciliation tests can
// compare final remote state against expectations.
type FakeRemote struct {
	mu sync.Mutex

	// Baskets is the authoritative server state, keyed by tag.
	Baskets map[string]basket.Basket

	// Fail, when non-nil, is returned by every call.
	Fail error

	// FailTags fails calls touching specific tags while others succeed.
	FailTags map[string]error

	// Calls records every remote call in order, e.g. "get TAG-1",
	// "update TAG-1", "bulk 3".
	Calls []string

	// now stamps server-side updated_at values.
	now func() time.Time
}

// NewFakeRemote creates an empty fake server.
func NewFakeRemote(now func() time.Time) *FakeRemote {
	if now == nil {
		now = time.Now
	}
	return &FakeRemote{
		Baskets:  make(map[string]basket.Basket),
		FailTags: make(map[string]error),
		now:      now,
	}
}

// CallCount returns how many remote calls were made.
func (f *FakeRemote) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// SetFail scripts a blanket failure for subsequent calls.
func (f *FakeRemote) SetFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Fail = err
}

// SetFailTag scripts a failure for calls touching one tag.
func (f *FakeRemote) SetFailTag(tag string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.FailTags, tag)
		return
	}
	f.FailTags[tag] = err
}

func (f *FakeRemote) GetBasket(_ context.Context, tag string) (basket.Basket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "get "+tag)

	if f.Fail != nil {
		return basket.Basket{}, f.Fail
	}
	if err, ok := f.FailTags[tag]; ok {
		return basket.Basket{}, err
	}
	b, ok := f.Baskets[tag]
	if !ok {
		return basket.Basket{}, remote.ErrNotFound
	}
	return b, nil
}

func (f *FakeRemote) ApplyUpdate(_ context.Context, p remote.UpdatePayload) (basket.Basket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "update "+p.Tag)

	if f.Fail != nil {
		return basket.Basket{}, f.Fail
	}
	if err, ok := f.FailTags[p.Tag]; ok {
		return basket.Basket{}, err
	}

	b, err := f.apply(p)
	if err != nil {
		return basket.Basket{}, err
	}
	return b, nil
}

func (f *FakeRemote) ApplyBulkUpdate(_ context.Context, p remote.BulkPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "bulk "+strconv.Itoa(len(p.Tags)))

	if f.Fail != nil {
		return f.Fail
	}
	for _, tag := range p.Tags {
		if err, ok := f.FailTags[tag]; ok {
			return err
		}
	}

	for _, tag := range p.Tags {
		item := remote.UpdatePayload{
			Tag:        tag,
			Status:     p.Status,
			ProductRef: p.ProductRef,
			BatchRef:   p.BatchRef,
			Warehouse:  p.Warehouse,
			Quantity:   p.Quantity,
			Actor:      p.Actor,
		}
		if ov, ok := p.Overrides[tag]; ok {
			if ov.Quantity != nil {
				item.Quantity = ov.Quantity
			}
			if ov.BatchRef != nil {
				item.BatchRef = ov.BatchRef
			}
		}
		if _, err := f.apply(item); err != nil {
			return err
		}
	}
	return nil
}

func (f *FakeRemote) DeleteBasket(_ context.Context, tag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "delete "+tag)

	if f.Fail != nil {
		return f.Fail
	}
	if _, ok := f.Baskets[tag]; !ok {
		return remote.ErrNotFound
	}
	delete(f.Baskets, tag)
	return nil
}

// apply mutates server state like the real server: merge non-nil fields,
// wipe associations on a clear. Callers hold the mutex.
func (f *FakeRemote) apply(p remote.UpdatePayload) (basket.Basket, error) {
	status, err := basket.ParseStatus(p.Status)
	if err != nil {
		return basket.Basket{}, err
	}

	current, ok := f.Baskets[p.Tag]
	if !ok {
		current = basket.NewUnassigned(p.Tag, p.Actor, f.now())
	}

	next := current.Apply(basket.Update{
		Status:     status,
		ProductRef: p.ProductRef,
		BatchRef:   p.BatchRef,
		Warehouse:  p.Warehouse,
		Quantity:   p.Quantity,
	}, p.Actor, f.now())

	f.Baskets[p.Tag] = next
	return next, nil
}
