// internal/chaos/faulty.go
package chaos

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"shelfboard/internal/shelf"
)

// StoreOp names a Store operation faults can target.
type StoreOp string

const (
	OpList   StoreOp = "list"
	OpCreate StoreOp = "create"
	OpUpdate StoreOp = "update"
	OpDelete StoreOp = "delete"
	OpSwap   StoreOp = "swap"
)

// ErrInjected is the default injected failure.
var ErrInjected = errors.New("chaos: injected store failure")

// FaultyStore wraps a shelf.Store and fails or delays chosen operations.
type FaultyStore struct {
	inner shelf.Store

	mu       sync.Mutex
	failures map[StoreOp]error
	latency  map[StoreOp]time.Duration
	listHook func(ctx context.Context, call int)
	calls    map[StoreOp]int
}

var _ shelf.Store = (*FaultyStore)(nil)

func NewFaultyStore(inner shelf.Store) *FaultyStore {
	return &FaultyStore{
		inner:    inner,
		failures: make(map[StoreOp]error),
		latency:  make(map[StoreOp]time.Duration),
		calls:    make(map[StoreOp]int),
	}
}

// Fail makes op return err (ErrInjected if nil) until Heal.
func (f *FaultyStore) Fail(op StoreOp, err error) {
	if err == nil {
		err = ErrInjected
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = err
}

func (f *FaultyStore) Delay(op StoreOp, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latency[op] = d
}

// OnList runs hook before every List with the 1-based call number. The
// hook may block.
func (f *FaultyStore) OnList(hook func(ctx context.Context, call int)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listHook = hook
}

// Heal removes every injected fault.
func (f *FaultyStore) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = make(map[StoreOp]error)
	f.latency = make(map[StoreOp]time.Duration)
	f.listHook = nil
}

func (f *FaultyStore) Calls(op StoreOp) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *FaultyStore) before(ctx context.Context, op StoreOp) error {
	f.mu.Lock()
	f.calls[op]++
	call := f.calls[op]
	err := f.failures[op]
	delay := f.latency[op]
	hook := f.listHook
	f.mu.Unlock()

	if op == OpList && hook != nil {
		hook(ctx, call)
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *FaultyStore) List(ctx context.Context, ownerID string) ([]shelf.Item, error) {
	if err := f.before(ctx, OpList); err != nil {
		return nil, err
	}
	return f.inner.List(ctx, ownerID)
}

func (f *FaultyStore) Create(ctx context.Context, ownerID string, fields shelf.ItemFields) (uuid.UUID, error) {
	if err := f.before(ctx, OpCreate); err != nil {
		return uuid.Nil, err
	}
	return f.inner.Create(ctx, ownerID, fields)
}

func (f *FaultyStore) Update(ctx context.Context, ownerID string, id uuid.UUID, patch shelf.ItemPatch) error {
	if err := f.before(ctx, OpUpdate); err != nil {
		return err
	}
	return f.inner.Update(ctx, ownerID, id, patch)
}

func (f *FaultyStore) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	if err := f.before(ctx, OpDelete); err != nil {
		return err
	}
	return f.inner.Delete(ctx, ownerID, id)
}

func (f *FaultyStore) SwapPositions(ctx context.Context, ownerID string, a, b uuid.UUID) error {
	if err := f.before(ctx, OpSwap); err != nil {
		return err
	}
	return f.inner.SwapPositions(ctx, ownerID, a, b)
}
