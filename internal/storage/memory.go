// Package storage implements the shelf item store: a SQL store for Postgres
// and SQLite, and an in-memory store with the same semantics.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"shelfboard/internal/shelf"
)

// MemoryStore keeps items in process. All writes are atomic under one lock,
// which makes SwapPositions trivially all-or-nothing.
type MemoryStore struct {
	mu      sync.Mutex
	items   map[uuid.UUID]shelf.Item
	history map[string][]shelf.HistoryEntry
	now     func() time.Time
}

var (
	_ shelf.Store         = (*MemoryStore)(nil)
	_ shelf.HistoryReader = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:   make(map[uuid.UUID]shelf.Item),
		history: make(map[string][]shelf.HistoryEntry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// List returns the owner's items ordered by page, slot, then creation.
func (s *MemoryStore) List(ctx context.Context, ownerID string) ([]shelf.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []shelf.Item
	for _, it := range s.items {
		if it.OwnerID == ownerID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.PageIndex != b.PageIndex {
			return a.PageIndex < b.PageIndex
		}
		if a.SlotID != b.SlotID {
			return a.SlotID < b.SlotID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Create(ctx context.Context, ownerID string, f shelf.ItemFields) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}
	if err := f.Validate(); err != nil {
		return uuid.Nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, it := range s.items {
		if it.OwnerID == ownerID && it.PageIndex == f.PageIndex && it.SlotID == f.SlotID {
			return uuid.Nil, fmt.Errorf("%w: page %d slot %d", shelf.ErrSlotConflict, f.PageIndex, f.SlotID)
		}
	}

	now := s.now()
	item := shelf.Item{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Title:     f.Title,
		Author:    f.Author,
		CoverRef:  f.CoverRef,
		PageIndex: f.PageIndex,
		SlotID:    f.SlotID,
		ColorTag:  f.ColorTag,
		GenreTag:  f.GenreTag,
		Rating:    f.Rating,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.items[item.ID] = item
	s.record(ownerID, "ItemShelved", shelf.ItemShelvedEvent{
		ID: item.ID, Title: item.Title, Author: item.Author, PageIndex: item.PageIndex, SlotID: item.SlotID,
	})
	return item.ID, nil
}

func (s *MemoryStore) Update(ctx context.Context, ownerID string, id uuid.UUID, patch shelf.ItemPatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := patch.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.owned(ownerID, id)
	if err != nil {
		return err
	}
	it = patch.Apply(it)
	it.Version++
	it.UpdatedAt = s.now()
	s.items[id] = it
	s.record(ownerID, "ItemUpdated", shelf.ItemUpdatedEvent{ID: id, Patch: patch})
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.owned(ownerID, id); err != nil {
		return err
	}
	delete(s.items, id)
	s.record(ownerID, "ItemRemoved", shelf.ItemRemovedEvent{ID: id})
	return nil
}

func (s *MemoryStore) SwapPositions(ctx context.Context, ownerID string, a, b uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a == b {
		return shelf.ErrSameItem
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ia, err := s.owned(ownerID, a)
	if err != nil {
		return err
	}
	ib, err := s.owned(ownerID, b)
	if err != nil {
		return err
	}

	now := s.now()
	fromA, fromB := ia.Position(), ib.Position()
	ia.PageIndex, ia.SlotID = fromB.PageIndex, fromB.SlotID
	ib.PageIndex, ib.SlotID = fromA.PageIndex, fromA.SlotID
	ia.Version++
	ib.Version++
	ia.UpdatedAt, ib.UpdatedAt = now, now
	s.items[a], s.items[b] = ia, ib
	s.record(ownerID, "ItemsSwapped", shelf.ItemsSwappedEvent{
		SourceID: a, TargetID: b, SourceFrom: fromA, TargetFrom: fromB,
	})
	return nil
}

func (s *MemoryStore) History(ctx context.Context, ownerID string) ([]shelf.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]shelf.HistoryEntry, len(s.history[ownerID]))
	copy(out, s.history[ownerID])
	return out, nil
}

// Put stores an item as-is, bypassing validation. It exists to seed
// inconsistent data in tests and tools.
func (s *MemoryStore) Put(item shelf.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}
	s.items[item.ID] = item
}

func (s *MemoryStore) owned(ownerID string, id uuid.UUID) (shelf.Item, error) {
	it, ok := s.items[id]
	if !ok || it.OwnerID != ownerID {
		return shelf.Item{}, fmt.Errorf("%w: %s", shelf.ErrItemNotFound, id)
	}
	return it, nil
}

func (s *MemoryStore) record(ownerID, eventType string, data any) {
	raw, _ := json.Marshal(data)
	s.history[ownerID] = append(s.history[ownerID], shelf.HistoryEntry{
		Version:    len(s.history[ownerID]) + 1,
		Type:       eventType,
		Data:       raw,
		RecordedAt: s.now(),
	})
}
