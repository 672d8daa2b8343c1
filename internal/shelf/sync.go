// internal/shelf/sync.go
package shelf

import (
	"context"
	"log"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SyncResult describes one completed sync.
type SyncResult struct {
	Generation uint64             `json:"generation"`
	Items      int                `json:"items"`
	Warnings   []IntegrityWarning `json:"warnings,omitempty"`
	// Stale is set when a sync started later had already been applied; the
	// loaded items were discarded.
	Stale bool `json:"stale,omitempty"`
}

// Syncer rebuilds page occupancy from the store. It is the only writer of
// occupancy; page creation on navigation also goes through it so that all
// PageManager mutation is serialised under one lock.
type Syncer struct {
	owner   string
	store   Store
	logger  *log.Logger
	tracer  trace.Tracer
	metrics *instruments

	mu    sync.RWMutex
	pages *PageManager
	// loaded is every stored item of the last applied sync, including the
	// ones rebuild could not place.
	loaded  []Item
	started uint64
	applied uint64
}

func newSyncer(owner string, store Store, pages *PageManager, logger *log.Logger, tracer trace.Tracer, m *instruments) *Syncer {
	return &Syncer{
		owner:   owner,
		store:   store,
		pages:   pages,
		logger:  logger,
		tracer:  tracer,
		metrics: m,
	}
}

// Sync loads every item for the owner and rebuilds occupancy from scratch.
// Items whose page or slot cannot be resolved are skipped and reported as
// integrity warnings. If a sync that started later has already been applied
// by the time this one's read returns, the result is discarded.
func (s *Syncer) Sync(ctx context.Context) (SyncResult, error) {
	s.mu.Lock()
	s.started++
	gen := s.started
	s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "shelf.sync",
		trace.WithAttributes(
			attribute.String("owner.id", s.owner),
			attribute.Int64("sync.generation", int64(gen)),
		),
	)
	defer span.End()

	items, err := s.store.List(ctx, s.owner)
	if err != nil {
		span.RecordError(err)
		return SyncResult{Generation: gen}, storeErr("list items", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen <= s.applied {
		span.SetAttributes(attribute.Bool("sync.stale", true))
		s.metrics.staleSync(ctx)
		return SyncResult{Generation: gen, Items: len(items), Stale: true}, nil
	}

	next := s.pages.clone()
	next.clearOccupancy()
	warnings := rebuild(next, items)
	for _, w := range warnings {
		s.logger.Printf("shelf: integrity warning for owner %s: %s", s.owner, w)
	}
	s.metrics.integrityWarnings(ctx, len(warnings))

	s.pages = next
	s.loaded = items
	s.applied = gen

	span.SetAttributes(
		attribute.Int("items.loaded", len(items)),
		attribute.Int("items.skipped", len(warnings)),
		attribute.Int("pages.count", next.PageCount()),
	)
	return SyncResult{Generation: gen, Items: len(items), Warnings: warnings}, nil
}

// rebuild places items on m, whose occupancy must already be clear. Items
// are placed in (page, slot, created, id) order so that when two stored
// items claim the same slot the older one keeps it.
func rebuild(m *PageManager, items []Item) []IntegrityWarning {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.PageIndex != b.PageIndex {
			return a.PageIndex < b.PageIndex
		}
		if a.SlotID != b.SlotID {
			return a.SlotID < b.SlotID
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})

	var warnings []IntegrityWarning
	for _, it := range sorted {
		warn := func(reason string) {
			warnings = append(warnings, IntegrityWarning{
				ItemID:    it.ID,
				PageIndex: it.PageIndex,
				SlotID:    it.SlotID,
				Reason:    reason,
			})
		}

		if !m.Layout().Has(it.SlotID) {
			warn("slot not in layout")
			continue
		}
		page, err := m.EnsurePage(it.PageIndex)
		if err != nil {
			warn("page index out of range")
			continue
		}
		if page.IsOccupied(it.SlotID) {
			warn("slot already occupied")
			continue
		}
		page.place(it)
	}
	return warnings
}

// read runs fn with the current pages under a read lock.
func (s *Syncer) read(fn func(*PageManager)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.pages)
}

// navigate runs fn with the current pages under the write lock. fn may only
// change the active page, which can create a page.
func (s *Syncer) navigate(fn func(*PageManager) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.pages)
}

// Generation returns the last applied sync generation.
func (s *Syncer) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.applied
}
