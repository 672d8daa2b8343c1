// internal/shelf/implementation.go
package shelf

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"shelfboard/internal/layout"
	"shelfboard/internal/rearrange"
)

// Options tune a board.
type Options struct {
	// AllowOverflow lets the add flow open a new page when every existing
	// page is full. Without it a full board returns ErrNoFreeSlot.
	AllowOverflow bool
	MaxPages      int
	DragThreshold float64
	Logger        *log.Logger
	// Rand picks a palette index; defaults to math/rand/v2.
	Rand func(n int) int
	// IdleTTL is how long a Registry keeps a board nobody has asked for.
	// Zero keeps boards for the life of the registry.
	IdleTTL time.Duration
	Now     func() time.Time
}

func DefaultOptions() Options {
	return Options{
		AllowOverflow: true,
		MaxPages:      DefaultMaxPages,
		DragThreshold: rearrange.DefaultThreshold,
		IdleTTL:       DefaultIdleTTL,
	}
}

// Board is one owner's session: it owns that owner's page manager, the sync
// controller that rebuilds it, and the pointer gesture in progress.
type Board struct {
	owner   string
	store   Store
	layout  *layout.Layout
	opts    Options
	syncer  *Syncer
	pointer *rearrange.Controller
	tracer  trace.Tracer
	metrics *instruments
	logger  *log.Logger
}

var (
	_ Service             = (*Board)(nil)
	_ rearrange.HitTester = (*Board)(nil)
	_ rearrange.Swapper   = (*Board)(nil)
)

// NewBoard creates an empty board for ownerID. Call Sync to load it.
func NewBoard(ownerID string, store Store, l *layout.Layout, opts Options) *Board {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Rand == nil {
		opts.Rand = rand.IntN
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}

	b := &Board{
		owner:   ownerID,
		store:   store,
		layout:  l,
		opts:    opts,
		tracer:  otel.Tracer("shelfboard/shelf"),
		metrics: newInstruments(),
		logger:  opts.Logger,
	}
	b.syncer = newSyncer(ownerID, store, NewPageManager(l, opts.MaxPages), opts.Logger, b.tracer, b.metrics)
	b.pointer = rearrange.NewController(opts.DragThreshold, b, b)
	return b
}

func (b *Board) OwnerID() string {
	return b.owner
}

func (b *Board) Sync(ctx context.Context) (SyncResult, error) {
	return b.syncer.Sync(ctx)
}

func (b *Board) View() View {
	var v View
	b.syncer.read(func(m *PageManager) {
		v = buildView(b.owner, m, b.syncer.applied)
	})
	return v
}

// Item finds a placed item by id.
func (b *Board) Item(id uuid.UUID) (Item, bool) {
	var (
		found Item
		ok    bool
	)
	b.syncer.read(func(m *PageManager) {
		for _, it := range m.Items() {
			if it.ID == id {
				found, ok = it, true
				return
			}
		}
	})
	return found, ok
}

// AddItem shelves a new item. Placement fields in fields are ignored; the
// allocator chooses the page and slot. The board is synced before the
// duplicate check so the check sees every stored item.
func (b *Board) AddItem(ctx context.Context, fields ItemFields) (*Item, error) {
	ctx, span := b.tracer.Start(ctx, "shelf.add_item",
		trace.WithAttributes(
			attribute.String("owner.id", b.owner),
			attribute.String("item.title", fields.Title),
		),
	)
	defer span.End()

	fields.PageIndex, fields.SlotID = 0, 0
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	if fields.ColorTag == "" {
		fields.ColorTag = SpinePalette[b.opts.Rand(len(SpinePalette))]
	}

	if _, err := b.syncer.Sync(ctx); err != nil {
		return nil, err
	}

	var (
		pos    Position
		addErr error
	)
	b.syncer.read(func(m *PageManager) {
		if dup, ok := findDuplicate(b.syncer.loaded, fields.Title, fields.Author); ok {
			addErr = fmt.Errorf("%w: %q by %q (page %d, slot %d)", ErrDuplicateItem, dup.Title, dup.Author, dup.PageIndex, dup.SlotID)
			return
		}
		pos, addErr = placement(m, b.opts.AllowOverflow)
	})
	if addErr != nil {
		span.RecordError(addErr)
		return nil, addErr
	}

	fields.PageIndex, fields.SlotID = pos.PageIndex, pos.SlotID
	id, err := b.store.Create(ctx, b.owner, fields)
	if err != nil {
		span.RecordError(err)
		return nil, storeErr("create item", err)
	}
	b.metrics.itemAdded(ctx)
	span.SetAttributes(
		attribute.String("item.id", id.String()),
		attribute.Int("item.page", pos.PageIndex),
		attribute.Int("item.slot", pos.SlotID),
	)

	if _, err := b.syncer.Sync(ctx); err != nil {
		return nil, err
	}
	if it, ok := b.Item(id); ok {
		return &it, nil
	}
	return &Item{
		ID:        id,
		OwnerID:   b.owner,
		Title:     fields.Title,
		Author:    fields.Author,
		CoverRef:  fields.CoverRef,
		PageIndex: pos.PageIndex,
		SlotID:    pos.SlotID,
		ColorTag:  fields.ColorTag,
		GenreTag:  fields.GenreTag,
		Rating:    fields.Rating,
	}, nil
}

// findDuplicate matches title and author exactly, case included. items is
// the full stored set, so an item sync could not place still counts.
func findDuplicate(items []Item, title, author string) (Item, bool) {
	for _, it := range items {
		if it.Title == title && it.Author == author {
			return it, true
		}
	}
	return Item{}, false
}

func (b *Board) UpdateItem(ctx context.Context, id uuid.UUID, patch ItemPatch) error {
	ctx, span := b.tracer.Start(ctx, "shelf.update_item",
		trace.WithAttributes(attribute.String("item.id", id.String())))
	defer span.End()

	if patch.Empty() {
		return fmt.Errorf("%w: nothing to update", ErrInvalidItem)
	}
	if err := patch.Validate(); err != nil {
		return err
	}
	if err := b.store.Update(ctx, b.owner, id, patch); err != nil {
		span.RecordError(err)
		return storeErr("update item", err)
	}
	_, err := b.syncer.Sync(ctx)
	return err
}

func (b *Board) RemoveItem(ctx context.Context, id uuid.UUID) error {
	ctx, span := b.tracer.Start(ctx, "shelf.remove_item",
		trace.WithAttributes(attribute.String("item.id", id.String())))
	defer span.End()

	if err := b.store.Delete(ctx, b.owner, id); err != nil {
		span.RecordError(err)
		return storeErr("delete item", err)
	}
	_, err := b.syncer.Sync(ctx)
	return err
}

// Swap exchanges the positions of source and target through the store's
// single atomic swap, then re-syncs.
func (b *Board) Swap(ctx context.Context, source, target uuid.UUID) error {
	ctx, span := b.tracer.Start(ctx, "shelf.swap",
		trace.WithAttributes(
			attribute.String("owner.id", b.owner),
			attribute.String("source.id", source.String()),
			attribute.String("target.id", target.String()),
		),
	)
	defer span.End()

	if source == target {
		return ErrSameItem
	}
	if err := b.requirePlaced(ctx, source, target); err != nil {
		span.RecordError(err)
		return err
	}
	if err := b.store.SwapPositions(ctx, b.owner, source, target); err != nil {
		span.RecordError(err)
		b.metrics.swap(ctx, false)
		return storeErr("swap items", err)
	}
	b.metrics.swap(ctx, true)

	_, err := b.syncer.Sync(ctx)
	return err
}

func (b *Board) NextPage() View {
	b.syncer.navigate(func(m *PageManager) bool { return m.Next() })
	return b.View()
}

func (b *Board) PrevPage() View {
	b.syncer.navigate(func(m *PageManager) bool { return m.Prev() })
	return b.View()
}

func (b *Board) SetActivePage(index int) (View, bool) {
	ok := b.syncer.navigate(func(m *PageManager) bool { return m.SetActive(index) })
	return b.View(), ok
}

// HitTest finds the item on the active page whose spine contains p.
func (b *Board) HitTest(p rearrange.Point, exclude uuid.UUID) (uuid.UUID, bool) {
	spine := b.layout.Spine()
	var boxes rearrange.BoxHitTester
	b.syncer.read(func(m *PageManager) {
		for _, it := range m.Active().Items() {
			s, ok := b.layout.Slot(it.SlotID)
			if !ok {
				continue
			}
			boxes = append(boxes, rearrange.Box{
				ID: it.ID, X: s.X, Y: s.Y, Width: spine.Width, Height: spine.Height,
			})
		}
	})
	return boxes.HitTest(p, exclude)
}

// HandlePointer feeds a pointer event to the board's gesture.
func (b *Board) HandlePointer(ctx context.Context, ev rearrange.PointerEvent) (PointerOutcome, error) {
	res, err := b.pointer.Handle(ctx, ev)
	if err != nil {
		return PointerOutcome{}, err
	}

	out := PointerOutcome{Result: res}
	switch res.Action {
	case rearrange.ActionOpen:
		if it, ok := b.Item(res.Source); ok {
			out.Detail = &it
		}
	case rearrange.ActionSwapped, rearrange.ActionSwapFailed:
		if res.Err != nil {
			out.Error = res.Err.Error()
			b.logger.Printf("shelf: swap %s -> %s failed for owner %s: %v", res.Source, res.Target, b.owner, res.Err)
		}
		v := b.View()
		out.View = &v
	}
	return out, nil
}

// Verify checks the board's occupancy against the store's current items.
func (b *Board) Verify(ctx context.Context) error {
	items, err := b.store.List(ctx, b.owner)
	if err != nil {
		return storeErr("list items", err)
	}
	var verr error
	b.syncer.read(func(m *PageManager) { verr = VerifyOccupancy(m, items) })
	return verr
}

func (b *Board) Stats() Stats {
	var items []Item
	b.syncer.read(func(m *PageManager) { items = m.Items() })
	return ComputeStats(items)
}

// requirePlaced fails with ErrItemNotFound unless every id is on the board.
// Items sync skipped have no slot a swap could hand over, so swapping with
// one would move a placed item off the board. A miss is rechecked after one
// sync in case the view is behind the store.
func (b *Board) requirePlaced(ctx context.Context, ids ...uuid.UUID) error {
	missing := func() (uuid.UUID, bool) {
		for _, id := range ids {
			if _, ok := b.Item(id); !ok {
				return id, true
			}
		}
		return uuid.Nil, false
	}
	if _, ok := missing(); !ok {
		return nil
	}
	if _, err := b.syncer.Sync(ctx); err != nil {
		return err
	}
	if id, ok := missing(); ok {
		return fmt.Errorf("%w: %s is not placed on the board", ErrItemNotFound, id)
	}
	return nil
}

// DefaultIdleTTL bounds how long an unused owner's pages stay in memory.
const DefaultIdleTTL = 30 * time.Minute

// Registry hands out one Board per owner. Boards idle for longer than
// Options.IdleTTL are dropped; the next request builds a fresh board that
// syncs from the store, so only the active page index is lost.
type Registry struct {
	store  Store
	layout *layout.Layout
	opts   Options

	mu        sync.Mutex
	boards    map[string]*registryEntry
	lastSweep time.Time
}

type registryEntry struct {
	board    *Board
	lastUsed time.Time
}

func NewRegistry(store Store, l *layout.Layout, opts Options) *Registry {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{
		store:  store,
		layout: l,
		opts:   opts,
		boards: make(map[string]*registryEntry),
	}
}

// Board returns the owner's board, creating it on first use.
func (r *Registry) Board(ownerID string) *Board {
	ownerID = strings.TrimSpace(ownerID)
	now := r.opts.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictIdle(now)

	e, ok := r.boards[ownerID]
	if !ok {
		e = &registryEntry{board: NewBoard(ownerID, r.store, r.layout, r.opts)}
		r.boards[ownerID] = e
	}
	e.lastUsed = now
	return e.board
}

// evictIdle sweeps at most once per IdleTTL, so a board can outlive its TTL
// by up to one more TTL. Caller holds r.mu.
func (r *Registry) evictIdle(now time.Time) {
	ttl := r.opts.IdleTTL
	if ttl <= 0 || now.Sub(r.lastSweep) < ttl {
		return
	}
	r.lastSweep = now
	for owner, e := range r.boards {
		if now.Sub(e.lastUsed) >= ttl {
			delete(r.boards, owner)
		}
	}
}

// Len is the number of boards held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.boards)
}

func (r *Registry) Store() Store {
	return r.store
}

func (r *Registry) Layout() *layout.Layout {
	return r.layout
}
