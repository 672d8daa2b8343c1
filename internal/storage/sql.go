package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"shelfboard/internal/eventstore"
	"shelfboard/internal/shelf"
	"shelfboard/internal/sqlutil"
)

const aggregateType = "shelf"

// parkedPage holds an item for the middle step of a swap so the
// (owner, page, slot) unique constraint is never violated.
const parkedPage = -1

// SQLStore persists items in Postgres or SQLite. Each write commits together
// with its history event.
type SQLStore struct {
	db      *sql.DB
	dialect sqlutil.Dialect
	events  *eventstore.EventStore
	now     func() time.Time
}

var (
	_ shelf.Store         = (*SQLStore)(nil)
	_ shelf.HistoryReader = (*SQLStore)(nil)
)

func NewSQLStore(db *sql.DB, d sqlutil.Dialect) *SQLStore {
	return &SQLStore{
		db:      db,
		dialect: d,
		events:  eventstore.NewEventStore(d),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *SQLStore) schema() []string {
	if s.dialect == sqlutil.Postgres {
		return []string{`
		CREATE TABLE IF NOT EXISTS shelf_items (
			id UUID PRIMARY KEY,
			owner_id TEXT NOT NULL,
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			cover_ref TEXT NOT NULL DEFAULT '',
			page_index INTEGER NOT NULL,
			slot_id INTEGER NOT NULL,
			color_tag TEXT NOT NULL DEFAULT '',
			genre_tag TEXT NOT NULL DEFAULT '',
			rating INTEGER NOT NULL DEFAULT 0 CHECK (rating BETWEEN 0 AND 5),
			version INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (owner_id, page_index, slot_id)
		);`,
			`CREATE INDEX IF NOT EXISTS shelf_items_owner_idx ON shelf_items (owner_id);`,
			s.events.Schema(),
		}
	}
	return []string{`
		CREATE TABLE IF NOT EXISTS shelf_items (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			cover_ref TEXT NOT NULL DEFAULT '',
			page_index INTEGER NOT NULL,
			slot_id INTEGER NOT NULL,
			color_tag TEXT NOT NULL DEFAULT '',
			genre_tag TEXT NOT NULL DEFAULT '',
			rating INTEGER NOT NULL DEFAULT 0 CHECK (rating BETWEEN 0 AND 5),
			version INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE (owner_id, page_index, slot_id)
		);`,
		`CREATE INDEX IF NOT EXISTS shelf_items_owner_idx ON shelf_items (owner_id);`,
		s.events.Schema(),
	}
}

// Migrate creates the item and event tables if they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply shelf schema: %w", err)
		}
	}
	return nil
}

const itemColumns = `id, owner_id, title, author, cover_ref, page_index, slot_id, color_tag, genre_tag, rating, version, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (shelf.Item, error) {
	var it shelf.Item
	err := row.Scan(
		&it.ID,
		&it.OwnerID,
		&it.Title,
		&it.Author,
		&it.CoverRef,
		&it.PageIndex,
		&it.SlotID,
		&it.ColorTag,
		&it.GenreTag,
		&it.Rating,
		&it.Version,
		&it.CreatedAt,
		&it.UpdatedAt,
	)
	return it, err
}

func (s *SQLStore) List(ctx context.Context, ownerID string) ([]shelf.Item, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(`
		SELECT `+itemColumns+`
		FROM shelf_items
		WHERE owner_id = ?
		ORDER BY page_index, slot_id, created_at
	`), ownerID)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}

	items, err := sqlutil.ScanRows(rows, func(rows *sql.Rows) (shelf.Item, error) {
		return scanItem(rows)
	})
	if err != nil {
		return nil, fmt.Errorf("scan items: %w", err)
	}
	return items, nil
}

func (s *SQLStore) Create(ctx context.Context, ownerID string, f shelf.ItemFields) (uuid.UUID, error) {
	if err := f.Validate(); err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()
	now := s.now()

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.dialect.Rebind(`
			INSERT INTO shelf_items (`+itemColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		`), id, ownerID, f.Title, f.Author, f.CoverRef, f.PageIndex, f.SlotID, f.ColorTag, f.GenreTag, f.Rating, now, now)
		if err != nil {
			if sqlutil.IsUniqueViolation(err) {
				return fmt.Errorf("%w: page %d slot %d", shelf.ErrSlotConflict, f.PageIndex, f.SlotID)
			}
			return fmt.Errorf("insert item: %w", err)
		}
		return s.events.Append(ctx, tx, ownerID, aggregateType, "ItemShelved", shelf.ItemShelvedEvent{
			ID: id, Title: f.Title, Author: f.Author, PageIndex: f.PageIndex, SlotID: f.SlotID,
		})
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (s *SQLStore) Update(ctx context.Context, ownerID string, id uuid.UUID, patch shelf.ItemPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	if patch.Empty() {
		return nil
	}

	var (
		sets []string
		args []any
	)
	if patch.Rating != nil {
		sets = append(sets, "rating = ?")
		args = append(args, *patch.Rating)
	}
	if patch.GenreTag != nil {
		sets = append(sets, "genre_tag = ?")
		args = append(args, *patch.GenreTag)
	}
	if patch.ColorTag != nil {
		sets = append(sets, "color_tag = ?")
		args = append(args, *patch.ColorTag)
	}
	sets = append(sets, "version = version + 1", "updated_at = ?")
	args = append(args, s.now(), id, ownerID)

	query := `UPDATE shelf_items SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND owner_id = ?`

	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.dialect.Rebind(query), args...)
		if err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		if err := expectOne(res, id); err != nil {
			return err
		}
		return s.events.Append(ctx, tx, ownerID, aggregateType, "ItemUpdated", shelf.ItemUpdatedEvent{ID: id, Patch: patch})
	})
}

func (s *SQLStore) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.dialect.Rebind(`
			DELETE FROM shelf_items WHERE id = ? AND owner_id = ?
		`), id, ownerID)
		if err != nil {
			return fmt.Errorf("delete item: %w", err)
		}
		if err := expectOne(res, id); err != nil {
			return err
		}
		return s.events.Append(ctx, tx, ownerID, aggregateType, "ItemRemoved", shelf.ItemRemovedEvent{ID: id})
	})
}

// SwapPositions exchanges two items' page and slot in one transaction:
// a is parked off-board, b takes a's place, a takes b's.
func (s *SQLStore) SwapPositions(ctx context.Context, ownerID string, a, b uuid.UUID) error {
	if a == b {
		return shelf.ErrSameItem
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		fromA, err := s.lockPosition(ctx, tx, ownerID, a)
		if err != nil {
			return err
		}
		fromB, err := s.lockPosition(ctx, tx, ownerID, b)
		if err != nil {
			return err
		}

		now := s.now()
		move := func(id uuid.UUID, pos shelf.Position) error {
			_, err := tx.ExecContext(ctx, s.dialect.Rebind(`
				UPDATE shelf_items
				SET page_index = ?, slot_id = ?, version = version + 1, updated_at = ?
				WHERE id = ? AND owner_id = ?
			`), pos.PageIndex, pos.SlotID, now, id, ownerID)
			if err != nil {
				return fmt.Errorf("move item %s: %w", id, err)
			}
			return nil
		}

		if _, err := tx.ExecContext(ctx, s.dialect.Rebind(`
			UPDATE shelf_items SET page_index = ? WHERE id = ? AND owner_id = ?
		`), parkedPage, a, ownerID); err != nil {
			return fmt.Errorf("park item %s: %w", a, err)
		}
		if err := move(b, fromA); err != nil {
			return err
		}
		if err := move(a, fromB); err != nil {
			return err
		}

		return s.events.Append(ctx, tx, ownerID, aggregateType, "ItemsSwapped", shelf.ItemsSwappedEvent{
			SourceID: a, TargetID: b, SourceFrom: fromA, TargetFrom: fromB,
		})
	})
}

func (s *SQLStore) lockPosition(ctx context.Context, tx *sql.Tx, ownerID string, id uuid.UUID) (shelf.Position, error) {
	query := `SELECT page_index, slot_id FROM shelf_items WHERE id = ? AND owner_id = ?`
	if s.dialect == sqlutil.Postgres {
		query += ` FOR UPDATE`
	}
	var pos shelf.Position
	err := tx.QueryRowContext(ctx, s.dialect.Rebind(query), id, ownerID).Scan(&pos.PageIndex, &pos.SlotID)
	if errors.Is(err, sql.ErrNoRows) {
		return pos, fmt.Errorf("%w: %s", shelf.ErrItemNotFound, id)
	}
	if err != nil {
		return pos, fmt.Errorf("load item %s: %w", id, err)
	}
	return pos, nil
}

func (s *SQLStore) History(ctx context.Context, ownerID string) ([]shelf.HistoryEntry, error) {
	events, err := s.events.LoadEvents(ctx, s.db, ownerID, 1, 0)
	if err != nil {
		return nil, err
	}
	out := make([]shelf.HistoryEntry, 0, len(events))
	for _, e := range events {
		out = append(out, shelf.HistoryEntry{
			Version:    e.Version,
			Type:       e.EventType,
			Data:       e.EventData,
			RecordedAt: e.CreatedAt,
		})
	}
	return out, nil
}

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, s.dialect.TxOptions())
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func expectOne(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", shelf.ErrItemNotFound, id)
	}
	return nil
}
