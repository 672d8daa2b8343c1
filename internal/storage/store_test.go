package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelfboard/internal/shelf"
	"shelfboard/internal/sqlutil"
)

type testStore interface {
	shelf.Store
	shelf.HistoryReader
}

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := sqlutil.Open(sqlutil.SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewSQLStore(db, sqlutil.SQLite)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

// newPostgresStore connects with the standard PG* variables and isolates
// the test in a throwaway schema. It skips when no server answers.
func newPostgresStore(t *testing.T) *SQLStore {
	t.Helper()
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		pgEnv("PGHOST", "localhost"), pgEnv("PGPORT", "5432"), pgEnv("PGUSER", "user"),
		pgEnv("PGPASSWORD", "password"), pgEnv("PGDATABASE", "testdb"))

	admin, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { admin.Close() })
	if err := admin.Ping(); err != nil {
		t.Skipf("skipping postgres store tests: could not connect to postgres: %v", err)
	}

	schema := "shelfboard_test_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	_, err = admin.Exec("CREATE SCHEMA " + schema)
	require.NoError(t, err)
	t.Cleanup(func() { admin.Exec("DROP SCHEMA " + schema + " CASCADE") })

	db, err := sqlutil.Open(sqlutil.Postgres, connStr+" search_path="+schema)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewSQLStore(db, sqlutil.Postgres)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func pgEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func forEachStore(t *testing.T, fn func(t *testing.T, s testStore)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLiteStore(t)) })
	t.Run("postgres", func(t *testing.T) { fn(t, newPostgresStore(t)) })
}

func fields(title string, page, slot int) shelf.ItemFields {
	return shelf.ItemFields{Title: title, Author: "Author of " + title, PageIndex: page, SlotID: slot}
}

func TestStore_CreateAndList(t *testing.T) {
	forEachStore(t, func(t *testing.T, s testStore) {
		ctx := context.Background()

		idB, err := s.Create(ctx, "alice", fields("B", 0, 2))
		require.NoError(t, err)
		idA, err := s.Create(ctx, "alice", fields("A", 0, 1))
		require.NoError(t, err)
		_, err = s.Create(ctx, "bob", fields("C", 0, 1))
		require.NoError(t, err)

		items, err := s.List(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, idA, items[0].ID)
		assert.Equal(t, idB, items[1].ID)
		assert.Equal(t, "alice", items[0].OwnerID)
		assert.Equal(t, 1, items[0].Version)
		assert.False(t, items[0].CreatedAt.IsZero())
	})
}

func TestStore_CreateRejectsOccupiedSlot(t *testing.T) {
	forEachStore(t, func(t *testing.T, s testStore) {
		ctx := context.Background()

		_, err := s.Create(ctx, "alice", fields("A", 0, 1))
		require.NoError(t, err)

		_, err = s.Create(ctx, "alice", fields("B", 0, 1))
		assert.ErrorIs(t, err, shelf.ErrSlotConflict)

		// the same slot on another owner's board is free
		_, err = s.Create(ctx, "bob", fields("B", 0, 1))
		assert.NoError(t, err)
	})
}

func TestStore_CreateValidates(t *testing.T) {
	forEachStore(t, func(t *testing.T, s testStore) {
		ctx := context.Background()

		_, err := s.Create(ctx, "alice", shelf.ItemFields{Author: "x", SlotID: 1})
		assert.ErrorIs(t, err, shelf.ErrInvalidItem)

		f := fields("A", 0, 1)
		f.Rating = 6
		_, err = s.Create(ctx, "alice", f)
		assert.ErrorIs(t, err, shelf.ErrInvalidRating)
	})
}

func TestStore_Update(t *testing.T) {
	forEachStore(t, func(t *testing.T, s testStore) {
		ctx := context.Background()

		id, err := s.Create(ctx, "alice", fields("A", 0, 1))
		require.NoError(t, err)

		rating, genre := 4, "fantasy"
		require.NoError(t, s.Update(ctx, "alice", id, shelf.ItemPatch{Rating: &rating, GenreTag: &genre}))

		items, err := s.List(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, 4, items[0].Rating)
		assert.Equal(t, "fantasy", items[0].GenreTag)
		assert.Equal(t, 2, items[0].Version)

		bad := 9
		assert.ErrorIs(t, s.Update(ctx, "alice", id, shelf.ItemPatch{Rating: &bad}), shelf.ErrInvalidRating)
		assert.ErrorIs(t, s.Update(ctx, "bob", id, shelf.ItemPatch{Rating: &rating}), shelf.ErrItemNotFound)
		assert.ErrorIs(t, s.Update(ctx, "alice", uuid.New(), shelf.ItemPatch{Rating: &rating}), shelf.ErrItemNotFound)
	})
}

func TestStore_Delete(t *testing.T) {
	forEachStore(t, func(t *testing.T, s testStore) {
		ctx := context.Background()

		id, err := s.Create(ctx, "alice", fields("A", 0, 1))
		require.NoError(t, err)

		assert.ErrorIs(t, s.Delete(ctx, "bob", id), shelf.ErrItemNotFound)
		require.NoError(t, s.Delete(ctx, "alice", id))
		assert.ErrorIs(t, s.Delete(ctx, "alice", id), shelf.ErrItemNotFound)

		items, err := s.List(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}

func TestStore_SwapPositions(t *testing.T) {
	forEachStore(t, func(t *testing.T, s testStore) {
		ctx := context.Background()

		a, err := s.Create(ctx, "alice", fields("A", 0, 1))
		require.NoError(t, err)
		b, err := s.Create(ctx, "alice", fields("B", 1, 7))
		require.NoError(t, err)

		require.NoError(t, s.SwapPositions(ctx, "alice", a, b))

		items, err := s.List(ctx, "alice")
		require.NoError(t, err)
		byID := map[uuid.UUID]shelf.Item{}
		for _, it := range items {
			byID[it.ID] = it
		}
		assert.Equal(t, shelf.Position{PageIndex: 1, SlotID: 7}, byID[a].Position())
		assert.Equal(t, shelf.Position{PageIndex: 0, SlotID: 1}, byID[b].Position())
		assert.Equal(t, 2, byID[a].Version)
		assert.Equal(t, 2, byID[b].Version)
	})
}

func TestStore_SwapPositionsFailureLeavesBothInPlace(t *testing.T) {
	forEachStore(t, func(t *testing.T, s testStore) {
		ctx := context.Background()

		a, err := s.Create(ctx, "alice", fields("A", 0, 1))
		require.NoError(t, err)
		foreign, err := s.Create(ctx, "bob", fields("B", 0, 2))
		require.NoError(t, err)

		assert.ErrorIs(t, s.SwapPositions(ctx, "alice", a, foreign), shelf.ErrItemNotFound)
		assert.ErrorIs(t, s.SwapPositions(ctx, "alice", a, uuid.New()), shelf.ErrItemNotFound)
		assert.ErrorIs(t, s.SwapPositions(ctx, "alice", a, a), shelf.ErrSameItem)

		items, err := s.List(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, shelf.Position{PageIndex: 0, SlotID: 1}, items[0].Position())
		assert.Equal(t, 1, items[0].Version)
	})
}

func TestStore_History(t *testing.T) {
	forEachStore(t, func(t *testing.T, s testStore) {
		ctx := context.Background()

		a, err := s.Create(ctx, "alice", fields("A", 0, 1))
		require.NoError(t, err)
		b, err := s.Create(ctx, "alice", fields("B", 0, 2))
		require.NoError(t, err)
		require.NoError(t, s.SwapPositions(ctx, "alice", a, b))
		require.NoError(t, s.Delete(ctx, "alice", b))
		_, err = s.Create(ctx, "bob", fields("C", 0, 1))
		require.NoError(t, err)

		history, err := s.History(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, history, 4)

		var types []string
		for i, h := range history {
			assert.Equal(t, i+1, h.Version)
			types = append(types, h.Type)
		}
		assert.Equal(t, []string{"ItemShelved", "ItemShelved", "ItemsSwapped", "ItemRemoved"}, types)

		var swapped shelf.ItemsSwappedEvent
		require.NoError(t, json.Unmarshal(history[2].Data, &swapped))
		assert.Equal(t, a, swapped.SourceID)
		assert.Equal(t, shelf.Position{PageIndex: 0, SlotID: 2}, swapped.TargetFrom)
	})
}

func TestSQLStore_MigrateIsIdempotent(t *testing.T) {
	s := newSQLiteStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestMemoryStore_PutBypassesValidation(t *testing.T) {
	s := NewMemoryStore()
	s.Put(shelf.Item{OwnerID: "alice", Title: "ghost", PageIndex: 0, SlotID: 99})

	items, err := s.List(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 99, items[0].SlotID)
	assert.NotEqual(t, uuid.Nil, items[0].ID)
}
