package readinglist

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelfboard/internal/catalog"
	"shelfboard/internal/owner"
	"shelfboard/internal/sqlutil"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	db, err := sqlutil.Open(sqlutil.SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(context.Background(), db, sqlutil.SQLite))

	svc := NewService(db, sqlutil.SQLite).(*service)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc
}

func TestService_AddListRemove(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Add(ctx, "alice", "  Emma ", " Jane Austen")
	require.NoError(t, err)
	assert.Equal(t, "Emma", first.Title)
	assert.Equal(t, "Jane Austen", first.Author)

	_, err = svc.Add(ctx, "alice", "Dune", "Frank Herbert")
	require.NoError(t, err)
	_, err = svc.Add(ctx, "bob", "Ulysses", "James Joyce")
	require.NoError(t, err)

	entries, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Emma", entries[0].Title)
	assert.Equal(t, "Dune", entries[1].Title)

	assert.ErrorIs(t, svc.Remove(ctx, "bob", first.ID), ErrNotFound)
	require.NoError(t, svc.Remove(ctx, "alice", first.ID))

	entries, err = svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Dune", entries[0].Title)
}

func TestService_AddRequiresTitleAndAuthor(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Add(context.Background(), "alice", "Dune", "  ")
	assert.ErrorIs(t, err, ErrMissingField)
	_, err = svc.Add(context.Background(), "alice", "", "Frank Herbert")
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestService_ListEmptyIsNotNil(t *testing.T) {
	entries, err := newTestService(t).List(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

type stubCatalog struct {
	got []catalog.Entry
}

func (s *stubCatalog) Search(ctx context.Context, q string) ([]catalog.Result, error) {
	return nil, nil
}

func (s *stubCatalog) Reviews(ctx context.Context, entries []catalog.Entry) (catalog.ReviewSummary, error) {
	s.got = entries
	return catalog.ReviewSummary{AverageRating: "4.0", RatedCount: len(entries)}, nil
}

func newRouter(h *Handler, ownerID string) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(owner.WithOwner(req.Context(), ownerID)))
		})
	})
	r.Get("/reading-list", h.HandleList)
	r.Post("/reading-list", h.HandleAdd)
	r.Get("/reading-list/reviews", h.HandleReviews)
	r.Delete("/reading-list/{id}", h.HandleRemove)
	return r
}

func TestHandler_RoundTrip(t *testing.T) {
	cat := &stubCatalog{}
	router := newRouter(NewHandler(newTestService(t), cat), "alice")

	body := bytes.NewBufferString(`{"title":"Dune","author":"Frank Herbert"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reading-list", body))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created Entry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, "alice", created.OwnerID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reading-list", bytes.NewBufferString(`{"title":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reading-list/reviews", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []catalog.Entry{{Title: "Dune", Author: "Frank Herbert"}}, cat.got)
	assert.Contains(t, rec.Body.String(), `"average_rating":"4.0"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/reading-list/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/reading-list/"+created.ID.String(), nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reading-list", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
