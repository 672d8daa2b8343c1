// internal/readinglist/handler.go
package readinglist

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"shelfboard/internal/catalog"
	"shelfboard/internal/owner"
)

type Handler struct {
	service Service
	catalog catalog.Service
}

// NewHandler builds the reading list handler. catalogSvc backs the reviews
// endpoint and may be nil.
func NewHandler(service Service, catalogSvc catalog.Service) *Handler {
	return &Handler{service: service, catalog: catalogSvc}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := owner.OwnerFromContext(r.Context())
	entries, err := h.service.List(r.Context(), ownerID)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title  string `json:"title"`
		Author string `json:"author"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ownerID, _ := owner.OwnerFromContext(r.Context())
	entry, err := h.service.Add(r.Context(), ownerID, req.Title, req.Author)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid entry ID", http.StatusBadRequest)
		return
	}

	ownerID, _ := owner.OwnerFromContext(r.Context())
	if err := h.service.Remove(r.Context(), ownerID, id); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReviews summarises public ratings for every entry on the list.
func (h *Handler) HandleReviews(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		http.Error(w, catalog.ErrUnavailable.Error(), http.StatusServiceUnavailable)
		return
	}

	ownerID, _ := owner.OwnerFromContext(r.Context())
	entries, err := h.service.List(r.Context(), ownerID)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	lookups := make([]catalog.Entry, 0, len(entries))
	for _, e := range entries {
		lookups = append(lookups, catalog.Entry{Title: e.Title, Author: e.Author})
	}
	summary, err := h.catalog.Reviews(r.Context(), lookups)
	if err != nil {
		http.Error(w, err.Error(), catalog.StatusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrMissingField):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
