// internal/shelf/handler.go
package shelf

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"shelfboard/internal/owner"
	"shelfboard/internal/rearrange"
)

type Handler struct {
	registry *Registry
}

func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// Routes mounts the shelf endpoints on r. Requests must carry an owner in
// their context.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.HandleView)
	r.Post("/sync", h.HandleSync)
	r.Post("/items", h.HandleAddItem)
	r.Patch("/items/{id}", h.HandleUpdateItem)
	r.Delete("/items/{id}", h.HandleRemoveItem)
	r.Post("/swap", h.HandleSwap)
	r.Post("/pointer", h.HandlePointer)
	r.Post("/pages/next", h.HandleNextPage)
	r.Post("/pages/prev", h.HandlePrevPage)
	r.Put("/pages/active", h.HandleSetActivePage)
	r.Get("/stats", h.HandleStats)
	r.Get("/history", h.HandleHistory)
}

func (h *Handler) board(r *http.Request) (*Board, bool) {
	ownerID, ok := owner.OwnerFromContext(r.Context())
	if !ok {
		return nil, false
	}
	return h.registry.Board(ownerID), true
}

// withBoard resolves the caller's board, loading it on first use.
func (h *Handler) withBoard(fn func(w http.ResponseWriter, r *http.Request, b *Board)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, ok := h.board(r)
		if !ok {
			http.Error(w, "missing owner", http.StatusUnauthorized)
			return
		}
		if b.View().Generation == 0 {
			if _, err := b.Sync(r.Context()); err != nil {
				writeError(w, err)
				return
			}
		}
		fn(w, r, b)
	}
}

func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	h.withBoard(func(w http.ResponseWriter, r *http.Request, b *Board) {
		writeJSON(w, http.StatusOK, b.View())
	})(w, r)
}

func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	h.withBoard(func(w http.ResponseWriter, r *http.Request, b *Board) {
		res, err := b.Sync(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Sync SyncResult `json:"sync"`
			View View       `json:"view"`
		}{res, b.View()})
	})(w, r)
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	h.withBoard(func(w http.ResponseWriter, r *http.Request, b *Board) {
		var fields ItemFields
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		item, err := b.AddItem(r.Context(), fields)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, item)
	})(w, r)
}

func (h *Handler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	h.withBoard(func(w http.ResponseWriter, r *http.Request, b *Board) {
		id, ok := itemID(w, r)
		if !ok {
			return
		}
		var patch ItemPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := b.UpdateItem(r.Context(), id, patch); err != nil {
			writeError(w, err)
			return
		}
		item, found := b.Item(id)
		if !found {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, item)
	})(w, r)
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	h.withBoard(func(w http.ResponseWriter, r *http.Request, b *Board) {
		id, ok := itemID(w, r)
		if !ok {
			return
		}
		if err := b.RemoveItem(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})(w, r)
}

func (h *Handler) HandleSwap(w http.ResponseWriter, r *http.Request) {
	h.withBoard(func(w http.ResponseWriter, r *http.Request, b *Board) {
		var req struct {
			SourceID uuid.UUID `json:"source_id"`
			TargetID uuid.UUID `json:"target_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := b.Swap(r.Context(), req.SourceID, req.TargetID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, b.View())
	})(w, r)
}

func (h *Handler) HandlePointer(w http.ResponseWriter, r *http.Request) {
	h.withBoard(func(w http.ResponseWriter, r *http.Request, b *Board) {
		var ev rearrange.PointerEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out, err := b.HandlePointer(r.Context(), ev)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	})(w, r)
}

func (h *Handler) HandleNextPage(w http.ResponseWriter, r *http.Request) {
	h.withBoard(func(w http.ResponseWriter, r *http.Request, b *Board) {
		writeJSON(w, http.StatusOK, b.NextPage())
	})(w, r)
}

func (h *Handler) HandlePrevPage(w http.ResponseWriter, r *http.Request) {
	h.withBoard(func(w http.ResponseWriter, r *http.Request, b *Board) {
		writeJSON(w, http.StatusOK, b.PrevPage())
	})(w, r)
}

func (h *Handler) HandleSetActivePage(w http.ResponseWriter, r *http.Request) {
	h.withBoard(func(w http.ResponseWriter, r *http.Request, b *Board) {
		var req struct {
			Index int `json:"index"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		v, ok := b.SetActivePage(req.Index)
		if !ok {
			writeError(w, ErrInvalidIndex)
			return
		}
		writeJSON(w, http.StatusOK, v)
	})(w, r)
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	h.withBoard(func(w http.ResponseWriter, r *http.Request, b *Board) {
		writeJSON(w, http.StatusOK, b.Stats())
	})(w, r)
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner.OwnerFromContext(r.Context())
	if !ok {
		http.Error(w, "missing owner", http.StatusUnauthorized)
		return
	}
	reader, ok := h.registry.Store().(HistoryReader)
	if !ok {
		http.Error(w, "history not recorded by this store", http.StatusNotImplemented)
		return
	}
	entries, err := reader.History(r.Context(), ownerID)
	if err != nil {
		writeError(w, storeErr("load history", err))
		return
	}
	if entries == nil {
		entries = []HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func itemID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid item ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// StatusFor maps board errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNoFreeSlot),
		errors.Is(err, ErrDuplicateItem),
		errors.Is(err, ErrSlotConflict),
		errors.Is(err, rearrange.ErrBusy),
		errors.Is(err, rearrange.ErrNotPressed),
		errors.Is(err, rearrange.ErrPressed):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidItem),
		errors.Is(err, ErrInvalidRating),
		errors.Is(err, ErrInvalidIndex),
		errors.Is(err, ErrSameItem):
		return http.StatusBadRequest
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), StatusFor(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
