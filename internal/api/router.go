// internal/api/router.go
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"shelfboard/internal/catalog"
	"shelfboard/internal/owner"
	"shelfboard/internal/readinglist"
	"shelfboard/internal/shelf"
)

// Deps are the services the HTTP surface is built from. Catalog may be nil,
// in which case search and reviews answer 503.
type Deps struct {
	Owners      owner.Service
	Tokens      *owner.TokenIssuer
	Boards      *shelf.Registry
	Catalog     catalog.Service
	ReadingList readinglist.Service
}

// NewRouter wires every handler behind one chi router. Everything except
// health, registration and login requires a bearer token.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	owners := owner.NewHandler(d.Owners, d.Tokens)
	r.Post("/owners", owners.HandleRegister)
	r.Post("/login", owners.HandleLogin)

	r.Group(func(r chi.Router) {
		r.Use(owner.Middleware(d.Tokens))

		r.Route("/shelf", shelf.NewHandler(d.Boards).Routes)

		search := func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, catalog.ErrUnavailable.Error(), http.StatusServiceUnavailable)
		}
		if d.Catalog != nil {
			search = catalog.NewHandler(d.Catalog).HandleSearch
		}
		r.Get("/catalog/search", search)

		list := readinglist.NewHandler(d.ReadingList, d.Catalog)
		r.Route("/reading-list", func(r chi.Router) {
			r.Get("/", list.HandleList)
			r.Post("/", list.HandleAdd)
			r.Get("/reviews", list.HandleReviews)
			r.Delete("/{id}", list.HandleRemove)
		})
	})

	return r
}
