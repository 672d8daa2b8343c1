// internal/api/app.go
package api

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"shelfboard/internal/catalog"
	"shelfboard/internal/clients"
	"shelfboard/internal/config"
	"shelfboard/internal/layout"
	"shelfboard/internal/owner"
	"shelfboard/internal/readinglist"
	"shelfboard/internal/shelf"
	"shelfboard/internal/sqlutil"
	"shelfboard/internal/storage"
)

// App is a fully wired server.
type App struct {
	DB      *sql.DB
	Dialect sqlutil.Dialect
	Store   *storage.SQLStore
	Layout  *layout.Layout
	Boards  *shelf.Registry
	Handler http.Handler
}

// OpenDB opens and migrates the configured database.
func OpenDB(ctx context.Context, cfg config.Database) (*sql.DB, sqlutil.Dialect, error) {
	d, err := sqlutil.ParseDialect(cfg.Driver)
	if err != nil {
		return nil, "", err
	}
	db, err := sqlutil.Open(d, cfg.URL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("failed to reach database: %w", err)
	}
	if err := Migrate(ctx, db, d); err != nil {
		db.Close()
		return nil, "", err
	}
	return db, d, nil
}

// Migrate creates every table the server uses. It is safe to run repeatedly.
func Migrate(ctx context.Context, db *sql.DB, d sqlutil.Dialect) error {
	if err := storage.NewSQLStore(db, d).Migrate(ctx); err != nil {
		return fmt.Errorf("migrate shelf items: %w", err)
	}
	if err := owner.Migrate(ctx, db, d); err != nil {
		return fmt.Errorf("migrate owners: %w", err)
	}
	if err := readinglist.Migrate(ctx, db, d); err != nil {
		return fmt.Errorf("migrate reading list: %w", err)
	}
	return nil
}

// ShelfOptions translates configuration into board options.
func ShelfOptions(cfg config.Shelf, logger *log.Logger) shelf.Options {
	opts := shelf.DefaultOptions()
	opts.AllowOverflow = cfg.AllowOverflow
	if cfg.MaxPages > 0 {
		opts.MaxPages = cfg.MaxPages
	}
	if cfg.DragThreshold > 0 {
		opts.DragThreshold = cfg.DragThreshold
	}
	if cfg.IdleMinutes >= 0 {
		opts.IdleTTL = time.Duration(cfg.IdleMinutes) * time.Minute
	}
	opts.Logger = logger
	return opts
}

// New builds the server from cfg over an open, migrated database.
func New(cfg *config.Config, db *sql.DB, d sqlutil.Dialect, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.Default()
	}
	l, err := layout.LoadFile(cfg.Shelf.LayoutFile)
	if err != nil {
		return nil, err
	}

	store := storage.NewSQLStore(db, d)
	boards := shelf.NewRegistry(store, l, ShelfOptions(cfg.Shelf, logger))

	catalogOpts := catalog.DefaultOptions()
	catalogOpts.MaxResults = cfg.Catalog.MaxResults
	catalogOpts.RequestsPerMinute = cfg.Catalog.RequestsPerMinute
	catalogOpts.Logger = logger
	catalogSvc := catalog.NewService(
		clients.NewGoogleBooksClient(cfg.Catalog.GoogleBooksURL, cfg.Catalog.GoogleBooksAPIKey),
		clients.NewOpenLibraryClient(cfg.Catalog.OpenLibraryURL),
		catalogOpts,
	)

	handler := NewRouter(Deps{
		Owners:      owner.NewService(db, d, nil),
		Tokens:      owner.NewTokenIssuer(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL()),
		Boards:      boards,
		Catalog:     catalogSvc,
		ReadingList: readinglist.NewService(db, d),
	})

	return &App{
		DB:      db,
		Dialect: d,
		Store:   store,
		Layout:  l,
		Boards:  boards,
		Handler: handler,
	}, nil
}
