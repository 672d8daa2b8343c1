// Package config loads server settings: built-in defaults, then an optional
// TOML file, then environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Port      string    `toml:"port"`
	Database  Database  `toml:"database"`
	Shelf     Shelf     `toml:"shelf"`
	Catalog   Catalog   `toml:"catalog"`
	Auth      Auth      `toml:"auth"`
	Telemetry Telemetry `toml:"telemetry"`
}

type Database struct {
	Driver string `toml:"driver"`
	URL    string `toml:"url"`
}

type Shelf struct {
	LayoutFile    string  `toml:"layout_file"`
	AllowOverflow bool    `toml:"allow_overflow"`
	MaxPages      int     `toml:"max_pages"`
	DragThreshold float64 `toml:"drag_threshold"`
	// IdleMinutes drops a board from memory after that long unused; 0 never does.
	IdleMinutes int `toml:"idle_minutes"`
}

type Catalog struct {
	GoogleBooksURL    string `toml:"google_books_url"`
	GoogleBooksAPIKey string `toml:"google_books_api_key"`
	OpenLibraryURL    string `toml:"open_library_url"`
	MaxResults        int    `toml:"max_results"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
}

type Auth struct {
	TokenSecret     string `toml:"token_secret"`
	TokenTTLMinutes int    `toml:"token_ttl_minutes"`
}

type Telemetry struct {
	Endpoint    string `toml:"otlp_endpoint"`
	ServiceName string `toml:"service_name"`
}

func (a Auth) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLMinutes) * time.Minute
}

func Default() *Config {
	return &Config{
		Port: "8080",
		Database: Database{
			Driver: "sqlite",
			URL:    "shelfboard.db",
		},
		Shelf: Shelf{
			AllowOverflow: true,
			MaxPages:      64,
			DragThreshold: 5,
			IdleMinutes:   30,
		},
		Catalog: Catalog{
			GoogleBooksURL:    "https://www.googleapis.com/books/v1",
			OpenLibraryURL:    "https://openlibrary.org",
			MaxResults:        8,
			RequestsPerMinute: 60,
		},
		Auth: Auth{
			TokenSecret:     "dev_secret_change_in_prod",
			TokenTTLMinutes: 24 * 60,
		},
		Telemetry: Telemetry{
			ServiceName: "shelfboard",
		},
	}
}

// Load returns the defaults overlaid with path (if non-empty) and then with
// environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.Database.Driver = getEnv("DATABASE_DRIVER", c.Database.Driver)
	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)

	c.Shelf.LayoutFile = getEnv("SHELF_LAYOUT_FILE", c.Shelf.LayoutFile)
	c.Shelf.AllowOverflow = getEnvAsBool("SHELF_ALLOW_OVERFLOW", c.Shelf.AllowOverflow)
	c.Shelf.MaxPages = getEnvAsInt("SHELF_MAX_PAGES", c.Shelf.MaxPages)
	c.Shelf.DragThreshold = getEnvAsFloat("SHELF_DRAG_THRESHOLD", c.Shelf.DragThreshold)
	c.Shelf.IdleMinutes = getEnvAsInt("SHELF_IDLE_MINUTES", c.Shelf.IdleMinutes)

	c.Catalog.GoogleBooksURL = getEnv("GOOGLE_BOOKS_URL", c.Catalog.GoogleBooksURL)
	c.Catalog.GoogleBooksAPIKey = getEnv("GOOGLE_BOOKS_API_KEY", c.Catalog.GoogleBooksAPIKey)
	c.Catalog.OpenLibraryURL = getEnv("OPEN_LIBRARY_URL", c.Catalog.OpenLibraryURL)
	c.Catalog.MaxResults = getEnvAsInt("CATALOG_MAX_RESULTS", c.Catalog.MaxResults)
	c.Catalog.RequestsPerMinute = getEnvAsInt("CATALOG_RPM", c.Catalog.RequestsPerMinute)

	c.Auth.TokenSecret = getEnv("TOKEN_SECRET", c.Auth.TokenSecret)
	c.Auth.TokenTTLMinutes = getEnvAsInt("TOKEN_TTL_MINUTES", c.Auth.TokenTTLMinutes)

	c.Telemetry.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Telemetry.Endpoint)
	c.Telemetry.ServiceName = getEnv("OTEL_SERVICE_NAME", c.Telemetry.ServiceName)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return v
	}
	return defaultValue
}
