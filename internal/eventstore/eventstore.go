package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"shelfboard/internal/sqlutil"
)

var (
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
	ErrInvalidVersion      = errors.New("invalid version number")
)

// Event is one entry in an aggregate's stream.
type Event struct {
	ID            int64           `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	EventData     json.RawMessage `json:"event_data"`
	Version       int             `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
}

// EventStore appends events inside a caller's transaction so the event and
// the state change it describes commit together.
type EventStore struct {
	dialect sqlutil.Dialect
	tracer  trace.Tracer
}

func NewEventStore(d sqlutil.Dialect) *EventStore {
	return &EventStore{
		dialect: d,
		tracer:  otel.Tracer("shelfboard/eventstore"),
	}
}

// Schema returns the DDL for the events table.
func (es *EventStore) Schema() string {
	if es.dialect == sqlutil.Postgres {
		return `
		CREATE TABLE IF NOT EXISTS events (
			id BIGSERIAL PRIMARY KEY,
			aggregate_id TEXT NOT NULL,
			aggregate_type TEXT NOT NULL,
			event_type TEXT NOT NULL,
			event_data JSONB NOT NULL,
			version INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (aggregate_id, version)
		);`
	}
	return `
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			aggregate_id TEXT NOT NULL,
			aggregate_type TEXT NOT NULL,
			event_type TEXT NOT NULL,
			event_data TEXT NOT NULL,
			version INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			UNIQUE (aggregate_id, version)
		);`
}

// AppendEvents appends events to aggregateID's stream within tx, failing with
// ErrConcurrencyConflict when the stream is not at expectedVersion.
func (es *EventStore) AppendEvents(ctx context.Context, tx *sql.Tx, aggregateID, aggregateType string, expectedVersion int, events []Event) error {
	ctx, span := es.tracer.Start(ctx, "eventstore.append",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID),
			attribute.String("aggregate.type", aggregateType),
			attribute.Int("expected.version", expectedVersion),
			attribute.Int("event.count", len(events)),
		),
	)
	defer span.End()

	if expectedVersion < 0 {
		return ErrInvalidVersion
	}

	currentVersion, err := es.CurrentVersion(ctx, tx, aggregateID)
	if err != nil {
		return err
	}

	// Optimistic concurrency check
	if currentVersion != expectedVersion {
		span.SetAttributes(
			attribute.Int("actual.version", currentVersion),
			attribute.Bool("conflict.detected", true),
		)
		return ErrConcurrencyConflict
	}

	stmt, err := tx.PrepareContext(ctx, es.dialect.Rebind(`
		INSERT INTO events (aggregate_id, aggregate_type, event_type, event_data, version, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`))
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, event := range events {
		version := expectedVersion + i + 1

		var eventID int64
		err = stmt.QueryRowContext(
			ctx,
			aggregateID,
			aggregateType,
			event.EventType,
			string(event.EventData),
			version,
			time.Now().UTC(),
		).Scan(&eventID)

		if err != nil {
			// a concurrent writer took this version first
			if sqlutil.IsUniqueViolation(err) {
				return ErrConcurrencyConflict
			}
			return fmt.Errorf("insert event %d: %w", i, err)
		}

		span.AddEvent("event.appended", trace.WithAttributes(
			attribute.Int64("event.id", eventID),
			attribute.Int("event.version", version),
			attribute.String("event.type", event.EventType),
		))
	}

	span.SetAttributes(attribute.Bool("append.success", true))
	return nil
}

// Append marshals data and appends it as the next event of the stream.
func (es *EventStore) Append(ctx context.Context, tx *sql.Tx, aggregateID, aggregateType, eventType string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	version, err := es.CurrentVersion(ctx, tx, aggregateID)
	if err != nil {
		return err
	}
	return es.AppendEvents(ctx, tx, aggregateID, aggregateType, version, []Event{{
		EventType: eventType,
		EventData: raw,
	}})
}

// LoadEvents retrieves an aggregate's events with an optional version range.
// A toVersion of 0 means no upper bound.
func (es *EventStore) LoadEvents(ctx context.Context, q sqlutil.Querier, aggregateID string, fromVersion, toVersion int) ([]Event, error) {
	ctx, span := es.tracer.Start(ctx, "eventstore.load",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID),
			attribute.Int("from.version", fromVersion),
			attribute.Int("to.version", toVersion),
		),
	)
	defer span.End()

	query := `
		SELECT id, aggregate_id, aggregate_type, event_type, event_data, version, created_at
		FROM events
		WHERE aggregate_id = ?
		AND version >= ?
	`
	args := []any{aggregateID, fromVersion}

	if toVersion > 0 {
		query += " AND version <= ?"
		args = append(args, toVersion)
	}
	query += " ORDER BY version ASC"

	rows, err := q.QueryContext(ctx, es.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	events, err := sqlutil.ScanRows(rows, func(rows *sql.Rows) (Event, error) {
		var (
			event Event
			data  []byte
		)
		err := rows.Scan(
			&event.ID,
			&event.AggregateID,
			&event.AggregateType,
			&event.EventType,
			&data,
			&event.Version,
			&event.CreatedAt,
		)
		event.EventData = data
		return event, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}

	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}

// CurrentVersion returns the latest version for an aggregate, 0 if none.
func (es *EventStore) CurrentVersion(ctx context.Context, q sqlutil.Querier, aggregateID string) (int, error) {
	var version int
	err := q.QueryRowContext(ctx, es.dialect.Rebind(`
		SELECT COALESCE(MAX(version), 0)
		FROM events
		WHERE aggregate_id = ?
	`), aggregateID).Scan(&version)

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("query version: %w", err)
	}
	return version, nil
}
