package shelf

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var outcomeAttr = attribute.Key("outcome")

type instruments struct {
	added    metric.Int64Counter
	swaps    metric.Int64Counter
	warnings metric.Int64Counter
	stale    metric.Int64Counter
}

func newInstruments() *instruments {
	meter := otel.Meter("shelfboard/shelf")
	m := &instruments{}
	// Instrument creation only fails on invalid names; the no-op fallback
	// keeps the board usable either way.
	m.added, _ = meter.Int64Counter("shelf.items.added",
		metric.WithDescription("Items placed on a shelf"))
	m.swaps, _ = meter.Int64Counter("shelf.swaps",
		metric.WithDescription("Swap requests by outcome"))
	m.warnings, _ = meter.Int64Counter("shelf.sync.integrity_warnings",
		metric.WithDescription("Stored items skipped during sync"))
	m.stale, _ = meter.Int64Counter("shelf.sync.stale_discarded",
		metric.WithDescription("Sync results discarded because a newer sync was applied"))
	return m
}

func (m *instruments) itemAdded(ctx context.Context) {
	if m == nil || m.added == nil {
		return
	}
	m.added.Add(ctx, 1)
}

func (m *instruments) swap(ctx context.Context, ok bool) {
	if m == nil || m.swaps == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.swaps.Add(ctx, 1, metric.WithAttributes(outcomeAttr.String(outcome)))
}

func (m *instruments) integrityWarnings(ctx context.Context, n int) {
	if m == nil || m.warnings == nil || n == 0 {
		return
	}
	m.warnings.Add(ctx, int64(n))
}

func (m *instruments) staleSync(ctx context.Context) {
	if m == nil || m.stale == nil {
		return
	}
	m.stale.Add(ctx, 1)
}
