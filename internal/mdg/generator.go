// Package mdg generates synthetic schema.MarketEvent streams for
// tests and examples that need a plausible historical feed without a
// real recorded dataset.
package mdg

import (
	"main/internal/schema"
)

// Generator produces a deterministic alternating DEPTH/TRADE stream
// around a walking mid price for a single instrument.
type Generator struct {
	tickSize    float64
	feedLatency int64

	basePriceTicks schema.PriceTick
	spreadTicks    schema.PriceTick
	qty            schema.Quantity

	exchTsNano int64
	index      int
}

// Config parameterizes the synthetic stream.
type Config struct {
	TickSize       float64
	FeedLatencyNanos int64
	BasePriceTicks schema.PriceTick
	SpreadTicks    schema.PriceTick
	Qty            schema.Quantity
	StartExchTsNano int64
}

// New builds a generator from cfg, defaulting a non-positive
// SpreadTicks to 2 and a non-positive Qty to 1; other fields are used
// as given.
func New(cfg Config) *Generator {
	if cfg.SpreadTicks <= 0 {
		cfg.SpreadTicks = 2
	}
	if cfg.Qty <= 0 {
		cfg.Qty = 1
	}
	return &Generator{
		tickSize:       cfg.TickSize,
		feedLatency:    cfg.FeedLatencyNanos,
		basePriceTicks: cfg.BasePriceTicks,
		spreadTicks:    cfg.SpreadTicks,
		qty:            cfg.Qty,
		exchTsNano:     cfg.StartExchTsNano,
	}
}

// Next returns the next synthetic event. Even indices post resting
// depth on alternating sides of a slowly walking mid; odd indices
// print a trade against the side just posted, keeping the book
// non-empty for queue-position tests.
func (g *Generator) Next() schema.MarketEvent {
	drift := schema.PriceTick(g.index / 4)
	mid := g.basePriceTicks + drift
	side := schema.SideBuy
	priceTicks := mid - g.spreadTicks
	if g.index%4 >= 2 {
		side = schema.SideSell
		priceTicks = mid + g.spreadTicks
	}

	kind := schema.MarketEventKindDepth
	if g.index%2 == 1 {
		kind = schema.MarketEventKindTrade
	}

	evt := schema.MarketEvent{
		Kind:        kind,
		ExchTsNano:  g.exchTsNano,
		LocalTsNano: g.exchTsNano + g.feedLatency,
		Side:        side,
		PriceTicks:  priceTicks,
		Qty:         g.qty,
	}

	g.index++
	g.exchTsNano += 1_000_000 // 1ms cadence between synthetic records
	return evt
}

// NextN returns the next n synthetic events.
func (g *Generator) NextN(n int) []schema.MarketEvent {
	events := make([]schema.MarketEvent, n)
	for i := range events {
		events[i] = g.Next()
	}
	return events
}
