package ingest_test

import (
	"testing"

	"main/internal/ingest"
	"main/internal/schema"
)

func newParser(t *testing.T) *ingest.Parser {
	t.Helper()
	p, err := ingest.NewParser(ingest.Config{TickSize: 0.5, LotSize: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p
}

func TestNewParser_RejectsNonPositiveTickOrLot(t *testing.T) {
	if _, err := ingest.NewParser(ingest.Config{TickSize: 0, LotSize: 1}); err == nil {
		t.Fatal("expected error for zero tick_size")
	}
	if _, err := ingest.NewParser(ingest.Config{TickSize: 1, LotSize: 0}); err == nil {
		t.Fatal("expected error for zero lot_size")
	}
}

func TestToTicks_RoundsToNearestTick(t *testing.T) {
	p := newParser(t)
	if got := p.ToTicks(100.25); got != 201 {
		t.Fatalf("ToTicks(100.25) = %v, want 201 (100.25/0.5 = 200.5 -> round to 201)", got)
	}
	if got := p.ToTicks(100.0); got != 200 {
		t.Fatalf("ToTicks(100.0) = %v, want 200", got)
	}
}

func TestParse_DepthAndTradeRows(t *testing.T) {
	p := newParser(t)
	rows := []ingest.Row{
		{EventFlags: int(schema.MarketEventKindTrade), ExchTsNano: 200, LocalTsNano: 300, Side: schema.SideBuy, Price: 100, Qty: 5},
		{EventFlags: int(schema.MarketEventKindDepth), ExchTsNano: 100, LocalTsNano: 150, Side: schema.SideSell, Price: 100.5, Qty: 3},
	}
	events, err := p.Parse(rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %v, want 2", len(events))
	}
	// Sorted by min(exch_ts, local_ts): the DEPTH row (min=100) precedes
	// the TRADE row (min=200).
	if events[0].Kind != schema.MarketEventKindDepth || events[0].PriceTicks != 201 {
		t.Fatalf("events[0] = %+v", events[0])
	}
	if events[1].Kind != schema.MarketEventKindTrade || events[1].Qty != 5 {
		t.Fatalf("events[1] = %+v", events[1])
	}
}

func TestParse_GroupsSnapshotRowsBySameTimestamp(t *testing.T) {
	p := newParser(t)
	rows := []ingest.Row{
		{EventFlags: int(schema.MarketEventKindDepthSnapshot), ExchTsNano: 100, LocalTsNano: 100, Side: schema.SideBuy, Price: 99, Qty: 10},
		{EventFlags: int(schema.MarketEventKindDepthSnapshot), ExchTsNano: 100, LocalTsNano: 100, Side: schema.SideSell, Price: 101, Qty: 8},
	}
	events, err := p.Parse(rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %v, want 1 (rows should merge into one snapshot)", len(events))
	}
	snap := events[0]
	if len(snap.SnapshotBids) != 1 || len(snap.SnapshotAsks) != 1 {
		t.Fatalf("snapshot = %+v, want one bid and one ask level", snap)
	}
}

func TestParse_RejectsUnknownEventKind(t *testing.T) {
	p := newParser(t)
	if _, err := p.Parse([]ingest.Row{{EventFlags: 99}}); err == nil {
		t.Fatal("expected error for unknown event_flags kind")
	}
}
