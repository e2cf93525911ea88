package depth_test

import (
	"testing"

	"main/internal/depth"
	"main/internal/schema"
)

func TestApplyEvent_DepthBuildsLadder(t *testing.T) {
	d := depth.New()
	must(t, d.ApplyEvent(schema.MarketEvent{Kind: schema.MarketEventKindDepth, Side: schema.SideBuy, PriceTicks: 100, Qty: 5}))
	must(t, d.ApplyEvent(schema.MarketEvent{Kind: schema.MarketEventKindDepth, Side: schema.SideBuy, PriceTicks: 99, Qty: 3}))
	must(t, d.ApplyEvent(schema.MarketEvent{Kind: schema.MarketEventKindDepth, Side: schema.SideSell, PriceTicks: 101, Qty: 4}))

	bid, ok := d.BestBid()
	if !ok || bid != 100 {
		t.Fatalf("BestBid = %v, %v, want 100, true", bid, ok)
	}
	ask, ok := d.BestAsk()
	if !ok || ask != 101 {
		t.Fatalf("BestAsk = %v, %v, want 101, true", ask, ok)
	}
}

func TestApplyEvent_DepthZeroQtyDeletesLevel(t *testing.T) {
	d := depth.New()
	must(t, d.ApplyEvent(schema.MarketEvent{Kind: schema.MarketEventKindDepth, Side: schema.SideBuy, PriceTicks: 100, Qty: 5}))
	must(t, d.ApplyEvent(schema.MarketEvent{Kind: schema.MarketEventKindDepth, Side: schema.SideBuy, PriceTicks: 100, Qty: 0}))
	if _, ok := d.BestBid(); ok {
		t.Fatalf("BestBid should be absent after zero-qty update")
	}
}

func TestApplyEvent_TradeDecrementsOppositeSide(t *testing.T) {
	d := depth.New()
	must(t, d.ApplyEvent(schema.MarketEvent{Kind: schema.MarketEventKindDepth, Side: schema.SideSell, PriceTicks: 101, Qty: 10}))
	// a buy-side aggressor trade hits the resting ask.
	must(t, d.ApplyEvent(schema.MarketEvent{Kind: schema.MarketEventKindTrade, Side: schema.SideBuy, PriceTicks: 101, Qty: 4}))
	if got := d.QtyAt(schema.SideSell, 101); got != 6 {
		t.Fatalf("QtyAt(ask,101) = %v, want 6", got)
	}
}

func TestApplyEvent_DepthClearRemovesBoundedRange(t *testing.T) {
	d := depth.New()
	must(t, d.ApplyEvent(schema.MarketEvent{Kind: schema.MarketEventKindDepth, Side: schema.SideBuy, PriceTicks: 100, Qty: 5}))
	must(t, d.ApplyEvent(schema.MarketEvent{Kind: schema.MarketEventKindDepth, Side: schema.SideBuy, PriceTicks: 95, Qty: 5}))
	must(t, d.ApplyEvent(schema.MarketEvent{Kind: schema.MarketEventKindDepthClear, Side: schema.SideBuy, PriceTicks: 98, ClearInclusive: false}))
	if got := d.QtyAt(schema.SideBuy, 100); got != 5 {
		t.Fatalf("level above clear bound should survive, got %v", got)
	}
	if got := d.QtyAt(schema.SideBuy, 95); got != 0 {
		t.Fatalf("level below clear bound should be removed, got %v", got)
	}
}

// TestApplyEvent_DepthCrossTrimsStaleOppositeSide checks that a fresh
// DEPTH update on one side survives a resulting cross, and it is the
// stale level on the other side that gets removed.
func TestApplyEvent_DepthCrossTrimsStaleOppositeSide(t *testing.T) {
	d := depth.New()
	must(t, d.ApplyEvent(schema.MarketEvent{Kind: schema.MarketEventKindDepth, Side: schema.SideBuy, PriceTicks: 100, Qty: 5}))
	// A fresh, lower ask crosses the stale bid; the ask update must win.
	must(t, d.ApplyEvent(schema.MarketEvent{Kind: schema.MarketEventKindDepth, Side: schema.SideSell, PriceTicks: 99, Qty: 5}))

	ask, ok := d.BestAsk()
	if !ok || ask != 99 {
		t.Fatalf("BestAsk = %v, %v, want 99, true (fresh update must survive)", ask, ok)
	}
	if _, ok := d.BestBid(); ok {
		t.Fatalf("BestBid should have been trimmed as the stale side of the cross")
	}
}

func TestApplyEvent_SnapshotRejectsCrossedPayload(t *testing.T) {
	d := depth.New()
	err := d.ApplyEvent(schema.MarketEvent{
		Kind:         schema.MarketEventKindDepthSnapshot,
		SnapshotBids: []schema.DepthLevel{{PriceTicks: 105, Qty: 1}},
		SnapshotAsks: []schema.DepthLevel{{PriceTicks: 100, Qty: 1}},
	})
	if err == nil {
		t.Fatalf("expected ErrCorruptSnapshot for a crossed snapshot")
	}
}

func TestApplyEvent_SnapshotReplacesLadder(t *testing.T) {
	d := depth.New()
	must(t, d.ApplyEvent(schema.MarketEvent{Kind: schema.MarketEventKindDepth, Side: schema.SideBuy, PriceTicks: 50, Qty: 1}))
	must(t, d.ApplyEvent(schema.MarketEvent{
		Kind:         schema.MarketEventKindDepthSnapshot,
		SnapshotBids: []schema.DepthLevel{{PriceTicks: 100, Qty: 2}},
		SnapshotAsks: []schema.DepthLevel{{PriceTicks: 101, Qty: 3}},
	}))
	if got := d.QtyAt(schema.SideBuy, 50); got != 0 {
		t.Fatalf("pre-snapshot level should be gone, got %v", got)
	}
	bid, _ := d.BestBid()
	if bid != 100 {
		t.Fatalf("BestBid after snapshot = %v, want 100", bid)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
