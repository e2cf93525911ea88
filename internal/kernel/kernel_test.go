package kernel_test

import (
	"testing"

	"main/internal/exchange"
	"main/internal/kernel"
	"main/internal/latency"
	"main/internal/schema"
)

func newKernel(events []schema.MarketEvent) *kernel.Kernel {
	return kernel.New(events, kernel.Config{
		SymbolID: 1,
		Exchange: exchange.Config{
			TickSize:     0.01,
			LotSize:      1,
			AssetKind:    schema.AssetKindLinear,
			Model:        schema.ExchangeModelPartialFill,
			MakerFeeRate: 0,
			TakerFeeRate: 0.001,
		},
		Latency: latency.Constant{OrderLatencyNanos: 100, FeedLatencyNanos: 50},
	})
}

// TestElapse_SingleTakerFill drives one resting ask through the
// exchange, submits a marketable buy once the strategy observes it
// locally, and checks the fill lands in the account after the
// exchange->local leg's feed latency.
func TestElapse_SingleTakerFill(t *testing.T) {
	events := []schema.MarketEvent{
		{Kind: schema.MarketEventKindDepth, ExchTsNano: 1000, LocalTsNano: 2000, Side: schema.SideSell, PriceTicks: 100, Qty: 10},
	}
	k := newKernel(events)

	more, err := k.Elapse(3000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if more {
		t.Fatal("expected EndOfData (false) once the fixed event stream is exhausted")
	}
	if k.CurrentTimestamp() != 2000 {
		t.Fatalf("currentTimestamp = %v, want 2000 after mirroring the local event", k.CurrentTimestamp())
	}

	id, err := k.SubmitOrder(schema.SideBuy, 100, 5, schema.TIFGTC, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	more, err = k.Elapse(10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if more {
		t.Fatal("expected EndOfData (false) once the order round trip drains")
	}

	if pos := k.Position(); pos != 5 {
		t.Fatalf("position = %v, want 5", pos)
	}
	if bal := k.Balance(); bal >= 0 {
		t.Fatalf("balance = %v, want negative (bought notional + fee)", bal)
	}

	orders := k.Orders()
	for _, o := range orders {
		if o.ID == id {
			t.Fatalf("order %v should be terminal (filled), still open: %+v", id, o)
		}
	}

	fills := k.Fills()
	if len(fills) != 1 {
		t.Fatalf("Fills() = %d entries, want 1", len(fills))
	}
	if fills[0].Qty != 5 {
		t.Fatalf("Fills()[0].Qty = %v, want 5", fills[0].Qty)
	}
	qty, _, balance, _, fees := k.Account()
	if qty != 5 {
		t.Fatalf("Account() qty = %v, want 5", qty)
	}
	if balance != k.Balance() {
		t.Fatalf("Account() balance = %v, want to match Balance() = %v", balance, k.Balance())
	}
	if fees <= 0 {
		t.Fatalf("Account() fees = %v, want > 0 (taker fee charged)", fees)
	}
}

// TestElapse_PostOnlyRejectedWhenMarketable submits a GTX order that
// crosses the resting ask and checks it is expired rather than filled.
func TestElapse_PostOnlyRejectedWhenMarketable(t *testing.T) {
	events := []schema.MarketEvent{
		{Kind: schema.MarketEventKindDepth, ExchTsNano: 1000, LocalTsNano: 1000, Side: schema.SideSell, PriceTicks: 100, Qty: 10},
	}
	k := newKernel(events)

	if _, err := k.Elapse(1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	id, err := k.SubmitOrder(schema.SideBuy, 100, 5, schema.TIFGTX, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := k.Elapse(10000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pos := k.Position(); pos != 0 {
		t.Fatalf("position = %v, want 0 (order should have been rejected, not filled)", pos)
	}
	_ = id
}

// TestElapse_ProcessesEventsUpToTargetOnly checks that Elapse processes
// the events due before its target, stops at the target timestamp, and
// reports that data is still pending when a later event remains.
func TestElapse_ProcessesEventsUpToTargetOnly(t *testing.T) {
	events := []schema.MarketEvent{
		{Kind: schema.MarketEventKindDepth, ExchTsNano: 100, LocalTsNano: 150, Side: schema.SideSell, PriceTicks: 100, Qty: 10},
		{Kind: schema.MarketEventKindDepth, ExchTsNano: 5000, LocalTsNano: 5050, Side: schema.SideSell, PriceTicks: 101, Qty: 10},
	}
	k := newKernel(events)

	more, err := k.Elapse(200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !more {
		t.Fatal("expected more work remaining (second event still pending)")
	}
	if k.CurrentTimestamp() != 200 {
		t.Fatalf("currentTimestamp = %v, want 200 (target reached with no more due events)", k.CurrentTimestamp())
	}
}
