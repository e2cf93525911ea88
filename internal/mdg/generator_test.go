package mdg_test

import (
	"testing"

	"main/internal/mdg"
	"main/internal/schema"
)

func TestNext_AlternatesDepthAndTrade(t *testing.T) {
	g := mdg.New(mdg.Config{TickSize: 0.01, BasePriceTicks: 10000, Qty: 5})
	events := g.NextN(4)
	for i, evt := range events {
		wantKind := schema.MarketEventKindDepth
		if i%2 == 1 {
			wantKind = schema.MarketEventKindTrade
		}
		if evt.Kind != wantKind {
			t.Fatalf("events[%d].Kind = %v, want %v", i, evt.Kind, wantKind)
		}
	}
}

func TestNext_TimestampsAdvanceMonotonically(t *testing.T) {
	g := mdg.New(mdg.Config{TickSize: 0.01, BasePriceTicks: 10000, FeedLatencyNanos: 500})
	events := g.NextN(5)
	for i := 1; i < len(events); i++ {
		if events[i].ExchTsNano <= events[i-1].ExchTsNano {
			t.Fatalf("events[%d].ExchTsNano = %v did not advance past events[%d] = %v", i, events[i].ExchTsNano, i-1, events[i-1].ExchTsNano)
		}
		if events[i].LocalTsNano != events[i].ExchTsNano+500 {
			t.Fatalf("events[%d].LocalTsNano = %v, want ExchTsNano+500", i, events[i].LocalTsNano)
		}
	}
}

func TestNext_DefaultsSpreadAndQtyWhenUnset(t *testing.T) {
	g := mdg.New(mdg.Config{TickSize: 0.01, BasePriceTicks: 10000})
	evt := g.Next()
	if evt.Qty != 1 {
		t.Fatalf("Qty = %v, want default 1", evt.Qty)
	}
	if evt.PriceTicks != 9998 {
		t.Fatalf("PriceTicks = %v, want 9998 (base 10000 minus default spread 2)", evt.PriceTicks)
	}
}
