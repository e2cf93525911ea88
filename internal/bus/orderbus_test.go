package bus_test

import (
	"testing"

	"main/internal/bus"
	"main/internal/schema"
)

func TestOrderBus_ReleasesInTimestampOrder(t *testing.T) {
	b := bus.NewOrderBus()
	b.Append(bus.ExchangeToLocal, 300, schema.BusMessage{OrderID: 3})
	b.Append(bus.ExchangeToLocal, 100, schema.BusMessage{OrderID: 1})
	b.Append(bus.ExchangeToLocal, 200, schema.BusMessage{OrderID: 2})

	for _, want := range []schema.BacktestOrderID{1, 2, 3} {
		msg, ok := b.PopReady(bus.ExchangeToLocal, 1_000_000)
		if !ok || msg.OrderID != want {
			t.Fatalf("PopReady = %v, %v, want id %v", msg, ok, want)
		}
	}
}

func TestOrderBus_TiesBreakFIFO(t *testing.T) {
	b := bus.NewOrderBus()
	b.Append(bus.LocalToExchange, 100, schema.BusMessage{OrderID: 1})
	b.Append(bus.LocalToExchange, 100, schema.BusMessage{OrderID: 2})

	first, _ := b.PopReady(bus.LocalToExchange, 100)
	second, _ := b.PopReady(bus.LocalToExchange, 100)
	if first.OrderID != 1 || second.OrderID != 2 {
		t.Fatalf("ties did not resolve FIFO: got %v then %v", first.OrderID, second.OrderID)
	}
}

func TestOrderBus_PopReadyRespectsBound(t *testing.T) {
	b := bus.NewOrderBus()
	b.Append(bus.LocalToExchange, 500, schema.BusMessage{OrderID: 1})

	if _, ok := b.PopReady(bus.LocalToExchange, 400); ok {
		t.Fatalf("PopReady should not release a message before its timestamp")
	}
	ts, ok := b.Frontier(bus.LocalToExchange)
	if !ok || ts != 500 {
		t.Fatalf("Frontier = %v, %v, want 500, true", ts, ok)
	}
	if _, ok := b.PopReady(bus.LocalToExchange, 500); !ok {
		t.Fatalf("PopReady should release at exactly the release timestamp")
	}
}

func TestOrderBus_LanesAreIndependent(t *testing.T) {
	b := bus.NewOrderBus()
	b.Append(bus.LocalToExchange, 100, schema.BusMessage{OrderID: 1})
	if _, ok := b.Frontier(bus.ExchangeToLocal); ok {
		t.Fatalf("ExchangeToLocal lane should be empty")
	}
	if b.Len(bus.LocalToExchange) != 1 {
		t.Fatalf("LocalToExchange lane should have 1 message")
	}
}
