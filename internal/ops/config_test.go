package ops_test

import (
	"testing"

	"main/internal/latency"
	"main/internal/ops"
	"main/internal/queue"
	"main/internal/schema"
)

func TestResolve_Defaults(t *testing.T) {
	cfg := ops.FileConfig{TickSize: 0.01, LotSize: 1}
	loaded, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Exchange.AssetKind != schema.AssetKindLinear {
		t.Fatalf("AssetKind = %v, want Linear default", loaded.Exchange.AssetKind)
	}
	if loaded.Exchange.Model != schema.ExchangeModelPartialFill {
		t.Fatalf("Model = %v, want PartialFill default", loaded.Exchange.Model)
	}
	if _, ok := loaded.Exchange.Queue.(queue.RiskAverse); !ok {
		t.Fatalf("Queue = %T, want RiskAverse default", loaded.Exchange.Queue)
	}
	if _, ok := loaded.Latency.(latency.Constant); !ok {
		t.Fatalf("Latency = %T, want Constant default", loaded.Latency)
	}
}

func TestResolve_RejectsNonPositiveTickOrLot(t *testing.T) {
	if _, err := (ops.FileConfig{TickSize: 0, LotSize: 1}).Resolve(); err == nil {
		t.Fatal("expected error for zero tickSize")
	}
	if _, err := (ops.FileConfig{TickSize: 1, LotSize: -1}).Resolve(); err == nil {
		t.Fatal("expected error for negative lotSize")
	}
}

func TestResolve_UnknownVariantsRejected(t *testing.T) {
	base := ops.FileConfig{TickSize: 0.01, LotSize: 1}

	bad := base
	bad.AssetType = "notacoin"
	if _, err := bad.Resolve(); err == nil {
		t.Fatal("expected error for unknown assetType")
	}

	bad = base
	bad.ExchangeModel = "bogus"
	if _, err := bad.Resolve(); err == nil {
		t.Fatal("expected error for unknown exchangeModel")
	}

	bad = base
	bad.QueueModel = ops.QueueModelConfig{Variant: "bogus"}
	if _, err := bad.Resolve(); err == nil {
		t.Fatal("expected error for unknown queueModel variant")
	}

	bad = base
	bad.LatencyModel = ops.LatencyModelConfig{Variant: "bogus"}
	if _, err := bad.Resolve(); err == nil {
		t.Fatal("expected error for unknown latencyModel variant")
	}
}

func TestResolve_PowerQueueRequiresPositivePower(t *testing.T) {
	cfg := ops.FileConfig{TickSize: 0.01, LotSize: 1, QueueModel: ops.QueueModelConfig{Variant: "power", Power: 0}}
	if _, err := cfg.Resolve(); err == nil {
		t.Fatal("expected error for power=0")
	}
}

func TestResolve_InterpolatedLatencyRequiresSamples(t *testing.T) {
	cfg := ops.FileConfig{TickSize: 0.01, LotSize: 1, LatencyModel: ops.LatencyModelConfig{Variant: "interpolated"}}
	if _, err := cfg.Resolve(); err == nil {
		t.Fatal("expected error for interpolated variant with no samples")
	}
}

func TestResolve_InterpolatedLatencyResolvesWithSamples(t *testing.T) {
	cfg := ops.FileConfig{
		TickSize: 0.01, LotSize: 1,
		LatencyModel: ops.LatencyModelConfig{
			Variant: "interpolated",
			Samples: []latency.Sample{{RequestTsNano: 0, ExchangeTsNano: 100, ResponseTsNano: 150}},
		},
	}
	loaded, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := loaded.Latency.(*latency.InterpolatedOrder); !ok {
		t.Fatalf("Latency = %T, want *latency.InterpolatedOrder", loaded.Latency)
	}
}

func TestResolve_FeedLatencyMultiplierWiresThrough(t *testing.T) {
	cfg := ops.FileConfig{
		TickSize: 0.01, LotSize: 1,
		LatencyModel: ops.LatencyModelConfig{Variant: "feed", FeedLatencyMultiplier: 2},
	}
	loaded, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	feed, ok := loaded.Latency.(*latency.Feed)
	if !ok {
		t.Fatalf("Latency = %T, want *latency.Feed", loaded.Latency)
	}
	if feed.Multiplier != 2 {
		t.Fatalf("Multiplier = %v, want 2", feed.Multiplier)
	}
}

func TestResolve_NegativeFeedLatencyMultiplierRejected(t *testing.T) {
	cfg := ops.FileConfig{
		TickSize: 0.01, LotSize: 1,
		LatencyModel: ops.LatencyModelConfig{Variant: "feed", FeedLatencyMultiplier: -1},
	}
	if _, err := cfg.Resolve(); err == nil {
		t.Fatal("expected error for negative feedLatencyMultiplier")
	}
}

func TestResolve_InverseAssetType(t *testing.T) {
	cfg := ops.FileConfig{TickSize: 0.01, LotSize: 1, AssetType: "inverse"}
	loaded, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Exchange.AssetKind != schema.AssetKindInverse {
		t.Fatalf("AssetKind = %v, want Inverse", loaded.Exchange.AssetKind)
	}
}

func TestResolveWithRegistry_RegistersNewSymbol(t *testing.T) {
	reg := schema.NewRegistry()
	cfg := ops.FileConfig{TickSize: 0.01, LotSize: 1, SymbolName: "BTC-USDT", VenueName: "binance"}

	loaded, err := cfg.ResolveWithRegistry(reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	symbolID, ok := reg.SymbolIDByName("BTC-USDT")
	if !ok {
		t.Fatal("expected BTC-USDT to be registered")
	}
	if loaded.SymbolID != uint32(symbolID) {
		t.Fatalf("SymbolID = %d, want resolved registry id %d", loaded.SymbolID, symbolID)
	}
}

func TestResolveWithRegistry_ReusesExistingSymbol(t *testing.T) {
	reg := schema.NewRegistry()
	cfg := ops.FileConfig{TickSize: 0.01, LotSize: 1, SymbolName: "ETH-USDT", VenueName: "binance"}

	first, err := cfg.ResolveWithRegistry(reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := cfg.ResolveWithRegistry(reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.SymbolID != second.SymbolID {
		t.Fatalf("resolving the same symbol name twice gave different ids: %d vs %d", first.SymbolID, second.SymbolID)
	}
	if reg.SymbolCount() != 1 {
		t.Fatalf("SymbolCount = %d, want 1 (no duplicate registration)", reg.SymbolCount())
	}
}

func TestResolveWithRegistry_EmptyNameLeavesSymbolIDUntouched(t *testing.T) {
	reg := schema.NewRegistry()
	cfg := ops.FileConfig{TickSize: 0.01, LotSize: 1, SymbolID: 42}

	loaded, err := cfg.ResolveWithRegistry(reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.SymbolID != 42 {
		t.Fatalf("SymbolID = %d, want 42 (untouched)", loaded.SymbolID)
	}
}
