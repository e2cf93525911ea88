package state_test

import (
	"math"
	"testing"

	"main/internal/schema"
	"main/internal/state"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestApplyFillPriced_LinearSingleBuy(t *testing.T) {
	r := state.NewPositionReducerWithAsset(schema.AssetKindLinear)
	r.ApplyFillPriced(1, schema.OrderSideBuy, 100.0, 1, 0)

	qty, avgEntry, balance, realized, fees := r.Account(1)
	if qty != 1 {
		t.Fatalf("qty = %v, want 1", qty)
	}
	if !almostEqual(avgEntry, 100.0) {
		t.Fatalf("avgEntry = %v, want 100", avgEntry)
	}
	if !almostEqual(balance, -100.0) {
		t.Fatalf("balance = %v, want -100", balance)
	}
	if realized != 0 || fees != 0 {
		t.Fatalf("realized/fees should be zero on open, got %v/%v", realized, fees)
	}
}

func TestApplyFillPriced_LinearRoundTrip(t *testing.T) {
	r := state.NewPositionReducerWithAsset(schema.AssetKindLinear)
	r.ApplyFillPriced(1, schema.OrderSideBuy, 100.0, 1, 0)
	r.ApplyFillPriced(1, schema.OrderSideSell, 110.0, 1, 0)

	qty, _, balance, realized, _ := r.Account(1)
	if qty != 0 {
		t.Fatalf("qty = %v, want 0", qty)
	}
	if !almostEqual(balance, 10.0) {
		t.Fatalf("balance = %v, want 10", balance)
	}
	if !almostEqual(realized, 10.0) {
		t.Fatalf("realized = %v, want 10", realized)
	}
}

func TestApplyFillPriced_InverseRoundTrip(t *testing.T) {
	r := state.NewPositionReducerWithAsset(schema.AssetKindInverse)
	r.ApplyFillPriced(1, schema.OrderSideBuy, 50000.0, 100, 0)
	r.ApplyFillPriced(1, schema.OrderSideSell, 55000.0, 100, 0)

	qty, _, balance, realized, _ := r.Account(1)
	if qty != 0 {
		t.Fatalf("qty = %v, want 0", qty)
	}
	want := 100.0 * (1.0/50000.0 - 1.0/55000.0)
	if !almostEqual(balance, want) {
		t.Fatalf("balance = %v, want %v", balance, want)
	}
	if !almostEqual(realized, want) {
		t.Fatalf("realized = %v, want %v", realized, want)
	}
}

func TestApplyFillPriced_FeeAlwaysDeductedFromBalance(t *testing.T) {
	r := state.NewPositionReducerWithAsset(schema.AssetKindLinear)
	r.ApplyFillPriced(1, schema.OrderSideBuy, 100.0, 1, 0.1)

	_, _, balance, _, fees := r.Account(1)
	if !almostEqual(fees, 0.1) {
		t.Fatalf("fees = %v, want 0.1", fees)
	}
	if !almostEqual(balance, -100.1) {
		t.Fatalf("balance = %v, want -100.1", balance)
	}
}
