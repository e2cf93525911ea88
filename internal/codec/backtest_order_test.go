package codec_test

import (
	"testing"

	"main/internal/codec"
	"main/internal/schema"
)

func TestBusMessageRoundTrip_Order(t *testing.T) {
	msg := schema.BusMessage{
		Kind: schema.BusMsgOrder,
		Order: schema.Order{
			ID:            42,
			Side:          schema.SideBuy,
			Price:         10000,
			OrigQty:       5,
			LeavesQty:     3,
			TIF:           schema.TIFGTC,
			State:         schema.OrderStateNew,
			CreatedExchTs: 999,
			QueueAheadQty: 7,
			Maker:         true,
			LocalObserved: true,
		},
	}
	buf := codec.EncodeBusMessage(nil, msg)
	if len(buf) != codec.BusMessagePayloadSize {
		t.Fatalf("len(buf) = %d, want %d", len(buf), codec.BusMessagePayloadSize)
	}
	got, ok := codec.DecodeBusMessage(buf)
	if !ok {
		t.Fatal("DecodeBusMessage returned ok=false")
	}
	if got.Kind != msg.Kind || got.Order != msg.Order {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, msg)
	}
}

func TestBusMessageRoundTrip_Cancel(t *testing.T) {
	msg := schema.BusMessage{Kind: schema.BusMsgCancel, OrderID: 7}
	got, ok := codec.DecodeBusMessage(codec.EncodeBusMessage(nil, msg))
	if !ok || got.Kind != schema.BusMsgCancel || got.OrderID != 7 {
		t.Fatalf("round trip mismatch: got %+v, ok=%v", got, ok)
	}
}

func TestBusMessageRoundTrip_Fill(t *testing.T) {
	msg := schema.BusMessage{
		Kind: schema.BusMsgFill,
		Fill: schema.FillDetail{
			OrderID:    9,
			Side:       schema.SideSell,
			PriceTicks: 10050,
			Qty:        2,
			Fee:        0.125,
			Maker:      false,
			ExchTsNano: 555,
		},
	}
	got, ok := codec.DecodeBusMessage(codec.EncodeBusMessage(nil, msg))
	if !ok || got.Fill != msg.Fill {
		t.Fatalf("round trip mismatch: got %+v, ok=%v", got, ok)
	}
}

func TestDecodeBusMessage_RejectsShortBuffer(t *testing.T) {
	if _, ok := codec.DecodeBusMessage(make([]byte, 3)); ok {
		t.Fatal("expected ok=false for a too-short buffer")
	}
}
