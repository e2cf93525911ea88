package kernel

import "testing"

// TestPickNext_TieBreakOrderIsExchLocalBusBus checks the fixed (a, c,
// b, d) tie-break priority: when every source is due at the same
// timestamp, the exchange event settles first, then the local event,
// then the local->exchange bus, then the exchange->local bus.
func TestPickNext_TieBreakOrderIsExchLocalBusBus(t *testing.T) {
	const ts = 1000

	_, source, ok := pickNext(ts, true, ts, true, ts, true, ts, true)
	if !ok || source != sourceExchEvent {
		t.Fatalf("source = %v, want sourceExchEvent when all four tie", source)
	}

	_, source, ok = pickNext(ts, false, ts, true, ts, true, ts, true)
	if !ok || source != sourceLocalEvent {
		t.Fatalf("source = %v, want sourceLocalEvent once the exchange event is absent", source)
	}

	_, source, ok = pickNext(ts, false, ts, true, ts, false, ts, true)
	if !ok || source != sourceLocalToExchBus {
		t.Fatalf("source = %v, want sourceLocalToExchBus once exchange and local events are absent", source)
	}

	_, source, ok = pickNext(ts, false, ts, false, ts, false, ts, true)
	if !ok || source != sourceExchToLocalBus {
		t.Fatalf("source = %v, want sourceExchToLocalBus as the last resort", source)
	}
}
