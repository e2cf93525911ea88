package latency_test

import (
	"testing"

	"main/internal/latency"
)

func TestConstant_AppliesFixedOneWayDelays(t *testing.T) {
	c := latency.Constant{OrderLatencyNanos: 100, FeedLatencyNanos: 50}
	if got := c.LocalToExchange(1000); got != 1100 {
		t.Fatalf("LocalToExchange = %v, want 1100", got)
	}
	if got := c.ExchangeToLocal(1000); got != 1050 {
		t.Fatalf("ExchangeToLocal = %v, want 1050", got)
	}
}

func TestFeed_UnscaledDelayMatchesObservedSample(t *testing.T) {
	f := &latency.Feed{}
	f.Observe(1000, 1010)
	if got := f.ExchangeToLocal(1000); got != 1010 {
		t.Fatalf("ExchangeToLocal = %v, want 1010 (zero-value multiplier defaults to 1.0)", got)
	}
}

func TestFeed_MultiplierScalesObservedDelay(t *testing.T) {
	f := &latency.Feed{Multiplier: 2}
	f.Observe(1000, 1010) // 10ns observed feed delay
	if got := f.ExchangeToLocal(1000); got != 1020 {
		t.Fatalf("ExchangeToLocal = %v, want 1020 (10ns delay scaled by 2x)", got)
	}
}

func TestFeed_UsesMostRecentSampleAtOrBeforeQuery(t *testing.T) {
	f := &latency.Feed{}
	f.Observe(1000, 1010) // 10ns delay
	f.Observe(2000, 2030) // 30ns delay
	if got := f.ExchangeToLocal(1500); got != 1510 {
		t.Fatalf("ExchangeToLocal(1500) = %v, want 1510 (most recent sample at/before 1500 is the 10ns one)", got)
	}
	if got := f.ExchangeToLocal(2500); got != 2530 {
		t.Fatalf("ExchangeToLocal(2500) = %v, want 2530 (most recent sample at/before 2500 is the 30ns one)", got)
	}
}

func TestFeed_NoSamplesYetMeansZeroDelay(t *testing.T) {
	f := &latency.Feed{}
	if got := f.ExchangeToLocal(1000); got != 1000 {
		t.Fatalf("ExchangeToLocal = %v, want 1000 (zero delay with no samples)", got)
	}
}

func TestInterpolatedOrder_InterpolatesBetweenSamples(t *testing.T) {
	m := latency.NewInterpolatedOrder([]latency.Sample{
		{RequestTsNano: 0, ExchangeTsNano: 100, ResponseTsNano: 150},
		{RequestTsNano: 1000, ExchangeTsNano: 1200, ResponseTsNano: 1260},
	})
	// order-path delay at sample0 = 100-0=100, at sample1 = 1200-1000=200;
	// halfway between the two request timestamps interpolates to 150.
	if got, want := m.LocalToExchange(500), int64(650); got != want {
		t.Fatalf("LocalToExchange(500) = %v, want %v", got, want)
	}
}

func TestInterpolatedOrder_ClampsToBoundarySampleOutsideRange(t *testing.T) {
	m := latency.NewInterpolatedOrder([]latency.Sample{
		{RequestTsNano: 0, ExchangeTsNano: 100, ResponseTsNano: 150},
		{RequestTsNano: 1000, ExchangeTsNano: 1200, ResponseTsNano: 1260},
	})
	if got, want := m.LocalToExchange(-500), int64(-400); got != want {
		t.Fatalf("LocalToExchange(-500) = %v, want %v (clamped to the first sample's delay)", got, want)
	}
	if got, want := m.LocalToExchange(5000), int64(5200); got != want {
		t.Fatalf("LocalToExchange(5000) = %v, want %v (clamped to the last sample's delay)", got, want)
	}
}

func TestInterpolatedOrder_ClampsNegativeDelayToZero(t *testing.T) {
	// A response observed before the exchange even saw the message
	// (noisy/out-of-order recorded sample) yields a negative raw delay.
	m := latency.NewInterpolatedOrder([]latency.Sample{
		{RequestTsNano: 0, ExchangeTsNano: 100, ResponseTsNano: 50},
	})
	if got := m.ExchangeToLocal(100); got != 100 {
		t.Fatalf("ExchangeToLocal = %v, want 100 (negative delay clamped to 0)", got)
	}
}

func TestInterpolatedOrder_NoSamplesMeansZeroDelay(t *testing.T) {
	m := latency.NewInterpolatedOrder(nil)
	if got := m.LocalToExchange(1000); got != 1000 {
		t.Fatalf("LocalToExchange = %v, want 1000 (zero delay with no samples)", got)
	}
	if got := m.ExchangeToLocal(1000); got != 1000 {
		t.Fatalf("ExchangeToLocal = %v, want 1000 (zero delay with no samples)", got)
	}
}

func TestInterpolatedOrder_SamplesNeedNotBePresorted(t *testing.T) {
	m := latency.NewInterpolatedOrder([]latency.Sample{
		{RequestTsNano: 1000, ExchangeTsNano: 1200, ResponseTsNano: 1260},
		{RequestTsNano: 0, ExchangeTsNano: 100, ResponseTsNano: 150},
	})
	if got, want := m.LocalToExchange(500), int64(650); got != want {
		t.Fatalf("LocalToExchange(500) = %v, want %v (samples should have been sorted by RequestTsNano)", got, want)
	}
}
