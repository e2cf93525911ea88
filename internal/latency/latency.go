// Package latency implements the §4.2 LatencyModel variants: fixed
// one-way delays, feed-observed delays, and delays interpolated from
// recorded round-trip samples.
package latency

import "sort"

// Model translates a message's origin timestamp on one clock into its
// arrival timestamp on the other. The kernel calls LocalToExchange when
// releasing a strategy order onto the OrderBus, and ExchangeToLocal
// when releasing an exchange ack/fill/market event back to the local
// side.
type Model interface {
	// LocalToExchange returns the exchange-clock timestamp at which a
	// message sent from local at localTsNano is observed by the
	// exchange.
	LocalToExchange(localTsNano int64) int64
	// ExchangeToLocal returns the local-clock timestamp at which a
	// message sent from the exchange at exchTsNano is observed locally.
	ExchangeToLocal(exchTsNano int64) int64
}

// Constant applies a fixed one-way delay to each direction.
type Constant struct {
	OrderLatencyNanos int64 // local -> exchange
	FeedLatencyNanos  int64 // exchange -> local
}

func (c Constant) LocalToExchange(localTsNano int64) int64 {
	return localTsNano + c.OrderLatencyNanos
}

func (c Constant) ExchangeToLocal(exchTsNano int64) int64 {
	return exchTsNano + c.FeedLatencyNanos
}

// Feed uses the feed's own recorded (exch_ts, local_ts) pairs for the
// exchange->local direction — the delay actually observed in the
// historical data rather than a synthetic constant — while orders
// still incur a fixed local->exchange delay, since the data stream
// carries no record of order round trips.
type Feed struct {
	OrderLatencyNanos int64
	// Multiplier scales the feed-observed exchange->local delay per
	// §4.2 ("scaled by a configurable multiplier"). The zero value
	// defaults to 1.0, i.e. the delay is applied exactly as observed.
	Multiplier float64
	// observed holds exch_ts -> local_ts as seen in the market data
	// feed, sorted ascending by ExchTsNano. The kernel appends every
	// DEPTH/TRADE record's pair via Observe as it replays that record on
	// the exchange side.
	observed []feedSample
}

type feedSample struct {
	ExchTsNano  int64
	LocalTsNano int64
}

// Observe records one (exch_ts, local_ts) pair from the incoming feed.
// Samples must be appended in nondecreasing ExchTsNano order, which
// holds automatically since the kernel observes the exchange stream in
// order.
func (f *Feed) Observe(exchTsNano, localTsNano int64) {
	f.observed = append(f.observed, feedSample{ExchTsNano: exchTsNano, LocalTsNano: localTsNano})
}

func (f *Feed) LocalToExchange(localTsNano int64) int64 {
	return localTsNano + f.OrderLatencyNanos
}

// ExchangeToLocal looks up the most recently observed sample at or
// before exchTsNano, scales its observed delay by Multiplier, and
// applies it. With no samples yet, the message is assumed to arrive
// with zero delay.
func (f *Feed) ExchangeToLocal(exchTsNano int64) int64 {
	if len(f.observed) == 0 {
		return exchTsNano
	}
	idx := sort.Search(len(f.observed), func(i int) bool {
		return f.observed[i].ExchTsNano > exchTsNano
	})
	var delay int64
	if idx == 0 {
		delay = f.observed[0].LocalTsNano - f.observed[0].ExchTsNano
	} else {
		sample := f.observed[idx-1]
		delay = sample.LocalTsNano - sample.ExchTsNano
	}
	mult := f.Multiplier
	if mult == 0 {
		mult = 1
	}
	return exchTsNano + int64(float64(delay)*mult)
}

// Sample is one recorded (request_ts, exchange_ts, response_ts) triple
// used by InterpolatedOrder: a real order sent at RequestTsNano was
// observed by the exchange at ExchangeTsNano, and its response was
// observed locally at ResponseTsNano.
type Sample struct {
	RequestTsNano  int64
	ExchangeTsNano int64
	ResponseTsNano int64
}

// InterpolatedOrder derives order-path and response-path delays by
// linearly interpolating between recorded samples, clamping to the
// nearest boundary sample's delay outside the recorded range.
type InterpolatedOrder struct {
	samples []Sample // sorted ascending by RequestTsNano
}

// NewInterpolatedOrder builds a model from recorded samples, which
// need not already be sorted.
func NewInterpolatedOrder(samples []Sample) *InterpolatedOrder {
	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RequestTsNano < sorted[j].RequestTsNano })
	return &InterpolatedOrder{samples: sorted}
}

func (m *InterpolatedOrder) LocalToExchange(localTsNano int64) int64 {
	if len(m.samples) == 0 {
		return localTsNano
	}
	delay := m.interpolate(localTsNano,
		func(s Sample) int64 { return s.RequestTsNano },
		func(s Sample) int64 { return s.ExchangeTsNano - s.RequestTsNano },
	)
	return localTsNano + delay
}

func (m *InterpolatedOrder) ExchangeToLocal(exchTsNano int64) int64 {
	if len(m.samples) == 0 {
		return exchTsNano
	}
	delay := m.interpolate(exchTsNano,
		func(s Sample) int64 { return s.ExchangeTsNano },
		func(s Sample) int64 { return s.ResponseTsNano - s.ExchangeTsNano },
	)
	return exchTsNano + delay
}

// interpolate finds the delay at ts by linear interpolation over the
// samples' x-coordinate (as extracted by at) and delay (as extracted
// by delayOf), clamping to the first/last sample's delay outside the
// recorded range, and clamping the result to zero: a negative delay
// (e.g. from a noisy or out-of-order recorded sample) is not a
// physically meaningful message arrival time.
func (m *InterpolatedOrder) interpolate(ts int64, at func(Sample) int64, delayOf func(Sample) int64) int64 {
	n := len(m.samples)
	var delay int64
	switch {
	case ts <= at(m.samples[0]):
		delay = delayOf(m.samples[0])
	case ts >= at(m.samples[n-1]):
		delay = delayOf(m.samples[n-1])
	default:
		idx := sort.Search(n, func(i int) bool { return at(m.samples[i]) >= ts })
		hi := m.samples[idx]
		lo := m.samples[idx-1]
		span := at(hi) - at(lo)
		if span <= 0 {
			delay = delayOf(lo)
		} else {
			frac := float64(ts-at(lo)) / float64(span)
			loDelay := float64(delayOf(lo))
			hiDelay := float64(delayOf(hi))
			delay = int64(loDelay + frac*(hiDelay-loDelay))
		}
	}
	if delay < 0 {
		return 0
	}
	return delay
}
