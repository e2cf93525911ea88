package bus

import (
	"container/heap"

	"main/internal/schema"
)

// Direction identifies which of the two independent OrderBus lanes a
// message travels on.
type Direction uint8

const (
	// LocalToExchange carries strategy order/cancel requests toward the
	// exchange-clock side.
	LocalToExchange Direction = iota
	// ExchangeToLocal carries acks, fills and market events back to the
	// local-clock side.
	ExchangeToLocal
)

// Envelope is one message in flight on an OrderBus lane: a payload
// released at ReleaseTsNano on the receiving side's clock.
type Envelope struct {
	ReleaseTsNano int64
	Message       schema.BusMessage
	seq           uint64 // insertion order, breaks ReleaseTsNano ties FIFO
}

// OrderBus couples the exchange- and local-clock processors: messages
// enter with the origin timestamp already translated to the
// destination clock by an internal/latency.Model, and leave in strict
// release-timestamp order with same-timestamp arrivals resolved FIFO
// (§4.5). Both lanes are independent min-heaps; nothing here is safe
// for concurrent use, matching the kernel's single-threaded loop (§5).
type OrderBus struct {
	lanes [2]envelopeHeap
	seq   uint64
}

// NewOrderBus builds an empty two-lane bus.
func NewOrderBus() *OrderBus {
	b := &OrderBus{}
	heap.Init(&b.lanes[LocalToExchange])
	heap.Init(&b.lanes[ExchangeToLocal])
	return b
}

// Append enqueues msg on the given lane, to be released at
// releaseTsNano on the destination clock.
func (b *OrderBus) Append(dir Direction, releaseTsNano int64, msg schema.BusMessage) {
	b.seq++
	heap.Push(&b.lanes[dir], Envelope{ReleaseTsNano: releaseTsNano, Message: msg, seq: b.seq})
}

// Frontier returns the release timestamp of the next message on dir's
// lane and whether the lane is non-empty. The kernel uses this to
// decide whether a bus head or a raw event stream head advances next
// in its merge order (§4.8).
func (b *OrderBus) Frontier(dir Direction) (int64, bool) {
	lane := &b.lanes[dir]
	if lane.Len() == 0 {
		return 0, false
	}
	return (*lane)[0].ReleaseTsNano, true
}

// PopReady removes and returns the head of dir's lane if its release
// timestamp is at or before atOrBeforeTsNano, in FIFO order among
// ties. The second return is false when nothing is ready yet.
func (b *OrderBus) PopReady(dir Direction, atOrBeforeTsNano int64) (schema.BusMessage, bool) {
	lane := &b.lanes[dir]
	if lane.Len() == 0 {
		return schema.BusMessage{}, false
	}
	if (*lane)[0].ReleaseTsNano > atOrBeforeTsNano {
		return schema.BusMessage{}, false
	}
	env := heap.Pop(lane).(Envelope)
	return env.Message, true
}

// Len reports how many messages are queued on dir's lane.
func (b *OrderBus) Len(dir Direction) int {
	return b.lanes[dir].Len()
}

// envelopeHeap implements container/heap.Interface, ordering by
// ReleaseTsNano ascending and breaking ties by insertion sequence.
type envelopeHeap []Envelope

func (h envelopeHeap) Len() int { return len(h) }

func (h envelopeHeap) Less(i, j int) bool {
	if h[i].ReleaseTsNano != h[j].ReleaseTsNano {
		return h[i].ReleaseTsNano < h[j].ReleaseTsNano
	}
	return h[i].seq < h[j].seq
}

func (h envelopeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *envelopeHeap) Push(x any) {
	*h = append(*h, x.(Envelope))
}

func (h *envelopeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
