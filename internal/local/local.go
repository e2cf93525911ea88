// Package local implements the §4.6 LocalProcessor: the local-clock
// mirror of market data, the strategy-facing order submission surface,
// and the pending-order bookkeeping between submission and the
// exchange's eventual ack/fill.
package local

import (
	baseerrors "main/internal/errors"
	"main/internal/schema"

	"main/internal/depth"
)

// Processor is the local-clock view of one instrument: a mirrored
// depth book plus every order the strategy has submitted, in whatever
// state it was last observed locally.
type Processor struct {
	book        *depth.MarketDepth
	orders      map[schema.BacktestOrderID]*schema.Order
	localTsNano int64
	nextID      schema.BacktestOrderID
}

// New builds an empty LocalProcessor.
func New() *Processor {
	return &Processor{
		book:   depth.New(),
		orders: make(map[schema.BacktestOrderID]*schema.Order),
	}
}

// Book exposes the local-clock mirrored depth for the strategy-facing
// depth() operation.
func (p *Processor) Book() *depth.MarketDepth { return p.book }

// CurrentTsNano returns the local clock's current position, advanced
// by the kernel as it observes market events in local-timestamp order.
func (p *Processor) CurrentTsNano() int64 { return p.localTsNano }

// OnMarketEvent mirrors one historical event into the local book,
// observed at its LocalTsNano.
func (p *Processor) OnMarketEvent(evt schema.MarketEvent) error {
	p.localTsNano = evt.LocalTsNano
	return p.book.ApplyEvent(evt)
}

// NextOrderID allocates a caller-visible order id when the strategy
// does not supply its own.
func (p *Processor) NextOrderID() schema.BacktestOrderID {
	p.nextID++
	return p.nextID
}

// SubmitOrder records a new order as pending locally and returns the
// OrderBus message the kernel should release onto the local->exchange
// lane after applying the order-latency model. Per §7, user-caused
// InvalidInput/DuplicateOrderId errors are surfaced synchronously here
// rather than discovered later when the order reaches the exchange.
func (p *Processor) SubmitOrder(o schema.Order) (schema.BusMessage, error) {
	if _, exists := p.orders[o.ID]; exists {
		return schema.BusMessage{}, baseerrors.Wrap(baseerrors.ErrDuplicateOrderID, "order id already submitted")
	}
	if o.OrigQty <= 0 {
		return schema.BusMessage{}, baseerrors.Wrap(baseerrors.ErrInvalidInput, "order qty must be positive")
	}
	o.State = schema.OrderStateNew
	o.LeavesQty = o.OrigQty
	o.LocalObserved = true
	stored := o
	p.orders[o.ID] = &stored
	return schema.BusMessage{Kind: schema.BusMsgOrder, Order: stored}, nil
}

// CancelOrder marks a locally-known order for cancellation and returns
// the OrderBus message the kernel should release toward the exchange.
// The order remains in its last-known state locally until the
// exchange's cancel ack is observed via OnAck.
func (p *Processor) CancelOrder(id schema.BacktestOrderID) (schema.BusMessage, error) {
	o, ok := p.orders[id]
	if !ok || o.State.IsTerminal() {
		return schema.BusMessage{}, baseerrors.Wrap(baseerrors.ErrOrderNotFound, "order not known locally")
	}
	return schema.BusMessage{Kind: schema.BusMsgCancel, OrderID: id}, nil
}

// OnAck applies an order update arriving from the exchange over the
// exchange->local OrderBus lane, replacing the local view of the order.
func (p *Processor) OnAck(o schema.Order) {
	existing, ok := p.orders[o.ID]
	if !ok {
		stored := o
		p.orders[o.ID] = &stored
		return
	}
	o.LocalObserved = true
	*existing = o
}

// Order returns the strategy's local view of an order.
func (p *Processor) Order(id schema.BacktestOrderID) (schema.Order, bool) {
	o, ok := p.orders[id]
	if !ok {
		return schema.Order{}, false
	}
	return *o, true
}

// OpenOrders returns every order not yet in a terminal state, in no
// particular order.
func (p *Processor) OpenOrders() []schema.Order {
	out := make([]schema.Order, 0, len(p.orders))
	for _, o := range p.orders {
		if !o.State.IsTerminal() {
			out = append(out, *o)
		}
	}
	return out
}
