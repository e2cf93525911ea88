// Package kernel implements the §4.8 SimulationKernel: the
// single-threaded event loop that merges the exchange- and
// local-clock event streams with the two OrderBus lanes in strict
// timestamp order, and exposes the strategy-facing operations of §6.
package kernel

import (
	"sort"

	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/depth"
	baseerrors "main/internal/errors"
	"main/internal/exchange"
	"main/internal/latency"
	"main/internal/local"
	"main/internal/obs"
	"main/internal/schema"
	"main/internal/state"
)

// Config parameterizes one kernel run over one instrument.
type Config struct {
	SymbolID uint32
	Exchange exchange.Config
	Latency  latency.Model
	// Metrics is optional; nil disables counters (obs.Metrics methods
	// are nil-safe no-ops).
	Metrics *obs.Metrics
}

// Kernel owns both processors, the OrderBus coupling them, and the
// merged replay of a fixed historical event stream (§5: single
// goroutine, cooperative, no concurrency in the hot path).
type Kernel struct {
	cfg     Config
	exch    *exchange.Processor
	loc     *local.Processor
	orderBus *bus.OrderBus
	account *state.PositionReducer

	exchEvents []schema.MarketEvent // sorted by ExchTsNano
	localEvents []schema.MarketEvent // sorted by LocalTsNano
	exchIdx     int
	localIdx    int

	currentTsNano int64
	nextOrderID   schema.BacktestOrderID
	fills         []exchange.Fill
}

// New builds a kernel over a fixed historical event stream. events
// need not be pre-sorted; New builds the two independent orderings
// the merge requires.
func New(events []schema.MarketEvent, cfg Config) *Kernel {
	exchSorted := make([]schema.MarketEvent, len(events))
	copy(exchSorted, events)
	sort.SliceStable(exchSorted, func(i, j int) bool { return exchSorted[i].ExchTsNano < exchSorted[j].ExchTsNano })

	localSorted := make([]schema.MarketEvent, len(events))
	copy(localSorted, events)
	sort.SliceStable(localSorted, func(i, j int) bool { return localSorted[i].LocalTsNano < localSorted[j].LocalTsNano })

	return &Kernel{
		cfg:         cfg,
		exch:        exchange.New(cfg.Exchange),
		loc:         local.New(),
		orderBus:    bus.NewOrderBus(),
		account:     state.NewPositionReducerWithAsset(cfg.Exchange.AssetKind),
		exchEvents:  exchSorted,
		localEvents: localSorted,
	}
}

// CurrentTimestamp returns the strategy's local-clock position.
func (k *Kernel) CurrentTimestamp() int64 { return k.currentTsNano }

// Depth exposes the local-clock mirrored book the strategy observes.
func (k *Kernel) Depth() *depth.MarketDepth {
	return k.loc.Book()
}

// Position returns the strategy's current account position.
func (k *Kernel) Position() schema.Quantity {
	return k.account.Position(k.cfg.SymbolID)
}

// Balance returns the strategy's current account balance.
func (k *Kernel) Balance() float64 {
	_, _, balance, _, _ := k.account.Account(k.cfg.SymbolID)
	return balance
}

// Account returns the full account snapshot the position reducer
// tracks, beyond the strategy-facing Balance/Position pair: average
// entry price and realized P&L/fees to date. Intended for end-of-run
// reporting rather than the strategy's decision loop.
func (k *Kernel) Account() (qty schema.Quantity, avgEntryPrice, balance, realizedPnL, fees float64) {
	return k.account.Account(k.cfg.SymbolID)
}

// Orders returns every non-terminal order known locally.
func (k *Kernel) Orders() []schema.Order {
	return k.loc.OpenOrders()
}

// Fills returns every execution the exchange has produced so far, in
// the order they occurred. Intended for end-of-run reporting.
func (k *Kernel) Fills() []exchange.Fill {
	return k.fills
}

// SubmitOrder allocates an order id (when id is zero) and releases a
// new order onto the local->exchange OrderBus lane, delayed by the
// configured order-latency model.
func (k *Kernel) SubmitOrder(side schema.Side, priceTicks schema.PriceTick, qty schema.Quantity, tif schema.OrderTIF, id schema.BacktestOrderID) (schema.BacktestOrderID, error) {
	if id == 0 {
		k.nextOrderID++
		id = k.nextOrderID
	}
	order := schema.Order{
		ID:      id,
		Side:    side,
		Price:   priceTicks,
		OrigQty: qty,
		TIF:     tif,
	}
	msg, err := k.loc.SubmitOrder(order)
	if err != nil {
		return 0, err
	}
	releaseTs := k.cfg.Latency.LocalToExchange(k.currentTsNano)
	k.orderBus.Append(bus.LocalToExchange, releaseTs, msg)
	return id, nil
}

// Cancel releases a cancel request onto the local->exchange lane for
// an order known locally.
func (k *Kernel) Cancel(id schema.BacktestOrderID) error {
	msg, err := k.loc.CancelOrder(id)
	if err != nil {
		return err
	}
	releaseTs := k.cfg.Latency.LocalToExchange(k.currentTsNano)
	k.orderBus.Append(bus.LocalToExchange, releaseTs, msg)
	return nil
}

// Elapse advances the local clock by durationNanos, processing every
// exchange event, local event and bus message that becomes due along
// the way, in the strict 4-way merge order of §4.8:
//
//	(a) exchange event stream head
//	(b) local->exchange bus head
//	(c) local event stream head
//	(d) exchange->local bus head
//
// It returns false when the historical event stream and both bus
// lanes are simultaneously exhausted before the target time is
// reached (§7 EndOfData), and true otherwise.
func (k *Kernel) Elapse(durationNanos int64) (bool, error) {
	target := k.currentTsNano + durationNanos

	for {
		exchTs, exchOk := k.peekExch()
		l2eTs, l2eOk := k.orderBus.Frontier(bus.LocalToExchange)
		localTs, localOk := k.peekLocal()
		e2lTs, e2lOk := k.orderBus.Frontier(bus.ExchangeToLocal)

		next, source, ok := pickNext(
			exchTs, exchOk,
			l2eTs, l2eOk,
			localTs, localOk,
			e2lTs, e2lOk,
		)
		if !ok {
			logs.Info("kernel: end of data reached")
			return false, nil
		}
		if next > target {
			k.currentTsNano = target
			return true, nil
		}

		if err := k.dispatch(source, next); err != nil {
			return false, err
		}
	}
}

type mergeSource uint8

const (
	sourceExchEvent mergeSource = iota
	sourceLocalToExchBus
	sourceLocalEvent
	sourceExchToLocalBus
)

// pickNext returns the smallest available timestamp among the four
// sources, breaking ties in fixed priority order (a, c, b, d) matching
// §4.8: exchange events settle before local ones at equal timestamps
// since they causally precede anything the local side could react to,
// and each side's bus arrivals settle after its own stream event.
func pickNext(exchTs int64, exchOk bool, l2eTs int64, l2eOk bool, localTs int64, localOk bool, e2lTs int64, e2lOk bool) (int64, mergeSource, bool) {
	type candidate struct {
		ts     int64
		ok     bool
		source mergeSource
	}
	candidates := []candidate{
		{exchTs, exchOk, sourceExchEvent},
		{localTs, localOk, sourceLocalEvent},
		{l2eTs, l2eOk, sourceLocalToExchBus},
		{e2lTs, e2lOk, sourceExchToLocalBus},
	}
	best := -1
	for i, c := range candidates {
		if !c.ok {
			continue
		}
		if best == -1 || c.ts < candidates[best].ts {
			best = i
		}
	}
	if best == -1 {
		return 0, 0, false
	}
	return candidates[best].ts, candidates[best].source, true
}

func (k *Kernel) peekExch() (int64, bool) {
	if k.exchIdx >= len(k.exchEvents) {
		return 0, false
	}
	return k.exchEvents[k.exchIdx].ExchTsNano, true
}

func (k *Kernel) peekLocal() (int64, bool) {
	if k.localIdx >= len(k.localEvents) {
		return 0, false
	}
	return k.localEvents[k.localIdx].LocalTsNano, true
}

func (k *Kernel) dispatch(source mergeSource, ts int64) error {
	switch source {
	case sourceExchEvent:
		evt := k.exchEvents[k.exchIdx]
		k.exchIdx++
		if feed, ok := k.cfg.Latency.(*latency.Feed); ok && (evt.Kind == schema.MarketEventKindDepth || evt.Kind == schema.MarketEventKindTrade) {
			feed.Observe(evt.ExchTsNano, evt.LocalTsNano)
		}
		if err := k.exch.OnMarketEvent(evt); err != nil {
			return err
		}
		k.routeFills(k.exch.DrainFills())

	case sourceLocalToExchBus:
		msg, ok := k.orderBus.PopReady(bus.LocalToExchange, ts)
		if !ok {
			return baseerrors.Wrap(baseerrors.ErrInvalidInput, "kernel: local->exchange bus frontier disagreed with PopReady")
		}
		k.exch.Advance(ts)
		k.handleInboundOrder(msg)

	case sourceLocalEvent:
		evt := k.localEvents[k.localIdx]
		k.localIdx++
		k.currentTsNano = evt.LocalTsNano
		return k.loc.OnMarketEvent(evt)

	case sourceExchToLocalBus:
		msg, ok := k.orderBus.PopReady(bus.ExchangeToLocal, ts)
		if !ok {
			return baseerrors.Wrap(baseerrors.ErrInvalidInput, "kernel: exchange->local bus frontier disagreed with PopReady")
		}
		k.currentTsNano = ts
		k.handleInboundAck(msg)
	}
	return nil
}

func (k *Kernel) handleInboundOrder(msg schema.BusMessage) {
	switch msg.Kind {
	case schema.BusMsgOrder:
		result, fills, err := k.exch.OnOrder(msg.Order)
		if err != nil {
			result.State = schema.OrderStateExpired
			k.cfg.Metrics.IncReject()
		}
		if result.State == schema.OrderStateExpired {
			k.cfg.Metrics.IncExpire()
		}
		k.sendAck(result)
		k.routeFills(fills)
	case schema.BusMsgCancel:
		result, err := k.exch.OnCancel(msg.OrderID)
		if err == nil {
			k.sendAck(result)
		}
	}
}

func (k *Kernel) sendAck(o schema.Order) {
	releaseTs := k.cfg.Latency.ExchangeToLocal(k.exch2LocalOrigin(o))
	k.orderBus.Append(bus.ExchangeToLocal, releaseTs, schema.BusMessage{Kind: schema.BusMsgOrder, Order: o})
}

// exch2LocalOrigin picks the timestamp an ack/fill should be treated
// as originating at on the exchange clock: the order's creation time
// if it never touched the exchange clock otherwise (defensive; OnOrder
// always stamps CreatedExchTs).
func (k *Kernel) exch2LocalOrigin(o schema.Order) int64 {
	if o.CreatedExchTs != 0 {
		return o.CreatedExchTs
	}
	return k.currentTsNano
}

func (k *Kernel) routeFills(fills []exchange.Fill) {
	for _, f := range fills {
		k.fills = append(k.fills, f)
		k.cfg.Metrics.IncFill(f.Maker)
		releaseTs := k.cfg.Latency.ExchangeToLocal(f.ExchTsNano)
		k.orderBus.Append(bus.ExchangeToLocal, releaseTs, schema.BusMessage{
			Kind: schema.BusMsgFill,
			Fill: schema.FillDetail{
				OrderID:    f.OrderID,
				Side:       f.Side,
				PriceTicks: f.PriceTicks,
				Qty:        f.Qty,
				Fee:        f.Fee,
				Maker:      f.Maker,
				ExchTsNano: f.ExchTsNano,
			},
		})
	}
}

func (k *Kernel) handleInboundAck(msg schema.BusMessage) {
	switch msg.Kind {
	case schema.BusMsgOrder:
		k.loc.OnAck(msg.Order)
	case schema.BusMsgFill:
		fd := msg.Fill
		side := schema.OrderSideBuy
		if fd.Side == schema.SideSell {
			side = schema.OrderSideSell
		}
		price := float64(fd.PriceTicks) * k.cfg.Exchange.TickSize
		k.account.ApplyFillPriced(k.cfg.SymbolID, side, price, fd.Qty, fd.Fee)
	}
}
