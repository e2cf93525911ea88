// Package exchange implements the §4.7 ExchangeProcessor: the
// authoritative, exchange-clock view of the book, order matching
// against the historical event stream, and queue-position fill
// modeling for the strategy's own resting orders.
package exchange

import (
	"github.com/gammazero/deque"

	"main/internal/asset"
	baseerrors "main/internal/errors"
	"main/internal/queue"
	"main/internal/risk"
	"main/internal/schema"

	"main/internal/depth"
)

// Config parameterizes one instrument's exchange-side behavior.
type Config struct {
	TickSize     float64
	LotSize      float64
	AssetKind    schema.AssetKind
	Model        schema.ExchangeModel
	MakerFeeRate float64
	TakerFeeRate float64
	Queue        queue.Model
	Risk         *risk.Engine // nil disables pre-trade risk gating
}

// Processor is the authoritative book and matching engine driven by
// the historical event stream and by strategy orders arriving over the
// local->exchange OrderBus lane.
type Processor struct {
	cfg   Config
	asset asset.Type
	book  *depth.MarketDepth

	orders  map[schema.BacktestOrderID]*schema.Order
	bidFIFO fifoTable
	askFIFO fifoTable

	exchTsNano int64
	position   schema.Quantity // for risk-engine reference only

	fills []Fill
}

// Fill is one execution of the strategy's own order, produced by
// either the matching engine (marketable orders) or queue-position
// resolution (resting orders reached by a printed trade).
type Fill struct {
	OrderID    schema.BacktestOrderID
	Side       schema.Side
	PriceTicks schema.PriceTick
	Qty        schema.Quantity
	Fee        float64
	Maker      bool
	ExchTsNano int64
}

// New builds an empty ExchangeProcessor for one instrument.
func New(cfg Config) *Processor {
	if cfg.Queue == nil {
		cfg.Queue = queue.RiskAverse{}
	}
	return &Processor{
		cfg:     cfg,
		asset:   asset.New(cfg.AssetKind),
		book:    depth.New(),
		orders:  make(map[schema.BacktestOrderID]*schema.Order),
		bidFIFO: make(fifoTable),
		askFIFO: make(fifoTable),
	}
}

// Book exposes the authoritative depth for read-only inspection (e.g.
// by the strategy-facing depth() operation, or for mirroring into
// LocalProcessor via replayed events).
func (p *Processor) Book() *depth.MarketDepth { return p.book }

// Order returns the current view of a still-known order.
func (p *Processor) Order(id schema.BacktestOrderID) (schema.Order, bool) {
	o, ok := p.orders[id]
	if !ok {
		return schema.Order{}, false
	}
	return *o, true
}

// DrainFills returns and clears fills produced since the last drain.
func (p *Processor) DrainFills() []Fill {
	out := p.fills
	p.fills = nil
	return out
}

// Advance moves the exchange clock forward to exchTsNano without
// folding in a market event. The kernel calls this before OnOrder and
// OnCancel so an order/cancel arriving between two market events is
// still stamped with its true exchange-clock arrival time rather than
// the timestamp of whichever event last touched the book.
func (p *Processor) Advance(exchTsNano int64) {
	if exchTsNano > p.exchTsNano {
		p.exchTsNano = exchTsNano
	}
}

// OnMarketEvent folds one historical event into the book, resolving
// queue-position fills for resting orders reached by a printed trade
// and, per §4.6, invalidating queue-position estimates whenever the
// book itself moves out from under them: a TRADE consumes queue ahead
// directly (resolveQueueFills), a plain DEPTH decrease erodes it
// without printing a fill for queue models that implement
// queue.DepthAdvancer (resolveDepthAttrition), and a DEPTH_SNAPSHOT/DEPTH_CLEAR discards
// the running estimate entirely and re-seeds it from the post-event
// book (reseedQueuePositions).
func (p *Processor) OnMarketEvent(evt schema.MarketEvent) error {
	p.exchTsNano = evt.ExchTsNano
	switch evt.Kind {
	case schema.MarketEventKindTrade:
		p.resolveQueueFills(evt)
	case schema.MarketEventKindDepth:
		p.resolveDepthAttrition(evt)
	}

	if err := p.book.ApplyEvent(evt); err != nil {
		return err
	}

	switch evt.Kind {
	case schema.MarketEventKindDepthSnapshot:
		p.reseedQueuePositions(schema.SideBuy)
		p.reseedQueuePositions(schema.SideSell)
	case schema.MarketEventKindDepthClear:
		p.reseedQueuePositions(evt.Side)
	}
	return nil
}

// resolveDepthAttrition erodes queue-ahead estimates for resting
// orders at the level a plain DEPTH update just decreased, mirroring
// resolveQueueFills's model call but without producing a fill: a
// depth decrease with no accompanying TRADE print means liquidity
// ahead of (or ahead ambiguously overlapping) the order left the book,
// not that a taker reached it. Only queue models that opt into
// depth-driven attrition (queue.DepthAdvancer, e.g. ProbabilityQueue)
// are consulted — per §4.3, RiskAverse's position only ever moves on
// printed trade volume.
func (p *Processor) resolveDepthAttrition(evt schema.MarketEvent) {
	advancer, ok := p.cfg.Queue.(queue.DepthAdvancer)
	if !ok {
		return
	}
	fifo := p.fifoFor(evt.Side)
	orderIDs, ok := fifo[evt.PriceTicks]
	if !ok || orderIDs.Len() == 0 {
		return
	}
	levelQtyBefore := p.book.QtyAt(evt.Side, evt.PriceTicks)
	decrease := levelQtyBefore - evt.Qty
	if decrease <= 0 {
		return
	}

	n := orderIDs.Len()
	for i := 0; i < n; i++ {
		id := orderIDs.PopFront()
		if o := p.orders[id]; o != nil {
			newQAhead := advancer.AdvanceOnDepthDecrease(float64(o.QueueAheadQty), float64(levelQtyBefore), float64(decrease))
			o.QueueAheadQty = schema.Quantity(newQAhead)
		}
		orderIDs.PushBack(id)
	}
}

// reseedQueuePositions resets every resting order's queue-ahead
// estimate on side to the current post-event resting quantity at its
// price, per the OPEN QUESTION DECISIONS re-seed rule: the estimate is
// discarded wholesale rather than adjusted, since a snapshot/clear can
// reorder or replace the level entirely.
func (p *Processor) reseedQueuePositions(side schema.Side) {
	fifo := p.fifoFor(side)
	for priceTicks, orderIDs := range fifo {
		postQty := p.book.QtyAt(side, priceTicks)
		n := orderIDs.Len()
		for i := 0; i < n; i++ {
			id := orderIDs.PopFront()
			if o := p.orders[id]; o != nil {
				o.QueueAheadQty = postQty
			}
			orderIDs.PushBack(id)
		}
	}
}

// resolveQueueFills advances queue position for every resting order at
// the level the trade printed at, generating fills for any order whose
// queue-ahead quantity is exhausted by the trade.
func (p *Processor) resolveQueueFills(evt schema.MarketEvent) {
	restingSide := evt.Side.Opposite()
	fifo := p.fifoFor(restingSide)
	orderIDs, ok := fifo[evt.PriceTicks]
	if !ok || orderIDs.Len() == 0 {
		return
	}
	levelQtyBefore := p.book.QtyAt(restingSide, evt.PriceTicks)
	leftover := float64(evt.Qty)

	n := orderIDs.Len()
	var drained []schema.BacktestOrderID
	for i := 0; i < n; i++ {
		id := orderIDs.PopFront()
		o := p.orders[id]
		if o == nil {
			continue
		}
		qAheadBefore := float64(o.QueueAheadQty)
		newQAhead := p.cfg.Queue.Advance(qAheadBefore, float64(levelQtyBefore), leftover)
		directConsumed := qAheadBefore
		if directConsumed > leftover {
			directConsumed = leftover
		}
		o.QueueAheadQty = schema.Quantity(newQAhead)

		remainingForFill := leftover - directConsumed
		if newQAhead <= 0 && remainingForFill > 0 && o.LeavesQty > 0 {
			fillQty := remainingForFill
			if float64(o.LeavesQty) < fillQty {
				fillQty = float64(o.LeavesQty)
			}
			// NoPartialFill makers only take a fill that clears their
			// whole remaining quantity in this trade print; short of
			// that they hold their now-front-of-queue position and wait
			// for a later print instead of taking a partial maker fill.
			noPartial := p.cfg.Model == schema.ExchangeModelNoPartialFill && fillQty < float64(o.LeavesQty)
			if !noPartial {
				p.applyFill(o, schema.Quantity(fillQty), true)
				leftover -= fillQty
			}
		}
		if o.State.IsTerminal() {
			continue // dropped from the level, not re-queued
		}
		drained = append(drained, id)
	}
	for _, id := range drained {
		orderIDs.PushBack(id)
	}
	if orderIDs.Len() == 0 {
		delete(fifo, evt.PriceTicks)
	}
}

// OnOrder admits a new order arriving from the local side over the
// OrderBus. It applies pre-trade risk gating, then GTC/GTX/FOK/IOC
// semantics, and returns the order's resulting state plus any fills.
func (p *Processor) OnOrder(o schema.Order) (schema.Order, []Fill, error) {
	if _, exists := p.orders[o.ID]; exists {
		return o, nil, baseerrors.Wrap(baseerrors.ErrDuplicateOrderID, "order id already resting")
	}
	if !p.tickAligned(o.Price) || o.OrigQty <= 0 || !p.lotAligned(o.OrigQty) {
		return o, nil, baseerrors.Wrap(baseerrors.ErrInvalidInput, "price/qty not aligned to tick/lot size")
	}

	if p.cfg.Risk != nil {
		decision := p.cfg.Risk.Evaluate(toOrderIntent(o), risk.StateView{
			Position: p.position,
			Now:      p.exchTsNano,
		})
		if decision.Action == schema.RiskActionDeny {
			o.State = schema.OrderStateExpired
			o.LeavesQty = o.OrigQty
			return o, nil, nil
		}
	}

	o.LeavesQty = o.OrigQty
	o.CreatedExchTs = p.exchTsNano
	stored := o

	best, haveBest := p.bestOpposite(o.Side)
	marketable := haveBest && crosses(o.Side, o.Price, best)

	switch o.TIF {
	case schema.TIFGTX:
		if marketable {
			stored.State = schema.OrderStateExpired
			p.orders[o.ID] = &stored
			return stored, nil, nil
		}
		p.orders[o.ID] = &stored
		p.rest(&stored)
		return stored, nil, nil

	case schema.TIFFOK:
		available := p.book.AvailableQty(o.Side.Opposite(), o.Price)
		if !marketable || available < o.OrigQty {
			stored.State = schema.OrderStateExpired
			p.orders[o.ID] = &stored
			return stored, nil, nil
		}
		p.orders[o.ID] = &stored
		fills := p.takeLiquidity(&stored)
		return *p.orders[o.ID], fills, nil

	case schema.TIFIOC:
		p.orders[o.ID] = &stored
		fills := p.takeLiquidity(&stored)
		final := *p.orders[o.ID]
		if final.LeavesQty > 0 {
			final.State = schema.OrderStateCanceled
			p.orders[o.ID].State = schema.OrderStateCanceled
		}
		return final, fills, nil

	default: // GTC
		p.orders[o.ID] = &stored
		var fills []Fill
		if marketable {
			fills = p.takeLiquidity(&stored)
		}
		if p.orders[o.ID].LeavesQty > 0 && !p.orders[o.ID].State.IsTerminal() {
			p.restExisting(p.orders[o.ID])
		}
		return *p.orders[o.ID], fills, nil
	}
}

// OnCancel removes a resting order. Returns ErrOrderNotFound if the id
// is unknown or already terminal.
func (p *Processor) OnCancel(id schema.BacktestOrderID) (schema.Order, error) {
	o, ok := p.orders[id]
	if !ok || o.State.IsTerminal() {
		return schema.Order{}, baseerrors.Wrap(baseerrors.ErrOrderNotFound, "order not resting")
	}
	o.State = schema.OrderStateCanceled
	p.removeFromFIFO(o)
	return *o, nil
}

// takeLiquidity walks the opposite side of the book, consuming
// quantity for a marketable order up to its remaining qty, generating
// a taker fill per level touched.
func (p *Processor) takeLiquidity(o *schema.Order) []Fill {
	consumed := p.book.Consume(o.Side.Opposite(), o.LeavesQty, o.Price, true)
	var fills []Fill
	for _, lvl := range consumed {
		p.applyFill(o, lvl.Qty, false)
		fills = append(fills, p.fills[len(p.fills)-1])
	}
	return fills
}

// rest inserts a brand-new order into the book and its price-level
// FIFO, computing its initial queue-ahead quantity as the resting
// quantity already at that price when it arrives.
func (p *Processor) rest(o *schema.Order) {
	o.State = schema.OrderStateNew
	o.QueueAheadQty = p.book.QtyAt(o.Side, o.Price)
	p.restExisting(o)
}

// restExisting inserts an already-admitted (possibly partially filled)
// order into the book and FIFO without resetting its queue position.
func (p *Processor) restExisting(o *schema.Order) {
	o.State = schema.OrderStateNew
	o.Maker = true
	current := p.book.QtyAt(o.Side, o.Price)
	p.setBookQty(o.Side, o.Price, current+o.LeavesQty)
	p.fifoFor(o.Side).getOrCreate(o.Price).PushBack(o.ID)
}

func (p *Processor) removeFromFIFO(o *schema.Order) {
	fifo := p.fifoFor(o.Side)
	dq, ok := fifo[o.Price]
	if !ok {
		return
	}
	n := dq.Len()
	for i := 0; i < n; i++ {
		id := dq.PopFront()
		if id == o.ID {
			continue
		}
		dq.PushBack(id)
	}
	current := p.book.QtyAt(o.Side, o.Price)
	p.setBookQty(o.Side, o.Price, current-o.LeavesQty)
	if dq.Len() == 0 {
		delete(fifo, o.Price)
	}
}

// applyFill executes qty of o at o.Price, marking it maker or taker
// for fee purposes, updating LeavesQty/State, and recording the fill.
func (p *Processor) applyFill(o *schema.Order, qty schema.Quantity, maker bool) {
	if qty <= 0 {
		return
	}
	price := tickPrice(o.Price, p.cfg.TickSize)
	notional, _ := p.asset.Amount(price, float64(qty))
	feeRate := p.cfg.TakerFeeRate
	if maker {
		feeRate = p.cfg.MakerFeeRate
	}
	fee := notional * feeRate

	o.LeavesQty -= qty
	if o.Side == schema.SideBuy {
		p.position += qty
	} else {
		p.position -= qty
	}
	if o.LeavesQty <= 0 {
		o.State = schema.OrderStateFilled
		if maker {
			p.removeFromFIFO(o)
		}
	}

	p.fills = append(p.fills, Fill{
		OrderID:    o.ID,
		Side:       o.Side,
		PriceTicks: o.Price,
		Qty:        qty,
		Fee:        fee,
		Maker:      maker,
		ExchTsNano: p.exchTsNano,
	})
}

func (p *Processor) setBookQty(side schema.Side, priceTicks schema.PriceTick, qty schema.Quantity) {
	_ = p.book.ApplyEvent(schema.MarketEvent{
		Kind:       schema.MarketEventKindDepth,
		Side:       side,
		PriceTicks: priceTicks,
		Qty:        qty,
	})
}

func (p *Processor) bestOpposite(side schema.Side) (schema.PriceTick, bool) {
	if side == schema.SideBuy {
		return p.book.BestAsk()
	}
	return p.book.BestBid()
}

func crosses(side schema.Side, price, best schema.PriceTick) bool {
	if side == schema.SideBuy {
		return price >= best
	}
	return price <= best
}

func (p *Processor) tickAligned(priceTicks schema.PriceTick) bool {
	return true // PriceTick is already a tick-normalized integer by construction (§3).
}

func (p *Processor) lotAligned(qty schema.Quantity) bool {
	return true // Quantity is already lot-normalized by the caller/ingest layer (§3).
}

type fifoTable map[schema.PriceTick]*deque.Deque[schema.BacktestOrderID]

func (f fifoTable) getOrCreate(priceTicks schema.PriceTick) *deque.Deque[schema.BacktestOrderID] {
	dq, ok := f[priceTicks]
	if !ok {
		dq = new(deque.Deque[schema.BacktestOrderID])
		f[priceTicks] = dq
	}
	return dq
}

func (p *Processor) fifoFor(side schema.Side) fifoTable {
	if side == schema.SideBuy {
		return p.bidFIFO
	}
	return p.askFIFO
}

func tickPrice(ticks schema.PriceTick, tickSize float64) float64 {
	return float64(ticks) * tickSize
}

func toOrderIntent(o schema.Order) schema.OrderIntent {
	side := schema.OrderSideBuy
	if o.Side == schema.SideSell {
		side = schema.OrderSideSell
	}
	return schema.OrderIntent{
		OrderID:     uint64(o.ID),
		Side:        side,
		Type:        schema.OrderTypeLimit,
		TimeInForce: toTimeInForce(o.TIF),
		Price:       schema.Price(o.Price),
		Qty:         o.OrigQty,
	}
}

func toTimeInForce(tif schema.OrderTIF) schema.TimeInForce {
	switch tif {
	case schema.TIFIOC:
		return schema.TimeInForceIOC
	case schema.TIFFOK:
		return schema.TimeInForceFOK
	default:
		return schema.TimeInForceGTC
	}
}
