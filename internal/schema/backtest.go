package schema

import "strconv"

// PriceTick is a price normalized to an integer multiple of the
// instrument's tick size: round(price / tick_size).
type PriceTick int64

// Side is an order or market-event direction, encoded as bit flags so
// the value survives round-tripping through feed formats that pack
// other flags into the same word.
type Side uint32

const (
	SideBuy  Side = 1 << 29
	SideSell Side = 1 << 28
)

// Opposite returns the other side, or SideBuy if s is neither flag.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "SIDE(" + strconv.FormatUint(uint64(s), 10) + ")"
	}
}

// MarketEventKind enumerates the kinds of records the kernel replays
// from the historical event stream.
type MarketEventKind uint8

const (
	MarketEventKindUnknown MarketEventKind = iota
	MarketEventKindDepth
	MarketEventKindTrade
	MarketEventKindDepthClear
	MarketEventKindDepthSnapshot
)

func (k MarketEventKind) String() string {
	switch k {
	case MarketEventKindDepth:
		return "DEPTH"
	case MarketEventKindTrade:
		return "TRADE"
	case MarketEventKindDepthClear:
		return "DEPTH_CLEAR"
	case MarketEventKindDepthSnapshot:
		return "DEPTH_SNAPSHOT"
	default:
		return "UNKNOWN"
	}
}

// DepthLevel is a single price/quantity pair used by snapshot payloads.
type DepthLevel struct {
	PriceTicks PriceTick
	Qty        Quantity
}

// MarketEvent is a single record of the historical event stream (§6).
// Depth and trade events carry a single (PriceTicks, Qty) pair; clear
// carries an optional bound in PriceTicks; snapshot carries the full
// replacement ladders.
type MarketEvent struct {
	Kind        MarketEventKind
	ExchTsNano  int64
	LocalTsNano int64
	Side        Side
	PriceTicks  PriceTick
	Qty         Quantity

	ClearInclusive bool

	SnapshotBids []DepthLevel
	SnapshotAsks []DepthLevel
}

// OrderTIF is a backtest order's time-in-force.
type OrderTIF uint8

const (
	TIFUnknown OrderTIF = iota
	TIFGTC
	TIFGTX
	TIFFOK
	TIFIOC
)

func (t OrderTIF) String() string {
	switch t {
	case TIFGTC:
		return "GTC"
	case TIFGTX:
		return "GTX"
	case TIFFOK:
		return "FOK"
	case TIFIOC:
		return "IOC"
	default:
		return "UNKNOWN"
	}
}

// OrderState is the lifecycle status of a backtest order (§3).
type OrderState uint8

const (
	OrderStateNone OrderState = iota
	OrderStateNew
	OrderStateExpired
	OrderStateFilled
	OrderStateCanceled
)

func (s OrderState) String() string {
	switch s {
	case OrderStateNew:
		return "NEW"
	case OrderStateExpired:
		return "EXPIRED"
	case OrderStateFilled:
		return "FILLED"
	case OrderStateCanceled:
		return "CANCELED"
	default:
		return "NONE"
	}
}

func (s OrderState) IsTerminal() bool {
	switch s {
	case OrderStateFilled, OrderStateCanceled, OrderStateExpired:
		return true
	default:
		return false
	}
}

// AssetKind selects the contract P&L model.
type AssetKind uint8

const (
	AssetKindUnknown AssetKind = iota
	AssetKindLinear
	AssetKindInverse
)

// ExchangeModel selects whether resting orders can partially fill.
type ExchangeModel uint8

const (
	ExchangeModelUnknown ExchangeModel = iota
	ExchangeModelNoPartialFill
	ExchangeModelPartialFill
)

// BacktestOrderID is a caller-assigned unique order identifier.
type BacktestOrderID uint64

// Order is the strategy-facing and exchange-facing view of a single
// resting/terminal order (§3 Order).
type Order struct {
	ID              BacktestOrderID
	Side            Side
	Price           PriceTick
	OrigQty         Quantity
	LeavesQty       Quantity
	TIF             OrderTIF
	State           OrderState
	CreatedExchTs   int64
	QueueAheadQty   Quantity
	Maker           bool
	LocalObserved   bool
}

// FilledQty is the amount of the order that has been executed.
func (o Order) FilledQty() Quantity {
	return o.OrigQty - o.LeavesQty
}

// BusMsgKind distinguishes the message shapes that travel over an
// OrderBus direction.
type BusMsgKind uint8

const (
	BusMsgOrder BusMsgKind = iota
	BusMsgCancel
	BusMsgFill
)

// FillDetail is the incremental execution carried by a BusMsgFill
// message, distinct from the order snapshot in BusMessage.Order so the
// receiving side can apply exactly the new quantity/fee once, rather
// than diffing two snapshots.
type FillDetail struct {
	OrderID    BacktestOrderID
	Side       Side
	PriceTicks PriceTick
	Qty        Quantity
	Fee        float64
	Maker      bool
	ExchTsNano int64
}

// BusMessage is a single OrderBus payload: a new/updated order
// snapshot, a cancel request by id, or a fill notification.
type BusMessage struct {
	Kind    BusMsgKind
	Order   Order
	OrderID BacktestOrderID
	Fill    FillDetail
}
