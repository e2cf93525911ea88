package state

import (
	"main/internal/asset"
	"main/internal/schema"
)

// account is one symbol's position, cost basis and cash bookkeeping,
// per the §4.1 P&L model: Linear debits full notional on every buy and
// credits it on every sell (spot-settled), Inverse never transfers notional and only
// realizes the q·(1/entry - 1/exit) delta on close (margin-settled).
type account struct {
	Qty           schema.Quantity
	AvgEntryPrice float64
	Balance       float64
	RealizedPnL   float64
	Fees          float64
}

// PositionReducer updates positions (and, for the backtest kernel,
// full account state) based on fill events. AssetKind selects which
// P&L model ApplyFillPriced uses; ApplyFill ignores it and only
// tracks quantity, for callers that need nothing more, e.g. WAL-tail
// recovery of a bare position snapshot.
type PositionReducer struct {
	positions map[uint32]schema.Quantity
	accounts  map[uint32]*account
	assetKind schema.AssetKind
}

// NewPositionReducer creates an empty reducer using the Linear asset
// model. Use NewPositionReducerWithAsset for Inverse instruments.
func NewPositionReducer() *PositionReducer {
	return NewPositionReducerWithAsset(schema.AssetKindLinear)
}

// NewPositionReducerWithAsset creates an empty reducer for the given
// asset kind.
func NewPositionReducerWithAsset(kind schema.AssetKind) *PositionReducer {
	return &PositionReducer{
		positions: make(map[uint32]schema.Quantity),
		accounts:  make(map[uint32]*account),
		assetKind: kind,
	}
}

// ApplyFill updates the position and returns the new quantity. It does
// not touch balance/P&L bookkeeping; use ApplyFillPriced for that.
func (r *PositionReducer) ApplyFill(fill schema.Fill) schema.Quantity {
	current := r.positions[fill.SymbolID]
	var next schema.Quantity
	switch fill.Side {
	case schema.OrderSideBuy:
		next = schema.Quantity(int64(current) + int64(fill.Qty))
	case schema.OrderSideSell:
		next = schema.Quantity(int64(current) - int64(fill.Qty))
	default:
		next = current
	}
	r.positions[fill.SymbolID] = next
	return next
}

// ApplyFillPriced folds a fill into full account bookkeeping: position,
// weighted-average entry price, realized P&L and fees, per §4.1 and
// §8's invariant that position change equals signed fill quantity and
// balance change equals -asset_type.amount(price, qty) - fee. fee is
// the already-computed fee for this fill (maker/taker rate applied by
// the caller), so it is charged exactly once.
func (r *PositionReducer) ApplyFillPriced(symbolID uint32, side schema.OrderSide, price float64, qty schema.Quantity, fee float64) {
	a, ok := r.accounts[symbolID]
	if !ok {
		a = &account{}
		r.accounts[symbolID] = a
	}
	assetType := asset.New(r.assetKind)

	feeBasis, _ := assetType.Amount(price, float64(qty))

	signedQty := int64(qty)
	fillSign := 1.0
	if side == schema.OrderSideSell {
		signedQty = -signedQty
		fillSign = -1.0
	}

	prevQty := int64(a.Qty)
	sameSignOrFlat := prevQty == 0 || (prevQty > 0) == (signedQty > 0)

	switch {
	case sameSignOrFlat:
		totalQty := absInt64(prevQty) + int64(qty)
		if totalQty > 0 {
			a.AvgEntryPrice = (a.AvgEntryPrice*float64(absInt64(prevQty)) + price*float64(qty)) / float64(totalQty)
		}
		a.Qty = schema.Quantity(prevQty + signedQty)
		if r.assetKind == schema.AssetKindLinear {
			a.Balance -= feeBasis * fillSign
		}
	default:
		closingQty := int64(qty)
		if absInt64(prevQty) < closingQty {
			closingQty = absInt64(prevQty)
		}
		posSign := 1.0
		if prevQty < 0 {
			posSign = -1.0
		}
		var pnl float64
		switch r.assetKind {
		case schema.AssetKindInverse:
			pnl = float64(closingQty) * (1/a.AvgEntryPrice - 1/price) * posSign
			a.Balance += pnl
		default:
			pnl = float64(closingQty) * (price - a.AvgEntryPrice) * posSign
			closeNotional, _ := assetType.Amount(price, float64(closingQty))
			a.Balance += closeNotional * posSign
		}
		a.RealizedPnL += pnl
		a.Qty = schema.Quantity(prevQty + signedQty)

		remainder := int64(qty) - closingQty
		if remainder > 0 {
			a.AvgEntryPrice = price
			if r.assetKind == schema.AssetKindLinear {
				reopenNotional, _ := assetType.Amount(price, float64(remainder))
				a.Balance -= reopenNotional * fillSign
			}
		}
	}

	a.Fees += fee
	a.Balance -= fee
	r.positions[symbolID] = a.Qty
}

// Account returns the full account state for a symbol.
func (r *PositionReducer) Account(symbolID uint32) (qty schema.Quantity, avgEntryPrice, balance, realizedPnL, fees float64) {
	a, ok := r.accounts[symbolID]
	if !ok {
		return 0, 0, 0, 0, 0
	}
	return a.Qty, a.AvgEntryPrice, a.Balance, a.RealizedPnL, a.Fees
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// ApplySnapshot replaces positions with a snapshot.
func (r *PositionReducer) ApplySnapshot(snapshot Snapshot) {
	if r.positions == nil {
		r.positions = make(map[uint32]schema.Quantity, len(snapshot.Positions))
	} else {
		for key := range r.positions {
			delete(r.positions, key)
		}
	}
	for _, entry := range snapshot.Positions {
		r.positions[entry.SymbolID] = entry.Qty
	}
}

// Position returns the current position quantity for a symbol.
func (r *PositionReducer) Position(symbolID uint32) schema.Quantity {
	return r.positions[symbolID]
}

// Count returns the number of tracked symbols.
func (r *PositionReducer) Count() int {
	return len(r.positions)
}
