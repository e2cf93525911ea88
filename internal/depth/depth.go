// Package depth implements the §4.4 MarketDepth L2 order book: two
// price-tick-ordered ladders (bids descending, asks ascending) rebuilt
// from DEPTH, TRADE, DEPTH_CLEAR and DEPTH_SNAPSHOT events, with a
// cached best bid/ask and automatic crossing resolution.
package depth

import (
	"github.com/tidwall/btree"

	baseerrors "main/internal/errors"
	"main/internal/schema"
)

// MarketDepth is the authoritative or mirrored L2 book for one
// instrument. It is not safe for concurrent use; the kernel's
// single-threaded event loop is the only caller (§5).
type MarketDepth struct {
	bids *btree.Map[schema.PriceTick, schema.Quantity] // descending best
	asks *btree.Map[schema.PriceTick, schema.Quantity] // ascending best

	bestBid    schema.PriceTick
	bestAsk    schema.PriceTick
	haveBid    bool
	haveAsk    bool
}

const btreeDegree = 32

// New builds an empty book.
func New() *MarketDepth {
	return &MarketDepth{
		bids: btree.NewMap[schema.PriceTick, schema.Quantity](btreeDegree),
		asks: btree.NewMap[schema.PriceTick, schema.Quantity](btreeDegree),
	}
}

// BestBid returns the best bid price tick and whether the bid side is
// non-empty.
func (d *MarketDepth) BestBid() (schema.PriceTick, bool) { return d.bestBid, d.haveBid }

// BestAsk returns the best ask price tick and whether the ask side is
// non-empty.
func (d *MarketDepth) BestAsk() (schema.PriceTick, bool) { return d.bestAsk, d.haveAsk }

// QtyAt returns the resting quantity at priceTicks on side, or zero if
// the level does not exist.
func (d *MarketDepth) QtyAt(side schema.Side, priceTicks schema.PriceTick) schema.Quantity {
	book := d.bookFor(side)
	qty, _ := book.Get(priceTicks)
	return qty
}

// Consume walks the resting side from its best price inward, removing
// up to maxQty total quantity, and returns each (priceTicks, qty)
// portion removed in walk order (best price first). When hasLimit is
// true, walking stops at limitTicks: on the bid side (a taker selling)
// limitTicks is the lowest price the taker will accept; on the ask
// side (a taker buying) it is the highest price the taker will pay.
func (d *MarketDepth) Consume(side schema.Side, maxQty schema.Quantity, limitTicks schema.PriceTick, hasLimit bool) []schema.DepthLevel {
	book := d.bookFor(side)
	walk := book.Scan
	if side == schema.SideBuy {
		walk = book.Reverse
	}

	var priceTicksTouched []schema.PriceTick
	var consumed []schema.DepthLevel
	remaining := maxQty
	walk(func(priceTicks schema.PriceTick, qty schema.Quantity) bool {
		if remaining <= 0 {
			return false
		}
		if hasLimit {
			if side == schema.SideBuy && priceTicks < limitTicks {
				return false
			}
			if side == schema.SideSell && priceTicks > limitTicks {
				return false
			}
		}
		take := qty
		if take > remaining {
			take = remaining
		}
		consumed = append(consumed, schema.DepthLevel{PriceTicks: priceTicks, Qty: take})
		priceTicksTouched = append(priceTicksTouched, priceTicks)
		remaining -= take
		return remaining > 0
	})

	for i, priceTicks := range priceTicksTouched {
		left := d.QtyAt(side, priceTicks) - consumed[i].Qty
		if left <= 0 {
			book.Delete(priceTicks)
		} else {
			book.Set(priceTicks, left)
		}
	}
	d.refreshBest()
	return consumed
}

// AvailableQty sums resting quantity on side at or better than
// limitTicks (better meaning at-or-below for asks, at-or-above for
// bids), used by FOK to decide fillability against the full ladder.
func (d *MarketDepth) AvailableQty(side schema.Side, limitTicks schema.PriceTick) schema.Quantity {
	book := d.bookFor(side)
	var total schema.Quantity
	book.Scan(func(priceTicks schema.PriceTick, qty schema.Quantity) bool {
		if side == schema.SideSell && priceTicks > limitTicks {
			return false
		}
		total += qty
		return true
	})
	if side == schema.SideBuy {
		total = 0
		book.Reverse(func(priceTicks schema.PriceTick, qty schema.Quantity) bool {
			if priceTicks < limitTicks {
				return false
			}
			total += qty
			return true
		})
	}
	return total
}

func (d *MarketDepth) bookFor(side schema.Side) *btree.Map[schema.PriceTick, schema.Quantity] {
	if side == schema.SideBuy {
		return d.bids
	}
	return d.asks
}

// ApplyEvent folds one market event into the book, in exchange-clock
// order. It returns ErrCorruptSnapshot only for DEPTH_SNAPSHOT events
// whose bid/ask ladders are internally crossed; every other event kind
// self-heals a transient cross by trimming the resting side (§4.4
// crossing rule), since a resting level that trades through is by
// definition consumed before a live cross can persist.
func (d *MarketDepth) ApplyEvent(evt schema.MarketEvent) error {
	switch evt.Kind {
	case schema.MarketEventKindDepth:
		d.setLevel(evt.Side, evt.PriceTicks, evt.Qty)
		d.resolveCross(evt.Side)
	case schema.MarketEventKindTrade:
		d.applyTrade(evt.Side, evt.PriceTicks, evt.Qty)
	case schema.MarketEventKindDepthClear:
		d.clear(evt.Side, evt.PriceTicks, evt.ClearInclusive)
	case schema.MarketEventKindDepthSnapshot:
		return d.applySnapshot(evt.SnapshotBids, evt.SnapshotAsks)
	}
	return nil
}

// setLevel installs qty at priceTicks on side, deleting the level when
// qty is zero.
func (d *MarketDepth) setLevel(side schema.Side, priceTicks schema.PriceTick, qty schema.Quantity) {
	book := d.bookFor(side)
	if qty <= 0 {
		book.Delete(priceTicks)
	} else {
		book.Set(priceTicks, qty)
	}
	d.refreshBest()
}

// applyTrade decrements the resting quantity on the side of the
// resting order that was hit. A TRADE event's Side is the aggressor's
// side (§6), so the resting level lives on the opposite side.
func (d *MarketDepth) applyTrade(aggressor schema.Side, priceTicks schema.PriceTick, qty schema.Quantity) {
	book := d.bookFor(aggressor.Opposite())
	remaining, ok := book.Get(priceTicks)
	if !ok {
		return
	}
	remaining -= qty
	if remaining <= 0 {
		book.Delete(priceTicks)
	} else {
		book.Set(priceTicks, remaining)
	}
	d.refreshBest()
}

// clear removes every level on side at or beyond boundTicks. When
// inclusive is false the bound level itself is retained. A zero-value
// call (boundTicks == 0 with inclusive == false is meaningless; kernel
// callers pass math.MaxInt64/MinInt64-style bounds for "clear
// everything") still behaves correctly since the scan below simply
// finds nothing to remove.
func (d *MarketDepth) clear(side schema.Side, boundTicks schema.PriceTick, inclusive bool) {
	book := d.bookFor(side)
	var toDelete []schema.PriceTick
	book.Scan(func(priceTicks schema.PriceTick, _ schema.Quantity) bool {
		if withinClearBound(side, priceTicks, boundTicks, inclusive) {
			toDelete = append(toDelete, priceTicks)
		}
		return true
	})
	for _, p := range toDelete {
		book.Delete(p)
	}
	d.refreshBest()
}

func withinClearBound(side schema.Side, priceTicks, boundTicks schema.PriceTick, inclusive bool) bool {
	if side == schema.SideBuy {
		if inclusive {
			return priceTicks <= boundTicks
		}
		return priceTicks < boundTicks
	}
	if inclusive {
		return priceTicks >= boundTicks
	}
	return priceTicks > boundTicks
}

// applySnapshot replaces both ladders wholesale. A snapshot whose own
// bid/ask ladders cross (best bid >= best ask within the payload) is
// fatal per §7 CorruptSnapshot: it indicates the upstream feed itself
// is broken, not a transient condition the book can resolve.
func (d *MarketDepth) applySnapshot(bids, asks []schema.DepthLevel) error {
	var bestBidTicks, bestAskTicks schema.PriceTick
	haveBid, haveAsk := false, false
	for _, lvl := range bids {
		if !haveBid || lvl.PriceTicks > bestBidTicks {
			bestBidTicks, haveBid = lvl.PriceTicks, true
		}
	}
	for _, lvl := range asks {
		if !haveAsk || lvl.PriceTicks < bestAskTicks {
			bestAskTicks, haveAsk = lvl.PriceTicks, true
		}
	}
	if haveBid && haveAsk && bestBidTicks >= bestAskTicks {
		return baseerrors.Wrap(baseerrors.ErrCorruptSnapshot, "snapshot best bid >= best ask")
	}

	newBids := btree.NewMap[schema.PriceTick, schema.Quantity](btreeDegree)
	newAsks := btree.NewMap[schema.PriceTick, schema.Quantity](btreeDegree)
	for _, lvl := range bids {
		if lvl.Qty > 0 {
			newBids.Set(lvl.PriceTicks, lvl.Qty)
		}
	}
	for _, lvl := range asks {
		if lvl.Qty > 0 {
			newAsks.Set(lvl.PriceTicks, lvl.Qty)
		}
	}
	d.bids = newBids
	d.asks = newAsks
	d.refreshBest()
	return nil
}

// resolveCross trims whichever side is "behind" when a DEPTH update
// leaves the book locally crossed, e.g. a stale resting bid that the
// feed never explicitly cleared. updatedSide is the side the triggering
// DEPTH event just touched; per §4.4 the freshest update wins, so the
// crossed levels removed are always on the opposite, stale side.
func (d *MarketDepth) resolveCross(updatedSide schema.Side) {
	staleBook := d.bookFor(updatedSide.Opposite())
	for {
		bestBid, okBid := d.bidsMax()
		bestAsk, okAsk := d.asksMin()
		if !okBid || !okAsk || bestBid < bestAsk {
			return
		}
		if updatedSide == schema.SideBuy {
			staleBook.Delete(bestAsk)
		} else {
			staleBook.Delete(bestBid)
		}
		d.refreshBest()
	}
}

func (d *MarketDepth) bidsMax() (schema.PriceTick, bool) {
	var max schema.PriceTick
	found := false
	d.bids.Reverse(func(priceTicks schema.PriceTick, _ schema.Quantity) bool {
		max, found = priceTicks, true
		return false
	})
	return max, found
}

func (d *MarketDepth) asksMin() (schema.PriceTick, bool) {
	var min schema.PriceTick
	found := false
	d.asks.Scan(func(priceTicks schema.PriceTick, _ schema.Quantity) bool {
		min, found = priceTicks, true
		return false
	})
	return min, found
}

func (d *MarketDepth) refreshBest() {
	d.haveBid = false
	d.bids.Reverse(func(priceTicks schema.PriceTick, _ schema.Quantity) bool {
		d.bestBid, d.haveBid = priceTicks, true
		return false
	})
	d.haveAsk = false
	d.asks.Scan(func(priceTicks schema.PriceTick, _ schema.Quantity) bool {
		d.bestAsk, d.haveAsk = priceTicks, true
		return false
	})
}
