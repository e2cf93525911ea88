// Package ingest parses the §6 historical event-stream format — rows
// of (event_flags, exch_ts, local_ts, side, price, qty) — into
// []schema.MarketEvent, normalizing price and quantity to the
// instrument's tick/lot grid before the kernel ever sees them.
package ingest

import (
	"sort"

	"github.com/shopspring/decimal"

	baseerrors "main/internal/errors"
	"main/internal/schema"
)

// Row is one record of the external event stream, in whatever
// columnar or row-oriented format the collaborator's reader produces.
// The low byte of EventFlags carries the record's schema.MarketEventKind;
// bit 8 (clearInclusiveFlag) additionally marks DEPTH_CLEAR's bound as inclusive,
// since the wire format has no separate boolean column for it.
type Row struct {
	EventFlags  int         `json:"event_flags"`
	ExchTsNano  int64       `json:"exch_ts"`
	LocalTsNano int64       `json:"local_ts"`
	Side        schema.Side `json:"side"`
	Price       float64     `json:"price"`
	Qty         float64     `json:"qty"`
}

const clearInclusiveFlag = 1 << 8

// Config parameterizes tick/lot normalization for one instrument.
type Config struct {
	TickSize float64
	LotSize  float64
}

// Parser converts raw rows into normalized market events.
type Parser struct {
	cfg Config
}

// NewParser builds a Parser for one instrument's tick/lot grid.
func NewParser(cfg Config) (*Parser, error) {
	if cfg.TickSize <= 0 || cfg.LotSize <= 0 {
		return nil, baseerrors.Wrap(baseerrors.ErrInvalidInput, "ingest: tick_size and lot_size must be positive")
	}
	return &Parser{cfg: cfg}, nil
}

// ToTicks rounds a raw price to its nearest tick count, using decimal
// arithmetic so repeating binary fractions (e.g. 0.1) don't bias the
// rounding the way a naive float64 division would.
func (p *Parser) ToTicks(price float64) schema.PriceTick {
	d := decimal.NewFromFloat(price).Div(decimal.NewFromFloat(p.cfg.TickSize))
	return schema.PriceTick(d.Round(0).IntPart())
}

// ToQty rounds a raw quantity to its nearest lot-size multiple,
// expressed directly in base units (§3: Quantity is the resting/order
// amount the rest of the core operates on, not a lot count).
func (p *Parser) ToQty(qty float64) schema.Quantity {
	lots := decimal.NewFromFloat(qty).Div(decimal.NewFromFloat(p.cfg.LotSize)).Round(0)
	amount := lots.Mul(decimal.NewFromFloat(p.cfg.LotSize))
	return schema.Quantity(amount.Round(0).IntPart())
}

// Parse converts rows into market events sorted by min(exch_ts,
// local_ts), the ordering the kernel assumes on input (§6). Rows must
// already be grouped by source in that order; Parse only re-sorts to
// guard against a misbehaving source, it does not merge multiple
// sources.
//
// DEPTH and TRADE rows map one-to-one onto a MarketEvent. Consecutive
// DEPTH_SNAPSHOT rows sharing the same (exch_ts, local_ts) are
// accumulated into a single snapshot event's bid/ask ladders, since
// one row only ever carries one price level.
func (p *Parser) Parse(rows []Row) ([]schema.MarketEvent, error) {
	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return minTs(sorted[i]) < minTs(sorted[j])
	})

	var events []schema.MarketEvent
	var pendingSnapshot *schema.MarketEvent

	flush := func() {
		if pendingSnapshot != nil {
			events = append(events, *pendingSnapshot)
			pendingSnapshot = nil
		}
	}

	for _, row := range sorted {
		kind := schema.MarketEventKind(row.EventFlags & 0xFF)
		if kind != schema.MarketEventKindDepthSnapshot {
			flush()
		}

		switch kind {
		case schema.MarketEventKindDepth, schema.MarketEventKindTrade:
			events = append(events, schema.MarketEvent{
				Kind:        kind,
				ExchTsNano:  row.ExchTsNano,
				LocalTsNano: row.LocalTsNano,
				Side:        row.Side,
				PriceTicks:  p.ToTicks(row.Price),
				Qty:         p.ToQty(row.Qty),
			})
		case schema.MarketEventKindDepthClear:
			events = append(events, schema.MarketEvent{
				Kind:           kind,
				ExchTsNano:     row.ExchTsNano,
				LocalTsNano:    row.LocalTsNano,
				Side:           row.Side,
				PriceTicks:     p.ToTicks(row.Price),
				ClearInclusive: row.EventFlags&clearInclusiveFlag != 0,
			})
		case schema.MarketEventKindDepthSnapshot:
			if pendingSnapshot == nil || pendingSnapshot.ExchTsNano != row.ExchTsNano || pendingSnapshot.LocalTsNano != row.LocalTsNano {
				flush()
				pendingSnapshot = &schema.MarketEvent{
					Kind:        kind,
					ExchTsNano:  row.ExchTsNano,
					LocalTsNano: row.LocalTsNano,
				}
			}
			level := schema.DepthLevel{PriceTicks: p.ToTicks(row.Price), Qty: p.ToQty(row.Qty)}
			if row.Side == schema.SideBuy {
				pendingSnapshot.SnapshotBids = append(pendingSnapshot.SnapshotBids, level)
			} else {
				pendingSnapshot.SnapshotAsks = append(pendingSnapshot.SnapshotAsks, level)
			}
		default:
			return nil, baseerrors.Wrap(baseerrors.ErrInvalidInput, "ingest: unknown event_flags kind")
		}
	}
	flush()
	return events, nil
}

func minTs(r Row) int64 {
	if r.ExchTsNano < r.LocalTsNano {
		return r.ExchTsNano
	}
	return r.LocalTsNano
}
