package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

// marketEventBaseSize is the fixed portion of an encoded MarketEvent:
// Kind(1) ExchTsNano(8) LocalTsNano(8) Side(4) PriceTicks(8) Qty(8)
// ClearInclusive(1) numBids(2) numAsks(2).
const marketEventBaseSize = 42

// depthLevelSize is PriceTicks(8) + Qty(8).
const depthLevelSize = 16

// EncodeMarketEvent serializes a market event into a variable-length
// payload: a fixed header followed by the snapshot ladders, if any.
// Depth/trade/clear events carry no ladder and encode to exactly
// marketEventBaseSize bytes.
func EncodeMarketEvent(dst []byte, evt schema.MarketEvent) []byte {
	size := marketEventBaseSize + len(evt.SnapshotBids)*depthLevelSize + len(evt.SnapshotAsks)*depthLevelSize
	if cap(dst) < size {
		dst = make([]byte, size)
	} else {
		dst = dst[:size]
	}

	dst[0] = byte(evt.Kind)
	binary.LittleEndian.PutUint64(dst[1:9], uint64(evt.ExchTsNano))
	binary.LittleEndian.PutUint64(dst[9:17], uint64(evt.LocalTsNano))
	binary.LittleEndian.PutUint32(dst[17:21], uint32(evt.Side))
	binary.LittleEndian.PutUint64(dst[21:29], uint64(evt.PriceTicks))
	binary.LittleEndian.PutUint64(dst[29:37], uint64(evt.Qty))
	if evt.ClearInclusive {
		dst[37] = 1
	} else {
		dst[37] = 0
	}
	binary.LittleEndian.PutUint16(dst[38:40], uint16(len(evt.SnapshotBids)))
	binary.LittleEndian.PutUint16(dst[40:42], uint16(len(evt.SnapshotAsks)))

	off := marketEventBaseSize
	off = encodeLevels(dst, off, evt.SnapshotBids)
	encodeLevels(dst, off, evt.SnapshotAsks)

	return dst
}

func encodeLevels(dst []byte, off int, levels []schema.DepthLevel) int {
	for _, lvl := range levels {
		binary.LittleEndian.PutUint64(dst[off:off+8], uint64(lvl.PriceTicks))
		binary.LittleEndian.PutUint64(dst[off+8:off+16], uint64(lvl.Qty))
		off += depthLevelSize
	}
	return off
}

// DecodeMarketEvent parses a market event payload produced by
// EncodeMarketEvent.
func DecodeMarketEvent(src []byte) (schema.MarketEvent, bool) {
	if len(src) < marketEventBaseSize {
		return schema.MarketEvent{}, false
	}
	numBids := int(binary.LittleEndian.Uint16(src[38:40]))
	numAsks := int(binary.LittleEndian.Uint16(src[40:42]))
	want := marketEventBaseSize + numBids*depthLevelSize + numAsks*depthLevelSize
	if len(src) < want {
		return schema.MarketEvent{}, false
	}

	evt := schema.MarketEvent{
		Kind:           schema.MarketEventKind(src[0]),
		ExchTsNano:     int64(binary.LittleEndian.Uint64(src[1:9])),
		LocalTsNano:    int64(binary.LittleEndian.Uint64(src[9:17])),
		Side:           schema.Side(binary.LittleEndian.Uint32(src[17:21])),
		PriceTicks:     schema.PriceTick(int64(binary.LittleEndian.Uint64(src[21:29]))),
		Qty:            schema.Quantity(int64(binary.LittleEndian.Uint64(src[29:37]))),
		ClearInclusive: src[37] != 0,
	}

	off := marketEventBaseSize
	evt.SnapshotBids, off = decodeLevels(src, off, numBids)
	evt.SnapshotAsks, _ = decodeLevels(src, off, numAsks)

	return evt, true
}

func decodeLevels(src []byte, off, count int) ([]schema.DepthLevel, int) {
	if count == 0 {
		return nil, off
	}
	levels := make([]schema.DepthLevel, count)
	for i := range levels {
		levels[i] = schema.DepthLevel{
			PriceTicks: schema.PriceTick(int64(binary.LittleEndian.Uint64(src[off : off+8]))),
			Qty:        schema.Quantity(int64(binary.LittleEndian.Uint64(src[off+8 : off+16]))),
		}
		off += depthLevelSize
	}
	return levels, off
}
