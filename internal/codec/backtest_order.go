package codec

import (
	"encoding/binary"
	"math"

	"main/internal/schema"
)

// orderSize is a schema.Order encoded fixed-width: ID(8) Side(4)
// Price(8) OrigQty(8) LeavesQty(8) TIF(1) State(1) CreatedExchTs(8)
// QueueAheadQty(8) Maker(1) LocalObserved(1).
const orderSize = 56

// fillDetailSize is a schema.FillDetail encoded fixed-width:
// OrderID(8) Side(4) PriceTicks(8) Qty(8) Fee(8) Maker(1) ExchTsNano(8).
const fillDetailSize = 45

// BusMessagePayloadSize is kind(1) + Order(56) + OrderID(8) + Fill(45),
// always encoded in full regardless of Kind so the WAL record shape is
// uniform and independent of which lane produced it.
const BusMessagePayloadSize = 1 + orderSize + 8 + fillDetailSize

// EncodeBusMessage serializes an OrderBus message into a fixed-size
// payload suitable for WAL replay of a run's order flow.
func EncodeBusMessage(dst []byte, msg schema.BusMessage) []byte {
	if cap(dst) < BusMessagePayloadSize {
		dst = make([]byte, BusMessagePayloadSize)
	} else {
		dst = dst[:BusMessagePayloadSize]
	}

	dst[0] = byte(msg.Kind)
	encodeOrder(dst[1:1+orderSize], msg.Order)
	binary.LittleEndian.PutUint64(dst[1+orderSize:1+orderSize+8], uint64(msg.OrderID))
	encodeFillDetail(dst[1+orderSize+8:], msg.Fill)

	return dst
}

// DecodeBusMessage parses a payload produced by EncodeBusMessage.
func DecodeBusMessage(src []byte) (schema.BusMessage, bool) {
	if len(src) < BusMessagePayloadSize {
		return schema.BusMessage{}, false
	}
	return schema.BusMessage{
		Kind:    schema.BusMsgKind(src[0]),
		Order:   decodeOrder(src[1 : 1+orderSize]),
		OrderID: schema.BacktestOrderID(binary.LittleEndian.Uint64(src[1+orderSize : 1+orderSize+8])),
		Fill:    decodeFillDetail(src[1+orderSize+8:]),
	}, true
}

func encodeOrder(dst []byte, o schema.Order) {
	binary.LittleEndian.PutUint64(dst[0:8], uint64(o.ID))
	binary.LittleEndian.PutUint32(dst[8:12], uint32(o.Side))
	binary.LittleEndian.PutUint64(dst[12:20], uint64(o.Price))
	binary.LittleEndian.PutUint64(dst[20:28], uint64(o.OrigQty))
	binary.LittleEndian.PutUint64(dst[28:36], uint64(o.LeavesQty))
	dst[36] = byte(o.TIF)
	dst[37] = byte(o.State)
	binary.LittleEndian.PutUint64(dst[38:46], uint64(o.CreatedExchTs))
	binary.LittleEndian.PutUint64(dst[46:54], uint64(o.QueueAheadQty))
	dst[54] = boolByte(o.Maker)
	dst[55] = boolByte(o.LocalObserved)
}

func decodeOrder(src []byte) schema.Order {
	return schema.Order{
		ID:            schema.BacktestOrderID(binary.LittleEndian.Uint64(src[0:8])),
		Side:          schema.Side(binary.LittleEndian.Uint32(src[8:12])),
		Price:         schema.PriceTick(int64(binary.LittleEndian.Uint64(src[12:20]))),
		OrigQty:       schema.Quantity(int64(binary.LittleEndian.Uint64(src[20:28]))),
		LeavesQty:     schema.Quantity(int64(binary.LittleEndian.Uint64(src[28:36]))),
		TIF:           schema.OrderTIF(src[36]),
		State:         schema.OrderState(src[37]),
		CreatedExchTs: int64(binary.LittleEndian.Uint64(src[38:46])),
		QueueAheadQty: schema.Quantity(int64(binary.LittleEndian.Uint64(src[46:54]))),
		Maker:         src[54] != 0,
		LocalObserved: src[55] != 0,
	}
}

func encodeFillDetail(dst []byte, f schema.FillDetail) {
	binary.LittleEndian.PutUint64(dst[0:8], uint64(f.OrderID))
	binary.LittleEndian.PutUint32(dst[8:12], uint32(f.Side))
	binary.LittleEndian.PutUint64(dst[12:20], uint64(f.PriceTicks))
	binary.LittleEndian.PutUint64(dst[20:28], uint64(f.Qty))
	binary.LittleEndian.PutUint64(dst[28:36], math.Float64bits(f.Fee))
	dst[36] = boolByte(f.Maker)
	binary.LittleEndian.PutUint64(dst[37:45], uint64(f.ExchTsNano))
}

func decodeFillDetail(src []byte) schema.FillDetail {
	return schema.FillDetail{
		OrderID:    schema.BacktestOrderID(binary.LittleEndian.Uint64(src[0:8])),
		Side:       schema.Side(binary.LittleEndian.Uint32(src[8:12])),
		PriceTicks: schema.PriceTick(int64(binary.LittleEndian.Uint64(src[12:20]))),
		Qty:        schema.Quantity(int64(binary.LittleEndian.Uint64(src[20:28]))),
		Fee:        math.Float64frombits(binary.LittleEndian.Uint64(src[28:36])),
		Maker:      src[36] != 0,
		ExchTsNano: int64(binary.LittleEndian.Uint64(src[37:45])),
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
