// Package asset implements the P&L arithmetic of §4.1: linear
// (spot-style, cash-settled) and inverse (coin-margined) contracts.
// It works on float prices only; converting between prices and ticks
// is not done in this package.
package asset

import (
	"github.com/yanun0323/decimal"

	baseerrors "main/internal/errors"
	"main/internal/schema"
)

// Type is the pure, side-effect-free contract arithmetic described in
// §4.1. Amount converts a (price, qty) pair into its cash equivalent;
// Equity folds a position, balance, outstanding fee and mark price
// into a single account value.
type Type interface {
	Kind() schema.AssetKind
	Amount(price, qty float64) (float64, error)
	Equity(position, balance, fee, midPrice float64) (float64, error)
}

// New builds the AssetType implementation selected by kind.
func New(kind schema.AssetKind) Type {
	switch kind {
	case schema.AssetKindInverse:
		return Inverse{}
	default:
		return Linear{}
	}
}

// Linear implements q·price cash-equivalent contracts (e.g. USD-margined).
type Linear struct{}

func (Linear) Kind() schema.AssetKind { return schema.AssetKindLinear }

func (Linear) Amount(price, qty float64) (float64, error) {
	if price <= 0 {
		return 0, baseerrors.Wrap(baseerrors.ErrInvalidInput, "linear amount: price must be positive")
	}
	return price * qty, nil
}

func (l Linear) Equity(position, balance, fee, midPrice float64) (float64, error) {
	amount, err := l.Amount(midPrice, position)
	if err != nil {
		return 0, err
	}
	return balance + amount - fee, nil
}

// Inverse implements q·(1/price) cash-equivalent contracts (coin-margined).
type Inverse struct{}

func (Inverse) Kind() schema.AssetKind { return schema.AssetKindInverse }

func (Inverse) Amount(price, qty float64) (float64, error) {
	if price <= 0 {
		return 0, baseerrors.Wrap(baseerrors.ErrInvalidInput, "inverse amount: price must be positive")
	}
	q := decimal.NewFromFloat(qty)
	p := decimal.NewFromFloat(price)
	result := q.Div(p)
	f, _ := result.Float64()
	return f, nil
}

func (i Inverse) Equity(position, balance, fee, midPrice float64) (float64, error) {
	amount, err := i.Amount(midPrice, position)
	if err != nil {
		return 0, err
	}
	return balance + amount - fee, nil
}
