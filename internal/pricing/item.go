// Package pricing computes line and transaction totals. Every function here is
// a pure transform over its arguments so callers can recompute after any cart
// mutation and at persistence time.
package pricing

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tokoledger/api/internal/enum"
)

// Errors returned by the pricing calculators.
var (
	ErrInvalidQuantity = errors.New("quantity must be > 0")
	ErrInvalidDiscount = errors.New("invalid discount")
	ErrInvalidCharge   = errors.New("charges must be >= 0")
)

var hundred = decimal.NewFromInt(100)

// LineItem is one product, or one selected variation of a variable product,
// inside a cart.
type LineItem struct {
	ProductID   uuid.UUID
	VariationID uuid.NullUUID
	Name        string
	UnitPrice   decimal.Decimal
	UnitCost    decimal.Decimal
	Quantity    int32
	// ReturnedQty is only known for lines of an existing transaction.
	ReturnedQty   int32
	DiscountKind  string
	DiscountValue decimal.Decimal
	// Role is SALE, RETURN (legacy in-cart return marker) or empty for SALE.
	Role       string
	StockAtAdd int32
}

// Key identifies a line for merge purposes.
type Key struct {
	ProductID   uuid.UUID
	VariationID uuid.NullUUID
}

// Key returns the merge key of the line.
func (l LineItem) Key() Key {
	return Key{ProductID: l.ProductID, VariationID: l.VariationID}
}

// IsReturn reports whether the line carries the legacy in-cart return role.
func (l LineItem) IsReturn() bool {
	return l.Role == enum.LineRoleReturn
}

// IsCents reports whether d has at most two decimal places. Amounts and
// discount values are stored at that scale.
func IsCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// ValidateDiscount checks a per-item discount kind/value pair.
func ValidateDiscount(kind string, value decimal.Decimal) error {
	if kind == "" {
		return nil
	}
	if !IsCents(value) {
		return ErrInvalidDiscount
	}
	switch kind {
	case enum.ItemDiscountFlat:
		if value.IsNegative() {
			return ErrInvalidDiscount
		}
	case enum.ItemDiscountPercentage:
		if value.IsNegative() || value.GreaterThan(hundred) {
			return ErrInvalidDiscount
		}
	default:
		return ErrInvalidDiscount
	}
	return nil
}

// ValidateLine checks a line before pricing.
func ValidateLine(l LineItem) error {
	if l.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	return ValidateDiscount(l.DiscountKind, l.DiscountValue)
}

// LineGross is unit price times quantity.
func LineGross(l LineItem) decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity))
}

// LineDiscount returns the per-item discount amount rounded to 2 decimals.
func LineDiscount(l LineItem) decimal.Decimal {
	switch l.DiscountKind {
	case enum.ItemDiscountFlat:
		return l.DiscountValue.Round(2)
	case enum.ItemDiscountPercentage:
		return LineGross(l).Mul(l.DiscountValue).Div(hundred).Round(2)
	}
	return decimal.Zero
}

// LineNet is gross minus discount. An oversized flat discount yields a
// negative value; it is surfaced as-is.
func LineNet(l LineItem) decimal.Decimal {
	return LineGross(l).Sub(LineDiscount(l))
}
