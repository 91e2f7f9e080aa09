package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tokoledger/api/internal/enum"
)

// BillDiscount is a discount applied to the whole subtotal.
// An empty Kind means no bill discount.
type BillDiscount struct {
	Kind  string
	Value decimal.Decimal
}

// Charges are the additive amounts applied after discounts.
type Charges struct {
	Tax           decimal.Decimal
	VAT           decimal.Decimal
	AIT           decimal.Decimal
	ServiceCharge decimal.Decimal
}

// TaxRates configures automatic VAT/Tax calculation. When Auto is set the
// computed amounts replace Charges.VAT and Charges.Tax.
type TaxRates struct {
	Auto       bool
	VATPercent decimal.Decimal
	TaxPercent decimal.Decimal
}

// Input is everything ComputeTotals needs.
type Input struct {
	Items          []LineItem
	BillDiscount   BillDiscount
	PointsDiscount decimal.Decimal
	Charges        Charges
	Rates          TaxRates
}

// Totals is the computed monetary summary of a transaction.
type Totals struct {
	SubTotal       decimal.Decimal
	BillDiscount   decimal.Decimal
	PointsDiscount decimal.Decimal
	Tax            decimal.Decimal
	VAT            decimal.Decimal
	AIT            decimal.Decimal
	ServiceCharge  decimal.Decimal
	GrandTotal     decimal.Decimal
}

// SubTotal sums SALE lines net of item discounts and subtracts the gross of
// legacy RETURN lines.
func SubTotal(items []LineItem) decimal.Decimal {
	sub := decimal.Zero
	for _, it := range items {
		if it.IsReturn() {
			sub = sub.Sub(LineGross(it))
			continue
		}
		sub = sub.Add(LineNet(it))
	}
	return sub
}

// ValidateBillDiscount checks a bill discount kind/value pair.
func ValidateBillDiscount(d BillDiscount) error {
	if d.Kind == "" {
		return nil
	}
	if !IsCents(d.Value) {
		return ErrInvalidDiscount
	}
	switch d.Kind {
	case enum.BillDiscountCash:
		if d.Value.IsNegative() {
			return ErrInvalidDiscount
		}
	case enum.BillDiscountPercentage:
		if d.Value.IsNegative() || d.Value.GreaterThan(hundred) {
			return ErrInvalidDiscount
		}
	default:
		return ErrInvalidDiscount
	}
	return nil
}

// BillDiscountAmount resolves a bill discount against a subtotal.
func BillDiscountAmount(d BillDiscount, subTotal decimal.Decimal) decimal.Decimal {
	switch d.Kind {
	case enum.BillDiscountCash:
		return d.Value
	case enum.BillDiscountPercentage:
		return d.Value.Div(hundred).Mul(subTotal).Round(2)
	}
	return decimal.Zero
}

// ComputeTotals derives subtotal through grand total. It has no side effects
// and returns the same result for the same input.
//
// Order of operations is fixed: discounts are taken first, then tax, VAT,
// AIT and service charge are added back. Auto VAT/Tax is computed against the
// discount-adjusted subtotal.
func ComputeTotals(in Input) (Totals, error) {
	for i, it := range in.Items {
		if err := ValidateLine(it); err != nil {
			return Totals{}, fmt.Errorf("items[%d]: %w", i, err)
		}
	}
	if err := ValidateBillDiscount(in.BillDiscount); err != nil {
		return Totals{}, fmt.Errorf("bill discount: %w", err)
	}
	if in.PointsDiscount.IsNegative() || !IsCents(in.PointsDiscount) {
		return Totals{}, fmt.Errorf("points discount: %w", ErrInvalidDiscount)
	}
	c := in.Charges
	for _, v := range []decimal.Decimal{c.Tax, c.VAT, c.AIT, c.ServiceCharge} {
		if v.IsNegative() || !IsCents(v) {
			return Totals{}, ErrInvalidCharge
		}
	}
	if in.Rates.Auto && (in.Rates.VATPercent.IsNegative() || in.Rates.TaxPercent.IsNegative()) {
		return Totals{}, ErrInvalidCharge
	}

	t := Totals{
		SubTotal:       SubTotal(in.Items),
		PointsDiscount: in.PointsDiscount,
		Tax:            c.Tax,
		VAT:            c.VAT,
		AIT:            c.AIT,
		ServiceCharge:  c.ServiceCharge,
	}
	t.BillDiscount = BillDiscountAmount(in.BillDiscount, t.SubTotal)

	taxBase := t.SubTotal.Sub(t.BillDiscount).Sub(t.PointsDiscount)
	if in.Rates.Auto {
		t.VAT = taxBase.Mul(in.Rates.VATPercent).Div(hundred).Round(2)
		t.Tax = taxBase.Mul(in.Rates.TaxPercent).Div(hundred).Round(2)
	}

	t.GrandTotal = taxBase.
		Add(t.Tax).
		Add(t.VAT).
		Add(t.AIT).
		Add(t.ServiceCharge).
		Round(2)
	return t, nil
}
