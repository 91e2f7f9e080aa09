// Package payment allocates a transaction's grand total across one or more
// payment methods and derives paid, due and change.
package payment

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tokoledger/api/internal/enum"
	"github.com/tokoledger/api/internal/pricing"
)

var (
	ErrPaymentMismatch      = errors.New("split payment amounts do not sum to received amount")
	ErrEmptySplit           = errors.New("split payment requires at least one breakdown")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidAmount        = errors.New("amount must be >= 0 with at most 2 decimals")
	ErrMissingPayment       = errors.New("payment is required")
)

var validMethods = map[string]bool{
	enum.PaymentMethodCash:   true,
	enum.PaymentMethodCard:   true,
	enum.PaymentMethodMobile: true,
	enum.PaymentMethodBank:   true,
	enum.PaymentMethodCheque: true,
}

// ValidMethod reports whether m is an accepted payment method name.
func ValidMethod(m string) bool {
	return validMethods[m]
}

func validAmount(d decimal.Decimal) bool {
	return !d.IsNegative() && pricing.IsCents(d)
}

// Breakdown is one allocation of the received amount to a payment method.
type Breakdown struct {
	Method string
	Amount decimal.Decimal
}

// Payment is either Single or Split.
type Payment interface {
	breakdowns() ([]Breakdown, decimal.Decimal, error)
	paymentType() string
}

// Single allocates the full received amount to one method.
type Single struct {
	Method   string
	Received decimal.Decimal
}

func (s Single) breakdowns() ([]Breakdown, decimal.Decimal, error) {
	if !ValidMethod(s.Method) {
		return nil, decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, s.Method)
	}
	if !validAmount(s.Received) {
		return nil, decimal.Zero, ErrInvalidAmount
	}
	return []Breakdown{{Method: s.Method, Amount: s.Received}}, s.Received, nil
}

func (s Single) paymentType() string { return s.Method }

// Split spreads the received amount over an explicit breakdown. When Received
// is set it must equal the breakdown sum; when unset the sum is taken as the
// received amount.
type Split struct {
	Breakdown []Breakdown
	Received  decimal.NullDecimal
}

func (s Split) breakdowns() ([]Breakdown, decimal.Decimal, error) {
	if len(s.Breakdown) == 0 {
		return nil, decimal.Zero, ErrEmptySplit
	}
	sum := decimal.Zero
	out := make([]Breakdown, len(s.Breakdown))
	for i, b := range s.Breakdown {
		if !ValidMethod(b.Method) {
			return nil, decimal.Zero, fmt.Errorf("payments[%d]: %w: %q", i, ErrInvalidPaymentMethod, b.Method)
		}
		if !validAmount(b.Amount) {
			return nil, decimal.Zero, fmt.Errorf("payments[%d]: %w", i, ErrInvalidAmount)
		}
		sum = sum.Add(b.Amount)
		out[i] = b
	}
	if s.Received.Valid && !validAmount(s.Received.Decimal) {
		return nil, decimal.Zero, fmt.Errorf("received: %w", ErrInvalidAmount)
	}
	if s.Received.Valid && !s.Received.Decimal.Equal(sum) {
		return nil, decimal.Zero, fmt.Errorf("%w: sum %s, received %s",
			ErrPaymentMismatch, sum.StringFixed(2), s.Received.Decimal.StringFixed(2))
	}
	return out, sum, nil
}

func (s Split) paymentType() string { return enum.PaymentTypeMixed }

// Settlement is the derived payment state of a transaction.
type Settlement struct {
	PaymentType string
	Received    decimal.Decimal
	// Paid is the part of Received applied to the grand total.
	Paid     decimal.Decimal
	Due      decimal.Decimal
	Change   decimal.Decimal
	Payments []Breakdown
}

// Settle validates p and derives paid, due and change against grandTotal.
func Settle(p Payment, grandTotal decimal.Decimal) (Settlement, error) {
	if p == nil {
		return Settlement{}, ErrMissingPayment
	}
	payments, received, err := p.breakdowns()
	if err != nil {
		return Settlement{}, err
	}

	s := Settlement{
		PaymentType: p.paymentType(),
		Received:    received,
		Payments:    payments,
		Paid:        received,
		Due:         decimal.Zero,
		Change:      decimal.Zero,
	}
	total := decimal.Max(grandTotal, decimal.Zero)
	switch {
	case received.GreaterThan(total):
		s.Paid = total
		s.Change = received.Sub(total)
	case received.LessThan(total):
		s.Due = total.Sub(received)
	}
	return s, nil
}

// Full returns a Single payment of the grand total in one method, as used
// for generated companion sales.
func Full(method string, grandTotal decimal.Decimal) Single {
	return Single{Method: method, Received: decimal.Max(grandTotal, decimal.Zero)}
}
