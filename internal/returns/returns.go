// Package returns reconciles post-sale return requests against the lines of
// an original transaction. Return amounts are always priced at the unit price
// recorded on the original sale.
package returns

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrExceedsAvailableQuantity = errors.New("return quantity exceeds available quantity")
	ErrInvalidQuantity          = errors.New("return quantity must be > 0")
	ErrLineNotFound             = errors.New("line not found on original transaction")
	ErrEmptyReturn              = errors.New("return must contain at least one line")
)

// OriginalLine is a sold line of the original transaction together with the
// quantity already consumed by prior returns.
type OriginalLine struct {
	LineID      uuid.UUID
	ProductID   uuid.UUID
	VariationID uuid.NullUUID
	Name        string
	SoldQty     int32
	ReturnedQty int32
	UnitPrice   decimal.Decimal
}

// Request asks to return Quantity units of one original line.
type Request struct {
	LineID   uuid.UUID
	Quantity int32
}

// Item is one validated returned line.
type Item struct {
	Line     OriginalLine
	Quantity int32
	Amount   decimal.Decimal
}

// Reconciliation is the validated content of a return record.
type Reconciliation struct {
	Items []Item
	Total decimal.Decimal
}

// Returnable is the headroom left on a line.
func Returnable(l OriginalLine) int32 {
	return l.SoldQty - l.ReturnedQty
}

// Amount prices qty units at the original sale's unit price.
func Amount(l OriginalLine, qty int32) decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt32(qty)).Round(2)
}

// Reconcile validates reqs against lines. Requests for the same line are
// summed before the headroom check. Out-of-range requests are rejected,
// never clamped. Items are returned in the order lines first appear in reqs.
func Reconcile(lines []OriginalLine, reqs []Request) (Reconciliation, error) {
	if len(reqs) == 0 {
		return Reconciliation{}, ErrEmptyReturn
	}

	byID := make(map[uuid.UUID]OriginalLine, len(lines))
	for _, l := range lines {
		byID[l.LineID] = l
	}

	qty := make(map[uuid.UUID]int32, len(reqs))
	var order []uuid.UUID
	for i, r := range reqs {
		if r.Quantity <= 0 {
			return Reconciliation{}, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
		if _, ok := byID[r.LineID]; !ok {
			return Reconciliation{}, fmt.Errorf("items[%d]: %w", i, ErrLineNotFound)
		}
		if _, seen := qty[r.LineID]; !seen {
			order = append(order, r.LineID)
		}
		qty[r.LineID] += r.Quantity
	}

	rec := Reconciliation{Total: decimal.Zero}
	for _, id := range order {
		l := byID[id]
		q := qty[id]
		if avail := Returnable(l); q > avail {
			return Reconciliation{}, fmt.Errorf("%s: %w: requested %d, available %d",
				l.Name, ErrExceedsAvailableQuantity, q, avail)
		}
		amt := Amount(l, q)
		rec.Items = append(rec.Items, Item{Line: l, Quantity: q, Amount: amt})
		rec.Total = rec.Total.Add(amt)
	}
	return rec, nil
}

// Apply returns a copy of lines with rec's quantities added to ReturnedQty.
func Apply(lines []OriginalLine, rec Reconciliation) []OriginalLine {
	out := make([]OriginalLine, len(lines))
	copy(out, lines)
	for _, it := range rec.Items {
		for i := range out {
			if out[i].LineID == it.Line.LineID {
				out[i].ReturnedQty += it.Quantity
			}
		}
	}
	return out
}

// Summary is the derived return state of an original transaction.
type Summary struct {
	TotalReturned    decimal.Decimal
	NetTotal         decimal.Decimal
	HasPartialReturn bool
	HasFullReturn    bool
}

// Summarize derives net total and partial/full flags. Overshoot counts as
// a full return. Both flags need something returned, so a zero or negative
// grand total with no returns is not fully returned.
func Summarize(grandTotal, totalReturned decimal.Decimal) Summary {
	return Summary{
		TotalReturned:    totalReturned,
		NetTotal:         grandTotal.Sub(totalReturned),
		HasPartialReturn: totalReturned.IsPositive() && totalReturned.LessThan(grandTotal),
		HasFullReturn:    totalReturned.IsPositive() && totalReturned.GreaterThanOrEqual(grandTotal),
	}
}
