// Package cart resolves catalog products into priced, stock-checked line items
// and keeps them merged by product and variation.
package cart

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tokoledger/api/internal/enum"
	"github.com/tokoledger/api/internal/pricing"
)

var (
	ErrOutOfStock        = errors.New("out of stock")
	ErrVariationRequired = errors.New("product has variations, a variation must be selected")
	ErrVariationNotFound = errors.New("variation not found on product")
	ErrLineNotFound      = errors.New("line not in cart")
	ErrInvalidQuantity   = pricing.ErrInvalidQuantity
	ErrInvalidDiscount   = pricing.ErrInvalidDiscount
)

// Product is the catalog view the resolver needs. A nil Cost means the
// catalog has no purchase price on record.
type Product struct {
	ID         uuid.UUID
	Name       string
	Price      decimal.Decimal
	Cost       decimal.NullDecimal
	Stock      int32
	Variations []Variation
}

type Variation struct {
	ID    uuid.UUID
	Name  string
	Price decimal.Decimal
	Cost  decimal.NullDecimal
	Stock int32
}

// Cart is an ordered set of line items unique by (product, variation).
// It is not safe for concurrent use.
type Cart struct {
	lines []pricing.LineItem
}

// New returns a cart seeded with existing lines, e.g. when reopening a held
// transaction. Lines are copied.
func New(lines ...pricing.LineItem) *Cart {
	c := &Cart{lines: make([]pricing.LineItem, len(lines))}
	copy(c.lines, lines)
	return c
}

// Resolve turns a product and an optional variation into a fresh line item
// of the given quantity, without touching any cart.
func Resolve(p Product, variationID uuid.NullUUID, qty int32) (pricing.LineItem, error) {
	if qty <= 0 {
		return pricing.LineItem{}, ErrInvalidQuantity
	}

	item := pricing.LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		Quantity:  qty,
		Role:      enum.LineRoleSale,
	}

	if len(p.Variations) == 0 {
		if variationID.Valid {
			return pricing.LineItem{}, ErrVariationNotFound
		}
		item.UnitPrice = p.Price
		item.UnitCost = costOrZero(p.Cost)
		item.StockAtAdd = p.Stock
	} else {
		if !variationID.Valid {
			return pricing.LineItem{}, ErrVariationRequired
		}
		v, ok := findVariation(p.Variations, variationID.UUID)
		if !ok {
			return pricing.LineItem{}, ErrVariationNotFound
		}
		item.VariationID = variationID
		item.Name = p.Name + " - " + v.Name
		item.UnitPrice = v.Price
		item.UnitCost = costOrZero(v.Cost)
		item.StockAtAdd = v.Stock
	}

	if qty > item.StockAtAdd {
		return pricing.LineItem{}, ErrOutOfStock
	}
	return item, nil
}

// Add resolves the product and merges it into the cart. An existing line is
// incremented, bounded by the stock recorded when it first entered the cart.
// On error the cart is unchanged.
func (c *Cart) Add(p Product, variationID uuid.NullUUID, qty int32) (pricing.LineItem, error) {
	item, err := Resolve(p, variationID, qty)
	if err != nil {
		// an existing line is bounded by its own recorded stock
		if !errors.Is(err, ErrOutOfStock) {
			return pricing.LineItem{}, err
		}
	}

	key := pricing.Key{ProductID: p.ID, VariationID: variationID}
	if i := c.index(key); i >= 0 {
		next := c.lines[i].Quantity + qty
		if next > c.lines[i].StockAtAdd {
			return pricing.LineItem{}, ErrOutOfStock
		}
		c.lines[i].Quantity = next
		return c.lines[i], nil
	}
	if err != nil {
		return pricing.LineItem{}, err
	}

	c.lines = append(c.lines, item)
	return item, nil
}

// SetQuantity replaces the quantity of a line.
func (c *Cart) SetQuantity(key pricing.Key, qty int32) error {
	i := c.index(key)
	if i < 0 {
		return ErrLineNotFound
	}
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if qty > c.lines[i].StockAtAdd {
		return ErrOutOfStock
	}
	c.lines[i].Quantity = qty
	return nil
}

// Remove drops a line from the cart.
func (c *Cart) Remove(key pricing.Key) error {
	i := c.index(key)
	if i < 0 {
		return ErrLineNotFound
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return nil
}

// SetDiscount sets a per-item discount. An empty kind clears it.
func (c *Cart) SetDiscount(key pricing.Key, kind string, value decimal.Decimal) error {
	i := c.index(key)
	if i < 0 {
		return ErrLineNotFound
	}
	if err := pricing.ValidateDiscount(kind, value); err != nil {
		return err
	}
	if kind == "" {
		value = decimal.Zero
	}
	c.lines[i].DiscountKind = kind
	c.lines[i].DiscountValue = value
	return nil
}

// MarkReturn toggles the legacy in-cart return role of a line. This is
// separate from post-sale returns, which never touch a cart.
func (c *Cart) MarkReturn(key pricing.Key, isReturn bool) error {
	i := c.index(key)
	if i < 0 {
		return ErrLineNotFound
	}
	if isReturn {
		c.lines[i].Role = enum.LineRoleReturn
	} else {
		c.lines[i].Role = enum.LineRoleSale
	}
	return nil
}

// Lines returns a snapshot of the cart's lines in insertion order.
func (c *Cart) Lines() []pricing.LineItem {
	out := make([]pricing.LineItem, len(c.lines))
	copy(out, c.lines)
	return out
}

// Len is the number of distinct lines.
func (c *Cart) Len() int { return len(c.lines) }

func (c *Cart) index(key pricing.Key) int {
	for i := range c.lines {
		if c.lines[i].Key() == key {
			return i
		}
	}
	return -1
}

func findVariation(vs []Variation, id uuid.UUID) (Variation, bool) {
	for _, v := range vs {
		if v.ID == id {
			return v, true
		}
	}
	return Variation{}, false
}

func costOrZero(c decimal.NullDecimal) decimal.Decimal {
	if !c.Valid {
		return decimal.Zero
	}
	return c.Decimal
}
