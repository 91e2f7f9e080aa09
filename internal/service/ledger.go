package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/tokoledger/api/internal/cart"
	"github.com/tokoledger/api/internal/database"
	"github.com/tokoledger/api/internal/enum"
	"github.com/tokoledger/api/internal/payment"
	"github.com/tokoledger/api/internal/pricing"
	"github.com/tokoledger/api/internal/returns"
)

const maxInvoiceNumberRetries = 3

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// stockStore moves product and variation stock.
type stockStore interface {
	AdjustProductStock(ctx context.Context, arg database.AdjustProductStockParams) error
	AdjustVariationStock(ctx context.Context, arg database.AdjustVariationStockParams) error
}

// ledgerStore is the part of the data store shared by everything that writes
// a priced transaction: catalog lookups, stock movements and the
// transaction/items/payments rows.
type ledgerStore interface {
	GetShop(ctx context.Context, id uuid.UUID) (database.Shop, error)
	GetNextInvoiceNumber(ctx context.Context, shopID uuid.UUID) (int32, error)
	GetProductForSale(ctx context.Context, arg database.GetProductForSaleParams) (database.Product, error)
	ListVariationsByProduct(ctx context.Context, productID uuid.UUID) ([]database.ProductVariation, error)
	stockStore
	CreateTransaction(ctx context.Context, arg database.CreateTransactionParams) (database.Transaction, error)
	UpdateTransaction(ctx context.Context, arg database.UpdateTransactionParams) (database.Transaction, error)
	DeleteTransaction(ctx context.Context, id uuid.UUID) error
	CreateTransactionItem(ctx context.Context, arg database.CreateTransactionItemParams) (database.TransactionItem, error)
	ListTransactionItems(ctx context.Context, transactionID uuid.UUID) ([]database.TransactionItem, error)
	DeleteTransactionItems(ctx context.Context, transactionID uuid.UUID) error
	CreateTransactionPayment(ctx context.Context, arg database.CreateTransactionPaymentParams) (database.TransactionPayment, error)
	ListTransactionPayments(ctx context.Context, transactionID uuid.UUID) ([]database.TransactionPayment, error)
	DeleteTransactionPayments(ctx context.Context, transactionID uuid.UUID) error
	CountReturnsByTransaction(ctx context.Context, transactionID uuid.UUID) (int64, error)
}

// Actor is the authenticated operator, copied onto records as salesman.
type Actor struct {
	UserID uuid.UUID
	Name   string
	Role   string
}

// ItemInput is one requested cart line.
type ItemInput struct {
	ProductID     uuid.UUID
	VariationID   uuid.NullUUID
	Quantity      int32
	DiscountKind  string
	DiscountValue decimal.Decimal
	// Role is SALE (or empty) for sold goods, RETURN for the legacy
	// in-cart return marker.
	Role string
}

// TransactionResult is a stored transaction with its lines, payments and
// freshly derived totals.
type TransactionResult struct {
	Transaction database.Transaction
	Items       []database.TransactionItem
	Payments    []database.TransactionPayment
	Totals      pricing.Totals
	Settlement  payment.Settlement
	Returns     returns.Summary
	// Replayed is set when an idempotent resubmission returned an
	// earlier record instead of storing a new one.
	Replayed bool
}

// entry is a fully priced transaction ready to be written.
type entry struct {
	status     string
	lines      []pricing.LineItem
	bill       pricing.BillDiscount
	totals     pricing.Totals
	settlement payment.Settlement
}

func isFinal(status string) bool {
	return status == enum.TransactionStatusSale || status == enum.TransactionStatusExchange
}

func isInvoiceNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "transactions_shop_id_invoice_seq_key"
	}
	return false
}

func formatInvoiceNumber(seq int32) string {
	return fmt.Sprintf("INV-%06d", seq)
}

// catalogProduct converts stored catalog rows into the resolver's view.
// extra lifts the available stock per key, e.g. by the quantity an edited
// record already holds.
func catalogProduct(p database.Product, vars []database.ProductVariation, extra map[pricing.Key]int32) cart.Product {
	cp := cart.Product{
		ID:    p.ID,
		Name:  p.Name,
		Price: database.NumericToDecimal(p.Price),
		Cost:  numericToNullDecimal(p.Cost),
		Stock: p.Stock + extra[pricing.Key{ProductID: p.ID}],
	}
	for _, v := range vars {
		key := pricing.Key{ProductID: p.ID, VariationID: uuid.NullUUID{UUID: v.ID, Valid: true}}
		cp.Variations = append(cp.Variations, cart.Variation{
			ID:    v.ID,
			Name:  v.Name,
			Price: database.NumericToDecimal(v.Price),
			Cost:  numericToNullDecimal(v.Cost),
			Stock: v.Stock + extra[key],
		})
	}
	return cp
}

// liftStock makes room for qty units of goods coming back over the counter,
// which are not bounded by shelf stock.
func liftStock(p cart.Product, qty int32) cart.Product {
	p.Stock += qty
	vars := make([]cart.Variation, len(p.Variations))
	for i, v := range p.Variations {
		v.Stock += qty
		vars[i] = v
	}
	p.Variations = vars
	return p
}

// resolveLines loads every requested product from the catalog and builds the
// cart. held is the quantity per key already taken from stock by the record
// being edited.
func resolveLines(ctx context.Context, store ledgerStore, shopID uuid.UUID, items []ItemInput, held map[pricing.Key]int32) ([]pricing.LineItem, error) {
	sold := cart.New()
	back := cart.New()

	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
		if item.Role != "" && item.Role != enum.LineRoleSale && item.Role != enum.LineRoleReturn {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidLineRole)
		}

		product, err := store.GetProductForSale(ctx, database.GetProductForSaleParams{
			ID:     item.ProductID,
			ShopID: shopID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("items[%d]: %w", i, ErrProductNotFound)
			}
			return nil, fmt.Errorf("items[%d]: get product: %w", i, err)
		}
		vars, err := store.ListVariationsByProduct(ctx, product.ID)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: list variations: %w", i, err)
		}

		cp := catalogProduct(product, vars, held)
		target := sold
		if item.Role == enum.LineRoleReturn {
			cp = liftStock(cp, item.Quantity)
			target = back
		}

		line, err := target.Add(cp, item.VariationID, item.Quantity)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		if item.DiscountKind != "" {
			if err := target.SetDiscount(line.Key(), item.DiscountKind, item.DiscountValue); err != nil {
				return nil, fmt.Errorf("items[%d]: %w", i, err)
			}
		}
		if item.Role == enum.LineRoleReturn {
			if err := back.MarkReturn(line.Key(), true); err != nil {
				return nil, fmt.Errorf("items[%d]: %w", i, err)
			}
		}
	}

	return append(sold.Lines(), back.Lines()...), nil
}

func checkNotEmpty(status string, lines []pricing.LineItem) error {
	if !isFinal(status) {
		if len(lines) == 0 {
			return ErrEmptyCart
		}
		return nil
	}
	for _, l := range lines {
		if !l.IsReturn() {
			return nil
		}
	}
	return ErrEmptyCart
}

func shopRates(shop database.Shop) pricing.TaxRates {
	return pricing.TaxRates{
		Auto:       shop.AutoTax,
		VATPercent: database.NumericToDecimal(shop.VatPercent),
		TaxPercent: database.NumericToDecimal(shop.TaxPercent),
	}
}

// priceEntry computes totals and settlement for a line set. A nil payment is
// only accepted for DRAFT and HOLD records.
func priceEntry(status string, lines []pricing.LineItem, in pricing.Input, p payment.Payment) (entry, error) {
	in.Items = lines
	totals, err := pricing.ComputeTotals(in)
	if err != nil {
		return entry{}, err
	}

	var s payment.Settlement
	if p == nil && !isFinal(status) {
		s = unsettled(totals.GrandTotal)
	} else {
		s, err = payment.Settle(p, totals.GrandTotal)
		if err != nil {
			return entry{}, err
		}
	}

	return entry{
		status:     status,
		lines:      lines,
		bill:       in.BillDiscount,
		totals:     totals,
		settlement: s,
	}, nil
}

func unsettled(grandTotal decimal.Decimal) payment.Settlement {
	return payment.Settlement{
		Received: decimal.Zero,
		Paid:     decimal.Zero,
		Due:      decimal.Max(grandTotal, decimal.Zero),
		Change:   decimal.Zero,
	}
}

func (e entry) createParams(shopID uuid.UUID, seq int32, actor Actor) database.CreateTransactionParams {
	t, s := e.totals, e.settlement
	return database.CreateTransactionParams{
		ShopID:            shopID,
		InvoiceSeq:        seq,
		InvoiceNumber:     formatInvoiceNumber(seq),
		Status:            e.status,
		BillDiscountKind:  optionalText(e.bill.Kind),
		BillDiscountValue: database.DecimalToNumeric(e.bill.Value),
		SubTotal:          database.DecimalToNumeric(t.SubTotal),
		BillDiscount:      database.DecimalToNumeric(t.BillDiscount),
		PointsDiscount:    database.DecimalToNumeric(t.PointsDiscount),
		Tax:               database.DecimalToNumeric(t.Tax),
		Vat:               database.DecimalToNumeric(t.VAT),
		Ait:               database.DecimalToNumeric(t.AIT),
		ServiceCharge:     database.DecimalToNumeric(t.ServiceCharge),
		GrandTotal:        database.DecimalToNumeric(t.GrandTotal),
		Received:          database.DecimalToNumeric(s.Received),
		Paid:              database.DecimalToNumeric(s.Paid),
		Due:               database.DecimalToNumeric(s.Due),
		ChangeAmount:      database.DecimalToNumeric(s.Change),
		PaymentType:       s.PaymentType,
		SalesmanID:        actor.UserID,
		SalesmanName:      actor.Name,
	}
}

func (e entry) updateParams(id uuid.UUID, salesman Actor) database.UpdateTransactionParams {
	c := e.createParams(uuid.Nil, 0, salesman)
	return database.UpdateTransactionParams{
		ID:                id,
		Status:            c.Status,
		BillDiscountKind:  c.BillDiscountKind,
		BillDiscountValue: c.BillDiscountValue,
		SubTotal:          c.SubTotal,
		BillDiscount:      c.BillDiscount,
		PointsDiscount:    c.PointsDiscount,
		Tax:               c.Tax,
		Vat:               c.Vat,
		Ait:               c.Ait,
		ServiceCharge:     c.ServiceCharge,
		GrandTotal:        c.GrandTotal,
		Received:          c.Received,
		Paid:              c.Paid,
		Due:               c.Due,
		ChangeAmount:      c.ChangeAmount,
		PaymentType:       c.PaymentType,
		SalesmanID:        c.SalesmanID,
		SalesmanName:      c.SalesmanName,
	}
}

// writeLines inserts the entry's lines and payments under txnID.
func (e entry) writeLines(ctx context.Context, store ledgerStore, txnID uuid.UUID) ([]database.TransactionItem, []database.TransactionPayment, error) {
	items := make([]database.TransactionItem, 0, len(e.lines))
	for i, l := range e.lines {
		discount := pricing.LineDiscount(l)
		lineTotal := pricing.LineNet(l)
		if l.IsReturn() {
			discount = decimal.Zero
			lineTotal = pricing.LineGross(l).Neg()
		}
		item, err := store.CreateTransactionItem(ctx, database.CreateTransactionItemParams{
			TransactionID: txnID,
			Position:      int32(i),
			ProductID:     l.ProductID,
			VariationID:   toPgUUID(l.VariationID),
			Name:          l.Name,
			UnitPrice:     database.DecimalToNumeric(l.UnitPrice),
			UnitCost:      database.DecimalToNumeric(l.UnitCost),
			Quantity:      l.Quantity,
			DiscountKind:  optionalText(l.DiscountKind),
			DiscountValue: database.DecimalToNumeric(l.DiscountValue),
			Discount:      database.DecimalToNumeric(discount),
			LineTotal:     database.DecimalToNumeric(lineTotal),
			Role:          l.Role,
			StockAtAdd:    l.StockAtAdd,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create transaction item: %w", err)
		}
		items = append(items, item)
	}

	var payments []database.TransactionPayment
	for _, b := range e.settlement.Payments {
		p, err := store.CreateTransactionPayment(ctx, database.CreateTransactionPaymentParams{
			TransactionID: txnID,
			Method:        b.Method,
			Amount:        database.DecimalToNumeric(b.Amount),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create transaction payment: %w", err)
		}
		payments = append(payments, p)
	}
	return items, payments, nil
}

func clearLines(ctx context.Context, store ledgerStore, txnID uuid.UUID) error {
	if err := store.DeleteTransactionItems(ctx, txnID); err != nil {
		return fmt.Errorf("delete transaction items: %w", err)
	}
	if err := store.DeleteTransactionPayments(ctx, txnID); err != nil {
		return fmt.Errorf("delete transaction payments: %w", err)
	}
	return nil
}

// toLineItems rebuilds pricing lines from stored rows.
func toLineItems(items []database.TransactionItem) []pricing.LineItem {
	lines := make([]pricing.LineItem, 0, len(items))
	for _, it := range items {
		kind := ""
		if it.DiscountKind.Valid {
			kind = it.DiscountKind.String
		}
		lines = append(lines, pricing.LineItem{
			ProductID:     it.ProductID,
			VariationID:   fromPgUUID(it.VariationID),
			Name:          it.Name,
			UnitPrice:     database.NumericToDecimal(it.UnitPrice),
			UnitCost:      database.NumericToDecimal(it.UnitCost),
			Quantity:      it.Quantity,
			DiscountKind:  kind,
			DiscountValue: database.NumericToDecimal(it.DiscountValue),
			Role:          it.Role,
			StockAtAdd:    it.StockAtAdd,
		})
	}
	return lines
}

// stockTaken is the net quantity per key a finalized line set removes from
// stock. Legacy return lines put goods back.
func stockTaken(lines []pricing.LineItem) map[pricing.Key]int32 {
	m := make(map[pricing.Key]int32)
	for _, l := range lines {
		if l.IsReturn() {
			m[l.Key()] -= l.Quantity
			continue
		}
		m[l.Key()] += l.Quantity
	}
	return m
}

// moveStock applies the stock difference between two finalized line sets.
// Pass nil for a side that does not hold stock.
func moveStock(ctx context.Context, store ledgerStore, before, after []pricing.LineItem) error {
	old := stockTaken(before)
	next := stockTaken(after)

	keys := make([]pricing.Key, 0, len(old)+len(next))
	for k := range old {
		keys = append(keys, k)
	}
	for k := range next {
		if _, ok := old[k]; !ok {
			keys = append(keys, k)
		}
	}
	// stock rows are locked in key order
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ProductID != keys[j].ProductID {
			return keys[i].ProductID.String() < keys[j].ProductID.String()
		}
		return keys[i].VariationID.UUID.String() < keys[j].VariationID.UUID.String()
	})

	for _, k := range keys {
		delta := old[k] - next[k]
		if delta == 0 {
			continue
		}
		if err := adjustStock(ctx, store, k, delta); err != nil {
			return err
		}
	}
	return nil
}

func adjustStock(ctx context.Context, store stockStore, k pricing.Key, delta int32) error {
	if k.VariationID.Valid {
		if err := store.AdjustVariationStock(ctx, database.AdjustVariationStockParams{ID: k.VariationID.UUID, Delta: delta}); err != nil {
			return fmt.Errorf("adjust variation stock: %w", err)
		}
		return nil
	}
	if err := store.AdjustProductStock(ctx, database.AdjustProductStockParams{ID: k.ProductID, Delta: delta}); err != nil {
		return fmt.Errorf("adjust product stock: %w", err)
	}
	return nil
}

// storedSettlement rebuilds the payment variant a record was saved with and
// settles it against grandTotal.
func storedSettlement(t database.Transaction, payments []database.TransactionPayment, grandTotal decimal.Decimal) (payment.Settlement, error) {
	received := database.NumericToDecimal(t.Received)
	switch t.PaymentType {
	case "":
		return unsettled(grandTotal), nil
	case enum.PaymentTypeMixed:
		bd := make([]payment.Breakdown, 0, len(payments))
		for _, p := range payments {
			bd = append(bd, payment.Breakdown{Method: p.Method, Amount: database.NumericToDecimal(p.Amount)})
		}
		return payment.Settle(payment.Split{Breakdown: bd, Received: decimal.NewNullDecimal(received)}, grandTotal)
	default:
		return payment.Settle(payment.Single{Method: t.PaymentType, Received: received}, grandTotal)
	}
}

// recompute derives totals, settlement and return summary from stored rows.
// Amounts that were auto-calculated at save time are taken as stored.
func recompute(t database.Transaction, items []database.TransactionItem, payments []database.TransactionPayment) (*TransactionResult, error) {
	bill := pricing.BillDiscount{Value: database.NumericToDecimal(t.BillDiscountValue)}
	if t.BillDiscountKind.Valid {
		bill.Kind = t.BillDiscountKind.String
	}
	totals, err := pricing.ComputeTotals(pricing.Input{
		Items:          toLineItems(items),
		BillDiscount:   bill,
		PointsDiscount: database.NumericToDecimal(t.PointsDiscount),
		Charges: pricing.Charges{
			Tax:           database.NumericToDecimal(t.Tax),
			VAT:           database.NumericToDecimal(t.Vat),
			AIT:           database.NumericToDecimal(t.Ait),
			ServiceCharge: database.NumericToDecimal(t.ServiceCharge),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("recompute totals: %w", err)
	}
	s, err := storedSettlement(t, payments, totals.GrandTotal)
	if err != nil {
		return nil, fmt.Errorf("recompute settlement: %w", err)
	}
	return &TransactionResult{
		Transaction: t,
		Items:       items,
		Payments:    payments,
		Totals:      totals,
		Settlement:  s,
		Returns:     returnsSummary(t, totals.GrandTotal),
	}, nil
}

func returnsSummary(t database.Transaction, grandTotal decimal.Decimal) returns.Summary {
	return returns.Summarize(grandTotal, database.NumericToDecimal(t.TotalReturnedAmount))
}
