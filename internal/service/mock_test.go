package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tokoledger/api/internal/database"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr error
	commits   int
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.commits++
	return nil
}
func (m *mockTx) Rollback(ctx context.Context) error { return nil }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx     pgx.Tx
	err    error
	begins int
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	m.begins++
	return m.tx, m.err
}

type stockMove struct {
	id    uuid.UUID
	delta int32
}

// fakeStore is an in-memory data store satisfying TransactionStore,
// ReturnStore and RepairStore. Writes are not rolled back on error.
// Fields ending in Fn override the matching method when set.
type fakeStore struct {
	shop          database.Shop
	products      map[uuid.UUID]database.Product
	variations    map[uuid.UUID][]database.ProductVariation
	transactions  map[uuid.UUID]database.Transaction
	items         map[uuid.UUID][]database.TransactionItem
	payments      map[uuid.UUID][]database.TransactionPayment
	returnRecords map[uuid.UUID][]database.ReturnRecord
	returnItems   map[uuid.UUID][]database.ReturnItem
	repairs       map[uuid.UUID]database.Repair
	parts         map[uuid.UUID][]database.RepairPart
	seq           int32

	deleted    []uuid.UUID
	stockMoves []stockMove

	createTransactionFn func(ctx context.Context, arg database.CreateTransactionParams) (database.Transaction, error)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		shop: database.Shop{
			ID:             uuid.New(),
			Name:           "Toko Test",
			Address:        "Jl. Test 1",
			CurrencySymbol: "৳",
			VatPercent:     makeNumeric("0"),
			TaxPercent:     makeNumeric("0"),
		},
		products:      map[uuid.UUID]database.Product{},
		variations:    map[uuid.UUID][]database.ProductVariation{},
		transactions:  map[uuid.UUID]database.Transaction{},
		items:         map[uuid.UUID][]database.TransactionItem{},
		payments:      map[uuid.UUID][]database.TransactionPayment{},
		returnRecords: map[uuid.UUID][]database.ReturnRecord{},
		returnItems:   map[uuid.UUID][]database.ReturnItem{},
		repairs:       map[uuid.UUID]database.Repair{},
		parts:         map[uuid.UUID][]database.RepairPart{},
	}
}

func (f *fakeStore) addProduct(name, price string, stock int32) database.Product {
	p := database.Product{
		ID:     uuid.New(),
		ShopID: f.shop.ID,
		Name:   name,
		Price:  makeNumeric(price),
		Stock:  stock,
	}
	f.products[p.ID] = p
	return p
}

func (f *fakeStore) addVariation(productID uuid.UUID, name, price string, stock int32) database.ProductVariation {
	v := database.ProductVariation{
		ID:        uuid.New(),
		ProductID: productID,
		Name:      name,
		Price:     makeNumeric(price),
		Stock:     stock,
	}
	f.variations[productID] = append(f.variations[productID], v)
	return v
}

func (f *fakeStore) stockOf(productID uuid.UUID) int32 {
	return f.products[productID].Stock
}

// --- ledgerStore ---

func (f *fakeStore) GetShop(ctx context.Context, id uuid.UUID) (database.Shop, error) {
	if id != f.shop.ID {
		return database.Shop{}, pgx.ErrNoRows
	}
	return f.shop, nil
}

func (f *fakeStore) GetNextInvoiceNumber(ctx context.Context, shopID uuid.UUID) (int32, error) {
	return f.seq + 1, nil
}

func (f *fakeStore) GetProductForSale(ctx context.Context, arg database.GetProductForSaleParams) (database.Product, error) {
	p, ok := f.products[arg.ID]
	if !ok || p.ShopID != arg.ShopID {
		return database.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeStore) ListVariationsByProduct(ctx context.Context, productID uuid.UUID) ([]database.ProductVariation, error) {
	return f.variations[productID], nil
}

func (f *fakeStore) AdjustProductStock(ctx context.Context, arg database.AdjustProductStockParams) error {
	p := f.products[arg.ID]
	p.Stock += arg.Delta
	f.products[arg.ID] = p
	f.stockMoves = append(f.stockMoves, stockMove{id: arg.ID, delta: arg.Delta})
	return nil
}

func (f *fakeStore) AdjustVariationStock(ctx context.Context, arg database.AdjustVariationStockParams) error {
	for pid, vs := range f.variations {
		for i := range vs {
			if vs[i].ID == arg.ID {
				vs[i].Stock += arg.Delta
				f.variations[pid] = vs
			}
		}
	}
	f.stockMoves = append(f.stockMoves, stockMove{id: arg.ID, delta: arg.Delta})
	return nil
}

func (f *fakeStore) CreateTransaction(ctx context.Context, arg database.CreateTransactionParams) (database.Transaction, error) {
	if f.createTransactionFn != nil {
		return f.createTransactionFn(ctx, arg)
	}
	f.seq = arg.InvoiceSeq
	t := database.Transaction{
		ID:                  uuid.New(),
		ShopID:              arg.ShopID,
		InvoiceSeq:          arg.InvoiceSeq,
		InvoiceNumber:       arg.InvoiceNumber,
		Status:              arg.Status,
		ExchangeOf:          arg.ExchangeOf,
		RepairID:            arg.RepairID,
		CustomerName:        arg.CustomerName,
		Note:                arg.Note,
		BillDiscountKind:    arg.BillDiscountKind,
		BillDiscountValue:   arg.BillDiscountValue,
		SubTotal:            arg.SubTotal,
		BillDiscount:        arg.BillDiscount,
		PointsDiscount:      arg.PointsDiscount,
		Tax:                 arg.Tax,
		Vat:                 arg.Vat,
		Ait:                 arg.Ait,
		ServiceCharge:       arg.ServiceCharge,
		GrandTotal:          arg.GrandTotal,
		Received:            arg.Received,
		Paid:                arg.Paid,
		Due:                 arg.Due,
		ChangeAmount:        arg.ChangeAmount,
		PaymentType:         arg.PaymentType,
		TotalReturnedAmount: makeNumeric("0"),
		SalesmanID:          arg.SalesmanID,
		SalesmanName:        arg.SalesmanName,
		CreatedAt:           time.Now(),
		UpdatedAt:           time.Now(),
	}
	f.transactions[t.ID] = t
	return t, nil
}

func (f *fakeStore) UpdateTransaction(ctx context.Context, arg database.UpdateTransactionParams) (database.Transaction, error) {
	t, ok := f.transactions[arg.ID]
	if !ok {
		return database.Transaction{}, pgx.ErrNoRows
	}
	t.Status = arg.Status
	t.CustomerName = arg.CustomerName
	t.Note = arg.Note
	t.BillDiscountKind = arg.BillDiscountKind
	t.BillDiscountValue = arg.BillDiscountValue
	t.SubTotal = arg.SubTotal
	t.BillDiscount = arg.BillDiscount
	t.PointsDiscount = arg.PointsDiscount
	t.Tax = arg.Tax
	t.Vat = arg.Vat
	t.Ait = arg.Ait
	t.ServiceCharge = arg.ServiceCharge
	t.GrandTotal = arg.GrandTotal
	t.Received = arg.Received
	t.Paid = arg.Paid
	t.Due = arg.Due
	t.ChangeAmount = arg.ChangeAmount
	t.PaymentType = arg.PaymentType
	t.SalesmanID = arg.SalesmanID
	t.SalesmanName = arg.SalesmanName
	t.UpdatedAt = time.Now()
	f.transactions[t.ID] = t
	return t, nil
}

func (f *fakeStore) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	delete(f.transactions, id)
	delete(f.items, id)
	delete(f.payments, id)
	return nil
}

func (f *fakeStore) CreateTransactionItem(ctx context.Context, arg database.CreateTransactionItemParams) (database.TransactionItem, error) {
	it := database.TransactionItem{
		ID:            uuid.New(),
		TransactionID: arg.TransactionID,
		Position:      arg.Position,
		ProductID:     arg.ProductID,
		VariationID:   arg.VariationID,
		Name:          arg.Name,
		UnitPrice:     arg.UnitPrice,
		UnitCost:      arg.UnitCost,
		Quantity:      arg.Quantity,
		DiscountKind:  arg.DiscountKind,
		DiscountValue: arg.DiscountValue,
		Discount:      arg.Discount,
		LineTotal:     arg.LineTotal,
		Role:          arg.Role,
		StockAtAdd:    arg.StockAtAdd,
	}
	f.items[arg.TransactionID] = append(f.items[arg.TransactionID], it)
	return it, nil
}

func (f *fakeStore) ListTransactionItems(ctx context.Context, transactionID uuid.UUID) ([]database.TransactionItem, error) {
	return f.items[transactionID], nil
}

func (f *fakeStore) DeleteTransactionItems(ctx context.Context, transactionID uuid.UUID) error {
	delete(f.items, transactionID)
	return nil
}

func (f *fakeStore) CreateTransactionPayment(ctx context.Context, arg database.CreateTransactionPaymentParams) (database.TransactionPayment, error) {
	p := database.TransactionPayment{
		ID:            uuid.New(),
		TransactionID: arg.TransactionID,
		Method:        arg.Method,
		Amount:        arg.Amount,
	}
	f.payments[arg.TransactionID] = append(f.payments[arg.TransactionID], p)
	return p, nil
}

func (f *fakeStore) ListTransactionPayments(ctx context.Context, transactionID uuid.UUID) ([]database.TransactionPayment, error) {
	return f.payments[transactionID], nil
}

func (f *fakeStore) DeleteTransactionPayments(ctx context.Context, transactionID uuid.UUID) error {
	delete(f.payments, transactionID)
	return nil
}

func (f *fakeStore) CountReturnsByTransaction(ctx context.Context, transactionID uuid.UUID) (int64, error) {
	return int64(len(f.returnRecords[transactionID])), nil
}

// --- TransactionStore ---

func (f *fakeStore) GetTransaction(ctx context.Context, arg database.GetTransactionParams) (database.Transaction, error) {
	t, ok := f.transactions[arg.ID]
	if !ok || t.ShopID != arg.ShopID {
		return database.Transaction{}, pgx.ErrNoRows
	}
	return t, nil
}

func (f *fakeStore) GetTransactionForUpdate(ctx context.Context, arg database.GetTransactionForUpdateParams) (database.Transaction, error) {
	return f.GetTransaction(ctx, database.GetTransactionParams(arg))
}

func (f *fakeStore) ListTransactions(ctx context.Context, arg database.ListTransactionsParams) ([]database.Transaction, error) {
	var out []database.Transaction
	for _, t := range f.transactions {
		if t.ShopID != arg.ShopID {
			continue
		}
		if arg.Status.Valid && t.Status != arg.Status.String {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvoiceSeq > out[j].InvoiceSeq })
	return out, nil
}

// --- ReturnStore ---

func (f *fakeStore) ListReturnableItems(ctx context.Context, transactionID uuid.UUID) ([]database.ListReturnableItemsRow, error) {
	returned := map[uuid.UUID]int32{}
	for _, r := range f.returnRecords[transactionID] {
		for _, ri := range f.returnItems[r.ID] {
			returned[ri.TransactionItemID] += ri.Quantity
		}
	}
	var rows []database.ListReturnableItemsRow
	for _, it := range f.items[transactionID] {
		if it.Role != "SALE" {
			continue
		}
		rows = append(rows, database.ListReturnableItemsRow{
			ID:          it.ID,
			ProductID:   it.ProductID,
			VariationID: it.VariationID,
			Name:        it.Name,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			ReturnedQty: returned[it.ID],
		})
	}
	return rows, nil
}

func (f *fakeStore) CreateReturnRecord(ctx context.Context, arg database.CreateReturnRecordParams) (database.ReturnRecord, error) {
	r := database.ReturnRecord{
		ID:            uuid.New(),
		ShopID:        arg.ShopID,
		TransactionID: arg.TransactionID,
		InvoiceNumber: arg.InvoiceNumber,
		ReturnType:    arg.ReturnType,
		Total:         arg.Total,
		Note:          arg.Note,
		CreatedBy:     arg.CreatedBy,
		CreatedAt:     time.Now(),
	}
	f.returnRecords[arg.TransactionID] = append(f.returnRecords[arg.TransactionID], r)
	return r, nil
}

func (f *fakeStore) CreateReturnItem(ctx context.Context, arg database.CreateReturnItemParams) (database.ReturnItem, error) {
	ri := database.ReturnItem{
		ID:                uuid.New(),
		ReturnID:          arg.ReturnID,
		TransactionItemID: arg.TransactionItemID,
		Quantity:          arg.Quantity,
		UnitPrice:         arg.UnitPrice,
		Amount:            arg.Amount,
	}
	f.returnItems[arg.ReturnID] = append(f.returnItems[arg.ReturnID], ri)
	return ri, nil
}

func (f *fakeStore) RefreshTotalReturnedAmount(ctx context.Context, id uuid.UUID) (database.Transaction, error) {
	t, ok := f.transactions[id]
	if !ok {
		return database.Transaction{}, pgx.ErrNoRows
	}
	sum := decimal.Zero
	for _, r := range f.returnRecords[id] {
		sum = sum.Add(database.NumericToDecimal(r.Total))
	}
	t.TotalReturnedAmount = database.DecimalToNumeric(sum)
	f.transactions[id] = t
	return t, nil
}

func (f *fakeStore) ListReturnRecordsByTransaction(ctx context.Context, transactionID uuid.UUID) ([]database.ReturnRecord, error) {
	return f.returnRecords[transactionID], nil
}

func (f *fakeStore) ListReturnItemsByReturn(ctx context.Context, returnID uuid.UUID) ([]database.ReturnItem, error) {
	return f.returnItems[returnID], nil
}

// --- RepairStore ---

func (f *fakeStore) CreateRepair(ctx context.Context, arg database.CreateRepairParams) (database.Repair, error) {
	r := database.Repair{
		ID:           uuid.New(),
		ShopID:       arg.ShopID,
		Reference:    arg.Reference,
		CustomerName: arg.CustomerName,
		Device:       arg.Device,
		CreatedBy:    arg.CreatedBy,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	f.repairs[r.ID] = r
	return r, nil
}

func (f *fakeStore) GetRepair(ctx context.Context, arg database.GetRepairParams) (database.Repair, error) {
	r, ok := f.repairs[arg.ID]
	if !ok || r.ShopID != arg.ShopID {
		return database.Repair{}, pgx.ErrNoRows
	}
	return r, nil
}

func (f *fakeStore) TouchRepairForUpdate(ctx context.Context, arg database.TouchRepairForUpdateParams) (database.Repair, error) {
	return f.GetRepair(ctx, database.GetRepairParams(arg))
}

func (f *fakeStore) ListRepairParts(ctx context.Context, repairID uuid.UUID) ([]database.RepairPart, error) {
	return f.parts[repairID], nil
}

func (f *fakeStore) DeleteRepairParts(ctx context.Context, repairID uuid.UUID) error {
	delete(f.parts, repairID)
	return nil
}

func (f *fakeStore) CreateRepairPart(ctx context.Context, arg database.CreateRepairPartParams) (database.RepairPart, error) {
	p := database.RepairPart{
		ID:          uuid.New(),
		RepairID:    arg.RepairID,
		ProductID:   arg.ProductID,
		VariationID: arg.VariationID,
		Quantity:    arg.Quantity,
	}
	f.parts[arg.RepairID] = append(f.parts[arg.RepairID], p)
	return p, nil
}

func (f *fakeStore) GetTransactionByRepair(ctx context.Context, repairID uuid.UUID) (database.Transaction, error) {
	for _, t := range f.transactions {
		if t.RepairID.Valid && uuid.UUID(t.RepairID.Bytes) == repairID {
			return t, nil
		}
	}
	return database.Transaction{}, pgx.ErrNoRows
}

// --- Notifier / guard ---

type publishedEvent struct {
	shopID    uuid.UUID
	eventType string
	payload   interface{}
}

type recordingNotifier struct {
	events []publishedEvent
}

func (n *recordingNotifier) Publish(shopID uuid.UUID, eventType string, payload interface{}) error {
	n.events = append(n.events, publishedEvent{shopID: shopID, eventType: eventType, payload: payload})
	return nil
}

func (n *recordingNotifier) types() []string {
	var out []string
	for _, e := range n.events {
		out = append(out, e.eventType)
	}
	return out
}

// memoryGuard maps claimed keys to the stored id, empty while pending.
type memoryGuard struct {
	claimed  map[string]string
	released []string
}

func (g *memoryGuard) Claim(ctx context.Context, key string) (bool, error) {
	if g.claimed == nil {
		g.claimed = map[string]string{}
	}
	if _, ok := g.claimed[key]; ok {
		return false, nil
	}
	g.claimed[key] = ""
	return true, nil
}

func (g *memoryGuard) Complete(ctx context.Context, key, id string) error {
	g.claimed[key] = id
	return nil
}

func (g *memoryGuard) Lookup(ctx context.Context, key string) (string, error) {
	return g.claimed[key], nil
}

func (g *memoryGuard) Release(ctx context.Context, key string) error {
	delete(g.claimed, key)
	g.released = append(g.released, key)
	return nil
}

// --- Test helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	d := database.NumericToDecimal(n)
	exp, _ := decimal.NewFromString(expected)
	return d.Equal(exp)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decimalNull(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}
