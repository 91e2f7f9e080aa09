package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const transactionColumns = `id, shop_id, invoice_seq, invoice_number, status, exchange_of, repair_id,
customer_name, note, bill_discount_kind, bill_discount_value, sub_total, bill_discount,
points_discount, tax, vat, ait, service_charge, grand_total, received, paid, due,
change_amount, payment_type, total_returned_amount, salesman_id, salesman_name,
created_at, updated_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var i Transaction
	err := row.Scan(
		&i.ID,
		&i.ShopID,
		&i.InvoiceSeq,
		&i.InvoiceNumber,
		&i.Status,
		&i.ExchangeOf,
		&i.RepairID,
		&i.CustomerName,
		&i.Note,
		&i.BillDiscountKind,
		&i.BillDiscountValue,
		&i.SubTotal,
		&i.BillDiscount,
		&i.PointsDiscount,
		&i.Tax,
		&i.Vat,
		&i.Ait,
		&i.ServiceCharge,
		&i.GrandTotal,
		&i.Received,
		&i.Paid,
		&i.Due,
		&i.ChangeAmount,
		&i.PaymentType,
		&i.TotalReturnedAmount,
		&i.SalesmanID,
		&i.SalesmanName,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getNextInvoiceNumber = `-- name: GetNextInvoiceNumber :one
SELECT (COALESCE(MAX(invoice_seq), 0) + 1)::int4 FROM transactions WHERE shop_id = $1
`

func (q *Queries) GetNextInvoiceNumber(ctx context.Context, shopID uuid.UUID) (int32, error) {
	row := q.db.QueryRow(ctx, getNextInvoiceNumber, shopID)
	var next int32
	err := row.Scan(&next)
	return next, err
}

const createTransaction = `-- name: CreateTransaction :one
INSERT INTO transactions (
    shop_id, invoice_seq, invoice_number, status, exchange_of, repair_id,
    customer_name, note, bill_discount_kind, bill_discount_value, sub_total,
    bill_discount, points_discount, tax, vat, ait, service_charge, grand_total,
    received, paid, due, change_amount, payment_type, salesman_id, salesman_name
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
    $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25
)
RETURNING ` + transactionColumns

type CreateTransactionParams struct {
	ShopID            uuid.UUID      `json:"shop_id"`
	InvoiceSeq        int32          `json:"invoice_seq"`
	InvoiceNumber     string         `json:"invoice_number"`
	Status            string         `json:"status"`
	ExchangeOf        pgtype.UUID    `json:"exchange_of"`
	RepairID          pgtype.UUID    `json:"repair_id"`
	CustomerName      pgtype.Text    `json:"customer_name"`
	Note              pgtype.Text    `json:"note"`
	BillDiscountKind  pgtype.Text    `json:"bill_discount_kind"`
	BillDiscountValue pgtype.Numeric `json:"bill_discount_value"`
	SubTotal          pgtype.Numeric `json:"sub_total"`
	BillDiscount      pgtype.Numeric `json:"bill_discount"`
	PointsDiscount    pgtype.Numeric `json:"points_discount"`
	Tax               pgtype.Numeric `json:"tax"`
	Vat               pgtype.Numeric `json:"vat"`
	Ait               pgtype.Numeric `json:"ait"`
	ServiceCharge     pgtype.Numeric `json:"service_charge"`
	GrandTotal        pgtype.Numeric `json:"grand_total"`
	Received          pgtype.Numeric `json:"received"`
	Paid              pgtype.Numeric `json:"paid"`
	Due               pgtype.Numeric `json:"due"`
	ChangeAmount      pgtype.Numeric `json:"change_amount"`
	PaymentType       string         `json:"payment_type"`
	SalesmanID        uuid.UUID      `json:"salesman_id"`
	SalesmanName      string         `json:"salesman_name"`
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (Transaction, error) {
	row := q.db.QueryRow(ctx, createTransaction,
		arg.ShopID,
		arg.InvoiceSeq,
		arg.InvoiceNumber,
		arg.Status,
		arg.ExchangeOf,
		arg.RepairID,
		arg.CustomerName,
		arg.Note,
		arg.BillDiscountKind,
		arg.BillDiscountValue,
		arg.SubTotal,
		arg.BillDiscount,
		arg.PointsDiscount,
		arg.Tax,
		arg.Vat,
		arg.Ait,
		arg.ServiceCharge,
		arg.GrandTotal,
		arg.Received,
		arg.Paid,
		arg.Due,
		arg.ChangeAmount,
		arg.PaymentType,
		arg.SalesmanID,
		arg.SalesmanName,
	)
	return scanTransaction(row)
}

const updateTransaction = `-- name: UpdateTransaction :one
UPDATE transactions SET
    status = $2,
    customer_name = $3,
    note = $4,
    bill_discount_kind = $5,
    bill_discount_value = $6,
    sub_total = $7,
    bill_discount = $8,
    points_discount = $9,
    tax = $10,
    vat = $11,
    ait = $12,
    service_charge = $13,
    grand_total = $14,
    received = $15,
    paid = $16,
    due = $17,
    change_amount = $18,
    payment_type = $19,
    salesman_id = $20,
    salesman_name = $21,
    updated_at = now()
WHERE id = $1
RETURNING ` + transactionColumns

type UpdateTransactionParams struct {
	ID                uuid.UUID      `json:"id"`
	Status            string         `json:"status"`
	CustomerName      pgtype.Text    `json:"customer_name"`
	Note              pgtype.Text    `json:"note"`
	BillDiscountKind  pgtype.Text    `json:"bill_discount_kind"`
	BillDiscountValue pgtype.Numeric `json:"bill_discount_value"`
	SubTotal          pgtype.Numeric `json:"sub_total"`
	BillDiscount      pgtype.Numeric `json:"bill_discount"`
	PointsDiscount    pgtype.Numeric `json:"points_discount"`
	Tax               pgtype.Numeric `json:"tax"`
	Vat               pgtype.Numeric `json:"vat"`
	Ait               pgtype.Numeric `json:"ait"`
	ServiceCharge     pgtype.Numeric `json:"service_charge"`
	GrandTotal        pgtype.Numeric `json:"grand_total"`
	Received          pgtype.Numeric `json:"received"`
	Paid              pgtype.Numeric `json:"paid"`
	Due               pgtype.Numeric `json:"due"`
	ChangeAmount      pgtype.Numeric `json:"change_amount"`
	PaymentType       string         `json:"payment_type"`
	SalesmanID        uuid.UUID      `json:"salesman_id"`
	SalesmanName      string         `json:"salesman_name"`
}

func (q *Queries) UpdateTransaction(ctx context.Context, arg UpdateTransactionParams) (Transaction, error) {
	row := q.db.QueryRow(ctx, updateTransaction,
		arg.ID,
		arg.Status,
		arg.CustomerName,
		arg.Note,
		arg.BillDiscountKind,
		arg.BillDiscountValue,
		arg.SubTotal,
		arg.BillDiscount,
		arg.PointsDiscount,
		arg.Tax,
		arg.Vat,
		arg.Ait,
		arg.ServiceCharge,
		arg.GrandTotal,
		arg.Received,
		arg.Paid,
		arg.Due,
		arg.ChangeAmount,
		arg.PaymentType,
		arg.SalesmanID,
		arg.SalesmanName,
	)
	return scanTransaction(row)
}

const getTransaction = `-- name: GetTransaction :one
SELECT ` + transactionColumns + `
FROM transactions WHERE id = $1 AND shop_id = $2
`

type GetTransactionParams struct {
	ID     uuid.UUID `json:"id"`
	ShopID uuid.UUID `json:"shop_id"`
}

func (q *Queries) GetTransaction(ctx context.Context, arg GetTransactionParams) (Transaction, error) {
	return scanTransaction(q.db.QueryRow(ctx, getTransaction, arg.ID, arg.ShopID))
}

const getTransactionForUpdate = `-- name: GetTransactionForUpdate :one
SELECT ` + transactionColumns + `
FROM transactions WHERE id = $1 AND shop_id = $2
FOR UPDATE
`

type GetTransactionForUpdateParams struct {
	ID     uuid.UUID `json:"id"`
	ShopID uuid.UUID `json:"shop_id"`
}

func (q *Queries) GetTransactionForUpdate(ctx context.Context, arg GetTransactionForUpdateParams) (Transaction, error) {
	return scanTransaction(q.db.QueryRow(ctx, getTransactionForUpdate, arg.ID, arg.ShopID))
}

const getTransactionByRepair = `-- name: GetTransactionByRepair :one
SELECT ` + transactionColumns + `
FROM transactions WHERE repair_id = $1
`

func (q *Queries) GetTransactionByRepair(ctx context.Context, repairID uuid.UUID) (Transaction, error) {
	return scanTransaction(q.db.QueryRow(ctx, getTransactionByRepair, repairID))
}

const listTransactions = `-- name: ListTransactions :many
SELECT ` + transactionColumns + `
FROM transactions
WHERE shop_id = $1
  AND ($2::text IS NULL OR status = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4
`

type ListTransactionsParams struct {
	ShopID uuid.UUID   `json:"shop_id"`
	Status pgtype.Text `json:"status"`
	Limit  int32       `json:"limit"`
	Offset int32       `json:"offset"`
}

func (q *Queries) ListTransactions(ctx context.Context, arg ListTransactionsParams) ([]Transaction, error) {
	rows, err := q.db.Query(ctx, listTransactions, arg.ShopID, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		i, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteTransaction = `-- name: DeleteTransaction :exec
DELETE FROM transactions WHERE id = $1
`

func (q *Queries) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteTransaction, id)
	return err
}

const refreshTotalReturnedAmount = `-- name: RefreshTotalReturnedAmount :one
UPDATE transactions t SET
    total_returned_amount = COALESCE((SELECT SUM(r.total) FROM return_records r WHERE r.transaction_id = t.id), 0),
    updated_at = now()
WHERE t.id = $1
RETURNING ` + transactionColumns

// RefreshTotalReturnedAmount recomputes total_returned_amount from the
// transaction's return records.
func (q *Queries) RefreshTotalReturnedAmount(ctx context.Context, id uuid.UUID) (Transaction, error) {
	return scanTransaction(q.db.QueryRow(ctx, refreshTotalReturnedAmount, id))
}
