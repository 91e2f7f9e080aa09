package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createTransactionItem = `-- name: CreateTransactionItem :one
INSERT INTO transaction_items (
    transaction_id, position, product_id, variation_id, name, unit_price, unit_cost,
    quantity, discount_kind, discount_value, discount, line_total, role, stock_at_add
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING id, transaction_id, position, product_id, variation_id, name, unit_price, unit_cost,
    quantity, discount_kind, discount_value, discount, line_total, role, stock_at_add
`

type CreateTransactionItemParams struct {
	TransactionID uuid.UUID      `json:"transaction_id"`
	Position      int32          `json:"position"`
	ProductID     uuid.UUID      `json:"product_id"`
	VariationID   pgtype.UUID    `json:"variation_id"`
	Name          string         `json:"name"`
	UnitPrice     pgtype.Numeric `json:"unit_price"`
	UnitCost      pgtype.Numeric `json:"unit_cost"`
	Quantity      int32          `json:"quantity"`
	DiscountKind  pgtype.Text    `json:"discount_kind"`
	DiscountValue pgtype.Numeric `json:"discount_value"`
	Discount      pgtype.Numeric `json:"discount"`
	LineTotal     pgtype.Numeric `json:"line_total"`
	Role          string         `json:"role"`
	StockAtAdd    int32          `json:"stock_at_add"`
}

func (q *Queries) CreateTransactionItem(ctx context.Context, arg CreateTransactionItemParams) (TransactionItem, error) {
	row := q.db.QueryRow(ctx, createTransactionItem,
		arg.TransactionID,
		arg.Position,
		arg.ProductID,
		arg.VariationID,
		arg.Name,
		arg.UnitPrice,
		arg.UnitCost,
		arg.Quantity,
		arg.DiscountKind,
		arg.DiscountValue,
		arg.Discount,
		arg.LineTotal,
		arg.Role,
		arg.StockAtAdd,
	)
	var i TransactionItem
	err := row.Scan(
		&i.ID,
		&i.TransactionID,
		&i.Position,
		&i.ProductID,
		&i.VariationID,
		&i.Name,
		&i.UnitPrice,
		&i.UnitCost,
		&i.Quantity,
		&i.DiscountKind,
		&i.DiscountValue,
		&i.Discount,
		&i.LineTotal,
		&i.Role,
		&i.StockAtAdd,
	)
	return i, err
}

const listTransactionItems = `-- name: ListTransactionItems :many
SELECT id, transaction_id, position, product_id, variation_id, name, unit_price, unit_cost,
    quantity, discount_kind, discount_value, discount, line_total, role, stock_at_add
FROM transaction_items WHERE transaction_id = $1
ORDER BY position
`

func (q *Queries) ListTransactionItems(ctx context.Context, transactionID uuid.UUID) ([]TransactionItem, error) {
	rows, err := q.db.Query(ctx, listTransactionItems, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransactionItem
	for rows.Next() {
		var i TransactionItem
		if err := rows.Scan(
			&i.ID,
			&i.TransactionID,
			&i.Position,
			&i.ProductID,
			&i.VariationID,
			&i.Name,
			&i.UnitPrice,
			&i.UnitCost,
			&i.Quantity,
			&i.DiscountKind,
			&i.DiscountValue,
			&i.Discount,
			&i.LineTotal,
			&i.Role,
			&i.StockAtAdd,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteTransactionItems = `-- name: DeleteTransactionItems :exec
DELETE FROM transaction_items WHERE transaction_id = $1
`

func (q *Queries) DeleteTransactionItems(ctx context.Context, transactionID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteTransactionItems, transactionID)
	return err
}

const createTransactionPayment = `-- name: CreateTransactionPayment :one
INSERT INTO transaction_payments (transaction_id, method, amount)
VALUES ($1, $2, $3)
RETURNING id, transaction_id, method, amount
`

type CreateTransactionPaymentParams struct {
	TransactionID uuid.UUID      `json:"transaction_id"`
	Method        string         `json:"method"`
	Amount        pgtype.Numeric `json:"amount"`
}

func (q *Queries) CreateTransactionPayment(ctx context.Context, arg CreateTransactionPaymentParams) (TransactionPayment, error) {
	row := q.db.QueryRow(ctx, createTransactionPayment, arg.TransactionID, arg.Method, arg.Amount)
	var i TransactionPayment
	err := row.Scan(
		&i.ID,
		&i.TransactionID,
		&i.Method,
		&i.Amount,
	)
	return i, err
}

const listTransactionPayments = `-- name: ListTransactionPayments :many
SELECT id, transaction_id, method, amount
FROM transaction_payments WHERE transaction_id = $1
ORDER BY method
`

func (q *Queries) ListTransactionPayments(ctx context.Context, transactionID uuid.UUID) ([]TransactionPayment, error) {
	rows, err := q.db.Query(ctx, listTransactionPayments, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransactionPayment
	for rows.Next() {
		var i TransactionPayment
		if err := rows.Scan(
			&i.ID,
			&i.TransactionID,
			&i.Method,
			&i.Amount,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteTransactionPayments = `-- name: DeleteTransactionPayments :exec
DELETE FROM transaction_payments WHERE transaction_id = $1
`

func (q *Queries) DeleteTransactionPayments(ctx context.Context, transactionID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteTransactionPayments, transactionID)
	return err
}
