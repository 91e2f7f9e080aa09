package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const listReturnableItems = `-- name: ListReturnableItems :many
SELECT ti.id, ti.product_id, ti.variation_id, ti.name, ti.quantity, ti.unit_price,
    COALESCE(SUM(ri.quantity), 0)::int4 AS returned_qty
FROM transaction_items ti
LEFT JOIN return_items ri ON ri.transaction_item_id = ti.id
WHERE ti.transaction_id = $1 AND ti.role = 'SALE'
GROUP BY ti.id
ORDER BY ti.position
`

type ListReturnableItemsRow struct {
	ID          uuid.UUID      `json:"id"`
	ProductID   uuid.UUID      `json:"product_id"`
	VariationID pgtype.UUID    `json:"variation_id"`
	Name        string         `json:"name"`
	Quantity    int32          `json:"quantity"`
	UnitPrice   pgtype.Numeric `json:"unit_price"`
	ReturnedQty int32          `json:"returned_qty"`
}

// ListReturnableItems returns the SALE lines of a transaction with the
// quantity already consumed by prior returns.
func (q *Queries) ListReturnableItems(ctx context.Context, transactionID uuid.UUID) ([]ListReturnableItemsRow, error) {
	rows, err := q.db.Query(ctx, listReturnableItems, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListReturnableItemsRow
	for rows.Next() {
		var i ListReturnableItemsRow
		if err := rows.Scan(
			&i.ID,
			&i.ProductID,
			&i.VariationID,
			&i.Name,
			&i.Quantity,
			&i.UnitPrice,
			&i.ReturnedQty,
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

const countReturnsByTransaction = `-- name: CountReturnsByTransaction :one
SELECT COUNT(*) FROM return_records WHERE transaction_id = $1
`

func (q *Queries) CountReturnsByTransaction(ctx context.Context, transactionID uuid.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countReturnsByTransaction, transactionID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createReturnRecord = `-- name: CreateReturnRecord :one
INSERT INTO return_records (shop_id, transaction_id, invoice_number, return_type, total, note, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, shop_id, transaction_id, invoice_number, return_type, total, note, created_by, created_at
`

type CreateReturnRecordParams struct {
	ShopID        uuid.UUID      `json:"shop_id"`
	TransactionID uuid.UUID      `json:"transaction_id"`
	InvoiceNumber string         `json:"invoice_number"`
	ReturnType    string         `json:"return_type"`
	Total         pgtype.Numeric `json:"total"`
	Note          pgtype.Text    `json:"note"`
	CreatedBy     uuid.UUID      `json:"created_by"`
}

func (q *Queries) CreateReturnRecord(ctx context.Context, arg CreateReturnRecordParams) (ReturnRecord, error) {
	row := q.db.QueryRow(ctx, createReturnRecord,
		arg.ShopID,
		arg.TransactionID,
		arg.InvoiceNumber,
		arg.ReturnType,
		arg.Total,
		arg.Note,
		arg.CreatedBy,
	)
	var i ReturnRecord
	err := row.Scan(
		&i.ID,
		&i.ShopID,
		&i.TransactionID,
		&i.InvoiceNumber,
		&i.ReturnType,
		&i.Total,
		&i.Note,
		&i.CreatedBy,
		&i.CreatedAt,
	)
	return i, err
}

const createReturnItem = `-- name: CreateReturnItem :one
INSERT INTO return_items (return_id, transaction_item_id, quantity, unit_price, amount)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, return_id, transaction_item_id, quantity, unit_price, amount
`

type CreateReturnItemParams struct {
	ReturnID          uuid.UUID      `json:"return_id"`
	TransactionItemID uuid.UUID      `json:"transaction_item_id"`
	Quantity          int32          `json:"quantity"`
	UnitPrice         pgtype.Numeric `json:"unit_price"`
	Amount            pgtype.Numeric `json:"amount"`
}

func (q *Queries) CreateReturnItem(ctx context.Context, arg CreateReturnItemParams) (ReturnItem, error) {
	row := q.db.QueryRow(ctx, createReturnItem,
		arg.ReturnID,
		arg.TransactionItemID,
		arg.Quantity,
		arg.UnitPrice,
		arg.Amount,
	)
	var i ReturnItem
	err := row.Scan(
		&i.ID,
		&i.ReturnID,
		&i.TransactionItemID,
		&i.Quantity,
		&i.UnitPrice,
		&i.Amount,
	)
	return i, err
}

const listReturnRecordsByTransaction = `-- name: ListReturnRecordsByTransaction :many
SELECT id, shop_id, transaction_id, invoice_number, return_type, total, note, created_by, created_at
FROM return_records WHERE transaction_id = $1
ORDER BY created_at
`

func (q *Queries) ListReturnRecordsByTransaction(ctx context.Context, transactionID uuid.UUID) ([]ReturnRecord, error) {
	rows, err := q.db.Query(ctx, listReturnRecordsByTransaction, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ReturnRecord
	for rows.Next() {
		var i ReturnRecord
		if err := rows.Scan(
			&i.ID,
			&i.ShopID,
			&i.TransactionID,
			&i.InvoiceNumber,
			&i.ReturnType,
			&i.Total,
			&i.Note,
			&i.CreatedBy,
			&i.CreatedAt,
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

const listReturnItemsByReturn = `-- name: ListReturnItemsByReturn :many
SELECT id, return_id, transaction_item_id, quantity, unit_price, amount
FROM return_items WHERE return_id = $1
`

func (q *Queries) ListReturnItemsByReturn(ctx context.Context, returnID uuid.UUID) ([]ReturnItem, error) {
	rows, err := q.db.Query(ctx, listReturnItemsByReturn, returnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ReturnItem
	for rows.Next() {
		var i ReturnItem
		if err := rows.Scan(
			&i.ID,
			&i.ReturnID,
			&i.TransactionItemID,
			&i.Quantity,
			&i.UnitPrice,
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
