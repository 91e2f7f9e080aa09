package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createRepair = `-- name: CreateRepair :one
INSERT INTO repairs (shop_id, reference, customer_name, device, created_by)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, shop_id, reference, customer_name, device, created_by, created_at, updated_at
`

type CreateRepairParams struct {
	ShopID       uuid.UUID `json:"shop_id"`
	Reference    string    `json:"reference"`
	CustomerName string    `json:"customer_name"`
	Device       string    `json:"device"`
	CreatedBy    uuid.UUID `json:"created_by"`
}

func (q *Queries) CreateRepair(ctx context.Context, arg CreateRepairParams) (Repair, error) {
	row := q.db.QueryRow(ctx, createRepair,
		arg.ShopID,
		arg.Reference,
		arg.CustomerName,
		arg.Device,
		arg.CreatedBy,
	)
	var i Repair
	err := row.Scan(
		&i.ID,
		&i.ShopID,
		&i.Reference,
		&i.CustomerName,
		&i.Device,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getRepair = `-- name: GetRepair :one
SELECT id, shop_id, reference, customer_name, device, created_by, created_at, updated_at
FROM repairs WHERE id = $1 AND shop_id = $2
`

type GetRepairParams struct {
	ID     uuid.UUID `json:"id"`
	ShopID uuid.UUID `json:"shop_id"`
}

func (q *Queries) GetRepair(ctx context.Context, arg GetRepairParams) (Repair, error) {
	row := q.db.QueryRow(ctx, getRepair, arg.ID, arg.ShopID)
	var i Repair
	err := row.Scan(
		&i.ID,
		&i.ShopID,
		&i.Reference,
		&i.CustomerName,
		&i.Device,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const touchRepairForUpdate = `-- name: TouchRepairForUpdate :one
UPDATE repairs SET updated_at = now()
WHERE id = $1 AND shop_id = $2
RETURNING id, shop_id, reference, customer_name, device, created_by, created_at, updated_at
`

type TouchRepairForUpdateParams struct {
	ID     uuid.UUID `json:"id"`
	ShopID uuid.UUID `json:"shop_id"`
}

// TouchRepairForUpdate bumps updated_at and holds the row lock for the rest
// of the transaction.
func (q *Queries) TouchRepairForUpdate(ctx context.Context, arg TouchRepairForUpdateParams) (Repair, error) {
	row := q.db.QueryRow(ctx, touchRepairForUpdate, arg.ID, arg.ShopID)
	var i Repair
	err := row.Scan(
		&i.ID,
		&i.ShopID,
		&i.Reference,
		&i.CustomerName,
		&i.Device,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listRepairParts = `-- name: ListRepairParts :many
SELECT id, repair_id, product_id, variation_id, quantity
FROM repair_parts WHERE repair_id = $1
ORDER BY id
`

func (q *Queries) ListRepairParts(ctx context.Context, repairID uuid.UUID) ([]RepairPart, error) {
	rows, err := q.db.Query(ctx, listRepairParts, repairID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RepairPart
	for rows.Next() {
		var i RepairPart
		if err := rows.Scan(
			&i.ID,
			&i.RepairID,
			&i.ProductID,
			&i.VariationID,
			&i.Quantity,
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

const deleteRepairParts = `-- name: DeleteRepairParts :exec
DELETE FROM repair_parts WHERE repair_id = $1
`

func (q *Queries) DeleteRepairParts(ctx context.Context, repairID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteRepairParts, repairID)
	return err
}

const createRepairPart = `-- name: CreateRepairPart :one
INSERT INTO repair_parts (repair_id, product_id, variation_id, quantity)
VALUES ($1, $2, $3, $4)
RETURNING id, repair_id, product_id, variation_id, quantity
`

type CreateRepairPartParams struct {
	RepairID    uuid.UUID   `json:"repair_id"`
	ProductID   uuid.UUID   `json:"product_id"`
	VariationID pgtype.UUID `json:"variation_id"`
	Quantity    int32       `json:"quantity"`
}

func (q *Queries) CreateRepairPart(ctx context.Context, arg CreateRepairPartParams) (RepairPart, error) {
	row := q.db.QueryRow(ctx, createRepairPart,
		arg.RepairID,
		arg.ProductID,
		arg.VariationID,
		arg.Quantity,
	)
	var i RepairPart
	err := row.Scan(
		&i.ID,
		&i.RepairID,
		&i.ProductID,
		&i.VariationID,
		&i.Quantity,
	)
	return i, err
}
