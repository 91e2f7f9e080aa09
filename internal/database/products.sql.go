package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getProductForSale = `-- name: GetProductForSale :one
SELECT id, shop_id, name, price, cost, stock, created_at, updated_at
FROM products WHERE id = $1 AND shop_id = $2
FOR NO KEY UPDATE
`

type GetProductForSaleParams struct {
	ID     uuid.UUID `json:"id"`
	ShopID uuid.UUID `json:"shop_id"`
}

// GetProductForSale locks the product row until the surrounding transaction
// ends, so concurrent sales see each other's stock movements.
func (q *Queries) GetProductForSale(ctx context.Context, arg GetProductForSaleParams) (Product, error) {
	row := q.db.QueryRow(ctx, getProductForSale, arg.ID, arg.ShopID)
	var i Product
	err := row.Scan(
		&i.ID,
		&i.ShopID,
		&i.Name,
		&i.Price,
		&i.Cost,
		&i.Stock,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listVariationsByProduct = `-- name: ListVariationsByProduct :many
SELECT id, product_id, name, price, cost, stock
FROM product_variations WHERE product_id = $1
ORDER BY name
`

func (q *Queries) ListVariationsByProduct(ctx context.Context, productID uuid.UUID) ([]ProductVariation, error) {
	rows, err := q.db.Query(ctx, listVariationsByProduct, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ProductVariation
	for rows.Next() {
		var i ProductVariation
		if err := rows.Scan(
			&i.ID,
			&i.ProductID,
			&i.Name,
			&i.Price,
			&i.Cost,
			&i.Stock,
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

const adjustProductStock = `-- name: AdjustProductStock :exec
UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1
`

type AdjustProductStockParams struct {
	ID    uuid.UUID `json:"id"`
	Delta int32     `json:"delta"`
}

func (q *Queries) AdjustProductStock(ctx context.Context, arg AdjustProductStockParams) error {
	_, err := q.db.Exec(ctx, adjustProductStock, arg.ID, arg.Delta)
	return err
}

const adjustVariationStock = `-- name: AdjustVariationStock :exec
UPDATE product_variations SET stock = stock + $2 WHERE id = $1
`

type AdjustVariationStockParams struct {
	ID    uuid.UUID `json:"id"`
	Delta int32     `json:"delta"`
}

func (q *Queries) AdjustVariationStock(ctx context.Context, arg AdjustVariationStockParams) error {
	_, err := q.db.Exec(ctx, adjustVariationStock, arg.ID, arg.Delta)
	return err
}

const createProduct = `-- name: CreateProduct :one
INSERT INTO products (shop_id, name, price, cost, stock)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, shop_id, name, price, cost, stock, created_at, updated_at
`

type CreateProductParams struct {
	ShopID uuid.UUID      `json:"shop_id"`
	Name   string         `json:"name"`
	Price  pgtype.Numeric `json:"price"`
	Cost   pgtype.Numeric `json:"cost"`
	Stock  int32          `json:"stock"`
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, createProduct,
		arg.ShopID,
		arg.Name,
		arg.Price,
		arg.Cost,
		arg.Stock,
	)
	var i Product
	err := row.Scan(
		&i.ID,
		&i.ShopID,
		&i.Name,
		&i.Price,
		&i.Cost,
		&i.Stock,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createProductVariation = `-- name: CreateProductVariation :one
INSERT INTO product_variations (product_id, name, price, cost, stock)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, product_id, name, price, cost, stock
`

type CreateProductVariationParams struct {
	ProductID uuid.UUID      `json:"product_id"`
	Name      string         `json:"name"`
	Price     pgtype.Numeric `json:"price"`
	Cost      pgtype.Numeric `json:"cost"`
	Stock     int32          `json:"stock"`
}

func (q *Queries) CreateProductVariation(ctx context.Context, arg CreateProductVariationParams) (ProductVariation, error) {
	row := q.db.QueryRow(ctx, createProductVariation,
		arg.ProductID,
		arg.Name,
		arg.Price,
		arg.Cost,
		arg.Stock,
	)
	var i ProductVariation
	err := row.Scan(
		&i.ID,
		&i.ProductID,
		&i.Name,
		&i.Price,
		&i.Cost,
		&i.Stock,
	)
	return i, err
}
