package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getShop = `-- name: GetShop :one
SELECT id, name, address, currency_symbol, auto_tax, vat_percent, tax_percent, created_at, updated_at
FROM shops WHERE id = $1
`

func (q *Queries) GetShop(ctx context.Context, id uuid.UUID) (Shop, error) {
	row := q.db.QueryRow(ctx, getShop, id)
	var i Shop
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Address,
		&i.CurrencySymbol,
		&i.AutoTax,
		&i.VatPercent,
		&i.TaxPercent,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createShop = `-- name: CreateShop :one
INSERT INTO shops (name, address, currency_symbol, auto_tax, vat_percent, tax_percent)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, name, address, currency_symbol, auto_tax, vat_percent, tax_percent, created_at, updated_at
`

type CreateShopParams struct {
	Name           string         `json:"name"`
	Address        string         `json:"address"`
	CurrencySymbol string         `json:"currency_symbol"`
	AutoTax        bool           `json:"auto_tax"`
	VatPercent     pgtype.Numeric `json:"vat_percent"`
	TaxPercent     pgtype.Numeric `json:"tax_percent"`
}

func (q *Queries) CreateShop(ctx context.Context, arg CreateShopParams) (Shop, error) {
	row := q.db.QueryRow(ctx, createShop,
		arg.Name,
		arg.Address,
		arg.CurrencySymbol,
		arg.AutoTax,
		arg.VatPercent,
		arg.TaxPercent,
	)
	var i Shop
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Address,
		&i.CurrencySymbol,
		&i.AutoTax,
		&i.VatPercent,
		&i.TaxPercent,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
