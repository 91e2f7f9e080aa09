package service

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tokoledger/api/internal/database"
)

func numericToNullDecimal(n pgtype.Numeric) decimal.NullDecimal {
	if !n.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(database.NumericToDecimal(n))
}

func toPgUUID(id uuid.NullUUID) pgtype.UUID {
	if !id.Valid {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: id.UUID, Valid: true}
}

func fromPgUUID(id pgtype.UUID) uuid.NullUUID {
	if !id.Valid {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(id.Bytes), Valid: true}
}

func optionalText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
