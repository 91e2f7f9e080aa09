package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Shop struct {
	ID             uuid.UUID      `json:"id"`
	Name           string         `json:"name"`
	Address        string         `json:"address"`
	CurrencySymbol string         `json:"currency_symbol"`
	AutoTax        bool           `json:"auto_tax"`
	VatPercent     pgtype.Numeric `json:"vat_percent"`
	TaxPercent     pgtype.Numeric `json:"tax_percent"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type User struct {
	ID             uuid.UUID `json:"id"`
	ShopID         uuid.UUID `json:"shop_id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"hashed_password"`
	FullName       string    `json:"full_name"`
	Role           string    `json:"role"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Product struct {
	ID        uuid.UUID      `json:"id"`
	ShopID    uuid.UUID      `json:"shop_id"`
	Name      string         `json:"name"`
	Price     pgtype.Numeric `json:"price"`
	Cost      pgtype.Numeric `json:"cost"`
	Stock     int32          `json:"stock"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type ProductVariation struct {
	ID        uuid.UUID      `json:"id"`
	ProductID uuid.UUID      `json:"product_id"`
	Name      string         `json:"name"`
	Price     pgtype.Numeric `json:"price"`
	Cost      pgtype.Numeric `json:"cost"`
	Stock     int32          `json:"stock"`
}

type Repair struct {
	ID           uuid.UUID `json:"id"`
	ShopID       uuid.UUID `json:"shop_id"`
	Reference    string    `json:"reference"`
	CustomerName string    `json:"customer_name"`
	Device       string    `json:"device"`
	CreatedBy    uuid.UUID `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type RepairPart struct {
	ID          uuid.UUID   `json:"id"`
	RepairID    uuid.UUID   `json:"repair_id"`
	ProductID   uuid.UUID   `json:"product_id"`
	VariationID pgtype.UUID `json:"variation_id"`
	Quantity    int32       `json:"quantity"`
}

type Transaction struct {
	ID                  uuid.UUID      `json:"id"`
	ShopID              uuid.UUID      `json:"shop_id"`
	InvoiceSeq          int32          `json:"invoice_seq"`
	InvoiceNumber       string         `json:"invoice_number"`
	Status              string         `json:"status"`
	ExchangeOf          pgtype.UUID    `json:"exchange_of"`
	RepairID            pgtype.UUID    `json:"repair_id"`
	CustomerName        pgtype.Text    `json:"customer_name"`
	Note                pgtype.Text    `json:"note"`
	BillDiscountKind    pgtype.Text    `json:"bill_discount_kind"`
	BillDiscountValue   pgtype.Numeric `json:"bill_discount_value"`
	SubTotal            pgtype.Numeric `json:"sub_total"`
	BillDiscount        pgtype.Numeric `json:"bill_discount"`
	PointsDiscount      pgtype.Numeric `json:"points_discount"`
	Tax                 pgtype.Numeric `json:"tax"`
	Vat                 pgtype.Numeric `json:"vat"`
	Ait                 pgtype.Numeric `json:"ait"`
	ServiceCharge       pgtype.Numeric `json:"service_charge"`
	GrandTotal          pgtype.Numeric `json:"grand_total"`
	Received            pgtype.Numeric `json:"received"`
	Paid                pgtype.Numeric `json:"paid"`
	Due                 pgtype.Numeric `json:"due"`
	ChangeAmount        pgtype.Numeric `json:"change_amount"`
	PaymentType         string         `json:"payment_type"`
	TotalReturnedAmount pgtype.Numeric `json:"total_returned_amount"`
	SalesmanID          uuid.UUID      `json:"salesman_id"`
	SalesmanName        string         `json:"salesman_name"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

type TransactionItem struct {
	ID            uuid.UUID      `json:"id"`
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

type TransactionPayment struct {
	ID            uuid.UUID      `json:"id"`
	TransactionID uuid.UUID      `json:"transaction_id"`
	Method        string         `json:"method"`
	Amount        pgtype.Numeric `json:"amount"`
}

type ReturnRecord struct {
	ID            uuid.UUID      `json:"id"`
	ShopID        uuid.UUID      `json:"shop_id"`
	TransactionID uuid.UUID      `json:"transaction_id"`
	InvoiceNumber string         `json:"invoice_number"`
	ReturnType    string         `json:"return_type"`
	Total         pgtype.Numeric `json:"total"`
	Note          pgtype.Text    `json:"note"`
	CreatedBy     uuid.UUID      `json:"created_by"`
	CreatedAt     time.Time      `json:"created_at"`
}

type ReturnItem struct {
	ID                uuid.UUID      `json:"id"`
	ReturnID          uuid.UUID      `json:"return_id"`
	TransactionItemID uuid.UUID      `json:"transaction_item_id"`
	Quantity          int32          `json:"quantity"`
	UnitPrice         pgtype.Numeric `json:"unit_price"`
	Amount            pgtype.Numeric `json:"amount"`
}
