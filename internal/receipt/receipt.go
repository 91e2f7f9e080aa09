package receipt

import (
	"encoding/json"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tokoledger/api/internal/database"
	"github.com/tokoledger/api/internal/service"
)

// Document is the receipt handed to a renderer. Amounts are fixed to two
// decimals.
type Document struct {
	Shop          Shop      `json:"shop"`
	InvoiceNumber string    `json:"invoice_number"`
	Status        string    `json:"status"`
	IssuedAt      time.Time `json:"issued_at"`
	Salesman      string    `json:"salesman"`
	CustomerName  string    `json:"customer_name,omitempty"`
	Items         []Item    `json:"items"`

	SubTotal      string `json:"sub_total"`
	Discount      string `json:"discount"`
	VATAmount     string `json:"vat_amount"`
	Tax           string `json:"tax"`
	AIT           string `json:"ait"`
	ServiceCharge string `json:"service_charge"`
	GrandTotal    string `json:"grand_total"`

	PaymentType          string    `json:"payment_type"`
	Payments             []Payment `json:"payments"`
	ReceivedFromCustomer string    `json:"received_from_customer"`
	Change               string    `json:"change"`
	Due                  string    `json:"due"`

	TotalReturned string `json:"total_returned"`
	NetTotal      string `json:"net_total"`
}

type Shop struct {
	Name           string `json:"name"`
	Address        string `json:"address"`
	CurrencySymbol string `json:"currency_symbol"`
}

type Item struct {
	Name      string `json:"name"`
	Quantity  int32  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Discount  string `json:"discount"`
	LineTotal string `json:"line_total"`
	Role      string `json:"role"`
}

type Payment struct {
	Method string `json:"method"`
	Amount string `json:"amount"`
}

// Build assembles the receipt of a priced transaction. Discount is the bill
// discount plus the points redemption.
func Build(r *service.TransactionResult, shop database.Shop) Document {
	t := r.Transaction
	tot := r.Totals
	doc := Document{
		Shop: Shop{
			Name:           shop.Name,
			Address:        shop.Address,
			CurrencySymbol: shop.CurrencySymbol,
		},
		InvoiceNumber:        t.InvoiceNumber,
		Status:               t.Status,
		IssuedAt:             t.UpdatedAt,
		Salesman:             t.SalesmanName,
		SubTotal:             money(tot.SubTotal),
		Discount:             money(tot.BillDiscount.Add(tot.PointsDiscount)),
		VATAmount:            money(tot.VAT),
		Tax:                  money(tot.Tax),
		AIT:                  money(tot.AIT),
		ServiceCharge:        money(tot.ServiceCharge),
		GrandTotal:           money(tot.GrandTotal),
		PaymentType:          r.Settlement.PaymentType,
		Payments:             make([]Payment, 0, len(r.Settlement.Payments)),
		ReceivedFromCustomer: money(r.Settlement.Received),
		Change:               money(r.Settlement.Change),
		Due:                  money(r.Settlement.Due),
		TotalReturned:        money(r.Returns.TotalReturned),
		NetTotal:             money(r.Returns.NetTotal),
	}
	if t.CustomerName.Valid {
		doc.CustomerName = t.CustomerName.String
	}

	doc.Items = make([]Item, 0, len(r.Items))
	for _, it := range r.Items {
		doc.Items = append(doc.Items, Item{
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: database.NumericString(it.UnitPrice),
			Discount:  database.NumericString(it.Discount),
			LineTotal: database.NumericString(it.LineTotal),
			Role:      it.Role,
		})
	}
	for _, p := range r.Settlement.Payments {
		doc.Payments = append(doc.Payments, Payment{Method: p.Method, Amount: money(p.Amount)})
	}
	return doc
}

// Renderer turns a Document into bytes for the print or PDF pipeline.
type Renderer interface {
	ContentType() string
	Render(w io.Writer, doc Document) error
}

// JSONRenderer hands the document over as JSON.
type JSONRenderer struct{}

func (JSONRenderer) ContentType() string { return "application/json" }

func (JSONRenderer) Render(w io.Writer, doc Document) error {
	return json.NewEncoder(w).Encode(doc)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
