package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/tokoledger/api/internal/auth"
	"github.com/tokoledger/api/internal/database"
	"github.com/tokoledger/api/internal/middleware"
	"github.com/tokoledger/api/internal/payment"
	"github.com/tokoledger/api/internal/pricing"
	"github.com/tokoledger/api/internal/receipt"
	"github.com/tokoledger/api/internal/returns"
	"github.com/tokoledger/api/internal/service"
	"go.uber.org/zap"
)

// TransactionServicer defines the service methods needed by transaction
// handlers. Satisfied by *service.TransactionService.
type TransactionServicer interface {
	Create(ctx context.Context, req service.SaveTransactionRequest) (*service.TransactionResult, error)
	Update(ctx context.Context, id uuid.UUID, req service.SaveTransactionRequest) (*service.TransactionResult, error)
	Discard(ctx context.Context, shopID, id uuid.UUID) error
	Get(ctx context.Context, shopID, id uuid.UUID) (*service.TransactionResult, error)
	List(ctx context.Context, req service.ListTransactionsRequest) ([]database.Transaction, error)
}

// ShopStore loads shop metadata for receipts. Satisfied by *database.Queries.
type ShopStore interface {
	GetShop(ctx context.Context, id uuid.UUID) (database.Shop, error)
}

// TransactionHandler handles transaction endpoints.
type TransactionHandler struct {
	svc      TransactionServicer
	shops    ShopStore
	renderer receipt.Renderer
	logger   *zap.Logger
}

// NewTransactionHandler creates a new TransactionHandler. A nil renderer
// renders receipts as JSON.
func NewTransactionHandler(svc TransactionServicer, shops ShopStore, renderer receipt.Renderer, logger *zap.Logger) *TransactionHandler {
	if renderer == nil {
		renderer = receipt.JSONRenderer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransactionHandler{svc: svc, shops: shops, renderer: renderer, logger: logger}
}

// RegisterRoutes registers transaction endpoints on a shop-scoped router.
func (h *TransactionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/transactions", h.Create)
	r.Get("/transactions", h.List)
	r.Get("/transactions/{id}", h.Get)
	r.Put("/transactions/{id}", h.Update)
	r.Delete("/transactions/{id}", h.Discard)
	r.Get("/transactions/{id}/receipt", h.Receipt)
}

// --- Request / Response types ---

type saveTransactionRequest struct {
	Status         string                   `json:"status"`
	ExchangeOf     string                   `json:"exchange_of"`
	CustomerName   string                   `json:"customer_name"`
	Note           string                   `json:"note"`
	Items          []transactionItemRequest `json:"items"`
	DiscountType   string                   `json:"discount_type"`
	DiscountValue  string                   `json:"discount_value"`
	PointsDiscount string                   `json:"points_discount"`
	Tax            string                   `json:"tax"`
	VAT            string                   `json:"vat"`
	AIT            string                   `json:"ait"`
	ServiceCharge  string                   `json:"service_charge"`
	Payment        *paymentRequest          `json:"payment"`
}

type transactionItemRequest struct {
	ProductID     string `json:"product_id"`
	VariationID   string `json:"variation_id"`
	Quantity      int32  `json:"quantity"`
	DiscountType  string `json:"discount_type"`
	DiscountValue string `json:"discount_value"`
	Role          string `json:"role"`
}

// paymentRequest is a single payment when Payments is empty and a split
// payment otherwise.
type paymentRequest struct {
	Method   string             `json:"method"`
	Received string             `json:"received"`
	Payments []breakdownRequest `json:"payments"`
}

type breakdownRequest struct {
	Method string `json:"method"`
	Amount string `json:"amount"`
}

type transactionResponse struct {
	ID               uuid.UUID                 `json:"id"`
	ShopID           uuid.UUID                 `json:"shop_id"`
	InvoiceNumber    string                    `json:"invoice_number"`
	Status           string                    `json:"status"`
	ExchangeOf       *string                   `json:"exchange_of"`
	RepairID         *string                   `json:"repair_id"`
	CustomerName     *string                   `json:"customer_name"`
	Note             *string                   `json:"note"`
	SubTotal         string                    `json:"sub_total"`
	BillDiscount     string                    `json:"bill_discount"`
	PointsDiscount   string                    `json:"points_discount"`
	Tax              string                    `json:"tax"`
	VAT              string                    `json:"vat"`
	AIT              string                    `json:"ait"`
	ServiceCharge    string                    `json:"service_charge"`
	GrandTotal       string                    `json:"grand_total"`
	PaymentType      string                    `json:"payment_type"`
	Received         string                    `json:"received"`
	Paid             string                    `json:"paid"`
	Due              string                    `json:"due"`
	Change           string                    `json:"change"`
	TotalReturned    string                    `json:"total_returned"`
	NetTotal         string                    `json:"net_total"`
	HasPartialReturn bool                      `json:"has_partial_return"`
	HasFullReturn    bool                      `json:"has_full_return"`
	SalesmanID       uuid.UUID                 `json:"salesman_id"`
	SalesmanName     string                    `json:"salesman_name"`
	CreatedAt        time.Time                 `json:"created_at"`
	UpdatedAt        time.Time                 `json:"updated_at"`
	Items            []transactionItemResponse `json:"items,omitempty"`
	Payments         []paymentResponse         `json:"payments,omitempty"`
	Replayed         bool                      `json:"replayed,omitempty"`
}

type transactionItemResponse struct {
	ID            uuid.UUID `json:"id"`
	ProductID     uuid.UUID `json:"product_id"`
	VariationID   *string   `json:"variation_id"`
	Name          string    `json:"name"`
	UnitPrice     string    `json:"unit_price"`
	Quantity      int32     `json:"quantity"`
	DiscountType  *string   `json:"discount_type"`
	DiscountValue *string   `json:"discount_value"`
	Discount      string    `json:"discount"`
	LineTotal     string    `json:"line_total"`
	Role          string    `json:"role"`
}

type paymentResponse struct {
	Method string `json:"method"`
	Amount string `json:"amount"`
}

// transactionListResponse wraps a list of transactions with pagination metadata.
type transactionListResponse struct {
	Transactions []transactionResponse `json:"transactions"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

// --- Handlers ---

// Create handles POST /shops/{sid}/transactions.
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	shopID, claims, ok := shopAndClaims(w, r)
	if !ok {
		return
	}

	var req saveTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	svcReq, err := toSaveRequest(shopID, claims, req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	svcReq.IdempotencyKey = r.Header.Get("Idempotency-Key")

	result, err := h.svc.Create(r.Context(), svcReq)
	if err != nil {
		writeServiceError(w, h.logger, "create transaction", err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, toTransactionResponse(result))
}

// List handles GET /shops/{sid}/transactions.
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	shopID, _, ok := shopAndClaims(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", 20)
	if limit == 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := queryInt(r, "offset", 0)

	txns, err := h.svc.List(r.Context(), service.ListTransactionsRequest{
		ShopID: shopID,
		Status: r.URL.Query().Get("status"),
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		writeServiceError(w, h.logger, "list transactions", err)
		return
	}

	resp := make([]transactionResponse, len(txns))
	for i, t := range txns {
		resp[i] = dbTransactionToResponse(t)
	}

	writeJSON(w, http.StatusOK, transactionListResponse{
		Transactions: resp,
		Limit:        limit,
		Offset:       offset,
	})
}

// Get handles GET /shops/{sid}/transactions/{id}.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	shopID, _, ok := shopAndClaims(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid transaction ID"})
		return
	}

	result, err := h.svc.Get(r.Context(), shopID, id)
	if err != nil {
		writeServiceError(w, h.logger, "get transaction", err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionResponse(result))
}

// Update handles PUT /shops/{sid}/transactions/{id}: resubmits the full cart
// of a draft, held or finalized transaction.
func (h *TransactionHandler) Update(w http.ResponseWriter, r *http.Request) {
	shopID, claims, ok := shopAndClaims(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid transaction ID"})
		return
	}

	var req saveTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	svcReq, err := toSaveRequest(shopID, claims, req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result, err := h.svc.Update(r.Context(), id, svcReq)
	if err != nil {
		writeServiceError(w, h.logger, "update transaction", err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionResponse(result))
}

// Discard handles DELETE /shops/{sid}/transactions/{id}.
func (h *TransactionHandler) Discard(w http.ResponseWriter, r *http.Request) {
	shopID, _, ok := shopAndClaims(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid transaction ID"})
		return
	}

	if err := h.svc.Discard(r.Context(), shopID, id); err != nil {
		writeServiceError(w, h.logger, "discard transaction", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Receipt handles GET /shops/{sid}/transactions/{id}/receipt.
func (h *TransactionHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	shopID, _, ok := shopAndClaims(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid transaction ID"})
		return
	}

	result, err := h.svc.Get(r.Context(), shopID, id)
	if err != nil {
		writeServiceError(w, h.logger, "get transaction", err)
		return
	}

	shop, err := h.shops.GetShop(r.Context(), shopID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "shop not found"})
			return
		}
		h.logger.Error("get shop", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.Header().Set("Content-Type", h.renderer.ContentType())
	w.WriteHeader(http.StatusOK)
	if err := h.renderer.Render(w, receipt.Build(result, shop)); err != nil {
		h.logger.Error("render receipt", zap.Error(err))
	}
}

// --- Helpers ---

// shopAndClaims reads the {sid} path parameter and the authenticated caller,
// writing the error response itself when either is missing.
func shopAndClaims(w http.ResponseWriter, r *http.Request) (uuid.UUID, *auth.Claims, bool) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return uuid.Nil, nil, false
	}
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return uuid.Nil, nil, false
	}
	return shopID, claims, true
}

func actorOf(claims *auth.Claims) service.Actor {
	return service.Actor{UserID: claims.UserID, Name: claims.Name, Role: claims.Role}
}

func parseOptionalUUID(s string) (uuid.NullUUID, error) {
	if s == "" {
		return uuid.NullUUID{}, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.NullUUID{}, err
	}
	return uuid.NullUUID{UUID: id, Valid: true}, nil
}

// toSaveRequest converts the wire request into the service request. Parse
// failures are returned as plain errors for a 400 response.
func toSaveRequest(shopID uuid.UUID, claims *auth.Claims, req saveTransactionRequest) (service.SaveTransactionRequest, error) {
	out := service.SaveTransactionRequest{
		ShopID:       shopID,
		Actor:        actorOf(claims),
		Status:       req.Status,
		CustomerName: req.CustomerName,
		Note:         req.Note,
	}

	var err error
	if out.ExchangeOf, err = parseOptionalUUID(req.ExchangeOf); err != nil {
		return out, errors.New("invalid exchange_of")
	}

	out.Items = make([]service.ItemInput, len(req.Items))
	for i, it := range req.Items {
		if it.ProductID == "" {
			return out, errors.New(formatItemError("items", i, "product_id is required"))
		}
		productID, err := uuid.Parse(it.ProductID)
		if err != nil {
			return out, errors.New(formatItemError("items", i, "invalid product_id"))
		}
		variationID, err := parseOptionalUUID(it.VariationID)
		if err != nil {
			return out, errors.New(formatItemError("items", i, "invalid variation_id"))
		}
		discount, err := parseAmount(it.DiscountValue)
		if err != nil {
			return out, errors.New(formatItemError("items", i, "invalid discount_value"))
		}
		out.Items[i] = service.ItemInput{
			ProductID:     productID,
			VariationID:   variationID,
			Quantity:      it.Quantity,
			DiscountKind:  it.DiscountType,
			DiscountValue: discount,
			Role:          it.Role,
		}
	}

	billValue, err := parseAmount(req.DiscountValue)
	if err != nil {
		return out, errors.New("invalid discount_value")
	}
	out.BillDiscount = pricing.BillDiscount{Kind: req.DiscountType, Value: billValue}

	if out.PointsDiscount, err = parseAmount(req.PointsDiscount); err != nil {
		return out, errors.New("invalid points_discount")
	}

	charges := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"tax", req.Tax, &out.Charges.Tax},
		{"vat", req.VAT, &out.Charges.VAT},
		{"ait", req.AIT, &out.Charges.AIT},
		{"service_charge", req.ServiceCharge, &out.Charges.ServiceCharge},
	}
	for _, c := range charges {
		if *c.dst, err = parseAmount(c.raw); err != nil {
			return out, fmt.Errorf("invalid %s", c.name)
		}
	}

	if req.Payment != nil {
		p, err := toPayment(*req.Payment)
		if err != nil {
			return out, err
		}
		out.Payment = p
	}
	return out, nil
}

func toPayment(req paymentRequest) (payment.Payment, error) {
	if len(req.Payments) == 0 {
		if req.Method == "" {
			return nil, nil
		}
		received, err := parseAmount(req.Received)
		if err != nil {
			return nil, errors.New("invalid payment.received")
		}
		return payment.Single{Method: req.Method, Received: received}, nil
	}

	split := payment.Split{Breakdown: make([]payment.Breakdown, len(req.Payments))}
	for i, b := range req.Payments {
		amount, err := decimal.NewFromString(b.Amount)
		if err != nil {
			return nil, errors.New(formatItemError("payments", i, "invalid amount"))
		}
		split.Breakdown[i] = payment.Breakdown{Method: b.Method, Amount: amount}
	}
	if req.Received != "" {
		received, err := decimal.NewFromString(req.Received)
		if err != nil {
			return nil, errors.New("invalid payment.received")
		}
		split.Received = decimal.NewNullDecimal(received)
	}
	return split, nil
}

func toTransactionResponse(r *service.TransactionResult) transactionResponse {
	t := r.Transaction
	tot := r.Totals
	resp := transactionResponse{
		ID:               t.ID,
		ShopID:           t.ShopID,
		InvoiceNumber:    t.InvoiceNumber,
		Status:           t.Status,
		ExchangeOf:       uuidPtr(t.ExchangeOf),
		RepairID:         uuidPtr(t.RepairID),
		CustomerName:     textPtr(t.CustomerName),
		Note:             textPtr(t.Note),
		SubTotal:         tot.SubTotal.StringFixed(2),
		BillDiscount:     tot.BillDiscount.StringFixed(2),
		PointsDiscount:   tot.PointsDiscount.StringFixed(2),
		Tax:              tot.Tax.StringFixed(2),
		VAT:              tot.VAT.StringFixed(2),
		AIT:              tot.AIT.StringFixed(2),
		ServiceCharge:    tot.ServiceCharge.StringFixed(2),
		GrandTotal:       tot.GrandTotal.StringFixed(2),
		PaymentType:      t.PaymentType,
		Received:         r.Settlement.Received.StringFixed(2),
		Paid:             r.Settlement.Paid.StringFixed(2),
		Due:              r.Settlement.Due.StringFixed(2),
		Change:           r.Settlement.Change.StringFixed(2),
		TotalReturned:    r.Returns.TotalReturned.StringFixed(2),
		NetTotal:         r.Returns.NetTotal.StringFixed(2),
		HasPartialReturn: r.Returns.HasPartialReturn,
		HasFullReturn:    r.Returns.HasFullReturn,
		SalesmanID:       t.SalesmanID,
		SalesmanName:     t.SalesmanName,
		Replayed:         r.Replayed,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
	if r.Settlement.PaymentType != "" {
		resp.PaymentType = r.Settlement.PaymentType
	}

	resp.Items = make([]transactionItemResponse, len(r.Items))
	for i, it := range r.Items {
		resp.Items[i] = transactionItemResponse{
			ID:           it.ID,
			ProductID:    it.ProductID,
			VariationID:  uuidPtr(it.VariationID),
			Name:         it.Name,
			UnitPrice:    database.NumericString(it.UnitPrice),
			Quantity:     it.Quantity,
			DiscountType: textPtr(it.DiscountKind),
			Discount:     database.NumericString(it.Discount),
			LineTotal:    database.NumericString(it.LineTotal),
			Role:         it.Role,
		}
		if it.DiscountValue.Valid {
			v := database.NumericString(it.DiscountValue)
			resp.Items[i].DiscountValue = &v
		}
	}

	resp.Payments = make([]paymentResponse, len(r.Payments))
	for i, p := range r.Payments {
		resp.Payments[i] = paymentResponse{Method: p.Method, Amount: database.NumericString(p.Amount)}
	}
	return resp
}

// dbTransactionToResponse renders a stored row without lines, using the
// amounts as last persisted.
func dbTransactionToResponse(t database.Transaction) transactionResponse {
	grand, _ := decimal.NewFromString(database.NumericString(t.GrandTotal))
	returned, _ := decimal.NewFromString(database.NumericString(t.TotalReturnedAmount))
	summary := returns.Summarize(grand, returned)
	return transactionResponse{
		ID:               t.ID,
		ShopID:           t.ShopID,
		InvoiceNumber:    t.InvoiceNumber,
		Status:           t.Status,
		ExchangeOf:       uuidPtr(t.ExchangeOf),
		RepairID:         uuidPtr(t.RepairID),
		CustomerName:     textPtr(t.CustomerName),
		Note:             textPtr(t.Note),
		SubTotal:         database.NumericString(t.SubTotal),
		BillDiscount:     database.NumericString(t.BillDiscount),
		PointsDiscount:   database.NumericString(t.PointsDiscount),
		Tax:              database.NumericString(t.Tax),
		VAT:              database.NumericString(t.Vat),
		AIT:              database.NumericString(t.Ait),
		ServiceCharge:    database.NumericString(t.ServiceCharge),
		GrandTotal:       database.NumericString(t.GrandTotal),
		PaymentType:      t.PaymentType,
		Received:         database.NumericString(t.Received),
		Paid:             database.NumericString(t.Paid),
		Due:              database.NumericString(t.Due),
		Change:           database.NumericString(t.ChangeAmount),
		TotalReturned:    summary.TotalReturned.StringFixed(2),
		NetTotal:         summary.NetTotal.StringFixed(2),
		HasPartialReturn: summary.HasPartialReturn,
		HasFullReturn:    summary.HasFullReturn,
		SalesmanID:       t.SalesmanID,
		SalesmanName:     t.SalesmanName,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}
