package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tokoledger/api/internal/database"
	"github.com/tokoledger/api/internal/returns"
	"github.com/tokoledger/api/internal/service"
	"go.uber.org/zap"
)

// ReturnServicer defines the service methods needed by return handlers.
// Satisfied by *service.ReturnService.
type ReturnServicer interface {
	Create(ctx context.Context, req service.CreateReturnRequest) (*service.ReturnResult, error)
	Returnable(ctx context.Context, shopID, transactionID uuid.UUID) ([]returns.OriginalLine, error)
	List(ctx context.Context, shopID, transactionID uuid.UUID) ([]service.ReturnRecordResult, error)
}

// ReturnHandler handles post-sale return endpoints.
type ReturnHandler struct {
	svc    ReturnServicer
	logger *zap.Logger
}

// NewReturnHandler creates a new ReturnHandler.
func NewReturnHandler(svc ReturnServicer, logger *zap.Logger) *ReturnHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReturnHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers return endpoints on a shop-scoped router.
func (h *ReturnHandler) RegisterRoutes(r chi.Router) {
	r.Get("/transactions/{id}/returnable", h.Returnable)
	r.Post("/transactions/{id}/returns", h.Create)
	r.Get("/transactions/{id}/returns", h.List)
}

// --- Request / Response types ---

type createReturnRequest struct {
	ReturnType string              `json:"return_type"`
	Note       string              `json:"note"`
	Items      []returnItemRequest `json:"items"`
}

type returnItemRequest struct {
	LineID   string `json:"line_id"`
	Quantity int32  `json:"quantity"`
}

type returnableLineResponse struct {
	LineID      uuid.UUID `json:"line_id"`
	ProductID   uuid.UUID `json:"product_id"`
	VariationID *string   `json:"variation_id"`
	Name        string    `json:"name"`
	SoldQty     int32     `json:"sold_qty"`
	ReturnedQty int32     `json:"returned_qty"`
	Returnable  int32     `json:"returnable"`
	UnitPrice   string    `json:"unit_price"`
}

type returnRecordResponse struct {
	ID            uuid.UUID            `json:"id"`
	TransactionID uuid.UUID            `json:"transaction_id"`
	InvoiceNumber string               `json:"invoice_number"`
	ReturnType    string               `json:"return_type"`
	Total         string               `json:"total"`
	Note          *string              `json:"note"`
	CreatedBy     uuid.UUID            `json:"created_by"`
	CreatedAt     time.Time            `json:"created_at"`
	Items         []returnItemResponse `json:"items"`
}

type returnItemResponse struct {
	ID                uuid.UUID `json:"id"`
	TransactionItemID uuid.UUID `json:"transaction_item_id"`
	Quantity          int32     `json:"quantity"`
	UnitPrice         string    `json:"unit_price"`
	Amount            string    `json:"amount"`
}

// createReturnResponse carries the new record and the original's return state.
type createReturnResponse struct {
	Return           returnRecordResponse     `json:"return"`
	TotalReturned    string                   `json:"total_returned"`
	NetTotal         string                   `json:"net_total"`
	HasPartialReturn bool                     `json:"has_partial_return"`
	HasFullReturn    bool                     `json:"has_full_return"`
	Returnable       []returnableLineResponse `json:"returnable"`
}

// --- Handlers ---

// Returnable handles GET /shops/{sid}/transactions/{id}/returnable.
func (h *ReturnHandler) Returnable(w http.ResponseWriter, r *http.Request) {
	shopID, _, ok := shopAndClaims(w, r)
	if !ok {
		return
	}
	txnID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid transaction ID"})
		return
	}

	lines, err := h.svc.Returnable(r.Context(), shopID, txnID)
	if err != nil {
		writeServiceError(w, h.logger, "list returnable items", err)
		return
	}

	writeJSON(w, http.StatusOK, toReturnableResponse(lines))
}

// Create handles POST /shops/{sid}/transactions/{id}/returns.
func (h *ReturnHandler) Create(w http.ResponseWriter, r *http.Request) {
	shopID, claims, ok := shopAndClaims(w, r)
	if !ok {
		return
	}
	txnID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid transaction ID"})
		return
	}

	var req createReturnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	items := make([]returns.Request, len(req.Items))
	for i, it := range req.Items {
		lineID, err := uuid.Parse(it.LineID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError("items", i, "invalid line_id"),
			})
			return
		}
		items[i] = returns.Request{LineID: lineID, Quantity: it.Quantity}
	}

	result, err := h.svc.Create(r.Context(), service.CreateReturnRequest{
		ShopID:        shopID,
		TransactionID: txnID,
		Actor:         actorOf(claims),
		ReturnType:    req.ReturnType,
		Note:          req.Note,
		Items:         items,
	})
	if err != nil {
		writeServiceError(w, h.logger, "create return", err)
		return
	}

	writeJSON(w, http.StatusCreated, createReturnResponse{
		Return:           toReturnRecordResponse(result.Record, result.Items),
		TotalReturned:    result.Summary.TotalReturned.StringFixed(2),
		NetTotal:         result.Summary.NetTotal.StringFixed(2),
		HasPartialReturn: result.Summary.HasPartialReturn,
		HasFullReturn:    result.Summary.HasFullReturn,
		Returnable:       toReturnableResponse(result.Returnable),
	})
}

// List handles GET /shops/{sid}/transactions/{id}/returns.
func (h *ReturnHandler) List(w http.ResponseWriter, r *http.Request) {
	shopID, _, ok := shopAndClaims(w, r)
	if !ok {
		return
	}
	txnID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid transaction ID"})
		return
	}

	records, err := h.svc.List(r.Context(), shopID, txnID)
	if err != nil {
		writeServiceError(w, h.logger, "list returns", err)
		return
	}

	resp := make([]returnRecordResponse, len(records))
	for i, rec := range records {
		resp[i] = toReturnRecordResponse(rec.Record, rec.Items)
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func toReturnableResponse(lines []returns.OriginalLine) []returnableLineResponse {
	resp := make([]returnableLineResponse, len(lines))
	for i, l := range lines {
		resp[i] = returnableLineResponse{
			LineID:      l.LineID,
			ProductID:   l.ProductID,
			Name:        l.Name,
			SoldQty:     l.SoldQty,
			ReturnedQty: l.ReturnedQty,
			Returnable:  returns.Returnable(l),
			UnitPrice:   l.UnitPrice.StringFixed(2),
		}
		if l.VariationID.Valid {
			s := l.VariationID.UUID.String()
			resp[i].VariationID = &s
		}
	}
	return resp
}

func toReturnRecordResponse(rec database.ReturnRecord, items []database.ReturnItem) returnRecordResponse {
	resp := returnRecordResponse{
		ID:            rec.ID,
		TransactionID: rec.TransactionID,
		InvoiceNumber: rec.InvoiceNumber,
		ReturnType:    rec.ReturnType,
		Total:         database.NumericString(rec.Total),
		Note:          textPtr(rec.Note),
		CreatedBy:     rec.CreatedBy,
		CreatedAt:     rec.CreatedAt,
		Items:         make([]returnItemResponse, len(items)),
	}
	for i, it := range items {
		resp.Items[i] = returnItemResponse{
			ID:                it.ID,
			TransactionItemID: it.TransactionItemID,
			Quantity:          it.Quantity,
			UnitPrice:         database.NumericString(it.UnitPrice),
			Amount:            database.NumericString(it.Amount),
		}
	}
	return resp
}
