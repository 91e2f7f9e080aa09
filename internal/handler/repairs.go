package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tokoledger/api/internal/database"
	"github.com/tokoledger/api/internal/service"
	"go.uber.org/zap"
)

// RepairServicer defines the service methods needed by repair handlers.
// Satisfied by *service.RepairService.
type RepairServicer interface {
	Create(ctx context.Context, req service.CreateRepairRequest) (database.Repair, error)
	Get(ctx context.Context, shopID, id uuid.UUID) (*service.RepairResult, error)
	SyncParts(ctx context.Context, req service.SyncPartsRequest) (*service.RepairResult, error)
}

// RepairHandler handles repair job endpoints.
type RepairHandler struct {
	svc    RepairServicer
	logger *zap.Logger
}

// NewRepairHandler creates a new RepairHandler.
func NewRepairHandler(svc RepairServicer, logger *zap.Logger) *RepairHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RepairHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers repair endpoints on a shop-scoped router.
func (h *RepairHandler) RegisterRoutes(r chi.Router) {
	r.Post("/repairs", h.Create)
	r.Get("/repairs/{id}", h.Get)
	r.Put("/repairs/{id}/parts", h.SyncParts)
}

// --- Request / Response types ---

type createRepairRequest struct {
	Reference    string `json:"reference"`
	CustomerName string `json:"customer_name"`
	Device       string `json:"device"`
}

type syncPartsRequest struct {
	Parts []repairPartRequest `json:"parts"`
}

type repairPartRequest struct {
	ProductID   string `json:"product_id"`
	VariationID string `json:"variation_id"`
	Quantity    int32  `json:"quantity"`
}

type repairResponse struct {
	ID           uuid.UUID            `json:"id"`
	ShopID       uuid.UUID            `json:"shop_id"`
	Reference    string               `json:"reference"`
	CustomerName string               `json:"customer_name"`
	Device       string               `json:"device"`
	CreatedBy    uuid.UUID            `json:"created_by"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
	Parts        []repairPartResponse `json:"parts"`
	Companion    *transactionResponse `json:"companion"`
}

type repairPartResponse struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"product_id"`
	VariationID *string   `json:"variation_id"`
	Quantity    int32     `json:"quantity"`
}

// --- Handlers ---

// Create handles POST /shops/{sid}/repairs.
func (h *RepairHandler) Create(w http.ResponseWriter, r *http.Request) {
	shopID, claims, ok := shopAndClaims(w, r)
	if !ok {
		return
	}

	var req createRepairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	repair, err := h.svc.Create(r.Context(), service.CreateRepairRequest{
		ShopID:       shopID,
		Actor:        actorOf(claims),
		Reference:    req.Reference,
		CustomerName: req.CustomerName,
		Device:       req.Device,
	})
	if err != nil {
		writeServiceError(w, h.logger, "create repair", err)
		return
	}

	writeJSON(w, http.StatusCreated, toRepairResponse(&service.RepairResult{Repair: repair}))
}

// Get handles GET /shops/{sid}/repairs/{id}.
func (h *RepairHandler) Get(w http.ResponseWriter, r *http.Request) {
	shopID, _, ok := shopAndClaims(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid repair ID"})
		return
	}

	result, err := h.svc.Get(r.Context(), shopID, id)
	if err != nil {
		writeServiceError(w, h.logger, "get repair", err)
		return
	}

	writeJSON(w, http.StatusOK, toRepairResponse(result))
}

// SyncParts handles PUT /shops/{sid}/repairs/{id}/parts. The body replaces
// the whole parts list; an empty list removes the companion sale.
func (h *RepairHandler) SyncParts(w http.ResponseWriter, r *http.Request) {
	shopID, claims, ok := shopAndClaims(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid repair ID"})
		return
	}

	var req syncPartsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	parts := make([]service.PartInput, len(req.Parts))
	for i, p := range req.Parts {
		productID, err := uuid.Parse(p.ProductID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError("parts", i, "invalid product_id"),
			})
			return
		}
		variationID, err := parseOptionalUUID(p.VariationID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError("parts", i, "invalid variation_id"),
			})
			return
		}
		parts[i] = service.PartInput{ProductID: productID, VariationID: variationID, Quantity: p.Quantity}
	}

	result, err := h.svc.SyncParts(r.Context(), service.SyncPartsRequest{
		ShopID:   shopID,
		RepairID: id,
		Actor:    actorOf(claims),
		Parts:    parts,
	})
	if err != nil {
		writeServiceError(w, h.logger, "sync repair parts", err)
		return
	}

	writeJSON(w, http.StatusOK, toRepairResponse(result))
}

func toRepairResponse(r *service.RepairResult) repairResponse {
	resp := repairResponse{
		ID:           r.Repair.ID,
		ShopID:       r.Repair.ShopID,
		Reference:    r.Repair.Reference,
		CustomerName: r.Repair.CustomerName,
		Device:       r.Repair.Device,
		CreatedBy:    r.Repair.CreatedBy,
		CreatedAt:    r.Repair.CreatedAt,
		UpdatedAt:    r.Repair.UpdatedAt,
		Parts:        make([]repairPartResponse, len(r.Parts)),
	}
	for i, p := range r.Parts {
		resp.Parts[i] = repairPartResponse{
			ID:          p.ID,
			ProductID:   p.ProductID,
			VariationID: uuidPtr(p.VariationID),
			Quantity:    p.Quantity,
		}
	}
	if r.Companion != nil {
		c := toTransactionResponse(r.Companion)
		resp.Companion = &c
	}
	return resp
}
