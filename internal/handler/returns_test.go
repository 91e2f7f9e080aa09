package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tokoledger/api/internal/database"
	"github.com/tokoledger/api/internal/handler"
	"github.com/tokoledger/api/internal/returns"
	"github.com/tokoledger/api/internal/service"
)

// --- Mock ReturnServicer ---

type mockReturnService struct {
	createFn     func(ctx context.Context, req service.CreateReturnRequest) (*service.ReturnResult, error)
	returnableFn func(ctx context.Context, shopID, transactionID uuid.UUID) ([]returns.OriginalLine, error)
	listFn       func(ctx context.Context, shopID, transactionID uuid.UUID) ([]service.ReturnRecordResult, error)
}

func (m *mockReturnService) Create(ctx context.Context, req service.CreateReturnRequest) (*service.ReturnResult, error) {
	return m.createFn(ctx, req)
}

func (m *mockReturnService) Returnable(ctx context.Context, shopID, transactionID uuid.UUID) ([]returns.OriginalLine, error) {
	return m.returnableFn(ctx, shopID, transactionID)
}

func (m *mockReturnService) List(ctx context.Context, shopID, transactionID uuid.UUID) ([]service.ReturnRecordResult, error) {
	return m.listFn(ctx, shopID, transactionID)
}

func returnRouter(svc *mockReturnService) http.Handler {
	return shopRouter(handler.NewReturnHandler(svc, nil).RegisterRoutes)
}

func numeric(t *testing.T, s string) pgtype.Numeric {
	t.Helper()
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		t.Fatalf("numeric %q: %v", s, err)
	}
	return n
}

func returnsPath(shopID, txnID uuid.UUID, suffix string) string {
	return fmt.Sprintf("/shops/%s/transactions/%s%s", shopID, txnID, suffix)
}

func TestReturnable(t *testing.T) {
	sess := newSession(t, "SALESMAN")
	txnID := uuid.New()
	variationID := uuid.New()
	lines := []returns.OriginalLine{
		{LineID: uuid.New(), ProductID: uuid.New(), Name: "Charger", SoldQty: 3, ReturnedQty: 1, UnitPrice: decimal.NewFromInt(100)},
		{LineID: uuid.New(), ProductID: uuid.New(), VariationID: uuid.NullUUID{UUID: variationID, Valid: true},
			Name: "Phone Case", SoldQty: 1, ReturnedQty: 1, UnitPrice: decimal.NewFromInt(120)},
	}
	svc := &mockReturnService{
		returnableFn: func(_ context.Context, shopID, id uuid.UUID) ([]returns.OriginalLine, error) {
			if shopID != sess.shopID || id != txnID {
				return nil, service.ErrTransactionNotFound
			}
			return lines, nil
		},
	}

	rr := doRequest(t, returnRouter(svc), "GET", returnsPath(sess.shopID, txnID, "/returnable"), nil, sess.token)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	var resp []struct {
		Name        string  `json:"name"`
		VariationID *string `json:"variation_id"`
		Returnable  int32   `json:"returnable"`
		UnitPrice   string  `json:"unit_price"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("lines: got %d, want 2", len(resp))
	}
	if resp[0].Returnable != 2 || resp[0].UnitPrice != "100.00" || resp[0].VariationID != nil {
		t.Errorf("line 0: got %+v", resp[0])
	}
	if resp[1].Returnable != 0 || resp[1].VariationID == nil || *resp[1].VariationID != variationID.String() {
		t.Errorf("line 1: got %+v", resp[1])
	}

	rr = doRequest(t, returnRouter(svc), "GET", returnsPath(sess.shopID, uuid.New(), "/returnable"), nil, sess.token)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown transaction: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestCreateReturn_Success(t *testing.T) {
	sess := newSession(t, "SALESMAN")
	txnID := uuid.New()
	lineID := uuid.New()

	var got service.CreateReturnRequest
	svc := &mockReturnService{
		createFn: func(_ context.Context, req service.CreateReturnRequest) (*service.ReturnResult, error) {
			got = req
			return &service.ReturnResult{
				Record: database.ReturnRecord{
					ID:            uuid.New(),
					ShopID:        req.ShopID,
					TransactionID: req.TransactionID,
					InvoiceNumber: "INV-000001",
					ReturnType:    req.ReturnType,
					Total:         numeric(t, "100"),
					CreatedBy:     req.Actor.UserID,
				},
				Items: []database.ReturnItem{{
					ID:                uuid.New(),
					TransactionItemID: lineID,
					Quantity:          1,
					UnitPrice:         numeric(t, "100"),
					Amount:            numeric(t, "100"),
				}},
				Summary: returns.Summarize(decimal.NewFromInt(300), decimal.NewFromInt(100)),
				Returnable: []returns.OriginalLine{
					{LineID: lineID, SoldQty: 3, ReturnedQty: 1, UnitPrice: decimal.NewFromInt(100)},
				},
			}, nil
		},
	}

	body := map[string]interface{}{
		"return_type": "REFUND",
		"note":        "cracked",
		"items":       []map[string]interface{}{{"line_id": lineID.String(), "quantity": 1}},
	}
	rr := doRequest(t, returnRouter(svc), "POST", returnsPath(sess.shopID, txnID, "/returns"), body, sess.token)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	if got.ShopID != sess.shopID || got.TransactionID != txnID || got.Actor.UserID != sess.userID {
		t.Errorf("request scope: got %+v", got)
	}
	if len(got.Items) != 1 || got.Items[0].LineID != lineID || got.Items[0].Quantity != 1 {
		t.Errorf("items: got %+v", got.Items)
	}
	if got.Note != "cracked" || got.ReturnType != "REFUND" {
		t.Errorf("note/type: got %q %q", got.Note, got.ReturnType)
	}

	var resp struct {
		Return struct {
			Total string `json:"total"`
			Items []struct {
				Amount string `json:"amount"`
			} `json:"items"`
		} `json:"return"`
		TotalReturned    string `json:"total_returned"`
		NetTotal         string `json:"net_total"`
		HasPartialReturn bool   `json:"has_partial_return"`
		HasFullReturn    bool   `json:"has_full_return"`
		Returnable       []struct {
			Returnable int32 `json:"returnable"`
		} `json:"returnable"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Return.Total != "100.00" || len(resp.Return.Items) != 1 || resp.Return.Items[0].Amount != "100.00" {
		t.Errorf("record: got %+v", resp.Return)
	}
	if resp.TotalReturned != "100.00" || resp.NetTotal != "200.00" {
		t.Errorf("totals: returned %s net %s", resp.TotalReturned, resp.NetTotal)
	}
	if !resp.HasPartialReturn || resp.HasFullReturn {
		t.Errorf("flags: partial %v full %v", resp.HasPartialReturn, resp.HasFullReturn)
	}
	if len(resp.Returnable) != 1 || resp.Returnable[0].Returnable != 2 {
		t.Errorf("returnable: got %+v", resp.Returnable)
	}
}

func TestCreateReturn_BadRequest(t *testing.T) {
	sess := newSession(t, "SALESMAN")
	svc := &mockReturnService{
		createFn: func(context.Context, service.CreateReturnRequest) (*service.ReturnResult, error) {
			t.Error("service should not be called")
			return nil, nil
		},
	}

	tests := []struct {
		name string
		path string
		body interface{}
	}{
		{"invalid json", returnsPath(sess.shopID, uuid.New(), "/returns"), "{"},
		{"bad line id", returnsPath(sess.shopID, uuid.New(), "/returns"),
			map[string]interface{}{"items": []map[string]interface{}{{"line_id": "x", "quantity": 1}}}},
		{"bad transaction id", fmt.Sprintf("/shops/%s/transactions/abc/returns", sess.shopID),
			map[string]interface{}{"items": []map[string]interface{}{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, returnRouter(svc), "POST", tt.path, tt.body, sess.token)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestCreateReturn_ServiceErrors(t *testing.T) {
	sess := newSession(t, "SALESMAN")
	body := map[string]interface{}{
		"items": []map[string]interface{}{{"line_id": uuid.New().String(), "quantity": 5}},
	}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"exceeds available", fmt.Errorf("line x: %w", returns.ErrExceedsAvailableQuantity), http.StatusConflict},
		{"not returnable", service.ErrNotReturnable, http.StatusConflict},
		{"empty return", returns.ErrEmptyReturn, http.StatusBadRequest},
		{"zero quantity", returns.ErrInvalidQuantity, http.StatusBadRequest},
		{"line not found", returns.ErrLineNotFound, http.StatusBadRequest},
		{"bad return type", service.ErrInvalidReturnType, http.StatusBadRequest},
		{"transaction not found", service.ErrTransactionNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockReturnService{
				createFn: func(context.Context, service.CreateReturnRequest) (*service.ReturnResult, error) {
					return nil, tt.err
				},
			}
			rr := doRequest(t, returnRouter(svc), "POST", returnsPath(sess.shopID, uuid.New(), "/returns"), body, sess.token)
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d; body: %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestListReturns(t *testing.T) {
	sess := newSession(t, "MANAGER")
	txnID := uuid.New()
	svc := &mockReturnService{
		listFn: func(_ context.Context, _, id uuid.UUID) ([]service.ReturnRecordResult, error) {
			return []service.ReturnRecordResult{
				{Record: database.ReturnRecord{ID: uuid.New(), TransactionID: id, Total: numeric(t, "50")}},
				{Record: database.ReturnRecord{ID: uuid.New(), TransactionID: id, Total: numeric(t, "25.5"),
					Note: pgtype.Text{String: "wrong colour", Valid: true}}},
			}, nil
		},
	}

	rr := doRequest(t, returnRouter(svc), "GET", returnsPath(sess.shopID, txnID, "/returns"), nil, sess.token)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	var resp []struct {
		TransactionID uuid.UUID `json:"transaction_id"`
		Total         string    `json:"total"`
		Note          *string   `json:"note"`
		Items         []any     `json:"items"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("records: got %d, want 2", len(resp))
	}
	if resp[0].TransactionID != txnID || resp[0].Total != "50.00" || resp[0].Note != nil {
		t.Errorf("record 0: got %+v", resp[0])
	}
	if resp[1].Total != "25.50" || resp[1].Note == nil || *resp[1].Note != "wrong colour" {
		t.Errorf("record 1: got %+v", resp[1])
	}
	if resp[0].Items == nil {
		t.Error("items should be an empty array, not null")
	}
}
