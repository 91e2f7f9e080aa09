package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/tokoledger/api/internal/auth"
	"github.com/tokoledger/api/internal/middleware"
)

const testSecret = "test-secret"

func TestAuthMiddleware_ValidToken(t *testing.T) {
	userID := uuid.New()
	shopID := uuid.New()
	token, _ := auth.GenerateToken(testSecret, userID, shopID, "Rafi", "SALESMAN")

	handler := middleware.Authenticate(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil {
			t.Fatal("expected claims in context")
		}
		if claims.UserID != userID {
			t.Errorf("user ID: got %v, want %v", claims.UserID, userID)
		}
		if claims.Name != "Rafi" {
			t.Errorf("name: got %q, want Rafi", claims.Name)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"empty bearer", "Bearer "},
		{"invalid token", "Bearer invalid-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := middleware.Authenticate(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler should not be called")
			}))

			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestRequireShop_MatchingShop(t *testing.T) {
	shopID := uuid.New()
	token, _ := auth.GenerateToken(testSecret, uuid.New(), shopID, "Rafi", "SALESMAN")

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := middleware.Authenticate(testSecret)(middleware.RequireShop(inner))

	req := httptest.NewRequest("GET", "/shops/"+shopID.String()+"/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.SetPathValue("sid", shopID.String())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestRequireShop_OtherShopDenied(t *testing.T) {
	for _, role := range []string{"SALESMAN", "OWNER"} {
		shopID := uuid.New()
		otherShopID := uuid.New()
		token, _ := auth.GenerateToken(testSecret, uuid.New(), shopID, "Rafi", role)

		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		})

		handler := middleware.Authenticate(testSecret)(middleware.RequireShop(inner))

		req := httptest.NewRequest("GET", "/shops/"+otherShopID.String()+"/test", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		req.SetPathValue("sid", otherShopID.String())
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusForbidden {
			t.Errorf("%s: status: got %d, want %d", role, rr.Code, http.StatusForbidden)
		}
	}
}

func TestRequireShop_InvalidShopID(t *testing.T) {
	token, _ := auth.GenerateToken(testSecret, uuid.New(), uuid.New(), "Rafi", "SALESMAN")
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})
	handler := middleware.Authenticate(testSecret)(middleware.RequireShop(inner))

	req := httptest.NewRequest("GET", "/shops/abc/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.SetPathValue("sid", "abc")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}
