package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tokoledger/api/internal/auth"
	"github.com/tokoledger/api/internal/database"
	"github.com/tokoledger/api/internal/handler"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

// --- Mock store ---

type mockAuthStore struct {
	userByEmail map[string]database.User
	err         error
}

func newMockStore() *mockAuthStore {
	return &mockAuthStore{userByEmail: make(map[string]database.User)}
}

func (m *mockAuthStore) addUser(u database.User) {
	m.userByEmail[u.Email] = u
}

func (m *mockAuthStore) GetUserByEmail(_ context.Context, email string) (database.User, error) {
	if m.err != nil {
		return database.User{}, m.err
	}
	u, ok := m.userByEmail[email]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

// --- Helpers ---

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(h)
}

func makeTestUser(t *testing.T) database.User {
	t.Helper()
	return database.User{
		ID:             uuid.New(),
		ShopID:         uuid.New(),
		Email:          "salesman@test.com",
		HashedPassword: hashPassword(t, "correct-password"),
		FullName:       "Rafi Salesman",
		Role:           "SALESMAN",
		IsActive:       true,
	}
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func authRouter(store *mockAuthStore) *chi.Mux {
	h := handler.NewAuthHandler(store, testSecret, nil)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// --- Login tests ---

func TestLogin_ValidCredentials(t *testing.T) {
	store := newMockStore()
	user := makeTestUser(t)
	store.addUser(user)

	rr := postJSON(t, authRouter(store), "/auth/login", map[string]string{
		"email":    "salesman@test.com",
		"password": "correct-password",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["token_type"] != "Bearer" {
		t.Errorf("token_type: got %v, want Bearer", resp["token_type"])
	}
	if resp["expires_in"] != float64(auth.TokenTTL.Seconds()) {
		t.Errorf("expires_in: got %v, want %v", resp["expires_in"], auth.TokenTTL.Seconds())
	}
	accessToken, ok := resp["access_token"].(string)
	if !ok || accessToken == "" {
		t.Fatal("expected non-empty access_token string")
	}

	userResp, ok := resp["user"].(map[string]interface{})
	if !ok {
		t.Fatal("expected user object in response")
	}
	if userResp["shop_id"] != user.ShopID.String() {
		t.Errorf("user shop_id: got %v, want %s", userResp["shop_id"], user.ShopID)
	}
	if userResp["role"] != "SALESMAN" {
		t.Errorf("user role: got %v, want SALESMAN", userResp["role"])
	}

	claims, err := auth.ValidateToken(testSecret, accessToken)
	if err != nil {
		t.Fatalf("validate access token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("claims user ID: got %v, want %v", claims.UserID, user.ID)
	}
	if claims.ShopID != user.ShopID {
		t.Errorf("claims shop ID: got %v, want %v", claims.ShopID, user.ShopID)
	}
	if claims.Name != "Rafi Salesman" {
		t.Errorf("claims name: got %q, want Rafi Salesman", claims.Name)
	}
}

func TestLogin_NormalizesEmail(t *testing.T) {
	store := newMockStore()
	store.addUser(makeTestUser(t))

	rr := postJSON(t, authRouter(store), "/auth/login", map[string]string{
		"email":    "  Salesman@Test.com ",
		"password": "correct-password",
	})
	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestLogin_Rejects(t *testing.T) {
	store := newMockStore()
	store.addUser(makeTestUser(t))

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"wrong password", map[string]string{"email": "salesman@test.com", "password": "wrong-password"}, http.StatusUnauthorized},
		{"unknown user", map[string]string{"email": "nobody@test.com", "password": "password"}, http.StatusUnauthorized},
		{"missing password", map[string]string{"email": "salesman@test.com"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postJSON(t, authRouter(store), "/auth/login", tt.body)
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestLogin_InvalidBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", bytes.NewReader([]byte("{")))
	rr := httptest.NewRecorder()
	authRouter(newMockStore()).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestLogin_StoreError(t *testing.T) {
	store := newMockStore()
	store.err = errors.New("connection refused")

	rr := postJSON(t, authRouter(store), "/auth/login", map[string]string{
		"email":    "salesman@test.com",
		"password": "correct-password",
	})

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusInternalServerError)
	}
}
