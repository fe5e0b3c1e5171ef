package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/CodAressss/orders-batch-service/internal/auth"
	"github.com/CodAressss/orders-batch-service/internal/storage"
)

func newSignInServer(t *testing.T) (*http.ServeMux, *auth.TokenIssuer) {
	t.Helper()

	issuer, err := auth.NewTokenIssuer(
		[]byte("0123456789abcdef0123456789abcdef"), "orders-batch-service", time.Hour,
	)
	if err != nil {
		t.Fatalf("NewTokenIssuer() failed: %v", err)
	}

	hash, err := auth.HashPassword("correct-password")
	if err != nil {
		t.Fatalf("HashPassword() failed: %v", err)
	}

	users := &fakeUserReader{
		user: &storage.User{Username: "admin", PasswordHash: hash, Role: "ADMIN"},
	}

	_, mux := newTestServer(t, Dependencies{Users: users, Tokens: issuer})

	return mux, issuer
}

func signInRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/sign-in", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	return req
}

func TestHandleSignIn_Success(t *testing.T) {
	mux, issuer := newSignInServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, signInRequest(`{"username":"admin","password":"correct-password"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body.String())
	}

	var resp SignInResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.TokenType != "Bearer" {
		t.Errorf("tokenType = %s, want Bearer", resp.TokenType)
	}

	if resp.ExpiresIn != 3600 {
		t.Errorf("expiresIn = %d, want 3600", resp.ExpiresIn)
	}

	// The issued token verifies and carries the operator identity.
	claims, err := issuer.Verify(resp.Token)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}

	if claims.Subject != "admin" || claims.Role != "ADMIN" {
		t.Errorf("claims = %s/%s, want admin/ADMIN", claims.Subject, claims.Role)
	}
}

func TestHandleSignIn_InvalidCredentials(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"wrong password", `{"username":"admin","password":"wrong"}`},
		{"unknown user", `{"username":"ghost","password":"correct-password"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux, _ := newSignInServer(t)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, signInRequest(tt.body))

			// Wrong password and unknown user are indistinguishable.
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}

			if body := decodeError(t, rec); body["code"] != "UNAUTHORIZED" {
				t.Errorf("code = %v, want UNAUTHORIZED", body["code"])
			}
		})
	}
}

func TestHandleSignIn_BadRequests(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"malformed JSON", `{"username": `, "FORMAT_INVALID"},
		{"missing username", `{"password":"x"}`, "FIELD_REQUIRED"},
		{"missing password", `{"username":"admin"}`, "FIELD_REQUIRED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux, _ := newSignInServer(t)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, signInRequest(tt.body))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}

			if body := decodeError(t, rec); body["code"] != tt.wantCode {
				t.Errorf("code = %v, want %s", body["code"], tt.wantCode)
			}
		})
	}
}

func TestHandleSignIn_WrongContentType(t *testing.T) {
	mux, _ := newSignInServer(t)

	req := httptest.NewRequest(
		http.MethodPost, "/api/v1/auth/sign-in",
		strings.NewReader("username=admin&password=x"),
	)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
