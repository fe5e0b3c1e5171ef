package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/CodAressss/orders-batch-service/internal/auth"
)

// fakeVerifier accepts exactly one token string.
type fakeVerifier struct {
	validToken string
	claims     *auth.Claims
}

func (f *fakeVerifier) Verify(token string) (*auth.Claims, error) {
	if token == f.validToken {
		return f.claims, nil
	}

	return nil, errors.New("invalid token")
}

func newAuthTestHandler(t *testing.T) (http.Handler, *fakeVerifier) {
	t.Helper()

	verifier := &fakeVerifier{
		validToken: "valid-token",
		claims: &auth.Claims{
			Role:             "ADMIN",
			RegisteredClaims: jwt.RegisteredClaims{Subject: "admin"},
		},
	}

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operator, ok := GetOperator(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		w.Write([]byte(operator.Username + ":" + operator.Role))
	})

	return BearerAuth(verifier, slog.Default())(inner), verifier
}

func TestBearerAuth_ValidToken(t *testing.T) {
	handler, _ := newAuthTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer valid-token")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	if body := rec.Body.String(); body != "admin:ADMIN" {
		t.Errorf("operator identity = %q, want admin:ADMIN", body)
	}
}

func TestBearerAuth_Rejections(t *testing.T) {
	handler, _ := newAuthTestHandler(t)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not a bearer token", header: "Basic dXNlcjpwYXNz"},
		{name: "empty bearer token", header: "Bearer "},
		{name: "invalid token", header: "Bearer forged-token"},
		{name: "newline injection", header: "Bearer valid-token\r\nX-Injected: 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
			if tt.header != "" {
				// Set the raw header map directly so values with line
				// breaks reach the extraction logic.
				req.Header["Authorization"] = []string{tt.header}
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}

			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("response is not valid JSON: %v", err)
			}

			if body["code"] != "UNAUTHORIZED" {
				t.Errorf("code = %v, want UNAUTHORIZED", body["code"])
			}

			if body["status"].(float64) != http.StatusUnauthorized {
				t.Errorf("status field = %v, want 401", body["status"])
			}

			if body["path"] != "/api/v1/orders" {
				t.Errorf("path = %v, want /api/v1/orders", body["path"])
			}
		})
	}
}

func TestBearerAuth_PublicEndpointBypass(t *testing.T) {
	RegisterPublicEndpoint("/test-public-bypass")

	verifier := &fakeVerifier{}
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetOperator(r.Context()); ok {
			t.Error("public endpoint request carries an operator identity")
		}

		w.WriteHeader(http.StatusOK)
	})

	handler := BearerAuth(verifier, slog.Default())(inner)

	req := httptest.NewRequest(http.MethodGet, "/test-public-bypass", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 without credentials", rec.Code)
	}
}

func TestGetOperator_Unauthenticated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	if _, ok := GetOperator(req.Context()); ok {
		t.Error("GetOperator() = true on a bare context")
	}
}
