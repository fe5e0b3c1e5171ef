package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestIssuer(t *testing.T) *TokenIssuer {
	t.Helper()

	issuer, err := NewTokenIssuer(testSecret, "orders-batch-service", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer() failed: %v", err)
	}

	return issuer
}

func TestNewTokenIssuer_RejectsShortSecret(t *testing.T) {
	if _, err := NewTokenIssuer([]byte("short"), "orders", time.Hour); !errors.Is(err, ErrSecretTooShort) {
		t.Errorf("NewTokenIssuer() = %v, want ErrSecretTooShort", err)
	}
}

func TestTokenIssuer_IssueAndVerify(t *testing.T) {
	issuer := newTestIssuer(t)

	token, err := issuer.Issue("admin", "ADMIN")
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}

	if claims.Subject != "admin" {
		t.Errorf("subject = %s, want admin", claims.Subject)
	}

	if claims.Role != "ADMIN" {
		t.Errorf("role = %s, want ADMIN", claims.Role)
	}
}

func TestTokenIssuer_RejectsTamperedToken(t *testing.T) {
	issuer := newTestIssuer(t)

	token, err := issuer.Issue("admin", "ADMIN")
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}

	tampered := token[:len(token)-4] + "xxxx"

	if _, err := issuer.Verify(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() of tampered token = %v, want ErrInvalidToken", err)
	}
}

func TestTokenIssuer_RejectsExpiredToken(t *testing.T) {
	issuer := newTestIssuer(t)

	// Issue in the past, verify at present.
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := issuer.Issue("admin", "ADMIN")
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}

	issuer.now = time.Now

	if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() of expired token = %v, want ErrInvalidToken", err)
	}
}

func TestTokenIssuer_RejectsWrongIssuer(t *testing.T) {
	other, err := NewTokenIssuer(testSecret, "some-other-service", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer() failed: %v", err)
	}

	token, err := other.Issue("admin", "ADMIN")
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}

	if _, err := newTestIssuer(t).Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() of foreign-issuer token = %v, want ErrInvalidToken", err)
	}
}

// A token signed with "none" must never verify, regardless of its payload.
func TestTokenIssuer_RejectsUnsignedAlgorithm(t *testing.T) {
	issuer := newTestIssuer(t)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Role: "ADMIN",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			Issuer:    "orders-batch-service",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned token: %v", err)
	}

	if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() of alg=none token = %v, want ErrInvalidToken", err)
	}
}

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret-password")
	if err != nil {
		t.Fatalf("HashPassword() failed: %v", err)
	}

	if !strings.HasPrefix(hash, "$2a$") {
		t.Errorf("hash %q is not a bcrypt hash", hash)
	}

	if !CheckPassword(hash, "s3cret-password") {
		t.Error("CheckPassword() rejected the correct password")
	}

	if CheckPassword(hash, "wrong-password") {
		t.Error("CheckPassword() accepted a wrong password")
	}
}

func TestCheckPassword_InvalidHash(t *testing.T) {
	if CheckPassword("not-a-bcrypt-hash", "anything") {
		t.Error("CheckPassword() accepted an invalid hash")
	}
}
