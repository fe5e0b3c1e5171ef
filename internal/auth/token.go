// Package auth provides operator authentication: bcrypt password
// verification for sign-in and HMAC-signed JWTs for bearer authorization.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the token lifetime when none is configured.
const DefaultTokenTTL = time.Hour

// Sentinel errors for token issuance and verification.
var (
	// ErrSecretTooShort is returned when the signing secret is shorter than
	// 32 bytes. Short HMAC secrets are brute-forceable offline.
	ErrSecretTooShort = errors.New("signing secret must be at least 32 bytes")

	// ErrInvalidToken is returned for tokens that fail signature, expiry or
	// claims validation.
	ErrInvalidToken = errors.New("invalid token")
)

const minSecretLength = 32

type (
	// TokenIssuer signs and verifies the service's bearer tokens.
	// Tokens are HS256; the secret is shared between issuance and verification
	// because both happen in this single service.
	TokenIssuer struct {
		secret []byte
		issuer string
		ttl    time.Duration
		now    func() time.Time
	}

	// Claims are the registered claims plus the operator role.
	Claims struct {
		Role string `json:"role"`
		jwt.RegisteredClaims
	}
)

// NewTokenIssuer creates a token issuer with the given secret and lifetime.
// A non-positive ttl falls back to DefaultTokenTTL.
func NewTokenIssuer(secret []byte, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) < minSecretLength {
		return nil, ErrSecretTooShort
	}

	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	return &TokenIssuer{
		secret: secret,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue signs a token for the given subject and role.
func (i *TokenIssuer) Issue(subject, role string) (string, error) {
	now := i.now()

	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Verify parses and validates a bearer token, returning its claims.
// Only HS256 is accepted; a token signed with any other method is rejected
// even if its signature would verify.
func (i *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(_ *jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(func() time.Time { return i.now() }),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// TTL returns the configured token lifetime.
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}
