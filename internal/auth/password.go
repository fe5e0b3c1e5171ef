package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost balances hashing latency against brute-force resistance.
// Cost 10 is roughly 60ms per comparison on current hardware.
const bcryptCost = 10

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// CheckPassword reports whether the plaintext password matches the bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
