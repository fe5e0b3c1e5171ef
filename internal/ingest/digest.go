package ingest

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest computes the SHA-256 digest of the raw uploaded bytes as lowercase
// hex (64 characters). The digest is computed before parsing, so a
// byte-identical re-upload always produces the same idempotency pair and is
// detected as a replay.
func Digest(raw []byte) string {
	sum := sha256.Sum256(raw)

	return hex.EncodeToString(sum[:])
}
