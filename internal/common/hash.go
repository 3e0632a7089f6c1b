package common

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sha256Hex digests input as lowercase hex. Webhook replay keys and
// idempotency keys are derived this way so raw payloads never reach Redis.
func Sha256Hex(input string) string {
	digest := sha256.Sum256([]byte(input))
	return hex.EncodeToString(digest[:])
}
