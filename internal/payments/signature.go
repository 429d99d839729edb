package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// signPayload computes the hex HMAC-SHA256 of the payload.
func signPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// verifySignature checks a hex HMAC-SHA256 signature in constant time.
// Providers differ on header framing; a "sha256=" prefix is tolerated.
func verifySignature(secret string, payload []byte, signature string) error {
	if secret == "" {
		return ErrProviderUnconfigured
	}
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	want := signPayload(secret, payload)
	if !hmac.Equal([]byte(want), []byte(strings.ToLower(signature))) {
		return ErrBadSignature
	}
	return nil
}
