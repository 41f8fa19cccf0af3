package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Header is the HTTP header carrying the hex encoded tag of a signed body.
const Header = "X-Signature"

// Size is the length in characters of a hex encoded tag.
const Size = sha256.Size * 2

// Sign computes the HMAC-SHA256 of payload keyed with secret and returns it
// as a lowercase hex string.
func Sign(secret string, payload []byte) string {
	return hex.EncodeToString(compute(secret, payload))
}

// Verify reports whether tag is the hex encoded HMAC-SHA256 of payload under
// secret. Malformed tags (odd length, non-hex characters, wrong size) fail
// closed.
func Verify(secret string, payload []byte, tag string) bool {
	if len(tag) != Size {
		return false
	}
	given, err := hex.DecodeString(tag)
	if err != nil {
		return false
	}
	return hmac.Equal(given, compute(secret, payload))
}

func compute(secret string, payload []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return mac.Sum(nil)
}
