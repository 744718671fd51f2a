// Package cookiesig signs cookie values with an HMAC so that a client cannot
// forge a session identifier it was never issued.
package cookiesig

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

const separator = "."

func formMessage(value string) []byte {
	return []byte("session!" + value)
}

func mac(value string, key []byte) []byte {
	hash := hmac.New(sha256.New, key)
	hash.Write(formMessage(value))

	return hash.Sum(nil)
}

// Sign returns value.signature with the signature base64url encoded.
// The value itself must not contain the separator.
func Sign(value string, key []byte) string {
	return value + separator + base64.RawURLEncoding.EncodeToString(mac(value, key))
}

// Verify checks a signed value and returns the original value if the
// signature matches.
func Verify(signed string, key []byte) (string, bool) {
	idx := strings.LastIndex(signed, separator)
	if idx <= 0 || idx == len(signed)-1 {
		return "", false
	}

	value := signed[:idx]
	received, err := base64.RawURLEncoding.DecodeString(signed[idx+1:])
	if err != nil {
		return "", false
	}

	if !hmac.Equal(received, mac(value, key)) {
		return "", false
	}

	return value, true
}
