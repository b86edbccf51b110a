package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const keyPrefix = "st-v1"

func isLowerHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// ParseAPIKey extracts secret_id, random_data and mac from API key format.
// Format: st-v1-<secret_id>-<random_data>-<mac>, 32, 64 and 64 hex chars.
// Returns ErrInvalidKeyFormat if format doesn't match.
func ParseAPIKey(key string) (secretID, randomData, mac string, err error) {
	parts := strings.Split(key, "-")
	if len(parts) != 5 {
		return "", "", "", ErrInvalidKeyFormat
	}
	if parts[0] != "st" || parts[1] != "v1" {
		return "", "", "", ErrInvalidKeyFormat
	}

	secretID, randomData, mac = parts[2], parts[3], parts[4]
	if len(secretID) != 32 || len(randomData) != 64 || len(mac) != 64 {
		return "", "", "", ErrInvalidKeyFormat
	}
	if !isLowerHex(secretID + randomData + mac) {
		return "", "", "", ErrInvalidKeyFormat
	}

	return secretID, randomData, mac, nil
}

// ComputeHMAC computes HMAC-SHA256 of the signed part of an API key.
func ComputeHMAC(secret []byte, signed string) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(signed))
	return h.Sum(nil)
}

// VerifyHMAC verifies HMAC signature using constant-time comparison.
func VerifyHMAC(expectedHash, computedHash []byte) bool {
	return hmac.Equal(expectedHash, computedHash)
}

func signedPart(secretID, randomData string) string {
	return fmt.Sprintf("%s-%s-%s", keyPrefix, secretID, randomData)
}

// FormatAPIKey constructs an API key from components, signing it with secret.
func FormatAPIKey(secret []byte, secretID, randomData string) string {
	signed := signedPart(secretID, randomData)
	return signed + "-" + hex.EncodeToString(ComputeHMAC(secret, signed))
}

// NewAPIKey mints a key with 256 bits of fresh random data.
func NewAPIKey(secret []byte, secretID string) (string, error) {
	if len(secretID) != 32 || !isLowerHex(secretID) {
		return "", ErrInvalidKeyFormat
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random data: %w", err)
	}
	return FormatAPIKey(secret, secretID, hex.EncodeToString(buf)), nil
}
