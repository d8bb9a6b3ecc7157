package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Key format: sb-v1-<secret_id>-<random>-<mac>
//   secret_id  32 hex chars, selects the HMAC secret
//   random     64 hex chars (256 bits)
//   mac        64 hex chars, HMAC-SHA256(secret, "<secret_id>-<random>")
const (
	keyPrefix     = "sb"
	keyVersion    = "v1"
	secretIDLen   = 32
	randomDataLen = 64
	macLen        = 64
)

// ParseAPIKey splits an API key into its secret ID, random data, and MAC.
// Returns ErrInvalidKeyFormat if format doesn't match.
func ParseAPIKey(key string) (secretID, randomData, mac string, err error) {
	parts := strings.Split(key, "-")
	if len(parts) != 5 || parts[0] != keyPrefix || parts[1] != keyVersion {
		return "", "", "", ErrInvalidKeyFormat
	}
	secretID, randomData, mac = parts[2], parts[3], parts[4]

	if len(secretID) != secretIDLen || len(randomData) != randomDataLen || len(mac) != macLen {
		return "", "", "", ErrInvalidKeyFormat
	}
	if !isHex(secretID + randomData + mac) {
		return "", "", "", ErrInvalidKeyFormat
	}
	return secretID, randomData, mac, nil
}

func isHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// ComputeHMAC computes the HMAC-SHA256 signature of the signed key body.
func ComputeHMAC(secret []byte, secretID, randomData string) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(secretID + "-" + randomData))
	return h.Sum(nil)
}

// VerifyHMAC compares signatures in constant time.
func VerifyHMAC(expectedHash, computedHash []byte) bool {
	return hmac.Equal(expectedHash, computedHash)
}

// FormatAPIKey constructs an API key from its components.
func FormatAPIKey(secretID, randomData string, mac []byte) string {
	return fmt.Sprintf("%s-%s-%s-%s-%s", keyPrefix, keyVersion, secretID, randomData, hex.EncodeToString(mac))
}

// GenerateAPIKey mints a new key signed with secret.
func GenerateAPIKey(secretID string, secret []byte) (string, error) {
	if len(secretID) != secretIDLen || !isHex(secretID) {
		return "", fmt.Errorf("%w: secret_id must be %d hex chars", ErrInvalidKeyFormat, secretIDLen)
	}
	buf := make([]byte, randomDataLen/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random data: %w", err)
	}
	randomData := hex.EncodeToString(buf)
	return FormatAPIKey(secretID, randomData, ComputeHMAC(secret, secretID, randomData)), nil
}
