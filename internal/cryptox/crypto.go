// Package cryptox holds the primitives behind opaque secrets: random secret
// generation, the one-way digest used for at-rest lookup, and argon2id key
// derivation for passwords.
package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"golang.org/x/crypto/argon2"
)

// SecretSize is the number of random bytes behind every refresh and
// verification secret.
const SecretSize = 32

// KDFParams are the argon2id cost parameters for DeriveKey.
type KDFParams struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
}

// GenerateSecret returns SecretSize bytes from crypto/rand encoded as
// unpadded base64url, so the value is safe to embed in links.
func GenerateSecret() (string, error) {
	b, err := GenerateRandByteArray(SecretSize)
	if err != nil {
		return "", err
	}
	defer WipeByteArray(b)
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Digest is the one-way SHA-256 digest of secret rendered as lowercase hex.
// Only digests are persisted; plaintext secrets never reach storage.
func Digest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// DeriveKey stretches password with salt using argon2id at cost p.
func DeriveKey(password []byte, salt []byte, p KDFParams) []byte {
	return argon2.IDKey(password, salt, p.Time, p.Memory, p.Threads, p.KeyLen)
}

// GenerateRandByteArray returns size bytes read from crypto/rand.
func GenerateRandByteArray(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// MakeRandHexString returns size random bytes encoded as hex, so the
// resulting string is twice as long as size.
func MakeRandHexString(size int) (string, error) {
	b, err := GenerateRandByteArray(size)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// WipeByteArray overwrites b with zeros. A nil slice is ignored.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
