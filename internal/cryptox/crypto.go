// Package cryptox generates the random opaque values used as single-use
// credentials and row identifiers, and the one-way digests stored in their
// place.
package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

const (
	// DefaultTokenBytes gives 256 bits of entropy for reset and verification tokens.
	DefaultTokenBytes = 32
	// DefaultIDBytes gives 128 bits for refresh token ids.
	DefaultIDBytes = 16
)

// randRead is a seam for tests.
var randRead = rand.Read

// MakeRandHexString reads size random bytes and returns them hex encoded.
// The result is twice as long as size.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := randRead(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// RandomToken returns a hex token with DefaultTokenBytes of entropy.
func RandomToken() (string, error) {
	return MakeRandHexString(DefaultTokenBytes)
}

// RandomID returns a shorter hex identifier with DefaultIDBytes of entropy.
func RandomID() (string, error) {
	return MakeRandHexString(DefaultIDBytes)
}

// SHA256Hex returns the hex encoded SHA-256 digest of token.
//
// Only apply it to values that are already high entropy. It has no work
// factor and must never be used for passwords.
func SHA256Hex(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
