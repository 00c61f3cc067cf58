// Package crypto hashes account passwords with Argon2id.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// Argon2id cost parameters, per the RFC 9106 first recommendation.
const (
	hashIterations uint32 = 1
	hashMemoryKiB  uint32 = 64 * 1024
	hashLanes      uint8  = 4
	hashLen        uint32 = 32
)

// RandBytes returns n bytes read from crypto/rand, suitable for salts.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// HashPassword derives the Argon2id digest of password under salt.
func HashPassword(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, hashIterations, hashMemoryKiB, hashLanes, hashLen)
}

// VerifyPassword reports whether password matches the stored digest.
// The comparison runs in constant time.
func VerifyPassword(password, salt, expected []byte) bool {
	got := HashPassword(password, salt)
	return subtle.ConstantTimeCompare(got, expected) == 1
}
