// Package cryptox implements the password credential primitives: per-user
// salt generation, versioned salted hashing, and constant-time verification.
package cryptox

import (
	"crypto/subtle"

	"github.com/mvrcrypto/customapi/internal/common"
	"golang.org/x/crypto/argon2"
)

// HashVersion tags every stored hash with the derivation parameters it was
// produced with, so parameters can be upgraded later without guessing.
// Version 1 is Argon2id, t=1, m=64MiB, p=4, 32-byte output.
const HashVersion = 1

const (
	saltLength = 16
	hashLength = 32

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// GenerateSalt returns a fresh cryptographically random salt.
// Every user gets their own.
func GenerateSalt() []byte {
	return common.GenerateRandByteArray(saltLength)
}

// HashPassword derives the stored hash for password under salt.
// Deterministic: the same password and salt always produce the same hash.
func HashPassword(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, hashLength)
}

// VerifyPassword recomputes the hash for the candidate password and compares
// it to the stored hash in constant time.
func VerifyPassword(password, salt, storedHash []byte) bool {
	candidate := hashWithVersion(password, salt, HashVersion)
	return subtle.ConstantTimeCompare(candidate, storedHash) == 1
}

// VerifyPasswordVersion verifies against a hash produced by a specific
// recorded version. Unknown versions never verify.
func VerifyPasswordVersion(password, salt, storedHash []byte, version int) bool {
	candidate := hashWithVersion(password, salt, version)
	if candidate == nil {
		return false
	}
	return subtle.ConstantTimeCompare(candidate, storedHash) == 1
}

func hashWithVersion(password, salt []byte, version int) []byte {
	switch version {
	case 1:
		return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, hashLength)
	default:
		return nil
	}
}
