// Package cryptox implements one-way salted password hashing for the
// credential store. Two algorithms are available: bcrypt (default) and
// argon2id.
package cryptox

import (
	"fmt"
	"strings"
)

const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// PasswordHasher hashes passwords and checks candidates against stored
// hashes. Two calls to Hash with the same input return different strings.
// Verify reports false for a malformed hash instead of failing, and accepts
// hashes of any supported algorithm so that changing the configured one
// keeps existing credentials usable.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hashed string) bool
}

// NewHasher returns the hasher named by algorithm. An empty name selects
// bcrypt; bcryptCost is ignored for other algorithms.
func NewHasher(algorithm string, bcryptCost int) (PasswordHasher, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", AlgorithmBcrypt:
		return NewBcryptHasher(bcryptCost)
	case AlgorithmArgon2id:
		return NewArgon2idHasher(), nil
	default:
		return nil, fmt.Errorf("unknown password hash algorithm %q", algorithm)
	}
}

// Verify checks plain against hashed, picking the algorithm from the hash
// prefix.
func Verify(plain, hashed string) bool {
	switch {
	case strings.HasPrefix(hashed, "$"+AlgorithmArgon2id+"$"):
		return verifyArgon2id(plain, hashed)
	case isBcryptHash(hashed):
		return verifyBcrypt(plain, hashed)
	default:
		return false
	}
}
