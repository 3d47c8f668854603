package service

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher is the default salted password hasher
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a bcrypt hasher, falling back to the library default for out-of-range costs
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Digest hashes a password
func (h *BcryptHasher) Digest(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether password matches digest
func (h *BcryptHasher) Verify(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

// SHA256Hasher produces unsalted hex SHA-256 digests.
// Only for deployments that imported accounts hashed with the legacy scheme.
type SHA256Hasher struct{}

// Digest hashes a password
func (SHA256Hasher) Digest(password string) (string, error) {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:]), nil
}

// Verify reports whether password matches digest
func (h SHA256Hasher) Verify(password, digest string) bool {
	expected, _ := h.Digest(password)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(digest)) == 1
}

// NewCredentialHasher returns the hasher selected by name
func NewCredentialHasher(name string, cost int) (CredentialHasher, error) {
	switch name {
	case "", "bcrypt":
		return NewBcryptHasher(cost), nil
	case "sha256":
		return SHA256Hasher{}, nil
	default:
		return nil, fmt.Errorf("unknown password hasher %q", name)
	}
}
