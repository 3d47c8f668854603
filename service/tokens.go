package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const sessionTokenBytes = 16

// newSessionToken returns 16 random bytes as lowercase hex
func newSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// newTxCode returns the first group of a random UUID in upper case, e.g. "3F2A9C1B"
func newTxCode() string {
	code, _, _ := strings.Cut(uuid.NewString(), "-")
	return strings.ToUpper(code)
}
