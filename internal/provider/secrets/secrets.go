// Package secrets mints and checks client secrets. Only bcrypt hashes are
// ever persisted.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	dErrors "mcpauth/pkg/domain-errors"
)

// Generate creates a cryptographically secure random secret of 32 bytes,
// base64url encoded. Used for client secrets and the gen-secret command.
func Generate() (string, error) {
	return GenerateN(32)
}

// GenerateN is Generate with an explicit byte length.
func GenerateN(n int) (string, error) {
	if n < 16 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "secret must be at least 16 bytes")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash creates a bcrypt hash of the provided secret.
func Hash(secret string) (string, error) {
	if secret == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "secret cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "secret is too long")
		}
		return "", fmt.Errorf("could not hash secret: %w", err)
	}
	return string(hashed), nil
}

// Verify checks a presented client secret against its bcrypt hash.
func Verify(secret, hash string) error {
	if secret == "" || hash == "" {
		return dErrors.New(dErrors.CodeInvalidClient, "client authentication failed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeInvalidClient, "client authentication failed")
		}
		return fmt.Errorf("could not verify secret: %w", err)
	}
	return nil
}
