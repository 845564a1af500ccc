// Package signer produces and checks HMAC-SHA256 signatures over byte strings.
//
// Signatures are lower-case hex. Verification recomputes the MAC and compares
// in constant time; a malformed signature is reported as a mismatch.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	dErrors "mcpauth/pkg/domain-errors"
)

// ErrEmptySecret is returned when a signer is built without a key.
var ErrEmptySecret = dErrors.New(dErrors.CodeConfiguration, "signing secret must not be empty")

// Signer holds an immutable signing key. It is safe for concurrent use.
type Signer struct {
	key []byte
}

// New builds a Signer. An empty secret is a configuration error.
func New(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Signer{key: []byte(secret)}, nil
}

// Sign returns hex(HMAC-SHA256(key, data)).
func (s *Signer) Sign(data []byte) string {
	return hex.EncodeToString(s.mac(data))
}

// Verify reports whether signature is the MAC of data under the key.
func (s *Signer) Verify(signature string, data []byte) bool {
	got, err := hex.DecodeString(signature)
	if err != nil || len(got) != sha256.Size {
		return false
	}
	return hmac.Equal(got, s.mac(data))
}

func (s *Signer) mac(data []byte) []byte {
	h := hmac.New(sha256.New, s.key)
	h.Write(data)
	return h.Sum(nil)
}

// Sign is the one-shot form of (*Signer).Sign.
func Sign(secret string, data []byte) (string, error) {
	s, err := New(secret)
	if err != nil {
		return "", err
	}
	return s.Sign(data), nil
}

// Verify is the one-shot form of (*Signer).Verify. An empty secret never verifies.
func Verify(secret, signature string, data []byte) bool {
	s, err := New(secret)
	if err != nil {
		return false
	}
	return s.Verify(signature, data)
}
