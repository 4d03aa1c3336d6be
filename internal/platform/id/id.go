// Package id provides helpers for the opaque identifiers used by the
// account store.
//
// Identifiers are fixed-length byte values rendered as lowercase hex at the
// service boundary: account identifiers are 16 bytes (UUIDv4 material) and
// token identifiers are 32 bytes. The store itself treats both as opaque;
// this package owns the boundary encoding rules.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

const (
	// UIDBytes is the byte length of an account identifier.
	UIDBytes = 16
	// TokenBytes is the byte length of a session, key-fetch, or workflow
	// token identifier.
	TokenBytes = 32
)

// NewUID generates a new account identifier from UUIDv4 bytes.
func NewUID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uid: %w", err)
	}
	return hex.EncodeToString(u[:]), nil
}

// NewTokenID generates a new token identifier.
func NewTokenID() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Normalize validates that s is the hex form of exactly byteLen bytes and
// returns it lowercased. Mixed-case input is accepted so identifiers compare
// equal regardless of how a caller rendered them.
func Normalize(s string, byteLen int) (string, error) {
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("decode identifier: %w", err)
	}
	if len(decoded) != byteLen {
		return "", fmt.Errorf("identifier must be %d bytes, got %d", byteLen, len(decoded))
	}
	return hex.EncodeToString(decoded), nil
}
