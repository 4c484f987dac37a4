// Package idgen provides short client-side ids backed by nanoid, and
// idempotency keys backed by uuid.
package idgen

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultPrefix is prepended to streaming placeholder ids.
var DefaultPrefix = "temp-"

// LocalPrefix is prepended to optimistic echo ids.
var LocalPrefix = "local-"

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 10

// Generate returns a new unique ID using the default prefix.
func Generate() (string, error) {
	return GenerateWithPrefix(DefaultPrefix)
}

// GenerateWithPrefix returns a new unique ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// TempID returns a placeholder id for an in-progress streamed message. It
// panics if the system entropy source fails.
func TempID() string {
	id, err := Generate()
	if err != nil {
		panic(err)
	}
	return id
}

// LocalID returns an id for a message echoed locally before the backend
// has persisted it.
func LocalID() string {
	id, err := GenerateWithPrefix(LocalPrefix)
	if err != nil {
		panic(err)
	}
	return id
}

// IsTemp reports whether id was minted on the client.
func IsTemp(id string) bool {
	return strings.HasPrefix(id, DefaultPrefix) || strings.HasPrefix(id, LocalPrefix)
}

// RequestID returns a fresh idempotency key for a steering submission.
func RequestID() string {
	return uuid.NewString()
}
