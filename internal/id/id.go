// Package id generates prefixed identifiers for watch sessions and stream clients.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes used across the application.
const (
	PrefixSession = "wch"
	PrefixClient  = "sse"
)

// Generate creates a prefixed unique ID using NanoID
// Format: prefix-nanoid (e.g., "wch-V1StGXR8_Z5jdHi6B-myT").
//
// Returns an error if the system has insufficient entropy for secure random generation.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}
