package utils

import (
	"strings"

	"github.com/google/uuid"
)

// StagedFileName creates a standardized, human-readable name for a
// spooled upload payload.
// Format: {entity}-{8charHexUUID}.tsv
//
// Example:
//   - Input: entity="styles"
//   - Output: "styles-a3f8e2b1.tsv"
//
// The entity prefix lets operators tell what a leftover staging file
// held without opening it; the UUID suffix keeps concurrent uploads of
// the same entity from colliding.
func StagedFileName(entity string) string {
	return entity + "-" + generateShortUUID() + ".tsv"
}

// generateShortUUID creates an 8-character hex string from a UUID.
// This provides sufficient uniqueness while keeping names compact.
func generateShortUUID() string {
	id := uuid.New()
	// Remove hyphens and take first 8 characters
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}
