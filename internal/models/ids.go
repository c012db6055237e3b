package models

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a time ordered identifier.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ParseID returns the canonical form of s. Two ids refer to the same entity
// exactly when their canonical forms are equal.
func ParseID(s string) (string, bool) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil || id == uuid.Nil {
		return "", false
	}
	return id.String(), true
}
