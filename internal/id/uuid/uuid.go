// Package uuid generates job IDs.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates UUIDv7 strings, which sort by creation time.
type Generator struct{}

// NewUUIDGenerator creates a new Generator.
func NewUUIDGenerator() *Generator {
	return &Generator{}
}

// NewID returns a UUIDv7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}
