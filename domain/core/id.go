package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	// Falls back to v4 if v7 is not available
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	RunID        ID
	PersonaID    ID
	PersonaSetID ID
	ChunkID      ID
)

// String conversions for domain IDs
func (id RunID) String() string        { return ID(id).String() }
func (id PersonaID) String() string    { return ID(id).String() }
func (id PersonaSetID) String() string { return ID(id).String() }
func (id ChunkID) String() string      { return ID(id).String() }

// ParseRunID parses a string into RunID
func ParseRunID(s string) (RunID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	return RunID(s), nil
}

// ParsePersonaSetID parses a string into PersonaSetID
func ParsePersonaSetID(s string) (PersonaSetID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("persona set ID cannot be empty")
	}
	return PersonaSetID(s), nil
}
