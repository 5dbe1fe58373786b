package ports

import (
	"context"

	"personaforge/domain/core"
	"personaforge/domain/persona"
)

// PersonaRepositoryPort persists persona sets across generation runs.
type PersonaRepositoryPort interface {
	// SaveSet inserts or updates a set together with its personas.
	SaveSet(ctx context.Context, set *persona.Set) error

	// GetSet loads one set with its personas.
	GetSet(ctx context.Context, id core.PersonaSetID) (*persona.Set, error)

	// ListSets returns all stored sets, newest first, without persona bodies.
	ListSets(ctx context.Context) ([]*persona.Set, error)

	// DeleteSet removes a set and its personas.
	DeleteSet(ctx context.Context, id core.PersonaSetID) error
}
