// Package postgres persists persona sets in PostgreSQL with persona bodies
// stored as JSONB.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"personaforge/domain/core"
	"personaforge/domain/persona"
	apperrors "personaforge/internal/errors"
	"personaforge/ports"
)

// PersonaRepositoryImpl implements PersonaRepositoryPort for PostgreSQL
type PersonaRepositoryImpl struct {
	db *sqlx.DB
}

// NewPersonaRepository creates a new PostgreSQL persona repository
func NewPersonaRepository(db *sqlx.DB) ports.PersonaRepositoryPort {
	return &PersonaRepositoryImpl{db: db}
}

// Connect opens and verifies a database connection
func Connect(databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to connect to database")
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// Migrate creates the persona tables if they do not exist
func Migrate(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS persona_sets (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			final_rqe DOUBLE PRECISION NOT NULL DEFAULT 0,
			threshold_met BOOLEAN NOT NULL DEFAULT FALSE,
			iterations INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS personas (
			id UUID PRIMARY KEY,
			set_id UUID NOT NULL REFERENCES persona_sets(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			body JSONB NOT NULL,
			position INT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_personas_set_id ON personas(set_id)`)
	if err != nil {
		return apperrors.Wrap(err, "failed to create persona tables")
	}
	return nil
}

// SaveSet inserts or updates a set and replaces its personas in one
// transaction.
func (r *PersonaRepositoryImpl) SaveSet(ctx context.Context, set *persona.Set) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO persona_sets (id, name, description, status, final_rqe, threshold_met, iterations, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			final_rqe = EXCLUDED.final_rqe,
			threshold_met = EXCLUDED.threshold_met,
			iterations = EXCLUDED.iterations,
			updated_at = EXCLUDED.updated_at`,
		set.ID.String(), set.Name, set.Description, string(set.Status),
		set.FinalRQE, set.ThresholdMet, set.Iterations,
		set.CreatedAt.Time(), set.UpdatedAt.Time())
	if err != nil {
		return fmt.Errorf("save persona set: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM personas WHERE set_id = $1`, set.ID.String()); err != nil {
		return fmt.Errorf("clear personas: %w", err)
	}
	for i, p := range set.Personas {
		body, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal persona %s: %w", p.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO personas (id, set_id, name, body, position)
			VALUES ($1, $2, $3, $4, $5)`,
			p.ID.String(), set.ID.String(), p.Name, body, i)
		if err != nil {
			return fmt.Errorf("save persona %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// GetSet loads one set with its personas in stored order.
func (r *PersonaRepositoryImpl) GetSet(ctx context.Context, id core.PersonaSetID) (*persona.Set, error) {
	set, err := r.scanSet(r.db.QueryRowxContext(ctx, `
		SELECT id, name, description, status, final_rqe, threshold_met, iterations, created_at, updated_at
		FROM persona_sets WHERE id = $1`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrPersonaSetNotFound
		}
		return nil, err
	}

	rows, err := r.db.QueryxContext(ctx, `
		SELECT body FROM personas WHERE set_id = $1 ORDER BY position`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var p persona.Candidate
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("unmarshal persona: %w", err)
		}
		set.Personas = append(set.Personas, p)
	}
	return set, rows.Err()
}

// ListSets returns all sets, newest first, without persona bodies.
func (r *PersonaRepositoryImpl) ListSets(ctx context.Context) ([]*persona.Set, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT id, name, description, status, final_rqe, threshold_met, iterations, created_at, updated_at
		FROM persona_sets ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []*persona.Set
	for rows.Next() {
		set, err := r.scanSet(rows)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return sets, rows.Err()
}

// DeleteSet removes a set; personas cascade.
func (r *PersonaRepositoryImpl) DeleteSet(ctx context.Context, id core.PersonaSetID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM persona_sets WHERE id = $1`, id.String())
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.ErrPersonaSetNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PersonaRepositoryImpl) scanSet(row rowScanner) (*persona.Set, error) {
	var (
		set                  persona.Set
		id, status           string
		createdAt, updatedAt time.Time
	)
	err := row.Scan(&id, &set.Name, &set.Description, &status,
		&set.FinalRQE, &set.ThresholdMet, &set.Iterations, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	set.ID = core.PersonaSetID(id)
	set.Status = persona.SetStatus(status)
	set.CreatedAt = core.NewTimestamp(createdAt)
	set.UpdatedAt = core.NewTimestamp(updatedAt)
	return &set, nil
}
