package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-sculptor/internal/session"
	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL SQLSTATE for duplicate keys.
const uniqueViolation = "23505"

// SessionRepository provides PostgreSQL-backed session storage.
type SessionRepository struct {
	pool *Pool
}

// NewSessionRepository creates a new PostgreSQL session repository.
func NewSessionRepository(pool *Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Insert stores a new session. Existing rows are never updated.
func (r *SessionRepository) Insert(ctx context.Context, s *session.Session) error {
	// JSONB parameters go over the wire as text; lib/pq would send []byte as bytea.
	values, err := json.Marshal(s.Values)
	if err != nil {
		return fmt.Errorf("encode values: %w", err)
	}
	selections, err := json.Marshal(s.Selections)
	if err != nil {
		return fmt.Errorf("encode selections: %w", err)
	}

	query := `
		INSERT INTO sessions (id, owner_ref, name, created_at, category, parameter_values,
			selections, reference_image, reference_image_type, parent_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.pool.db.ExecContext(ctx, query,
		s.ID, s.OwnerRef, s.Name, s.CreatedAt, s.Category, string(values),
		string(selections), s.ReferenceImage, s.ReferenceImageType, s.ParentID,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return session.ErrDuplicateID
	}
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID.
func (r *SessionRepository) Get(ctx context.Context, id string) (*session.Session, error) {
	query := `
		SELECT id, owner_ref, name, created_at, category, parameter_values,
			selections, reference_image, reference_image_type, parent_id
		FROM sessions
		WHERE id = $1
	`

	var (
		s                  session.Session
		values, selections []byte
	)
	err := r.pool.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID,
		&s.OwnerRef,
		&s.Name,
		&s.CreatedAt,
		&s.Category,
		&values,
		&selections,
		&s.ReferenceImage,
		&s.ReferenceImageType,
		&s.ParentID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if err := json.Unmarshal(values, &s.Values); err != nil {
		return nil, fmt.Errorf("decode values of %s: %w", id, err)
	}
	if err := json.Unmarshal(selections, &s.Selections); err != nil {
		return nil, fmt.Errorf("decode selections of %s: %w", id, err)
	}
	s.CreatedAt = s.CreatedAt.UTC()
	return &s, nil
}

// ListByOwner returns the owner's sessions, newest first.
func (r *SessionRepository) ListByOwner(ctx context.Context, owner string) ([]session.Metadata, error) {
	query := `
		SELECT id, owner_ref, name, created_at, category, parent_id, COALESCE(length(reference_image), 0) > 0
		FROM sessions
		WHERE owner_ref = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.pool.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := []session.Metadata{}
	for rows.Next() {
		var m session.Metadata
		if err := rows.Scan(&m.ID, &m.OwnerRef, &m.Name, &m.CreatedAt, &m.Category, &m.ParentID, &m.HasReferenceImage); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		m.CreatedAt = m.CreatedAt.UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// Delete removes a session if owner matches.
func (r *SessionRepository) Delete(ctx context.Context, id, owner string) error {
	result, err := r.pool.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = $1 AND owner_ref = $2", id, owner)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if count > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)", id).Scan(&exists); err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if exists {
		return session.ErrNotOwner
	}
	return session.ErrNotFound
}

// Close closes the underlying pool.
func (r *SessionRepository) Close() error {
	return r.pool.Close()
}
