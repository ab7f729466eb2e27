// Package sqlite stores sessions in a local SQLite file (modernc.org/sqlite,
// no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kozaktomas/face-sculptor/internal/config"
	"github.com/kozaktomas/face-sculptor/internal/database"
	"github.com/kozaktomas/face-sculptor/internal/session"
	_ "modernc.org/sqlite"
)

func init() {
	database.Register(func(_ context.Context, cfg *config.DatabaseConfig) (session.Repository, error) {
		return NewSessionRepository(PathFromURL(cfg.URL))
	}, "sqlite", "file")
}

// PathFromURL extracts the file path from "sqlite://path", "sqlite:path"
// or "file:path" URLs. Query parameters are dropped.
func PathFromURL(url string) string {
	_, rest, _ := strings.Cut(url, ":")
	rest = strings.TrimPrefix(rest, "//")
	rest, _, _ = strings.Cut(rest, "?")
	return rest
}

// SessionRepository implements session.Repository on SQLite.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository opens or creates the database at path.
func NewSessionRepository(path string) (*SessionRepository, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	r := &SessionRepository{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *SessionRepository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id                   TEXT PRIMARY KEY,
		owner_ref            TEXT NOT NULL,
		name                 TEXT NOT NULL DEFAULT '',
		created_at           INTEGER NOT NULL,
		category             TEXT NOT NULL,
		parameter_values     TEXT NOT NULL,
		selections           TEXT NOT NULL DEFAULT 'null',
		reference_image      BLOB,
		reference_image_type TEXT NOT NULL DEFAULT '',
		parent_id            TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_owner_created ON sessions(owner_ref, created_at DESC, id DESC);
	`
	_, err := r.db.Exec(schema)
	return err
}

// Insert stores a new session; a taken id yields session.ErrDuplicateID.
func (r *SessionRepository) Insert(ctx context.Context, s *session.Session) error {
	values, err := json.Marshal(s.Values)
	if err != nil {
		return fmt.Errorf("encode values: %w", err)
	}
	selections, err := json.Marshal(s.Selections)
	if err != nil {
		return fmt.Errorf("encode selections: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, owner_ref, name, created_at, category, parameter_values,
			selections, reference_image, reference_image_type, parent_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		s.ID, s.OwnerRef, s.Name, s.CreatedAt.UTC().UnixMicro(), s.Category, string(values),
		string(selections), s.ReferenceImage, s.ReferenceImageType, s.ParentID,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return session.ErrDuplicateID
	}
	return nil
}

// Get retrieves a session by id.
func (r *SessionRepository) Get(ctx context.Context, id string) (*session.Session, error) {
	var (
		s                  session.Session
		createdAt          int64
		values, selections string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, owner_ref, name, created_at, category, parameter_values,
			selections, reference_image, reference_image_type, parent_id
		FROM sessions WHERE id = ?`, id).Scan(
		&s.ID, &s.OwnerRef, &s.Name, &createdAt, &s.Category, &values,
		&selections, &s.ReferenceImage, &s.ReferenceImageType, &s.ParentID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	s.CreatedAt = time.UnixMicro(createdAt).UTC()
	if err := json.Unmarshal([]byte(values), &s.Values); err != nil {
		return nil, fmt.Errorf("decode values of %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(selections), &s.Selections); err != nil {
		return nil, fmt.Errorf("decode selections of %s: %w", id, err)
	}
	return &s, nil
}

// ListByOwner returns the owner's sessions, newest first.
func (r *SessionRepository) ListByOwner(ctx context.Context, owner string) ([]session.Metadata, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_ref, name, created_at, category, parent_id, COALESCE(length(reference_image), 0) > 0
		FROM sessions
		WHERE owner_ref = ?
		ORDER BY created_at DESC, id DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := []session.Metadata{}
	for rows.Next() {
		var (
			m         session.Metadata
			createdAt int64
		)
		if err := rows.Scan(&m.ID, &m.OwnerRef, &m.Name, &createdAt, &m.Category, &m.ParentID, &m.HasReferenceImage); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		m.CreatedAt = time.UnixMicro(createdAt).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

// Delete removes a session if owner matches.
func (r *SessionRepository) Delete(ctx context.Context, id, owner string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var storedOwner string
	err = tx.QueryRowContext(ctx, `SELECT owner_ref FROM sessions WHERE id = ?`, id).Scan(&storedOwner)
	if errors.Is(err, sql.ErrNoRows) {
		return session.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get session owner: %w", err)
	}
	if storedOwner != owner {
		return session.ErrNotOwner
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return tx.Commit()
}

// Close closes the database.
func (r *SessionRepository) Close() error {
	return r.db.Close()
}
