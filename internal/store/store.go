// Package store keeps a library of named patterns in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/codedswitch/studio/internal/pattern"
)

// ErrNotFound is returned when no pattern matches an id or name.
var ErrNotFound = errors.New("pattern not found")

const schema = `
CREATE TABLE IF NOT EXISTS patterns (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	bpm REAL NOT NULL,
	length INTEGER NOT NULL,
	tracks INTEGER NOT NULL,
	data TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_patterns_updated ON patterns(updated_at);
`

// Entry describes a stored pattern without decoding it.
type Entry struct {
	ID      string
	Name    string
	BPM     float64
	Length  int
	Tracks  int
	Created time.Time
	Updated time.Time
}

// Store wraps the SQL database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the library at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create library directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores p under name, replacing any pattern of the same name, and
// returns its id.
func (s *Store) Save(ctx context.Context, name string, p pattern.Pattern) (string, error) {
	if name == "" {
		return "", errors.New("pattern name is empty")
	}
	data, err := pattern.Encode(p)
	if err != nil {
		return "", fmt.Errorf("encode pattern: %w", err)
	}
	now := time.Now().Unix()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO patterns (id, name, bpm, length, tracks, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			bpm = excluded.bpm,
			length = excluded.length,
			tracks = excluded.tracks,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		uuid.NewString(), name, p.BPM, p.Length, len(p.Tracks), string(data), now, now)
	if err != nil {
		return "", fmt.Errorf("save %q: %w", name, err)
	}

	var id string
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM patterns WHERE name = ?`, name).Scan(&id); err != nil {
		return "", fmt.Errorf("save %q: %w", name, err)
	}
	return id, nil
}

// Load returns the pattern whose id or name is ref.
func (s *Store) Load(ctx context.Context, ref string) (pattern.Pattern, Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, bpm, length, tracks, created_at, updated_at, data
		FROM patterns WHERE id = ? OR name = ?`, ref, ref)

	var (
		e    Entry
		data string
	)
	if err := scanEntry(row, &e, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pattern.Pattern{}, Entry{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return pattern.Pattern{}, Entry{}, err
	}
	p, err := pattern.DecodeJSON([]byte(data))
	if err != nil {
		return pattern.Pattern{}, Entry{}, fmt.Errorf("decode %q: %w", e.Name, err)
	}
	return p, e, nil
}

// List returns every entry, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, bpm, length, tracks, created_at, updated_at
		FROM patterns ORDER BY updated_at DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := scanEntry(rows, &e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes the pattern whose id or name is ref.
func (s *Store) Delete(ctx context.Context, ref string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM patterns WHERE id = ? OR name = ?`, ref, ref)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner, e *Entry, extra ...any) error {
	var created, updated int64
	dest := append([]any{&e.ID, &e.Name, &e.BPM, &e.Length, &e.Tracks, &created, &updated}, extra...)
	if err := sc.Scan(dest...); err != nil {
		return err
	}
	e.Created = time.Unix(created, 0)
	e.Updated = time.Unix(updated, 0)
	return nil
}
