// Package history persists audit runs in SQLite and renders trends.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite" // SQLite driver
)

// ErrNotFound is returned by Get when no run has the requested id.
var ErrNotFound = errors.New("audit run not found")

// DefaultLimit bounds Recent when the caller passes a non-positive limit.
const DefaultLimit = 20

// timeLayout has a fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Record is one stored audit run.
type Record struct {
	ID           string    `json:"id"`
	CipherID     string    `json:"cipher_id"`
	CipherName   string    `json:"cipher_name"`
	Avalanche    float64   `json:"avalanche"`
	LatencyMs    float64   `json:"latency_ms"`
	PeakMemoryKb float64   `json:"peak_memory_kb"`
	Attack       string    `json:"attack"`
	Rounds       int       `json:"rounds"`
	Document     string    `json:"document,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store handles persistent storage of audit runs.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_runs (
		id TEXT PRIMARY KEY,
		cipher_id TEXT NOT NULL,
		cipher_name TEXT NOT NULL,
		avalanche REAL NOT NULL,
		latency_ms REAL NOT NULL,
		peak_memory_kb REAL NOT NULL,
		attack TEXT NOT NULL,
		rounds INTEGER NOT NULL,
		document TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_runs_cipher ON audit_runs(cipher_name, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_runs_created ON audit_runs(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Save stores rec, assigning an id and timestamp when they are empty. The
// stored record is returned.
func (s *Store) Save(ctx context.Context, rec Record) (Record, error) {
	if strings.TrimSpace(rec.CipherName) == "" {
		return Record{}, errors.New("record cipher name is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.ID == "" {
		rec.ID = ulid.MustNew(ulid.Timestamp(rec.CreatedAt), ulid.DefaultEntropy()).String()
	}

	query := `
	INSERT INTO audit_runs (
		id, cipher_id, cipher_name, avalanche, latency_ms, peak_memory_kb,
		attack, rounds, document, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.CipherID,
		rec.CipherName,
		rec.Avalanche,
		rec.LatencyMs,
		rec.PeakMemoryKb,
		rec.Attack,
		rec.Rounds,
		rec.Document,
		rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert audit run: %w", err)
	}
	return rec, nil
}

// Get returns the run with the given id.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// Recent returns up to limit runs, newest first. An empty cipherName matches
// every cipher.
func (s *Store) Recent(ctx context.Context, cipherName string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	query := selectColumns
	args := []any{}
	if cipherName != "" {
		query += ` WHERE cipher_name = ?`
		args = append(args, cipherName)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit runs: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const selectColumns = `
	SELECT id, cipher_id, cipher_name, avalanche, latency_ms, peak_memory_kb,
		attack, rounds, document, created_at
	FROM audit_runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		rec      Record
		document sql.NullString
		created  string
	)
	err := sc.Scan(
		&rec.ID,
		&rec.CipherID,
		&rec.CipherName,
		&rec.Avalanche,
		&rec.LatencyMs,
		&rec.PeakMemoryKb,
		&rec.Attack,
		&rec.Rounds,
		&document,
		&created,
	)
	if err != nil {
		return Record{}, err
	}
	rec.Document = document.String
	if rec.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return Record{}, fmt.Errorf("parse created_at for %s: %w", rec.ID, err)
	}
	return rec, nil
}
