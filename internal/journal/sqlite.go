package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const createRequestsTable = `
CREATE TABLE IF NOT EXISTS requests (
    id          TEXT PRIMARY KEY,
    instance    INTEGER NOT NULL,
    scheme      TEXT NOT NULL,
    url         TEXT NOT NULL,
    method      TEXT NOT NULL,
    outcome     TEXT NOT NULL,
    status      INTEGER NOT NULL,
    bytes_out   INTEGER NOT NULL,
    chunks      INTEGER NOT NULL,
    created_at  DATETIME NOT NULL,
    finished_at DATETIME NOT NULL,
    duration_ms INTEGER NOT NULL
)`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createRequestsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create requests table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Insert stores one request record.
func (s *SQLiteStore) Insert(ctx context.Context, rec *Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO requests (
			id, instance, scheme, url, method, outcome, status,
			bytes_out, chunks, created_at, finished_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Instance, rec.Scheme, rec.URL, rec.Method, rec.Outcome, rec.Status,
		rec.BytesOut, rec.Chunks, rec.CreatedAt, rec.FinishedAt, rec.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

// Get retrieves a request record by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	rec := &Record{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, instance, scheme, url, method, outcome, status,
			bytes_out, chunks, created_at, finished_at, duration_ms
		FROM requests WHERE id = ?`, id,
	).Scan(
		&rec.ID, &rec.Instance, &rec.Scheme, &rec.URL, &rec.Method, &rec.Outcome, &rec.Status,
		&rec.BytesOut, &rec.Chunks, &rec.CreatedAt, &rec.FinishedAt, &rec.DurationMS,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return rec, nil
}

// List returns a paginated list of records ordered by created_at DESC, along
// with the total count.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Record, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM requests`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, instance, scheme, url, method, outcome, status,
			bytes_out, chunks, created_at, finished_at, duration_ms
		FROM requests ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var recs []*Record
	for rows.Next() {
		rec := &Record{}
		if err := rows.Scan(
			&rec.ID, &rec.Instance, &rec.Scheme, &rec.URL, &rec.Method, &rec.Outcome, &rec.Status,
			&rec.BytesOut, &rec.Chunks, &rec.CreatedAt, &rec.FinishedAt, &rec.DurationMS,
		); err != nil {
			return nil, 0, fmt.Errorf("scan request: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate requests: %w", err)
	}

	return recs, total, nil
}

// Stats returns aggregate statistics over all journaled requests.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{
		CountByOutcome: make(map[string]int),
		CountByScheme:  make(map[string]int),
	}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(duration_ms), 0), COALESCE(SUM(bytes_out), 0) FROM requests`,
	).Scan(&st.Total, &st.AvgDurationMS, &st.TotalBytesOut)
	if err != nil {
		return nil, fmt.Errorf("aggregate requests: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM requests GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("count by outcome: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		st.CountByOutcome[outcome] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome counts: %w", err)
	}

	srows, err := s.db.QueryContext(ctx, `SELECT scheme, COUNT(*) FROM requests GROUP BY scheme`)
	if err != nil {
		return nil, fmt.Errorf("count by scheme: %w", err)
	}
	defer srows.Close()
	for srows.Next() {
		var name string
		var n int
		if err := srows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("scan scheme count: %w", err)
		}
		st.CountByScheme[name] = n
	}
	if err := srows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scheme counts: %w", err)
	}

	return st, nil
}
