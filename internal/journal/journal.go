// Package journal persists a record of every bridged scheme request: what
// was asked, how it was answered, and how much data moved. The demo server
// exposes the journal read-side over its API.
package journal

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a request record is not found.
var ErrNotFound = errors.New("request record not found")

// Record is one journaled scheme request.
type Record struct {
	ID         string    `json:"id"`
	Instance   uint64    `json:"instance"`
	Scheme     string    `json:"scheme"`
	URL        string    `json:"url"`
	Method     string    `json:"method"`
	Outcome    string    `json:"outcome"`
	Status     int       `json:"status"`
	BytesOut   int64     `json:"bytes_out"`
	Chunks     int       `json:"chunks"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMS int64     `json:"duration_ms"`
}

// Stats holds aggregate journal statistics.
type Stats struct {
	Total          int            `json:"total"`
	CountByOutcome map[string]int `json:"count_by_outcome"`
	CountByScheme  map[string]int `json:"count_by_scheme"`
	AvgDurationMS  float64        `json:"avg_duration_ms"`
	TotalBytesOut  int64          `json:"total_bytes_out"`
}

// Store defines the persistence operations for journaled requests.
type Store interface {
	Insert(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, limit, offset int) ([]*Record, int, error)
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}
