package journal

import (
	"context"
	"log/slog"

	"github.com/seantiz/intercept/backend/httpbridge"
)

// Compile-time interface satisfaction check.
var _ httpbridge.Observer = (*Recorder)(nil)

// Recorder journals bridged requests as they complete. A persistence failure
// is logged, never propagated into the delivery path.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

// NewRecorder creates a recorder writing to the given store.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger}
}

// RequestServed implements httpbridge.Observer.
func (r *Recorder) RequestServed(info httpbridge.RequestInfo) {
	rec := &Record{
		ID:         info.ID,
		Instance:   uint64(info.Instance),
		Scheme:     info.Scheme,
		URL:        info.URL,
		Method:     info.Method,
		Outcome:    info.Outcome,
		Status:     info.Status,
		BytesOut:   info.BytesOut,
		Chunks:     info.Chunks,
		CreatedAt:  info.StartedAt,
		FinishedAt: info.FinishedAt,
		DurationMS: info.FinishedAt.Sub(info.StartedAt).Milliseconds(),
	}

	if err := r.store.Insert(context.Background(), rec); err != nil {
		r.logger.Error("journal request",
			"request_id", info.ID,
			"scheme", info.Scheme,
			"error", err,
		)
	}
}
