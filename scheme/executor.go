package scheme

import (
	"log/slog"
	"sync/atomic"

	"github.com/seantiz/intercept/stash"
)

// Executor states. Exactly one terminal transition wins per request; the
// tagged state makes the legal transition set explicit instead of deriving it
// from independent flags.
const (
	stateIdle int32 = iota
	stateResolved
	stateRejected
	stateStreaming
	stateFinished
)

// Executor is the single-assignment handle a resolver uses to deliver its
// result. It is safe for concurrent use: every mutating transition claims the
// state with a compare-and-swap, so among racing callers (producer goroutines,
// toolkit cancellation) exactly one performs the corresponding native call
// and the rest become silent no-ops.
type Executor struct {
	id     string
	be     Backend
	state  atomic.Int32
	logger *slog.Logger
}

// NewExecutor binds a fresh executor to a backend and a per-request id whose
// native handle the backend has already admitted to its table.
func NewExecutor(id string, be Backend, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{id: id, be: be, logger: logger}
}

// ID returns the opaque per-request id.
func (e *Executor) ID() string {
	return e.id
}

// Resolve delivers a complete payload. Valid only before any other terminal
// transition and before Start; otherwise a no-op.
func (e *Executor) Resolve(resp Response) {
	if !e.state.CompareAndSwap(stateIdle, stateResolved) {
		return
	}
	if resp.Status == 0 {
		resp.Status = 200
	}
	e.be.Marshal(e.id, func() {
		e.be.DeliverFull(e.id, resp)
	})
}

// Reject delivers a terminal error. After Start has committed headers no
// error code can reach the consumer anymore; the stream is closed early
// instead, which the consumer observes as abrupt termination.
func (e *Executor) Reject(err Error) {
	if e.state.CompareAndSwap(stateIdle, stateRejected) {
		e.be.Marshal(e.id, func() {
			e.be.DeliverError(e.id, err)
		})
		return
	}
	if e.state.CompareAndSwap(stateStreaming, stateFinished) {
		e.logger.Debug("reject after stream start, closing early",
			"request_id", e.id,
			"error", err.String(),
		)
		e.be.Marshal(e.id, func() {
			e.be.EndStream(e.id)
		})
	}
}

// Start commits headers and opens the stream. Valid only from the idle
// state; a concurrent Start/Resolve/Reject race is settled by the state
// claim. When the backend cannot acquire its transport the request is failed
// terminally, so the consumer sees an error and Valid reports false.
func (e *Executor) Start(resp StreamResponse) {
	if !e.state.CompareAndSwap(stateIdle, stateStreaming) {
		return
	}
	if resp.Status == 0 {
		resp.Status = 200
	}
	e.be.Marshal(e.id, func() {
		if err := e.be.BeginStream(e.id, resp); err != nil {
			e.logger.Error("stream transport acquisition failed",
				"request_id", e.id,
				"error", err,
			)
			e.state.Store(stateRejected)
			e.be.DeliverError(e.id, ErrFailed)
		}
	})
}

// Write pushes one chunk. Effective only while streaming; chunk order is
// preserved end-to-end per request.
func (e *Executor) Write(data stash.Stash) {
	if e.state.Load() != stateStreaming {
		return
	}
	e.be.Marshal(e.id, func() {
		e.be.PushChunk(e.id, data)
	})
}

// Finish signals end-of-stream. Valid only while streaming.
func (e *Executor) Finish() {
	if !e.state.CompareAndSwap(stateStreaming, stateFinished) {
		return
	}
	e.be.Marshal(e.id, func() {
		e.be.EndStream(e.id)
	})
}

// Streaming reports whether the handle is still live: no terminal state
// reached and the native consumer still considered connected. The liveness
// half is inherently stale by up to one native round-trip, since cancellation
// lands on a different thread.
func (e *Executor) Streaming() bool {
	switch e.state.Load() {
	case stateResolved, stateRejected, stateFinished:
		return false
	}
	return e.be.IsConnected(e.id)
}

// Valid is an alias for Streaming, matching the producer-loop idiom of
// polling between writes.
func (e *Executor) Valid() bool {
	return e.Streaming()
}
