// Package pipe implements the scheme backend for toolkits that consume the
// stream body from a file descriptor: BeginStream opens an OS pipe, the
// toolkit reads the read end, and chunk writes land on the write end. The
// kernel pipe buffer gives this transport natural backpressure — a write
// blocks once the consumer stops reading.
package pipe

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/seantiz/intercept/scheme"
	"github.com/seantiz/intercept/stash"
)

// Hooks are the toolkit-facing completion callbacks. OnStream hands over the
// read end of the body pipe, which the toolkit must close when done.
type Hooks struct {
	OnFull   func(id string, resp scheme.Response)
	OnError  func(id string, err scheme.Error)
	OnStream func(id string, resp scheme.StreamResponse, body *os.File)
}

// handle is the per-request native object kept behind the table. The mutex
// serializes marshaled calls per request; the write end is atomic so the
// cancellation path can close it without taking the mutex a blocked write
// may be holding.
type handle struct {
	mu sync.Mutex
	w  atomic.Pointer[os.File]
}

// Backend adapts scheme deliveries onto OS pipes. Raw fd writes carry no
// thread affinity, so Marshal executes inline on the caller, serialized per
// request — this is what propagates pipe backpressure to the producer.
type Backend struct {
	table  *scheme.HandleTable
	hooks  Hooks
	logger *slog.Logger
}

var _ scheme.Backend = (*Backend)(nil)

// New creates a pipe backend.
func New(hooks Hooks, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		table:  scheme.NewHandleTable(),
		hooks:  hooks,
		logger: logger,
	}
}

// Admit registers a new in-flight request and returns its id.
func (b *Backend) Admit() string {
	id := scheme.NewID()
	b.table.Put(id, &handle{})
	return id
}

// Cancel signals consumer disconnect. The write end is closed so a blocked
// producer write fails (and is discarded) instead of hanging forever. The
// handle mutex is deliberately not taken here: a blocked write holds it.
func (b *Backend) Cancel(id string) {
	h, ok := b.table.Delete(id)
	if !ok {
		return
	}
	if w := h.(*handle).w.Load(); w != nil {
		w.Close()
	}
}

func (b *Backend) DeliverFull(id string, resp scheme.Response) {
	if _, ok := b.table.Delete(id); !ok {
		return
	}
	if b.hooks.OnFull != nil {
		b.hooks.OnFull(id, resp)
	}
}

func (b *Backend) DeliverError(id string, err scheme.Error) {
	if _, ok := b.table.Delete(id); !ok {
		return
	}
	if b.hooks.OnError != nil {
		b.hooks.OnError(id, err)
	}
}

func (b *Backend) BeginStream(id string, resp scheme.StreamResponse) error {
	h, ok := b.table.Get(id)
	if !ok {
		return nil
	}

	r, w, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("create pipe: %w", err)
	}

	hd := h.(*handle)
	hd.w.Store(w)

	// Cancellation may have raced the pipe creation; re-validate so the
	// write end does not outlive a request nobody will finish.
	if !b.table.Contains(id) {
		w.Close()
		r.Close()
		return nil
	}

	if b.hooks.OnStream != nil {
		b.hooks.OnStream(id, resp, r)
	} else {
		r.Close()
	}
	return nil
}

func (b *Backend) PushChunk(id string, data stash.Stash) {
	h, ok := b.table.Get(id)
	if !ok {
		return
	}
	w := h.(*handle).w.Load()
	if w == nil {
		return
	}

	// A write error means the read end is gone; by then no observer
	// remains to react, so the chunk is dropped.
	if _, err := w.Write(data.Data()); err != nil {
		b.logger.Debug("chunk write after disconnect dropped",
			"request_id", id,
			"error", err,
		)
	}
}

func (b *Backend) EndStream(id string) {
	h, ok := b.table.Delete(id)
	if !ok {
		return
	}
	if w := h.(*handle).w.Load(); w != nil {
		w.Close()
	}
}

func (b *Backend) IsConnected(id string) bool {
	return b.table.Contains(id)
}

// Marshal runs fn on the calling goroutine, serialized per request. Requests
// already cancelled drop fn.
func (b *Backend) Marshal(id string, fn func()) {
	h, ok := b.table.Get(id)
	if !ok {
		return
	}
	hd := h.(*handle)
	hd.mu.Lock()
	defer hd.mu.Unlock()
	fn()
}
