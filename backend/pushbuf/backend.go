package pushbuf

import (
	"log/slog"
	"sync/atomic"

	"github.com/seantiz/intercept/backend/mainloop"
	"github.com/seantiz/intercept/scheme"
	"github.com/seantiz/intercept/stash"
)

// Hooks are the toolkit-facing completion callbacks. Every hook fires on the
// backend's owning loop, matching a toolkit whose completion calls are bound
// to one designated thread.
type Hooks struct {
	// OnFull delivers a complete payload.
	OnFull func(id string, resp scheme.Response)

	// OnError delivers a terminal native error.
	OnError func(id string, err scheme.Error)

	// OnStream commits headers and hands over the device the toolkit reads
	// the body from.
	OnStream func(id string, resp scheme.StreamResponse, dev *Device)
}

// handle is the per-request native object kept behind the table. The device
// pointer is atomic because BeginStream writes it on the owning loop while
// Cancel reads it from the toolkit's goroutine.
type handle struct {
	dev atomic.Pointer[Device]
}

// Backend adapts scheme deliveries onto push-buffer devices.
type Backend struct {
	table  *scheme.HandleTable
	loop   *mainloop.Loop
	hooks  Hooks
	logger *slog.Logger
}

var _ scheme.Backend = (*Backend)(nil)

// New creates a backend and starts its owning loop.
func New(hooks Hooks, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		table:  scheme.NewHandleTable(),
		loop:   mainloop.New(),
		hooks:  hooks,
		logger: logger,
	}
}

// Admit registers a new in-flight request and returns its id. Call before
// dispatching to the registry.
func (b *Backend) Admit() string {
	id := scheme.NewID()
	b.table.Put(id, &handle{})
	return id
}

// Cancel signals consumer disconnect: the table entry is removed under lock
// so in-flight deliveries no-op, and any open device is closed so a blocked
// reader unblocks.
func (b *Backend) Cancel(id string) {
	h, ok := b.table.Delete(id)
	if !ok {
		return
	}
	if dev := h.(*handle).dev.Load(); dev != nil {
		dev.CloseWrite()
	}
	deliveries.WithLabelValues(outcomeCancelled).Inc()
}

// Close stops the owning loop after draining pending deliveries.
func (b *Backend) Close() {
	b.loop.Stop()
}

func (b *Backend) DeliverFull(id string, resp scheme.Response) {
	if _, ok := b.table.Delete(id); !ok {
		return
	}
	deliveries.WithLabelValues(outcomeResolved).Inc()
	if b.hooks.OnFull != nil {
		b.hooks.OnFull(id, resp)
	}
}

func (b *Backend) DeliverError(id string, err scheme.Error) {
	if _, ok := b.table.Delete(id); !ok {
		return
	}
	deliveries.WithLabelValues(outcomeRejected).Inc()
	if b.hooks.OnError != nil {
		b.hooks.OnError(id, err)
	}
}

func (b *Backend) BeginStream(id string, resp scheme.StreamResponse) error {
	h, ok := b.table.Get(id)
	if !ok {
		return nil
	}
	dev := NewDevice()
	h.(*handle).dev.Store(dev)

	// Cancellation may have raced the device creation; re-validate so the
	// toolkit is never handed an open device nobody will close.
	if !b.table.Contains(id) {
		dev.CloseWrite()
		return nil
	}

	if b.hooks.OnStream != nil {
		b.hooks.OnStream(id, resp, dev)
	}
	return nil
}

func (b *Backend) PushChunk(id string, data stash.Stash) {
	h, ok := b.table.Get(id)
	if !ok {
		return
	}
	if dev := h.(*handle).dev.Load(); dev != nil {
		dev.Push(data.Data())
		chunkBytes.Add(float64(data.Size()))
	}
}

func (b *Backend) EndStream(id string) {
	h, ok := b.table.Delete(id)
	if !ok {
		return
	}
	if dev := h.(*handle).dev.Load(); dev != nil {
		dev.CloseWrite()
	}
	deliveries.WithLabelValues(outcomeStreamed).Inc()
}

func (b *Backend) IsConnected(id string) bool {
	return b.table.Contains(id)
}

func (b *Backend) Marshal(id string, fn func()) {
	b.loop.Post(fn)
}
