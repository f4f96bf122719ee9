package broker

import (
	"log/slog"

	"github.com/seantiz/intercept/backend/mainloop"
	"github.com/seantiz/intercept/scheme"
	"github.com/seantiz/intercept/stash"
)

// Backend adapts scheme deliveries onto per-request frame topics. Publishes
// are cheap and non-blocking, so one owning loop serializes the whole
// backend, mirroring a toolkit with a single completion thread.
type Backend struct {
	table  *scheme.HandleTable
	loop   *mainloop.Loop
	logger *slog.Logger
}

var _ scheme.Backend = (*Backend)(nil)

// New creates a broker backend and starts its owning loop.
func New(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		table:  scheme.NewHandleTable(),
		loop:   mainloop.New(),
		logger: logger,
	}
}

// Admit registers a new in-flight request and returns its id.
func (b *Backend) Admit() string {
	id := scheme.NewID()
	b.table.Put(id, newTopic())
	return id
}

// Subscribe attaches a consumer to the request's frame stream. Subscribing
// after the request finished yields an immediately-closed subscription.
func (b *Backend) Subscribe(id string) (*Subscription, func()) {
	h, ok := b.table.Get(id)
	if !ok {
		sub := newSubscription()
		sub.close()
		return sub, func() {}
	}
	return h.(*topic).subscribe()
}

// Cancel signals consumer disconnect: the topic closes and its table entry is
// removed, so in-flight publishes no-op.
func (b *Backend) Cancel(id string) {
	h, ok := b.table.Delete(id)
	if !ok {
		return
	}
	h.(*topic).close()
}

// Close stops the owning loop after draining pending deliveries.
func (b *Backend) Close() {
	b.loop.Stop()
}

func (b *Backend) DeliverFull(id string, resp scheme.Response) {
	t, ok := b.lookup(id)
	if !ok {
		return
	}
	t.publish(Frame{
		Kind:    KindHeaders,
		Status:  resp.Status,
		Mime:    resp.Mime,
		Headers: resp.Headers,
	})
	if resp.Data.Size() > 0 {
		t.publish(Frame{Kind: KindChunk, Data: resp.Data.Data()})
	}
	t.publish(Frame{Kind: KindEnd})
	t.close()
}

func (b *Backend) DeliverError(id string, err scheme.Error) {
	t, ok := b.lookup(id)
	if !ok {
		return
	}
	t.publish(Frame{Kind: KindError, Code: err.Code()})
	t.close()
}

func (b *Backend) BeginStream(id string, resp scheme.StreamResponse) error {
	if t, ok := b.lookup(id); ok {
		t.publish(Frame{
			Kind:    KindHeaders,
			Status:  resp.Status,
			Mime:    resp.Mime,
			Headers: resp.Headers,
		})
	}
	return nil
}

func (b *Backend) PushChunk(id string, data stash.Stash) {
	if t, ok := b.lookup(id); ok {
		t.publish(Frame{Kind: KindChunk, Data: data.Data()})
	}
}

func (b *Backend) EndStream(id string) {
	t, ok := b.lookup(id)
	if !ok {
		return
	}
	t.publish(Frame{Kind: KindEnd})
	t.close()
}

func (b *Backend) IsConnected(id string) bool {
	t, ok := b.lookup(id)
	return ok && !t.isClosed()
}

func (b *Backend) Marshal(id string, fn func()) {
	b.loop.Post(fn)
}

// lookup re-resolves the topic through the table; closed markers are retained
// so late subscribers see a closed subscription rather than nothing.
func (b *Backend) lookup(id string) (*topic, bool) {
	h, ok := b.table.Get(id)
	if !ok {
		return nil, false
	}
	return h.(*topic), true
}
