// Package httpbridge adapts scheme deliveries onto net/http: each bridged
// HTTP request is snapshotted, dispatched through the registry, and answered
// by executor transitions written back to the ResponseWriter. The serving
// goroutine is the owning thread for its request — ResponseWriters are not
// safe for concurrent use — so Marshal routes every native call onto it via
// a per-request queue.
package httpbridge

import (
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/seantiz/intercept/scheme"
	"github.com/seantiz/intercept/stash"
)

// RequestInfo summarizes one bridged request after its terminal transition,
// for observers such as the request journal.
type RequestInfo struct {
	ID         string
	Instance   scheme.InstanceID
	Scheme     string
	URL        string
	Method     string
	Outcome    string
	Status     int
	BytesOut   int64
	Chunks     int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Observer is notified once per dispatched request, after delivery completes
// or the client disconnects.
type Observer interface {
	RequestServed(info RequestInfo)
}

// handle is the per-request native object kept behind the table.
type handle struct {
	w http.ResponseWriter

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []func()
	terminal bool

	outcome  string
	status   int
	bytesOut int64
	chunks   int
}

func newHandle(w http.ResponseWriter) *handle {
	h := &handle{w: w}
	h.cond = sync.NewCond(&h.mu)
	return h
}

func (h *handle) post(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queue = append(h.queue, fn)
	h.cond.Signal()
}

// finish marks the request terminal; the serving loop exits once the queue
// drains. Safe from any goroutine.
func (h *handle) finish() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.terminal = true
	h.cond.Broadcast()
}

// serve pumps queued functions on the serving goroutine until terminal.
func (h *handle) serve() {
	for {
		h.mu.Lock()
		for len(h.queue) == 0 && !h.terminal {
			h.cond.Wait()
		}
		if len(h.queue) == 0 {
			h.mu.Unlock()
			return
		}
		fn := h.queue[0]
		h.queue = h.queue[1:]
		h.mu.Unlock()

		fn()
	}
}

func (h *handle) flush() {
	if f, ok := h.w.(http.Flusher); ok {
		f.Flush()
	}
}

// setOutcome records the terminal outcome once; later calls lose.
func (h *handle) setOutcome(outcome string, status int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.outcome == "" {
		h.outcome = outcome
		h.status = status
	}
}

func (h *handle) addChunk(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bytesOut += int64(n)
	h.chunks++
}

// Backend bridges intercepted schemes to HTTP consumers.
type Backend struct {
	table  *scheme.HandleTable
	reg    *scheme.Registry
	logger *slog.Logger
	obs    Observer
}

var _ scheme.Backend = (*Backend)(nil)

// New creates a bridge over the given registry.
func New(reg *scheme.Registry, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		table:  scheme.NewHandleTable(),
		reg:    reg,
		logger: logger,
	}
}

// SetObserver attaches a per-request observer. Call before serving.
func (b *Backend) SetObserver(obs Observer) {
	b.obs = obs
}

// ServeScheme answers one HTTP request as an interception of
// name://path for the given instance. path keeps its leading slash stripped;
// the query string is carried over verbatim. Returns once the response is
// fully delivered or the client disconnects.
func (b *Backend) ServeScheme(inst scheme.InstanceID, name, path string, w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		b.logger.Error("read bridged request body", "error", err)
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}

	url := name + "://" + path
	if r.URL.RawQuery != "" {
		url += "?" + r.URL.RawQuery
	}

	id := scheme.NewID()
	h := newHandle(w)
	b.table.Put(id, h)
	started := time.Now().UTC()

	req := scheme.NewRequest(url, r.Method, headers, stash.Own(body))
	if !b.reg.Dispatch(inst, name, req, b, id) {
		// No resolver: decline, matching a toolkit's own unsupported-scheme
		// fallback.
		b.table.Delete(id)
		http.NotFound(w, r)
		return
	}

	// Client disconnect is the cancellation signal.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-r.Context().Done():
			b.Cancel(id)
		case <-stop:
		}
	}()

	h.serve()

	if b.obs != nil {
		h.mu.Lock()
		info := RequestInfo{
			ID:         id,
			Instance:   inst,
			Scheme:     name,
			URL:        url,
			Method:     r.Method,
			Outcome:    h.outcome,
			Status:     h.status,
			BytesOut:   h.bytesOut,
			Chunks:     h.chunks,
			StartedAt:  started,
			FinishedAt: time.Now().UTC(),
		}
		h.mu.Unlock()
		b.obs.RequestServed(info)
	}
}

// Cancel removes the request from the table and releases its serving loop.
func (b *Backend) Cancel(id string) {
	h, ok := b.table.Delete(id)
	if !ok {
		return
	}
	deliveries.WithLabelValues(OutcomeCancelled).Inc()
	hd := h.(*handle)
	hd.setOutcome(OutcomeCancelled, 0)
	hd.finish()
}

func (b *Backend) DeliverFull(id string, resp scheme.Response) {
	raw, ok := b.table.Delete(id)
	if !ok {
		return
	}
	h := raw.(*handle)

	writeHead(h.w, resp.Mime, resp.Headers, resp.Status)
	if resp.Data.Size() > 0 {
		if _, err := h.w.Write(resp.Data.Data()); err != nil {
			b.logger.Debug("full delivery write failed", "request_id", id, "error", err)
		} else {
			h.addChunk(resp.Data.Size())
		}
	}
	deliveries.WithLabelValues(OutcomeResolved).Inc()
	h.setOutcome(OutcomeResolved, resp.Status)
	h.finish()
}

func (b *Backend) DeliverError(id string, err scheme.Error) {
	raw, ok := b.table.Delete(id)
	if !ok {
		return
	}
	h := raw.(*handle)

	status := err.Code()
	if status < 100 {
		// failed (-1) has no HTTP equivalent; internal error is closest.
		status = http.StatusInternalServerError
	}
	http.Error(h.w, err.String(), status)
	deliveries.WithLabelValues(OutcomeRejected).Inc()
	h.setOutcome(OutcomeRejected, status)
	h.finish()
}

func (b *Backend) BeginStream(id string, resp scheme.StreamResponse) error {
	raw, ok := b.table.Get(id)
	if !ok {
		return nil
	}
	h := raw.(*handle)

	// Long-lived streams must not trip the server write timeout.
	rc := http.NewResponseController(h.w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		b.logger.Debug("clear write deadline", "request_id", id, "error", err)
	}

	writeHead(h.w, resp.Mime, resp.Headers, resp.Status)
	h.mu.Lock()
	h.status = resp.Status
	h.mu.Unlock()
	h.flush()
	return nil
}

func (b *Backend) PushChunk(id string, data stash.Stash) {
	raw, ok := b.table.Get(id)
	if !ok {
		return
	}
	h := raw.(*handle)
	if _, err := h.w.Write(data.Data()); err != nil {
		b.logger.Debug("chunk write after disconnect dropped", "request_id", id, "error", err)
		return
	}
	chunkBytes.Add(float64(data.Size()))
	h.addChunk(data.Size())
	h.flush()
}

func (b *Backend) EndStream(id string) {
	raw, ok := b.table.Delete(id)
	if !ok {
		return
	}
	h := raw.(*handle)
	h.flush()
	deliveries.WithLabelValues(OutcomeStreamed).Inc()
	h.mu.Lock()
	status := h.status
	h.mu.Unlock()
	h.setOutcome(OutcomeStreamed, status)
	h.finish()
}

func (b *Backend) IsConnected(id string) bool {
	return b.table.Contains(id)
}

func (b *Backend) Marshal(id string, fn func()) {
	raw, ok := b.table.Get(id)
	if !ok {
		return
	}
	raw.(*handle).post(fn)
}

func writeHead(w http.ResponseWriter, mime string, headers map[string]string, status int) {
	for k, v := range headers {
		w.Header().Set(k, v)
	}
	if mime != "" {
		w.Header().Set("Content-Type", mime)
	}
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
}
