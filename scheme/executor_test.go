package scheme

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/seantiz/intercept/stash"
)

type event struct {
	kind  string
	resp  Response
	sresp StreamResponse
	err   Error
	data  []byte
}

// fakeBackend records every capability call in order. Marshal runs callbacks
// inline, which preserves per-request submission order the same way the real
// adapters do.
type fakeBackend struct {
	mu        sync.Mutex
	events    []event
	connected bool
	beginErr  error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{connected: true}
}

func (f *fakeBackend) DeliverFull(id string, resp Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event{kind: "full", resp: resp})
}

func (f *fakeBackend) DeliverError(id string, err Error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event{kind: "error", err: err})
}

func (f *fakeBackend) BeginStream(id string, resp StreamResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beginErr != nil {
		return f.beginErr
	}
	f.events = append(f.events, event{kind: "begin", sresp: resp})
	return nil
}

func (f *fakeBackend) PushChunk(id string, data stash.Stash) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event{kind: "chunk", data: data.Data()})
}

func (f *fakeBackend) EndStream(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event{kind: "end"})
}

func (f *fakeBackend) IsConnected(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeBackend) Marshal(id string, fn func()) {
	fn()
}

func (f *fakeBackend) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, ev := range f.events {
		out[i] = ev.kind
	}
	return out
}

func (f *fakeBackend) snapshot() []event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]event(nil), f.events...)
}

func newTestExecutor(be Backend) *Executor {
	return NewExecutor(NewID(), be, nil)
}

func TestResolveDeliversFullPayload(t *testing.T) {
	be := newFakeBackend()
	exec := newTestExecutor(be)

	exec.Resolve(Response{
		Data:   stash.FromString("hello"),
		Mime:   "text/plain",
		Status: 200,
	})

	evs := be.snapshot()
	if len(evs) != 1 || evs[0].kind != "full" {
		t.Fatalf("events = %v, want single full delivery", be.kinds())
	}
	if got := string(evs[0].resp.Data.Data()); got != "hello" {
		t.Errorf("payload = %q, want %q", got, "hello")
	}
	if exec.Valid() {
		t.Error("Valid() = true after Resolve, want false")
	}
}

func TestResolveDefaultsStatus(t *testing.T) {
	be := newFakeBackend()
	exec := newTestExecutor(be)

	exec.Resolve(Response{Data: stash.FromString("x")})

	evs := be.snapshot()
	if len(evs) != 1 {
		t.Fatalf("events = %v, want 1", be.kinds())
	}
	if evs[0].resp.Status != 200 {
		t.Errorf("Status = %d, want 200", evs[0].resp.Status)
	}
}

func TestSecondTerminalIsNoOp(t *testing.T) {
	be := newFakeBackend()
	exec := newTestExecutor(be)

	exec.Resolve(Response{Data: stash.FromString("first")})
	exec.Resolve(Response{Data: stash.FromString("second")})
	exec.Reject(ErrNotFound)
	exec.Finish()

	if kinds := be.kinds(); len(kinds) != 1 || kinds[0] != "full" {
		t.Errorf("events = %v, want exactly one full delivery", kinds)
	}
}

func TestRejectDeliversError(t *testing.T) {
	be := newFakeBackend()
	exec := newTestExecutor(be)

	exec.Reject(ErrDenied)

	evs := be.snapshot()
	if len(evs) != 1 || evs[0].kind != "error" {
		t.Fatalf("events = %v, want single error delivery", be.kinds())
	}
	if evs[0].err != ErrDenied {
		t.Errorf("err = %v, want ErrDenied", evs[0].err)
	}
	if exec.Valid() {
		t.Error("Valid() = true after Reject, want false")
	}
}

func TestStreamOrdering(t *testing.T) {
	be := newFakeBackend()
	exec := newTestExecutor(be)

	exec.Start(StreamResponse{Mime: "application/octet-stream"})
	for _, chunk := range []string{"one", "two", "three"} {
		exec.Write(stash.FromString(chunk))
	}
	exec.Finish()

	want := []string{"begin", "chunk", "chunk", "chunk", "end"}
	kinds := be.kinds()
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("events = %v, want %v", kinds, want)
		}
	}

	var got bytes.Buffer
	for _, ev := range be.snapshot() {
		if ev.kind == "chunk" {
			got.Write(ev.data)
		}
	}
	if got.String() != "onetwothree" {
		t.Errorf("chunk payloads = %q, want %q in order", got.String(), "onetwothree")
	}
}

func TestStartDefaultsStatus(t *testing.T) {
	be := newFakeBackend()
	exec := newTestExecutor(be)

	exec.Start(StreamResponse{Mime: "text/plain"})

	evs := be.snapshot()
	if len(evs) != 1 || evs[0].kind != "begin" {
		t.Fatalf("events = %v, want single begin", be.kinds())
	}
	if evs[0].sresp.Status != 200 {
		t.Errorf("Status = %d, want 200", evs[0].sresp.Status)
	}
}

func TestRejectAfterStartClosesEarly(t *testing.T) {
	be := newFakeBackend()
	exec := newTestExecutor(be)

	exec.Start(StreamResponse{Mime: "text/plain"})
	exec.Write(stash.FromString("partial"))
	exec.Reject(ErrFailed)

	// Headers are already committed: no error delivery is possible, the
	// stream just ends early.
	want := []string{"begin", "chunk", "end"}
	kinds := be.kinds()
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("events = %v, want %v", kinds, want)
		}
	}
	if exec.Valid() {
		t.Error("Valid() = true after reject-close, want false")
	}
}

func TestWriteOutsideStreamingDropped(t *testing.T) {
	be := newFakeBackend()
	exec := newTestExecutor(be)

	exec.Write(stash.FromString("too early"))
	exec.Start(StreamResponse{})
	exec.Finish()
	exec.Write(stash.FromString("too late"))
	exec.Finish()

	want := []string{"begin", "end"}
	kinds := be.kinds()
	if len(kinds) != len(want) || kinds[0] != want[0] || kinds[1] != want[1] {
		t.Errorf("events = %v, want %v", kinds, want)
	}
}

func TestStartAfterResolveIsNoOp(t *testing.T) {
	be := newFakeBackend()
	exec := newTestExecutor(be)

	exec.Resolve(Response{Data: stash.FromString("done")})
	exec.Start(StreamResponse{})
	exec.Write(stash.FromString("ignored"))
	exec.Finish()

	if kinds := be.kinds(); len(kinds) != 1 || kinds[0] != "full" {
		t.Errorf("events = %v, want exactly one full delivery", kinds)
	}
}

func TestBeginStreamFailureRejectsRequest(t *testing.T) {
	be := newFakeBackend()
	be.beginErr = errors.New("no transport")
	exec := newTestExecutor(be)

	exec.Start(StreamResponse{Mime: "text/plain"})

	evs := be.snapshot()
	if len(evs) != 1 || evs[0].kind != "error" {
		t.Fatalf("events = %v, want single error delivery", be.kinds())
	}
	if evs[0].err != ErrFailed {
		t.Errorf("err = %v, want ErrFailed", evs[0].err)
	}
	if exec.Valid() {
		t.Error("Valid() = true after failed Start, want false")
	}

	exec.Write(stash.FromString("ignored"))
	exec.Finish()
	if kinds := be.kinds(); len(kinds) != 1 {
		t.Errorf("events = %v, want no activity after failed Start", kinds)
	}
}

func TestConcurrentTerminalRaceDeliversOnce(t *testing.T) {
	for range 50 {
		be := newFakeBackend()
		exec := newTestExecutor(be)

		var wg sync.WaitGroup
		wg.Add(3)
		go func() {
			defer wg.Done()
			exec.Resolve(Response{Data: stash.FromString("race")})
		}()
		go func() {
			defer wg.Done()
			exec.Reject(ErrNotFound)
		}()
		go func() {
			defer wg.Done()
			exec.Start(StreamResponse{})
			exec.Finish()
		}()
		wg.Wait()

		// Exactly one of the three claims wins; the loser paths are no-ops,
		// except a losing Reject against a won Start which closes the stream.
		var terminals int
		for _, ev := range be.snapshot() {
			switch ev.kind {
			case "full", "error", "begin":
				terminals++
			}
		}
		if terminals != 1 {
			t.Fatalf("terminal claims = %d (events %v), want 1", terminals, be.kinds())
		}
	}
}

func TestValidReflectsConsumerLiveness(t *testing.T) {
	be := newFakeBackend()
	exec := newTestExecutor(be)

	exec.Start(StreamResponse{})
	if !exec.Valid() {
		t.Fatal("Valid() = false while streaming and connected")
	}

	be.mu.Lock()
	be.connected = false
	be.mu.Unlock()

	if exec.Valid() {
		t.Error("Valid() = true after consumer disconnect, want false")
	}
}

func TestErrorCodes(t *testing.T) {
	cases := []struct {
		err  Error
		code int
		name string
	}{
		{ErrNotFound, 404, "not_found"},
		{ErrInvalid, 400, "invalid"},
		{ErrDenied, 401, "denied"},
		{ErrFailed, -1, "failed"},
	}
	for _, tc := range cases {
		if got := tc.err.Code(); got != tc.code {
			t.Errorf("%s.Code() = %d, want %d", tc.name, got, tc.code)
		}
		if got := tc.err.String(); got != tc.name {
			t.Errorf("Error(%d).String() = %q, want %q", tc.code, got, tc.name)
		}
	}
}
