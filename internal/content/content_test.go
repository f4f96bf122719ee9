package content

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/seantiz/intercept/backend/broker"
	"github.com/seantiz/intercept/scheme"
	"github.com/seantiz/intercept/stash"
)

// serve dispatches one request against a resolver over a broker backend and
// returns the subscription for the caller to drain.
func serve(t *testing.T, res scheme.Resolver, url, method string, headers map[string]string, body []byte) *broker.Subscription {
	t.Helper()

	b := broker.New(nil)
	t.Cleanup(b.Close)

	id := b.Admit()
	sub, unsub := b.Subscribe(id)
	t.Cleanup(unsub)

	reg := scheme.NewRegistry(nil)
	inst := scheme.NewInstance()
	reg.Register(inst, "app", res)

	req := scheme.NewRequest(url, method, headers, stash.From(body))
	if !reg.Dispatch(inst, "app", req, b, id) {
		t.Fatal("Dispatch declined a registered scheme")
	}
	return sub
}

func drain(t *testing.T, sub *broker.Subscription) []broker.Frame {
	t.Helper()
	var frames []broker.Frame
	for {
		f, ok := nextFrame(t, sub)
		if !ok {
			return frames
		}
		frames = append(frames, f)
	}
}

func nextFrame(t *testing.T, sub *broker.Subscription) (broker.Frame, bool) {
	t.Helper()
	type result struct {
		f  broker.Frame
		ok bool
	}
	ch := make(chan result, 1)
	go func() {
		f, ok := sub.Next()
		ch <- result{f, ok}
	}()
	select {
	case r := <-ch:
		return r.f, r.ok
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for frame")
		return broker.Frame{}, false
	}
}

func writeFile(t *testing.T, dir, name, data string) {
	t.Helper()
	full := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(data), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDirServesFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.html", "<html>home</html>")
	writeFile(t, root, "assets/app.css", "body{}")

	frames := drain(t, serve(t, NewDir(root, nil), "app://assets/app.css", "GET", nil, nil))

	if len(frames) != 3 {
		t.Fatalf("frames = %d, want headers+chunk+end", len(frames))
	}
	if frames[0].Kind != broker.KindHeaders || frames[0].Status != 200 {
		t.Errorf("headers frame = %+v, want status 200", frames[0])
	}
	if !strings.HasPrefix(frames[0].Mime, "text/css") {
		t.Errorf("mime = %q, want text/css", frames[0].Mime)
	}
	if string(frames[1].Data) != "body{}" {
		t.Errorf("body = %q, want file contents", frames[1].Data)
	}
}

func TestDirDefaultDocument(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.html", "<html>home</html>")

	frames := drain(t, serve(t, NewDir(root, nil), "app://", "GET", nil, nil))

	if len(frames) != 3 {
		t.Fatalf("frames = %d, want headers+chunk+end", len(frames))
	}
	if string(frames[1].Data) != "<html>home</html>" {
		t.Errorf("body = %q, want index.html contents", frames[1].Data)
	}
}

func TestDirMissingFile(t *testing.T) {
	root := t.TempDir()

	frames := drain(t, serve(t, NewDir(root, nil), "app://nope.html", "GET", nil, nil))

	if len(frames) != 1 || frames[0].Kind != broker.KindError {
		t.Fatalf("frames = %+v, want single error frame", frames)
	}
	if frames[0].Code != scheme.ErrNotFound.Code() {
		t.Errorf("code = %d, want %d", frames[0].Code, scheme.ErrNotFound.Code())
	}
}

func TestDirDeniesTraversal(t *testing.T) {
	root := t.TempDir()
	parent := filepath.Dir(root)
	writeFile(t, parent, "secret.txt", "secret")

	frames := drain(t, serve(t, NewDir(root, nil), "app://assets/../../secret.txt", "GET", nil, nil))

	if len(frames) != 1 || frames[0].Kind != broker.KindError {
		t.Fatalf("frames = %+v, want single error frame", frames)
	}
	if frames[0].Code != scheme.ErrDenied.Code() {
		t.Errorf("code = %d, want %d", frames[0].Code, scheme.ErrDenied.Code())
	}
}

func TestEchoBody(t *testing.T) {
	body := []byte(`{"k":"v"}`)
	headers := map[string]string{"Content-Type": "application/json"}

	frames := drain(t, serve(t, NewEcho(), "app://echo", "POST", headers, body))

	if len(frames) != 3 {
		t.Fatalf("frames = %d, want headers+chunk+end", len(frames))
	}
	if frames[0].Mime != "application/json" {
		t.Errorf("mime = %q, want request content type", frames[0].Mime)
	}
	if !bytes.Equal(frames[1].Data, body) {
		t.Errorf("body = %q, want %q", frames[1].Data, body)
	}
}

func TestEchoEmptyBody(t *testing.T) {
	frames := drain(t, serve(t, NewEcho(), "app://echo", "POST", nil, nil))

	if len(frames) != 2 {
		t.Fatalf("frames = %d, want headers+end with no chunk", len(frames))
	}
	if frames[0].Status != 204 {
		t.Errorf("status = %d, want 204", frames[0].Status)
	}
}

func TestBenchStreamsChunks(t *testing.T) {
	const chunkSize, chunks = 1024, 4

	frames := drain(t, serve(t, NewBench(chunkSize, chunks), "app://bench", "GET", nil, nil))

	if len(frames) != chunks+2 {
		t.Fatalf("frames = %d, want headers+%d chunks+end", len(frames), chunks)
	}
	if frames[0].Kind != broker.KindHeaders {
		t.Fatalf("first frame = %q, want headers", frames[0].Kind)
	}
	var total int
	for _, f := range frames[1 : len(frames)-1] {
		if f.Kind != broker.KindChunk {
			t.Fatalf("mid frame = %q, want chunk", f.Kind)
		}
		total += len(f.Data)
	}
	if total != chunkSize*chunks {
		t.Errorf("streamed %d bytes, want %d", total, chunkSize*chunks)
	}
	if last := frames[len(frames)-1]; last.Kind != broker.KindEnd {
		t.Errorf("last frame = %q, want end", last.Kind)
	}
}

func TestWatcherStreamsChanges(t *testing.T) {
	root := t.TempDir()
	w, err := NewWatcher(root, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	sub := serve(t, w.Resolver(), "app://reload", "GET", nil, nil)

	f, ok := nextFrame(t, sub)
	if !ok || f.Kind != broker.KindHeaders {
		t.Fatalf("first frame = (%+v, %v), want headers", f, ok)
	}
	if f.Mime != "text/event-stream" {
		t.Errorf("mime = %q, want text/event-stream", f.Mime)
	}

	writeFile(t, root, "changed.txt", "v2")

	f, ok = nextFrame(t, sub)
	if !ok || f.Kind != broker.KindChunk {
		t.Fatalf("second frame = (%+v, %v), want chunk", f, ok)
	}
	if !strings.Contains(string(f.Data), "changed.txt") {
		t.Errorf("event = %q, want it to name changed.txt", f.Data)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Watcher shutdown ends the stream.
	for {
		f, ok := nextFrame(t, sub)
		if !ok {
			break
		}
		if f.Kind == broker.KindEnd {
			break
		}
	}
}
