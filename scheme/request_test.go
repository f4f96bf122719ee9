package scheme

import (
	"bytes"
	"testing"

	"github.com/seantiz/intercept/stash"
)

func TestRequestContentRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 4096, 3 << 20}
	for _, n := range sizes {
		body := make([]byte, n)
		for i := range body {
			body[i] = byte(i % 251)
		}

		req := NewRequest("app://upload", "POST", nil, stash.From(body))
		if got := req.Content().Data(); !bytes.Equal(got, body) {
			t.Errorf("size %d: content differs after round trip", n)
		}
	}
}

func TestRequestHeaderRoundTrip(t *testing.T) {
	headers := map[string]string{
		"Content-Type":  "application/json",
		"X-Correlation": "abc-123",
	}
	req := NewRequest("app://x", "POST", headers, stash.Empty())

	if got := req.Header("Content-Type"); got != "application/json" {
		t.Errorf("Header(Content-Type) = %q", got)
	}
	if got := req.Header("Absent"); got != "" {
		t.Errorf("Header(Absent) = %q, want empty", got)
	}

	got := req.Headers()
	if len(got) != len(headers) {
		t.Fatalf("Headers len = %d, want %d", len(got), len(headers))
	}
	for k, v := range headers {
		if got[k] != v {
			t.Errorf("Headers[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestRequestSnapshotIsolation(t *testing.T) {
	headers := map[string]string{"X-Key": "original"}
	req := NewRequest("app://x", "GET", headers, stash.Empty())

	// Mutating the caller's map after construction must not leak in.
	headers["X-Key"] = "mutated"
	if got := req.Header("X-Key"); got != "original" {
		t.Errorf("Header = %q after caller mutation, want original", got)
	}

	// Mutating the returned copy must not leak back.
	req.Headers()["X-Key"] = "mutated"
	if got := req.Header("X-Key"); got != "original" {
		t.Errorf("Header = %q after copy mutation, want original", got)
	}
}
