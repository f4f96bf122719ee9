package scheme

import "sync"

// HandleTable is the lock-protected mapping from opaque per-request id to a
// backend's native object. Every native-object dereference goes through a
// lookup here, never through a cached reference held across an asynchronous
// boundary; cancellation removes the entry under the same lock, so an
// in-flight write observes absence instead of a dangling object.
type HandleTable struct {
	mu      sync.Mutex
	handles map[string]any
}

// NewHandleTable creates an empty table.
func NewHandleTable() *HandleTable {
	return &HandleTable{handles: make(map[string]any)}
}

// Put stores the native object for id, replacing any previous entry.
func (t *HandleTable) Put(id string, h any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handles[id] = h
}

// Get returns the native object for id, if present.
func (t *HandleTable) Get(id string) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.handles[id]
	return h, ok
}

// Delete removes and returns the entry for id. The second result reports
// whether an entry was present.
func (t *HandleTable) Delete(id string) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.handles[id]
	if ok {
		delete(t.handles, id)
	}
	return h, ok
}

// Contains reports whether id is present.
func (t *HandleTable) Contains(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.handles[id]
	return ok
}

// Len returns the number of live entries.
func (t *HandleTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}
