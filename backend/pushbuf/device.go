// Package pushbuf implements the scheme backend for toolkits that consume a
// user-space push-buffer device: the producer pushes chunks into an unbounded
// buffer and the toolkit reads them out on its own schedule. There is no
// protocol-level flow control; a stalled reader lets the backlog grow until
// the producer notices Valid() turning false after cancellation.
package pushbuf

import (
	"io"
	"sync"
)

// Device is the per-request stream transport: an unbounded byte buffer with
// a blocking reader. Push and Read may run on different goroutines.
type Device struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buf      []byte
	finished bool
}

// NewDevice creates an open device.
func NewDevice() *Device {
	d := &Device{}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Push appends one chunk and wakes a blocked reader. Pushes after CloseWrite
// are dropped.
func (d *Device) Push(p []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.finished {
		return
	}
	d.buf = append(d.buf, p...)
	d.cond.Signal()
}

// CloseWrite marks end-of-stream. The reader drains the remaining buffer and
// then observes io.EOF. Safe to call more than once.
func (d *Device) CloseWrite() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.finished {
		return
	}
	d.finished = true
	d.cond.Broadcast()
}

// Read blocks until data is available or the write side is closed. After the
// buffer drains on a closed device it returns io.EOF.
func (d *Device) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for len(d.buf) == 0 && !d.finished {
		d.cond.Wait()
	}
	if len(d.buf) == 0 {
		return 0, io.EOF
	}

	n := copy(p, d.buf)
	d.buf = d.buf[n:]
	return n, nil
}

// BytesAvailable returns the current backlog size.
func (d *Device) BytesAvailable() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buf)
}

var _ io.Reader = (*Device)(nil)
