// Package broker implements the scheme backend for consumers that take the
// response as a sequence of frames pushed over subscriptions — the shape of a
// toolkit exposing a push-callback completion protocol. Frames per request
// are fanned out to every subscriber in publish order.
//
// Subscriber queues are unbounded: this transport has no flow control, so a
// stalled consumer accumulates backlog until the producer notices Valid()
// turning false.
package broker

import "sync"

// Frame kinds, in the order they may appear on one request: one headers
// frame, any number of chunk frames, then one end or error frame.
const (
	KindHeaders = "headers"
	KindChunk   = "chunk"
	KindEnd     = "end"
	KindError   = "error"
)

// Frame is one unit of the framed completion protocol.
type Frame struct {
	Kind    string
	Status  int
	Mime    string
	Headers map[string]string
	Data    []byte
	Code    int
}

// Subscription is one consumer's ordered, unbounded frame queue.
type Subscription struct {
	mu     sync.Mutex
	cond   *sync.Cond
	frames []Frame
	closed bool
}

func newSubscription() *Subscription {
	s := &Subscription{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Next blocks until a frame is available or the subscription is closed and
// drained. The second result is false once no more frames will arrive.
func (s *Subscription) Next() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.frames) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.frames) == 0 {
		return Frame{}, false
	}

	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, true
}

func (s *Subscription) publish(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.frames = append(s.frames, f)
	s.cond.Signal()
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cond.Broadcast()
}

// topic is the per-request native object kept behind the handle table.
// Closed topics are retained as markers so late subscribers observe a closed
// subscription instead of blocking forever.
type topic struct {
	mu     sync.Mutex
	subs   map[int]*Subscription
	nextID int
	closed bool
}

func newTopic() *topic {
	return &topic{subs: make(map[int]*Subscription)}
}

func (t *topic) subscribe() (*Subscription, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sub := newSubscription()
	if t.closed {
		sub.close()
		return sub, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = sub

	return sub, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subs, id)
		sub.close()
	}
}

func (t *topic) publish(f Frame) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	for _, sub := range t.subs {
		sub.publish(f)
	}
}

func (t *topic) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for id, sub := range t.subs {
		sub.close()
		delete(t.subs, id)
	}
}

func (t *topic) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
