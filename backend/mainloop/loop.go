// Package mainloop provides the owning-thread primitive backend adapters use
// to satisfy toolkit thread-affinity rules: a single goroutine consuming a
// FIFO queue of functions, in the manner of a UI toolkit's queued dispatch.
package mainloop

import "sync"

// Loop runs posted functions one at a time, in submission order, on a single
// goroutine. Posting never blocks; the queue is unbounded.
type Loop struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	stopped bool
	done    chan struct{}
}

// New creates a loop and starts its goroutine.
func New() *Loop {
	l := &Loop{done: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.stopped {
			l.cond.Wait()
		}
		if l.stopped && len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()

		fn()
	}
}

// Post schedules fn on the loop goroutine. After Stop, fn is dropped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.queue = append(l.queue, fn)
	l.cond.Signal()
}

// Stop drains already-posted functions and terminates the goroutine. It
// blocks until the loop has exited. Safe to call more than once.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.stopped {
		l.stopped = true
		l.cond.Signal()
	}
	l.mu.Unlock()
	<-l.done
}
