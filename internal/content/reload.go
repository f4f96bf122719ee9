package content

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/seantiz/intercept/scheme"
	"github.com/seantiz/intercept/stash"
)

// Watcher fans filesystem change events under a content root out to any
// number of live-reload streams. Each stream is an intercepted request held
// open by its resolver; subscribers that disconnect are dropped on the next
// poll of the executor.
type Watcher struct {
	fsw    *fsnotify.Watcher
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[int]chan string
	nextID int
	closed bool
}

// NewWatcher starts watching dir for changes.
func NewWatcher(dir string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &Watcher{
		fsw:    fsw,
		logger: logger,
		subs:   make(map[int]chan string),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				w.closeSubs()
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.publish(ev.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				w.closeSubs()
				return
			}
			w.logger.Error("content watch error", "error", err)
		}
	}
}

func (w *Watcher) publish(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ch := range w.subs {
		select {
		case ch <- path:
		default:
			// Slow subscriber, drop the event rather than block the
			// watch loop.
		}
	}
}

func (w *Watcher) closeSubs() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	for _, ch := range w.subs {
		close(ch)
	}
	w.subs = nil
}

func (w *Watcher) subscribe() (<-chan string, func(), bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, nil, false
	}
	id := w.nextID
	w.nextID++
	ch := make(chan string, 16)
	w.subs[id] = ch

	cancel := func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if !w.closed {
			delete(w.subs, id)
		}
	}
	return ch, cancel, true
}

// Close stops the watcher and ends every open event stream.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Resolver returns a resolver serving change notifications as a
// server-sent-events stream. The stream stays open until the consumer
// disconnects or the watcher closes.
func (w *Watcher) Resolver() scheme.Resolver {
	return func(req scheme.Request, exec *scheme.Executor) {
		events, cancel, ok := w.subscribe()
		if !ok {
			exec.Reject(scheme.ErrFailed)
			return
		}

		exec.Start(scheme.StreamResponse{
			Mime: "text/event-stream",
			Headers: map[string]string{
				"Cache-Control": "no-cache",
			},
		})

		go func() {
			defer cancel()
			ticker := time.NewTicker(500 * time.Millisecond)
			defer ticker.Stop()

			for {
				select {
				case path, open := <-events:
					if !open {
						exec.Finish()
						return
					}
					exec.Write(stash.FromString("data: " + path + "\n\n"))
				case <-ticker.C:
					// Liveness probe; the consumer may have gone away
					// without generating an event.
				}
				if !exec.Valid() {
					return
				}
			}
		}()
	}
}
