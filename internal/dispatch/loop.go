// Package dispatch provides the single-threaded delivery context for job
// events. It plays the role GLib's main-loop idle callbacks play in the
// GTK dialog: workers hand closures over, and one goroutine runs them in
// the order they were posted. Sinks and the integrator only ever execute
// here, so they need no locking of their own and can never observe events
// out of generation order.
package dispatch

import "sync"

// Loop is a serial executor. Create with NewLoop, start with `go
// loop.Run()`, stop with Close.
type Loop struct {
	mu     sync.Mutex
	closed bool
	tasks  chan func()
	done   chan struct{}
}

func NewLoop(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 256
	}
	return &Loop{
		tasks: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
}

// Run drains the task queue until Close. Call it from exactly one
// goroutine.
func (l *Loop) Run() {
	for fn := range l.tasks {
		fn()
	}
	close(l.done)
}

// Post enqueues fn for execution on the loop. Returns false once the loop
// is closed. Posts from a single goroutine execute in posting order.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.tasks <- fn
	return true
}

// Close stops accepting posts, then blocks until every already-posted
// task has run.
func (l *Loop) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.tasks)
	}
	l.mu.Unlock()
	<-l.done
}
