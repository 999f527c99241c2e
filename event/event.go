// Package event provides the manual-reset readiness signal used to
// wake transmitters when new outbound work appears.
package event

import "sync"

// Event is a manual-reset signal. Once signaled it stays signaled,
// waking all current and future waiters, until a waiter calls Clear.
type Event struct {
	mu  sync.Mutex
	set bool
	ch  chan struct{}
}

func New() *Event {
	return &Event{ch: make(chan struct{})}
}

// Signal marks the event signaled.
func (e *Event) Signal() {
	e.mu.Lock()
	if !e.set {
		e.set = true
		close(e.ch)
	}
	e.mu.Unlock()
}

// Clear resets the event to unsignaled.
func (e *Event) Clear() {
	e.mu.Lock()
	if e.set {
		e.set = false
		e.ch = make(chan struct{})
	}
	e.mu.Unlock()
}

// Signaled reports whether the event is currently set.
func (e *Event) Signaled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.set
}

// Done returns a channel that is closed while the event is signaled.
// Clear replaces the channel, so call Done again for each wait.
func (e *Event) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ch
}

// Wait blocks until the event is signaled.
func (e *Event) Wait() {
	<-e.Done()
}
