// Package task tracks asynchronous operations that are waiting on
// multiplexer progress, keyed by registry-issued identifiers.
package task

import (
	"sync"

	"github.com/rs/xid"

	"github.com/hostlink/go-hostlink/event"
)

// ID names a registered task.
type ID string

// Kind says what a task is waiting for.
type Kind int

const (
	// KindSend tasks wait for send-buffer capacity to free up.
	KindSend Kind = iota
	// KindReceive tasks wait for inbound channel data.
	KindReceive
)

type entry struct {
	kind Kind
	ev   *event.Event
}

// Registry maps task ids to their completion events. Every method is
// safe to call while the multiplexer lock is held: the registry never
// blocks and never calls back into the multiplexer.
type Registry struct {
	mu    sync.Mutex
	tasks map[ID]*entry
}

func NewRegistry() *Registry {
	return &Registry{tasks: make(map[ID]*entry)}
}

// Add registers a new task and returns its id and completion event.
func (r *Registry) Add(kind Kind) (ID, *event.Event) {
	id := ID(xid.New().String())
	ev := event.New()
	r.mu.Lock()
	r.tasks[id] = &entry{kind: kind, ev: ev}
	r.mu.Unlock()
	return id, ev
}

// Remove forgets a task.
func (r *Registry) Remove(id ID) {
	r.mu.Lock()
	delete(r.tasks, id)
	r.mu.Unlock()
}

// GetTaskEvent returns the completion event for id, or nil if no such
// task is registered.
func (r *Registry) GetTaskEvent(id ID) *event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.tasks[id]; ok {
		return e.ev
	}
	return nil
}

// NotifySendReady signals every task waiting on send capacity.
func (r *Registry) NotifySendReady() {
	r.mu.Lock()
	for _, e := range r.tasks {
		if e.kind == KindSend {
			e.ev.Signal()
		}
	}
	r.mu.Unlock()
}
