package authclient

import (
	"sort"
	"sync"
)

// Listener receives session lifecycle notifications. session is nil after sign-out.
type Listener func(event Event, session *Session)

// ListenerID identifies a registered listener
type ListenerID uint64

// Emitter fans session events out to listeners.
// Listeners run synchronously on the emitting goroutine, in registration order,
// outside the emitter's lock so they may add or remove listeners.
type Emitter struct {
	mu        sync.Mutex
	next      ListenerID
	listeners map[ListenerID]Listener
}

// NewEmitter creates an empty emitter
func NewEmitter() *Emitter {
	return &Emitter{listeners: make(map[ListenerID]Listener)}
}

// AddListener registers l and returns its id
func (e *Emitter) AddListener(l Listener) ListenerID {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.next++
	e.listeners[e.next] = l
	return e.next
}

// RemoveListener unregisters id. It reports whether the listener was registered.
func (e *Emitter) RemoveListener(id ListenerID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.listeners[id]; !ok {
		return false
	}
	delete(e.listeners, id)
	return true
}

// Len returns the number of registered listeners
func (e *Emitter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

// Emit delivers event to every listener registered at call time
func (e *Emitter) Emit(event Event, session *Session) {
	e.mu.Lock()
	ids := make([]ListenerID, 0, len(e.listeners))
	for id := range e.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, e.listeners[id])
	}
	e.mu.Unlock()

	for _, l := range listeners {
		l(event, session)
	}
}

// Subscription is the handle returned by OnAuthStateChange
type Subscription struct {
	emitter *Emitter
	id      ListenerID
	once    sync.Once
}

// Subscribe registers l on e and returns a handle that removes it
func (e *Emitter) Subscribe(l Listener) *Subscription {
	return &Subscription{emitter: e, id: e.AddListener(l)}
}

// Unsubscribe removes the listener. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.emitter.RemoveListener(s.id)
	})
}
