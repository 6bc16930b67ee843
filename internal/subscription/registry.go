package subscription

import (
	"sync"

	"github.com/google/uuid"

	"github.com/aios-edge/fleet-realtime/internal/message"
)

// Handler receives one decoded payload.
type Handler func(message.Payload)

// entry is one registered (kind, handler) pair.
type entry struct {
	id      uuid.UUID
	handler Handler
}

// Registry holds the handler lists for every kind.
type Registry struct {
	mu       sync.RWMutex
	handlers map[message.Kind][]entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[message.Kind][]entry),
	}
}

// Subscribe appends h to the handler list for kind. Registering the same
// function twice creates two independent entries.
func (r *Registry) Subscribe(kind message.Kind, h Handler) *Subscription {
	e := entry{id: uuid.New(), handler: h}

	r.mu.Lock()
	r.handlers[kind] = append(r.handlers[kind], e)
	r.mu.Unlock()

	return &Subscription{registry: r, kind: kind, id: e.id}
}

// Handlers returns the handlers currently registered for kind, in
// registration order. The returned slice is a copy.
func (r *Registry) Handlers(kind message.Kind) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.handlers[kind]
	if len(list) == 0 {
		return nil
	}
	out := make([]Handler, len(list))
	for i, e := range list {
		out[i] = e.handler
	}
	return out
}

// Len returns the number of handlers registered for kind.
func (r *Registry) Len(kind message.Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[kind])
}

// remove deletes the entry with the given id. Unknown ids are ignored.
func (r *Registry) remove(kind message.Kind, id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.handlers[kind]
	for i, e := range list {
		if e.id != id {
			continue
		}
		// Build a fresh slice so snapshots taken earlier stay intact.
		next := make([]entry, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(r.handlers, kind)
		} else {
			r.handlers[kind] = next
		}
		return true
	}
	return false
}

// Subscription is the capability returned by Subscribe.
type Subscription struct {
	registry *Registry
	kind     message.Kind
	id       uuid.UUID
	once     sync.Once
}

// Kind returns the kind this subscription listens to.
func (s *Subscription) Kind() message.Kind { return s.kind }

// ID returns the unique id of the underlying entry.
func (s *Subscription) ID() uuid.UUID { return s.id }

// Unsubscribe removes exactly this entry. Calls after the first are no-ops.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.registry.remove(s.kind, s.id)
	})
}

// On subscribes a handler typed to one payload. The kind is taken from T.
//
//	sub := subscription.On(reg, func(u message.PipelineFrameUpdate) { ... })
//	defer sub.Unsubscribe()
func On[T message.Payload](r *Registry, fn func(T)) *Subscription {
	var zero T
	return r.Subscribe(zero.Kind(), func(p message.Payload) {
		if v, ok := p.(T); ok {
			fn(v)
		}
	})
}
