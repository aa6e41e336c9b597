package actor

import (
	"log/slog"
	"sync"
)

// Registry owns the set of known actors. All methods are safe for
// concurrent use; get-or-create races resolve to a single winner.
type Registry struct {
	actors sync.Map // actor id -> *Actor
}

// NewRegistry creates an empty actor registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// GetOrCreate returns the actor for id, creating it on first access.
// Exactly one instance wins per id under concurrent first access.
func (r *Registry) GetOrCreate(id string) *Actor {
	if existing, ok := r.actors.Load(id); ok {
		return existing.(*Actor)
	}

	created := New(id, id)
	existing, loaded := r.actors.LoadOrStore(id, created)
	if !loaded {
		slog.Info("actor created", "actor_id", id)
	}
	return existing.(*Actor)
}

// Get returns the actor for id, if known.
func (r *Registry) Get(id string) (*Actor, bool) {
	v, ok := r.actors.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Actor), true
}

// Remove deletes the actor and returns it, if it existed.
func (r *Registry) Remove(id string) (*Actor, bool) {
	v, ok := r.actors.LoadAndDelete(id)
	if !ok {
		return nil, false
	}
	slog.Info("actor removed", "actor_id", id)
	return v.(*Actor), true
}

// Count returns the number of known actors.
func (r *Registry) Count() int {
	n := 0
	r.actors.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Range iterates all actors until fn returns false.
func (r *Registry) Range(fn func(a *Actor) bool) {
	r.actors.Range(func(_, v any) bool {
		return fn(v.(*Actor))
	})
}
