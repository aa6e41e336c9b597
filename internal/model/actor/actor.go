package actor

import (
	"sync"

	"github.com/timemachinelab/prompto-lab/backend/internal/model/conversation"
)

// PushChannel is the outbound push surface an actor can hold. The concrete
// channel lives in the push service; the actor only keeps the reference.
type PushChannel interface {
	// TrySend delivers an event without blocking. It fails softly once
	// the channel has reached a terminal state.
	TrySend(event string, payload any) error
	// Terminated reports whether the channel reached a terminal state.
	Terminated() bool
}

// Actor is one identified client. It owns its sessions and at most one
// outbound push channel; events for all of the actor's sessions multiplex
// onto that channel.
type Actor struct {
	ID   string
	Name string

	mu       sync.RWMutex
	channel  PushChannel
	sessions map[string]*conversation.Session
	latest   *conversation.Session
}

// New creates an actor with the given id and display name.
func New(id, name string) *Actor {
	return &Actor{
		ID:       id,
		Name:     name,
		sessions: make(map[string]*conversation.Session),
	}
}

// AttachChannel replaces the actor's push channel reference. The previous
// channel is returned unchanged; closing it is the caller's responsibility.
func (a *Actor) AttachChannel(ch PushChannel) PushChannel {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev := a.channel
	a.channel = ch
	return prev
}

// DetachChannel clears the reference iff ch is still the current channel,
// so a stale channel's terminal callbacks cannot evict its replacement.
func (a *Actor) DetachChannel(ch PushChannel) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.channel != ch {
		return false
	}
	a.channel = nil
	return true
}

// Channel returns the current push channel, or nil.
func (a *Actor) Channel() PushChannel {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.channel
}

// AddSession registers a session and marks it as the latest.
func (a *Actor) AddSession(s *conversation.Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions[s.ID] = s
	a.latest = s
}

// RemoveSession detaches a session from the actor's map.
func (a *Actor) RemoveSession(conversationID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sessions, conversationID)
	if a.latest != nil && a.latest.ID == conversationID {
		a.latest = nil
	}
}

// Session returns the actor's session for the conversation id, if owned.
func (a *Actor) Session(conversationID string) (*conversation.Session, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.sessions[conversationID]
	return s, ok
}

// HasSession reports ownership of the conversation id.
func (a *Actor) HasSession(conversationID string) bool {
	_, ok := a.Session(conversationID)
	return ok
}

// LatestSession returns the most recently created session, or nil.
func (a *Actor) LatestSession() *conversation.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest
}

// SessionCount returns how many sessions the actor currently owns.
func (a *Actor) SessionCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.sessions)
}

// SessionIDs snapshots the actor's conversation ids.
func (a *Actor) SessionIDs() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := make([]string, 0, len(a.sessions))
	for id := range a.sessions {
		ids = append(ids, id)
	}
	return ids
}
