// Package push owns the per-actor outbound channels and the delivery of
// tree-mutation events onto them. Delivery is at-most-once: no queueing
// beyond a small buffer, no retries, failures are contained here.
package push

import (
	"errors"
	"fmt"
	"sync"
)

// State is the lifecycle of one push channel. Terminal states are final;
// re-establishing creates a fresh channel instead of reviving an old one.
type State int32

const (
	StateUnopened State = iota
	StateOpen
	StateCompleted
	StateTimedOut
	StateErrored
	StateClosed
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateTimedOut || s == StateErrored || s == StateClosed
}

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpen:
		return "open"
	case StateCompleted:
		return "completed"
	case StateTimedOut:
		return "timed_out"
	case StateErrored:
		return "errored"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event names understood by push clients.
const (
	EventConnected = "connected"
	EventMessage   = "message"
)

// Event is one outbound push message.
type Event struct {
	Name    string
	Payload any
}

// ErrChannelFull signals the bounded buffer rejected the event.
var ErrChannelFull = errors.New("push: channel buffer full")

// Channel is a single actor's outbound push stream. TrySend may be called
// from any request goroutine concurrently with the transport goroutine
// driving the lifecycle; a send after a terminal transition fails softly.
type Channel struct {
	actorID string

	mu     sync.Mutex
	state  State
	events chan Event
	done   chan struct{}
}

func newChannel(actorID string, buffer int) *Channel {
	if buffer < 1 {
		buffer = 1
	}
	return &Channel{
		actorID: actorID,
		state:   StateUnopened,
		events:  make(chan Event, buffer),
		done:    make(chan struct{}),
	}
}

func (c *Channel) open() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateUnopened {
		c.state = StateOpen
	}
}

// ActorID returns the owning actor's id.
func (c *Channel) ActorID() string { return c.actorID }

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Terminated reports whether the channel reached a terminal state.
func (c *Channel) Terminated() bool {
	return c.State().Terminal()
}

// TrySend enqueues an event without blocking. It returns an error when
// the channel is not open or the buffer is full; the event is then lost.
func (c *Channel) TrySend(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen {
		return fmt.Errorf("push: channel %s", c.state)
	}

	select {
	case c.events <- Event{Name: event, Payload: payload}:
		return nil
	default:
		return ErrChannelFull
	}
}

// Events is read by the transport goroutine writing to the wire.
func (c *Channel) Events() <-chan Event { return c.events }

// Done is closed on the first terminal transition.
func (c *Channel) Done() <-chan struct{} { return c.done }

// terminate moves the channel into a terminal state. Only the first
// terminal transition wins; later calls report false and change nothing.
func (c *Channel) terminate(state State) bool {
	if !state.Terminal() {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Terminal() {
		return false
	}
	c.state = state
	close(c.done)
	return true
}
