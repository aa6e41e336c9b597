package push

import (
	"log/slog"
	"time"

	"github.com/timemachinelab/prompto-lab/backend/internal/model/actor"
	"github.com/timemachinelab/prompto-lab/backend/internal/model/conversation"
)

// QuestionEvent is the payload delivered after a tree mutation produced a
// new question node.
type QuestionEvent struct {
	Question      string `json:"question"`
	CurrentNodeID string `json:"currentNodeId"`
	ParentNodeID  string `json:"parentNodeId,omitempty"`
}

// ConnectedEvent confirms an established channel to the client.
type ConnectedEvent struct {
	ActorID   string `json:"userId"`
	Timestamp int64  `json:"timestamp"`
}

// PromptEvent carries a generated prompt template.
type PromptEvent struct {
	GenPrompt string `json:"genPrompt"`
}

// Dispatcher formats tree-mutation events and delivers them onto the
// owning actor's channel. Failures are recorded and never propagate to
// the use case that triggered the push.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher wires a dispatcher to the channel registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Send delivers one event to the actor's channel, best effort. It returns
// whether delivery was accepted; callers must not fail their operation on
// a false return.
func (d *Dispatcher) Send(a *actor.Actor, sess *conversation.Session, event string, payload any) bool {
	ch := a.Channel()
	if ch == nil {
		deliveryFailures.WithLabelValues("no_channel").Inc()
		slog.Warn("push dropped: no channel", "actor_id", a.ID)
		return false
	}

	if err := ch.TrySend(event, payload); err != nil {
		deliveryFailures.WithLabelValues("send_failed").Inc()
		slog.Warn("push dropped", "actor_id", a.ID, "event", event, "error", err)
		// A terminal channel is dead weight on the actor; drop it so the
		// next establish starts clean.
		if ch.Terminated() {
			if pc, ok := ch.(*Channel); ok {
				d.registry.Release(a, pc, pc.State())
			}
		}
		return false
	}

	if sess != nil {
		slog.Info("push delivered", "actor_id", a.ID, "conversation_id", sess.ID, "event", event)
	}
	return true
}

// SendConnected pushes the handshake event carrying the actor id and the
// current timestamp.
func (d *Dispatcher) SendConnected(a *actor.Actor) bool {
	return d.Send(a, nil, EventConnected, ConnectedEvent{
		ActorID:   a.ID,
		Timestamp: time.Now().UnixMilli(),
	})
}

// SendQuestionEvent pushes a freshly generated question. The node id is
// handed in by the mutation that created the node rather than re-read
// from the session counter, so a concurrent second mutation cannot skew
// the payload.
func (d *Dispatcher) SendQuestionEvent(a *actor.Actor, sess *conversation.Session, question, nodeID, parentID string) bool {
	return d.Send(a, sess, EventMessage, QuestionEvent{
		Question:      question,
		CurrentNodeID: nodeID,
		ParentNodeID:  parentID,
	})
}

// SendPrompt pushes a generated prompt template.
func (d *Dispatcher) SendPrompt(a *actor.Actor, sess *conversation.Session, prompt string) bool {
	return d.Send(a, sess, EventMessage, PromptEvent{GenPrompt: prompt})
}

// Status reads through to the registry's connection snapshot.
func (d *Dispatcher) Status() Status {
	return d.registry.Status()
}
