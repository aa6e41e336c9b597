package push

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/timemachinelab/prompto-lab/backend/internal/model/actor"
)

var (
	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "promptolab_push_active_connections",
		Help: "Push channels currently open.",
	})
	totalConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promptolab_push_connections_total",
		Help: "Push channels established since process start.",
	})
	deliveryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promptolab_push_delivery_failures_total",
		Help: "Push events dropped, by reason.",
	}, []string{"reason"})
)

// Registry allocates push channels and tracks connection counts. Each
// actor holds at most one channel; establishing a new one replaces the
// reference without closing the old channel.
type Registry struct {
	buffer int

	active atomic.Int64
	total  atomic.Int64
}

// NewRegistry creates a registry whose channels buffer up to buffer
// undelivered events.
func NewRegistry(buffer int) *Registry {
	return &Registry{buffer: buffer}
}

// Establish opens a fresh channel for the actor and stores it as the
// actor's current channel. The caller drives the transport loop and must
// Release the channel when the connection ends.
func (r *Registry) Establish(a *actor.Actor) *Channel {
	ch := newChannel(a.ID, r.buffer)
	ch.open()

	if prev := a.AttachChannel(ch); prev != nil {
		// The old channel is replaced, not closed; its own transport
		// loop terminates it and the identity guard in Release keeps its
		// late callbacks away from this channel.
		slog.Info("push channel replaced", "actor_id", a.ID)
	}

	r.active.Add(1)
	r.total.Add(1)
	activeConnections.Inc()
	totalConnections.Inc()

	slog.Info("push channel established", "actor_id", a.ID)
	return ch
}

// Release moves the channel into a terminal state and detaches it from
// the actor iff it is still the actor's current channel. Safe to call
// more than once and from any goroutine.
func (r *Registry) Release(a *actor.Actor, ch *Channel, state State) {
	if ch.terminate(state) {
		r.active.Add(-1)
		activeConnections.Dec()
		slog.Info("push channel terminated", "actor_id", ch.ActorID(), "state", state.String())
	}

	if a != nil && a.DetachChannel(ch) {
		slog.Debug("push channel detached", "actor_id", ch.ActorID())
	}
}

// Status is a best-effort snapshot; it is not linearizable with
// concurrent connects and disconnects.
type Status struct {
	ActiveConnections int64 `json:"activeConnections"`
	TotalConnections  int64 `json:"totalConnections"`
	Timestamp         int64 `json:"timestamp"`
}

// Status reports current connection counts.
func (r *Registry) Status() Status {
	return Status{
		ActiveConnections: r.active.Load(),
		TotalConnections:  r.total.Load(),
		Timestamp:         time.Now().UnixMilli(),
	}
}
