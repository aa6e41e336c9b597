// Package session owns the conversation indices: the global
// conversationId lookup and the per-actor session sets.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/timemachinelab/prompto-lab/backend/internal/model/actor"
	"github.com/timemachinelab/prompto-lab/backend/internal/model/conversation"
)

// WelcomeQuestion seeds the root node of every new conversation.
const WelcomeQuestion = "你好，我有什么可以帮你？"

var (
	sessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promptolab_sessions_created_total",
		Help: "Conversations created since process start.",
	})
	sessionsRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promptolab_sessions_removed_total",
		Help: "Conversations removed since process start.",
	})
)

// Store creates, validates and tears down sessions.
type Store struct {
	actors *actor.Registry
	trees  conversation.TreeDomain

	sessions sync.Map // conversation id -> *conversation.Session

	// actorIndex mirrors each actor's conversation ids. It can drift from
	// the actor's own map under races; ValidateAndGet heals it lazily.
	actorIndex sync.Map // actor id -> *indexEntry
}

type indexEntry struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewStore wires the store to the actor registry and tree domain.
func NewStore(actors *actor.Registry, trees conversation.TreeDomain) *Store {
	return &Store{actors: actors, trees: trees}
}

// CreateSession builds a new conversation for the actor. The session only
// becomes visible in any index after its tree is attached, so no reader
// can observe a session without a tree.
func (s *Store) CreateSession(actorID string) *conversation.Session {
	owner := s.actors.GetOrCreate(actorID)

	sess := conversation.NewSession(actorID)
	tree := s.trees.CreateTree(WelcomeQuestion, sess)
	sess.AttachTree(tree)

	s.sessions.Store(sess.ID, sess)
	s.indexFor(actorID).add(sess.ID)
	owner.AddSession(sess)

	sessionsCreated.Inc()
	slog.Info("session created",
		"actor_id", actorID,
		"conversation_id", sess.ID,
		"root_node_id", tree.RootID())
	return sess
}

// ValidateAndGet returns the session iff it exists and belongs to the
// actor. An ownership mismatch is a plain negative lookup, not an error.
// On success the actor index is repaired if it drifted.
func (s *Store) ValidateAndGet(actorID, conversationID string) (*conversation.Session, bool) {
	sess, ok := s.GetByID(conversationID)
	if !ok {
		slog.Warn("session not found", "actor_id", actorID, "conversation_id", conversationID)
		return nil, false
	}

	if sess.ActorID != actorID {
		slog.Warn("session owned by another actor",
			"actor_id", actorID,
			"conversation_id", conversationID,
			"owner_id", sess.ActorID)
		return nil, false
	}

	s.indexFor(actorID).add(conversationID)
	return sess, true
}

// GetByID returns the session for the conversation id, if known.
func (s *Store) GetByID(conversationID string) (*conversation.Session, bool) {
	v, ok := s.sessions.Load(conversationID)
	if !ok {
		return nil, false
	}
	return v.(*conversation.Session), true
}

// RemoveSession drops one conversation from the global map, the actor
// index and the owning actor.
func (s *Store) RemoveSession(owner *actor.Actor, conversationID string) {
	owner.RemoveSession(conversationID)
	s.indexFor(owner.ID).remove(conversationID)
	if _, ok := s.sessions.LoadAndDelete(conversationID); ok {
		sessionsRemoved.Inc()
	}
	slog.Info("session removed", "actor_id", owner.ID, "conversation_id", conversationID)
}

// RemoveAllSessionsForActor drops every session the actor owns from both
// indices and returns how many were removed.
func (s *Store) RemoveAllSessionsForActor(actorID string) int {
	v, ok := s.actorIndex.LoadAndDelete(actorID)
	if !ok {
		return 0
	}

	entry := v.(*indexEntry)
	entry.mu.Lock()
	ids := make([]string, 0, len(entry.ids))
	for id := range entry.ids {
		ids = append(ids, id)
	}
	entry.ids = map[string]struct{}{}
	entry.mu.Unlock()

	owner, hasActor := s.actors.Get(actorID)
	for _, id := range ids {
		s.sessions.Delete(id)
		if hasActor {
			owner.RemoveSession(id)
		}
		sessionsRemoved.Inc()
	}

	slog.Info("all sessions removed", "actor_id", actorID, "count", len(ids))
	return len(ids)
}

// GetNodeQuestion returns the node's question text; empty means the node
// does not exist or has no question.
func (s *Store) GetNodeQuestion(sess *conversation.Session, nodeID string) string {
	return s.trees.GetNodeQuestion(sess.Tree(), nodeID)
}

// RemoveNode removes the node from the session's tree. False covers both
// "tree absent" and "node unknown"; callers treat either as a failed,
// non-fatal removal.
func (s *Store) RemoveNode(sess *conversation.Session, nodeID string) bool {
	tree := sess.Tree()
	if tree == nil {
		slog.Warn("session tree missing", "conversation_id", sess.ID)
		return false
	}

	removed := s.trees.RemoveNode(tree, nodeID)
	if removed {
		slog.Info("node removed", "conversation_id", sess.ID, "node_id", nodeID)
	} else {
		slog.Warn("node removal failed", "conversation_id", sess.ID, "node_id", nodeID)
	}
	return removed
}

// Stats is a point-in-time snapshot; each field is a single map read and
// the fields are not mutually consistent.
type Stats struct {
	TotalSessions           int            `json:"totalSessions"`
	ActiveActors            int            `json:"activeUsers"`
	ActorSessionCounts      map[string]int `json:"userSessionCounts"`
	AverageSessionsPerActor float64        `json:"averageSessionsPerUser"`
	Timestamp               int64          `json:"timestamp"`
}

// Statistics assembles the current session distribution.
func (s *Store) Statistics() Stats {
	total := 0
	s.sessions.Range(func(_, _ any) bool {
		total++
		return true
	})

	counts := make(map[string]int)
	indexed := 0
	s.actorIndex.Range(func(k, v any) bool {
		entry := v.(*indexEntry)
		entry.mu.Lock()
		n := len(entry.ids)
		entry.mu.Unlock()
		counts[k.(string)] = n
		indexed += n
		return true
	})

	avg := 0.0
	if len(counts) > 0 {
		avg = float64(indexed) / float64(len(counts))
	}

	return Stats{
		TotalSessions:           total,
		ActiveActors:            len(counts),
		ActorSessionCounts:      counts,
		AverageSessionsPerActor: avg,
		Timestamp:               time.Now().UnixMilli(),
	}
}

func (s *Store) indexFor(actorID string) *indexEntry {
	if v, ok := s.actorIndex.Load(actorID); ok {
		return v.(*indexEntry)
	}
	v, _ := s.actorIndex.LoadOrStore(actorID, &indexEntry{ids: make(map[string]struct{})})
	return v.(*indexEntry)
}

func (e *indexEntry) add(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ids[id] = struct{}{}
}

func (e *indexEntry) remove(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.ids, id)
}
