package conversation

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Session is one conversation owned by a single actor. The question tree
// hangs off the session and allocates node ids from its counter.
type Session struct {
	ID        string
	ActorID   string
	CreatedAt time.Time

	// Profile is the free-form user description forwarded to the
	// question generator alongside answers.
	profile atomic.Value

	// nodeIDCounter only ever increases; node ids are never reused even
	// after a node is removed.
	nodeIDCounter atomic.Int64

	tree atomic.Pointer[QaTree]
}

// NewSession creates the session shell. The tree is attached separately so
// the store can keep a partially built session invisible; use Tree()==nil
// only inside the construction path.
func NewSession(actorID string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		CreatedAt: time.Now().UTC(),
	}
}

// NextNodeID allocates a fresh node id. The first allocation returns "1",
// which is reserved for the structural root.
func (s *Session) NextNodeID() string {
	return strconv.FormatInt(s.nodeIDCounter.Add(1), 10)
}

// CurrentNodeID returns the most recently allocated node id.
func (s *Session) CurrentNodeID() string {
	return strconv.FormatInt(s.nodeIDCounter.Load(), 10)
}

// AttachTree sets the question tree. Called exactly once during creation.
func (s *Session) AttachTree(tree *QaTree) {
	s.tree.Store(tree)
}

// Tree returns the session's question tree.
func (s *Session) Tree() *QaTree {
	return s.tree.Load()
}

// HasNode reports whether nodeID exists in the session's tree.
func (s *Session) HasNode(nodeID string) bool {
	tree := s.Tree()
	return tree != nil && tree.Has(nodeID)
}

// SetProfile records the user description attached to this conversation.
func (s *Session) SetProfile(profile string) {
	s.profile.Store(profile)
}

// Profile returns the recorded user description, if any.
func (s *Session) Profile() string {
	if v, ok := s.profile.Load().(string); ok {
		return v
	}
	return ""
}
