package conversation

import (
	"fmt"
	"sync"
)

// QaNode is a single question in the tree. The answer stays empty until
// the client responds.
type QaNode struct {
	ID       string `json:"id"`
	ParentID string `json:"parentId,omitempty"`
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
}

// QaTree holds the question/answer structure of one conversation.
// Structural edits are individually atomic; cross-call ordering is the
// caller's concern.
type QaTree struct {
	mu       sync.RWMutex
	nodes    map[string]*QaNode
	children map[string][]string
	rootID   string
	latestID string
}

// Has reports whether the node exists.
func (t *QaTree) Has(nodeID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.nodes[nodeID]
	return ok
}

// RootID returns the id of the structural root, always "1".
func (t *QaTree) RootID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rootID
}

// LatestNodeID returns the id of the most recently added node.
func (t *QaTree) LatestNodeID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.latestID
}

// Size returns the number of live nodes.
func (t *QaTree) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// TreeDomain owns tree construction and structural edits.
type TreeDomain interface {
	// CreateTree materializes a tree whose root node id is exactly "1",
	// seeded with the initial question. Node ids come from the session's
	// counter.
	CreateTree(initialQuestion string, session *Session) *QaTree

	// AppendNode adds a question under parentID with a freshly allocated
	// id and returns the new node.
	AppendNode(tree *QaTree, session *Session, parentID, question string) (*QaNode, error)

	// AnswerNode records the answer payload on an existing node.
	AnswerNode(tree *QaTree, nodeID, answer string) bool

	// GetNodeQuestion returns the node's question text. An empty string
	// means the node does not exist or has no question; callers treat
	// both the same.
	GetNodeQuestion(tree *QaTree, nodeID string) string

	// GetNode returns a copy of the node, if present.
	GetNode(tree *QaTree, nodeID string) (QaNode, bool)

	// RemoveNode removes the node and its subtree. False means the tree
	// is absent or the node is unknown; neither is fatal.
	RemoveNode(tree *QaTree, nodeID string) bool
}

type treeDomain struct{}

// NewTreeDomain returns the in-memory tree implementation.
func NewTreeDomain() TreeDomain {
	return treeDomain{}
}

func (treeDomain) CreateTree(initialQuestion string, session *Session) *QaTree {
	rootID := session.NextNodeID()
	root := &QaNode{ID: rootID, Question: initialQuestion}

	return &QaTree{
		nodes:    map[string]*QaNode{rootID: root},
		children: make(map[string][]string),
		rootID:   rootID,
		latestID: rootID,
	}
}

func (treeDomain) AppendNode(tree *QaTree, session *Session, parentID, question string) (*QaNode, error) {
	if tree == nil {
		return nil, fmt.Errorf("append node: tree is nil")
	}

	tree.mu.Lock()
	defer tree.mu.Unlock()

	if _, ok := tree.nodes[parentID]; !ok {
		return nil, fmt.Errorf("append node: parent %s not found", parentID)
	}

	node := &QaNode{
		ID:       session.NextNodeID(),
		ParentID: parentID,
		Question: question,
	}
	tree.nodes[node.ID] = node
	tree.children[parentID] = append(tree.children[parentID], node.ID)
	tree.latestID = node.ID

	copied := *node
	return &copied, nil
}

func (treeDomain) AnswerNode(tree *QaTree, nodeID, answer string) bool {
	if tree == nil {
		return false
	}

	tree.mu.Lock()
	defer tree.mu.Unlock()

	node, ok := tree.nodes[nodeID]
	if !ok {
		return false
	}
	node.Answer = answer
	return true
}

func (treeDomain) GetNodeQuestion(tree *QaTree, nodeID string) string {
	if tree == nil {
		return ""
	}

	tree.mu.RLock()
	defer tree.mu.RUnlock()

	node, ok := tree.nodes[nodeID]
	if !ok {
		return ""
	}
	return node.Question
}

func (treeDomain) GetNode(tree *QaTree, nodeID string) (QaNode, bool) {
	if tree == nil {
		return QaNode{}, false
	}

	tree.mu.RLock()
	defer tree.mu.RUnlock()

	node, ok := tree.nodes[nodeID]
	if !ok {
		return QaNode{}, false
	}
	return *node, true
}

func (treeDomain) RemoveNode(tree *QaTree, nodeID string) bool {
	if tree == nil {
		return false
	}

	tree.mu.Lock()
	defer tree.mu.Unlock()

	node, ok := tree.nodes[nodeID]
	if !ok {
		return false
	}
	if nodeID == tree.rootID {
		// The root is structural; a tree never loses node "1".
		return false
	}

	// Remove the node and everything below it; regeneration is keyed on
	// the parent, so orphan children would never be reachable again.
	stack := []string{nodeID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		stack = append(stack, tree.children[id]...)
		delete(tree.nodes, id)
		delete(tree.children, id)
	}

	if parent := node.ParentID; parent != "" {
		siblings := tree.children[parent]
		for i, id := range siblings {
			if id == nodeID {
				tree.children[parent] = append(siblings[:i], siblings[i+1:]...)
				break
			}
		}
	}

	if _, ok := tree.nodes[tree.latestID]; !ok {
		tree.latestID = node.ParentID
	}
	return true
}
