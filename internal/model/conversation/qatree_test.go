package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTree(t *testing.T) (*Session, *QaTree, TreeDomain) {
	t.Helper()
	sess := NewSession("u1")
	domain := NewTreeDomain()
	tree := domain.CreateTree("你好，我有什么可以帮你？", sess)
	sess.AttachTree(tree)
	return sess, tree, domain
}

func TestCreateTreeRoot(t *testing.T) {
	_, tree, domain := newTestTree(t)

	assert.Equal(t, "1", tree.RootID())
	assert.Equal(t, "1", tree.LatestNodeID())
	assert.Equal(t, 1, tree.Size())
	assert.Equal(t, "你好，我有什么可以帮你？", domain.GetNodeQuestion(tree, "1"))
}

func TestAppendNode(t *testing.T) {
	sess, tree, domain := newTestTree(t)

	node, err := domain.AppendNode(tree, sess, "1", "第二个问题")
	require.NoError(t, err)
	assert.Equal(t, "2", node.ID)
	assert.Equal(t, "1", node.ParentID)
	assert.Equal(t, "2", tree.LatestNodeID())
	assert.True(t, tree.Has("2"))
}

func TestAppendNodeUnknownParent(t *testing.T) {
	sess, tree, domain := newTestTree(t)

	_, err := domain.AppendNode(tree, sess, "99", "孤儿问题")
	assert.Error(t, err)
	assert.Equal(t, 1, tree.Size())
}

// Node ids keep climbing after a removal; a regrown branch never reuses
// the id of the branch it replaced.
func TestNodeIDsNeverReused(t *testing.T) {
	sess, tree, domain := newTestTree(t)

	node, err := domain.AppendNode(tree, sess, "1", "要重试的问题")
	require.NoError(t, err)
	require.Equal(t, "2", node.ID)

	require.True(t, domain.RemoveNode(tree, "2"))
	assert.False(t, tree.Has("2"))

	regrown, err := domain.AppendNode(tree, sess, "1", "重新生成的问题")
	require.NoError(t, err)
	assert.Equal(t, "3", regrown.ID)
}

func TestAnswerNode(t *testing.T) {
	_, tree, domain := newTestTree(t)

	require.True(t, domain.AnswerNode(tree, "1", "用户画像调研"))
	node, ok := domain.GetNode(tree, "1")
	require.True(t, ok)
	assert.Equal(t, "用户画像调研", node.Answer)

	assert.False(t, domain.AnswerNode(tree, "99", "无处可答"))
}

func TestRemoveNodeSubtree(t *testing.T) {
	sess, tree, domain := newTestTree(t)

	branch, err := domain.AppendNode(tree, sess, "1", "分支")
	require.NoError(t, err)
	leaf, err := domain.AppendNode(tree, sess, branch.ID, "叶子")
	require.NoError(t, err)
	sibling, err := domain.AppendNode(tree, sess, "1", "兄弟分支")
	require.NoError(t, err)

	require.True(t, domain.RemoveNode(tree, branch.ID))
	assert.False(t, tree.Has(branch.ID))
	assert.False(t, tree.Has(leaf.ID))
	assert.True(t, tree.Has(sibling.ID))
	assert.Equal(t, 2, tree.Size())
}

func TestRemoveNodeRefusesRoot(t *testing.T) {
	_, tree, domain := newTestTree(t)

	assert.False(t, domain.RemoveNode(tree, "1"))
	assert.True(t, tree.Has("1"))
}

func TestRemoveNodeAbsent(t *testing.T) {
	_, tree, domain := newTestTree(t)
	assert.False(t, domain.RemoveNode(tree, "404"))
}

func TestSessionNextNodeID(t *testing.T) {
	sess := NewSession("u1")

	assert.Equal(t, "1", sess.NextNodeID())
	assert.Equal(t, "2", sess.NextNodeID())
	assert.Equal(t, "2", sess.CurrentNodeID())
}

func TestSessionProfile(t *testing.T) {
	sess := NewSession("u1")
	assert.Equal(t, "", sess.Profile())

	sess.SetProfile("一名后端工程师")
	assert.Equal(t, "一名后端工程师", sess.Profile())
}
