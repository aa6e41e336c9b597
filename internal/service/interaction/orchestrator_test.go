package interaction

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timemachinelab/prompto-lab/backend/internal/apperr"
	"github.com/timemachinelab/prompto-lab/backend/internal/model/actor"
	"github.com/timemachinelab/prompto-lab/backend/internal/model/conversation"
	"github.com/timemachinelab/prompto-lab/backend/internal/service/ai"
	"github.com/timemachinelab/prompto-lab/backend/internal/service/push"
	"github.com/timemachinelab/prompto-lab/backend/internal/service/session"
)

type scriptedGenerator struct {
	question string
}

func (g scriptedGenerator) GenerateQuestion(context.Context, *conversation.Session, string) (string, error) {
	return g.question, nil
}

type fixture struct {
	orchestrator *Orchestrator
	actors       *actor.Registry
	sessions     *session.Store
	registry     *push.Registry
	messages     *ai.Service
}

func newFixture(question string) *fixture {
	actors := actor.NewRegistry()
	trees := conversation.NewTreeDomain()
	sessions := session.NewStore(actors, trees)
	registry := push.NewRegistry(8)
	dispatcher := push.NewDispatcher(registry)
	messages := ai.NewService(trees, dispatcher, scriptedGenerator{question: question})

	return &fixture{
		orchestrator: New(sessions, trees, registry, dispatcher, messages),
		actors:       actors,
		sessions:     sessions,
		registry:     registry,
		messages:     messages,
	}
}

func inputAnswer(sessionID, nodeID, text string) *ai.AnswerRequest {
	raw, _ := json.Marshal(text)
	return &ai.AnswerRequest{
		SessionID:    sessionID,
		NodeID:       nodeID,
		QuestionType: ai.QuestionTypeInput,
		Answer:       json.RawMessage(raw),
	}
}

func TestSubmitAnswerCreatesSession(t *testing.T) {
	f := newFixture("你的目标用户是谁？")
	a := f.actors.GetOrCreate("u1")
	ch := f.orchestrator.EstablishChannel(a)
	<-ch.Events() // connected handshake

	req := inputAnswer("", "", "想做一个笔记应用")
	req.User = "独立开发者"

	result, err := f.orchestrator.SubmitAnswer(a, req)
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, "1", result.NodeID)
	assert.NotEmpty(t, result.SessionID)

	sess, ok := f.sessions.ValidateAndGet("u1", result.SessionID)
	require.True(t, ok)
	assert.Equal(t, "独立开发者", sess.Profile())

	root, ok := conversation.NewTreeDomain().GetNode(sess.Tree(), "1")
	require.True(t, ok)
	assert.Equal(t, session.WelcomeQuestion, root.Question)
	assert.Equal(t, "想做一个笔记应用", root.Answer)

	f.messages.Wait()
	ev := <-ch.Events()
	payload, ok := ev.Payload.(push.QuestionEvent)
	require.True(t, ok)
	assert.Equal(t, "你的目标用户是谁？", payload.Question)
	assert.Equal(t, "2", payload.CurrentNodeID)
	assert.Equal(t, "1", payload.ParentNodeID)
	assert.Equal(t, 2, sess.Tree().Size())
}

func TestSubmitAnswerUnknownSession(t *testing.T) {
	f := newFixture("next")
	a := f.actors.GetOrCreate("u1")

	_, err := f.orchestrator.SubmitAnswer(a, inputAnswer("does-not-exist", "1", "回答"))
	assert.ErrorIs(t, err, apperr.ErrSessionNotFound)
	assert.Equal(t, 0, f.sessions.Statistics().TotalSessions)
}

func TestSubmitAnswerCrossActor(t *testing.T) {
	f := newFixture("next")
	owner := f.actors.GetOrCreate("u1")
	intruder := f.actors.GetOrCreate("u2")

	created, err := f.orchestrator.SubmitAnswer(owner, inputAnswer("", "", "第一条回答"))
	require.NoError(t, err)
	f.messages.Wait()

	sess, _ := f.sessions.ValidateAndGet("u1", created.SessionID)
	sizeBefore := sess.Tree().Size()

	_, err = f.orchestrator.SubmitAnswer(intruder, inputAnswer(created.SessionID, "1", "越权回答"))
	assert.ErrorIs(t, err, apperr.ErrSessionNotFound)
	f.messages.Wait()
	assert.Equal(t, sizeBefore, sess.Tree().Size())
}

func TestSubmitAnswerInvalidNode(t *testing.T) {
	f := newFixture("next")
	a := f.actors.GetOrCreate("u1")

	created, err := f.orchestrator.SubmitAnswer(a, inputAnswer("", "", "第一条回答"))
	require.NoError(t, err)
	f.messages.Wait()

	_, err = f.orchestrator.SubmitAnswer(a, inputAnswer(created.SessionID, "99", "回答"))
	assert.ErrorIs(t, err, apperr.ErrInvalidNodeID)

	_, err = f.orchestrator.SubmitAnswer(a, inputAnswer(created.SessionID, "", "回答"))
	assert.ErrorIs(t, err, apperr.ErrInvalidNodeID)
}

func TestSubmitAnswerMalformed(t *testing.T) {
	f := newFixture("next")
	a := f.actors.GetOrCreate("u1")

	req := &ai.AnswerRequest{
		QuestionType: ai.QuestionTypeMultiple,
		Answer:       json.RawMessage(`"不是列表"`),
	}
	_, err := f.orchestrator.SubmitAnswer(a, req)
	assert.ErrorIs(t, err, apperr.ErrMalformedAnswer)

	// Validation happens after the implicit session creation, so the
	// session exists but its root stays unanswered.
	stats := f.sessions.Statistics()
	require.Equal(t, 1, stats.TotalSessions)
	owner, _ := f.actors.Get("u1")
	sess := owner.LatestSession()
	root, _ := conversation.NewTreeDomain().GetNode(sess.Tree(), "1")
	assert.Empty(t, root.Answer)
}

func TestRetryNode(t *testing.T) {
	f := newFixture("重新生成的问题")
	a := f.actors.GetOrCreate("u1")
	ch := f.orchestrator.EstablishChannel(a)
	<-ch.Events()

	created, err := f.orchestrator.SubmitAnswer(a, inputAnswer("", "", "第一条回答"))
	require.NoError(t, err)
	f.messages.Wait()
	<-ch.Events() // question for node "2"

	result, err := f.orchestrator.RetryNode(a, &RetryRequest{
		SessionID: created.SessionID,
		NodeID:    "2",
		WhyRetry:  "问得太宽泛",
	})
	require.NoError(t, err)
	assert.Equal(t, "2", result.NodeID)
	assert.Equal(t, "问得太宽泛", result.WhyRetry)

	f.messages.Wait()
	sess, _ := f.sessions.ValidateAndGet("u1", created.SessionID)
	assert.False(t, sess.HasNode("2"))
	assert.True(t, sess.HasNode("3"))

	ev := <-ch.Events()
	payload, ok := ev.Payload.(push.QuestionEvent)
	require.True(t, ok)
	assert.Equal(t, "重新生成的问题", payload.Question)
	assert.Equal(t, "3", payload.CurrentNodeID)
	assert.Equal(t, "1", payload.ParentNodeID)
}

func TestRetryNodeUnknownSession(t *testing.T) {
	f := newFixture("next")
	a := f.actors.GetOrCreate("u1")

	_, err := f.orchestrator.RetryNode(a, &RetryRequest{SessionID: "missing", NodeID: "1"})
	assert.ErrorIs(t, err, apperr.ErrSessionNotFound)
}

func TestRetryNodeUnknownNode(t *testing.T) {
	f := newFixture("next")
	a := f.actors.GetOrCreate("u1")
	created, err := f.orchestrator.SubmitAnswer(a, inputAnswer("", "", "第一条回答"))
	require.NoError(t, err)
	f.messages.Wait()

	_, err = f.orchestrator.RetryNode(a, &RetryRequest{SessionID: created.SessionID, NodeID: "77"})
	assert.ErrorIs(t, err, apperr.ErrNodeNotFound)
}

// Retrying the root cannot remove it; the removal failure is advisory and
// the replacement grows under the root.
func TestRetryRootNode(t *testing.T) {
	f := newFixture("换个开场问题")
	a := f.actors.GetOrCreate("u1")
	created, err := f.orchestrator.SubmitAnswer(a, inputAnswer("", "", "第一条回答"))
	require.NoError(t, err)
	f.messages.Wait()

	_, err = f.orchestrator.RetryNode(a, &RetryRequest{SessionID: created.SessionID, NodeID: "1"})
	require.NoError(t, err)
	f.messages.Wait()

	sess, _ := f.sessions.ValidateAndGet("u1", created.SessionID)
	assert.True(t, sess.HasNode("1"))
	node, ok := conversation.NewTreeDomain().GetNode(sess.Tree(), sess.Tree().LatestNodeID())
	require.True(t, ok)
	assert.Equal(t, "换个开场问题", node.Question)
	assert.Equal(t, "1", node.ParentID)
}

func TestGeneratePrompt(t *testing.T) {
	f := newFixture("next")
	a := f.actors.GetOrCreate("u1")
	ch := f.orchestrator.EstablishChannel(a)
	<-ch.Events()

	created, err := f.orchestrator.SubmitAnswer(a, inputAnswer("", "", "第一条回答"))
	require.NoError(t, err)
	f.messages.Wait()
	<-ch.Events()

	result, err := f.orchestrator.GeneratePrompt(a, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, ai.GenPromptAgentPrompt, result.GenPrompt)

	ev := <-ch.Events()
	payload, ok := ev.Payload.(push.PromptEvent)
	require.True(t, ok)
	assert.Equal(t, ai.GenPromptAgentPrompt, payload.GenPrompt)
}

func TestGeneratePromptUnknownSession(t *testing.T) {
	f := newFixture("next")
	a := f.actors.GetOrCreate("u1")

	_, err := f.orchestrator.GeneratePrompt(a, "missing")
	assert.ErrorIs(t, err, apperr.ErrSessionNotFound)
}

func TestChannelLifecycleThroughOrchestrator(t *testing.T) {
	f := newFixture("next")
	a := f.actors.GetOrCreate("u1")

	ch := f.orchestrator.EstablishChannel(a)
	assert.Equal(t, int64(1), f.orchestrator.ChannelStatus().ActiveConnections)

	f.orchestrator.ReleaseChannel(a, ch, push.StateClosed)
	assert.Equal(t, int64(0), f.orchestrator.ChannelStatus().ActiveConnections)
	assert.Equal(t, int64(1), f.orchestrator.ChannelStatus().TotalConnections)
}
