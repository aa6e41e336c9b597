// Package interaction sequences the use cases: resolve and validate the
// session, mutate the tree, then notify. A notification is only pushed
// after every validation passed and the mutation is visible.
package interaction

import (
	"log/slog"
	"time"

	"github.com/timemachinelab/prompto-lab/backend/internal/apperr"
	"github.com/timemachinelab/prompto-lab/backend/internal/model/actor"
	"github.com/timemachinelab/prompto-lab/backend/internal/model/conversation"
	"github.com/timemachinelab/prompto-lab/backend/internal/service/ai"
	"github.com/timemachinelab/prompto-lab/backend/internal/service/push"
	"github.com/timemachinelab/prompto-lab/backend/internal/service/session"
)

// Orchestrator coordinates the session store, the tree domain, the
// message-processing service and the push layer. Every operation takes
// the resolved actor explicitly; there is no ambient request state.
type Orchestrator struct {
	sessions   *session.Store
	trees      conversation.TreeDomain
	registry   *push.Registry
	dispatcher *push.Dispatcher
	messages   *ai.Service
}

// New wires the orchestrator.
func New(sessions *session.Store, trees conversation.TreeDomain, registry *push.Registry, dispatcher *push.Dispatcher, messages *ai.Service) *Orchestrator {
	return &Orchestrator{
		sessions:   sessions,
		trees:      trees,
		registry:   registry,
		dispatcher: dispatcher,
		messages:   messages,
	}
}

// EstablishChannel opens a fresh push channel for the actor and pushes
// the connected handshake. The transport layer drives the channel until
// the connection ends and must then call ReleaseChannel.
func (o *Orchestrator) EstablishChannel(a *actor.Actor) *push.Channel {
	ch := o.registry.Establish(a)
	o.dispatcher.SendConnected(a)
	return ch
}

// ReleaseChannel terminates the channel and detaches it from the actor
// if it is still current.
func (o *Orchestrator) ReleaseChannel(a *actor.Actor, ch *push.Channel, state push.State) {
	o.registry.Release(a, ch, state)
}

// AnswerResult echoes a processed answer back to the caller.
type AnswerResult struct {
	SessionID    string `json:"sessionId"`
	NodeID       string `json:"nodeId"`
	QuestionType string `json:"questionType"`
	ProcessTime  int64  `json:"processTime"`
	Status       string `json:"status"`
}

// SubmitAnswer validates and processes one answer. When no conversation
// id is supplied a new session is created and the answer targets its
// root question.
func (o *Orchestrator) SubmitAnswer(a *actor.Actor, req *ai.AnswerRequest) (*AnswerResult, error) {
	var sess *conversation.Session
	nodeID := req.NodeID

	if req.SessionID == "" {
		sess = o.sessions.CreateSession(a.ID)
		if req.User != "" {
			sess.SetProfile(req.User)
		}
		// First-question path: the answer targets the freshly seeded root.
		nodeID = sess.Tree().LatestNodeID()
		slog.Info("session created for first answer", "actor_id", a.ID, "conversation_id", sess.ID)
	} else {
		found, ok := o.sessions.ValidateAndGet(a.ID, req.SessionID)
		if !ok {
			return nil, apperr.ErrSessionNotFound
		}
		sess = found
	}

	if nodeID == "" || !sess.HasNode(nodeID) {
		slog.Warn("invalid node id", "conversation_id", sess.ID, "node_id", nodeID)
		return nil, apperr.ErrInvalidNodeID
	}
	req.NodeID = nodeID

	if !o.messages.ValidateAnswer(req) {
		slog.Warn("answer shape rejected", "conversation_id", sess.ID, "question_type", req.QuestionType)
		return nil, apperr.ErrMalformedAnswer
	}

	o.messages.RecordAnswer(sess, req)

	message := o.messages.PreprocessMessage("", req, sess)
	o.messages.ProcessAndSendMessage(a, sess, nodeID, message)

	return &AnswerResult{
		SessionID:    sess.ID,
		NodeID:       nodeID,
		QuestionType: req.QuestionType,
		ProcessTime:  time.Now().UnixMilli(),
		Status:       "success",
	}, nil
}

// RetryRequest asks for a node's question to be regenerated.
type RetryRequest struct {
	SessionID string `json:"sessionId"`
	NodeID    string `json:"nodeId"`
	WhyRetry  string `json:"whyretry"`
}

// RetryResult echoes a processed retry back to the caller.
type RetryResult struct {
	SessionID   string `json:"sessionId"`
	NodeID      string `json:"nodeId"`
	WhyRetry    string `json:"whyretry"`
	ProcessTime int64  `json:"processTime"`
}

// RetryNode removes the node and asks the generator for a replacement
// keyed on the parent. The removal is advisory cleanup: its failure is
// logged and the retry continues.
func (o *Orchestrator) RetryNode(a *actor.Actor, req *RetryRequest) (*RetryResult, error) {
	sess, ok := o.sessions.ValidateAndGet(a.ID, req.SessionID)
	if !ok {
		return nil, apperr.ErrSessionNotFound
	}

	node, ok := o.trees.GetNode(sess.Tree(), req.NodeID)
	if !ok {
		slog.Warn("retry for unknown node", "conversation_id", sess.ID, "node_id", req.NodeID)
		return nil, apperr.ErrNodeNotFound
	}
	if node.Question == "" {
		slog.Warn("retry for empty question", "conversation_id", sess.ID, "node_id", req.NodeID)
		return nil, apperr.ErrEmptyQuestion
	}

	if !o.sessions.RemoveNode(sess, req.NodeID) {
		slog.Warn("node removal failed, continuing retry",
			"conversation_id", sess.ID, "node_id", req.NodeID)
	}

	parentID := node.ParentID
	if parentID == "" {
		// Retrying the root regenerates under the root itself.
		parentID = sess.Tree().RootID()
	}

	message := o.messages.ProcessRetryMessage(sess, node, req.WhyRetry)
	o.messages.ProcessAndSendMessage(a, sess, parentID, message)

	return &RetryResult{
		SessionID:   req.SessionID,
		NodeID:      req.NodeID,
		WhyRetry:    req.WhyRetry,
		ProcessTime: time.Now().UnixMilli(),
	}, nil
}

// PromptResult carries the generated prompt template.
type PromptResult struct {
	SessionID    string `json:"sessionId"`
	GenPrompt    string `json:"genPrompt"`
	GenerateTime int64  `json:"generateTime"`
	Status       string `json:"status"`
}

// GeneratePrompt pushes the static prompt template for the conversation.
func (o *Orchestrator) GeneratePrompt(a *actor.Actor, conversationID string) (*PromptResult, error) {
	sess, ok := o.sessions.ValidateAndGet(a.ID, conversationID)
	if !ok {
		return nil, apperr.ErrSessionNotFound
	}

	o.dispatcher.SendPrompt(a, sess, ai.GenPromptAgentPrompt)
	slog.Info("prompt generated", "conversation_id", conversationID)

	return &PromptResult{
		SessionID:    conversationID,
		GenPrompt:    ai.GenPromptAgentPrompt,
		GenerateTime: time.Now().UnixMilli(),
		Status:       "success",
	}, nil
}

// ChannelStatus reads through to the push registry snapshot.
func (o *Orchestrator) ChannelStatus() push.Status {
	return o.dispatcher.Status()
}

// Statistics reads through to the session store snapshot.
func (o *Orchestrator) Statistics() session.Stats {
	return o.sessions.Statistics()
}
