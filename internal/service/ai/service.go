// Package ai adapts answers and retries into generation inputs, runs the
// question generator and feeds the result back into the conversation
// tree and the push dispatcher.
package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/timemachinelab/prompto-lab/backend/internal/logging"
	"github.com/timemachinelab/prompto-lab/backend/internal/model/actor"
	"github.com/timemachinelab/prompto-lab/backend/internal/model/conversation"
	"github.com/timemachinelab/prompto-lab/backend/internal/service/push"
)

// Service is the message-processing collaborator: validate, preprocess,
// generate, append to the tree, notify.
type Service struct {
	trees      conversation.TreeDomain
	dispatcher *push.Dispatcher
	generator  Generator

	wg sync.WaitGroup
}

// NewService wires the message-processing service.
func NewService(trees conversation.TreeDomain, dispatcher *push.Dispatcher, generator Generator) *Service {
	return &Service{trees: trees, dispatcher: dispatcher, generator: generator}
}

// ValidateAnswer checks the answer shape against its question type.
func (s *Service) ValidateAnswer(req *AnswerRequest) bool {
	return ValidateAnswer(req)
}

// PreprocessMessage turns a validated answer into the generation input:
// the answered question, the flattened answer text and, when present,
// the user profile and an extra raw message.
func (s *Service) PreprocessMessage(raw string, req *AnswerRequest, sess *conversation.Session) string {
	var b strings.Builder

	if profile := sess.Profile(); profile != "" {
		fmt.Fprintf(&b, "用户背景: %s\n", profile)
	}
	if question := s.trees.GetNodeQuestion(sess.Tree(), req.NodeID); question != "" {
		fmt.Fprintf(&b, "问题: %s\n", question)
	}
	fmt.Fprintf(&b, "回答(%s): %s", req.QuestionType, flattenAnswer(req))
	if raw != "" {
		fmt.Fprintf(&b, "\n补充: %s", raw)
	}
	return b.String()
}

// ProcessRetryMessage turns a retry into the regeneration input. The
// removed node is passed in because it no longer exists in the tree.
func (s *Service) ProcessRetryMessage(sess *conversation.Session, node conversation.QaNode, reason string) string {
	var b strings.Builder
	if profile := sess.Profile(); profile != "" {
		fmt.Fprintf(&b, "用户背景: %s\n", profile)
	}
	fmt.Fprintf(&b, "用户对以下问题不满意: %s\n", node.Question)
	if strings.TrimSpace(reason) != "" {
		fmt.Fprintf(&b, "不满意的原因: %s\n", reason)
	}
	b.WriteString("请基于同一上下文重新生成一个更合适的问题。")
	return b.String()
}

// RecordAnswer stores the flattened answer on the answered node so the
// tree reflects the full exchange.
func (s *Service) RecordAnswer(sess *conversation.Session, req *AnswerRequest) {
	if !s.trees.AnswerNode(sess.Tree(), req.NodeID, flattenAnswer(req)) {
		slog.Warn("answer not recorded", "conversation_id", sess.ID, "node_id", req.NodeID)
	}
}

// ProcessAndSendMessage forwards the message to the generation backend
// asynchronously. The generated question is appended under parentID and
// then pushed through the dispatcher; every failure is contained here.
func (s *Service) ProcessAndSendMessage(a *actor.Actor, sess *conversation.Session, parentID, message string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.generateAndNotify(context.Background(), a, sess, parentID, message)
	}()
}

// Wait blocks until all in-flight generations finished. Used on shutdown
// and by tests.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) generateAndNotify(ctx context.Context, a *actor.Actor, sess *conversation.Session, parentID, message string) {
	log := logging.WithSession(sess.ID)

	question, err := s.generator.GenerateQuestion(ctx, sess, message)
	if err != nil {
		log.Error("question generation failed", "actor_id", a.ID, "error", err)
		return
	}

	node, err := s.trees.AppendNode(sess.Tree(), sess, parentID, question)
	if err != nil {
		log.Error("generated question not appended", "parent_node_id", parentID, "error", err)
		return
	}

	s.dispatcher.SendQuestionEvent(a, sess, question, node.ID, node.ParentID)
}
