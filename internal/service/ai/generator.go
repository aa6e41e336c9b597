package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/timemachinelab/prompto-lab/backend/internal/config"
	"github.com/timemachinelab/prompto-lab/backend/internal/model/conversation"
)

// Generator produces the next question from a preprocessed message. The
// call blocks for the duration of the backend round trip; no timeout is
// imposed here.
type Generator interface {
	GenerateQuestion(ctx context.Context, sess *conversation.Session, message string) (string, error)
}

// EinoGenerator runs the question-generation chain against the configured
// Ark chat model.
type EinoGenerator struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewEinoGenerator compiles the prompt-template → chat-model chain.
func NewEinoGenerator(ctx context.Context, cfg config.AIConfig) (*EinoGenerator, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile question chain: %w", err)
	}

	return &EinoGenerator{chain: runnable}, nil
}

// GenerateQuestion invokes the chain and returns the generated question.
func (g *EinoGenerator) GenerateQuestion(ctx context.Context, sess *conversation.Session, message string) (string, error) {
	response, err := g.chain.Invoke(ctx, map[string]any{
		"system": QuestionAgentPrompt,
		"query":  message,
	})
	if err != nil {
		return "", fmt.Errorf("failed to run question chain: %w", err)
	}

	question := strings.TrimSpace(response.Content)
	if question == "" {
		return "", fmt.Errorf("question chain returned empty content")
	}
	return question, nil
}

// EchoGenerator is the offline fallback used when no model credentials
// are configured. It keeps the conversation loop functional by deriving a
// deterministic follow-up from the answer text.
type EchoGenerator struct{}

// GenerateQuestion derives a canned follow-up question.
func (EchoGenerator) GenerateQuestion(_ context.Context, _ *conversation.Session, message string) (string, error) {
	line := message
	if idx := strings.LastIndex(line, ": "); idx >= 0 {
		line = line[idx+2:]
	}
	if len([]rune(line)) > 20 {
		line = string([]rune(line)[:20]) + "…"
	}
	return fmt.Sprintf("关于「%s」，能再具体展开说说吗？", line), nil
}
