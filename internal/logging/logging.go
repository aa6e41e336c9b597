// Package logging configures the application-wide structured logger.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init builds the process logger from LOG_LEVEL and LOG_FORMAT and installs
// it as the slog default. Level defaults to info, format to text.
func Init() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(os.Getenv("LOG_FORMAT")), "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// WithActor returns a logger annotated with the actor id.
func WithActor(actorID string) *slog.Logger {
	return slog.Default().With("actor_id", actorID)
}

// WithSession returns a logger annotated with the conversation id.
func WithSession(conversationID string) *slog.Logger {
	return slog.Default().With("conversation_id", conversationID)
}
