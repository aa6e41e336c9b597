package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/timemachinelab/prompto-lab/backend/internal/config"
	"github.com/timemachinelab/prompto-lab/backend/internal/handler"
	"github.com/timemachinelab/prompto-lab/backend/internal/logging"
	"github.com/timemachinelab/prompto-lab/backend/internal/model/actor"
	"github.com/timemachinelab/prompto-lab/backend/internal/model/conversation"
	"github.com/timemachinelab/prompto-lab/backend/internal/service/ai"
	"github.com/timemachinelab/prompto-lab/backend/internal/service/interaction"
	"github.com/timemachinelab/prompto-lab/backend/internal/service/push"
	"github.com/timemachinelab/prompto-lab/backend/internal/service/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Init()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, continuing with system environment", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	actors := actor.NewRegistry()
	trees := conversation.NewTreeDomain()
	sessions := session.NewStore(actors, trees)

	pushRegistry := push.NewRegistry(cfg.Push.Buffer)
	dispatcher := push.NewDispatcher(pushRegistry)

	var generator ai.Generator
	if cfg.AI.Enabled() {
		einoGen, err := ai.NewEinoGenerator(ctx, cfg.AI)
		if err != nil {
			slog.Warn("failed to initialize question generator, falling back to echo", "error", err)
			generator = ai.EchoGenerator{}
		} else {
			slog.Info("question generator initialized")
			generator = einoGen
		}
	} else {
		slog.Info("Ark 凭证未配置，使用离线问题生成器")
		generator = ai.EchoGenerator{}
	}

	messages := ai.NewService(trees, dispatcher, generator)
	orchestrator := interaction.New(sessions, trees, pushRegistry, dispatcher, messages)

	router := handler.NewRouter(actors, orchestrator)

	startServer(ctx, cfg.Server, router)

	// Let in-flight generations drain before exit.
	messages.Wait()
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("prompto-lab backend listening", "addr", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
