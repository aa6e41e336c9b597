package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	interactionHandler "github.com/timemachinelab/prompto-lab/backend/internal/handler/interaction"
	middlewarePkg "github.com/timemachinelab/prompto-lab/backend/internal/middleware"
	"github.com/timemachinelab/prompto-lab/backend/internal/model/actor"
	"github.com/timemachinelab/prompto-lab/backend/internal/service/interaction"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(actors *actor.Registry, orchestrator *interaction.Orchestrator) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	h := interactionHandler.New(actors, orchestrator)

	r.Route("/api/user-interaction", func(api chi.Router) {
		h.RegisterRoutes(api)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
