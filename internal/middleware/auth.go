// Package middleware holds cross-cutting HTTP middleware: CORS and the
// actor resolution gate.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/timemachinelab/prompto-lab/backend/internal/apperr"
	"github.com/timemachinelab/prompto-lab/backend/internal/model/actor"
	"github.com/timemachinelab/prompto-lab/backend/pkg/utils"
)

type ctxKey struct{}

// ActorCookie names the cookie carrying the actor id issued by the token
// endpoint.
const ActorCookie = "userId"

// RequireActor resolves the caller's actor from the identity cookie once
// per request and injects it into the context. Handlers read it with
// ActorFrom and pass it explicitly into every service call; nothing
// below the transport boundary reads ambient request state.
func RequireActor(actors *actor.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(ActorCookie)
			if err != nil || cookie.Value == "" {
				slog.Warn("request without actor cookie", "path", r.URL.Path)
				failure := apperr.ErrUnauthenticated
				utils.RespondFailure(w, http.StatusUnauthorized, failure.Code, failure.Reason)
				return
			}

			a, ok := actors.Get(cookie.Value)
			if !ok {
				slog.Warn("request for unknown actor", "actor_id", cookie.Value, "path", r.URL.Path)
				failure := apperr.ErrUnknownActor
				utils.RespondFailure(w, http.StatusUnauthorized, failure.Code, failure.Reason)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, a)))
		})
	}
}

// ActorFrom returns the actor resolved by RequireActor.
func ActorFrom(ctx context.Context) (*actor.Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(*actor.Actor)
	return a, ok
}
