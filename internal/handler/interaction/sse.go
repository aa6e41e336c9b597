package interaction

import (
	"net/http"
	"time"

	"github.com/timemachinelab/prompto-lab/backend/internal/apperr"
	"github.com/timemachinelab/prompto-lab/backend/internal/logging"
	"github.com/timemachinelab/prompto-lab/backend/internal/middleware"
	"github.com/timemachinelab/prompto-lab/backend/internal/service/push"
	"github.com/timemachinelab/prompto-lab/backend/pkg/utils"
)

// keepAliveInterval paces SSE comment lines so intermediaries do not cut
// the idle connection; the channel itself has no idle timeout.
const keepAliveInterval = 25 * time.Second

// handleSSE 建立SSE推送通道并持续写出事件直到连接结束
func (h *Handler) handleSSE(w http.ResponseWriter, r *http.Request) {
	a, ok := middleware.ActorFrom(r.Context())
	if !ok {
		respondAppError(w, apperr.ErrUnauthenticated)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)
	flusher.Flush()

	ch := h.orchestrator.EstablishChannel(a)
	log := logging.WithActor(a.ID)
	log.Info("sse stream opened")

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.orchestrator.ReleaseChannel(a, ch, push.StateClosed)
			log.Info("sse stream closed by client")
			return

		case <-ch.Done():
			// Terminated elsewhere (e.g. send-side detach); stop writing.
			log.Info("sse stream terminated", "state", ch.State().String())
			return

		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher); err != nil {
				h.orchestrator.ReleaseChannel(a, ch, push.StateErrored)
				log.Warn("sse keepalive failed", "error", err)
				return
			}

		case ev := <-ch.Events():
			if err := utils.SendSSEEvent(w, flusher, ev.Name, ev.Payload); err != nil {
				h.orchestrator.ReleaseChannel(a, ch, push.StateErrored)
				log.Warn("sse write failed", "event", ev.Name, "error", err)
				return
			}
		}
	}
}
