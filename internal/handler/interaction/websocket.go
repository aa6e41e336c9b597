package interaction

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/timemachinelab/prompto-lab/backend/internal/apperr"
	"github.com/timemachinelab/prompto-lab/backend/internal/logging"
	"github.com/timemachinelab/prompto-lab/backend/internal/middleware"
	"github.com/timemachinelab/prompto-lab/backend/internal/service/push"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsEvent 是WebSocket推送通道的线格式
type wsEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// handleWebSocket 建立WebSocket推送通道，与SSE通道语义一致
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	a, ok := middleware.ActorFrom(r.Context())
	if !ok {
		respondAppError(w, apperr.ErrUnauthenticated)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "actor_id", a.ID, "error", err)
		return
	}
	defer conn.Close()

	ch := h.orchestrator.EstablishChannel(a)
	log := logging.WithActor(a.ID)
	log.Info("websocket stream opened")

	// The channel is push-only; the read pump exists to observe the
	// client closing the connection.
	readClosed := make(chan struct{})
	go func() {
		defer close(readClosed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-readClosed:
			h.orchestrator.ReleaseChannel(a, ch, push.StateClosed)
			log.Info("websocket stream closed by client")
			return

		case <-ch.Done():
			log.Info("websocket stream terminated", "state", ch.State().String())
			return

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				h.orchestrator.ReleaseChannel(a, ch, push.StateErrored)
				log.Warn("websocket ping failed", "error", err)
				return
			}

		case ev := <-ch.Events():
			if err := conn.WriteJSON(wsEvent{Event: ev.Name, Data: ev.Payload}); err != nil {
				h.orchestrator.ReleaseChannel(a, ch, push.StateErrored)
				log.Warn("websocket write failed", "event", ev.Name, "error", err)
				return
			}
		}
	}
}
