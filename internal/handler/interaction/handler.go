// Package interaction exposes the user-interaction HTTP surface: token
// issuing, push-channel establishment and the answer/retry/prompt calls.
package interaction

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/timemachinelab/prompto-lab/backend/internal/apperr"
	"github.com/timemachinelab/prompto-lab/backend/internal/identity"
	"github.com/timemachinelab/prompto-lab/backend/internal/middleware"
	"github.com/timemachinelab/prompto-lab/backend/internal/model/actor"
	"github.com/timemachinelab/prompto-lab/backend/internal/service/ai"
	"github.com/timemachinelab/prompto-lab/backend/internal/service/interaction"
	"github.com/timemachinelab/prompto-lab/backend/pkg/utils"
)

// Handler 用户交互HTTP处理器
type Handler struct {
	actors       *actor.Registry
	orchestrator *interaction.Orchestrator
}

// New 创建用户交互处理器
func New(actors *actor.Registry, orchestrator *interaction.Orchestrator) *Handler {
	return &Handler{actors: actors, orchestrator: orchestrator}
}

// RegisterRoutes 注册用户交互相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/user/token", h.handleToken)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireActor(h.actors))
		r.Get("/sse", h.handleSSE)
		r.Get("/ws", h.handleWebSocket)
		r.Post("/message", h.handleAnswer)
		r.Post("/retry", h.handleRetry)
		r.Post("/gen-prompt", h.handleGenPrompt)
		r.Get("/sse/status", h.handleStatus)
		r.Get("/stats", h.handleStats)
	})
}

// handleToken 根据请求指纹派发稳定的用户ID
func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	actorID := identity.ActorID(r)
	h.actors.GetOrCreate(actorID)

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.ActorCookie,
		Value:    actorID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	utils.RespondJSON(w, http.StatusOK, map[string]string{"userId": actorID})
}

// handleAnswer 处理统一答案请求
func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	a, ok := middleware.ActorFrom(r.Context())
	if !ok {
		respondAppError(w, apperr.ErrUnauthenticated)
		return
	}

	var req ai.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.orchestrator.SubmitAnswer(a, &req)
	if err != nil {
		respondAppError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, result)
}

// handleRetry 处理节点重试请求
func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	a, ok := middleware.ActorFrom(r.Context())
	if !ok {
		respondAppError(w, apperr.ErrUnauthenticated)
		return
	}

	var req interaction.RetryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" || req.NodeID == "" {
		utils.RespondError(w, http.StatusBadRequest, "sessionId and nodeId are required")
		return
	}

	result, err := h.orchestrator.RetryNode(a, &req)
	if err != nil {
		respondAppError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, result)
}

// handleGenPrompt 生成提示词
func (h *Handler) handleGenPrompt(w http.ResponseWriter, r *http.Request) {
	a, ok := middleware.ActorFrom(r.Context())
	if !ok {
		respondAppError(w, apperr.ErrUnauthenticated)
		return
	}

	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.orchestrator.GeneratePrompt(a, req.SessionID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, result)
}

// handleStatus 查询推送通道状态
func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.orchestrator.ChannelStatus())
}

// handleStats 查询会话统计
func (h *Handler) handleStats(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.orchestrator.Statistics())
}

// respondAppError 将业务失败映射为HTTP响应，意外错误统一降级为500
func respondAppError(w http.ResponseWriter, err error) {
	failure := apperr.From(err)

	status := failure.Code
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}
	if status == http.StatusInternalServerError {
		slog.Error("internal failure", "error", err)
	}

	utils.RespondFailure(w, status, failure.Code, failure.Reason)
}
