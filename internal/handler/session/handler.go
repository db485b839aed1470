package session

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nukhba-ai/tutor/backend/internal/model/chat"
	"github.com/nukhba-ai/tutor/backend/internal/model/voice"
	chatsvc "github.com/nukhba-ai/tutor/backend/internal/service/chat"
	voicesvc "github.com/nukhba-ai/tutor/backend/internal/service/voice"
	"github.com/nukhba-ai/tutor/backend/pkg/utils"
)

// Handler 会话 REST 接口
type Handler struct {
	hub    *voicesvc.Hub
	logger *zap.Logger
}

// New 创建会话处理器
func New(hub *voicesvc.Hub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{hub: hub, logger: logger}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(sr chi.Router) {
		sr.Post("/", h.handleCreate)
		sr.Route("/{sessionID}", func(one chi.Router) {
			one.Get("/", h.handleGet)
			one.Delete("/", h.handleDelete)
			one.Post("/messages", h.handleSendText)
			one.Post("/reset", h.handleReset)
			one.Post("/cancel", h.handleCancel)
			one.Put("/language", h.handleLanguage)
			one.Put("/settings", h.handleSettings)
		})
	})
}

// sessionView 是会话对外的 JSON 结构
type sessionView struct {
	State       voice.State          `json:"state"`
	QueriesLeft int                  `json:"queriesLeft"`
	RTL         bool                 `json:"rtl"`
	Session     chat.SessionSnapshot `json:"session"`
}

type turnView struct {
	Message chat.Message `json:"message"`
	sessionView
}

func viewOf(orch *voicesvc.Orchestrator) sessionView {
	status := orch.Snapshot()
	return sessionView{
		State:       status.State,
		QueriesLeft: status.Session.QueriesLeft(),
		RTL:         status.Session.Language.RTL(),
		Session:     status.Session,
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Language   string `json:"language"`
		Premium    bool   `json:"premium"`
		DailyLimit int    `json:"dailyLimit"`
		AutoPlay   *bool  `json:"autoPlay"`
	}
	// 空请求体使用默认设置
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(r, &payload); err != nil {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if payload.DailyLimit < 0 {
		utils.RespondError(w, http.StatusBadRequest, "dailyLimit must not be negative")
		return
	}

	lang, err := chat.ParseLanguage(payload.Language)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	line, err := h.hub.Create(r.Context(), chatsvc.Options{
		Language:   lang,
		DailyLimit: payload.DailyLimit,
		Premium:    payload.Premium,
	})
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.AutoPlay != nil {
		line.Orchestrator().SetAutoPlay(*payload.AutoPlay)
	}

	utils.RespondJSON(w, http.StatusCreated, viewOf(line.Orchestrator()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	orch, ok := h.orchestrator(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, viewOf(orch))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.hub.Remove(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.respondSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSendText 同步执行一次文字提问
func (h *Handler) handleSendText(w http.ResponseWriter, r *http.Request) {
	orch, ok := h.orchestrator(w, r)
	if !ok {
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(payload.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	msg, err := orch.SendText(r.Context(), payload.Text)
	if err != nil {
		status, message := turnErrorStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Warn("typed turn failed",
				zap.String("session_id", orch.Session().ID()),
				zap.Error(err))
		}
		utils.RespondError(w, status, message)
		return
	}

	utils.RespondJSON(w, http.StatusOK, turnView{Message: msg, sessionView: viewOf(orch)})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	orch, ok := h.orchestrator(w, r)
	if !ok {
		return
	}
	orch.Reset()
	utils.RespondJSON(w, http.StatusOK, viewOf(orch))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	orch, ok := h.orchestrator(w, r)
	if !ok {
		return
	}
	orch.Cancel()
	utils.RespondJSON(w, http.StatusOK, viewOf(orch))
}

func (h *Handler) handleLanguage(w http.ResponseWriter, r *http.Request) {
	orch, ok := h.orchestrator(w, r)
	if !ok {
		return
	}

	var payload struct {
		Language string `json:"language"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	lang, err := chat.ParseLanguage(payload.Language)
	if err != nil || strings.TrimSpace(payload.Language) == "" {
		utils.RespondError(w, http.StatusBadRequest, "language must be english, arabic or hindi")
		return
	}
	if err := orch.SetLanguage(lang); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, viewOf(orch))
}

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	orch, ok := h.orchestrator(w, r)
	if !ok {
		return
	}

	var payload struct {
		Volume   *int  `json:"volume"`
		AutoPlay *bool `json:"autoPlay"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Volume != nil {
		orch.SetVolume(*payload.Volume)
	}
	if payload.AutoPlay != nil {
		orch.SetAutoPlay(*payload.AutoPlay)
	}
	utils.RespondJSON(w, http.StatusOK, viewOf(orch))
}

func (h *Handler) orchestrator(w http.ResponseWriter, r *http.Request) (*voicesvc.Orchestrator, bool) {
	line, err := h.hub.Line(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondSessionError(w, err)
		return nil, false
	}
	return line.Orchestrator(), true
}

func (h *Handler) respondSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, chatsvc.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	h.logger.Error("session lookup failed", zap.Error(err))
	utils.RespondError(w, http.StatusInternalServerError, "internal error")
}

// turnErrorStatus 将一次提问的失败映射为 HTTP 状态码
func turnErrorStatus(err error) (int, string) {
	var (
		remoteErr *voice.RemoteServiceError
		netErr    *voice.NetworkError
	)
	switch {
	case errors.Is(err, voice.ErrRateLimitExceeded):
		return http.StatusTooManyRequests, err.Error()
	case errors.Is(err, voice.ErrTurnInProgress), errors.Is(err, voicesvc.ErrTurnSuperseded):
		return http.StatusConflict, err.Error()
	case errors.Is(err, chatsvc.ErrEmptyMessage):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &remoteErr):
		return http.StatusBadGateway, remoteErr.Error()
	case errors.As(err, &netErr):
		return http.StatusServiceUnavailable, "tutor service unreachable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
