package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nukhba-ai/tutor/backend/internal/model/voice"
	"github.com/nukhba-ai/tutor/backend/internal/service/ai"
	"github.com/nukhba-ai/tutor/backend/pkg/utils"
)

// 代理路由固定使用的提示词与参数
const (
	proxySystemPrompt = "You are Nukhba, a helpful Arabic language tutor. Correct grammar and keep responses concise."
	proxyTemperature  = 0.7
	proxyMaxTokens    = 500
)

// ProviderFactory 根据请求时读取的密钥构建模型客户端
type ProviderFactory func(apiKey string) (ai.Provider, error)

// KeyLookup 返回当前配置的服务端密钥，未配置时返回空串
type KeyLookup func() string

// Handler 是 /api/chat 代理路由的HTTP处理器
type Handler struct {
	lookupKey   KeyLookup
	newProvider ProviderFactory
	logger      *zap.Logger
}

// New 创建代理处理器。密钥在每个请求时读取，修正配置后无需重启。
func New(lookupKey KeyLookup, newProvider ProviderFactory, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		lookupKey:   lookupKey,
		newProvider: newProvider,
		logger:      logger,
	}
}

// RegisterRoutes 注册代理路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Get("/chat", h.handleMethodNotAllowed)
}

type chatResponse struct {
	Response string `json:"response"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload map[string]json.RawMessage
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request. 'message' field is required and must be a string.")
		return
	}

	var message string
	raw, ok := payload["message"]
	if !ok || json.Unmarshal(raw, &message) != nil || strings.TrimSpace(message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request. 'message' field is required and must be a string.")
		return
	}

	apiKey := strings.TrimSpace(h.lookupKey())
	if apiKey == "" {
		h.logger.Error("OPENAI_API_KEY is not configured")
		utils.RespondError(w, http.StatusInternalServerError,
			"OpenAI API key is not configured. Please set OPENAI_API_KEY in your environment variables.")
		return
	}

	provider, err := h.newProvider(apiKey)
	if err != nil {
		h.logger.Error("build provider failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "Internal server error. Please try again later.")
		return
	}

	answer, err := provider.Complete(r.Context(), ai.CompletionRequest{
		System:      proxySystemPrompt,
		Messages:    []ai.PromptMessage{{Role: ai.RoleUser, Content: message}},
		MaxTokens:   proxyMaxTokens,
		Temperature: proxyTemperature,
	})
	if err != nil {
		h.respondProviderError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, chatResponse{Response: answer})
}

func (h *Handler) respondProviderError(w http.ResponseWriter, err error) {
	var remoteErr *voice.RemoteServiceError
	switch {
	case errors.Is(err, ai.ErrEmptyCompletion):
		utils.RespondError(w, http.StatusInternalServerError, "No response from AI")
	case errors.As(err, &remoteErr):
		status := remoteErr.Status
		if status < http.StatusBadRequest || status > 599 {
			status = http.StatusInternalServerError
		}
		h.logger.Warn("chat proxy provider error", zap.Int("status", remoteErr.Status), zap.String("message", remoteErr.Message))
		utils.RespondError(w, status, fmt.Sprintf("OpenAI API error: %s", remoteErr.Message))
	default:
		h.logger.Error("chat proxy failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "Internal server error. Please try again later.")
	}
}

func (h *Handler) handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Allow", http.MethodPost)
	utils.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed. Use POST to send a message.")
}
