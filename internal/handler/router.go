package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/nukhba-ai/tutor/backend/internal/handler/chat"
	"github.com/nukhba-ai/tutor/backend/internal/handler/session"
	voicehandler "github.com/nukhba-ai/tutor/backend/internal/handler/voice"
	middlewarePkg "github.com/nukhba-ai/tutor/backend/internal/middleware"
	speechService "github.com/nukhba-ai/tutor/backend/internal/service/speech"
	voiceService "github.com/nukhba-ai/tutor/backend/internal/service/voice"
	"github.com/nukhba-ai/tutor/backend/pkg/utils"
)

// Dependencies 汇集路由需要的服务
type Dependencies struct {
	Hub            *voiceService.Hub
	Proxy          *chat.Handler
	Connections    *speechService.ConnectionManager
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	connections := deps.Connections
	if connections == nil {
		connections = speechService.NewConnectionManager()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.AccessLog(logger.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ok"}
		if deps.Hub != nil {
			body["sessions"] = deps.Hub.Registry().Len()
			body["connections"] = connections.Len()
		}
		utils.RespondJSON(w, http.StatusOK, body)
	})

	r.Route("/api", func(api chi.Router) {
		// 无状态代理路由，不依赖会话
		if deps.Proxy != nil {
			deps.Proxy.RegisterRoutes(api)
		}

		if deps.Hub == nil {
			return
		}
		session.New(deps.Hub, logger.Named("session")).RegisterRoutes(api)
		voicehandler.NewWebSocketHandler(deps.Hub, connections, logger.Named("voice")).RegisterRoutes(api)
	})

	return r
}
