package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nukhba-ai/tutor/backend/internal/config"
	"github.com/nukhba-ai/tutor/backend/internal/handler"
	chathandler "github.com/nukhba-ai/tutor/backend/internal/handler/chat"
	"github.com/nukhba-ai/tutor/backend/internal/logging"
	"github.com/nukhba-ai/tutor/backend/internal/service/ai"
	"github.com/nukhba-ai/tutor/backend/internal/service/chat"
	"github.com/nukhba-ai/tutor/backend/internal/service/quota"
	"github.com/nukhba-ai/tutor/backend/internal/service/speech"
	"github.com/nukhba-ai/tutor/backend/internal/service/tutor"
	"github.com/nukhba-ai/tutor/backend/internal/service/voice"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	// 会话路由依赖所选的大模型，未配置凭证时只保留代理路由
	var hub *voice.Hub
	if cfg.AI.Enabled() {
		provider, err := ai.NewProvider(ctx, cfg.AI)
		if err != nil {
			logger.Fatal("failed to initialize tutor provider", zap.String("provider", cfg.AI.Provider), zap.Error(err))
		}
		logger.Info("tutor provider initialized", zap.String("provider", provider.Name()))

		catalog := tutor.NewPromptCatalog(logger.Named("prompts"))
		if cfg.Tutor.PromptsFile != "" {
			if err := catalog.Watch(ctx, cfg.Tutor.PromptsFile); err != nil {
				logger.Warn("prompt overrides unavailable, using built-in prompts",
					zap.String("path", cfg.Tutor.PromptsFile), zap.Error(err))
			}
		}

		client := tutor.NewClient(provider, tutor.Options{
			HistoryLimit: cfg.Tutor.HistoryLimit,
			Temperature:  cfg.Tutor.Temperature,
			MaxTokens:    cfg.Tutor.MaxTokens,
			Timeout:      cfg.Tutor.RequestTimeout,
			Catalog:      catalog,
		}, logger.Named("tutor"))

		hub = voice.NewHub(chat.NewRegistry(cfg.Session.DailyLimit), voice.HubOptions{
			Tutor:       client,
			Quota:       newCounter(ctx, cfg.Redis, logger),
			MaxAttempts: cfg.Tutor.MaxAttempts,
			Backoff:     voice.DefaultBackoff,
			Logger:      logger,
		})
		defer hub.Close()
	} else {
		logger.Warn("tutor provider credentials missing, session routes disabled",
			zap.String("provider", cfg.AI.Provider))
	}

	// 代理路由在每个请求时读取密钥
	proxy := chathandler.New(
		func() string { return os.Getenv("OPENAI_API_KEY") },
		func(apiKey string) (ai.Provider, error) {
			return ai.NewOpenAIProvider(ai.OpenAIOptions{APIKey: apiKey, BaseURL: cfg.AI.OpenAI.BaseURL})
		},
		logger.Named("proxy"),
	)

	connections := speech.NewConnectionManager()
	defer connections.CloseAll()

	router := handler.NewRouter(handler.Dependencies{
		Hub:            hub,
		Proxy:          proxy,
		Connections:    connections,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	startServer(ctx, cfg.Server, router, logger)
}

// newCounter 配置了 Redis 时使用共享计数，否则使用进程内计数
func newCounter(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) quota.Counter {
	if cfg.Addr == "" {
		logger.Info("daily quota kept in memory")
		return quota.NewMemoryCounter()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		// 计数失败时放行，启动不因 Redis 不可用而中断
		logger.Warn("redis unreachable, quota checks will fail open", zap.String("addr", cfg.Addr), zap.Error(err))
	} else {
		logger.Info("daily quota shared through redis", zap.String("addr", cfg.Addr))
	}
	return quota.NewRedisCounter(client, logger.Named("quota"))
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *zap.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("Nukhba tutor backend listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal("server error", zap.Error(err))
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
