package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Provider names accepted by TUTOR_PROVIDER.
const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"
	ProviderGemini = "gemini"
)

// maxTutorAttempts caps the orchestrator retry policy.
const maxTutorAttempts = 3

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	Log     LogConfig
	AI      AIConfig
	Tutor   TutorConfig
	Session SessionConfig
	Redis   RedisConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses configuration from an explicit environment map.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	addr, err := normalizeAddr(c.Server.Port)
	if err != nil {
		return err
	}
	c.Server.Addr = addr

	c.AI.Provider = strings.ToLower(strings.TrimSpace(c.AI.Provider))
	switch c.AI.Provider {
	case ProviderOpenAI, ProviderArk, ProviderGemini:
	default:
		return fmt.Errorf("invalid TUTOR_PROVIDER value %q", c.AI.Provider)
	}

	if c.Tutor.MaxAttempts < 1 {
		c.Tutor.MaxAttempts = 1
	}
	if c.Tutor.MaxAttempts > maxTutorAttempts {
		c.Tutor.MaxAttempts = maxTutorAttempts
	}
	if c.Tutor.HistoryLimit < 1 {
		c.Tutor.HistoryLimit = 1
	}
	if c.Tutor.MaxTokens < 1 {
		return fmt.Errorf("invalid TUTOR_MAX_TOKENS value %d", c.Tutor.MaxTokens)
	}
	if c.Session.DailyLimit < 1 {
		return fmt.Errorf("invalid DAILY_QUERY_LIMIT value %d", c.Session.DailyLimit)
	}
	return nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	Addr string `env:"-"`
	// AllowedOrigins 为空时不附加 CORS 头；"*" 放行所有来源。
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// normalizeAddr 解析服务器监听地址。
func normalizeAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// LogConfig selects the zap encoder and level.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider string `env:"TUTOR_PROVIDER" envDefault:"openai"`
	OpenAI   OpenAIConfig
	Ark      ArkConfig
	Gemini   GeminiConfig
}

// Enabled reports whether the selected provider has credentials.
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderArk:
		return c.Ark.Enabled()
	case ProviderGemini:
		return c.Gemini.APIKey != ""
	default:
		return c.OpenAI.APIKey != ""
	}
}

// OpenAIConfig configures the OpenAI chat completions provider and the proxy route.
type OpenAIConfig struct {
	APIKey  string `env:"OPENAI_API_KEY"`
	BaseURL string `env:"OPENAI_BASE_URL"`
	Model   string `env:"OPENAI_MODEL" envDefault:"gpt-4o"`
}

// GeminiConfig configures the Google Gemini provider.
type GeminiConfig struct {
	APIKey string `env:"GEMINI_API_KEY"`
	Model  string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
}

// ArkConfig 描述火山方舟模型配置。
type ArkConfig struct {
	APIKey    string `env:"ARK_API_KEY"`
	AccessKey string `env:"ARK_ACCESS_KEY"`
	SecretKey string `env:"ARK_SECRET_KEY"`
	Model     string `env:"ARK_MODEL"`
	BaseURL   string `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region    string `env:"ARK_REGION" envDefault:"cn-beijing"`
}

// Enabled 表示是否提供了必需的密钥。
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c ArkConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:   c.BaseURL,
		Region:    c.Region,
		APIKey:    c.APIKey,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Model:     c.Model,
	}

	return ark.NewChatModel(ctx, cfg)
}

// TutorConfig tunes the tutor request client and the orchestrator retry policy.
type TutorConfig struct {
	HistoryLimit   int           `env:"TUTOR_HISTORY_LIMIT" envDefault:"20"`
	MaxAttempts    int           `env:"TUTOR_MAX_ATTEMPTS" envDefault:"1"`
	RequestTimeout time.Duration `env:"TUTOR_REQUEST_TIMEOUT" envDefault:"60s"`
	Temperature    float64       `env:"TUTOR_TEMPERATURE" envDefault:"0.7"`
	MaxTokens      int           `env:"TUTOR_MAX_TOKENS" envDefault:"1000"`
	PromptsFile    string        `env:"TUTOR_PROMPTS_FILE"`
}

// SessionConfig holds conversation defaults.
type SessionConfig struct {
	DailyLimit int `env:"DAILY_QUERY_LIMIT" envDefault:"10"`
}

// RedisConfig enables the server-side daily quota when Addr is set.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}
