package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every setting the service needs.
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Reason ReasonConfig
	Tools  ToolsConfig
	Store  StoreConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	reason, err := loadReasonConfig()
	if err != nil {
		return nil, err
	}

	tools, err := loadToolsConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		AI:     ai,
		Reason: reason,
		Tools:  tools,
		Store:  StoreConfig{DBPath: strings.TrimSpace(os.Getenv("CHAT_DB_PATH"))},
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" verbatim.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig describes the chat model provider.
type AIConfig struct {
	APIKey         string
	AccessKey      string
	SecretKey      string
	Model          string
	BaseURL        string
	Region         string
	Temperature    *float64
	TopP           *float64
	MaxTokens      *int
	StreamResponse bool
}

// Enabled reports whether the required credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds an Ark chat model from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("missing Ark credentials: provide ARK_API_KEY + MODEL, or the AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	stream, err := parseBoolEnv("ARK_STREAM", true)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:         strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:      strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:      strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:          strings.TrimSpace(os.Getenv("MODEL")),
		BaseURL:        getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:         getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:    temperature,
		TopP:           topP,
		MaxTokens:      maxTokens,
		StreamResponse: stream,
	}, nil
}

// ReasonConfig bounds the orchestrator loop.
type ReasonConfig struct {
	MaxSteps     int
	MinSteps     int
	TokenBudget  int
	HistoryLimit int
}

func loadReasonConfig() (ReasonConfig, error) {
	cfg := ReasonConfig{
		MaxSteps:     20,
		MinSteps:     2,
		TokenBudget:  6000,
		HistoryLimit: 10,
	}

	if v, err := parseOptionalIntEnv("REASON_MAX_STEPS"); err != nil {
		return ReasonConfig{}, err
	} else if v != nil {
		if *v < 1 {
			return ReasonConfig{}, fmt.Errorf("REASON_MAX_STEPS must be at least 1, got %d", *v)
		}
		cfg.MaxSteps = *v
	}

	if v, err := parseOptionalIntEnv("REASON_MIN_STEPS"); err != nil {
		return ReasonConfig{}, err
	} else if v != nil {
		if *v < 1 {
			cfg.MinSteps = 1
		} else {
			cfg.MinSteps = *v
		}
	}
	if cfg.MinSteps > cfg.MaxSteps {
		cfg.MinSteps = cfg.MaxSteps
	}

	if v, err := parseOptionalIntEnv("REASON_TOKEN_BUDGET"); err != nil {
		return ReasonConfig{}, err
	} else if v != nil && *v > 0 {
		cfg.TokenBudget = *v
	}

	if v, err := parseOptionalIntEnv("REASON_HISTORY_LIMIT"); err != nil {
		return ReasonConfig{}, err
	} else if v != nil && *v > 0 {
		cfg.HistoryLimit = *v
	}

	return cfg, nil
}

// ToolsConfig gates the optional tool executor node.
type ToolsConfig struct {
	TavilyAPIKey    string
	TavilyDepth     string
	REPLEnabled     bool
	REPLInterpreter string
	REPLTimeout     int
}

// SearchEnabled reports whether the web search tool can be registered.
func (c ToolsConfig) SearchEnabled() bool {
	return c.TavilyAPIKey != ""
}

func loadToolsConfig() (ToolsConfig, error) {
	replEnabled, err := parseBoolEnv("REPL_ENABLED", false)
	if err != nil {
		return ToolsConfig{}, err
	}

	timeout, err := parseOptionalIntEnv("REPL_TIMEOUT")
	if err != nil {
		return ToolsConfig{}, err
	}
	timeoutSeconds := 30
	if timeout != nil && *timeout > 0 {
		timeoutSeconds = *timeout
	}

	return ToolsConfig{
		TavilyAPIKey:    strings.TrimSpace(os.Getenv("TAVILY_API_KEY")),
		TavilyDepth:     getEnvOrDefault("TAVILY_DEPTH", "basic"),
		REPLEnabled:     replEnabled,
		REPLInterpreter: getEnvOrDefault("REPL_INTERPRETER", "python3"),
		REPLTimeout:     timeoutSeconds,
	}, nil
}

// StoreConfig selects the session store backend. An empty DBPath keeps
// everything in memory.
type StoreConfig struct {
	DBPath string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
