package config

import (
	"fmt"

	"github.com/pharmakg/backend/internal/util"
)

// LLMConfig holds connection settings for the language model provider.
type LLMConfig struct {
	BaseURL        string
	APIKey         string
	Adapter        string
	Model          string
	PlanModel      string
	AnswerModel    string
	EmbedModel     string
	TimeoutSeconds int
}

// NLQConfig holds ceilings applied to natural language query processing.
type NLQConfig struct {
	MaxRows  int
	MaxNodes int
	MaxEdges int
	MaxDepth int
}

// Config is the resolved application configuration.
type Config struct {
	DatabaseURL  string
	LLM          LLMConfig
	NLQ          NLQConfig
	MasterAPIKey string
	Port         int
	Env          string
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	util.LoadEnv()

	cfg := &Config{
		DatabaseURL: util.GetEnv("DATABASE_URL"),
		LLM: LLMConfig{
			BaseURL:        util.GetEnvString("LLM_BASE_URL", "https://dashscope.aliyuncs.com/compatible-mode/v1"),
			APIKey:         util.GetEnv("LLM_API_KEY"),
			Adapter:        util.GetEnvString("AI_ADAPTER", "openai"),
			Model:          util.GetEnvString("LLM_MODEL", "qwen-turbo"),
			PlanModel:      util.GetEnvString("LLM_PLAN_MODEL", "qwen-flash"),
			AnswerModel:    util.GetEnvString("LLM_ANSWER_MODEL", "qwen-plus"),
			EmbedModel:     util.GetEnv("AI_EMBED_MODEL"),
			TimeoutSeconds: util.GetEnvInt("LLM_TIMEOUT_SECONDS", 60),
		},
		NLQ: NLQConfig{
			MaxRows:  util.GetEnvInt("NLQ_MAX_ROWS", 50),
			MaxNodes: util.GetEnvInt("NLQ_MAX_NODES", 80),
			MaxEdges: util.GetEnvInt("NLQ_MAX_EDGES", 120),
			MaxDepth: util.GetEnvInt("NLQ_MAX_DEPTH", 5),
		},
		MasterAPIKey: util.GetEnv("MASTER_API_KEY"),
		Port:         util.GetEnvInt("PORT", 8080),
		Env:          util.GetEnvString("ENV", "development"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	switch c.LLM.Adapter {
	case "openai", "ollama":
	default:
		return fmt.Errorf("AI_ADAPTER must be openai or ollama, got %q", c.LLM.Adapter)
	}
	if c.LLM.Adapter == "openai" && c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required for the openai adapter")
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return fmt.Errorf("LLM_TIMEOUT_SECONDS must be positive, got %d", c.LLM.TimeoutSeconds)
	}
	if c.NLQ.MaxRows <= 0 {
		return fmt.Errorf("NLQ_MAX_ROWS must be positive, got %d", c.NLQ.MaxRows)
	}
	if c.NLQ.MaxNodes <= 0 {
		return fmt.Errorf("NLQ_MAX_NODES must be positive, got %d", c.NLQ.MaxNodes)
	}
	if c.NLQ.MaxEdges <= 0 {
		return fmt.Errorf("NLQ_MAX_EDGES must be positive, got %d", c.NLQ.MaxEdges)
	}
	if c.NLQ.MaxDepth <= 0 {
		return fmt.Errorf("NLQ_MAX_DEPTH must be positive, got %d", c.NLQ.MaxDepth)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env != "production"
}
