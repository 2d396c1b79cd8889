// Package config loads the runtime configuration from YAML. Values missing
// from the file keep their defaults; the result is validated with struct tags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/TSGCFO/langchain-agent/analytics"
	"github.com/TSGCFO/langchain-agent/core"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "agentctl.yaml"

// Config models agentctl.yaml.
type Config struct {
	Model     ModelConfig              `yaml:"model"`
	Agent     AgentConfig              `yaml:"agent"`
	Tools     ToolsConfig              `yaml:"tools"`
	Retrieval RetrievalConfig          `yaml:"retrieval"`
	Bus       BusConfig                `yaml:"bus"`
	Telemetry TelemetryConfig          `yaml:"telemetry"`
	Analytics AnalyticsConfig          `yaml:"analytics"`
	Training  analytics.TrainingConfig `yaml:"training"`
	Server    ServerConfig             `yaml:"server"`
	Logging   LoggingConfig            `yaml:"logging"`
}

// ModelConfig selects the language model provider.
type ModelConfig struct {
	Provider    string  `yaml:"provider" validate:"oneof=mock openai anthropic gemini"`
	Name        string  `yaml:"name"`
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `yaml:"max_tokens" validate:"gte=0"`
	// APIKey is usually left empty and taken from the provider's environment
	// variable.
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
}

// AgentConfig tunes the task and retrieval agents.
type AgentConfig struct {
	Name            string        `yaml:"name" validate:"required"`
	MaxSubtasks     int           `yaml:"max_subtasks" validate:"gte=1"`
	HistoryCapacity int           `yaml:"history_capacity" validate:"gte=1"`
	TaskTimeout     time.Duration `yaml:"task_timeout" validate:"gte=0"`
	ToolTimeout     time.Duration `yaml:"tool_timeout" validate:"gte=0"`
	ModelTimeout    time.Duration `yaml:"model_timeout" validate:"gte=0"`
	// Evaluator scores completed tasks: "heuristic" compares against the
	// plan, "model" asks the configured model to grade the run.
	Evaluator string `yaml:"evaluator" validate:"oneof=heuristic model"`
}

// ToolsConfig lists the builtin tools to register.
type ToolsConfig struct {
	Enabled      []string      `yaml:"enabled" validate:"dive,oneof=current_time calculator fetch_url crawl_links scratchpad"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" validate:"gte=0"`
}

// RetrievalConfig seeds the in-memory retriever.
type RetrievalConfig struct {
	// Documents are file paths loaded at startup, one document per file.
	Documents    []string `yaml:"documents"`
	MaxDocuments int      `yaml:"max_documents" validate:"gte=1"`
}

// BusConfig selects message retention.
type BusConfig struct {
	Store string        `yaml:"store" validate:"oneof=none memory sqlite"`
	Path  string        `yaml:"path" validate:"required_if=Store sqlite"`
	TTL   time.Duration `yaml:"ttl" validate:"gte=0"`
	// PurgeInterval is how often expired messages are deleted from the store.
	PurgeInterval time.Duration `yaml:"purge_interval" validate:"gte=0"`
}

// TelemetryConfig locates the JSONL streams.
type TelemetryConfig struct {
	Dir string `yaml:"dir" validate:"required"`
}

// AnalyticsConfig tunes the log analyzer.
type AnalyticsConfig struct {
	WindowDays int `yaml:"window_days" validate:"gte=1"`
	TailLines  int `yaml:"tail_lines" validate:"gte=1"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string   `yaml:"addr" validate:"required"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig configures the operational logger.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Model: ModelConfig{Provider: "mock", Name: "mock", Temperature: 0.2, MaxTokens: 1024},
		Agent: AgentConfig{
			Name:            "assistant",
			MaxSubtasks:     10,
			HistoryCapacity: 50,
			TaskTimeout:     2 * time.Minute,
			ToolTimeout:     30 * time.Second,
			ModelTimeout:    60 * time.Second,
			Evaluator:       "heuristic",
		},
		Tools: ToolsConfig{
			Enabled:      []string{"current_time", "calculator", "fetch_url", "crawl_links", "scratchpad"},
			FetchTimeout: 15 * time.Second,
		},
		Retrieval: RetrievalConfig{MaxDocuments: 3},
		Bus:       BusConfig{Store: "memory", TTL: time.Hour, PurgeInterval: time.Minute},
		Telemetry: TelemetryConfig{Dir: "logs"},
		Analytics: AnalyticsConfig{WindowDays: 7, TailLines: analytics.DefaultTailLines},
		Training:  analytics.DefaultTrainingConfig(),
		Server:    ServerConfig{Addr: ":8080", AllowedOrigins: []string{"*"}},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads path. A missing file at DefaultPath yields Default(); a missing
// explicit path is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return FromYAML(data)
}

// FromYAML parses data over the defaults and validates the result.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: invalid config yaml: %v", core.ErrValidation, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", core.ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag()))
	}
	return fmt.Errorf("%w: config: %s", core.ErrValidation, strings.Join(msgs, "; "))
}
