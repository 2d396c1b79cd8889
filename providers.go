package langchainagent

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/TSGCFO/langchain-agent/config"
	"github.com/TSGCFO/langchain-agent/core"
	"github.com/TSGCFO/langchain-agent/logging"
	"github.com/TSGCFO/langchain-agent/model"
	"github.com/TSGCFO/langchain-agent/model/anthropic"
	"github.com/TSGCFO/langchain-agent/model/gemini"
	"github.com/TSGCFO/langchain-agent/model/openai"
	"github.com/TSGCFO/langchain-agent/tool"
	"github.com/TSGCFO/langchain-agent/tool/builtin"
)

// NewModel builds the language model selected by cfg.Provider. Credentials
// not present in cfg are read from the provider's usual environment variable.
func NewModel(ctx context.Context, cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case "", "mock":
		return model.NewMockModel(cfg.Name), nil
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			o.Temperature = cfg.Temperature
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(cfg.MaxTokens)
			}
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Name)
			}
			o.Temperature = cfg.Temperature
			if cfg.MaxTokens > 0 {
				o.MaxTokens = int64(cfg.MaxTokens)
			}
			o.APIKey = cfg.APIKey
		}), nil
	case "gemini":
		return gemini.NewModel(ctx, func(o *gemini.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			o.Temperature = float32(cfg.Temperature)
			o.APIKey = cfg.APIKey
		})
	default:
		return nil, fmt.Errorf("unknown model provider %q: %w", cfg.Provider, core.ErrValidation)
	}
}

// loggedModel reports every Generate call through LogModelCall.
type loggedModel struct {
	model.Model
	logger *logging.StructuredLogger
}

func (m loggedModel) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	start := time.Now()
	resp, err := m.Model.Generate(ctx, req)
	m.logger.LogModelCall(m.Model.Info().Name, time.Since(start), err == nil, err)
	return resp, err
}

// buildTools registers the enabled builtin tools and any extra tools. The
// scratchpad tool needs the task agent's scratchpad and is added by New once
// the agent exists.
func (r *Runtime) buildTools(cfg *config.Config, opts Options) (*tool.Registry, error) {
	reg := tool.NewRegistry(func(o *tool.RegistryOptions) {
		o.Timeout = cfg.Agent.ToolTimeout
		o.Logger = r.logger
		if r.structured != nil {
			o.After = append(o.After, func(_ context.Context, name string, _ map[string]any, _ any, err error, elapsed time.Duration) {
				r.structured.LogToolCall(name, elapsed, err == nil, err)
			})
		}
	})

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Tools.FetchTimeout}
	}
	for _, name := range cfg.Tools.Enabled {
		var t tool.Tool
		switch name {
		case "current_time":
			t = builtin.NewCurrentTime(opts.Now)
		case "calculator":
			t = builtin.NewCalculator()
		case "fetch_url":
			t = builtin.NewFetchURL(client)
		case "crawl_links":
			t = builtin.NewCrawlLinks(cfg.Tools.FetchTimeout)
		case "scratchpad":
			continue
		default:
			return nil, fmt.Errorf("unknown builtin tool %q: %w", name, core.ErrValidation)
		}
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}
	if len(opts.Tools) > 0 {
		if err := reg.Register(opts.Tools...); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// capabilities advertises every registered tool plus the scratchpad when it
// is enabled, sorted.
func capabilities(tools *tool.Registry, enabledTools []string) []string {
	caps := tools.Names()
	if enabled(enabledTools, "scratchpad") && !slices.Contains(caps, "scratchpad") {
		caps = append(caps, "scratchpad")
	}
	slices.Sort(caps)
	return caps
}

func enabled(names []string, name string) bool {
	return slices.Contains(names, name)
}
