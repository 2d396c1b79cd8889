// Package langchainagent provides a high-level façade over the agent
// coordination runtime: the typed message bus, the agent registry, the task
// and retrieval agents, the telemetry store and the analytics pipeline. Most
// applications interact with this package by:
//  1. Creating a Runtime via New() (optionally overriding the model, tools,
//     retriever or stores that would otherwise be built from config)
//  2. Executing tasks (ExecuteTask) or answering questions (Query)
//  3. Reading aggregated statistics back through Analyzer() and Curator()
//  4. Calling Shutdown to stop every agent and the bus
//
// The façade delegates routing to registry.Registry and delivery to
// bus.MessageBus while keeping setup concise. Defaults come from
// config.Default(): a scripted mock model, an in-memory message store and a
// JSONL telemetry directory under ./logs.
package langchainagent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/TSGCFO/langchain-agent/agent"
	"github.com/TSGCFO/langchain-agent/analytics"
	"github.com/TSGCFO/langchain-agent/bus"
	"github.com/TSGCFO/langchain-agent/config"
	"github.com/TSGCFO/langchain-agent/core"
	"github.com/TSGCFO/langchain-agent/evaluation"
	"github.com/TSGCFO/langchain-agent/logging"
	"github.com/TSGCFO/langchain-agent/model"
	"github.com/TSGCFO/langchain-agent/registry"
	"github.com/TSGCFO/langchain-agent/retriever"
	"github.com/TSGCFO/langchain-agent/telemetry"
	"github.com/TSGCFO/langchain-agent/tool"
)

// Options configures the Runtime. Every unset collaborator is built from
// Config.
type Options struct {
	// Config defaults to config.Default().
	Config *config.Config

	// Model overrides the provider selected by Config.Model.
	Model model.Model
	// Retriever overrides the in-memory retriever seeded from
	// Config.Retrieval.Documents.
	Retriever retriever.Retriever
	// Tools are registered with the task agent in addition to the enabled
	// builtin tools.
	Tools []tool.Tool
	// HTTPClient is used by the fetch_url tool.
	HTTPClient *http.Client

	// MessageStore overrides the store selected by Config.Bus.Store.
	MessageStore bus.MessageStore
	// Telemetry overrides the JSONL store in Config.Telemetry.Dir.
	Telemetry telemetry.Store

	// Logger defaults to a StructuredLogger built from Config.Logging.
	Logger logging.Logger
	// Now is the clock shared by the bus, the telemetry store and analytics.
	Now func() time.Time
}

// TaskProcessor is implemented by agents that execute task descriptions.
type TaskProcessor interface {
	ProcessTask(ctx context.Context, description, correlationID string) (*core.Task, error)
}

// Querier is implemented by agents that answer questions.
type Querier interface {
	Query(ctx context.Context, text string, opts agent.QueryOptions) (string, error)
}

// Runtime aggregates the bus, the registry and the telemetry pipeline.
type Runtime struct {
	cfg        *config.Config
	logger     logging.Logger
	structured *logging.StructuredLogger

	bus       *bus.MessageBus
	registry  *registry.Registry
	telemetry telemetry.Store
	analyzer  *analytics.Analyzer
	curator   *analytics.Curator

	taskAgent *agent.TaskAgent
	ragAgent  *agent.RAGAgent
}

// New builds and starts a Runtime: the bus is initialized and the task and
// retrieval agents are registered before New returns.
func New(ctx context.Context, optFns ...func(o *Options)) (*Runtime, error) {
	opts := Options{Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	cfg := opts.Config
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger(&logging.LoggerConfig{
			Level:  logging.ParseLevel(cfg.Logging.Level),
			Format: cfg.Logging.Format,
			Output: os.Stderr,
		}).WithComponent("runtime")
	}
	logger := opts.Logger

	llm := opts.Model
	if llm == nil {
		m, err := NewModel(ctx, cfg.Model)
		if err != nil {
			return nil, err
		}
		llm = m
	}
	structured, _ := logger.(*logging.StructuredLogger)
	if structured != nil {
		llm = loggedModel{Model: llm, logger: structured}
	}

	rtr := opts.Retriever
	if rtr == nil {
		docs, err := LoadDocuments(cfg.Retrieval.Documents)
		if err != nil {
			return nil, err
		}
		rtr = retriever.NewInMemory(docs...)
	}

	store := opts.MessageStore
	if store == nil {
		s, err := NewMessageStore(cfg.Bus)
		if err != nil {
			return nil, err
		}
		store = s
	}

	rec := opts.Telemetry
	if rec == nil {
		fs, err := telemetry.NewFileStore(cfg.Telemetry.Dir, func(o *telemetry.FileStoreOptions) {
			o.Logger = logger
			o.Now = opts.Now
		})
		if err != nil {
			closeQuietly(store)
			return nil, err
		}
		rec = fs
	}

	b := bus.New(func(o *bus.Options) {
		o.Store = store
		o.DefaultTTL = cfg.Bus.TTL
		if cfg.Bus.PurgeInterval > 0 {
			o.PurgeInterval = cfg.Bus.PurgeInterval
		}
		o.Logger = logger
		o.Now = opts.Now
	})
	if err := b.Initialize(ctx); err != nil {
		closeQuietly(store)
		closeQuietly(rec)
		return nil, err
	}

	rt := &Runtime{
		cfg:        cfg,
		logger:     logger,
		structured: structured,
		bus:        b,
		registry:   registry.New(b, func(o *registry.Options) { o.Logger = logger }),
		telemetry:  rec,
	}

	tools, err := rt.buildTools(cfg, opts)
	if err != nil {
		_ = rt.Shutdown(ctx)
		return nil, err
	}
	rt.taskAgent = agent.NewTaskAgent(cfg.Agent.Name, llm, tools, b, func(o *agent.TaskAgentOptions) {
		o.Description = "Decomposes requests into tool calls and executes them"
		o.Capabilities = capabilities(tools, cfg.Tools.Enabled)
		o.HistoryCapacity = cfg.Agent.HistoryCapacity
		o.Logger = logger
		o.MaxSubtasks = cfg.Agent.MaxSubtasks
		o.TaskTimeout = cfg.Agent.TaskTimeout
		o.ToolTimeout = cfg.Agent.ToolTimeout
		o.ModelTimeout = cfg.Agent.ModelTimeout
		o.Recorder = rec
		if cfg.Agent.Evaluator == "model" {
			o.Evaluator = evaluation.ModelEvaluator{Model: llm}
		}
	})
	if enabled(cfg.Tools.Enabled, "scratchpad") {
		if err := tools.Register(tool.NewScratchpadTool(rt.taskAgent.Scratchpad())); err != nil {
			_ = rt.Shutdown(ctx)
			return nil, err
		}
	}
	rt.ragAgent = agent.NewRAGAgent(cfg.Agent.Name+"-retrieval", llm, rtr, b, func(o *agent.RAGAgentOptions) {
		o.Description = "Answers questions from retrieved documents"
		o.HistoryCapacity = cfg.Agent.HistoryCapacity
		o.Logger = logger
		o.ModelTimeout = cfg.Agent.ModelTimeout
		o.Recorder = rec
		o.MaxDocuments = cfg.Retrieval.MaxDocuments
	})

	for _, a := range []core.Agent{rt.taskAgent, rt.ragAgent} {
		if err := rt.registry.Register(ctx, a); err != nil {
			_ = rt.Shutdown(ctx)
			return nil, err
		}
	}

	analyticsOpts := func(o *analytics.Options) {
		o.Now = opts.Now
		o.TailLines = cfg.Analytics.TailLines
		o.Logger = logger
	}
	rt.analyzer = analytics.NewAnalyzer(rec, analyticsOpts)
	rt.curator = analytics.NewCurator(rec, analyticsOpts)

	logger.Info("Runtime started", "model", llm.Info().Name, "tools", tools.Names(), "agents", rt.registry.Len())
	return rt, nil
}

// Config returns the configuration the runtime was built from.
func (r *Runtime) Config() *config.Config { return r.cfg }

// Bus returns the message bus.
func (r *Runtime) Bus() *bus.MessageBus { return r.bus }

// Registry returns the agent registry.
func (r *Runtime) Registry() *registry.Registry { return r.registry }

// Telemetry returns the record store.
func (r *Runtime) Telemetry() telemetry.Store { return r.telemetry }

// Analyzer returns the log analyzer.
func (r *Runtime) Analyzer() *analytics.Analyzer { return r.analyzer }

// Curator returns the training curator.
func (r *Runtime) Curator() *analytics.Curator { return r.curator }

// TaskAgent returns the built-in task agent.
func (r *Runtime) TaskAgent() *agent.TaskAgent { return r.taskAgent }

// RAGAgent returns the built-in retrieval agent.
func (r *Runtime) RAGAgent() *agent.RAGAgent { return r.ragAgent }

// Register adds a custom agent to the registry.
func (r *Runtime) Register(ctx context.Context, a core.Agent) error {
	return r.registry.Register(ctx, a)
}

// ExecuteTask routes description to the task agent chosen by the registry
// and runs it under a fresh correlation id.
func (r *Runtime) ExecuteTask(ctx context.Context, description string) (*core.Task, error) {
	a, err := r.registry.ForTask(description)
	if err != nil {
		return nil, err
	}
	p, ok := a.(TaskProcessor)
	if !ok {
		return nil, fmt.Errorf("agent %s cannot process tasks: %w", a.ID(), core.ErrUnsupportedOperation)
	}
	start := time.Now()
	task, err := p.ProcessTask(ctx, description, core.NewID())
	if r.structured != nil && task != nil {
		steps := 1
		if subs, ok := task.Result().([]core.SubtaskResult); ok {
			steps = len(subs)
		}
		r.structured.LogTaskExecution(task.ID, steps, time.Since(start), err == nil, err)
	}
	return task, err
}

// Query routes text to the retrieval agent chosen by the registry.
func (r *Runtime) Query(ctx context.Context, text string, opts agent.QueryOptions) (string, error) {
	a, err := r.registry.ForQuery(text)
	if err != nil {
		return "", err
	}
	q, ok := a.(Querier)
	if !ok {
		return "", fmt.Errorf("agent %s cannot answer queries: %w", a.ID(), core.ErrUnsupportedOperation)
	}
	if opts.CorrelationID == "" {
		opts.CorrelationID = core.NewID()
	}
	return q.Query(ctx, text, opts)
}

// Agents lists the registered agents in registration order.
func (r *Runtime) Agents() []core.AgentInfo { return r.registry.List() }

// Publish sends msg on the bus.
func (r *Runtime) Publish(ctx context.Context, msg core.Message) error {
	return r.bus.Publish(ctx, msg)
}

// LookupMessage returns a retained message by id.
func (r *Runtime) LookupMessage(ctx context.Context, id string) (core.Message, error) {
	return r.bus.Lookup(ctx, id)
}

// Shutdown stops every agent, the bus and its store, then closes the
// telemetry store. Calling it again is a no-op.
func (r *Runtime) Shutdown(ctx context.Context) error {
	err := r.registry.Shutdown(ctx)
	if c, ok := r.telemetry.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close telemetry: %w", cerr))
		}
	}
	r.logger.Info("Runtime stopped")
	return err
}

// LoadDocuments reads each path as one document identified by its base name.
func LoadDocuments(paths []string) ([]core.Document, error) {
	docs := make([]core.Document, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("load document %s: %w", p, err)
		}
		docs = append(docs, core.Document{
			ID:       filepath.Base(p),
			Content:  string(data),
			Metadata: map[string]any{"source": p},
		})
	}
	return docs, nil
}

// NewMessageStore opens the message store selected by cfg. "none" yields a
// nil store, which disables message lookup.
func NewMessageStore(cfg config.BusConfig) (bus.MessageStore, error) {
	switch cfg.Store {
	case "", "none":
		return nil, nil
	case "memory":
		return bus.NewInMemoryStore(), nil
	case "sqlite":
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create message store dir: %w", err)
			}
		}
		return bus.NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown message store %q: %w", cfg.Store, core.ErrValidation)
	}
}

func closeQuietly(v any) {
	if c, ok := v.(io.Closer); ok && c != nil {
		_ = c.Close()
	}
}
