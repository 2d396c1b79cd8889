package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/TSGCFO/langchain-agent/bus"
	"github.com/TSGCFO/langchain-agent/core"
	"github.com/TSGCFO/langchain-agent/internal/util"
	"github.com/TSGCFO/langchain-agent/memory"
	"github.com/TSGCFO/langchain-agent/model"
	"github.com/TSGCFO/langchain-agent/retriever"
	"github.com/TSGCFO/langchain-agent/telemetry"
)

// DefaultMaxDocuments is the number of documents a query retrieves when the
// caller does not say.
const DefaultMaxDocuments = 3

// RAGPreamble is the fixed system prompt of the retrieval agent.
const RAGPreamble = "You are a helpful assistant that answers questions using the provided context. " +
	"Cite excerpts by their number. If the context does not contain the answer, say that you do not know."

// RAGAgentOptions configures a RAGAgent.
type RAGAgentOptions struct {
	BaseOptions
	// ModelTimeout bounds each model call, RetrieverTimeout each retrieval.
	ModelTimeout     time.Duration
	RetrieverTimeout time.Duration
	Recorder         telemetry.Recorder
	// MaxDocuments is the retrieval limit for queries that do not set their
	// own. Defaults to DefaultMaxDocuments.
	MaxDocuments int
}

// QueryOptions tunes a single query.
type QueryOptions struct {
	// Context, when set, is the only context used and retrieval is skipped.
	Context string
	// MaxDocuments defaults to the agent's RAGAgentOptions.MaxDocuments.
	MaxDocuments int
	// CorrelationID is recorded with the interaction.
	CorrelationID string
}

// RAGAgent answers queries grounded in retrieved documents while keeping a
// bounded conversation history.
type RAGAgent struct {
	*BaseAgent
	llm       model.Model
	retriever retriever.Retriever
	opts      RAGAgentOptions
}

// NewRAGAgent creates a RAGAgent subscribed to retrieval_request.
func NewRAGAgent(name string, llm model.Model, r retriever.Retriever, b *bus.MessageBus, optFns ...func(o *RAGAgentOptions)) *RAGAgent {
	opts := RAGAgentOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Capabilities == nil {
		opts.Capabilities = []string{"retrieval", "question_answering"}
	}
	if opts.Recorder == nil {
		opts.Recorder = telemetry.NopRecorder{}
	}
	if opts.MaxDocuments <= 0 {
		opts.MaxDocuments = DefaultMaxDocuments
	}
	a := &RAGAgent{
		BaseAgent: NewBaseAgent(name, core.RoleRetrieval, b, []core.MessageType{core.MessageTypeRetrievalRequest}, opts.BaseOptions),
		llm:       llm,
		retriever: r,
		opts:      opts,
	}
	a.Bind(a.HandleMessage)
	return a
}

// Query answers text. The query and answer are appended to the history.
// Every query, rejected ones included, is recorded as an interaction.
func (a *RAGAgent) Query(ctx context.Context, text string, opts QueryOptions) (string, error) {
	start := time.Now()

	var (
		answer string
		docs   int
		err    error
	)
	if strings.TrimSpace(text) == "" {
		err = fmt.Errorf("%w: query text is required", core.ErrValidation)
	} else {
		answer, docs, err = a.answer(ctx, text, opts)
	}

	rec := telemetry.InteractionRecord{
		Command: text,
		Success: err == nil,
		Metadata: telemetry.InteractionMetadata{
			AgentID:       a.ID(),
			CorrelationID: opts.CorrelationID,
			ExecutionTime: time.Since(start).Seconds(),
			Phase:         telemetry.PhaseFinished,
			Extra:         map[string]any{"documents": docs},
		},
	}
	if err != nil {
		rec.Error = err.Error()
	} else {
		rec.Result = answer
	}
	if recErr := a.opts.Recorder.RecordInteraction(context.WithoutCancel(ctx), rec); recErr != nil {
		a.logger.Warn("Failed to record query", "agent_id", a.ID(), "error", recErr.Error())
	}
	if err != nil {
		a.logger.Error("Query failed", "agent_id", a.ID(), "error", err.Error())
		return "", err
	}
	return answer, nil
}

func (a *RAGAgent) answer(ctx context.Context, text string, opts QueryOptions) (string, int, error) {
	docs, err := a.contextDocuments(ctx, text, opts)
	if err != nil {
		return "", 0, err
	}

	entries := a.history.Entries()
	msgs := make([]model.Message, 0, len(entries)+1)
	for _, e := range entries {
		msgs = append(msgs, model.Message{Role: e.Role, Content: e.Content})
	}
	msgs = append(msgs, model.UserMessage(formatExcerpts(docs)+"\n\nQuestion: "+text))

	callCtx, cancel := util.WithOptionalTimeout(ctx, a.opts.ModelTimeout)
	defer cancel()
	resp, err := util.CallWithContext(callCtx, func(c context.Context) (*model.Response, error) {
		return a.llm.Generate(c, model.Request{System: RAGPreamble, Messages: msgs})
	})
	if err != nil {
		return "", len(docs), fmt.Errorf("generate answer: %w", err)
	}

	a.history.Append(
		memory.Entry{Role: model.RoleUser, Content: text},
		memory.Entry{Role: model.RoleAssistant, Content: resp.Text},
	)
	return resp.Text, len(docs), nil
}

func (a *RAGAgent) contextDocuments(ctx context.Context, text string, opts QueryOptions) ([]core.Document, error) {
	if opts.Context != "" {
		return []core.Document{{ID: "context", Content: opts.Context}}, nil
	}
	limit := opts.MaxDocuments
	if limit <= 0 {
		limit = a.opts.MaxDocuments
	}
	if a.retriever == nil {
		return nil, nil
	}

	callCtx, cancel := util.WithOptionalTimeout(ctx, a.opts.RetrieverTimeout)
	defer cancel()
	docs, err := util.CallWithContext(callCtx, func(c context.Context) ([]core.Document, error) {
		return a.retriever.Retrieve(c, text, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve documents: %w", err)
	}
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func formatExcerpts(docs []core.Document) string {
	if len(docs) == 0 {
		return "Context:\n(no relevant documents found)"
	}
	var b strings.Builder
	b.WriteString("Context:")
	for i, d := range docs {
		fmt.Fprintf(&b, "\n[%d] %s", i+1, strings.TrimSpace(d.Content))
	}
	return b.String()
}

// ClearHistory forgets the conversation so far.
func (a *RAGAgent) ClearHistory() { a.history.Clear() }

// AddDocuments forwards docs to the retriever when it supports indexing.
func (a *RAGAgent) AddDocuments(ctx context.Context, docs []core.Document) error {
	idx, ok := a.retriever.(retriever.Indexer)
	if !ok {
		return fmt.Errorf("retriever %T cannot index documents: %w", a.retriever, core.ErrUnsupportedOperation)
	}
	return idx.AddDocuments(ctx, docs)
}

// HandleMessage answers retrieval_request messages with a retrieval_response
// carrying the same correlation id. Other types are rejected.
func (a *RAGAgent) HandleMessage(ctx context.Context, msg core.Message) error {
	if msg.Type != core.MessageTypeRetrievalRequest {
		return a.RejectUnsupported(ctx, msg)
	}

	var resp core.RetrievalResponse
	req, err := decodeRetrievalRequest(msg.Payload)
	if err == nil {
		resp.Answer, err = a.Query(ctx, req.Query, QueryOptions{
			Context:       req.Context,
			MaxDocuments:  req.MaxDocuments,
			CorrelationID: msg.Metadata.CorrelationID,
		})
	}
	if err != nil {
		resp.Error = err.Error()
	}
	if pubErr := a.Publish(ctx, core.NewReply(msg, core.MessageTypeRetrievalResponse, a.ID(), resp)); pubErr != nil {
		a.logger.Warn("Failed to publish retrieval response", "agent_id", a.ID(), "error", pubErr.Error())
	}
	return err
}

func decodeRetrievalRequest(payload any) (core.RetrievalRequest, error) {
	switch p := payload.(type) {
	case core.RetrievalRequest:
		return p, nil
	case *core.RetrievalRequest:
		if p == nil {
			break
		}
		return *p, nil
	case string:
		return core.RetrievalRequest{Query: p}, nil
	default:
		if raw, ok := rawJSON(payload); ok {
			return core.RetrievalRequest{
				Query:        gjson.GetBytes(raw, "query").String(),
				Context:      gjson.GetBytes(raw, "context").String(),
				MaxDocuments: int(gjson.GetBytes(raw, "max_documents").Int()),
			}, nil
		}
	}
	return core.RetrievalRequest{}, fmt.Errorf("%w: unsupported retrieval payload %T", core.ErrValidation, payload)
}
