package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/TSGCFO/langchain-agent/bus"
	"github.com/TSGCFO/langchain-agent/core"
	"github.com/TSGCFO/langchain-agent/evaluation"
	"github.com/TSGCFO/langchain-agent/internal/util"
	"github.com/TSGCFO/langchain-agent/logging"
	"github.com/TSGCFO/langchain-agent/memory"
	"github.com/TSGCFO/langchain-agent/model"
	"github.com/TSGCFO/langchain-agent/telemetry"
	"github.com/TSGCFO/langchain-agent/tool"
)

// DefaultMaxSubtasks bounds a decomposition when no limit is configured.
const DefaultMaxSubtasks = 10

const defaultTaskInstruction = `You are {{.name}}, a task execution agent.
Either pick exactly one tool and its parameters, or, when the request needs
several steps, return a list of subtasks instead. Subtasks may name a tool and
list the ids of the subtasks they depend on. Explain your choice in reasoning,
for example "using calculator because the request is arithmetic".

Available tools:
{{range .tools}}- {{.name}}: {{.description}}
  parameters: {{.parameters}}
{{else}}(none)
{{end}}`

// Plan is the structured analysis the model returns for a request. A non-empty
// Subtasks list selects decomposition; otherwise ToolName is called with
// Parameters.
type Plan struct {
	ToolName   string         `json:"tool_name,omitempty" jsonschema:"description=Tool to call for a single-step request"`
	Parameters map[string]any `json:"parameters,omitempty" jsonschema:"description=Arguments for the tool"`
	Reasoning  string         `json:"reasoning,omitempty" jsonschema:"description=Why this tool or decomposition was chosen"`
	Subtasks   []core.Subtask `json:"subtasks,omitempty" jsonschema:"description=Steps for a multi-step request"`
}

// TaskAgentOptions configures a TaskAgent.
type TaskAgentOptions struct {
	BaseOptions
	// Instruction is the system prompt template. It receives "name" and
	// "tools" (name, description, parameters as JSON).
	Instruction string
	// MaxSubtasks defaults to DefaultMaxSubtasks.
	MaxSubtasks int
	// TaskTimeout bounds a whole task, ToolTimeout each tool call and
	// ModelTimeout each model call. Zero means unbounded.
	TaskTimeout  time.Duration
	ToolTimeout  time.Duration
	ModelTimeout time.Duration
	Recorder     telemetry.Recorder
	Evaluator    evaluation.Evaluator
}

// TaskAgent executes task requests: one model call plans the work, then either
// a single tool runs or a dependency-ordered list of subtasks runs strictly
// one after another.
type TaskAgent struct {
	*BaseAgent
	llm   model.Model
	tools *tool.Registry
	opts  TaskAgentOptions

	mu    sync.RWMutex
	tasks map[string]*core.Task
}

// NewTaskAgent creates a TaskAgent subscribed to task_request. Capabilities
// default to the names of the registered tools.
func NewTaskAgent(name string, llm model.Model, tools *tool.Registry, b *bus.MessageBus, optFns ...func(o *TaskAgentOptions)) *TaskAgent {
	opts := TaskAgentOptions{
		Instruction: defaultTaskInstruction,
		MaxSubtasks: DefaultMaxSubtasks,
		Evaluator:   evaluation.Heuristic{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if tools == nil {
		tools = tool.NewRegistry()
	}
	if opts.Capabilities == nil {
		opts.Capabilities = tools.Names()
	}
	if opts.Recorder == nil {
		opts.Recorder = telemetry.NopRecorder{}
	}
	if opts.Evaluator == nil {
		opts.Evaluator = evaluation.Heuristic{}
	}
	if opts.MaxSubtasks <= 0 {
		opts.MaxSubtasks = DefaultMaxSubtasks
	}

	a := &TaskAgent{
		BaseAgent: NewBaseAgent(name, core.RoleTask, b, []core.MessageType{core.MessageTypeTaskRequest}, opts.BaseOptions),
		llm:       llm,
		tools:     tools,
		opts:      opts,
		tasks:     make(map[string]*core.Task),
	}
	a.Bind(a.HandleMessage)
	return a
}

// Tools returns the agent's tool registry.
func (a *TaskAgent) Tools() *tool.Registry { return a.tools }

// Task returns a task this agent has accepted.
func (a *TaskAgent) Task(id string) (*core.Task, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	t, ok := a.tasks[id]
	return t, ok
}

// ExecuteTask runs description under a fresh correlation id and returns the
// task result.
func (a *TaskAgent) ExecuteTask(ctx context.Context, description string) (any, error) {
	task, err := a.ProcessTask(ctx, description, core.NewID())
	if err != nil {
		return nil, err
	}
	return task.Result(), nil
}

// ProcessTask plans and executes description. The returned task is non-nil
// whenever one was created, including on failure.
func (a *TaskAgent) ProcessTask(ctx context.Context, description, correlationID string) (*core.Task, error) {
	return a.process(ctx, core.TaskRequest{Description: description}, correlationID)
}

// run carries the per-task values every record needs.
type run struct {
	task          *core.Task
	correlationID string
	start         time.Time
	log           logging.Logger
}

// taskLogger scopes structured loggers to the agent, correlation id and task.
func (a *TaskAgent) taskLogger(correlationID, taskID string) logging.Logger {
	if sl, ok := a.logger.(*logging.StructuredLogger); ok {
		return sl.WithCorrelation(a.ID(), correlationID).WithContext("task_id", taskID)
	}
	return a.logger
}

// reject records a request refused before any task exists.
func (a *TaskAgent) reject(ctx context.Context, command, correlationID string, cause error) error {
	a.recordInteraction(ctx, telemetry.InteractionRecord{
		Command: command,
		Success: false,
		Error:   cause.Error(),
		Metadata: telemetry.InteractionMetadata{
			AgentID:       a.ID(),
			CorrelationID: correlationID,
			Phase:         telemetry.PhaseFinished,
		},
	})
	a.logger.Warn("Task rejected", "agent_id", a.ID(), "correlation_id", correlationID, "error", cause.Error())
	return cause
}

func (a *TaskAgent) process(ctx context.Context, req core.TaskRequest, correlationID string) (*core.Task, error) {
	if correlationID == "" {
		correlationID = core.NewID()
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, a.reject(ctx, req.Description, correlationID, fmt.Errorf("%w: task description is required", core.ErrValidation))
	}

	task := core.NewTask(req.Description, req.ParentID)
	a.mu.Lock()
	a.tasks[task.ID] = task
	a.mu.Unlock()

	r := &run{task: task, correlationID: correlationID, start: time.Now(), log: a.taskLogger(correlationID, task.ID)}

	ctx, cancel := util.WithOptionalTimeout(ctx, a.opts.TaskTimeout)
	defer cancel()

	if err := task.Transition(core.TaskInProgress); err != nil {
		return task, err
	}
	r.log.Info("Task started", "agent_id", a.ID(), "task_id", task.ID, "correlation_id", correlationID)

	a.history.Append(memory.Entry{Role: model.RoleUser, Content: req.Description})

	plan, err := a.plan(ctx, req.Description)
	if err != nil {
		return task, a.fail(ctx, r, nil, "", fmt.Errorf("plan task: %w", err))
	}

	if len(plan.Subtasks) > 0 {
		err = a.runSubtasks(ctx, r, plan)
	} else {
		err = a.runSingle(ctx, r, plan)
	}
	if err != nil {
		return task, err
	}

	a.scratchpad.Set("last_task_id", task.ID)
	a.scratchpad.Set("last_result", task.Result())
	a.history.Append(memory.Entry{Role: model.RoleAssistant, Content: fmt.Sprintf("%v", task.Result())})
	r.log.Info("Task completed", "agent_id", a.ID(), "task_id", task.ID, "duration_ms", time.Since(r.start).Milliseconds())
	return task, nil
}

func (a *TaskAgent) plan(ctx context.Context, description string) (*Plan, error) {
	system, err := a.systemPrompt()
	if err != nil {
		return nil, err
	}

	entries := a.history.Entries()
	msgs := make([]model.Message, 0, len(entries))
	for _, e := range entries {
		msgs = append(msgs, model.Message{Role: e.Role, Content: e.Content})
	}
	if len(msgs) == 0 || msgs[len(msgs)-1].Content != description {
		msgs = append(msgs, model.UserMessage(description))
	}

	callCtx, cancel := util.WithOptionalTimeout(ctx, a.opts.ModelTimeout)
	defer cancel()

	start := time.Now()
	plan, err := util.CallWithContext(callCtx, func(c context.Context) (*Plan, error) {
		var p Plan
		if _, err := model.GenerateStructured(c, a.llm, model.Request{
			System:     system,
			Messages:   msgs,
			SchemaName: "plan",
		}, &p); err != nil {
			return nil, err
		}
		return &p, nil
	})
	a.logger.Debug("Model call finished", "agent_id", a.ID(), "model", a.llm.Info().Name,
		"duration_ms", time.Since(start).Milliseconds(), "success", err == nil)
	return plan, err
}

func (a *TaskAgent) systemPrompt() (string, error) {
	decls := a.tools.Declarations()
	toolsState := make([]any, 0, len(decls))
	for _, d := range decls {
		params, err := json.Marshal(d.Parameters)
		if err != nil {
			return "", fmt.Errorf("encode parameters of %s: %w", d.Name, err)
		}
		toolsState = append(toolsState, map[string]any{
			"name":        d.Name,
			"description": d.Description,
			"parameters":  string(params),
		})
	}
	return util.RenderTemplate(a.opts.Instruction, map[string]any{
		"name":  a.Name(),
		"tools": toolsState,
	})
}

// runSingle executes a single tool directive. A placeholder interaction is
// written before the call and replaced (same id) by the final record.
func (a *TaskAgent) runSingle(ctx context.Context, r *run, plan *Plan) error {
	analysis := &telemetry.Analysis{ToolName: plan.ToolName, Parameters: plan.Parameters, Reasoning: plan.Reasoning}
	if plan.ToolName == "" {
		return a.fail(ctx, r, analysis, "", fmt.Errorf("%w: model selected no tool", core.ErrToolNotFound))
	}

	interactionID := core.NewID()
	a.recordInteraction(ctx, telemetry.InteractionRecord{
		ID:       interactionID,
		Command:  r.task.Description,
		Analysis: analysis,
		Success:  false,
		Metadata: a.metadata(r, telemetry.PhaseStarted, 0),
	})

	result, elapsed, err := a.invoke(ctx, r, plan.ToolName, plan.Parameters)
	if err != nil {
		return a.fail(ctx, r, analysis, interactionID, err)
	}
	if err := r.task.Complete(result); err != nil {
		return a.fail(ctx, r, analysis, interactionID, err)
	}

	a.recordInteraction(ctx, telemetry.InteractionRecord{
		ID:       interactionID,
		Command:  r.task.Description,
		Analysis: analysis,
		Result:   result,
		Success:  true,
		Metadata: a.metadata(r, telemetry.PhaseFinished, elapsed),
	})
	a.evaluate(ctx, interactionID, r, analysis, result)
	return nil
}

// runSubtasks executes a decomposition in dependency order, one subtask at a
// time. The first failure aborts the rest; finished subtasks are not undone.
func (a *TaskAgent) runSubtasks(ctx context.Context, r *run, plan *Plan) error {
	if len(plan.Subtasks) > a.opts.MaxSubtasks {
		return a.fail(ctx, r, nil, "", fmt.Errorf("%w: %d subtasks, limit is %d",
			core.ErrSubtaskCountExceeded, len(plan.Subtasks), a.opts.MaxSubtasks))
	}
	ordered, err := orderSubtasks(plan.Subtasks)
	if err != nil {
		return a.fail(ctx, r, nil, "", err)
	}

	results := make([]core.SubtaskResult, 0, len(ordered))
	for _, st := range ordered {
		if ctx.Err() != nil {
			return a.fail(ctx, r, nil, "", fmt.Errorf("subtask %s not started: %w", st.ID, util.ContextError(ctx)))
		}

		var result any = st.Description
		if _, ok := a.tools.Get(st.ToolName); st.ToolName != "" && ok {
			result, _, err = a.invoke(ctx, r, st.ToolName, st.Parameters)
			if err != nil {
				return a.fail(ctx, r, nil, "", fmt.Errorf("subtask %s (%s): %w", st.ID, st.Description, err))
			}
		}
		results = append(results, core.SubtaskResult{ID: st.ID, Description: st.Description, Result: result})
		r.log.Debug("Subtask finished", "task_id", r.task.ID, "subtask_id", st.ID)
	}

	if err := r.task.Complete(results); err != nil {
		return a.fail(ctx, r, nil, "", err)
	}
	md := a.metadata(r, telemetry.PhaseFinished, time.Since(r.start))
	md.Extra = map[string]any{"subtasks": len(results), "reasoning": plan.Reasoning}
	a.recordInteraction(ctx, telemetry.InteractionRecord{
		Command:  r.task.Description,
		Result:   results,
		Success:  true,
		Metadata: md,
	})
	return nil
}

// invoke calls a tool under ToolTimeout and writes its tool usage record.
func (a *TaskAgent) invoke(ctx context.Context, r *run, name string, params map[string]any) (any, time.Duration, error) {
	callCtx, cancel := util.WithOptionalTimeout(ctx, a.opts.ToolTimeout)
	defer cancel()

	start := time.Now()
	result, err := a.tools.Invoke(callCtx, name, params)
	elapsed := time.Since(start)

	rec := telemetry.ToolUsageRecord{
		ToolName:      name,
		Parameters:    params,
		Result:        result,
		Success:       err == nil,
		ExecutionTime: elapsed.Seconds(),
		AgentID:       a.ID(),
		CorrelationID: r.correlationID,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if recErr := a.opts.Recorder.RecordToolUsage(context.WithoutCancel(ctx), rec); recErr != nil {
		a.logger.Warn("Failed to record tool usage", "tool", name, "error", recErr.Error())
	}
	return result, elapsed, err
}

// fail marks the task failed, writes the failed interaction record (reusing
// interactionID when a placeholder exists) and returns cause.
func (a *TaskAgent) fail(ctx context.Context, r *run, analysis *telemetry.Analysis, interactionID string, cause error) error {
	if ctx.Err() != nil && !errors.Is(cause, core.ErrTimeout) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		cause = fmt.Errorf("%w: %w", core.ErrTimeout, cause)
	}
	if err := r.task.Fail(cause); err != nil {
		r.log.Warn("Failed to mark task failed", "task_id", r.task.ID, "error", err.Error())
	}
	a.recordInteraction(ctx, telemetry.InteractionRecord{
		ID:       interactionID,
		Command:  r.task.Description,
		Analysis: analysis,
		Success:  false,
		Error:    cause.Error(),
		Metadata: a.metadata(r, telemetry.PhaseFinished, time.Since(r.start)),
	})
	r.log.Error("Task failed", "agent_id", a.ID(), "task_id", r.task.ID, "error", cause.Error())
	return cause
}

func (a *TaskAgent) metadata(r *run, phase string, elapsed time.Duration) telemetry.InteractionMetadata {
	return telemetry.InteractionMetadata{
		AgentID:       a.ID(),
		CorrelationID: r.correlationID,
		TaskID:        r.task.ID,
		ExecutionTime: elapsed.Seconds(),
		Phase:         phase,
	}
}

func (a *TaskAgent) recordInteraction(ctx context.Context, rec telemetry.InteractionRecord) {
	if err := a.opts.Recorder.RecordInteraction(context.WithoutCancel(ctx), rec); err != nil {
		a.logger.Warn("Failed to record interaction", "task_id", rec.Metadata.TaskID, "error", err.Error())
	}
}

func (a *TaskAgent) evaluate(ctx context.Context, interactionID string, r *run, analysis *telemetry.Analysis, result any) {
	res, err := a.opts.Evaluator.Evaluate(ctx, evaluation.Invocation{
		Command:        r.task.Description,
		Analysis:       analysis,
		AvailableTools: a.tools.Names(),
		Result:         result,
		Success:        true,
	})
	if err != nil {
		a.logger.Warn("Evaluation failed", "task_id", r.task.ID, "error", err.Error())
		return
	}
	if err := a.opts.Recorder.RecordEvaluation(context.WithoutCancel(ctx), telemetry.EvaluationRecord{
		InteractionID: interactionID,
		Metrics:       res.Metrics,
		Feedback:      res.Feedback,
	}); err != nil {
		a.logger.Warn("Failed to record evaluation", "task_id", r.task.ID, "error", err.Error())
	}
}

// HandleMessage runs task_request messages and answers with a task_response
// carrying the same correlation id. Other types are rejected.
func (a *TaskAgent) HandleMessage(ctx context.Context, msg core.Message) error {
	if msg.Type != core.MessageTypeTaskRequest {
		return a.RejectUnsupported(ctx, msg)
	}

	req, err := decodeTaskRequest(msg.Payload)
	var task *core.Task
	if err == nil {
		task, err = a.process(ctx, req, msg.Metadata.CorrelationID)
	} else {
		err = a.reject(ctx, fmt.Sprint(msg.Payload), msg.Metadata.CorrelationID, err)
	}

	resp := core.TaskResponse{Status: core.TaskFailed}
	if task != nil {
		resp.TaskID = task.ID
		resp.Status = task.CurrentStatus()
		resp.Result = task.Result()
	}
	if err != nil {
		resp.Error = err.Error()
	}
	if pubErr := a.Publish(ctx, core.NewReply(msg, core.MessageTypeTaskResponse, a.ID(), resp)); pubErr != nil {
		a.logger.Warn("Failed to publish task response", "agent_id", a.ID(), "error", pubErr.Error())
	}
	return err
}

func decodeTaskRequest(payload any) (core.TaskRequest, error) {
	switch p := payload.(type) {
	case core.TaskRequest:
		return p, nil
	case *core.TaskRequest:
		if p == nil {
			break
		}
		return *p, nil
	case string:
		return core.TaskRequest{Description: p}, nil
	default:
		if raw, ok := rawJSON(payload); ok {
			return core.TaskRequest{
				Description: gjson.GetBytes(raw, "description").String(),
				ParentID:    gjson.GetBytes(raw, "parent_id").String(),
			}, nil
		}
	}
	return core.TaskRequest{}, fmt.Errorf("%w: unsupported task payload %T", core.ErrValidation, payload)
}

// rawJSON returns payload as JSON bytes for maps, raw JSON and byte slices.
func rawJSON(payload any) ([]byte, bool) {
	switch p := payload.(type) {
	case json.RawMessage:
		return p, gjson.ValidBytes(p)
	case []byte:
		return p, gjson.ValidBytes(p)
	case map[string]any:
		raw, err := json.Marshal(p)
		return raw, err == nil
	}
	return nil, false
}
