package core

import (
	"fmt"
	"sync"
	"time"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s TaskStatus) Terminal() bool { return s == TaskCompleted || s == TaskFailed }

// Metadata keys used on Task.Metadata.
const (
	TaskMetaResult = "result"
	TaskMetaError  = "error"
)

// Task is a unit of work accepted by a task agent. It is mutated only by the
// executing agent and never leaves a terminal status.
type Task struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	Status      TaskStatus     `json:"status"`
	ParentID    string         `json:"parent_id,omitempty"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`

	mu sync.RWMutex
}

// NewTask creates a pending task with a fresh id.
func NewTask(description, parentID string) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:          NewID(),
		Description: description,
		Status:      TaskPending,
		ParentID:    parentID,
		Metadata:    map[string]any{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

var allowedTransitions = map[TaskStatus][]TaskStatus{
	TaskPending:    {TaskInProgress, TaskFailed},
	TaskInProgress: {TaskCompleted, TaskFailed},
}

// Transition moves the task to next, rejecting moves out of terminal states
// and moves the status machine does not allow.
func (t *Task) Transition(next TaskStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, allowed := range allowedTransitions[t.Status] {
		if allowed == next {
			t.Status = next
			t.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("%w: task %s cannot move from %s to %s", ErrValidation, t.ID, t.Status, next)
}

// Complete stores result and marks the task completed.
func (t *Task) Complete(result any) error {
	if err := t.Transition(TaskCompleted); err != nil {
		return err
	}
	t.SetMeta(TaskMetaResult, result)
	return nil
}

// Fail stores the error text and marks the task failed.
func (t *Task) Fail(cause error) error {
	if err := t.Transition(TaskFailed); err != nil {
		return err
	}
	if cause != nil {
		t.SetMeta(TaskMetaError, cause.Error())
	}
	return nil
}

// CurrentStatus returns the status under the task lock.
func (t *Task) CurrentStatus() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status
}

// SetMeta stores a metadata value.
func (t *Task) SetMeta(key string, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Metadata[key] = value
	t.UpdatedAt = time.Now().UTC()
}

// Meta returns a metadata value and whether it was present.
func (t *Task) Meta(key string) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.Metadata[key]
	return v, ok
}

// Result returns the stored result, if any.
func (t *Task) Result() any {
	v, _ := t.Meta(TaskMetaResult)
	return v
}

// Subtask is one node of a task decomposition. DependsOn references other
// subtasks of the same decomposition by ID (or, for compatibility, by their
// unique description).
type Subtask struct {
	ID          string         `json:"id,omitempty" jsonschema:"description=Stable identifier referenced by depends_on"`
	Description string         `json:"description" jsonschema:"description=What this step does"`
	ToolName    string         `json:"tool_name,omitempty" jsonschema:"description=Registered tool to invoke; empty for pass-through steps"`
	Parameters  map[string]any `json:"parameters,omitempty" jsonschema:"description=Arguments for the tool"`
	DependsOn   []string       `json:"depends_on,omitempty" jsonschema:"description=IDs of subtasks that must finish first"`
}

// SubtaskResult is the outcome of one executed subtask.
type SubtaskResult struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Result      any    `json:"result"`
}
