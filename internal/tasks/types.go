// Package tasks implements the Task Manager: a registry of arbitrary async
// units of work with progress reporting, cooperative cancellation, and a
// bounded history, independent of any session's conversational transcript.
package tasks

import (
	"time"

	"github.com/google/uuid"
)

// Status is a Task's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusPaused    Status = "paused"
)

// Kind classifies what a task actually does, for filtering and display.
type Kind string

const (
	KindAgentExecution Kind = "agent_execution"
	KindSkillExecution Kind = "skill_execution"
	KindShell          Kind = "shell"
	KindFileOperation  Kind = "file_operation"
	KindMcpToolCall    Kind = "mcp_tool_call"
	KindCheckpoint     Kind = "checkpoint"
	KindSync           Kind = "sync"
	KindAsync          Kind = "async"
)

// Priority orders tasks for display; it does not affect scheduling order,
// which is strictly creation order.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// Progress reports a task's advancement. When Total is known, Percent is
// current/total*100; otherwise progress is indeterminate and only Message
// is meaningful.
type Progress struct {
	Current int64    `json:"current"`
	Total   *int64   `json:"total,omitempty"`
	Percent *float64 `json:"percent,omitempty"`
	Message string   `json:"message"`
	Details string   `json:"details,omitempty"`
}

// Indeterminate returns a Progress with no known total.
func Indeterminate(message string) Progress {
	return Progress{Message: message}
}

// WithTotal returns a Progress computing Percent from current/total.
func WithTotal(current, total int64, message string) Progress {
	p := Progress{Current: current, Total: &total, Message: message}
	if total > 0 {
		pct := float64(current) / float64(total) * 100
		p.Percent = &pct
	}
	return p
}

// Update advances p in place, recomputing Percent if Total is known.
func (p *Progress) Update(current int64, message string) {
	p.Current = current
	p.Message = message
	if p.Total != nil && *p.Total > 0 {
		pct := float64(current) / float64(*p.Total) * 100
		p.Percent = &pct
	}
}

// Result is a task's terminal outcome.
type Result struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	DurationMs int64       `json:"durationMs"`
	Logs       []string    `json:"logs,omitempty"`
}

// Success builds a successful Result.
func Success(data interface{}, durationMs int64) Result {
	return Result{Success: true, Data: data, DurationMs: durationMs}
}

// Failure builds a failed Result.
func Failure(err string, durationMs int64) Result {
	return Result{Success: false, Error: err, DurationMs: durationMs}
}

// Metadata attributes a task to its surrounding context: the project,
// session, and/or agent it was spawned on behalf of.
type Metadata struct {
	ProjectPath *string                `json:"projectPath,omitempty"`
	SessionID   *string                `json:"sessionId,omitempty"`
	AgentID     *int64                 `json:"agentId,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Properties  map[string]interface{} `json:"properties,omitempty"`
}

// Task is a single named asynchronous unit of work.
type Task struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Status       Status    `json:"status"`
	Priority     Priority  `json:"priority"`
	Progress     Progress  `json:"progress"`
	Result       *Result   `json:"result,omitempty"`
	Metadata     Metadata  `json:"metadata"`
	Cancellable  bool      `json:"cancellable"`
	Background   bool      `json:"background"`
	CreatedAt    time.Time `json:"createdAt"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// New creates a Pending, cancellable task of the given kind.
func New(kind Kind, name string) *Task {
	return &Task{
		ID:          "task_" + uuid.NewString(),
		Kind:        kind,
		Name:        name,
		Status:      StatusPending,
		Priority:    PriorityNormal,
		Progress:    Progress{Message: "Starting..."},
		Cancellable: true,
		CreatedAt:   time.Now(),
	}
}

// Start transitions a task to Running and stamps StartedAt.
func (t *Task) Start() {
	t.Status = StatusRunning
	now := time.Now()
	t.StartedAt = &now
}

// Complete records result and transitions to Completed or Failed depending
// on result.Success.
func (t *Task) Complete(result Result) {
	if result.Success {
		t.Status = StatusCompleted
	} else {
		t.Status = StatusFailed
	}
	t.Result = &result
	now := time.Now()
	t.CompletedAt = &now
}

// Cancel transitions a task to Cancelled and stamps CompletedAt.
func (t *Task) Cancel() {
	t.Status = StatusCancelled
	now := time.Now()
	t.CompletedAt = &now
}

// IsActive reports whether the task is still pending or running.
func (t *Task) IsActive() bool {
	return t.Status == StatusPending || t.Status == StatusRunning
}

// IsTerminal reports whether the task has reached a final status.
func (t *Task) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed || t.Status == StatusCancelled
}

// DurationMs returns elapsed time since StartedAt, or nil if the task has
// not started.
func (t *Task) DurationMs() *int64 {
	if t.StartedAt == nil {
		return nil
	}
	end := time.Now()
	if t.CompletedAt != nil {
		end = *t.CompletedAt
	}
	ms := end.Sub(*t.StartedAt).Milliseconds()
	return &ms
}

// Info is the lightweight, read-only view of a Task handed to callers
// (derived, never stored independently of the owning Task).
type Info struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"kind"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	Progress    Progress   `json:"progress"`
	Background  bool       `json:"background"`
	Cancellable bool       `json:"cancellable"`
	Tags        []string   `json:"tags,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	DurationMs  *int64     `json:"durationMs,omitempty"`
}

// ToInfo projects a Task onto its read-only Info view.
func (t *Task) ToInfo() Info {
	return Info{
		ID:          t.ID,
		Kind:        t.Kind,
		Name:        t.Name,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		Progress:    t.Progress,
		Background:  t.Background,
		Cancellable: t.Cancellable,
		Tags:        t.Metadata.Tags,
		CreatedAt:   t.CreatedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
		DurationMs:  t.DurationMs(),
	}
}
