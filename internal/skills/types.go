// Package skills implements the Extension Plane: a typed registry, loader,
// and executor for user-authored slash commands, hooks, workflows,
// templates, and agent presets.
package skills

import (
	"encoding/json"
	"time"
)

// Kind enumerates the five skill variants the executor dispatches on.
type Kind string

const (
	KindSlashCommand Kind = "slash_command"
	KindHook         Kind = "hook"
	KindWorkflow     Kind = "workflow"
	KindTemplate     Kind = "template"
	KindAgent        Kind = "agent"
)

// Visibility scopes where a skill may be invoked from.
type Visibility string

const (
	VisibilityGlobal    Visibility = "global"
	VisibilityProject   Visibility = "project"
	VisibilityWorkspace Visibility = "workspace"
)

// HookTrigger is the lifecycle event a Hook skill binds to.
type HookTrigger string

const (
	HookPreTool          HookTrigger = "pre_tool"
	HookPostTool         HookTrigger = "post_tool"
	HookSessionStart     HookTrigger = "session_start"
	HookSessionEnd       HookTrigger = "session_end"
	HookCheckpointCreate HookTrigger = "checkpoint_create"
	HookOnError          HookTrigger = "on_error"
)

// WorkflowStepKind is the per-step execution variant within a Workflow.
type WorkflowStepKind string

const (
	StepPrompt    WorkflowStepKind = "prompt"
	StepTool      WorkflowStepKind = "tool"
	StepShell     WorkflowStepKind = "shell"
	StepCondition WorkflowStepKind = "condition"
	StepParallel  WorkflowStepKind = "parallel"
	StepUserInput WorkflowStepKind = "user_input"
	StepSkillRef  WorkflowStepKind = "skill_ref"
)

// WorkflowStep is one node of a workflow's dependency graph. Config is
// step-kind-specific raw JSON rather than a Go union of step payload types;
// it is not schema-checked at load time, and the executor reads the keys it
// needs ("command", "prompt", "skill_id") when the step runs.
type WorkflowStep struct {
	ID         string          `json:"id" yaml:"id"`
	Kind       WorkflowStepKind `json:"kind" yaml:"kind"`
	Name       string          `json:"name" yaml:"name"`
	Config     json.RawMessage `json:"config" yaml:"config"`
	DependsOn  []string        `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
	Condition  string          `json:"condition,omitempty" yaml:"condition,omitempty"`
	TimeoutSec *uint64         `json:"timeoutSecs,omitempty" yaml:"timeoutSecs,omitempty"`
	Retry      *RetryConfig    `json:"retry,omitempty" yaml:"retry,omitempty"`
}

// BackoffKind discriminates a RetryConfig's backoff shape. This is a tagged
// struct, not an interface, like rtp.AuthConfig: the set is closed and the whole thing needs one
// serializable shape for skill-file round trips.
type BackoffKind string

const (
	BackoffFixed       BackoffKind = "fixed"
	BackoffExponential BackoffKind = "exponential"
	BackoffLinear      BackoffKind = "linear"
)

// RetryConfig is a step's declared retry policy. It is parsed and stored
// with the step, but the executor does not retry: a failed step halts the
// workflow on its first failure whatever its retry block says, and
// StepResult.Retries is always 0.
type RetryConfig struct {
	MaxAttempts uint32      `json:"maxAttempts" yaml:"maxAttempts"`
	Backoff     BackoffKind `json:"backoff" yaml:"backoff"`
	// Only the field(s) matching Backoff are meaningful.
	DelayMs      uint64   `json:"delayMs,omitempty" yaml:"delayMs,omitempty"`
	InitialMs    uint64   `json:"initialMs,omitempty" yaml:"initialMs,omitempty"`
	MaxMs        uint64   `json:"maxMs,omitempty" yaml:"maxMs,omitempty"`
	Multiplier   float64  `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
	IncrementMs  uint64   `json:"incrementMs,omitempty" yaml:"incrementMs,omitempty"`
	RetryOn      []string `json:"retryOn,omitempty" yaml:"retryOn,omitempty"`
}

// Dependency names another skill this one requires.
type Dependency struct {
	SkillID  string  `json:"skillId" yaml:"skillId"`
	Version  *string `json:"version,omitempty" yaml:"version,omitempty"`
	Optional bool    `json:"optional" yaml:"optional"`
}

// Metadata carries authorship and packaging information, independent of a
// skill's kind.
type Metadata struct {
	Author           *string      `json:"author,omitempty" yaml:"author,omitempty"`
	Version          string       `json:"version" yaml:"version"`
	Tags             []string     `json:"tags,omitempty" yaml:"tags,omitempty"`
	License          *string      `json:"license,omitempty" yaml:"license,omitempty"`
	Repository       *string      `json:"repository,omitempty" yaml:"repository,omitempty"`
	Homepage         *string      `json:"homepage,omitempty" yaml:"homepage,omitempty"`
	MinKernelVersion *string      `json:"minKernelVersion,omitempty" yaml:"minKernelVersion,omitempty"`
	Dependencies     []Dependency `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// DefaultMetadata returns the zero-value metadata a freshly authored skill
// gets absent explicit packaging information.
func DefaultMetadata() Metadata {
	return Metadata{Version: "1.0.0"}
}

// ArgDef describes one positional or named slash-command argument.
type ArgDef struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Required    bool     `json:"required" yaml:"required"`
	Default     *string  `json:"default,omitempty" yaml:"default,omitempty"`
	Choices     []string `json:"choices,omitempty" yaml:"choices,omitempty"`
}

// ArgsConfig groups a slash command's positional and named arguments.
type ArgsConfig struct {
	Positional []ArgDef `json:"positional,omitempty" yaml:"positional,omitempty"`
	Named      []ArgDef `json:"named,omitempty" yaml:"named,omitempty"`
}

// SlashCommandConfig is the kind-specific payload for KindSlashCommand.
type SlashCommandConfig struct {
	Name         string      `json:"name" yaml:"name"`
	Description  string      `json:"description" yaml:"description"`
	Help         *string     `json:"help,omitempty" yaml:"help,omitempty"`
	Prompt       string      `json:"prompt" yaml:"prompt"`
	RequiresArgs bool        `json:"requiresArgs" yaml:"requiresArgs"`
	Args         *ArgsConfig `json:"args,omitempty" yaml:"args,omitempty"`
	Examples     []string    `json:"examples,omitempty" yaml:"examples,omitempty"`
}

// HookConfig is the kind-specific payload for KindHook.
type HookConfig struct {
	Trigger     HookTrigger       `json:"trigger" yaml:"trigger"`
	ToolPattern []string          `json:"toolPatterns,omitempty" yaml:"toolPatterns,omitempty"`
	Command     string            `json:"command" yaml:"command"`
	TimeoutSec  uint64            `json:"timeoutSecs" yaml:"timeoutSecs"`
	CanBlock    bool              `json:"canBlock" yaml:"canBlock"`
	Env         map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

// InputDef describes one workflow input variable.
type InputDef struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description" yaml:"description"`
	VarType     string          `json:"varType" yaml:"varType"`
	Required    bool            `json:"required" yaml:"required"`
	Default     json.RawMessage `json:"default,omitempty" yaml:"default,omitempty"`
}

// WorkflowConfig is the kind-specific payload for KindWorkflow.
type WorkflowConfig struct {
	Steps      []WorkflowStep    `json:"steps" yaml:"steps"`
	Inputs     []InputDef        `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs    map[string]string `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	TimeoutSec *uint64           `json:"timeoutSecs,omitempty" yaml:"timeoutSecs,omitempty"`
	// MaxParallel is parsed and stored but intentionally unused by the
	// executor, which runs steps sequentially. A noted future extension,
	// not a forgotten feature.
	MaxParallel *uint32 `json:"maxParallel,omitempty" yaml:"maxParallel,omitempty"`
}

// TemplateVariable is one substitutable placeholder in a Template skill.
type TemplateVariable struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
	Default     *string `json:"default,omitempty" yaml:"default,omitempty"`
}

// TemplateConfig is the kind-specific payload for KindTemplate.
type TemplateConfig struct {
	Content   string             `json:"content" yaml:"content"`
	Variables []TemplateVariable `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// AgentConfig is the kind-specific payload for KindAgent: a declarative
// agent preset returned verbatim to the caller for it to realize.
type AgentConfig struct {
	Name          string   `json:"name" yaml:"name"`
	SystemPrompt  string   `json:"systemPrompt" yaml:"systemPrompt"`
	Model         string   `json:"model" yaml:"model"`
	PermissionMode string  `json:"permissionMode" yaml:"permissionMode"`
	AllowedTools  []string `json:"allowedTools,omitempty" yaml:"allowedTools,omitempty"`
	DeniedTools   []string `json:"deniedTools,omitempty" yaml:"deniedTools,omitempty"`
	McpServers    []string `json:"mcpServers,omitempty" yaml:"mcpServers,omitempty"`
	MaxTurns      *uint32  `json:"maxTurns,omitempty" yaml:"maxTurns,omitempty"`
}

// Config holds exactly one populated sub-field, selected by the owning
// Skill's Kind — a tagged struct rather than an interface hierarchy, like
// rtp.AuthConfig, since the variant set is closed.
type Config struct {
	SlashCommand *SlashCommandConfig `json:"slashCommand,omitempty" yaml:"slashCommand,omitempty"`
	Hook         *HookConfig         `json:"hook,omitempty" yaml:"hook,omitempty"`
	Workflow     *WorkflowConfig     `json:"workflow,omitempty" yaml:"workflow,omitempty"`
	Template     *TemplateConfig     `json:"template,omitempty" yaml:"template,omitempty"`
	Agent        *AgentConfig        `json:"agent,omitempty" yaml:"agent,omitempty"`
}

// Skill is a single user-authored extension unit.
type Skill struct {
	ID          string     `json:"id" yaml:"id"`
	Kind        Kind       `json:"kind" yaml:"kind"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Visibility  Visibility `json:"visibility" yaml:"visibility"`
	Enabled     bool       `json:"enabled" yaml:"enabled"`
	Config      Config     `json:"config" yaml:"config"`
	Metadata    Metadata   `json:"metadata" yaml:"metadata"`
	ProjectPath *string    `json:"projectPath,omitempty" yaml:"projectPath,omitempty"`
	Source      string     `json:"source" yaml:"source"`
	CreatedAt   time.Time  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" yaml:"updatedAt"`
}

// Context carries everything an execution needs: the caller's project,
// an optional session to attribute to, and the variables/arguments/env
// substituted into prompts, hooks, and templates.
type Context struct {
	ProjectPath string                 `json:"projectPath"`
	SessionID   *string                `json:"sessionId,omitempty"`
	Arguments   map[string]interface{} `json:"arguments,omitempty"`
	Env         map[string]string      `json:"env,omitempty"`
	Variables   map[string]interface{} `json:"variables,omitempty"`
}

// StepResult records one workflow step's outcome.
type StepResult struct {
	StepID     string          `json:"stepId"`
	StepName   string          `json:"stepName"`
	Success    bool            `json:"success"`
	Output     json.RawMessage `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMs int64           `json:"durationMs"`
	Retries    uint32          `json:"retries"`
}

// Result is the outcome of a skill execution, regardless of kind.
type Result struct {
	Success    bool            `json:"success"`
	Output     json.RawMessage `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMs int64           `json:"durationMs"`
	Steps      []StepResult    `json:"steps,omitempty"`
}

func failResult(msg string, start time.Time) Result {
	return Result{Success: false, Error: msg, DurationMs: time.Since(start).Milliseconds()}
}
