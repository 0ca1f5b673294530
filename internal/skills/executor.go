package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/HyphaGroup/oubliette/internal/logger"
)

// defaultStepTimeout is applied to a workflow shell step when the step
// itself declares none.
const defaultStepTimeout = 60 * time.Second

// Executor dispatches skill execution by kind against a Registry.
type Executor struct {
	registry       *Registry
	defaultTimeout time.Duration
}

// NewExecutor returns an executor bound to registry with a five-minute
// default timeout for hook invocations that don't declare their own.
// Workflow shell steps use defaultStepTimeout instead.
func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry, defaultTimeout: 5 * time.Minute}
}

// WithTimeout overrides the default hook timeout.
func (e *Executor) WithTimeout(d time.Duration) *Executor {
	e.defaultTimeout = d
	return e
}

// Execute runs the skill identified by id under context ctx.
func (e *Executor) Execute(ctx context.Context, id string, sctx Context) Result {
	start := time.Now()

	skill, ok := e.registry.Get(id)
	if !ok {
		return failResult(fmt.Sprintf("skill not found: %s", id), start)
	}
	if !skill.Enabled {
		return failResult("skill is disabled", start)
	}

	logger.Info("executing skill: %s (%s)", skill.Name, skill.ID)

	switch skill.Kind {
	case KindSlashCommand:
		return e.executeSlashCommand(skill, sctx, start)
	case KindHook:
		return e.executeHook(ctx, skill, sctx, start)
	case KindWorkflow:
		return e.executeWorkflow(ctx, skill, sctx, start)
	case KindTemplate:
		return e.executeTemplate(skill, sctx, start)
	case KindAgent:
		return e.executeAgent(skill, start)
	default:
		return failResult(fmt.Sprintf("unknown skill kind %q", skill.Kind), start)
	}
}

// ExecuteSlashCommandByName resolves and runs a registered slash command by
// its bare name, substituting arguments as the command's $ARGUMENTS value.
func (e *Executor) ExecuteSlashCommandByName(commandName, arguments, projectPath string) Result {
	start := time.Now()

	skill, ok := e.registry.GetSlashCommand(commandName)
	if !ok {
		return failResult(fmt.Sprintf("slash command not found: /%s", commandName), start)
	}

	sctx := Context{
		ProjectPath: projectPath,
		Arguments:   map[string]interface{}{"ARGUMENTS": arguments},
	}
	return e.executeSlashCommand(skill, sctx, start)
}

func (e *Executor) executeSlashCommand(skill *Skill, sctx Context, start time.Time) Result {
	cfg := skill.Config.SlashCommand
	if cfg == nil {
		return failResult("invalid slash command configuration", start)
	}

	prompt := cfg.Prompt
	if args, ok := sctx.Arguments["ARGUMENTS"]; ok {
		if s, ok := args.(string); ok {
			prompt = strings.ReplaceAll(prompt, "$ARGUMENTS", s)
		}
	}
	for key, value := range sctx.Variables {
		placeholder := "${" + key + "}"
		prompt = strings.ReplaceAll(prompt, placeholder, stringify(value))
	}

	output, _ := json.Marshal(map[string]string{"prompt": prompt, "command": cfg.Name})
	return Result{Success: true, Output: output, DurationMs: time.Since(start).Milliseconds()}
}

func (e *Executor) executeHook(ctx context.Context, skill *Skill, sctx Context, start time.Time) Result {
	cfg := skill.Config.Hook
	if cfg == nil {
		return failResult("invalid hook configuration", start)
	}

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	stdout, stderr, code, err := runShell(ctx, cfg.Command, sctx.ProjectPath, timeout, cfg.Env)
	return shellResult(stdout, stderr, code, err, start)
}

// ExecuteHooksForTrigger runs every hook skill bound to trigger in
// registration order, collecting each result independently — one hook's
// failure never stops the rest.
func (e *Executor) ExecuteHooksForTrigger(ctx context.Context, trigger HookTrigger, sctx Context) []Result {
	hooks := e.registry.HooksForTrigger(trigger)
	results := make([]Result, 0, len(hooks))
	for _, h := range hooks {
		results = append(results, e.Execute(ctx, h.ID, sctx))
	}
	return results
}

func (e *Executor) executeWorkflow(ctx context.Context, skill *Skill, sctx Context, start time.Time) Result {
	wf := skill.Config.Workflow
	if wf == nil {
		return failResult("invalid workflow configuration", start)
	}

	completed := make(map[string]json.RawMessage)
	variables := make(map[string]interface{}, len(sctx.Variables))
	for k, v := range sctx.Variables {
		variables[k] = v
	}

	var stepResults []StepResult
	for _, step := range wf.Steps {
		depsMet := true
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				depsMet = false
				break
			}
		}

		if !depsMet {
			// A dependency gap only fails this step; it does not abort the
			// workflow. Only an actual step-execution failure does that.
			stepResults = append(stepResults, StepResult{
				StepID:   step.ID,
				StepName: step.Name,
				Success:  false,
				Error:    "Dependencies not met",
			})
			continue
		}

		result := e.executeWorkflowStep(ctx, step, sctx, variables)
		if result.Success {
			completed[step.ID] = result.Output
		}
		stepResults = append(stepResults, result)
		if !result.Success {
			break
		}
	}

	allSuccess := true
	var failErr string
	for _, r := range stepResults {
		if !r.Success {
			allSuccess = false
			if failErr == "" {
				failErr = r.Error
			}
		}
	}

	output, _ := json.Marshal(map[string]interface{}{"completed": completed, "variables": variables})
	return Result{
		Success:    allSuccess,
		Output:     output,
		Error:      ifNotEmpty(!allSuccess, failErr),
		DurationMs: time.Since(start).Milliseconds(),
		Steps:      stepResults,
	}
}

func (e *Executor) executeWorkflowStep(ctx context.Context, step WorkflowStep, sctx Context, variables map[string]interface{}) StepResult {
	start := time.Now()
	logger.Info("executing workflow step: %s (%s)", step.Name, step.ID)

	var cfg map[string]interface{}
	_ = json.Unmarshal(step.Config, &cfg)

	var success bool
	var output json.RawMessage
	var stepErr string

	switch step.Kind {
	case StepShell:
		command, _ := cfg["command"].(string)
		timeout := defaultStepTimeout
		if step.TimeoutSec != nil {
			timeout = time.Duration(*step.TimeoutSec) * time.Second
		}
		stdout, stderr, code, err := runShell(ctx, command, sctx.ProjectPath, timeout, sctx.Env)
		if err != nil {
			stepErr = err.Error()
		} else {
			success = code == 0
			output, _ = json.Marshal(map[string]interface{}{"stdout": stdout, "stderr": stderr, "exitCode": code})
			if !success {
				stepErr = stderr
			}
		}
	case StepPrompt:
		prompt, _ := cfg["prompt"].(string)
		success = true
		output, _ = json.Marshal(map[string]string{"prompt": prompt})
	case StepSkillRef:
		skillID, _ := cfg["skill_id"].(string)
		result := e.Execute(ctx, skillID, sctx)
		success = result.Success
		output = result.Output
		stepErr = result.Error
	default:
		// Tool, Condition, Parallel, UserInput: accepted as no-ops, an
		// explicit extension point rather than an unhandled case.
		success = true
	}

	return StepResult{
		StepID:     step.ID,
		StepName:   step.Name,
		Success:    success,
		Output:     output,
		Error:      stepErr,
		DurationMs: time.Since(start).Milliseconds(),
	}
}

func (e *Executor) executeTemplate(skill *Skill, sctx Context, start time.Time) Result {
	cfg := skill.Config.Template
	if cfg == nil {
		return failResult("invalid template configuration", start)
	}

	content := cfg.Content
	for _, v := range cfg.Variables {
		placeholder := "{{" + v.Name + "}}"
		value := ""
		if raw, ok := sctx.Variables[v.Name]; ok {
			value = stringify(raw)
		} else if v.Default != nil {
			value = *v.Default
		}
		content = strings.ReplaceAll(content, placeholder, value)
	}

	output, _ := json.Marshal(map[string]string{"content": content})
	return Result{Success: true, Output: output, DurationMs: time.Since(start).Milliseconds()}
}

func (e *Executor) executeAgent(skill *Skill, start time.Time) Result {
	cfg := skill.Config.Agent
	if cfg == nil {
		return failResult("invalid agent configuration", start)
	}

	output, _ := json.Marshal(map[string]interface{}{"agent": cfg})
	return Result{Success: true, Output: output, DurationMs: time.Since(start).Milliseconds()}
}

// runShell runs command in a POSIX or Windows subshell bounded by timeout,
// returning stdout, stderr, and the exit code.
func runShell(ctx context.Context, command, workDir string, timeout time.Duration, env map[string]string) (string, string, int, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	shell, shellArg := "sh", "-c"
	if runtime.GOOS == "windows" {
		shell, shellArg = "cmd", "/C"
	}

	cmd := exec.CommandContext(runCtx, shell, shellArg, command)
	cmd.Dir = workDir
	cmd.Env = mergedEnv(env)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return stdout.String(), stderr.String(), -1, fmt.Errorf("command timed out")
	}

	code := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	} else if err != nil {
		return stdout.String(), stderr.String(), -1, fmt.Errorf("failed to run command: %w", err)
	}
	return stdout.String(), stderr.String(), code, nil
}

func mergedEnv(extra map[string]string) []string {
	base := os.Environ()
	for k, v := range extra {
		base = append(base, k+"="+v)
	}
	return base
}

func shellResult(stdout, stderr string, code int, err error, start time.Time) Result {
	if err != nil {
		return failResult(err.Error(), start)
	}
	success := code == 0
	output, _ := json.Marshal(map[string]interface{}{"stdout": stdout, "stderr": stderr, "exitCode": code})
	return Result{
		Success:    success,
		Output:     output,
		Error:      ifNotEmpty(!success, stderr),
		DurationMs: time.Since(start).Milliseconds(),
	}
}

func ifNotEmpty(cond bool, s string) string {
	if cond {
		return s
	}
	return ""
}

func stringify(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, _ := json.Marshal(v)
	return string(data)
}
