package skills

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// kindSchemas holds one resolved JSON Schema per skill kind, validating the
// kind-specific sub-field of Config at load time so a malformed skill file
// fails fast instead of surfacing as an executor error mid-dispatch.
var kindSchemas = map[Kind]*jsonschema.Resolved{}

func init() {
	schemas := map[Kind]*jsonschema.Schema{
		KindSlashCommand: {
			Type:     "object",
			Required: []string{"name", "prompt"},
			Properties: map[string]*jsonschema.Schema{
				"name":   {Type: "string"},
				"prompt": {Type: "string"},
			},
		},
		KindHook: {
			Type:     "object",
			Required: []string{"trigger", "command"},
			Properties: map[string]*jsonschema.Schema{
				"trigger": {Type: "string"},
				"command": {Type: "string"},
			},
		},
		KindWorkflow: {
			Type:     "object",
			Required: []string{"steps"},
			Properties: map[string]*jsonschema.Schema{
				"steps": {Type: "array"},
			},
		},
		KindTemplate: {
			Type:     "object",
			Required: []string{"content"},
			Properties: map[string]*jsonschema.Schema{
				"content": {Type: "string"},
			},
		},
		KindAgent: {
			Type:     "object",
			Required: []string{"name", "systemPrompt", "model"},
			Properties: map[string]*jsonschema.Schema{
				"name":         {Type: "string"},
				"systemPrompt": {Type: "string"},
				"model":        {Type: "string"},
			},
		},
	}

	for kind, schema := range schemas {
		resolved, err := schema.Resolve(nil)
		if err != nil {
			panic(fmt.Sprintf("skills: invalid built-in schema for %s: %v", kind, err))
		}
		kindSchemas[kind] = resolved
	}
}

// validateConfig checks that the sub-field of cfg matching kind is present
// and satisfies that kind's JSON Schema.
func validateConfig(kind Kind, cfg Config) error {
	var payload interface{}
	switch kind {
	case KindSlashCommand:
		if cfg.SlashCommand == nil {
			return fmt.Errorf("skill kind %s requires a slashCommand config", kind)
		}
		payload = cfg.SlashCommand
	case KindHook:
		if cfg.Hook == nil {
			return fmt.Errorf("skill kind %s requires a hook config", kind)
		}
		payload = cfg.Hook
	case KindWorkflow:
		if cfg.Workflow == nil {
			return fmt.Errorf("skill kind %s requires a workflow config", kind)
		}
		payload = cfg.Workflow
	case KindTemplate:
		if cfg.Template == nil {
			return fmt.Errorf("skill kind %s requires a template config", kind)
		}
		payload = cfg.Template
	case KindAgent:
		if cfg.Agent == nil {
			return fmt.Errorf("skill kind %s requires an agent config", kind)
		}
		payload = cfg.Agent
	default:
		return fmt.Errorf("unknown skill kind %q", kind)
	}

	resolved, ok := kindSchemas[kind]
	if !ok {
		return fmt.Errorf("no schema registered for skill kind %q", kind)
	}

	// Round-trip through encoding/json so struct field tags become the
	// plain-map shape jsonschema validates against.
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s config: %w", kind, err)
	}
	var instance interface{}
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("failed to decode %s config: %w", kind, err)
	}

	if err := resolved.Validate(instance); err != nil {
		return fmt.Errorf("invalid %s config: %w", kind, err)
	}
	return nil
}
