package skills

import (
	"path/filepath"
	"testing"
)

func newTestSkill(id, cmdName string) *Skill {
	return &Skill{
		ID:         id,
		Kind:       KindSlashCommand,
		Name:       "Test Skill",
		Visibility: VisibilityGlobal,
		Enabled:    true,
		Config: Config{
			SlashCommand: &SlashCommandConfig{
				Name:   cmdName,
				Prompt: "Run tests on $ARGUMENTS",
			},
		},
		Metadata: DefaultMetadata(),
		Source:   "local",
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "skills.yaml"))

	if len(reg.ListAll()) != 0 {
		t.Fatalf("ListAll() on empty registry = %v, want empty", reg.ListAll())
	}

	if err := reg.Register(newTestSkill("test-skill", "test")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if !reg.HasSlashCommand("test") {
		t.Error("HasSlashCommand(\"test\") = false, want true")
	}
	s, ok := reg.GetSlashCommand("test")
	if !ok || s.ID != "test-skill" {
		t.Errorf("GetSlashCommand(\"test\") = %v, %v, want test-skill", s, ok)
	}
}

func TestRegistry_RegisterDuplicateSlashCommand(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "skills.yaml"))

	if err := reg.Register(newTestSkill("first", "dup")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := reg.Register(newTestSkill("second", "dup")); err == nil {
		t.Error("Register() with a colliding slash command name succeeded, want error")
	}
}

func TestRegistry_UnregisterRemovesIndexes(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "skills.yaml"))
	if err := reg.Register(newTestSkill("test-skill", "test")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := reg.Unregister("test-skill"); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}
	if reg.HasSlashCommand("test") {
		t.Error("HasSlashCommand(\"test\") = true after Unregister, want false")
	}
	if _, ok := reg.Get("test-skill"); ok {
		t.Error("Get() found skill after Unregister")
	}
}

func TestRegistry_HooksForTrigger(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "skills.yaml"))
	hook := &Skill{
		ID:         "hook-1",
		Kind:       KindHook,
		Name:       "Pre-tool guard",
		Visibility: VisibilityGlobal,
		Enabled:    true,
		Config: Config{
			Hook: &HookConfig{Trigger: HookPreTool, Command: "echo hi", TimeoutSec: 5},
		},
		Metadata: DefaultMetadata(),
	}
	if err := reg.Register(hook); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	hooks := reg.HooksForTrigger(HookPreTool)
	if len(hooks) != 1 || hooks[0].ID != "hook-1" {
		t.Errorf("HooksForTrigger(PreTool) = %v, want [hook-1]", hooks)
	}
	if len(reg.HooksForTrigger(HookPostTool)) != 0 {
		t.Error("HooksForTrigger(PostTool) found hooks, want none")
	}
}

func TestRegistry_LoadPersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skills.yaml")

	reg := NewRegistry(path)
	if err := reg.Register(newTestSkill("test-skill", "test")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	reloaded := NewRegistry(path)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reloaded.HasSlashCommand("test") {
		t.Error("reloaded registry missing slash command, want it restored from disk")
	}
}
