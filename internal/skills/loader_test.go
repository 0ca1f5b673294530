package skills

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoader_LoadLocalSkipsInvalidAndLoadsValid(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader(dir)

	valid := `
id: good-skill
kind: slash_command
name: Good
enabled: true
config:
  slashCommand:
    name: good
    prompt: "do the thing"
`
	if err := os.WriteFile(filepath.Join(dir, "good.yaml"), []byte(valid), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	invalid := `
id: bad-skill
kind: slash_command
name: Bad
enabled: true
config: {}
`
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(invalid), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("not a skill"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	loaded, err := loader.LoadLocal()
	if err != nil {
		t.Fatalf("LoadLocal() error = %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("LoadLocal() returned %d skills, want 1 (bad.yaml should be skipped)", len(loaded))
	}
	if loaded[0].ID != "good-skill" {
		t.Errorf("loaded skill id = %q, want good-skill", loaded[0].ID)
	}
}

func TestLoader_LoadFileStampsIDAndSource(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader(dir)

	content := `{"kind":"template","name":"t","enabled":true,"config":{"template":{"content":"hi"}}}`
	path := filepath.Join(dir, "t.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	s, err := loader.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if s.ID == "" {
		t.Error("LoadFile() left ID empty, want a generated id")
	}
	if s.Source != "file://"+path {
		t.Errorf("Source = %q, want file://%s", s.Source, path)
	}
}

func TestLoader_ImportLegacySettings(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader(dir)

	settings := `
[slash_commands.test]
prompt = "Test the code with $ARGUMENTS"
description = "Run tests"
`
	path := filepath.Join(dir, "settings.toml")
	if err := os.WriteFile(path, []byte(settings), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	skills, err := loader.ImportLegacySettings(path)
	if err != nil {
		t.Fatalf("ImportLegacySettings() error = %v", err)
	}
	if len(skills) != 1 {
		t.Fatalf("ImportLegacySettings() returned %d skills, want 1", len(skills))
	}
	s := skills[0]
	if s.Name != "/test" {
		t.Errorf("Name = %q, want /test", s.Name)
	}
	if !s.Config.SlashCommand.RequiresArgs {
		t.Error("RequiresArgs = false, want true (prompt contains $ARGUMENTS)")
	}
}
