package skills

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	toml "github.com/pelletier/go-toml/v2"
	"go.yaml.in/yaml/v2"
)

// Loader loads Skills from the local filesystem, a remote GitHub repo, or a
// legacy tabular settings document, and can write skills back to disk.
type Loader struct {
	dir         string
	githubToken string
	httpClient  *http.Client
}

// NewLoader returns a loader rooted at dir (created by LoadLocal or SaveFile
// if it does not exist).
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir, httpClient: &http.Client{Timeout: 30 * time.Second}}
}

// WithGitHubToken attaches a bearer token used when fetching from private
// repositories.
func (l *Loader) WithGitHubToken(token string) *Loader {
	l.githubToken = token
	return l
}

// LoadLocal scans dir for .json/.yaml/.yml skill files, skipping any that
// fail to read, parse or validate rather than aborting the whole scan. The
// skipped files are not reported to the caller.
func (l *Loader) LoadLocal() ([]*Skill, error) {
	if _, err := os.Stat(l.dir); os.IsNotExist(err) {
		if err := os.MkdirAll(l.dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create skills directory: %w", err)
		}
		return nil, nil
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read skills directory: %w", err)
	}

	var skills []*Skill
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(l.dir, entry.Name())
		s, err := l.LoadFile(path)
		if err != nil {
			continue
		}
		skills = append(skills, s)
	}
	return skills, nil
}

// LoadFile loads a single skill from a JSON or YAML file, stamping its
// source, id, and timestamps if absent, and validating its kind-specific
// config.
func (l *Loader) LoadFile(path string) (*Skill, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read skill file: %w", err)
	}

	var s Skill
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(content, &s); err != nil {
			return nil, fmt.Errorf("json parse error: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &s); err != nil {
			return nil, fmt.Errorf("yaml parse error: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown skill file extension %q", ext)
	}

	if err := validateConfig(s.Kind, s.Config); err != nil {
		return nil, err
	}

	s.Source = "file://" + path
	stampSkill(&s)
	return &s, nil
}

// SaveFile writes skill to dir/filename as JSON, or YAML if filename ends
// in .yaml/.yml.
func (l *Loader) SaveFile(s *Skill, filename string) (string, error) {
	path := filepath.Join(l.dir, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create skills directory: %w", err)
	}

	var data []byte
	var err error
	if strings.HasSuffix(filename, ".yaml") || strings.HasSuffix(filename, ".yml") {
		data, err = yaml.Marshal(s)
	} else {
		data, err = json.MarshalIndent(s, "", "  ")
	}
	if err != nil {
		return "", fmt.Errorf("failed to serialize skill: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write skill file: %w", err)
	}
	return path, nil
}

// LoadFromGitHub fetches a single skill file from repo (owner/name) at
// path, on the main branch, parsing by its extension.
func (l *Loader) LoadFromGitHub(repo, path string) (*Skill, error) {
	url := fmt.Sprintf("https://raw.githubusercontent.com/%s/main/%s", repo, path)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if l.githubToken != "" {
		req.Header.Set("Authorization", "token "+l.githubToken)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("github returned status %d", resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read github response: %w", err)
	}

	var s Skill
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		err = yaml.Unmarshal(content, &s)
	} else {
		err = json.Unmarshal(content, &s)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse remote skill: %w", err)
	}
	if err := validateConfig(s.Kind, s.Config); err != nil {
		return nil, err
	}

	s.Source = fmt.Sprintf("github://%s/%s", repo, path)
	stampSkill(&s)
	return &s, nil
}

func stampSkill(s *Skill) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
}

// legacySettings is the shape of a legacy tabular settings document's
// relevant section: [slash_commands.<name>] tables with prompt/description.
type legacySettings struct {
	SlashCommands map[string]struct {
		Prompt      string `toml:"prompt"`
		Description string `toml:"description"`
	} `toml:"slash_commands"`
}

// ImportLegacySettings parses a legacy tabular settings document (the
// `[slash_commands.<name>]` format) and emits one SlashCommand skill per
// named command. RequiresArgs is set iff the prompt text contains the
// literal "$ARGUMENTS".
func (l *Loader) ImportLegacySettings(path string) ([]*Skill, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read legacy settings: %w", err)
	}

	var doc legacySettings
	if err := toml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse legacy settings: %w", err)
	}

	skills := make([]*Skill, 0, len(doc.SlashCommands))
	for name, cmd := range doc.SlashCommands {
		description := cmd.Description
		if description == "" {
			description = "No description"
		}
		s := &Skill{
			ID:          uuid.NewString(),
			Kind:        KindSlashCommand,
			Name:        "/" + name,
			Description: description,
			Visibility:  VisibilityProject,
			Enabled:     true,
			Config: Config{
				SlashCommand: &SlashCommandConfig{
					Name:         name,
					Description:  description,
					Prompt:       cmd.Prompt,
					RequiresArgs: strings.Contains(cmd.Prompt, "$ARGUMENTS"),
				},
			},
			Metadata:  DefaultMetadata(),
			Source:    "legacy-settings",
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		skills = append(skills, s)
	}
	return skills, nil
}
