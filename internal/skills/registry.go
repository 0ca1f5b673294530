package skills

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.yaml.in/yaml/v2"
)

var (
	ErrSkillNotFound      = errors.New("skill not found")
	ErrSlashCommandExists = errors.New("slash command already registered")
)

// Registry is the CRUD store of Skills, persisted as a single YAML document
// and indexed in memory by id, slash-command name, and hook trigger.
// Registration and lookup share one lock; a skill set is small enough that
// a single RWMutex over a handful of maps outperforms anything fancier.
type Registry struct {
	mu       sync.RWMutex
	skills   map[string]*Skill
	slash    map[string]string   // command name -> skill id
	hooks    map[HookTrigger][]string // trigger -> skill ids, registration order
	path     string
}

// NewRegistry returns an empty registry backed by path (created on first
// Save if it doesn't yet exist).
func NewRegistry(path string) *Registry {
	return &Registry{
		skills: make(map[string]*Skill),
		slash:  make(map[string]string),
		hooks:  make(map[HookTrigger][]string),
		path:   path,
	}
}

type skillFile struct {
	Skills []*Skill `yaml:"skills"`
}

// Load reads the registry's persisted document from disk, replacing the
// in-memory index. A missing file is not an error — the registry starts
// empty.
func (r *Registry) Load() error {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read skill registry: %w", err)
	}

	var doc skillFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse skill registry: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.skills = make(map[string]*Skill, len(doc.Skills))
	r.slash = make(map[string]string)
	r.hooks = make(map[HookTrigger][]string)
	for _, s := range doc.Skills {
		r.indexLocked(s)
	}
	return nil
}

// Save persists the current in-memory index to disk.
func (r *Registry) Save() error {
	r.mu.RLock()
	doc := skillFile{Skills: make([]*Skill, 0, len(r.skills))}
	for _, s := range r.skills {
		doc.Skills = append(doc.Skills, s)
	}
	r.mu.RUnlock()

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal skill registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("failed to create skill registry directory: %w", err)
	}
	return os.WriteFile(r.path, data, 0o600)
}

// indexLocked updates every index this skill's kind contributes to. Callers
// must hold r.mu for writing.
func (r *Registry) indexLocked(s *Skill) {
	switch s.Kind {
	case KindSlashCommand:
		if s.Config.SlashCommand != nil {
			r.slash[s.Config.SlashCommand.Name] = s.ID
		}
	case KindHook:
		if s.Config.Hook != nil {
			trigger := s.Config.Hook.Trigger
			r.hooks[trigger] = append(r.hooks[trigger], s.ID)
		}
	}
	r.skills[s.ID] = s
}

// unindexLocked reverses indexLocked for the skill currently stored under
// id, if any. Callers must hold r.mu for writing.
func (r *Registry) unindexLocked(id string) {
	s, ok := r.skills[id]
	if !ok {
		return
	}
	delete(r.skills, id)
	switch s.Kind {
	case KindSlashCommand:
		if s.Config.SlashCommand != nil {
			delete(r.slash, s.Config.SlashCommand.Name)
		}
	case KindHook:
		if s.Config.Hook != nil {
			trigger := s.Config.Hook.Trigger
			ids := r.hooks[trigger]
			for i, hid := range ids {
				if hid == id {
					r.hooks[trigger] = append(ids[:i], ids[i+1:]...)
					break
				}
			}
		}
	}
}

// Register adds or replaces a skill in the index and persists the registry.
func (r *Registry) Register(s *Skill) error {
	r.mu.Lock()
	if s.Kind == KindSlashCommand && s.Config.SlashCommand != nil {
		if existing, ok := r.slash[s.Config.SlashCommand.Name]; ok && existing != s.ID {
			r.mu.Unlock()
			return fmt.Errorf("%w: /%s", ErrSlashCommandExists, s.Config.SlashCommand.Name)
		}
	}
	r.unindexLocked(s.ID)
	r.indexLocked(s)
	r.mu.Unlock()

	return r.Save()
}

// Unregister removes a skill from the index and persists the registry.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	if _, ok := r.skills[id]; !ok {
		r.mu.Unlock()
		return ErrSkillNotFound
	}
	r.unindexLocked(id)
	r.mu.Unlock()

	return r.Save()
}

// Get returns a skill by id.
func (r *Registry) Get(id string) (*Skill, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[id]
	return s, ok
}

// GetSlashCommand resolves a slash command by its bare name (no leading
// slash).
func (r *Registry) GetSlashCommand(name string) (*Skill, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.slash[name]
	if !ok {
		return nil, false
	}
	s, ok := r.skills[id]
	return s, ok
}

// HasSlashCommand reports whether name is already registered.
func (r *Registry) HasSlashCommand(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.slash[name]
	return ok
}

// HooksForTrigger returns every enabled hook skill bound to trigger, in
// registration order.
func (r *Registry) HooksForTrigger(trigger HookTrigger) []*Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.hooks[trigger]
	out := make([]*Skill, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.skills[id]; ok && s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// ListAll returns every registered skill.
func (r *Registry) ListAll() []*Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Skill, 0, len(r.skills))
	for _, s := range r.skills {
		out = append(out, s)
	}
	return out
}

// ListByKind returns every skill of the given kind.
func (r *Registry) ListByKind(kind Kind) []*Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Skill
	for _, s := range r.skills {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// ListForProject returns every global skill plus every skill scoped to
// projectPath.
func (r *Registry) ListForProject(projectPath string) []*Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Skill
	for _, s := range r.skills {
		if s.Visibility == VisibilityGlobal || (s.ProjectPath != nil && *s.ProjectPath == projectPath) {
			out = append(out, s)
		}
	}
	return out
}

// ListSlashCommands returns every registered slash command alongside its
// owning skill.
func (r *Registry) ListSlashCommands() map[string]*Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Skill, len(r.slash))
	for name, id := range r.slash {
		if s, ok := r.skills[id]; ok {
			out[name] = s
		}
	}
	return out
}

// CountByKind tallies registered skills per kind.
func (r *Registry) CountByKind() map[Kind]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[Kind]int)
	for _, s := range r.skills {
		counts[s.Kind]++
	}
	return counts
}
