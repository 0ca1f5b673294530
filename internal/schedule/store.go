package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrInvalidCron      = errors.New("invalid cron expression")
)

// Store handles schedule persistence as a single JSON document, indexed by
// schedule id in memory. A scheduled-task set is small and fully resident;
// there is no query pattern here a SQL engine would pay for itself on.
type Store struct {
	mu        sync.Mutex
	path      string
	schedules map[string]*Schedule
}

type scheduleFile struct {
	Schedules []*Schedule `json:"schedules"`
}

// NewStore opens (or creates) the schedule store under dataDir/schedules.json.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &Store{path: filepath.Join(dataDir, "schedules.json"), schedules: make(map[string]*Schedule)}
	if err := s.load(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		if err := s.saveLocked(); err != nil {
			return nil, fmt.Errorf("failed to create schedule store: %w", err)
		}
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read schedule store: %w", err)
	}

	var doc scheduleFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse schedule store: %w", err)
	}
	for _, sched := range doc.Schedules {
		s.schedules[sched.ID] = sched
	}
	return nil
}

func (s *Store) saveLocked() error {
	doc := scheduleFile{Schedules: make([]*Schedule, 0, len(s.schedules))}
	for _, sched := range s.schedules {
		doc.Schedules = append(doc.Schedules, sched)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schedule store: %w", err)
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Close is a no-op retained for API parity with a connection-backed store.
func (s *Store) Close() error { return nil }

// Create creates a new schedule with its targets.
func (s *Store) Create(schedule *Schedule) error {
	if err := ValidateCron(schedule.CronExpr); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if schedule.ID == "" {
		schedule.ID = "sched_" + uuid.New().String()[:8]
	}
	now := time.Now()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now

	if schedule.NextRunAt == nil && schedule.Enabled {
		if nextRun, err := NextRun(schedule.CronExpr, now); err == nil {
			schedule.NextRunAt = &nextRun
		}
	}

	for i := range schedule.Targets {
		target := &schedule.Targets[i]
		if target.ID == "" {
			target.ID = "tgt_" + uuid.New().String()[:8]
		}
		target.ScheduleID = schedule.ID
	}

	s.schedules[schedule.ID] = schedule
	return s.saveLocked()
}

// Get retrieves a schedule by ID with its targets.
func (s *Store) Get(id string) (*Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, ok := s.schedules[id]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	cp := *sched
	cp.Targets = append([]ScheduleTarget(nil), sched.Targets...)
	return &cp, nil
}

// List returns schedules matching the filter, newest first.
func (s *Store) List(filter *ListFilter) ([]*Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Schedule
	for _, sched := range s.schedules {
		if filter != nil {
			if filter.Enabled != nil && sched.Enabled != *filter.Enabled {
				continue
			}
			if filter.ProjectID != "" && !schedTargetsProject(sched, filter.ProjectID) {
				continue
			}
		}
		cp := *sched
		cp.Targets = append([]ScheduleTarget(nil), sched.Targets...)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func schedTargetsProject(sched *Schedule, projectID string) bool {
	for _, t := range sched.Targets {
		if t.ProjectID == projectID {
			return true
		}
	}
	return false
}

// Update applies partial updates to a schedule.
func (s *Store) Update(id string, update *ScheduleUpdate) error {
	if update.CronExpr != nil {
		if err := ValidateCron(*update.CronExpr); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sched, ok := s.schedules[id]
	if !ok {
		return ErrScheduleNotFound
	}

	if update.Name != nil {
		sched.Name = *update.Name
	}
	if update.CronExpr != nil {
		sched.CronExpr = *update.CronExpr
		if nextRun, err := NextRun(*update.CronExpr, time.Now()); err == nil {
			sched.NextRunAt = &nextRun
		}
	}
	if update.Prompt != nil {
		sched.Prompt = *update.Prompt
	}
	if update.Enabled != nil {
		sched.Enabled = *update.Enabled
	}
	if update.OverlapBehavior != nil {
		sched.OverlapBehavior = *update.OverlapBehavior
	}
	if update.SessionBehavior != nil {
		sched.SessionBehavior = *update.SessionBehavior
	}
	if update.Targets != nil {
		for i := range update.Targets {
			target := &update.Targets[i]
			if target.ID == "" {
				target.ID = "tgt_" + uuid.New().String()[:8]
			}
			target.ScheduleID = id
		}
		sched.Targets = update.Targets
	}
	sched.UpdatedAt = time.Now()

	return s.saveLocked()
}

// Delete removes a schedule and its targets.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schedules[id]; !ok {
		return ErrScheduleNotFound
	}
	delete(s.schedules, id)
	return s.saveLocked()
}

// ListDue returns enabled schedules where NextRunAt <= now.
func (s *Store) ListDue(now time.Time) ([]*Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Schedule
	for _, sched := range s.schedules {
		if !sched.Enabled || sched.NextRunAt == nil || sched.NextRunAt.After(now) {
			continue
		}
		cp := *sched
		cp.Targets = append([]ScheduleTarget(nil), sched.Targets...)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextRunAt.Before(*out[j].NextRunAt) })
	return out, nil
}

// UpdateRunTimes updates LastRunAt and NextRunAt for a schedule.
func (s *Store) UpdateRunTimes(id string, lastRun, nextRun time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, ok := s.schedules[id]
	if !ok {
		return ErrScheduleNotFound
	}
	sched.LastRunAt = &lastRun
	sched.NextRunAt = &nextRun
	sched.UpdatedAt = time.Now()
	return s.saveLocked()
}
