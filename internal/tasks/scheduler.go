package tasks

import (
	"context"
	"time"

	"github.com/HyphaGroup/oubliette/internal/schedule"
)

// Runner executes a single schedule target and returns its terminal Result.
// The concrete implementation lives with whatever drives agent execution;
// the scheduler only needs the contract.
type Runner func(ctx context.Context, sched *schedule.Schedule, target schedule.ScheduleTarget) Result

// Scheduler polls a schedule.Store for due cron schedules and instantiates
// each due target as an ordinary Task through the Manager, so a scheduled
// run is observable and cancellable exactly like any other task.
type Scheduler struct {
	store   *schedule.Store
	manager *Manager
	run     Runner
	poll    time.Duration
}

// NewScheduler builds a Scheduler polling store every poll interval.
func NewScheduler(store *schedule.Store, manager *Manager, run Runner, poll time.Duration) *Scheduler {
	if poll <= 0 {
		poll = time.Minute
	}
	return &Scheduler{store: store, manager: manager, run: run, poll: poll}
}

// Run blocks, polling for due schedules until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	due, err := s.store.ListDue(time.Now())
	if err != nil {
		return
	}
	for _, sched := range due {
		s.fire(ctx, sched)
	}
}

func (s *Scheduler) fire(ctx context.Context, sched *schedule.Schedule) {
	now := time.Now()
	next, err := schedule.NextRun(sched.CronExpr, now)
	if err == nil {
		_ = s.store.UpdateRunTimes(sched.ID, now, next)
	}

	for _, target := range sched.Targets {
		if sched.OverlapBehavior == schedule.OverlapSkip && s.targetRunning(sched.ID, target.ID) {
			continue
		}
		s.runTarget(ctx, sched, target)
	}
}

func (s *Scheduler) targetRunning(scheduleID, targetID string) bool {
	for _, info := range s.manager.ListActive() {
		seen := map[string]bool{}
		for _, tag := range info.Tags {
			seen[tag] = true
		}
		if seen["schedule:"+scheduleID] && seen["target:"+targetID] {
			return true
		}
	}
	return false
}

func (s *Scheduler) runTarget(ctx context.Context, sched *schedule.Schedule, target schedule.ScheduleTarget) {
	task := s.manager.Create(KindSync, "scheduled: "+sched.Name)
	task.Metadata.Tags = []string{"schedule:" + sched.ID, "target:" + target.ID}
	if target.ProjectID != "" {
		task.Metadata.ProjectPath = &target.ProjectID
	}

	taskCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.manager.RegisterCancel(task.ID, cancel, done)

	go func() {
		defer close(done)
		defer cancel()

		_ = s.manager.Start(task.ID)
		start := time.Now()
		result := s.run(taskCtx, sched, target)
		result.DurationMs = time.Since(start).Milliseconds()
		s.manager.Complete(task.ID, result)
	}()
}
