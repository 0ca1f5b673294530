package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/HyphaGroup/oubliette/internal/schedule"
)

func TestScheduler_FiresDueScheduleAsTask(t *testing.T) {
	store, err := schedule.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	sched := &schedule.Schedule{
		Name:     "nightly",
		CronExpr: "* * * * *",
		Enabled:  true,
		Targets:  []schedule.ScheduleTarget{{ProjectID: "proj-1"}},
	}
	if err := store.Create(sched); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	past := time.Now().Add(-time.Minute)
	if err := store.UpdateRunTimes(sched.ID, time.Now().Add(-time.Hour), past); err != nil {
		t.Fatalf("UpdateRunTimes() error = %v", err)
	}

	manager := NewManager()
	fired := make(chan struct{}, 1)
	runner := func(ctx context.Context, s *schedule.Schedule, target schedule.ScheduleTarget) Result {
		fired <- struct{}{}
		return Success("ok", 1)
	}

	sched2 := NewScheduler(store, manager, runner, 10*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go sched2.Run(ctx)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for scheduled task to fire")
	}

	deadline := time.After(time.Second)
	for {
		completed := manager.ListCompleted()
		if len(completed) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("ListCompleted() = %d tasks, want 1", len(completed))
		case <-time.After(10 * time.Millisecond):
		}
	}
}
