package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRunsJob(t *testing.T) {
	var ran int32
	jobs := []Job{{
		ID:       "tick",
		Schedule: "* * * * * *", // every second
		Run: func(now time.Time) error {
			atomic.AddInt32(&ran, 1)
			return nil
		},
	}}

	s := NewScheduler(jobs, 1, "")
	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	s.Start(ctx)

	if atomic.LoadInt32(&ran) == 0 {
		t.Fatalf("expected job to have run at least once")
	}

	hist := s.History()
	h, ok := hist["tick"]
	if !ok {
		t.Fatalf("expected history entry for job 'tick'")
	}
	if h.LastStatus != "success" {
		t.Fatalf("expected last status success, got %q", h.LastStatus)
	}
}

func TestSchedulerSkipsOverlappingRuns(t *testing.T) {
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	var runCount int32

	jobs := []Job{{
		ID:       "slow",
		Schedule: "* * * * * *",
		Run: func(now time.Time) error {
			atomic.AddInt32(&runCount, 1)
			select {
			case started <- struct{}{}:
			default:
			}
			<-release
			return nil
		},
	}}

	s := NewScheduler(jobs, 1, "")
	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()

	go s.Start(ctx)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatalf("job never started")
	}

	time.Sleep(1200 * time.Millisecond)
	close(release)
	<-ctx.Done()

	if atomic.LoadInt32(&runCount) > 2 {
		t.Fatalf("expected overlapping ticks to be skipped while job ran long, got %d runs", runCount)
	}
}
