package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler manages cron-scheduled maintenance jobs for the event loop.
type Scheduler struct {
	jobs           []Job
	cron           *cron.Cron
	history        map[string]*JobHistory
	historyPath    string
	runningJobs    map[string]bool
	mu             sync.RWMutex
	concurrencySem chan struct{}
	ctx            context.Context
	cancel         context.CancelFunc
}

// NewScheduler creates a maintenance job scheduler. maxConcurrent bounds how
// many jobs may run at once; historyPath, if non-empty, persists run history
// across restarts.
func NewScheduler(jobs []Job, maxConcurrent int, historyPath string) *Scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}

	history := make(map[string]*JobHistory)
	if historyPath != "" {
		h, err := LoadHistory(historyPath)
		if err != nil {
			log.Printf("WARN: Failed to load job history from %s: %v", historyPath, err)
		} else {
			history = h
		}
	}

	return &Scheduler{
		jobs:           jobs,
		history:        history,
		historyPath:    historyPath,
		runningJobs:    make(map[string]bool),
		concurrencySem: make(chan struct{}, maxConcurrent),
	}
}

// Start begins the scheduler with the given context and blocks until it is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	defer s.cancel()

	s.cron = cron.New(cron.WithSeconds())

	enabledCount := 0
	for _, job := range s.jobs {
		j := job
		if _, err := s.cron.AddFunc(j.Schedule, func() { s.runWithConcurrency(j) }); err != nil {
			log.Printf("ERROR: Failed to schedule job '%s': %v", j.ID, err)
			continue
		}
		enabledCount++
		log.Printf("INFO: Job '%s' scheduled: %s", j.ID, j.Schedule)
	}

	if enabledCount == 0 {
		log.Printf("WARN: No maintenance jobs scheduled")
		return
	}

	s.cron.Start()
	log.Printf("INFO: Maintenance scheduler running with %d jobs", enabledCount)

	<-s.ctx.Done()

	log.Printf("INFO: Maintenance scheduler stopping...")
	s.Stop()
}

// Stop gracefully stops the scheduler, waiting for running jobs to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		cronCtx := s.cron.Stop()
		<-cronCtx.Done()
		log.Printf("INFO: All maintenance jobs completed")
	}

	if s.historyPath != "" {
		if err := SaveHistory(s.historyPath, s.history); err != nil {
			log.Printf("ERROR: Failed to save job history: %v", err)
		}
	}
}

func (s *Scheduler) runWithConcurrency(job Job) {
	s.mu.Lock()
	if s.runningJobs[job.ID] {
		s.mu.Unlock()
		log.Printf("WARN: Job '%s' skipped: already running", job.ID)
		return
	}
	s.mu.Unlock()

	select {
	case s.concurrencySem <- struct{}{}:
		defer func() { <-s.concurrencySem }()
	default:
		log.Printf("WARN: Job '%s' skipped: max concurrent jobs reached", job.ID)
		return
	}

	s.mu.Lock()
	s.runningJobs[job.ID] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.runningJobs, job.ID)
		s.mu.Unlock()
	}()

	result := s.runOnce(job)
	s.updateHistory(result)
}

func (s *Scheduler) runOnce(job Job) JobResult {
	result := JobResult{JobID: job.ID, StartTime: time.Now()}

	runCtx := s.ctx
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(s.ctx, job.Timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- job.Run(result.StartTime) }()

	select {
	case err := <-done:
		result.Error = err
		result.Success = err == nil
	case <-runCtx.Done():
		result.Error = runCtx.Err()
		result.Success = false
	}

	result.EndTime = time.Now()
	if result.Success {
		log.Printf("DEBUG: Job '%s' completed in %s", job.ID, result.EndTime.Sub(result.StartTime))
	} else {
		log.Printf("ERROR: Job '%s' failed: %v", job.ID, result.Error)
	}
	return result
}

// History returns a defensive copy of the current job history.
func (s *Scheduler) History() map[string]*JobHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*JobHistory, len(s.history))
	for k, v := range s.history {
		cp := *v
		out[k] = &cp
	}
	return out
}
