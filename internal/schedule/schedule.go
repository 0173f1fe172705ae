// Package schedule implements the event loop's one-shot deferred-task
// scheduler: a binary min-heap of (deadline, task) pairs, matching the
// legacy design's "scheduler.next_deadline()"/"run due tasks" pair from
// spec.md §4.7 steps 2-3. It is deliberately separate from
// internal/scheduler, which runs wall-clock-periodic cron jobs; this
// package is for one-shot deadlines a single event (a STARTTLS
// failure, a graceful-close grace period) schedules for itself.
package schedule

import (
	"container/heap"
	"sync"
	"time"
)

// Task is a function run once its deadline has passed.
type Task func(now time.Time)

type entry struct {
	deadline time.Time
	seq      uint64
	task     Task
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}
func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)   { *h = append(*h, x.(*entry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Heap is a deadline-ordered queue of deferred tasks. Every method
// takes an internal mutex, so tasks may be scheduled from any
// goroutine; RunDue releases the mutex before running the due tasks.
type Heap struct {
	mu   sync.Mutex
	h    entryHeap
	next uint64
}

// New returns an empty scheduler.
func New() *Heap {
	s := &Heap{}
	heap.Init(&s.h)
	return s
}

// After schedules task to run at from+d (the scheduler itself never
// calls time.Now so tests can drive it deterministically).
func (s *Heap) After(from time.Time, d time.Duration, task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	heap.Push(&s.h, &entry{deadline: from.Add(d), seq: s.next, task: task})
}

// At schedules task to run at the given absolute deadline.
func (s *Heap) At(deadline time.Time, task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	heap.Push(&s.h, &entry{deadline: deadline, seq: s.next, task: task})
}

// RunDue pops and runs every task whose deadline is at or before now,
// in deadline order, and returns how many ran.
func (s *Heap) RunDue(now time.Time) int {
	var due []*entry
	s.mu.Lock()
	for s.h.Len() > 0 && !s.h[0].deadline.After(now) {
		due = append(due, heap.Pop(&s.h).(*entry))
	}
	s.mu.Unlock()

	for _, e := range due {
		e.task(now)
	}
	return len(due)
}

// NextDeadline returns the earliest pending deadline and true, or the
// zero time and false if the heap is empty. The event loop uses this
// to compute step 3's "wake" timeout.
func (s *Heap) NextDeadline() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.h.Len() == 0 {
		return time.Time{}, false
	}
	return s.h[0].deadline, true
}

// Len reports the number of pending tasks.
func (s *Heap) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.h.Len()
}
