package widget

import (
	"sync"
	"time"
)

// Handle cancels a scheduled task. Stop reports whether the task was still pending.
type Handle interface {
	Stop() bool
}

// Scheduler runs fn once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Handle
}

// -----------------------------------------------------------------------------

type timeScheduler struct{}

func (timeScheduler) AfterFunc(d time.Duration, fn func()) Handle {
	return time.AfterFunc(d, fn)
}

// RealScheduler is backed by time.AfterFunc.
var RealScheduler Scheduler = timeScheduler{}

// -----------------------------------------------------------------------------
// ManualScheduler holds tasks until Fire is called. Used by tests to step the
// debounce window deterministically.
// -----------------------------------------------------------------------------

type ManualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

type manualTask struct {
	owner   *ManualScheduler
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (s *ManualScheduler) AfterFunc(d time.Duration, fn func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTask{owner: s, delay: d, fn: fn}
	s.tasks = append(s.tasks, t)
	return t
}

func (t *manualTask) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Fire runs every pending task on the calling goroutine and returns how many ran.
func (s *ManualScheduler) Fire() int {
	s.mu.Lock()
	var due []*manualTask
	for _, t := range s.tasks {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	s.tasks = nil
	s.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
	return len(due)
}

// Pending returns the number of tasks neither stopped nor fired.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// LastDelay returns the delay of the most recently scheduled task.
func (s *ManualScheduler) LastDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tasks) == 0 {
		return 0
	}
	return s.tasks[len(s.tasks)-1].delay
}
