// Package anim schedules the deferred visual work of a viewer session:
// transitions, highlights, notifications and counter animations.
//
// Tasks are keyed. Scheduling under a key that already has a pending task
// cancels that task first, so a new trigger never races a stale timer.
package anim

import (
	"sync"
	"time"
)

type task struct {
	stop chan struct{}
}

// Scheduler runs keyed, cancellable deferred tasks.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[string]*task
	stopped bool
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{tasks: make(map[string]*task)}
}

// After runs fn once after d unless the key is cancelled or rescheduled first.
func (s *Scheduler) After(key string, d time.Duration, fn func()) {
	t := s.replace(key)
	if t == nil {
		return
	}
	go func() {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-t.stop:
			return
		case <-timer.C:
		}
		if !s.finish(key, t) {
			return
		}
		fn()
	}()
}

// Every calls fn every d until fn returns false or the key is cancelled or
// rescheduled.
func (s *Scheduler) Every(key string, d time.Duration, fn func() bool) {
	t := s.replace(key)
	if t == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
			}
			if !s.current(key, t) {
				return
			}
			if !fn() {
				s.finish(key, t)
				return
			}
		}
	}()
}

// Cancel stops the task under key. It reports whether one was pending.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[key]
	if !ok {
		return false
	}
	delete(s.tasks, key)
	close(t.stop)
	return true
}

// Pending reports whether a task is scheduled under key.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[key]
	return ok
}

// Len returns the number of pending tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Stop cancels every task. Later scheduling calls are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, t := range s.tasks {
		close(t.stop)
		delete(s.tasks, k)
	}
	s.stopped = true
}

func (s *Scheduler) replace(key string) *task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	if old, ok := s.tasks[key]; ok {
		close(old.stop)
	}
	t := &task{stop: make(chan struct{})}
	s.tasks[key] = t
	return t
}

func (s *Scheduler) current(key string, t *task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[key] == t
}

// finish removes t if it is still the task under key.
func (s *Scheduler) finish(key string, t *task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasks[key] != t {
		return false
	}
	delete(s.tasks, key)
	return true
}
