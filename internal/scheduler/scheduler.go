package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Task is one periodic unit of work. It receives the scheduler's context
// and must return when that context is cancelled.
type Task func(ctx context.Context)

// StateFunc observes scheduler lifecycle changes: running flag plus the
// names of the configured timers at that moment.
type StateFunc func(running bool, timers []string)

type entry struct {
	name     string
	interval time.Duration
	task     Task
}

// Scheduler owns a set of named timers. Configure timers with Add, then
// Start; timers added while running start ticking immediately.
type Scheduler struct {
	onState StateFunc

	mu      sync.Mutex
	entries []entry
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a stopped scheduler. onState may be nil.
func New(onState StateFunc) *Scheduler {
	return &Scheduler{onState: onState}
}

// Add registers a named timer.
//
// Parameters:
//   - name: Unique timer name, used in state notifications and logs
//   - interval: Tick period, must be positive
//   - task: Work to run on every tick
//
// Returns:
//   - error: ErrInvalidTimer or ErrDuplicateTimer
func (s *Scheduler) Add(name string, interval time.Duration, task Task) error {
	if name == "" || interval <= 0 || task == nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimer, name)
	}

	s.mu.Lock()
	for _, e := range s.entries {
		if e.name == name {
			s.mu.Unlock()
			return fmt.Errorf("%w: %q", ErrDuplicateTimer, name)
		}
	}
	e := entry{name: name, interval: interval, task: task}
	s.entries = append(s.entries, e)
	running := s.running
	ctx := s.ctx
	if running {
		s.wg.Add(1)
		go s.runTimer(ctx, e)
	}
	s.mu.Unlock()

	if running {
		s.notifyState(true)
	}
	return nil
}

// Start launches every configured timer. Each timer fires once
// immediately and then on its interval. Starting with zero timers is
// legal but silent: nothing fires and no running notification goes
// out until a timer is added.
//
// Returns:
//   - error: ErrAlreadyRunning if already started
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	for _, e := range s.entries {
		s.wg.Add(1)
		go s.runTimer(s.ctx, e)
	}
	launched := len(s.entries)
	s.mu.Unlock()

	if launched > 0 {
		s.notifyState(true)
	}
	return nil
}

// Stop cancels all timers and waits for in-flight tasks to finish.
// Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	hadTimers := len(s.entries) > 0
	s.mu.Unlock()

	s.wg.Wait()
	if hadTimers {
		s.notifyState(false)
	}
}

// Running reports whether Start has been called without a matching Stop.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Timers returns the configured timer names in registration order.
func (s *Scheduler) Timers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timerNames()
}

func (s *Scheduler) timerNames() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.name
	}
	return names
}

func (s *Scheduler) runTimer(ctx context.Context, e entry) {
	defer s.wg.Done()

	if ctx.Err() != nil {
		return
	}
	e.task(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.task(ctx)
			// A tick that arrived while the task ran is dropped, not
			// queued. Slow cycles skip beats instead of overlapping.
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}

func (s *Scheduler) notifyState(running bool) {
	if s.onState == nil {
		return
	}
	s.mu.Lock()
	names := s.timerNames()
	s.mu.Unlock()
	s.onState(running, names)
}
