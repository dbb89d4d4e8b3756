package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerFiresImmediatelyThenPeriodically(t *testing.T) {
	var fires atomic.Int32
	s := New(nil)
	if err := s.Add("poll", 20*time.Millisecond, func(ctx context.Context) {
		fires.Add(1)
	}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	deadline := time.After(time.Second)
	for fires.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d fires before deadline, want at least 3", fires.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSchedulerAddValidation(t *testing.T) {
	s := New(nil)
	task := func(ctx context.Context) {}

	tests := []struct {
		name     string
		timer    string
		interval time.Duration
		task     func(ctx context.Context)
		wantErr  error
	}{
		{"empty name", "", time.Second, task, ErrInvalidTimer},
		{"zero interval", "a", 0, task, ErrInvalidTimer},
		{"nil task", "a", time.Second, nil, ErrInvalidTimer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Add(tt.timer, tt.interval, tt.task); !errors.Is(err, tt.wantErr) {
				t.Errorf("Add() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := s.Add("poll", time.Second, task); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Add("poll", time.Second, task); !errors.Is(err, ErrDuplicateTimer) {
		t.Errorf("Add() duplicate error = %v, want ErrDuplicateTimer", err)
	}
}

func TestSchedulerStartTwice(t *testing.T) {
	s := New(nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}
}

// A task slower than its interval must never overlap itself; pending
// ticks are dropped.
func TestSchedulerNoOverlappingRuns(t *testing.T) {
	var concurrent atomic.Int32
	var maxSeen atomic.Int32
	var runs atomic.Int32

	s := New(nil)
	if err := s.Add("slow", 10*time.Millisecond, func(ctx context.Context) {
		cur := concurrent.Add(1)
		if cur > maxSeen.Load() {
			maxSeen.Store(cur)
		}
		time.Sleep(35 * time.Millisecond)
		concurrent.Add(-1)
		runs.Add(1)
	}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	time.Sleep(150 * time.Millisecond)
	s.Stop()

	if maxSeen.Load() > 1 {
		t.Errorf("observed %d concurrent runs, want at most 1", maxSeen.Load())
	}
	// 150ms of 35ms runs with dropped ticks: well under the 15 runs a
	// queued backlog would produce.
	if r := runs.Load(); r > 6 {
		t.Errorf("ran %d times in 150ms, ticks are queueing instead of dropping", r)
	}
}

func TestSchedulerStopWaitsForInflightTask(t *testing.T) {
	done := make(chan struct{})
	started := make(chan struct{})

	s := New(nil)
	if err := s.Add("work", time.Hour, func(ctx context.Context) {
		close(started)
		time.Sleep(30 * time.Millisecond)
		close(done)
	}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	<-started
	s.Stop()

	select {
	case <-done:
	default:
		t.Error("Stop() returned before the in-flight task finished")
	}
	if s.Running() {
		t.Error("Running() = true after Stop")
	}
}

func TestSchedulerStateNotifications(t *testing.T) {
	type state struct {
		running bool
		timers  []string
	}
	var mu sync.Mutex
	var states []state

	s := New(func(running bool, timers []string) {
		mu.Lock()
		states = append(states, state{running, timers})
		mu.Unlock()
	})
	if err := s.Add("devicesList", time.Hour, func(ctx context.Context) {}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(states) != 2 {
		t.Fatalf("got %d state notifications, want 2", len(states))
	}
	if !states[0].running || states[1].running {
		t.Errorf("state sequence = %+v, want running then stopped", states)
	}
	if len(states[0].timers) != 1 || states[0].timers[0] != "devicesList" {
		t.Errorf("timers = %v, want [devicesList]", states[0].timers)
	}
}

func TestSchedulerAddWhileRunning(t *testing.T) {
	var fires atomic.Int32

	s := New(nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	if err := s.Add("late", time.Hour, func(ctx context.Context) {
		fires.Add(1)
	}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	// The immediate first fire happens even though Start predates Add.
	deadline := time.After(time.Second)
	for fires.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("timer added while running never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSchedulerZeroTimers(t *testing.T) {
	var notifications atomic.Int32
	s := New(func(running bool, timers []string) {
		notifications.Add(1)
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !s.Running() {
		t.Error("Running() = false after Start with zero timers")
	}
	s.Stop()
	s.Stop() // second Stop is a no-op

	if got := notifications.Load(); got != 0 {
		t.Errorf("got %d state notifications for an empty timer set, want 0", got)
	}
}
