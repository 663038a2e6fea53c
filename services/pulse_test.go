package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestPulseCoalescesTicksWhileBusy(t *testing.T) {
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	var runs int32

	p := NewPulse(func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		started <- struct{}{}
		<-release
		return nil
	}, time.Second, zap.NewNop())

	p.Tick()
	<-started
	p.Tick()
	p.Tick()
	p.Tick()
	close(release)
	p.Wait()

	if got := atomic.LoadInt32(&runs); got != 2 {
		t.Errorf("Expected 2 runs (current plus one pending), got %d", got)
	}
}

func TestPulseRunsAgainAfterIdle(t *testing.T) {
	var runs int32
	p := NewPulse(func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}, time.Second, zap.NewNop())

	p.Tick()
	p.Wait()
	p.Tick()
	p.Wait()

	if got := atomic.LoadInt32(&runs); got != 2 {
		t.Errorf("Expected 2 runs, got %d", got)
	}
}

func TestPulseStopCancelsRun(t *testing.T) {
	started := make(chan struct{})
	p := NewPulse(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, time.Minute, zap.NewNop())

	p.Tick()
	<-started
	p.Tick()

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	p.Tick()
	p.Wait()
}

func TestSchedulerRejectsSubSecondInterval(t *testing.T) {
	s := NewSchedulerService(time.UTC)
	if _, err := s.ScheduleInterval(500*time.Millisecond, func() {}); err == nil {
		t.Error("Expected an error for a sub-second interval")
	}
	if _, err := s.ScheduleInterval(5*time.Minute, func() {}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	s.Start()
	s.Stop()
}
