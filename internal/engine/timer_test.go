package engine

import (
	"testing"
	"time"
)

func TestSimpleTimerFires(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	fired := make(chan struct{})
	if _, err := timer.ScheduleAfter(5*time.Millisecond, func() { close(fired) }); err != nil {
		t.Fatalf("ScheduleAfter failed: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled function did not fire")
	}
}

func TestSimpleTimerCancel(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	fired := make(chan struct{}, 1)
	id, err := timer.ScheduleAfter(20*time.Millisecond, func() { fired <- struct{}{} })
	if err != nil {
		t.Fatalf("ScheduleAfter failed: %v", err)
	}
	if err := timer.Cancel(id); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	select {
	case <-fired:
		t.Fatal("cancelled function fired anyway")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSimpleTimerCancelUnknownIsTolerated(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	if err := timer.Cancel("timer_999"); err != nil {
		t.Errorf("cancelling an unknown handle must not error, got %v", err)
	}
}

func TestSimpleTimerListActive(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	id, _ := timer.ScheduleAfter(time.Hour, func() {})
	active := timer.ListActive()
	if len(active) != 1 || active[0].ID != id {
		t.Fatalf("expected 1 active timer with id %s, got %v", id, active)
	}

	timer.Stop()
	if got := timer.ListActive(); len(got) != 0 {
		t.Errorf("expected no active timers after Stop, got %d", len(got))
	}
}
