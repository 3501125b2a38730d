package scheduler

import "testing"

func TestAddJobValidSpec(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	if err := s.AddJob(DefaultResetSpec, func() {}); err != nil {
		t.Errorf("AddJob(%q) failed: %v", DefaultResetSpec, err)
	}
	if err := s.AddJob("*/5 * * * *", func() {}); err != nil {
		t.Errorf("AddJob every-5-minutes failed: %v", err)
	}
}

func TestAddJobInvalidSpec(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	for _, expr := range []string{"", "not a cron", "61 * * * *", "0 16 * *"} {
		if err := s.AddJob(expr, func() {}); err == nil {
			t.Errorf("AddJob(%q) should have failed", expr)
		}
	}
}
