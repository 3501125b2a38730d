package engine

import (
	"testing"

	"github.com/cocinacasera/casabot/internal/models"
)

func TestMutateCreatesLazily(t *testing.T) {
	store := NewStore(newFakeTimer())

	if store.Exists(testUser) {
		t.Fatal("store must start empty")
	}
	store.Mutate(testUser, func(c *ConversationState) {
		c.GenericMessageCount++
	})

	snap, ok := store.Snapshot(testUser)
	if !ok {
		t.Fatal("expected record after Mutate")
	}
	if snap.Phase != models.PhaseStart || snap.PaymentMethod != models.PaymentUnknown {
		t.Errorf("unexpected defaults: phase=%s method=%s", snap.Phase, snap.PaymentMethod)
	}
	if snap.GenericMessageCount != 1 {
		t.Errorf("expected counter 1, got %d", snap.GenericMessageCount)
	}
}

func TestMutateExistingDoesNotResurrect(t *testing.T) {
	store := NewStore(newFakeTimer())

	if store.MutateExisting(testUser, func(c *ConversationState) {}) {
		t.Error("MutateExisting must report false for an unknown user")
	}

	store.Mutate(testUser, func(c *ConversationState) {})
	store.ClearAll()

	if store.MutateExisting(testUser, func(c *ConversationState) {}) {
		t.Error("MutateExisting must report false after ClearAll")
	}
	if store.Count() != 0 {
		t.Errorf("expected empty store, got %d records", store.Count())
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	store := NewStore(newFakeTimer())
	store.Mutate(testUser, func(c *ConversationState) {
		c.HelpTimerIDs = []string{"a", "b"}
	})

	snap, _ := store.Snapshot(testUser)
	snap.HelpTimerIDs[0] = "mutated"
	snap.OrderCount = 99

	fresh, _ := store.Snapshot(testUser)
	if fresh.HelpTimerIDs[0] != "a" || fresh.OrderCount != 0 {
		t.Error("snapshot mutation leaked into the live record")
	}
}

func TestCloseCancelsOwnedTimers(t *testing.T) {
	timers := newFakeTimer()
	store := NewStore(timers)

	payID, _ := timers.ScheduleAfter(0, func() {})
	helpID, _ := timers.ScheduleAfter(0, func() {})
	store.Mutate(testUser, func(c *ConversationState) {
		c.PaymentTimerID = payID
		c.HelpTimerIDs = []string{helpID}
	})

	store.Close(testUser)

	if store.Exists(testUser) {
		t.Error("expected record removed")
	}
	if timers.active() != 0 {
		t.Errorf("expected all handles cancelled, %d still active", timers.active())
	}
}

func TestClearAllCancelsAcrossUsers(t *testing.T) {
	timers := newFakeTimer()
	store := NewStore(timers)

	for _, user := range []string{"573000000001", "573000000002"} {
		id, _ := timers.ScheduleAfter(0, func() {})
		followUp, _ := timers.ScheduleAfter(0, func() {})
		store.Mutate(user, func(c *ConversationState) {
			c.PaymentTimerID = id
			c.FollowUpTimerID = followUp
		})
	}

	store.ClearAll()

	if store.Count() != 0 {
		t.Errorf("expected empty store, got %d", store.Count())
	}
	if timers.active() != 0 {
		t.Errorf("expected all handles cancelled, %d still active", timers.active())
	}
}
