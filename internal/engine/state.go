package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/cocinacasera/casabot/internal/models"
)

// ConversationState is the in-memory record for one customer chat. It is
// created lazily on the first inbound message and lives until the daily
// reset, an explicit close, or process restart. There is no durable
// persistence for this record.
type ConversationState struct {
	UserID string
	Phase  models.Phase

	// Counters, monotonically increasing within a conversation's lifetime.
	GenericMessageCount  int
	OrderCount           int
	PaymentReminderCount int
	PausedReminderCount  int

	LastOrderTime      time.Time
	PaymentTimestamp   time.Time
	HumanHelpTimestamp time.Time

	PaymentMethod models.PaymentMethod
	// OrderAmount is the expected charge in whole pesos.
	OrderAmount int

	WebOrderReceived bool
	// PaymentReceived is monotonic: once true it never goes back to false,
	// and its transition to true cancels every payment-ladder timer.
	PaymentReceived       bool
	PaymentVerified       bool
	PendingManualReview   bool
	DuplicateWarningShown bool

	// WaitingForPayment is orthogonal to Phase: a user can browse the
	// assistance menu while a transfer is still outstanding.
	WaitingForPayment bool
	// WaitingForHumanHelp is the liveness condition for the help ladder.
	WaitingForHumanHelp bool

	// UserNotifiedPayment marks that a "paying shortly" message switched the
	// fixed ladder to the long-wait ladder.
	UserNotifiedPayment bool
	FarewellSent        bool
	FollowUpPromptSent  bool

	// Owned timer handles. PaymentTimerID covers both the fixed and the
	// long-wait ladder, so at most one payment timer is live per user.
	PaymentTimerID string
	HelpTimerIDs   []string
	// FollowUpTimerID is the "want to order?" nudge armed after the greeting
	// and cancelled by a web order.
	FollowUpTimerID string
}

// PaymentPreconditionHolds reports whether a payment reminder may still act.
func (c *ConversationState) PaymentPreconditionHolds() bool {
	return c.WaitingForPayment && !c.PaymentReceived
}

// HelpPreconditionHolds reports whether a human-help step may still act.
func (c *ConversationState) HelpPreconditionHolds() bool {
	return c.WaitingForHumanHelp && c.Phase == models.PhasePausedAfterEscalation
}

// timerHandles returns every escalation handle the record currently owns.
func (c *ConversationState) timerHandles() []string {
	handles := make([]string, 0, len(c.HelpTimerIDs)+2)
	if c.PaymentTimerID != "" {
		handles = append(handles, c.PaymentTimerID)
	}
	if c.FollowUpTimerID != "" {
		handles = append(handles, c.FollowUpTimerID)
	}
	handles = append(handles, c.HelpTimerIDs...)
	return handles
}

// Store holds every live ConversationState, keyed by the opaque user ID.
// Mutations go through Mutate so records are never touched concurrently by a
// processing turn and a firing timer.
type Store struct {
	mu            sync.Mutex
	conversations map[string]*ConversationState
	timers        Timer
}

// NewStore creates an empty Store whose records own handles on the given Timer.
func NewStore(timers Timer) *Store {
	slog.Debug("Creating conversation Store")
	return &Store{
		conversations: make(map[string]*ConversationState),
		timers:        timers,
	}
}

// Mutate runs fn against the live record for user, creating it first if
// needed. fn runs under the store lock; it must not call collaborators.
func (s *Store) Mutate(user string, fn func(*ConversationState)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.conversations[user]
	if !ok {
		state = &ConversationState{
			UserID:        user,
			Phase:         models.PhaseStart,
			PaymentMethod: models.PaymentUnknown,
		}
		s.conversations[user] = state
		slog.Debug("Store created conversation", "user", user)
	}
	fn(state)
}

// MutateExisting runs fn against the live record for user and reports whether
// one existed. Timer callbacks use this so a step firing after ClearAll or
// Close cannot resurrect a discarded record.
func (s *Store) MutateExisting(user string, fn func(*ConversationState)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.conversations[user]
	if !ok {
		return false
	}
	fn(state)
	return true
}

// Snapshot returns a copy of the record for user, or false when none exists.
// Timer handle slices are not shared with the live record.
func (s *Store) Snapshot(user string) (ConversationState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.conversations[user]
	if !ok {
		return ConversationState{}, false
	}
	copied := *state
	copied.HelpTimerIDs = append([]string(nil), state.HelpTimerIDs...)
	return copied, true
}

// Exists reports whether a record for user is live.
func (s *Store) Exists(user string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.conversations[user]
	return ok
}

// Count returns the number of live conversations.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

// Close cancels the record's outstanding timers and discards it.
func (s *Store) Close(user string) {
	s.mu.Lock()
	state, ok := s.conversations[user]
	if ok {
		delete(s.conversations, user)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	for _, id := range state.timerHandles() {
		if err := s.timers.Cancel(id); err != nil {
			slog.Error("Store Close timer cancel failed", "error", err, "user", user, "timer", id)
		}
	}
	slog.Info("Store closed conversation", "user", user)
}

// ClearAll cancels every outstanding timer handle across all users, then
// discards all records. Cancellation happens first so a late callback cannot
// act on a freed record.
func (s *Store) ClearAll() {
	s.mu.Lock()
	states := s.conversations
	s.conversations = make(map[string]*ConversationState)
	s.mu.Unlock()

	cancelled := 0
	for user, state := range states {
		for _, id := range state.timerHandles() {
			if err := s.timers.Cancel(id); err != nil {
				slog.Error("Store ClearAll timer cancel failed", "error", err, "user", user, "timer", id)
				continue
			}
			cancelled++
		}
	}
	slog.Info("Store cleared all conversations", "conversations", len(states), "timers_cancelled", cancelled)
}
