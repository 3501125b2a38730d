package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/cocinacasera/casabot/internal/models"
)

// EscalationPlan holds the ladder timings. Tests substitute short values.
type EscalationPlan struct {
	// Payment ladder: first reminder, then spacing between the rest.
	PaymentFirstDelay   time.Duration
	PaymentSpacing      time.Duration
	PaymentMaxReminders int

	// Long-wait ladder, after the customer says they are about to pay.
	LongWaitPause    time.Duration
	LongWaitInterval time.Duration

	// Human-help ladder.
	HelpStillTryingDelay time.Duration
	HelpTimeoutDelay     time.Duration

	// FollowUpDelay is the nudge for users who greeted but never ordered.
	FollowUpDelay time.Duration
}

// DefaultEscalationPlan returns the production timings.
func DefaultEscalationPlan() EscalationPlan {
	return EscalationPlan{
		PaymentFirstDelay:    1 * time.Minute,
		PaymentSpacing:       5 * time.Minute,
		PaymentMaxReminders:  3,
		LongWaitPause:        30 * time.Minute,
		LongWaitInterval:     30 * time.Minute,
		HelpStillTryingDelay: 5 * time.Minute,
		HelpTimeoutDelay:     10 * time.Minute,
		FollowUpDelay:        10 * time.Minute,
	}
}

// startPaymentLadder arms the fixed payment-reminder ladder for user. Any
// previous payment timer is replaced, so a user never owns more than one.
func (e *Engine) startPaymentLadder(user string) {
	e.replacePaymentTimer(user, e.plan.PaymentFirstDelay, func() { e.paymentReminderFired(user) })
	slog.Debug("Payment ladder armed", "user", user, "first_delay", e.plan.PaymentFirstDelay)
}

// switchToLongWaitLadder replaces the fixed ladder with the unbounded
// long-wait ladder after a paying-shortly message.
func (e *Engine) switchToLongWaitLadder(user string) {
	e.replacePaymentTimer(user, e.plan.LongWaitPause, func() { e.longWaitReminderFired(user) })
	slog.Info("Switched to long-wait payment ladder", "user", user, "pause", e.plan.LongWaitPause)
}

// replacePaymentTimer schedules fn and installs its handle as the user's one
// payment timer, cancelling whatever was there.
func (e *Engine) replacePaymentTimer(user string, delay time.Duration, fn func()) {
	id, err := e.timers.ScheduleAfter(delay, fn)
	if err != nil {
		slog.Error("Payment timer schedule failed", "error", err, "user", user)
		return
	}

	var stale string
	if !e.store.MutateExisting(user, func(c *ConversationState) {
		stale = c.PaymentTimerID
		c.PaymentTimerID = id
	}) {
		// Conversation vanished between decision and scheduling.
		stale = id
	}
	if stale != "" {
		if err := e.timers.Cancel(stale); err != nil {
			slog.Error("Stale payment timer cancel failed", "error", err, "user", user, "timer", stale)
		}
	}
}

// cancelPaymentTimer drops the user's payment timer inside a mutation. The
// returned handle must be passed to the Timer once outside the store lock.
func clearPaymentHandle(c *ConversationState) string {
	id := c.PaymentTimerID
	c.PaymentTimerID = ""
	return id
}

// paymentReminderFired is the fixed-ladder step. It re-checks the live state
// and goes quiet forever once the receipt arrived or the wait ended.
func (e *Engine) paymentReminderFired(user string) {
	remind := false
	more := false
	e.store.MutateExisting(user, func(c *ConversationState) {
		c.PaymentTimerID = ""
		if !c.PaymentPreconditionHolds() {
			return
		}
		c.PaymentReminderCount++
		remind = true
		more = c.PaymentReminderCount < e.plan.PaymentMaxReminders
	})
	if !remind {
		slog.Debug("Payment reminder no-op, precondition gone", "user", user)
		return
	}

	e.notify(user, msgPaymentReminder)
	slog.Info("Payment reminder sent", "user", user)

	if more {
		e.replacePaymentTimer(user, e.plan.PaymentSpacing, func() { e.paymentReminderFired(user) })
	}
}

// longWaitReminderFired is the unbounded ladder step: remind, then rearm.
func (e *Engine) longWaitReminderFired(user string) {
	remind := false
	e.store.MutateExisting(user, func(c *ConversationState) {
		c.PaymentTimerID = ""
		if !c.PaymentPreconditionHolds() {
			return
		}
		c.PausedReminderCount++
		remind = true
	})
	if !remind {
		slog.Debug("Long-wait reminder no-op, precondition gone", "user", user)
		return
	}

	e.notify(user, msgLongWaitReminder)
	slog.Info("Long-wait reminder sent", "user", user)
	e.replacePaymentTimer(user, e.plan.LongWaitInterval, func() { e.longWaitReminderFired(user) })
}

// startHelpLadder pauses the conversation for a human and arms the two
// follow-up steps.
func (e *Engine) startHelpLadder(user string) {
	stillID, err := e.timers.ScheduleAfter(e.plan.HelpStillTryingDelay, func() { e.helpStillTryingFired(user) })
	if err != nil {
		slog.Error("Help ladder schedule failed", "error", err, "user", user, "step", "still_trying")
	}
	timeoutID, err := e.timers.ScheduleAfter(e.plan.HelpTimeoutDelay, func() { e.helpTimeoutFired(user) })
	if err != nil {
		slog.Error("Help ladder schedule failed", "error", err, "user", user, "step", "timeout")
	}

	e.store.MutateExisting(user, func(c *ConversationState) {
		c.HelpTimerIDs = nil
		if stillID != "" {
			c.HelpTimerIDs = append(c.HelpTimerIDs, stillID)
		}
		if timeoutID != "" {
			c.HelpTimerIDs = append(c.HelpTimerIDs, timeoutID)
		}
	})
	slog.Info("Human-help ladder armed", "user", user)
}

// helpStillTryingFired sends the 5-minute reassurance if the user is still
// waiting for a person.
func (e *Engine) helpStillTryingFired(user string) {
	still := false
	e.store.MutateExisting(user, func(c *ConversationState) {
		still = c.HelpPreconditionHolds()
	})
	if !still {
		slog.Debug("Still-trying step no-op, precondition gone", "user", user)
		return
	}
	e.notify(user, msgStillTrying)
	slog.Info("Still-trying notice sent", "user", user)
}

// helpTimeoutFired apologizes and offers the three-way fallback menu.
func (e *Engine) helpTimeoutFired(user string) {
	fire := false
	e.store.MutateExisting(user, func(c *ConversationState) {
		if !c.HelpPreconditionHolds() {
			return
		}
		fire = true
		c.Phase = models.PhaseAwaitingFallbackChoice
		c.HelpTimerIDs = nil
	})
	if !fire {
		slog.Debug("Help timeout no-op, precondition gone", "user", user)
		return
	}
	e.notify(user, msgHelpTimeoutApology)
	e.notify(user, msgFallbackMenu)
	slog.Info("Help timeout fallback menu sent", "user", user)
}

// cancelHelpLadder cancels both outstanding help steps. Must be called
// outside a store mutation with the handles collected inside one.
func (e *Engine) cancelHelpHandles(user string, handles []string) {
	for _, id := range handles {
		if err := e.timers.Cancel(id); err != nil {
			slog.Error("Help timer cancel failed", "error", err, "user", user, "timer", id)
		}
	}
}

// notify sends an out-of-band message to the user through the configured
// notifier. Timer callbacks use this path; normal replies travel back on the
// intake return value instead.
func (e *Engine) notify(user, body string) {
	if e.notifier == nil {
		slog.Debug("No notifier configured, dropping scheduled message", "user", user)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.notifier.SendText(ctx, user, body); err != nil {
		slog.Error("Scheduled notification send failed", "error", err, "user", user)
	}
}
