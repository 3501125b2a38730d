package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/cocinacasera/casabot/internal/models"
)

// Dispatch delay classes. Rapid typists get batched so one considered answer
// covers their burst; everyone else gets a short humanizing pause.
const (
	delayImmediate = 0
	delayDefault   = 8 * time.Second
	delayBatched   = 12 * time.Second

	arrivalWindow   = 60 * time.Second
	burstWindow     = 30 * time.Second
	immediateGap    = 2 * time.Minute
	maxTrackedTimes = 20
)

// arrivalState tracks one user's recent message arrivals and any pending
// dispatch. The pending handle is a debounce timer, separate from the
// escalation timers owned by ConversationState.
type arrivalState struct {
	arrivals      []time.Time
	pendingID     string
	pendingLatest models.Message
}

// Dispatcher debounces inbound messages per user and hands the winning
// message to the processing function after a classified delay.
type Dispatcher struct {
	mu      sync.Mutex
	users   map[string]*arrivalState
	timers  Timer
	process func(models.Message)
	now     func() time.Time
}

// NewDispatcher creates a Dispatcher that calls process for each dispatched
// message.
func NewDispatcher(timers Timer, process func(models.Message)) *Dispatcher {
	slog.Debug("Creating Dispatcher")
	return &Dispatcher{
		users:   make(map[string]*arrivalState),
		timers:  timers,
		process: process,
		now:     time.Now,
	}
}

// classifyDelay picks the dispatch delay for a message given the user's
// arrival history. Pure function of its inputs.
func classifyDelay(body string, arrivals []time.Time, now time.Time) time.Duration {
	if isShortMenuDigit(body) {
		return delayImmediate
	}
	if len(arrivals) > 0 {
		last := arrivals[len(arrivals)-1]
		if now.Sub(last) > immediateGap {
			return delayImmediate
		}
	}
	inBurst := 0
	for _, t := range arrivals {
		if now.Sub(t) <= burstWindow {
			inBurst++
		}
	}
	// The current message is part of the burst too.
	if inBurst+1 > 1 {
		return delayBatched
	}
	return delayDefault
}

// Enqueue records the arrival and schedules (or reschedules) the dispatch.
// Web-order payloads and attachments bypass debouncing entirely: they are
// dispatched immediately and leave any unrelated pending dispatch alone.
func (d *Dispatcher) Enqueue(msg models.Message) {
	if msg.UserID == "" {
		slog.Error("Dispatcher Enqueue with empty user ID")
		return
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = d.now()
	}

	if isWebOrderPayload(msg.Body) || len(msg.Attachment) > 0 {
		slog.Debug("Dispatcher immediate bypass", "user", msg.UserID, "attachment", len(msg.Attachment) > 0)
		d.process(msg)
		return
	}

	d.mu.Lock()
	state, ok := d.users[msg.UserID]
	if !ok {
		state = &arrivalState{}
		d.users[msg.UserID] = state
	}

	now := d.now()
	state.arrivals = pruneArrivals(state.arrivals, now)
	delay := classifyDelay(msg.Body, state.arrivals, now)
	state.arrivals = append(state.arrivals, now)
	if len(state.arrivals) > maxTrackedTimes {
		state.arrivals = state.arrivals[len(state.arrivals)-maxTrackedTimes:]
	}

	// Debounce: the newest message replaces whatever was pending.
	if state.pendingID != "" {
		if err := d.timers.Cancel(state.pendingID); err != nil {
			slog.Error("Dispatcher cancel pending failed", "error", err, "user", msg.UserID)
		}
		state.pendingID = ""
	}
	state.pendingLatest = msg
	d.mu.Unlock()

	if delay == delayImmediate {
		d.fire(msg.UserID)
		return
	}

	user := msg.UserID
	id, err := d.timers.ScheduleAfter(delay, func() { d.fire(user) })
	if err != nil {
		slog.Error("Dispatcher schedule failed, dispatching inline", "error", err, "user", user)
		d.fire(user)
		return
	}

	d.mu.Lock()
	if s, ok := d.users[user]; ok && s.pendingLatest.ReceivedAt.Equal(msg.ReceivedAt) {
		s.pendingID = id
	} else if err := d.timers.Cancel(id); err != nil {
		slog.Error("Dispatcher stale timer cancel failed", "error", err, "user", user)
	}
	d.mu.Unlock()

	slog.Debug("Dispatcher scheduled", "user", user, "delay", delay)
}

// fire dispatches the pending message for user, if the entry still exists.
// Firing after Clear is a no-op.
func (d *Dispatcher) fire(user string) {
	d.mu.Lock()
	state, ok := d.users[user]
	if !ok || state.pendingLatest.UserID == "" {
		d.mu.Unlock()
		slog.Debug("Dispatcher fire on cleared user", "user", user)
		return
	}
	msg := state.pendingLatest
	state.pendingLatest = models.Message{}
	state.pendingID = ""
	d.mu.Unlock()

	d.process(msg)
}

// Clear drops the user's arrival history and cancels any pending dispatch.
func (d *Dispatcher) Clear(user string) {
	d.mu.Lock()
	state, ok := d.users[user]
	var pending string
	if ok {
		pending = state.pendingID
		delete(d.users, user)
	}
	d.mu.Unlock()

	if pending != "" {
		if err := d.timers.Cancel(pending); err != nil {
			slog.Error("Dispatcher Clear cancel failed", "error", err, "user", user)
		}
	}
}

// ClearAll drops every user's tracking state and pending dispatches.
func (d *Dispatcher) ClearAll() {
	d.mu.Lock()
	users := d.users
	d.users = make(map[string]*arrivalState)
	d.mu.Unlock()

	for user, state := range users {
		if state.pendingID == "" {
			continue
		}
		if err := d.timers.Cancel(state.pendingID); err != nil {
			slog.Error("Dispatcher ClearAll cancel failed", "error", err, "user", user)
		}
	}
	slog.Info("Dispatcher cleared all pending dispatches", "users", len(users))
}

// pruneArrivals drops arrival timestamps older than the sliding window.
func pruneArrivals(arrivals []time.Time, now time.Time) []time.Time {
	kept := arrivals[:0]
	for _, t := range arrivals {
		if now.Sub(t) <= arrivalWindow {
			kept = append(kept, t)
		}
	}
	return kept
}
