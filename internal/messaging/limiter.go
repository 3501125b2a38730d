package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cocinacasera/casabot/internal/models"
	"github.com/cocinacasera/casabot/internal/util"
)

// Send pacing defaults. The pause makes the bot type at a human rhythm; the
// budget keeps a runaway loop from flooding the business number.
const (
	DefaultSendBudgetPerMinute = 30
	minSendPause               = 400 * time.Millisecond
	maxSendPause               = 1200 * time.Millisecond
)

// genericSendApology replaces a message that could not be delivered.
const genericSendApology = "Veci, tuvimos un problema enviando el mensaje anterior 🙏 Escríbenos de nuevo si necesitas algo."

// RateLimitedSender wraps a Service with a rolling per-minute send budget and
// a randomized humanizing pause. It is the engine's outbound path.
type RateLimitedSender struct {
	service Service

	mu        sync.Mutex
	budget    int
	sendTimes []time.Time
	now       func() time.Time
	pause     func()
}

// NewRateLimitedSender creates a sender with the given per-minute budget.
// Zero or negative means the default.
func NewRateLimitedSender(service Service, budget int) *RateLimitedSender {
	if budget <= 0 {
		budget = DefaultSendBudgetPerMinute
	}
	slog.Debug("Creating RateLimitedSender", "budget_per_minute", budget)
	return &RateLimitedSender{
		service: service,
		budget:  budget,
		now:     time.Now,
		pause: func() {
			time.Sleep(util.RandomDuration(minSendPause, maxSendPause))
		},
	}
}

// SendText delivers one text message within the budget. A failed send gets
// one retry carrying a generic apology; after that the message is dropped.
func (r *RateLimitedSender) SendText(ctx context.Context, to, body string) error {
	if err := r.reserve(to); err != nil {
		return err
	}
	r.pause()

	if err := r.service.SendMessage(ctx, to, body); err != nil {
		slog.Error("Send failed, retrying with apology", "error", err, "to", to)
		if retryErr := r.service.SendMessage(ctx, to, genericSendApology); retryErr != nil {
			slog.Error("Apology retry failed, dropping message", "error", retryErr, "to", to)
			return retryErr
		}
		return nil
	}
	return nil
}

// SendMedia delivers one media message within the budget.
func (r *RateLimitedSender) SendMedia(ctx context.Context, to string, media models.Media) error {
	if err := r.reserve(to); err != nil {
		return err
	}
	r.pause()

	if err := r.service.SendMedia(ctx, to, media); err != nil {
		slog.Error("Media send failed, retrying with apology", "error", err, "to", to)
		if retryErr := r.service.SendMessage(ctx, to, genericSendApology); retryErr != nil {
			slog.Error("Apology retry failed, dropping media", "error", retryErr, "to", to)
			return retryErr
		}
		return nil
	}
	return nil
}

// reserve claims one slot from the rolling window, or drops the send.
func (r *RateLimitedSender) reserve(to string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-time.Minute)
	kept := r.sendTimes[:0]
	for _, t := range r.sendTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	r.sendTimes = kept

	if len(r.sendTimes) >= r.budget {
		slog.Error("Send budget exhausted, dropping outbound message", "to", to, "budget", r.budget)
		return models.ErrSendBudgetExhausted
	}
	r.sendTimes = append(r.sendTimes, now)
	return nil
}
