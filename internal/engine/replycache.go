package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cocinacasera/casabot/internal/models"
)

// Completer produces a short contextual reply. The production implementation
// wraps the OpenAI client; nil means unconfigured and every Generate call
// reports not-ok so call sites keep their scripted fallback.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

const (
	replyCacheTTL       = 45 * time.Second
	defaultReplyQuota   = 12
	replyCacheKeyPrefix = 40
)

type cachedReply struct {
	text      string
	expiresAt time.Time
}

// ReplyCache rewrites scripted replies through a text-generation collaborator,
// bounded by a per-user quota and a short-lived cache so message bursts do not
// multiply collaborator calls.
type ReplyCache struct {
	mu        sync.Mutex
	completer Completer
	quota     int
	usage     map[string]int
	cache     map[string]cachedReply
	now       func() time.Time
}

// NewReplyCache creates a ReplyCache over the given completer. A nil
// completer is valid and disables generation.
func NewReplyCache(completer Completer, quota int) *ReplyCache {
	if quota <= 0 {
		quota = defaultReplyQuota
	}
	slog.Debug("Creating ReplyCache", "configured", completer != nil, "quota", quota)
	return &ReplyCache{
		completer: completer,
		quota:     quota,
		usage:     make(map[string]int),
		cache:     make(map[string]cachedReply),
		now:       time.Now,
	}
}

// Generate returns a contextual reply for the user's message, or not-ok when
// the collaborator is unconfigured, the quota is spent, or generation fails.
func (r *ReplyCache) Generate(ctx context.Context, user string, phase models.Phase, text, prompt string) (string, bool) {
	if r == nil || r.completer == nil {
		return "", false
	}

	key := r.key(user, phase, text)

	r.mu.Lock()
	if entry, ok := r.cache[key]; ok && r.now().Before(entry.expiresAt) {
		r.mu.Unlock()
		slog.Debug("ReplyCache hit", "user", user, "phase", phase)
		return entry.text, true
	}
	if r.usage[user] >= r.quota {
		r.mu.Unlock()
		slog.Debug("ReplyCache quota spent", "user", user)
		return "", false
	}
	r.usage[user]++
	r.mu.Unlock()

	generated, err := r.completer.Complete(ctx, prompt, text)
	if err != nil {
		slog.Error("ReplyCache generation failed", "error", err, "user", user, "phase", phase)
		return "", false
	}
	if generated == "" {
		return "", false
	}

	r.mu.Lock()
	r.cache[key] = cachedReply{text: generated, expiresAt: r.now().Add(replyCacheTTL)}
	r.mu.Unlock()

	slog.Debug("ReplyCache generated", "user", user, "phase", phase)
	return generated, true
}

// Reset drops all cached replies and quota usage, for the daily reset.
func (r *ReplyCache) Reset() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usage = make(map[string]int)
	r.cache = make(map[string]cachedReply)
	slog.Info("ReplyCache reset")
}

// key builds the dedup key from the user, phase and a normalized text prefix.
func (r *ReplyCache) key(user string, phase models.Phase, text string) string {
	normalized := normalizeText(text)
	runes := []rune(normalized)
	if len(runes) > replyCacheKeyPrefix {
		normalized = string(runes[:replyCacheKeyPrefix])
	}
	return fmt.Sprintf("%s::%s::%s", user, phase, normalized)
}
