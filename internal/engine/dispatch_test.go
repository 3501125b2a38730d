package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/cocinacasera/casabot/internal/models"
)

func TestClassifyDelay(t *testing.T) {
	base := time.Date(2026, time.August, 29, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		body     string
		arrivals []time.Time
		want     time.Duration
	}{
		{"menu digit", "2", []time.Time{base.Add(-5 * time.Second)}, delayImmediate},
		{"long gap", "hola", []time.Time{base.Add(-3 * time.Minute)}, delayImmediate},
		{"first message", "hola", nil, delayDefault},
		{"burst", "y también", []time.Time{base.Add(-10 * time.Second)}, delayBatched},
		{"recent but not burst", "hola", []time.Time{base.Add(-45 * time.Second)}, delayDefault},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyDelay(tc.body, tc.arrivals, base); got != tc.want {
				t.Errorf("classifyDelay(%q) = %v, want %v", tc.body, got, tc.want)
			}
		})
	}
}

// recorder collects dispatched messages.
type recorder struct {
	mu   sync.Mutex
	msgs []models.Message
}

func (r *recorder) process(msg models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) bodies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.msgs))
	for i, m := range r.msgs {
		out[i] = m.Body
	}
	return out
}

func TestEnqueueDebounceKeepsLatest(t *testing.T) {
	timers := newFakeTimer()
	rec := &recorder{}
	d := NewDispatcher(timers, rec.process)

	d.Enqueue(models.Message{UserID: testUser, Body: "quiero"})
	d.Enqueue(models.Message{UserID: testUser, Body: "un almuerzo"})

	// The second arrival replaced the first; only one dispatch is pending.
	if timers.active() != 1 {
		t.Fatalf("expected 1 pending dispatch, got %d", timers.active())
	}
	for timers.fireNext() {
	}

	got := rec.bodies()
	if len(got) != 1 || got[0] != "un almuerzo" {
		t.Errorf("expected only the latest message dispatched, got %v", got)
	}
}

func TestEnqueueMenuDigitIsImmediate(t *testing.T) {
	timers := newFakeTimer()
	rec := &recorder{}
	d := NewDispatcher(timers, rec.process)

	d.Enqueue(models.Message{UserID: testUser, Body: "3"})

	if got := rec.bodies(); len(got) != 1 || got[0] != "3" {
		t.Fatalf("expected synchronous dispatch, got %v", got)
	}
	if timers.active() != 0 {
		t.Errorf("expected no pending timer, got %d", timers.active())
	}
}

func TestEnqueueWebOrderBypassesDebounce(t *testing.T) {
	timers := newFakeTimer()
	rec := &recorder{}
	d := NewDispatcher(timers, rec.process)

	d.Enqueue(models.Message{UserID: testUser, Body: "hmm espera"})
	d.Enqueue(models.Message{UserID: testUser, Body: testWebOrder})

	// The order went straight through; the earlier message is still pending.
	if got := rec.bodies(); len(got) != 1 || got[0] != testWebOrder {
		t.Fatalf("expected immediate web-order dispatch, got %v", got)
	}
	if timers.active() != 1 {
		t.Errorf("expected pending dispatch untouched, got %d timers", timers.active())
	}
}

func TestEnqueueAttachmentBypassesDebounce(t *testing.T) {
	timers := newFakeTimer()
	rec := &recorder{}
	d := NewDispatcher(timers, rec.process)

	d.Enqueue(models.Message{UserID: testUser, Attachment: []byte("img")})

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.msgs) != 1 || len(rec.msgs[0].Attachment) == 0 {
		t.Error("expected attachment dispatched immediately")
	}
}

func TestClearDropsPendingDispatch(t *testing.T) {
	timers := newFakeTimer()
	rec := &recorder{}
	d := NewDispatcher(timers, rec.process)

	d.Enqueue(models.Message{UserID: testUser, Body: "quiero"})
	d.Clear(testUser)

	if timers.active() != 0 {
		t.Errorf("expected pending timer cancelled, got %d", timers.active())
	}
	// A late fire on a cleared user is a no-op.
	d.fire(testUser)
	if got := rec.bodies(); len(got) != 0 {
		t.Errorf("expected nothing dispatched after Clear, got %v", got)
	}
}

func TestClearAllDropsEveryPendingDispatch(t *testing.T) {
	timers := newFakeTimer()
	rec := &recorder{}
	d := NewDispatcher(timers, rec.process)

	d.Enqueue(models.Message{UserID: "573000000001", Body: "hola"})
	d.Enqueue(models.Message{UserID: "573000000002", Body: "buenas"})
	d.ClearAll()

	if timers.active() != 0 {
		t.Errorf("expected all pending timers cancelled, got %d", timers.active())
	}
	for timers.fireNext() {
	}
	if got := rec.bodies(); len(got) != 0 {
		t.Errorf("expected nothing dispatched after ClearAll, got %v", got)
	}
}

func TestPruneArrivals(t *testing.T) {
	base := time.Date(2026, time.August, 29, 12, 0, 0, 0, time.UTC)
	arrivals := []time.Time{
		base.Add(-2 * time.Minute),
		base.Add(-50 * time.Second),
		base.Add(-5 * time.Second),
	}
	kept := pruneArrivals(arrivals, base)
	if len(kept) != 2 {
		t.Errorf("expected 2 arrivals inside the window, got %d", len(kept))
	}
}
