package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cocinacasera/casabot/internal/models"
)

// stubService records sends and can fail a scripted number of times.
type stubService struct {
	mu       sync.Mutex
	sent     []string
	failures int
}

func (s *stubService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

func (s *stubService) SendMessage(ctx context.Context, to, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("transport glitch")
	}
	s.sent = append(s.sent, body)
	return nil
}

func (s *stubService) SendMedia(ctx context.Context, to string, media models.Media) error {
	return s.SendMessage(ctx, to, media.Caption)
}

func (s *stubService) Start(ctx context.Context) error         { return nil }
func (s *stubService) Stop() error                             { return nil }
func (s *stubService) Receipts() <-chan models.Receipt         { return nil }
func (s *stubService) Responses() <-chan models.Response       { return nil }
func (s *stubService) Operator() <-chan models.OperatorCommand { return nil }

func (s *stubService) bodies() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func newTestSender(service Service, budget int) *RateLimitedSender {
	sender := NewRateLimitedSender(service, budget)
	sender.pause = func() {}
	return sender
}

func TestSendTextWithinBudget(t *testing.T) {
	stub := &stubService{}
	sender := newTestSender(stub, 5)

	for i := 0; i < 5; i++ {
		if err := sender.SendText(context.Background(), "573001112233", "hola"); err != nil {
			t.Fatalf("send %d failed: %v", i, err)
		}
	}
	if got := len(stub.bodies()); got != 5 {
		t.Errorf("expected 5 delivered messages, got %d", got)
	}
}

func TestSendBudgetExhausted(t *testing.T) {
	stub := &stubService{}
	sender := newTestSender(stub, 2)

	for i := 0; i < 2; i++ {
		if err := sender.SendText(context.Background(), "573001112233", "hola"); err != nil {
			t.Fatalf("send %d failed: %v", i, err)
		}
	}
	err := sender.SendText(context.Background(), "573001112233", "hola")
	if !errors.Is(err, models.ErrSendBudgetExhausted) {
		t.Fatalf("expected ErrSendBudgetExhausted, got %v", err)
	}
	if got := len(stub.bodies()); got != 2 {
		t.Errorf("over-budget message reached the transport: %d sends", got)
	}
}

func TestSendBudgetRollsOver(t *testing.T) {
	stub := &stubService{}
	sender := newTestSender(stub, 1)

	now := time.Date(2026, time.August, 29, 12, 0, 0, 0, time.UTC)
	sender.now = func() time.Time { return now }

	if err := sender.SendText(context.Background(), "573001112233", "uno"); err != nil {
		t.Fatalf("first send failed: %v", err)
	}
	if err := sender.SendText(context.Background(), "573001112233", "dos"); !errors.Is(err, models.ErrSendBudgetExhausted) {
		t.Fatalf("expected exhausted budget, got %v", err)
	}

	now = now.Add(61 * time.Second)
	if err := sender.SendText(context.Background(), "573001112233", "tres"); err != nil {
		t.Fatalf("send after window rollover failed: %v", err)
	}
}

func TestSendFailureRetriesWithApology(t *testing.T) {
	stub := &stubService{failures: 1}
	sender := newTestSender(stub, 5)

	if err := sender.SendText(context.Background(), "573001112233", "hola veci"); err != nil {
		t.Fatalf("retried send reported error: %v", err)
	}
	got := stub.bodies()
	if len(got) != 1 || got[0] != genericSendApology {
		t.Errorf("expected the apology to be delivered, got %v", got)
	}
}

func TestSendDoubleFailureDropsMessage(t *testing.T) {
	stub := &stubService{failures: 2}
	sender := newTestSender(stub, 5)

	if err := sender.SendText(context.Background(), "573001112233", "hola"); err == nil {
		t.Fatal("expected error when the apology retry also fails")
	}
	if got := len(stub.bodies()); got != 0 {
		t.Errorf("expected nothing delivered, got %d sends", got)
	}
}

func TestSendMediaSharesBudget(t *testing.T) {
	stub := &stubService{}
	sender := newTestSender(stub, 1)

	media := models.Media{Type: models.MediaTypeVideo, URL: "https://example.com/v.mp4", Caption: "tutorial"}
	if err := sender.SendMedia(context.Background(), "573001112233", media); err != nil {
		t.Fatalf("media send failed: %v", err)
	}
	if err := sender.SendText(context.Background(), "573001112233", "hola"); !errors.Is(err, models.ErrSendBudgetExhausted) {
		t.Errorf("expected text blocked by shared budget, got %v", err)
	}
}
