package verify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cocinacasera/casabot/internal/models"
)

// fakeOCR returns a fixed text or error.
type fakeOCR struct {
	text string
	err  error
}

func (f *fakeOCR) ExtractText(ctx context.Context, image []byte) (string, error) {
	return f.text, f.err
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var testNow = time.Date(2026, time.August, 29, 12, 0, 0, 0, time.UTC)

func newTestVerifier(text string) *Verifier {
	return NewVerifier(&fakeOCR{text: text}, WithClock(fixedClock(testNow)))
}

func TestVerifyVerified(t *testing.T) {
	receipt := "Nequi\nEnviaste $13.000\nComprobante\n29/08/2026\n$13.000"
	v := newTestVerifier(receipt)

	result := v.Verify(context.Background(), []byte("img"), 13000, models.PaymentNequi)
	if result.Outcome != OutcomeVerified {
		t.Fatalf("expected verified, got %s (%s)", result.Outcome, result.Diagnostic)
	}
	if result.Amount != 13000 || !result.AmountFound {
		t.Errorf("expected amount 13000, got %d (found=%v)", result.Amount, result.AmountFound)
	}
	if result.Provider != "Nequi" {
		t.Errorf("expected provider Nequi, got %q", result.Provider)
	}
	if result.ProviderMismatch {
		t.Error("unexpected provider mismatch")
	}
}

func TestVerifyProviderMismatchDoesNotBlock(t *testing.T) {
	receipt := "Bancolombia\nTransferencia exitosa $13.000\n29/08/2026\n$13.000"
	v := newTestVerifier(receipt)

	result := v.Verify(context.Background(), []byte("img"), 13000, models.PaymentNequi)
	if result.Outcome != OutcomeVerified {
		t.Fatalf("mismatch must not block verification, got %s", result.Outcome)
	}
	if !result.ProviderMismatch {
		t.Error("expected provider mismatch warning")
	}
}

func TestVerifyMissingDateIsNotFinalized(t *testing.T) {
	receipt := "Nequi\nEnviaste $13.000\nPendiente de confirmación"
	v := newTestVerifier(receipt)

	result := v.Verify(context.Background(), []byte("img"), 13000, models.PaymentNequi)
	if result.Outcome != OutcomeNotFinalized {
		t.Fatalf("expected not_finalized, got %s", result.Outcome)
	}
}

func TestVerifyAmountMismatchGoesToManualReview(t *testing.T) {
	receipt := "Nequi\nEnviaste $10.000\n29/08/2026"
	v := newTestVerifier(receipt)

	result := v.Verify(context.Background(), []byte("img"), 13000, models.PaymentNequi)
	if result.Outcome != OutcomeManualReview {
		t.Fatalf("expected manual_review, got %s", result.Outcome)
	}
	if result.Diagnostic == "" {
		t.Error("expected diagnostic describing extracted fields")
	}
}

func TestVerifyStaleDateReadsAsMissing(t *testing.T) {
	// Dated eight days back, outside the accepted window: the date parses as
	// absent and the receipt reads as an unfinished transfer.
	receipt := "Nequi\n$13.000\n21/08/2026\n$13.000"
	v := newTestVerifier(receipt)

	result := v.Verify(context.Background(), []byte("img"), 13000, models.PaymentNequi)
	if result.Outcome != OutcomeNotFinalized {
		t.Fatalf("expected not_finalized for out-of-window date, got %s", result.Outcome)
	}
	if result.DateFound {
		t.Error("out-of-window date must not count as found")
	}
}

func TestVerifyYesterdayNotVerified(t *testing.T) {
	receipt := "Nequi\n$13.000\n28/08/2026\n$13.000"
	v := newTestVerifier(receipt)

	result := v.Verify(context.Background(), []byte("img"), 13000, models.PaymentNequi)
	if result.Outcome == OutcomeVerified {
		t.Fatal("a receipt dated yesterday must not verify")
	}
	if !result.DateFound {
		t.Error("yesterday is inside the parse window and should be found")
	}
}

func TestVerifyUnavailable(t *testing.T) {
	v := NewVerifier(nil)
	result := v.Verify(context.Background(), []byte("img"), 13000, models.PaymentNequi)
	if result.Outcome != OutcomeUnavailable {
		t.Fatalf("expected unavailable with nil OCR, got %s", result.Outcome)
	}

	v = NewVerifier(&fakeOCR{err: ErrUnavailable}, WithClock(fixedClock(testNow)))
	result = v.Verify(context.Background(), []byte("img"), 13000, models.PaymentNequi)
	if result.Outcome != OutcomeUnavailable {
		t.Fatalf("expected unavailable on ErrUnavailable, got %s", result.Outcome)
	}
}

func TestVerifyOCRFailureGoesToManualReview(t *testing.T) {
	v := NewVerifier(&fakeOCR{err: errors.New("rpc deadline")}, WithClock(fixedClock(testNow)))
	result := v.Verify(context.Background(), []byte("img"), 13000, models.PaymentNequi)
	if result.Outcome != OutcomeManualReview {
		t.Fatalf("expected manual_review on OCR failure, got %s", result.Outcome)
	}
}

func TestVerifyIdempotent(t *testing.T) {
	receipt := "Nequi\n$13.000\n29/08/2026\n$13.000"
	v := newTestVerifier(receipt)

	first := v.Verify(context.Background(), []byte("img"), 13000, models.PaymentNequi)
	second := v.Verify(context.Background(), []byte("img"), 13000, models.PaymentNequi)
	if first != second {
		t.Errorf("identical inputs produced different results: %+v vs %+v", first, second)
	}
}

func TestExtractAmount(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		want   int
		wantOK bool
	}{
		{"dot separator", "Total $13.000", 13000, true},
		{"comma cop", "13,000 COP", 13000, true},
		{"keyword prefix", "Valor de la transferencia: 25.500", 25500, true},
		{"most frequent wins", "$13.000 ref 99.999 total $13.000", 13000, true},
		{"below range", "$500", 0, false},
		{"above range", "$2.000.000", 0, false},
		{"no amount", "comprobante de pago", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := extractAmount(tc.text)
			if ok != tc.wantOK || got != tc.want {
				t.Errorf("extractAmount(%q) = (%d, %v), want (%d, %v)", tc.text, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestExtractDate(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		want   time.Time
		wantOK bool
	}{
		{"d/m/y", "29/08/2026", time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), true},
		{"two digit year", "29/08/26", time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), true},
		{"y/m/d", "2026-08-29", time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), true},
		{"spelled month", "29 de agosto de 2026", time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), true},
		{"abbreviated month", "29 ago 2026", time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), true},
		{"within window", "25/08/2026", time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC), true},
		{"future date", "30/08/2026", time.Time{}, false},
		{"too old", "01/01/2026", time.Time{}, false},
		{"no date", "sin fecha", time.Time{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := extractDate(tc.text, testNow)
			if ok != tc.wantOK {
				t.Fatalf("extractDate(%q) ok = %v, want %v", tc.text, ok, tc.wantOK)
			}
			if ok && !got.Equal(tc.want) {
				t.Errorf("extractDate(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestDetectProvider(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"Comprobante Nequi", "Nequi"},
		{"DAVIPLATA envío exitoso", "Daviplata"},
		{"Banco Davivienda S.A.", "Daviplata"},
		{"Transferencia Bancolombia", "Bancolombia"},
		{"Banco de Bogotá", "Banco de Bogotá"},
		{"BBVA móvil", "BBVA"},
		{"sin banco", ""},
	}
	for _, tc := range cases {
		if got := detectProvider(tc.text); got != tc.want {
			t.Errorf("detectProvider(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}
