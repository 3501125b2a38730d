// Package verify implements the payment receipt verification pipeline:
// OCR text extraction, amount and date parsing heuristics, provider
// detection and the final verdict.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cocinacasera/casabot/internal/models"
)

// OCR extracts the text of a receipt image. The production implementation
// wraps Google Cloud Vision; ErrUnavailable means the service is not
// configured and the caller should fall back to manual review.
type OCR interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

// ErrUnavailable is returned by an OCR implementation that is not configured.
var ErrUnavailable = errors.New("ocr service unavailable")

// Outcome is the pipeline verdict.
type Outcome string

const (
	// OutcomeVerified means amount and date both matched.
	OutcomeVerified Outcome = "verified"
	// OutcomeNotFinalized means the amount looked right but no date was
	// found, which on Colombian banking apps means the transfer was never
	// confirmed.
	OutcomeNotFinalized Outcome = "not_finalized"
	// OutcomeManualReview means something did not add up and a person
	// should look at the receipt.
	OutcomeManualReview Outcome = "manual_review"
	// OutcomeUnavailable means OCR is unconfigured; manual handling applies.
	OutcomeUnavailable Outcome = "unavailable"
)

// Result carries the verdict plus everything the pipeline extracted, so
// diagnostics can echo the fields back to the operator.
type Result struct {
	Outcome Outcome

	Amount      int
	AmountFound bool
	Date        time.Time
	DateFound   bool
	// Provider is the issuing bank read off the receipt ("Nequi",
	// "Bancolombia", "BBVA", ...), empty when none was recognized.
	Provider string

	// ProviderMismatch warns that the detected bank differs from the one
	// the customer picked. It never blocks verification on its own.
	ProviderMismatch bool

	Diagnostic string
}

// Verifier runs the receipt pipeline. Identical inputs produce identical
// results; the pipeline keeps no state between runs.
type Verifier struct {
	ocr OCR
	now func() time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// NewVerifier creates a Verifier over the given OCR service. ocr may be nil,
// in which case every verification reports OutcomeUnavailable.
func NewVerifier(ocr OCR, opts ...Option) *Verifier {
	v := &Verifier{ocr: ocr, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	slog.Debug("Creating Verifier", "ocr_configured", ocr != nil)
	return v
}

// Verify runs the full pipeline against a receipt image.
func (v *Verifier) Verify(ctx context.Context, image []byte, expectedAmount int, expectedMethod models.PaymentMethod) Result {
	if v.ocr == nil {
		slog.Debug("Verify skipped, OCR unconfigured")
		return Result{Outcome: OutcomeUnavailable}
	}

	text, err := v.ocr.ExtractText(ctx, image)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			slog.Debug("Verify skipped, OCR unavailable")
			return Result{Outcome: OutcomeUnavailable}
		}
		slog.Error("Verify OCR failed", "error", err)
		return Result{
			Outcome:    OutcomeManualReview,
			Diagnostic: "No se pudo leer el comprobante",
		}
	}

	result := Result{Provider: detectProvider(text)}
	result.Amount, result.AmountFound = extractAmount(text)
	result.Date, result.DateFound = extractDate(text, v.now())

	if result.Provider != "" && !providerMatchesMethod(result.Provider, expectedMethod) {
		result.ProviderMismatch = true
	}

	today := truncateDay(v.now())
	amountMatches := result.AmountFound && result.Amount == expectedAmount
	dateIsToday := result.DateFound && truncateDay(result.Date).Equal(today)

	switch {
	case amountMatches && dateIsToday:
		result.Outcome = OutcomeVerified
	case amountMatches && !result.DateFound:
		result.Outcome = OutcomeNotFinalized
	default:
		result.Outcome = OutcomeManualReview
		result.Diagnostic = diagnostic(result, expectedAmount)
	}

	slog.Info("Verify completed", "outcome", result.Outcome,
		"amount_found", result.AmountFound, "date_found", result.DateFound,
		"provider", result.Provider, "provider_mismatch", result.ProviderMismatch)
	return result
}

// diagnostic summarizes the extracted fields for the operator.
func diagnostic(r Result, expectedAmount int) string {
	var parts []string
	if r.AmountFound {
		parts = append(parts, fmt.Sprintf("monto leído: $%d (esperado $%d)", r.Amount, expectedAmount))
	} else {
		parts = append(parts, fmt.Sprintf("monto no encontrado (esperado $%d)", expectedAmount))
	}
	if r.DateFound {
		parts = append(parts, "fecha: "+r.Date.Format("02/01/2006"))
	} else {
		parts = append(parts, "fecha no encontrada")
	}
	if r.Provider != "" {
		parts = append(parts, "banco: "+r.Provider)
	}
	return strings.Join(parts, ", ")
}

var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\$\s*([\d]{1,3}(?:[.,]\d{3})+|\d{4,7})`),
	regexp.MustCompile(`(?i)([\d]{1,3}(?:[.,]\d{3})+|\d{4,7})\s*(?:COP|pesos)`),
	regexp.MustCompile(`(?i)(?:valor|monto|total|transferencia)\D{0,12}([\d]{1,3}(?:[.,]\d{3})+|\d{4,7})`),
}

const (
	minPlausibleAmount = 1000
	maxPlausibleAmount = 1000000
)

// extractAmount finds candidate peso amounts and picks the most frequently
// repeated one. Receipts usually print the amount two or three times, so
// repetition beats position.
func extractAmount(text string) (int, bool) {
	counts := make(map[int]int)
	var order []int

	for _, re := range amountPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			token := strings.NewReplacer(".", "", ",", "").Replace(m[1])
			amount, err := strconv.Atoi(token)
			if err != nil {
				continue
			}
			if amount < minPlausibleAmount || amount > maxPlausibleAmount {
				continue
			}
			if counts[amount] == 0 {
				order = append(order, amount)
			}
			counts[amount]++
		}
	}
	if len(order) == 0 {
		return 0, false
	}

	best := order[0]
	for _, amount := range order[1:] {
		if counts[amount] > counts[best] {
			best = amount
		}
	}
	return best, true
}

var monthNames = map[string]time.Month{
	"enero": time.January, "ene": time.January,
	"febrero": time.February, "feb": time.February,
	"marzo": time.March, "mar": time.March,
	"abril": time.April, "abr": time.April,
	"mayo": time.May, "may": time.May,
	"junio": time.June, "jun": time.June,
	"julio": time.July, "jul": time.July,
	"agosto": time.August, "ago": time.August,
	"septiembre": time.September, "sep": time.September, "sept": time.September,
	"octubre": time.October, "oct": time.October,
	"noviembre": time.November, "nov": time.November,
	"diciembre": time.December, "dic": time.December,
}

var (
	numericDateRe = regexp.MustCompile(`\b(\d{1,4})[/\-.](\d{1,2})[/\-.](\d{1,4})\b`)
	spelledDateRe = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:de\s+)?([a-záé]+)\.?\s*(?:de\s+|del\s+)?(\d{2,4})\b`)
)

// extractDate finds the receipt date. Only dates inside [today-7d, today]
// are accepted; anything else reads like an account number or a time.
func extractDate(text string, now time.Time) (time.Time, bool) {
	earliest := truncateDay(now).AddDate(0, 0, -7)
	latest := truncateDay(now)

	accept := func(t time.Time) bool {
		day := truncateDay(t)
		return !day.Before(earliest) && !day.After(latest)
	}

	for _, m := range numericDateRe.FindAllStringSubmatch(text, -1) {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		c, _ := strconv.Atoi(m[3])

		for _, candidate := range numericCandidates(a, b, c, now) {
			if accept(candidate) {
				return candidate, true
			}
		}
	}

	for _, m := range spelledDateRe.FindAllStringSubmatch(text, -1) {
		day, _ := strconv.Atoi(m[1])
		month, ok := monthNames[strings.ToLower(stripAccents(m[2]))]
		if !ok {
			month, ok = monthNames[strings.ToLower(m[2])]
		}
		if !ok {
			continue
		}
		year, _ := strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
		candidate := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
		if candidate.Day() == day && accept(candidate) {
			return candidate, true
		}
	}

	return time.Time{}, false
}

// numericCandidates interprets a/b/c as D/M/Y and Y/M/D, with two-digit
// years mapped into the 2000s.
func numericCandidates(a, b, c int, now time.Time) []time.Time {
	var out []time.Time
	build := func(year, month, day int) {
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return
		}
		if year < 100 {
			year += 2000
		}
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
		if t.Day() == day && int(t.Month()) == month {
			out = append(out, t)
		}
	}
	build(c, b, a) // D/M/Y
	build(a, b, c) // Y/M/D
	return out
}

func stripAccents(s string) string {
	return strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u").Replace(s)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

var providerMarkers = []struct {
	needle string
	name   string
}{
	{"nequi", "Nequi"},
	{"daviplata", "Daviplata"},
	{"davivienda", "Daviplata"},
	{"bancolombia", "Bancolombia"},
	{"banco de bogota", "Banco de Bogotá"},
	{"banco de bogotá", "Banco de Bogotá"},
	{"bbva", "BBVA"},
}

// detectProvider finds the issuing bank by substring. Banks the order page
// does not offer still get detected so the mismatch warning can name them.
func detectProvider(text string) string {
	lower := strings.ToLower(text)
	for _, marker := range providerMarkers {
		if strings.Contains(lower, marker.needle) {
			return marker.name
		}
	}
	return ""
}

// providerMatchesMethod reports whether the detected bank is consistent with
// the method the customer picked. Unknown expectations match anything.
func providerMatchesMethod(provider string, method models.PaymentMethod) bool {
	switch method {
	case models.PaymentNequi:
		return provider == "Nequi"
	case models.PaymentDaviplata:
		return provider == "Daviplata"
	case models.PaymentBancolombia:
		return provider == "Bancolombia"
	default:
		return true
	}
}
