package engine

import (
	"regexp"
	"strings"

	"github.com/cocinacasera/casabot/internal/models"
)

// IntentClassifier decides whether a free-text message announces that the
// customer is about to pay. The default is a phrase list; a smarter
// implementation can be swapped in without touching the engine.
type IntentClassifier interface {
	IsPayingShortly(text string) bool
}

// PhraseIntentClassifier matches against a fixed list of Colombian Spanish
// "give me a moment" phrases.
type PhraseIntentClassifier struct {
	phrases []string
}

// NewPhraseIntentClassifier creates the default classifier.
func NewPhraseIntentClassifier() *PhraseIntentClassifier {
	return &PhraseIntentClassifier{phrases: []string{
		"ya te envio",
		"ya te envío",
		"dame un momento",
		"ya va",
		"espera",
		"ahorita",
		"en un momento",
		"ya mismo",
		"enseguida",
		"ya lo hago",
		"dejame",
		"déjame",
		"un segundo",
		"un minuto",
	}}
}

// IsPayingShortly reports whether the text contains a paying-shortly phrase.
func (c *PhraseIntentClassifier) IsPayingShortly(text string) bool {
	normalized := normalizeText(text)
	for _, phrase := range c.phrases {
		if strings.Contains(normalized, normalizeText(phrase)) {
			return true
		}
	}
	return false
}

// normalizeText lowercases and strips the accents that customers type
// inconsistently.
func normalizeText(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	replacer := strings.NewReplacer(
		"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u",
	)
	return replacer.Replace(lower)
}

var optionWords = map[string]string{
	"uno":    "1",
	"dos":    "2",
	"tres":   "3",
	"cuatro": "4",
	"cinco":  "5",
}

// normalizeOption maps a menu answer to its digit, accepting both "2" and
// "dos". Returns "" when the input is not a recognizable option.
func normalizeOption(text string) string {
	trimmed := normalizeText(text)
	trimmed = strings.Trim(trimmed, ".!?️⃣*️ ")
	if len(trimmed) == 1 && trimmed >= "1" && trimmed <= "5" {
		return trimmed
	}
	if digit, ok := optionWords[trimmed]; ok {
		return digit
	}
	return ""
}

var farewellWords = []string{
	"gracias",
	"muchas gracias",
	"chao",
	"chau",
	"adios",
	"hasta luego",
	"bendiciones",
	"listo gracias",
	"vale gracias",
	"ok gracias",
}

// isFarewell reports whether the message is a short goodbye rather than a
// request. Long messages that merely contain "gracias" are not farewells.
func isFarewell(text string) bool {
	normalized := normalizeText(text)
	if len([]rune(normalized)) > 30 {
		return false
	}
	for _, word := range farewellWords {
		if strings.Contains(normalized, word) {
			return true
		}
	}
	return false
}

const webOrderMarker = "hola cocina casera"

// isWebOrderPayload reports whether the message is the structured payload the
// order page sends through the customer's own chat.
func isWebOrderPayload(text string) bool {
	return strings.Contains(normalizeText(text), webOrderMarker)
}

var (
	totalLineRe      = regexp.MustCompile(`(?i)💰\s*Total:\s*\$?\s*([\d.,]+)`)
	paymentLineRe    = regexp.MustCompile(`(?i)💳\s*Pago:\s*(.+)`)
	amountMethodRe   = regexp.MustCompile(`(?i)\$[\d.,]+\s*\(([^)]+)\)`)
	methodMarkerRe   = regexp.MustCompile(`(?i)🔹\s*M[eé]todo:\s*(.+)`)
	callbackNumberRe = regexp.MustCompile(`3\d{9}`)
)

// WebOrder is the information parsed out of an order-page payload.
type WebOrder struct {
	Amount int // whole pesos, 0 when not found
	Method models.PaymentMethod
}

// parseWebOrder extracts the order total and payment method from a payload.
// Missing fields degrade gracefully: Amount 0, Method Unknown.
func parseWebOrder(text string) WebOrder {
	order := WebOrder{Method: models.PaymentUnknown}

	if m := totalLineRe.FindStringSubmatch(text); m != nil {
		if amount, ok := parseAmountToken(m[1]); ok {
			order.Amount = amount
		}
	}

	var methodText string
	if m := paymentLineRe.FindStringSubmatch(text); m != nil {
		methodText = m[1]
	} else if m := amountMethodRe.FindStringSubmatch(text); m != nil {
		methodText = m[1]
	} else if m := methodMarkerRe.FindStringSubmatch(text); m != nil {
		methodText = m[1]
	}
	if methodText != "" {
		order.Method = matchPaymentMethod(methodText)
	}
	return order
}

// parseAmountToken turns "13.000" or "13,000" into 13000. Separators are
// thousands marks; there are no peso cents on the order page.
func parseAmountToken(token string) (int, bool) {
	cleaned := strings.NewReplacer(".", "", ",", "").Replace(strings.TrimSpace(token))
	if cleaned == "" {
		return 0, false
	}
	amount := 0
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return 0, false
		}
		amount = amount*10 + int(r-'0')
	}
	if amount == 0 {
		return 0, false
	}
	return amount, true
}

// matchPaymentMethod maps a free-form method string to a known channel.
func matchPaymentMethod(text string) models.PaymentMethod {
	normalized := normalizeText(text)
	switch {
	case strings.Contains(normalized, "efectivo"), strings.Contains(normalized, "contra entrega"):
		return models.PaymentCash
	case strings.Contains(normalized, "nequi"):
		return models.PaymentNequi
	case strings.Contains(normalized, "daviplata"), strings.Contains(normalized, "davivienda"):
		return models.PaymentDaviplata
	case strings.Contains(normalized, "bancolombia"):
		return models.PaymentBancolombia
	default:
		return models.PaymentUnknown
	}
}

// extractCallbackNumber finds a Colombian mobile number (3 followed by nine
// digits) in the message, tolerating spaces and dashes.
func extractCallbackNumber(text string) (string, bool) {
	compact := strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "").Replace(text)
	match := callbackNumberRe.FindString(compact)
	if match == "" {
		return "", false
	}
	return match, true
}

// isShortMenuDigit reports whether the message is a bare 1–5 answer, used by
// the dispatcher to skip the humanizing delay.
func isShortMenuDigit(text string) bool {
	trimmed := strings.TrimSpace(text)
	return len(trimmed) == 1 && trimmed >= "1" && trimmed <= "5"
}
