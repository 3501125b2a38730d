package engine

import (
	"testing"

	"github.com/cocinacasera/casabot/internal/models"
)

func TestPhraseIntentClassifier(t *testing.T) {
	classifier := NewPhraseIntentClassifier()

	cases := []struct {
		name string
		text string
		want bool
	}{
		{"plain phrase", "ya te envio el comprobante", true},
		{"accented phrase", "Ya te envío la captura", true},
		{"give me a moment", "dame un momento porfa", true},
		{"ahorita", "Ahorita lo hago", true},
		{"one second", "un segundo", true},
		{"unrelated", "quiero un almuerzo", false},
		{"empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifier.IsPayingShortly(tc.text); got != tc.want {
				t.Errorf("IsPayingShortly(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestNormalizeOption(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1", "1"},
		{" 3 ", "3"},
		{"uno", "1"},
		{"Dos", "2"},
		{"CINCO", "5"},
		{"6", ""},
		{"0", ""},
		{"quiero ayuda", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := normalizeOption(tc.in); got != tc.want {
			t.Errorf("normalizeOption(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsFarewell(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"gracias", true},
		{"Muchas gracias!", true},
		{"chao", true},
		{"hasta luego", true},
		{"gracias por la informacion pero todavia tengo un problema con mi pedido", false},
		{"quiero otro almuerzo", false},
	}
	for _, tc := range cases {
		if got := isFarewell(tc.in); got != tc.want {
			t.Errorf("isFarewell(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseWebOrder(t *testing.T) {
	payload := "Hola Cocina Casera 👋\n" +
		"🍽️ 1x Almuerzo especial\n" +
		"💰 Total: $13.000\n" +
		"💳 Pago: Nequi\n" +
		"📍 Calle 10 #5-20"

	order := parseWebOrder(payload)
	if order.Amount != 13000 {
		t.Errorf("expected amount 13000, got %d", order.Amount)
	}
	if order.Method != models.PaymentNequi {
		t.Errorf("expected method Nequi, got %s", order.Method)
	}
}

func TestParseWebOrderMethodVariants(t *testing.T) {
	cases := []struct {
		name string
		text string
		want models.PaymentMethod
	}{
		{"pago line cash", "hola cocina casera\n💳 Pago: Efectivo", models.PaymentCash},
		{"amount with method", "hola cocina casera\n$15.500 (Daviplata)", models.PaymentDaviplata},
		{"metodo marker", "hola cocina casera\n🔹 Método: Bancolombia", models.PaymentBancolombia},
		{"no method", "hola cocina casera\n💰 Total: $10.000", models.PaymentUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := parseWebOrder(tc.text).Method; got != tc.want {
				t.Errorf("got method %s, want %s", got, tc.want)
			}
		})
	}
}

func TestParseWebOrderCommaSeparator(t *testing.T) {
	order := parseWebOrder("hola cocina casera\n💰 Total: $13,000")
	if order.Amount != 13000 {
		t.Errorf("expected amount 13000, got %d", order.Amount)
	}
}

func TestIsWebOrderPayload(t *testing.T) {
	if !isWebOrderPayload("HOLA COCINA CASERA, nuevo pedido") {
		t.Error("expected marker match regardless of case")
	}
	if isWebOrderPayload("hola, quiero comida casera") {
		t.Error("unexpected marker match")
	}
}

func TestExtractCallbackNumber(t *testing.T) {
	cases := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"3001234567", "3001234567", true},
		{"mi numero es 300 123 4567", "3001234567", true},
		{"300-123-4567", "3001234567", true},
		{"6011234567", "", false},
		{"300123", "", false},
	}
	for _, tc := range cases {
		got, ok := extractCallbackNumber(tc.in)
		if ok != tc.wantOK || got != tc.want {
			t.Errorf("extractCallbackNumber(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestIsShortMenuDigit(t *testing.T) {
	for _, ok := range []string{"1", "5", " 3 "} {
		if !isShortMenuDigit(ok) {
			t.Errorf("expected %q to be a menu digit", ok)
		}
	}
	for _, bad := range []string{"6", "12", "uno", ""} {
		if isShortMenuDigit(bad) {
			t.Errorf("did not expect %q to be a menu digit", bad)
		}
	}
}
