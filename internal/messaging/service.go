// Package messaging provides the pluggable transport layer: a Service
// interface with WhatsApp (whatsmeow) and Twilio implementations, the
// rate-limited outbound sender and the inbound pump feeding the engine.
package messaging

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/cocinacasera/casabot/internal/models"
)

// Constants for service configuration
const (
	// DefaultChannelBufferSize defines the default buffer size for receipt, response and operator channels
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the default timeout for non-blocking channel operations
	DefaultChannelTimeout = 1 * time.Second
)

// ErrServiceStopped is returned when a send is attempted after Stop.
var ErrServiceStopped = errors.New("messaging service stopped")

// phoneNumberRegex strips everything that is not a digit.
var phoneNumberRegex = regexp.MustCompile(`\D`)

// Service defines a pluggable message delivery abstraction.
// It supports sending text and media, and provides channels for receipt,
// response and operator-command events.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient identifier.
	// This allows each service to implement its own recipient validation rules.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a text message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// SendMedia sends a media attachment with an optional caption.
	SendMedia(ctx context.Context, to string, media models.Media) error

	// Start begins any background processing (e.g., polling for events).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Receipts returns a channel of receipt events (sent, delivered, read).
	Receipts() <-chan models.Receipt

	// Responses returns a channel of incoming customer messages.
	Responses() <-chan models.Response

	// Operator returns a channel of operator commands (fromMe keywords).
	Operator() <-chan models.OperatorCommand
}

// canonicalizePhone strips non-digits and checks a plausible length. Shared
// by both transports.
func canonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", models.ErrEmptyRecipient
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", errors.New("invalid phone number: no digits found")
	}
	if len(canonical) < 6 {
		return "", errors.New("invalid phone number: too short")
	}
	return canonical, nil
}
