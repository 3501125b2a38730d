// Package models defines the core data structures for casabot.
//
// It includes the conversation lifecycle phases, inbound/outbound message
// shapes and delivery receipts, which are shared across modules.
package models

import (
	"errors"
	"time"
)

// Phase identifies where a conversation is in its lifecycle.
type Phase string

const (
	// PhaseStart is the implicit phase of a conversation that has not been touched yet.
	PhaseStart Phase = "start"
	// PhaseAssistanceMenu means the numbered assistance options were shown.
	PhaseAssistanceMenu Phase = "assistance_menu"
	// PhaseAwaitingWebOrder means the user was pointed at the order page and we expect the payload.
	PhaseAwaitingWebOrder Phase = "awaiting_web_order"
	// PhaseWaitingForPayment means a non-cash order was confirmed and no receipt has arrived.
	PhaseWaitingForPayment Phase = "waiting_for_payment"
	// PhaseWaitingForHumanHelp means the user asked for a person and the ladder is running.
	PhaseWaitingForHumanHelp Phase = "waiting_for_human_help"
	// PhasePausedAfterEscalation suppresses all automated replies while an operator takes over.
	PhasePausedAfterEscalation Phase = "paused_after_escalation"
	// PhaseAwaitingFallbackChoice means the 10-minute fallback menu was shown.
	PhaseAwaitingFallbackChoice Phase = "awaiting_fallback_choice"
	// PhaseAwaitingCallbackNumber means we asked for a phone number to call back.
	PhaseAwaitingCallbackNumber Phase = "awaiting_callback_number"
	// PhaseClosed means the conversation ended politely.
	PhaseClosed Phase = "closed"
)

// PaymentMethod is the payment channel the customer picked on the order page.
type PaymentMethod string

const (
	PaymentCash        PaymentMethod = "Efectivo"
	PaymentNequi       PaymentMethod = "Nequi"
	PaymentDaviplata   PaymentMethod = "Daviplata"
	PaymentBancolombia PaymentMethod = "Bancolombia"
	PaymentUnknown     PaymentMethod = "Desconocido"
)

// RequiresReceipt reports whether the method is settled by transfer and we
// should wait for a payment receipt.
func (m PaymentMethod) RequiresReceipt() bool {
	switch m {
	case PaymentNequi, PaymentDaviplata, PaymentBancolombia:
		return true
	default:
		return false
	}
}

// Message is one inbound customer message entering the engine.
type Message struct {
	UserID     string
	Body       string
	Attachment []byte // raw image bytes when the message carries one
	ReceivedAt time.Time
}

// MediaType distinguishes outbound attachment kinds.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// Media describes an outbound attachment sent with a caption.
type Media struct {
	Type    MediaType
	URL     string // remote reference, preferred when set
	Path    string // local file fallback
	Caption string
}

// Reply is the engine's answer to one inbound message. A nil *Reply means the
// conversation is paused and nothing should be sent. Media, when present, is
// delivered with the first message as its caption carrier. Secondary, when
// present, is a trailing hint sent after the main messages.
type Reply struct {
	Messages  []string
	Media     *Media
	Secondary string
}

// TextReply builds a plain reply from one or more message bodies.
func TextReply(messages ...string) *Reply {
	return &Reply{Messages: messages}
}

// PairReply builds a {main, secondary} reply.
func PairReply(main, secondary string) *Reply {
	return &Reply{Messages: []string{main}, Secondary: secondary}
}

// IsEmpty reports whether the reply carries nothing to send.
func (r *Reply) IsEmpty() bool {
	return r == nil || (len(r.Messages) == 0 && r.Media == nil && r.Secondary == "")
}

// StatusType represents the delivery status of an outbound message.
type StatusType string

const (
	StatusTypeSent      StatusType = "sent"
	StatusTypeDelivered StatusType = "delivered"
	StatusTypeRead      StatusType = "read"
	StatusTypeDropped   StatusType = "dropped"
)

// Receipt is a transport delivery/read event.
type Receipt struct {
	To     string
	Status StatusType
	Time   int64
}

// Response is an incoming participant message as surfaced by a transport.
type Response struct {
	From       string
	Body       string
	Attachment []byte
	Time       int64
}

// OperatorAction enumerates recognized operator commands.
type OperatorAction string

const (
	// OperatorUnpause reactivates a conversation paused for human help.
	OperatorUnpause OperatorAction = "unpause"
)

// OperatorCommand is a command issued by the business operator on their own
// channel (a fromMe message in the customer's chat).
type OperatorCommand struct {
	Action OperatorAction
	UserID string
	Time   int64
}

// TimerInfo describes an active scheduled timer.
type TimerInfo struct {
	ID          string
	ScheduledAt time.Time
	ExpiresAt   time.Time
	Remaining   string
	Description string
}

// Error variables shared across modules.
var (
	ErrEmptyRecipient        = errors.New("recipient cannot be empty")
	ErrEmptyUserID           = errors.New("user id cannot be empty")
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrConversationNotPaused = errors.New("conversation is not paused")
	ErrSendBudgetExhausted   = errors.New("per-minute send budget exhausted")
)
