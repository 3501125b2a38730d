package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cocinacasera/casabot/internal/models"
	"github.com/cocinacasera/casabot/internal/verify"
)

// Notifier delivers outbound messages (replies, reminders, ladder steps).
// The production implementation is the rate-limited messaging sender.
type Notifier interface {
	SendText(ctx context.Context, to, body string) error
	SendMedia(ctx context.Context, to string, media models.Media) error
}

// ReceiptVerifier runs the payment receipt pipeline.
type ReceiptVerifier interface {
	Verify(ctx context.Context, image []byte, expectedAmount int, expectedMethod models.PaymentMethod) verify.Result
}

// Engine owns the conversation store, the dispatcher and the escalation
// ladders, and turns inbound messages into replies.
type Engine struct {
	store      *Store
	timers     Timer
	dispatcher *Dispatcher
	replies    *ReplyCache
	verifier   ReceiptVerifier
	notifier   Notifier
	intents    IntentClassifier
	plan       EscalationPlan
	now        func() time.Time

	// tutorialVideoURL, when set, rides along with the multi-order tutorial.
	tutorialVideoURL string
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier sets the out-of-band message sender.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithVerifier sets the receipt verification pipeline.
func WithVerifier(v ReceiptVerifier) Option {
	return func(e *Engine) { e.verifier = v }
}

// WithReplyCache sets the contextual reply generator.
func WithReplyCache(r *ReplyCache) Option {
	return func(e *Engine) { e.replies = r }
}

// WithIntentClassifier replaces the default phrase-list classifier.
func WithIntentClassifier(c IntentClassifier) Option {
	return func(e *Engine) { e.intents = c }
}

// WithEscalationPlan replaces the default ladder timings.
func WithEscalationPlan(p EscalationPlan) Option {
	return func(e *Engine) { e.plan = p }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithTutorialVideo attaches a video URL to the multi-order tutorial.
func WithTutorialVideo(url string) Option {
	return func(e *Engine) { e.tutorialVideoURL = url }
}

// NewEngine creates an Engine over the given timer implementation.
func NewEngine(timers Timer, opts ...Option) *Engine {
	e := &Engine{
		timers:  timers,
		intents: NewPhraseIntentClassifier(),
		plan:    DefaultEscalationPlan(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.store = NewStore(timers)
	e.dispatcher = NewDispatcher(timers, func(msg models.Message) {
		reply := e.Process(context.Background(), msg)
		e.deliver(msg.UserID, reply)
	})
	slog.Info("Engine created",
		"verifier_configured", e.verifier != nil,
		"replies_configured", e.replies != nil,
		"notifier_configured", e.notifier != nil)
	return e
}

// Store exposes the conversation store, for the admin API.
func (e *Engine) Store() *Store { return e.store }

// HandleIncoming feeds one transport message through the delay dispatcher.
// The eventual reply, if any, goes out through the notifier.
func (e *Engine) HandleIncoming(msg models.Message) {
	if msg.UserID == "" {
		slog.Error("HandleIncoming with empty user ID")
		return
	}
	e.dispatcher.Enqueue(msg)
}

// Process runs one message through the handler chain and returns the reply.
// A nil reply means the conversation is paused or closed quietly.
func (e *Engine) Process(ctx context.Context, msg models.Message) *models.Reply {
	slog.Debug("Engine Process", "user", msg.UserID, "has_attachment", len(msg.Attachment) > 0)

	if len(msg.Attachment) > 0 {
		return e.handleReceipt(ctx, msg)
	}
	if isWebOrderPayload(msg.Body) {
		return e.handleWebOrder(msg)
	}

	snap, _ := e.snapshotOrCreate(msg.UserID)

	// A paying-shortly message wins over every phase handler while a
	// transfer is outstanding.
	if snap.PaymentPreconditionHolds() && e.intents.IsPayingShortly(msg.Body) {
		return e.handlePayingShortly(msg.UserID, snap)
	}

	if snap.Phase == models.PhasePausedAfterEscalation {
		slog.Debug("Engine paused, suppressing reply", "user", msg.UserID)
		return nil
	}

	if e.farewellApplies(snap, msg.Body) {
		return e.handleFarewell(msg.UserID)
	}

	switch snap.Phase {
	case models.PhaseAwaitingFallbackChoice:
		return e.handleFallbackChoice(msg.UserID, msg.Body)
	case models.PhaseAwaitingCallbackNumber:
		return e.handleCallbackNumber(msg.UserID, msg.Body)
	case models.PhaseAssistanceMenu:
		return e.handleMenuOption(ctx, msg)
	case models.PhaseClosed:
		return e.reopenClosed(msg.UserID)
	default:
		return e.handleGeneric(ctx, msg, snap)
	}
}

// snapshotOrCreate returns the user's state, creating the record on first
// contact.
func (e *Engine) snapshotOrCreate(user string) (ConversationState, bool) {
	snap, ok := e.store.Snapshot(user)
	if ok {
		return snap, false
	}
	e.store.Mutate(user, func(c *ConversationState) {})
	snap, _ = e.store.Snapshot(user)
	return snap, true
}

// handleWebOrder confirms an order-page payload and arms the payment ladder
// for transfer orders. The follow-up nudge, if armed, is cancelled.
func (e *Engine) handleWebOrder(msg models.Message) *models.Reply {
	order := parseWebOrder(msg.Body)
	slog.Info("Web order received", "user", msg.UserID, "amount", order.Amount, "method", order.Method)

	var staleFollowUp string
	duplicate := false
	armLadder := false
	e.store.Mutate(msg.UserID, func(c *ConversationState) {
		c.OrderCount++
		c.LastOrderTime = e.now()
		c.WebOrderReceived = true
		c.FarewellSent = false
		if order.Amount > 0 {
			c.OrderAmount = order.Amount
		}
		if order.Method != models.PaymentUnknown {
			c.PaymentMethod = order.Method
		}
		staleFollowUp = c.FollowUpTimerID
		c.FollowUpTimerID = ""

		if c.OrderCount >= 2 && !c.DuplicateWarningShown {
			c.DuplicateWarningShown = true
			duplicate = true
		}

		// Gate both the waiting flag and the ladder on the effective
		// post-mutation method, which may come from an earlier payload when
		// this one has no recognizable payment line.
		if c.PaymentMethod.RequiresReceipt() && !c.PaymentReceived {
			c.WaitingForPayment = true
			c.PaymentTimestamp = e.now()
			c.Phase = models.PhaseWaitingForPayment
			armLadder = true
		} else if c.Phase == models.PhaseStart || c.Phase == models.PhaseClosed {
			c.Phase = models.PhaseAssistanceMenu
		}
	})
	if staleFollowUp != "" {
		if err := e.timers.Cancel(staleFollowUp); err != nil {
			slog.Error("Follow-up timer cancel failed", "error", err, "user", msg.UserID)
		}
	}

	if armLadder {
		e.startPaymentLadder(msg.UserID)
	}

	reply := models.TextReply(msgWebOrderConfirmation)
	if duplicate {
		reply.Secondary = msgDuplicateOrder
	}
	return reply
}

// handlePayingShortly acknowledges the promise and switches to the
// long-wait ladder.
func (e *Engine) handlePayingShortly(user string, snap ConversationState) *models.Reply {
	e.store.MutateExisting(user, func(c *ConversationState) {
		c.UserNotifiedPayment = true
	})
	e.switchToLongWaitLadder(user)
	ack := paymentAckVariants[snap.PausedReminderCount%len(paymentAckVariants)]
	return models.TextReply(ack)
}

// farewellApplies suppresses goodbyes while something is still outstanding.
func (e *Engine) farewellApplies(snap ConversationState, body string) bool {
	if !isFarewell(body) {
		return false
	}
	if snap.PaymentPreconditionHolds() || snap.WaitingForHumanHelp {
		return false
	}
	switch snap.Phase {
	case models.PhaseAwaitingCallbackNumber, models.PhaseAwaitingFallbackChoice, models.PhaseClosed:
		return false
	}
	return true
}

func (e *Engine) handleFarewell(user string) *models.Reply {
	e.store.MutateExisting(user, func(c *ConversationState) {
		c.Phase = models.PhaseClosed
		c.FarewellSent = true
	})
	slog.Info("Conversation closed on farewell", "user", user)
	return models.TextReply(msgFarewell)
}

// reopenClosed restarts a conversation after a farewell.
func (e *Engine) reopenClosed(user string) *models.Reply {
	e.store.MutateExisting(user, func(c *ConversationState) {
		c.Phase = models.PhaseAssistanceMenu
		c.FarewellSent = false
	})
	return models.TextReply(msgAssistanceOptions)
}

// handleFallbackChoice resolves the three-way menu shown after the help
// ladder timed out.
func (e *Engine) handleFallbackChoice(user, body string) *models.Reply {
	switch normalizeOption(body) {
	case "1":
		e.store.MutateExisting(user, func(c *ConversationState) {
			c.Phase = models.PhasePausedAfterEscalation
			c.WaitingForHumanHelp = true
		})
		e.startHelpLadder(user)
		return models.TextReply(msgKeepWaiting)
	case "2":
		e.store.MutateExisting(user, func(c *ConversationState) {
			c.Phase = models.PhaseAssistanceMenu
			c.WaitingForHumanHelp = false
		})
		return models.TextReply(msgAutomatedOptionsIntro, msgAssistanceOptions)
	case "3":
		e.store.MutateExisting(user, func(c *ConversationState) {
			c.Phase = models.PhaseAwaitingCallbackNumber
			c.WaitingForHumanHelp = false
		})
		return models.TextReply(msgAskCallbackNumber)
	default:
		return models.TextReply(msgOptionHelp)
	}
}

// handleCallbackNumber validates the Colombian mobile number and records it
// for the operator.
func (e *Engine) handleCallbackNumber(user, body string) *models.Reply {
	number, ok := extractCallbackNumber(body)
	if !ok {
		return models.TextReply(msgInvalidCallbackNumber)
	}
	e.store.MutateExisting(user, func(c *ConversationState) {
		c.Phase = models.PhaseAssistanceMenu
	})
	slog.Info("Callback number captured", "user", user, "number", number)
	return models.TextReply(msgCallbackConfirmed)
}

// handleMenuOption resolves the numbered assistance menu.
func (e *Engine) handleMenuOption(ctx context.Context, msg models.Message) *models.Reply {
	user := msg.UserID
	switch normalizeOption(msg.Body) {
	case "1":
		e.store.MutateExisting(user, func(c *ConversationState) {
			c.Phase = models.PhasePausedAfterEscalation
			c.WaitingForHumanHelp = true
			c.HumanHelpTimestamp = e.now()
		})
		e.startHelpLadder(user)
		return models.TextReply(msgHumanHelpRequested)
	case "2":
		return models.TextReply(msgTroubleshootSending)
	case "3":
		reply := models.TextReply(msgMultipleOrdersTutorial)
		if e.tutorialVideoURL != "" {
			reply.Media = &models.Media{
				Type:    models.MediaTypeVideo,
				URL:     e.tutorialVideoURL,
				Caption: msgMultipleOrdersTutorial,
			}
			reply.Messages = nil
		}
		return reply
	case "4":
		return models.TextReply(msgDeliveryCoverage)
	case "5":
		return models.TextReply(msgGreeting)
	default:
		snap, _ := e.store.Snapshot(user)
		if generated, ok := e.replies.Generate(ctx, user, snap.Phase, msg.Body, menuHelpPrompt); ok {
			return models.PairReply(generated, msgAssistanceOptions)
		}
		return models.TextReply(msgOptionHelp)
	}
}

// handleGeneric covers first contact and anything no phase handler claimed.
func (e *Engine) handleGeneric(ctx context.Context, msg models.Message, snap ConversationState) *models.Reply {
	user := msg.UserID

	count := 0
	e.store.Mutate(user, func(c *ConversationState) {
		c.GenericMessageCount++
		count = c.GenericMessageCount
		if count >= 2 {
			c.Phase = models.PhaseAssistanceMenu
		}
	})

	switch {
	case count <= 1:
		e.armFollowUp(user)
		if generated, ok := e.replies.Generate(ctx, user, snap.Phase, msg.Body, greetingPrompt); ok {
			return models.PairReply(generated, msgGreeting)
		}
		return models.TextReply(msgGreeting)
	case count == 2:
		return models.TextReply(msgAssistanceOptions)
	default:
		return models.TextReply(msgExplanation)
	}
}

// armFollowUp schedules the "want to order?" nudge after the greeting.
func (e *Engine) armFollowUp(user string) {
	if e.plan.FollowUpDelay <= 0 {
		return
	}
	id, err := e.timers.ScheduleAfter(e.plan.FollowUpDelay, func() { e.followUpFired(user) })
	if err != nil {
		slog.Error("Follow-up schedule failed", "error", err, "user", user)
		return
	}
	if !e.store.MutateExisting(user, func(c *ConversationState) {
		c.FollowUpTimerID = id
	}) {
		if err := e.timers.Cancel(id); err != nil {
			slog.Error("Orphan follow-up cancel failed", "error", err, "user", user)
		}
	}
}

// followUpFired nudges users who greeted but never ordered.
func (e *Engine) followUpFired(user string) {
	fire := false
	e.store.MutateExisting(user, func(c *ConversationState) {
		c.FollowUpTimerID = ""
		if c.OrderCount > 0 || c.FollowUpPromptSent || c.Phase == models.PhasePausedAfterEscalation {
			return
		}
		c.FollowUpPromptSent = true
		fire = true
	})
	if !fire {
		slog.Debug("Follow-up no-op", "user", user)
		return
	}
	e.notify(user, msgFollowUpPrompt)
	slog.Info("Follow-up prompt sent", "user", user)
}

// handleReceipt runs an attachment through the verification pipeline. Any
// receipt stops the payment ladders; the verdict decides the reply.
func (e *Engine) handleReceipt(ctx context.Context, msg models.Message) *models.Reply {
	user := msg.UserID
	snap, _ := e.snapshotOrCreate(user)

	if snap.PaymentVerified {
		// Already settled; a stray image is just acknowledged.
		return models.TextReply(msgReceiptReceivedManual)
	}

	// Stop reminders before the (slow) pipeline runs. A receipt on a cash
	// order means the customer paid by transfer after all, so the stored
	// method switches off cash and the pipeline applies.
	var stale string
	method := snap.PaymentMethod
	e.store.MutateExisting(user, func(c *ConversationState) {
		c.PaymentReceived = true
		stale = clearPaymentHandle(c)
		if c.PaymentMethod == models.PaymentCash {
			c.PaymentMethod = models.PaymentUnknown
		}
		method = c.PaymentMethod
	})
	if stale != "" {
		if err := e.timers.Cancel(stale); err != nil {
			slog.Error("Payment timer cancel failed", "error", err, "user", user)
		}
	}
	if snap.PaymentMethod == models.PaymentCash {
		slog.Info("Cash order switched to transfer on receipt", "user", user)
	}

	if e.verifier == nil || snap.OrderAmount == 0 {
		e.markManualReview(user)
		return models.TextReply(msgReceiptReceivedManual)
	}

	result := e.verifier.Verify(ctx, msg.Attachment, snap.OrderAmount, method)

	// The pipeline awaited a collaborator; re-check that the conversation
	// still exists before acting on the verdict.
	if !e.store.Exists(user) {
		slog.Debug("Receipt verdict dropped, conversation cleared", "user", user)
		return nil
	}

	switch result.Outcome {
	case verify.OutcomeVerified:
		e.store.MutateExisting(user, func(c *ConversationState) {
			c.PaymentVerified = true
			c.PendingManualReview = false
			c.WaitingForPayment = false
			c.Phase = models.PhaseAssistanceMenu
		})
		reply := models.TextReply(msgPaymentVerified)
		if result.ProviderMismatch {
			reply.Messages = append(reply.Messages, msgProviderMismatchWarning)
		}
		return reply

	case verify.OutcomeNotFinalized:
		// PaymentReceived stays true so the ladder stays quiet; the next
		// attachment re-runs the pipeline from the top.
		return models.TextReply(msgTransferNotFinalized)

	case verify.OutcomeUnavailable:
		e.markManualReview(user)
		return models.TextReply(msgReceiptReceivedManual)

	default:
		e.markManualReview(user)
		slog.Info("Receipt sent to manual review", "user", user, "diagnostic", result.Diagnostic)
		return models.TextReply(msgReceiptReceivedManual)
	}
}

func (e *Engine) markManualReview(user string) {
	e.store.MutateExisting(user, func(c *ConversationState) {
		c.PendingManualReview = true
	})
}

// Unpause reactivates a conversation paused for human help, moving it to the
// fallback menu. Issued by the operator (a fromMe keyword in the chat).
func (e *Engine) Unpause(user string) error {
	if user == "" {
		return models.ErrEmptyUserID
	}
	var handles []string
	found := false
	paused := false
	e.store.MutateExisting(user, func(c *ConversationState) {
		found = true
		if c.Phase != models.PhasePausedAfterEscalation {
			return
		}
		paused = true
		c.Phase = models.PhaseAwaitingFallbackChoice
		c.WaitingForHumanHelp = false
		handles = c.HelpTimerIDs
		c.HelpTimerIDs = nil
	})
	if !found {
		return fmt.Errorf("unpause %s: %w", user, models.ErrConversationNotFound)
	}
	if !paused {
		return fmt.Errorf("unpause %s: %w", user, models.ErrConversationNotPaused)
	}
	e.cancelHelpHandles(user, handles)
	slog.Info("Conversation unpaused by operator", "user", user)
	return nil
}

// HandleOperator applies an operator command.
func (e *Engine) HandleOperator(cmd models.OperatorCommand) {
	switch cmd.Action {
	case models.OperatorUnpause:
		if err := e.Unpause(cmd.UserID); err != nil {
			slog.Error("Operator unpause failed", "error", err, "user", cmd.UserID)
		}
	default:
		slog.Debug("Unknown operator action ignored", "action", cmd.Action)
	}
}

// ClearAll is the daily reset: every conversation, pending dispatch, timer
// and cached reply is discarded.
func (e *Engine) ClearAll() {
	e.dispatcher.ClearAll()
	e.store.ClearAll()
	e.replies.Reset()
	slog.Info("Engine reset complete")
}

// Stop cancels all timers. The engine must not be used afterwards.
func (e *Engine) Stop() {
	e.timers.Stop()
	slog.Info("Engine stopped")
}

// deliver pushes a reply out through the notifier, in order.
func (e *Engine) deliver(user string, reply *models.Reply) {
	if reply.IsEmpty() {
		return
	}
	for _, body := range reply.Messages {
		e.notify(user, body)
	}
	if reply.Media != nil {
		if e.notifier == nil {
			slog.Debug("No notifier configured, dropping media reply", "user", user)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			if err := e.notifier.SendMedia(ctx, user, *reply.Media); err != nil {
				slog.Error("Media reply send failed", "error", err, "user", user)
			}
			cancel()
		}
	}
	if reply.Secondary != "" {
		e.notify(user, reply.Secondary)
	}
}

// Prompts for the contextual reply generator.
const (
	greetingPrompt = "Eres el asistente de WhatsApp de Cocina Casera, un restaurante " +
		"casero colombiano. Responde el saludo del cliente en una o dos frases " +
		"cálidas, tuteando, con la palabra 'veci', y recuérdale que puede pedir " +
		"en https://cocina-casera.web.app/"

	menuHelpPrompt = "Eres el asistente de WhatsApp de Cocina Casera. El cliente " +
		"escribió algo que no corresponde a las opciones del menú numérico. " +
		"Respóndele brevemente y pídele que elija una opción del 1 al 5."
)
