package messaging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/cocinacasera/casabot/internal/models"
	"github.com/cocinacasera/casabot/internal/whatsapp"
)

// DefaultOperatorKeyword is the fromMe message that marks a paused
// conversation as attended by a person.
const DefaultOperatorKeyword = "atendido"

// WhatsAppService implements Service using the Whatsmeow-based whatsapp client.
type WhatsAppService struct {
	client          whatsapp.Sender
	waClient        *whatsapp.Client // access to underlying client for event handling
	receipts        chan models.Receipt
	responses       chan models.Response
	operator        chan models.OperatorCommand
	done            chan struct{}
	operatorKeyword string
}

// WhatsAppServiceOption configures a WhatsAppService.
type WhatsAppServiceOption func(*WhatsAppService)

// WithOperatorKeyword overrides the fromMe keyword that unpauses a chat.
func WithOperatorKeyword(keyword string) WhatsAppServiceOption {
	return func(s *WhatsAppService) { s.operatorKeyword = keyword }
}

// NewWhatsAppService creates a new WhatsAppService wrapping the given Sender.
func NewWhatsAppService(client whatsapp.Sender, opts ...WhatsAppServiceOption) *WhatsAppService {
	service := &WhatsAppService{
		client:          client,
		receipts:        make(chan models.Receipt, DefaultChannelBufferSize),
		responses:       make(chan models.Response, DefaultChannelBufferSize),
		operator:        make(chan models.OperatorCommand, DefaultChannelBufferSize),
		done:            make(chan struct{}),
		operatorKeyword: DefaultOperatorKeyword,
	}
	for _, opt := range opts {
		opt(service)
	}

	// If the client is a full Client (not just an interface), store it for event handling
	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
		slog.Debug("WhatsAppService created with full client for event handling")
	} else {
		slog.Debug("WhatsAppService created with interface client (likely mock)")
	}

	return service
}

// ValidateAndCanonicalizeRecipient strips a recipient down to digits.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	canonical, err := canonicalizePhone(recipient)
	if err != nil {
		return "", err
	}
	if canonical != recipient {
		slog.Debug("WhatsAppService canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// Start begins background processing (e.g., event polling).
func (s *WhatsAppService) Start(ctx context.Context) error {
	slog.Debug("WhatsAppService Start invoked")

	if s.waClient != nil {
		go s.handleEvents(ctx)
		slog.Debug("WhatsAppService event handler started")
	} else {
		slog.Debug("WhatsAppService no full client available, skipping event handling (likely mock)")
	}

	return nil
}

// Stop stops background processing.
func (s *WhatsAppService) Stop() error {
	slog.Info("WhatsAppService Stop invoked")
	close(s.done)
	close(s.receipts)
	close(s.responses)
	close(s.operator)
	if s.waClient != nil {
		s.waClient.Disconnect()
	}
	slog.Info("WhatsAppService stopped and channels closed")
	return nil
}

// SendMessage sends a text message and emits a sent receipt.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	slog.Debug("WhatsAppService SendMessage invoked", "to", to, "body_length", len(body))
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("WhatsAppService SendMessage validation error", "error", err, "to", to)
		return err
	}

	if err := s.client.SendMessage(ctx, canonical, body); err != nil {
		slog.Error("WhatsAppService SendMessage error", "error", err, "to", canonical)
		return err
	}
	s.emitReceipt(models.Receipt{To: canonical, Status: models.StatusTypeSent, Time: time.Now().Unix()})
	slog.Info("WhatsAppService message sent and receipt emitted", "to", canonical)
	return nil
}

// SendMedia sends an image or video with a caption. URL media is fetched,
// Path media read from disk.
func (s *WhatsAppService) SendMedia(ctx context.Context, to string, media models.Media) error {
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}

	data, err := loadMediaBytes(ctx, media)
	if err != nil {
		slog.Error("WhatsAppService media load failed", "error", err, "to", canonical)
		return err
	}

	switch media.Type {
	case models.MediaTypeVideo:
		err = s.client.SendVideo(ctx, canonical, data, media.Caption)
	default:
		err = s.client.SendImage(ctx, canonical, data, media.Caption)
	}
	if err != nil {
		slog.Error("WhatsAppService SendMedia error", "error", err, "to", canonical, "type", media.Type)
		return err
	}
	s.emitReceipt(models.Receipt{To: canonical, Status: models.StatusTypeSent, Time: time.Now().Unix()})
	slog.Info("WhatsAppService media sent", "to", canonical, "type", media.Type)
	return nil
}

// Receipts returns a channel of receipt events.
func (s *WhatsAppService) Receipts() <-chan models.Receipt {
	return s.receipts
}

// Responses returns a channel of incoming customer messages.
func (s *WhatsAppService) Responses() <-chan models.Response {
	return s.responses
}

// Operator returns a channel of operator commands.
func (s *WhatsAppService) Operator() <-chan models.OperatorCommand {
	return s.operator
}

// handleEvents processes WhatsApp events and feeds them into the appropriate channels
func (s *WhatsAppService) handleEvents(ctx context.Context) {
	slog.Debug("WhatsAppService handleEvents starting")

	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Error("WhatsAppService handleEvents: no client available")
		return
	}

	s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		switch v := evt.(type) {
		case *events.Message:
			s.handleIncomingMessage(ctx, v)
		case *events.Receipt:
			s.handleMessageReceipt(v)
		default:
			slog.Debug("WhatsAppService ignoring event type", "type", fmt.Sprintf("%T", v))
		}
	})

	slog.Debug("WhatsAppService event handler registered")

	<-ctx.Done()
	slog.Debug("WhatsAppService handleEvents stopping due to context cancellation")
}

// handleIncomingMessage routes customer text and receipt images into the
// responses channel, and fromMe operator keywords into the operator channel.
func (s *WhatsAppService) handleIncomingMessage(ctx context.Context, evt *events.Message) {
	if evt.Message == nil {
		return
	}

	var messageText string
	if evt.Message.Conversation != nil {
		messageText = *evt.Message.Conversation
	} else if evt.Message.ExtendedTextMessage != nil && evt.Message.ExtendedTextMessage.Text != nil {
		messageText = *evt.Message.ExtendedTextMessage.Text
	}

	// The operator answering from the business phone shows up as a fromMe
	// message in the customer's chat.
	if evt.Info.IsFromMe {
		if strings.EqualFold(strings.TrimSpace(messageText), s.operatorKeyword) {
			cmd := models.OperatorCommand{
				Action: models.OperatorUnpause,
				UserID: evt.Info.Chat.User,
				Time:   evt.Info.Timestamp.Unix(),
			}
			select {
			case s.operator <- cmd:
				slog.Info("WhatsAppService operator command forwarded", "user", cmd.UserID)
			case <-time.After(DefaultChannelTimeout):
				slog.Warn("WhatsAppService operator channel blocked, dropping command", "user", cmd.UserID)
			}
		}
		return
	}

	var attachment []byte
	if evt.Message.GetImageMessage() != nil {
		data, err := s.waClient.DownloadImage(ctx, evt)
		if err != nil {
			slog.Error("WhatsAppService image download failed", "error", err, "from", evt.Info.Sender.String())
		} else {
			attachment = data
			if caption := evt.Message.GetImageMessage().GetCaption(); messageText == "" && caption != "" {
				messageText = caption
			}
		}
	}

	if messageText == "" && attachment == nil {
		slog.Debug("WhatsAppService ignoring unsupported message", "from", evt.Info.Sender.String())
		return
	}

	response := models.Response{
		From:       evt.Info.Sender.User,
		Body:       messageText,
		Attachment: attachment,
		Time:       evt.Info.Timestamp.Unix(),
	}

	slog.Debug("WhatsAppService processing incoming message", "from", response.From,
		"body_length", len(response.Body), "has_attachment", attachment != nil)

	select {
	case s.responses <- response:
		slog.Info("WhatsAppService incoming message forwarded", "from", response.From)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService responses channel blocked, dropping message", "from", response.From, "timeout", DefaultChannelTimeout)
	}
}

// handleMessageReceipt processes delivery and read receipts
func (s *WhatsAppService) handleMessageReceipt(evt *events.Receipt) {
	var status models.StatusType
	switch evt.Type {
	case events.ReceiptTypeDelivered:
		status = models.StatusTypeDelivered
	case events.ReceiptTypeRead:
		status = models.StatusTypeRead
	case events.ReceiptTypeReadSelf:
		return
	default:
		slog.Debug("WhatsAppService ignoring receipt type", "type", evt.Type)
		return
	}

	receipt := models.Receipt{
		To:     evt.MessageSource.Sender.User,
		Status: status,
		Time:   evt.Timestamp.Unix(),
	}

	select {
	case s.receipts <- receipt:
		slog.Debug("WhatsAppService receipt forwarded", "to", receipt.To, "status", receipt.Status)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService receipts channel blocked, dropping receipt", "to", receipt.To)
	}
}

// emitReceipt pushes a receipt without blocking the send path.
func (s *WhatsAppService) emitReceipt(receipt models.Receipt) {
	select {
	case s.receipts <- receipt:
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService receipts channel blocked, dropping receipt", "to", receipt.To)
	}
}

// loadMediaBytes resolves a Media reference to raw bytes.
func loadMediaBytes(ctx context.Context, media models.Media) ([]byte, error) {
	if media.URL != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, media.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build media request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch media: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("media fetch returned status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}
	if media.Path != "" {
		data, err := os.ReadFile(media.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read media file: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("media has neither URL nor path")
}
