package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/cocinacasera/casabot/internal/models"
)

// MessageEngine is the piece of the conversation engine the pump feeds.
type MessageEngine interface {
	HandleIncoming(msg models.Message)
	HandleOperator(cmd models.OperatorCommand)
}

// Pump moves transport events into the engine: customer responses become
// inbound messages, operator keywords become commands, receipts are logged.
type Pump struct {
	service Service
	engine  MessageEngine
}

// NewPump creates a Pump from a transport to an engine.
func NewPump(service Service, engine MessageEngine) *Pump {
	return &Pump{service: service, engine: engine}
}

// Start runs the pump until the context is cancelled or the transport
// channels close.
func (p *Pump) Start(ctx context.Context) {
	go p.run(ctx)
	slog.Info("Message pump started")
}

func (p *Pump) run(ctx context.Context) {
	responses := p.service.Responses()
	operator := p.service.Operator()
	receipts := p.service.Receipts()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("Message pump stopping, context cancelled")
			return
		case resp, ok := <-responses:
			if !ok {
				slog.Debug("Message pump stopping, responses channel closed")
				return
			}
			p.engine.HandleIncoming(models.Message{
				UserID:     resp.From,
				Body:       resp.Body,
				Attachment: resp.Attachment,
				ReceivedAt: time.Unix(resp.Time, 0),
			})
		case cmd, ok := <-operator:
			if !ok {
				slog.Debug("Message pump stopping, operator channel closed")
				return
			}
			p.engine.HandleOperator(cmd)
		case receipt, ok := <-receipts:
			if !ok {
				slog.Debug("Message pump stopping, receipts channel closed")
				return
			}
			slog.Debug("Delivery receipt", "to", receipt.To, "status", receipt.Status)
		}
	}
}
