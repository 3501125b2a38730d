// Package genai wraps the OpenAI chat completion API for the contextual
// reply generator.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ClientInterface generates one short completion from a system and a user
// prompt.
type ClientInterface interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Opts holds optional configuration.
type Opts struct {
	APIKey      string
	Model       openai.ChatModel
	Temperature float64
	MaxTokens   int64
}

// Option configures the client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key explicitly instead of reading
// OPENAI_API_KEY.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the default model.
func WithModel(model openai.ChatModel) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTemperature overrides the default sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) { o.Temperature = t }
}

// WithMaxTokens overrides the completion length cap.
func WithMaxTokens(n int64) Option {
	return func(o *Opts) { o.MaxTokens = n }
}

// Client is an OpenAI-backed completion client.
type Client struct {
	client      openai.Client
	model       openai.ChatModel
	temperature float64
	maxTokens   int64
}

// NewClient creates a Client. The API key comes from WithAPIKey or the
// OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		Model:       openai.ChatModelGPT4oMini,
		Temperature: 0.65,
		MaxTokens:   160,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}

	slog.Info("GenAI client created", "model", cfg.Model)
	return &Client{
		client:      openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Complete generates one completion.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	slog.Debug("GenAI Complete", "system_len", len(system), "user_len", len(user))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(c.temperature),
		MaxTokens:   openai.Int(c.maxTokens),
	})
	if err != nil {
		slog.Error("GenAI completion failed", "error", err)
		return "", fmt.Errorf("failed to generate completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	slog.Debug("GenAI completion generated", "length", len(text))
	return text, nil
}
