// Package ocr wraps Google Cloud Vision text detection behind the small
// interface the verification pipeline needs.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	vision "cloud.google.com/go/vision/apiv1"
	"google.golang.org/api/option"

	"github.com/cocinacasera/casabot/internal/verify"
)

// Client extracts text from receipt images using the Vision API.
type Client struct {
	annotator *vision.ImageAnnotatorClient
}

// Opts holds optional configuration for the Vision client.
type Opts struct {
	CredentialsFile string
}

// Option configures the client.
type Option func(*Opts)

// WithCredentialsFile points the client at a service-account key file.
// Without it the client uses application default credentials.
func WithCredentialsFile(path string) Option {
	return func(o *Opts) { o.CredentialsFile = path }
}

// NewClient creates a Vision-backed OCR client.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	annotator, err := vision.NewImageAnnotatorClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	slog.Info("OCR client created", "credentials_file", cfg.CredentialsFile != "")
	return &Client{annotator: annotator}, nil
}

// ExtractText runs text detection and returns the full recognized text.
// A nil Client reports verify.ErrUnavailable so callers fall back to
// manual review.
func (c *Client) ExtractText(ctx context.Context, image []byte) (string, error) {
	if c == nil || c.annotator == nil {
		return "", verify.ErrUnavailable
	}
	if len(image) == 0 {
		return "", fmt.Errorf("empty image")
	}

	img, err := vision.NewImageFromReader(bytes.NewReader(image))
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	annotations, err := c.annotator.DetectTexts(ctx, img, nil, 10)
	if err != nil {
		return "", fmt.Errorf("text detection failed: %w", err)
	}
	if len(annotations) == 0 {
		slog.Debug("OCR found no text")
		return "", nil
	}

	// The first annotation is the full-page text block.
	text := annotations[0].GetDescription()
	slog.Debug("OCR extracted text", "length", len(text))
	return text, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c == nil || c.annotator == nil {
		return nil
	}
	return c.annotator.Close()
}
