// Package llm wraps the Gemini API behind a single synchronous generation
// call. Everything above this package treats generation as "returns text
// or an error, eventually"; retry and backoff for rate limits live here.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"mafia/config"
)

// GenerateFunc is the contract the game core has with the transport:
// a prompt in, text or an error out. Tests substitute deterministic stubs.
type GenerateFunc func(ctx context.Context, prompt string) (string, error)

const (
	maxRetries      = 3
	baseRetryDelay  = 2 * time.Second
	temperature     = 0.75
	maxOutputTokens = 512
)

// Client is a thin wrapper around the Gemini client.
type Client struct {
	client *genai.Client
	model  string
	logger *logrus.Logger
}

// NewClient creates a Gemini-backed client using the configured API key.
func NewClient(ctx context.Context, logger *logrus.Logger) (*Client, error) {
	if logger == nil {
		logger = logrus.New()
	}
	apiKey := config.GetGeminiAPIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	return &Client{
		client: client,
		model:  config.GetGeminiModel(),
		logger: logger,
	}, nil
}

// Generate runs a single text completion with retry on rate limits.
// Non-rate-limit errors are returned immediately; callers decide whether
// the failure is soft.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	genConfig := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](temperature),
		MaxOutputTokens: maxOutputTokens,
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, genConfig)
		if err == nil {
			return strings.TrimSpace(resp.Text()), nil
		}
		lastErr = err

		if !isRateLimit(err) {
			return "", err
		}
		if attempt == maxRetries-1 {
			break
		}

		wait := baseRetryDelay * time.Duration(1<<attempt)
		c.logger.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"wait":    wait,
		}).Warn("rate limit hit, backing off")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return "", fmt.Errorf("rate limit exceeded after %d retries: %w", maxRetries, lastErr)
}

func isRateLimit(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate")
}
