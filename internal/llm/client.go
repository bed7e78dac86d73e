// Package llm provides the completion provider used to extract
// structured transactions from free-form text.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// DefaultTimeout bounds one completion request.
const DefaultTimeout = 60 * time.Second

// Client issues completion requests against the Gemini API.
type Client struct {
	client      *genai.Client
	model       string
	temperature float32
	timeout     time.Duration
	log         zerolog.Logger
}

// NewClient creates a completion client. Credentials come from the
// environment the way the genai SDK expects (GEMINI_API_KEY).
func NewClient(ctx context.Context, model string, temperature float64, log zerolog.Logger) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("llm: create genai client: %w", err)
	}
	return &Client{
		client:      client,
		model:       model,
		temperature: float32(temperature),
		timeout:     DefaultTimeout,
		log:         log,
	}, nil
}

// Complete sends one synchronous completion request with the given
// system prompt and user text, and returns the raw model output.
func (c *Client) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.log.Debug().Str("model", c.model).Int("prompt_len", len(systemPrompt)).Msg("sending completion request")

	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(c.temperature),
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(userText), config)
	if err != nil {
		return "", fmt.Errorf("llm: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("llm: empty response from model")
	}
	return text, nil
}
