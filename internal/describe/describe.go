// Package describe generates project descriptions with Claude.
//
// The feature is optional: without an API key no client is built and
// the API surface reports the generator as unavailable. Generation is
// advisory text for a form field, so failures here never block project
// creation.
package describe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	// DefaultModel is used when the config does not name one.
	DefaultModel = "claude-3-5-haiku-latest"

	maxRetries     = 3
	initialBackoff = 1 * time.Second
)

// ErrAPIKeyRequired is returned when no API key is configured.
var ErrAPIKeyRequired = errors.New("API key required")

// Generator produces a project description from a project name.
type Generator interface {
	ProjectDescription(ctx context.Context, name string) (string, error)
}

const promptTemplate = `Write a short description (2-3 sentences) for a software project tracked in a bug tracker.
Project name: {{.Name}}
Respond with the description only, no preamble.`

// Client wraps the Anthropic API for description generation.
type Client struct {
	client         anthropic.Client
	model          anthropic.Model
	promptTmpl     *template.Template
	maxRetries     int
	initialBackoff time.Duration
}

var _ Generator = (*Client)(nil)

// New creates a description client. Env var ANTHROPIC_API_KEY takes
// precedence over the configured apiKey; an empty model uses
// DefaultModel.
func New(apiKey, model string) (*Client, error) {
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or ai.api-key", ErrAPIKeyRequired)
	}
	if model == "" {
		model = DefaultModel
	}

	tmpl, err := template.New("describe").Parse(promptTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}

	return &Client{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:          anthropic.Model(model),
		promptTmpl:     tmpl,
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
	}, nil
}

// ProjectDescription implements Generator.
func (c *Client) ProjectDescription(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("project name is required")
	}
	prompt, err := c.renderPrompt(name)
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return c.callWithRetry(ctx, prompt)
}

func (c *Client) renderPrompt(name string) (string, error) {
	var sb strings.Builder
	if err := c.promptTmpl.Execute(&sb, struct{ Name string }{Name: name}); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (c *Client) callWithRetry(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 512,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.initialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		message, err := c.client.Messages.New(ctx, params)
		if err == nil {
			if len(message.Content) > 0 {
				content := message.Content[0]
				if content.Type == "text" {
					return strings.TrimSpace(content.Text), nil
				}
				return "", fmt.Errorf("unexpected response format: not a text block (type=%s)", content.Type)
			}
			return "", fmt.Errorf("unexpected response format: no content blocks")
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("failed after %d attempts: %w", c.maxRetries+1, lastErr)
}
