// Package compose drafts proactive openers with Claude.
package compose

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/tinyland-inc/dmclaw/pkg/config"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultModel     = "claude-sonnet-4.6"
	defaultMaxTokens = 256
)

var ErrEmptyDraft = errors.New("composer returned no text")

const systemPrompt = `You write the first message of a private chat a friendly bot starts with someone it already knows.
Write one short, casual sentence addressed to the person by nickname.
Reply with the message text only: no quotes, no preamble.`

type Composer struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	baseURL   string
}

func New(cfg config.ComposeConfig) *Composer {
	baseURL := normalizeBaseURL(cfg.APIBase)
	client := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
	)
	c := NewWithClient(&client, cfg.Model, cfg.MaxTokens)
	c.baseURL = baseURL
	return c
}

func NewWithClient(client *anthropic.Client, model string, maxTokens int) *Composer {
	if model == "" {
		model = defaultModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Composer{
		client:    client,
		model:     model,
		maxTokens: int64(maxTokens),
		baseURL:   defaultBaseURL,
	}
}

func (c *Composer) Model() string   { return c.model }
func (c *Composer) BaseURL() string { return c.baseURL }

// Draft asks for a one-line opener for nickname. reason is what prompted the
// chat and may be empty.
func (c *Composer) Draft(ctx context.Context, nickname, reason string) (string, error) {
	resp, err := c.client.Messages.New(ctx, c.params(nickname, reason))
	if err != nil {
		return "", fmt.Errorf("claude API call: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	text := strings.Trim(strings.TrimSpace(sb.String()), `"`)
	if text == "" {
		return "", ErrEmptyDraft
	}
	return text, nil
}

func (c *Composer) params(nickname, reason string) anthropic.MessageNewParams {
	prompt := fmt.Sprintf("Nickname: %s", nickname)
	if reason != "" {
		prompt += fmt.Sprintf("\nWhy you are reaching out: %s", reason)
	}
	return anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
}

func normalizeBaseURL(apiBase string) string {
	base := strings.TrimRight(strings.TrimSpace(apiBase), "/")
	base = strings.TrimSuffix(base, "/v1")
	if base == "" {
		return defaultBaseURL
	}
	return base
}
