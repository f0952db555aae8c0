package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/JakeFAU/article-rewriter/internal/config"
)

// Anthropic calls the Messages API.
type Anthropic struct {
	client      anthropic.Client
	models      []string
	temperature float64
	maxTokens   int64
}

// NewAnthropic builds the Anthropic provider. Retries are disabled; the cascade moves on
// to the next model instead.
func NewAnthropic(cfg config.ProviderConfig, temperature float64, maxTokens int) *Anthropic {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Anthropic{
		client:      anthropic.NewClient(opts...),
		models:      append([]string(nil), cfg.Models...),
		temperature: temperature,
		maxTokens:   int64(maxTokens),
	}
}

// Name implements Provider.
func (a *Anthropic) Name() string { return "anthropic" }

// Models implements Provider.
func (a *Anthropic) Models() []string { return a.models }

// Generate implements Provider.
func (a *Anthropic) Generate(ctx context.Context, model, prompt string) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   a.maxTokens,
		Temperature: anthropic.Float(a.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}
