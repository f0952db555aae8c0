package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/JakeFAU/article-rewriter/internal/config"
)

const defaultGroqURL = "https://api.groq.com/openai/v1"

// Groq calls Groq's OpenAI-compatible chat completions endpoint.
type Groq struct {
	client      *openai.Client
	models      []string
	temperature float32
	maxTokens   int
}

// NewGroq builds the Groq provider.
func NewGroq(cfg config.ProviderConfig, temperature float64, maxTokens int) *Groq {
	transportCfg := openai.DefaultConfig(cfg.APIKey)
	transportCfg.BaseURL = defaultGroqURL
	if cfg.BaseURL != "" {
		transportCfg.BaseURL = cfg.BaseURL
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	transportCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Groq{
		client:      openai.NewClientWithConfig(transportCfg),
		models:      append([]string(nil), cfg.Models...),
		temperature: float32(temperature),
		maxTokens:   maxTokens,
	}
}

// Name implements Provider.
func (g *Groq) Name() string { return "groq" }

// Models implements Provider.
func (g *Groq) Models() []string { return g.models }

// Generate implements Provider.
func (g *Groq) Generate(ctx context.Context, model, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("groq chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("groq returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
