package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/JakeFAU/article-rewriter/internal/config"
)

const defaultGeminiURL = "https://generativelanguage.googleapis.com/v1beta/models"

// Gemini calls the Generative Language REST API.
type Gemini struct {
	client  *resty.Client
	apiKey  string
	baseURL string
	models  []string
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewGemini builds the Gemini provider.
func NewGemini(cfg config.ProviderConfig) *Gemini {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultGeminiURL
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Gemini{
		client:  resty.New().SetTimeout(timeout),
		apiKey:  cfg.APIKey,
		baseURL: base,
		models:  append([]string(nil), cfg.Models...),
	}
}

// Name implements Provider.
func (g *Gemini) Name() string { return "gemini" }

// Models implements Provider.
func (g *Gemini) Models() []string { return g.models }

// Generate implements Provider.
func (g *Gemini) Generate(ctx context.Context, model, prompt string) (string, error) {
	url := fmt.Sprintf("%s/%s:generateContent", g.baseURL, model)

	req := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{{Text: prompt}},
		}},
	}

	var out geminiResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("key", g.apiKey).
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post(url)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("gemini api error %d: %s", out.Error.Code, out.Error.Message)
	}
	if resp.IsError() {
		return "", fmt.Errorf("gemini api status %d", resp.StatusCode())
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var b strings.Builder
	for _, part := range out.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String(), nil
}
