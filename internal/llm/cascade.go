// Package llm generates article HTML by walking an ordered list of providers and models
// until one returns non-empty text.
package llm

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/article-rewriter/internal/article"
	"github.com/JakeFAU/article-rewriter/internal/config"
	"github.com/JakeFAU/article-rewriter/internal/logging"
	"github.com/JakeFAU/article-rewriter/internal/metrics"
)

var errEmptyResponse = errors.New("empty response")

// Provider calls one LLM vendor.
type Provider interface {
	Name() string
	Models() []string
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Cascade implements article.Generator over an ordered provider list.
type Cascade struct {
	providers []Provider
	logger    *zap.Logger
}

// NewCascade tries providers in the given order.
func NewCascade(logger *zap.Logger, providers ...Provider) *Cascade {
	return &Cascade{providers: providers, logger: logging.Named(logger, "llm")}
}

// Build creates a Cascade from config. Providers without an API key or without models are
// left out.
func Build(cfg config.LLMConfig, logger *zap.Logger) *Cascade {
	log := logging.Named(logger, "llm")
	var providers []Provider
	for _, name := range cfg.Order {
		var (
			p   Provider
			pc  config.ProviderConfig
			key = strings.ToLower(strings.TrimSpace(name))
		)
		switch key {
		case "gemini":
			pc = cfg.Gemini
		case "groq":
			pc = cfg.Groq
		case "anthropic":
			pc = cfg.Anthropic
		default:
			log.Warn("unknown provider in llm.order", zap.String("provider", name))
			continue
		}
		if pc.APIKey == "" || len(pc.Models) == 0 {
			log.Info("provider disabled", zap.String("provider", key))
			continue
		}
		switch key {
		case "gemini":
			p = NewGemini(pc)
		case "groq":
			p = NewGroq(pc, cfg.Temperature, cfg.MaxTokens)
		case "anthropic":
			p = NewAnthropic(pc, cfg.Temperature, cfg.MaxTokens)
		}
		providers = append(providers, p)
	}
	return NewCascade(logger, providers...)
}

// Enabled reports whether at least one provider is configured.
func (c *Cascade) Enabled() bool {
	return len(c.providers) > 0
}

// Generate returns the first non-empty completion, or article.ErrNoContent.
func (c *Cascade) Generate(ctx context.Context, prompt string) (string, error) {
	for _, p := range c.providers {
		for _, model := range p.Models() {
			if ctx.Err() != nil {
				return "", article.ErrNoContent
			}
			text, err := p.Generate(ctx, model, prompt)
			if err == nil && strings.TrimSpace(text) == "" {
				err = errEmptyResponse
			}
			if err != nil {
				c.logger.Warn("generation failed",
					zap.String("provider", p.Name()),
					zap.String("model", model),
					zap.String("error", firstLine(err.Error())),
				)
				metrics.ObserveGeneration(p.Name(), model, "error")
				continue
			}
			c.logger.Info("generation succeeded", zap.String("provider", p.Name()), zap.String("model", model))
			metrics.ObserveGeneration(p.Name(), model, "ok")
			return text, nil
		}
	}
	return "", article.ErrNoContent
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
