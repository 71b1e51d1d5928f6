// Package ai wraps the Anthropic messages API as a plain text-completion
// call. The client is optional end to end: construction without a
// credential returns nil, and the parser treats a nil client as a
// permanently degraded primary path.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/meatwise/search-service/internal/config"
	"github.com/meatwise/search-service/internal/observability"
	"github.com/meatwise/search-service/internal/resilience"
)

type Client struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	timeout   time.Duration
	cb        *gobreaker.CircuitBreaker
	logger    *zap.Logger
}

// NewClient returns nil (not an error) when no API key is configured.
func NewClient(cfg config.AIConfig, logger *zap.Logger) *Client {
	if !cfg.Enabled() {
		logger.Info("no completion credential configured, query parsing uses rules only")
		return nil
	}

	return &Client{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     anthropic.Model(cfg.Model),
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.RequestTimeout,
		cb:        resilience.NewCircuitBreaker("completion-service", cfg.CircuitBreaker, logger),
		logger:    logger,
	}
}

// Complete sends the prompt and returns the concatenated text blocks of
// the reply. Calls go through the circuit breaker; an open breaker
// returns an error immediately without touching the network.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := observability.StartSpan(ctx, "ai.complete")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	result, err := c.cb.Execute(func() (any, error) {
		msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     c.model,
			MaxTokens: c.maxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("messages create: %w", err)
		}

		var sb strings.Builder
		for _, block := range msg.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text)
			}
		}
		return sb.String(), nil
	})

	duration := time.Since(start)
	if err != nil {
		observability.CompletionRequestDuration.WithLabelValues("error").Observe(duration.Seconds())
		return "", err
	}
	observability.CompletionRequestDuration.WithLabelValues("success").Observe(duration.Seconds())

	return result.(string), nil
}
