package llm

import (
	"context"
	"errors"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/reviewloop/reviewloop/internal/metrics"
)

// AnthropicGateway produces completions from the Anthropic Messages API.
type AnthropicGateway struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropicGateway creates an Anthropic-backed gateway.
func NewAnthropicGateway(apiKey, model string, maxTokens int) *AnthropicGateway {
	return &AnthropicGateway{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Complete sends one messages request bounded by timeout.
func (g *AnthropicGateway) Complete(ctx context.Context, systemPrompt, userContent string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	message, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: int64(g.maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userContent)),
		},
	})
	if err != nil {
		metrics.LLMErrors.WithLabelValues("anthropic", "request").Inc()
		return "", &GatewayError{Engine: "anthropic", Err: err}
	}
	metrics.LLMCallDuration.WithLabelValues("anthropic").Observe(time.Since(start).Seconds())

	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	metrics.LLMErrors.WithLabelValues("anthropic", "empty").Inc()
	return "", &GatewayError{Engine: "anthropic", Err: errors.New("no text content in response")}
}
