package llm

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/reviewloop/reviewloop/internal/metrics"
)

// OpenAIGateway produces completions from the OpenAI chat completions API.
type OpenAIGateway struct {
	client    openai.Client
	model     string
	maxTokens int
}

// NewOpenAIGateway creates an OpenAI-backed gateway.
func NewOpenAIGateway(apiKey, model string, maxTokens int) *OpenAIGateway {
	return &OpenAIGateway{
		client:    openai.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Complete sends one chat completion request bounded by timeout.
func (g *OpenAIGateway) Complete(ctx context.Context, systemPrompt, userContent string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(g.model),
		MaxCompletionTokens: openai.Int(int64(g.maxTokens)),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userContent),
		},
	})
	if err != nil {
		metrics.LLMErrors.WithLabelValues("openai", "request").Inc()
		return "", &GatewayError{Engine: "openai", Err: err}
	}
	metrics.LLMCallDuration.WithLabelValues("openai").Observe(time.Since(start).Seconds())

	if len(resp.Choices) == 0 {
		metrics.LLMErrors.WithLabelValues("openai", "empty").Inc()
		return "", &GatewayError{Engine: "openai", Err: errors.New("no choices in response")}
	}
	return resp.Choices[0].Message.Content, nil
}
