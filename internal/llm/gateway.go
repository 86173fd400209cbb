package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Gateway is the chat-completion contract the pipelines depend on. The core
// never talks to a provider directly, only through this interface.
type Gateway interface {
	// Complete sends a system prompt plus user content and returns the raw
	// response text. The call is bounded by timeout.
	Complete(ctx context.Context, systemPrompt, userContent string, timeout time.Duration) (string, error)
}

// GatewayError reports a transport or provider failure on a completion call.
type GatewayError struct {
	Engine string
	Err    error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("llm gateway (%s): %v", e.Engine, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// StripFence removes at most one Markdown code-fence wrapper (with or without
// a json language tag) from a completion response, then trims whitespace.
func StripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
