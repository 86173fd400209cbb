package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFence(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `[1,2,3]`, `[1,2,3]`},
		{"plain fence", "```\n[1,2,3]\n```", `[1,2,3]`},
		{"json fence", "```json\n[1,2,3]\n```", `[1,2,3]`},
		{"surrounding whitespace", "  \n```json\n{\"a\":1}\n```\n  ", `{"a":1}`},
		{"empty", "", ""},
		{"fence only", "```json\n```", ""},
		{"inner fences survive", "```json\n[\"```go\"]\n```", "[\"```go\"]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StripFence(tc.in))
		})
	}
}

func TestGatewayErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &GatewayError{Engine: "openai", Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "openai")
	assert.Contains(t, err.Error(), "connection refused")
}

type fixedGateway struct {
	reply string
}

func (g fixedGateway) Complete(ctx context.Context, systemPrompt, userContent string, timeout time.Duration) (string, error) {
	return g.reply, nil
}

func TestEngineRouterRoute(t *testing.T) {
	r := NewEngineRouter(map[string]Gateway{
		"openai":    fixedGateway{reply: "a"},
		"anthropic": fixedGateway{reply: "b"},
	}, "openai")

	backend, err := r.Route("anthropic")
	require.NoError(t, err)
	got, _ := backend.Complete(context.Background(), "", "", time.Second)
	assert.Equal(t, "b", got)

	// unknown engine falls back to the default
	backend, err = r.Route("mistral")
	require.NoError(t, err)
	got, _ = backend.Complete(context.Background(), "", "", time.Second)
	assert.Equal(t, "a", got)

	assert.True(t, r.Has("openai"))
	assert.False(t, r.Has("mistral"))
	assert.ElementsMatch(t, []string{"openai", "anthropic"}, r.Engines())
}

func TestEngineRouterNoBackends(t *testing.T) {
	r := NewEngineRouter(map[string]Gateway{}, "openai")
	_, err := r.Route("openai")
	assert.Error(t, err)

	_, err = r.Complete(context.Background(), "s", "u", time.Second)
	assert.Error(t, err)
}

func TestEngineRouterCompleteUsesDefault(t *testing.T) {
	r := NewEngineRouter(map[string]Gateway{
		"openai":    fixedGateway{reply: "default-reply"},
		"anthropic": fixedGateway{reply: "other"},
	}, "openai")

	got, err := r.Complete(context.Background(), "s", "u", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "default-reply", got)
}
