package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NethermindEth/masp/ai"
	"github.com/NethermindEth/masp/core"
)

func newLLMAgent(t *testing.T, client ai.ClientFunc) *Agent {
	t.Helper()
	a, err := New(Config{Name: "oracle", Kind: core.KindLLM, Provider: "openai", APIKey: "sk-test"}, WithModelClient(client))
	require.NoError(t, err)
	return a
}

func feedWithPost() core.DecisionContext {
	return core.DecisionContext{
		RecentPosts: []core.FeedEntry{
			{ID: 3, Agent: "bob", Action: core.ActionPost, Content: "older"},
			{ID: 7, Agent: "carol", Action: core.ActionPost, Content: "latest"},
			{ID: 8, Agent: "bob", Action: core.ActionLike, Target: "carol"},
		},
	}
}

func TestLLM_NormalizesFencedReply(t *testing.T) {
	a := newLLMAgent(t, func(_ context.Context, req ai.Request) (string, error) {
		assert.Equal(t, ai.AutonomousSystemPrompt, req.System)
		assert.InDelta(t, 0.9, req.Temperature, 1e-6)
		assert.True(t, req.JSON)
		return "```json\n{\"action\":\"REPLY\",\"content\":\"  Agreed on the latest point.  \"}\n```", nil
	})

	d := a.DecideAction(t.Context(), feedWithPost())
	assert.Equal(t, core.ActionReply, d.Action)
	assert.Equal(t, "carol", d.Target)
	require.NotNil(t, d.TargetPostID)
	assert.Equal(t, int64(7), *d.TargetPostID)
	assert.Equal(t, "Agreed on the latest point.", d.Content)
	assert.Equal(t, defaultLLMReasoning, d.Reasoning)
}

func TestLLM_DefaultContent(t *testing.T) {
	a := newLLMAgent(t, func(context.Context, ai.Request) (string, error) {
		return `{"action":"POST","reasoning":"quiet"}`, nil
	})
	d := a.DecideAction(t.Context(), core.DecisionContext{})
	assert.Equal(t, defaultLLMContent, d.Content)
	assert.Equal(t, "quiet", d.Reasoning)
}

func TestLLM_Fallbacks(t *testing.T) {
	tests := []struct {
		name   string
		client ai.ClientFunc
		reason string
	}{
		{
			name: "call error",
			client: func(context.Context, ai.Request) (string, error) {
				return "", errors.New("429")
			},
			reason: "Fallback decision used: llm-agent call failed",
		},
		{
			name: "no json",
			client: func(context.Context, ai.Request) (string, error) {
				return "I think I will post.", nil
			},
			reason: "Fallback decision used: llm-agent call failed",
		},
		{
			name: "unknown action",
			client: func(context.Context, ai.Request) (string, error) {
				return `{"action":"SHOUT","content":"hey"}`, nil
			},
			reason: "Fallback decision used: llm-agent validation failed",
		},
		{
			name: "like without any post to target",
			client: func(context.Context, ai.Request) (string, error) {
				return `{"action":"LIKE"}`, nil
			},
			reason: "Fallback decision used: llm-agent validation failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newLLMAgent(t, tt.client).DecideAction(t.Context(), core.DecisionContext{})
			assert.Equal(t, core.ActionPost, d.Action)
			assert.Equal(t, tt.reason, d.Reasoning)
		})
	}
}

func TestLLM_ConfigErrors(t *testing.T) {
	_, err := New(Config{Name: "x", Kind: core.KindLLM, Provider: "cohere", APIKey: "k"})
	assert.ErrorIs(t, err, ai.ErrUnknownProvider)

	_, err = New(Config{Name: "x", Kind: core.KindLLM, Provider: "groq"})
	assert.ErrorIs(t, err, ai.ErrMissingAPIKey)

	_, err = New(Config{Name: "x", Kind: core.KindLLM, Provider: "custom", APIKey: "k", BaseURL: "example.com"})
	assert.ErrorIs(t, err, ai.ErrInvalidBaseURL)

	a, err := New(Config{Name: "x", Kind: core.KindLLM, Provider: "OpenRouter", APIKey: "k"})
	require.NoError(t, err)
	cfg := a.Config()
	assert.Equal(t, "openrouter", cfg.Provider)
	assert.Equal(t, "openai/gpt-4o-mini", cfg.Model)
}

func TestNew_CommonErrors(t *testing.T) {
	_, err := New(Config{Name: "  ", Kind: core.KindHosted, Personality: "Analyst", Strategy: "Dominance"})
	assert.ErrorIs(t, err, ErrEmptyName)

	_, err = New(Config{Name: "x", Kind: "robot"})
	assert.Error(t, err)

	_, err = New(Config{Name: "x", Kind: core.KindHosted, Personality: "Analyst"})
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}
