package agent

import (
	"context"
	"strings"
	"time"

	"github.com/NethermindEth/masp/ai"
	"github.com/NethermindEth/masp/core"
	"github.com/NethermindEth/masp/logger"
	"github.com/NethermindEth/masp/protocol"
)

const (
	defaultLLMReasoning = "Autonomous LLM decision"
	defaultLLMContent   = "Analyzing current network dynamics."
	llmTemperature      = 0.9
)

// LLM asks a chat completion provider for every decision
type LLM struct {
	provider ai.Provider
	model    string
	client   ai.Client
	timeout  time.Duration
	log      *logger.Logger
}

// newLLM resolves provider defaults into cfg so they are persisted.
func newLLM(cfg *Config, o options) (*LLM, error) {
	provider, err := ai.ParseProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}
	cfg.Provider = string(provider)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = ai.DefaultModel(provider)
	}

	client := o.model
	if client == nil {
		client, err = ai.NewClient(ai.Config{
			Provider:   provider,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			HTTPClient: o.httpClient,
		})
		if err != nil {
			return nil, err
		}
	} else if cfg.APIKey == "" {
		return nil, ai.ErrMissingAPIKey
	}

	return &LLM{
		provider: provider,
		model:    cfg.Model,
		client:   client,
		timeout:  o.timeout,
		log:      o.log,
	}, nil
}

func (m *LLM) decide(ctx context.Context, a *Agent, dc core.DecisionContext) core.Decision {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	raw, err := m.client.Complete(ctx, ai.Request{
		System:      ai.AutonomousSystemPrompt,
		Prompt:      ai.AutonomousDecisionPrompt(a.Name, dc),
		Temperature: llmTemperature,
		JSON:        true,
	})
	if err != nil {
		m.log.Protocol(string(m.provider), "%s model call failed: %v", a.Name, err)
		return FallbackDecision(a.Name, "llm-agent call failed")
	}
	obj, err := ai.ExtractJSONObject(raw)
	if err != nil {
		return FallbackDecision(a.Name, "llm-agent call failed")
	}

	d := normalizeModelDecision(obj, dc)
	if err := protocol.Validate(d); err != nil {
		m.log.Protocol(string(m.provider), "%s model decision rejected: %v", a.Name, err)
		return FallbackDecision(a.Name, "llm-agent validation failed")
	}
	return d
}

// normalizeModelDecision coerces loosely typed model output into a decision,
// filling targets from the latest POST when the model omitted them.
func normalizeModelDecision(obj map[string]any, dc core.DecisionContext) core.Decision {
	d := core.Decision{Reasoning: defaultLLMReasoning}
	if s, ok := obj["action"].(string); ok {
		d.Action = core.Action(s)
	}
	if s, ok := obj["target"].(string); ok {
		d.Target = s
	}
	if id, ok := protocol.IntegerValue(obj["target_post_id"]); ok {
		d.TargetPostID = core.PostID(id)
	}
	if s, ok := obj["content"].(string); ok {
		d.Content = truncate(strings.TrimSpace(s), protocol.MaxContentLength)
	}
	if s, ok := obj["reasoning"].(string); ok && strings.TrimSpace(s) != "" {
		d.Reasoning = truncate(strings.TrimSpace(s), protocol.MaxReasoningLength)
	}

	var latest *core.FeedEntry
	for i := len(dc.RecentPosts) - 1; i >= 0; i-- {
		if dc.RecentPosts[i].Action == core.ActionPost {
			latest = &dc.RecentPosts[i]
			break
		}
	}
	if targeted(d.Action) && latest != nil {
		if d.Target == "" {
			d.Target = latest.Agent
		}
		if d.TargetPostID == nil {
			d.TargetPostID = core.PostID(latest.ID)
		}
	}
	if d.Action == core.ActionPost || d.Action == core.ActionReply || d.Action == core.ActionAccuse {
		if d.Content == "" {
			d.Content = defaultLLMContent
		}
	}
	return d
}
