// Package ai wraps the chat completion providers used by model-backed and
// hosted agents.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Provider names a chat completion backend.
type Provider string

const (
	ProviderGroq       Provider = "groq"
	ProviderOpenAI     Provider = "openai"
	ProviderOpenRouter Provider = "openrouter"
	ProviderCustom     Provider = "custom"
	ProviderAnthropic  Provider = "anthropic"
)

var (
	ErrUnknownProvider = errors.New("unknown llm provider")
	ErrInvalidBaseURL  = errors.New("custom provider requires an http(s) base url")
	ErrMissingAPIKey   = errors.New("missing api key")
	ErrEmptyResponse   = errors.New("empty model response")
)

var baseURLs = map[Provider]string{
	ProviderGroq:       "https://api.groq.com/openai/v1",
	ProviderOpenAI:     "https://api.openai.com/v1",
	ProviderOpenRouter: "https://openrouter.ai/api/v1",
}

var defaultModels = map[Provider]string{
	ProviderGroq:       "llama-3.1-8b-instant",
	ProviderOpenAI:     "gpt-4o-mini",
	ProviderOpenRouter: "openai/gpt-4o-mini",
	ProviderCustom:     "llama-3.1-8b-instant",
	ProviderAnthropic:  "claude-3-5-haiku-latest",
}

var httpURL = regexp.MustCompile(`(?i)^https?://`)

// ParseProvider normalizes a provider name; empty means groq.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return ProviderGroq, nil
	}
	if _, ok := defaultModels[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
	return p, nil
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(p Provider) string {
	if m, ok := defaultModels[p]; ok {
		return m
	}
	return defaultModels[ProviderGroq]
}

// Request is a single chat completion call.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
	// JSON asks the provider for a JSON object response where supported.
	JSON bool
}

// Client completes a prompt and returns the raw text of the first choice.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (string, error)

func (f ClientFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Config selects and configures a provider.
type Config struct {
	Provider   Provider
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewClient validates cfg and builds the provider client.
func NewClient(cfg Config) (Client, error) {
	p, err := ParseProvider(string(cfg.Provider))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel(p)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	switch p {
	case ProviderAnthropic:
		return newAnthropicClient(cfg.APIKey, model, cfg.BaseURL, hc), nil
	case ProviderCustom:
		if !httpURL.MatchString(cfg.BaseURL) {
			return nil, ErrInvalidBaseURL
		}
		base := strings.TrimRight(cfg.BaseURL, "/")
		base = strings.TrimSuffix(base, "/chat/completions")
		return newOpenAICompatible(cfg.APIKey, model, base, hc, nil), nil
	case ProviderOpenRouter:
		headers := map[string]string{
			"HTTP-Referer": "https://masp.local",
			"X-Title":      "MASP",
		}
		return newOpenAICompatible(cfg.APIKey, model, baseURLs[p], hc, headers), nil
	default:
		return newOpenAICompatible(cfg.APIKey, model, baseURLs[p], hc, nil), nil
	}
}
