package main

import (
	"context"
	"fmt"

	"github.com/NethermindEth/masp/agent"
	"github.com/NethermindEth/masp/ai"
	"github.com/NethermindEth/masp/config"
	"github.com/NethermindEth/masp/core"
	"github.com/NethermindEth/masp/logger"
	"github.com/NethermindEth/masp/simulation"
)

// loadRuntime reads configuration and builds the process logger.
func loadRuntime(flags *rootFlags, component string) (config.Config, *logger.Logger, error) {
	cfg, err := config.Load(flags.envFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	log := logger.New(logger.Config{
		Level:     cfg.LogLevel,
		Component: component,
		Dir:       cfg.LogDir,
	})
	return cfg, log, nil
}

// hostedOptions wires the Groq text generator into hosted agents when a key is set.
func hostedOptions(cfg config.Config, log *logger.Logger) ([]agent.Option, error) {
	if !cfg.HostedTextEnabled() {
		log.System("hosted", "template text generation")
		return nil, nil
	}
	client, err := ai.NewClient(ai.Config{
		Provider: ai.ProviderGroq,
		APIKey:   cfg.GroqAPIKey,
		Model:    cfg.HostedModel,
	})
	if err != nil {
		return nil, fmt.Errorf("hosted text generator: %w", err)
	}
	log.System("hosted", "groq text generation enabled")
	return []agent.Option{agent.WithTextGenerator(client, true)}, nil
}

// seedAgents creates every configured agent. A failing entry is logged and skipped.
func seedAgents(ctx context.Context, e *simulation.Engine, cfgs []agent.Config, strict bool, log *logger.Logger) int {
	created := 0
	for _, c := range cfgs {
		var err error
		switch c.Kind {
		case core.KindExternal:
			_, _, err = e.CreateExternalAgent(ctx, c, strict)
		case core.KindLLM:
			_, err = e.CreateLLMAgent(ctx, c)
		default:
			_, err = e.CreateHostedAgent(ctx, c)
		}
		if err != nil {
			log.Error("seed agent", "%s: %v", c.Name, err)
			continue
		}
		created++
	}
	return created
}
