package handlers

import (
	"github.com/NethermindEth/masp/agent"
	"github.com/NethermindEth/masp/core"
)

func simulationConfig(name string) agent.Config {
	return agent.Config{Name: name, Personality: "Guardian", Strategy: "TruthSeeking"}
}

func fallbackPost() core.Decision {
	return agent.FallbackDecision("ann", "timeout")
}
