package agent

import "github.com/NethermindEth/masp/core"

// FallbackContent is posted whenever a remote or model decision cannot be used.
const FallbackContent = "Observing current dynamics and recalibrating strategy."

// FallbackDecision returns the deterministic substitute decision tagged with reason.
func FallbackDecision(agentName, reason string) core.Decision {
	return core.Decision{
		Agent:     agentName,
		Action:    core.ActionPost,
		Content:   FallbackContent,
		Reasoning: "Fallback decision used: " + reason,
	}
}
