package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPersonality_AppliesStrategyAndClamps(t *testing.T) {
	p, err := NewPersonality("Provocateur", "Dominance")
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.Get(Aggressiveness))
	assert.InDelta(t, 0.96, p.Get(RiskTolerance), 1e-9)
	assert.InDelta(t, 0.32, p.Get(Truthfulness), 1e-9)
	assert.InDelta(t, 0.1, p.Get(AllianceBias), 1e-9)

	p, err = NewPersonality("Diplomat", "ReputationFarming")
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.Get(AllianceBias))
	assert.InDelta(t, 0.21, p.Get(RiskTolerance), 1e-9)
	assert.InDelta(t, 0.66, p.Get(Curiosity), 1e-9)
}

func TestNewPersonality_Unknown(t *testing.T) {
	_, err := NewPersonality("Jester", "Dominance")
	assert.ErrorIs(t, err, ErrUnknownPersonality)

	_, err = NewPersonality("Analyst", "Chaos")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestCatalog(t *testing.T) {
	names := []string{}
	for _, p := range Personalities() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Analyst", "Debater", "Diplomat", "Guardian", "Provocateur"}, names)
	assert.Equal(t, []string{"Dominance", "ReputationFarming", "TruthSeeking"}, Strategies())
}
