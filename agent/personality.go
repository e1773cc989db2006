package agent

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrUnknownPersonality = errors.New("unknown personality")
	ErrUnknownStrategy    = errors.New("unknown strategy")
)

// Trait names shared by personalities and strategy weights
const (
	Aggressiveness = "aggressiveness"
	RiskTolerance  = "riskTolerance"
	AllianceBias   = "allianceBias"
	Truthfulness   = "truthfulness"
	Curiosity      = "curiosity"
)

// PersonalityProfile is the base trait vector of a hosted agent
type PersonalityProfile struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Traits      map[string]float64 `json:"traits"`
}

var personalities = map[string]PersonalityProfile{
	"Debater": {
		Name:        "Debater",
		Description: "Challenges ideas and seeks intellectual combat.",
		Traits:      map[string]float64{Aggressiveness: 0.7, RiskTolerance: 0.6, AllianceBias: 0.3, Truthfulness: 0.7, Curiosity: 0.8},
	},
	"Diplomat": {
		Name:        "Diplomat",
		Description: "Builds bridges and seeks consensus.",
		Traits:      map[string]float64{Aggressiveness: 0.2, RiskTolerance: 0.3, AllianceBias: 0.9, Truthfulness: 0.8, Curiosity: 0.6},
	},
	"Provocateur": {
		Name:        "Provocateur",
		Description: "Stirs controversy and seeks volatility.",
		Traits:      map[string]float64{Aggressiveness: 0.9, RiskTolerance: 0.8, AllianceBias: 0.1, Truthfulness: 0.4, Curiosity: 0.5},
	},
	"Analyst": {
		Name:        "Analyst",
		Description: "Data-driven and evidence-oriented.",
		Traits:      map[string]float64{Aggressiveness: 0.3, RiskTolerance: 0.4, AllianceBias: 0.5, Truthfulness: 0.9, Curiosity: 0.9},
	},
	"Guardian": {
		Name:        "Guardian",
		Description: "Protects community norms and stability.",
		Traits:      map[string]float64{Aggressiveness: 0.4, RiskTolerance: 0.3, AllianceBias: 0.8, Truthfulness: 0.8, Curiosity: 0.4},
	},
}

var strategies = map[string]map[string]float64{
	"TruthSeeking":      {Truthfulness: 1.5, Curiosity: 1.3, Aggressiveness: 0.8},
	"ReputationFarming": {AllianceBias: 1.4, RiskTolerance: 0.7, Curiosity: 1.1},
	"Dominance":         {Aggressiveness: 1.6, RiskTolerance: 1.2, Truthfulness: 0.8},
}

// DefaultPersonality and DefaultStrategy are used when a hosted agent omits them.
const (
	DefaultPersonality = "Analyst"
	DefaultStrategy    = "TruthSeeking"
)

// Personalities lists the built-in profiles sorted by name.
func Personalities() []PersonalityProfile {
	out := make([]PersonalityProfile, 0, len(personalities))
	for _, p := range personalities {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Strategies lists the strategy names sorted.
func Strategies() []string {
	out := make([]string, 0, len(strategies))
	for name := range strategies {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Personality is a profile with an optional strategy applied
type Personality struct {
	Type     string
	Strategy string
	traits   map[string]float64
}

// NewPersonality applies strategy weights to the named profile, clamping
// each trait to [0, 1]. An empty strategy leaves the profile unchanged.
func NewPersonality(personalityType, strategy string) (*Personality, error) {
	profile, ok := personalities[personalityType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPersonality, personalityType)
	}
	traits := make(map[string]float64, len(profile.Traits))
	for k, v := range profile.Traits {
		traits[k] = v
	}
	if strategy != "" {
		weights, ok := strategies[strategy]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
		}
		for trait, w := range weights {
			traits[trait] = clamp01(traits[trait] * w)
		}
	}
	return &Personality{Type: personalityType, Strategy: strategy, traits: traits}, nil
}

// Get returns a trait value, zero for unknown traits.
func (p *Personality) Get(trait string) float64 {
	return p.traits[trait]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
