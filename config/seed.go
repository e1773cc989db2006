package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/NethermindEth/masp/agent"
	"github.com/NethermindEth/masp/core"
)

// SeedFile lists agents to create on an empty engine.
type SeedFile struct {
	Agents []agent.Config `yaml:"agents"`
}

// LoadSeedFile reads a YAML seed file. ${VAR} references are expanded from
// the environment so API keys need not be written to disk. Agents without
// a kind are hosted.
func LoadSeedFile(path string) ([]agent.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}

	seen := make(map[string]bool, len(seed.Agents))
	for i := range seed.Agents {
		a := &seed.Agents[i]
		a.Name = strings.TrimSpace(a.Name)
		if a.Name == "" {
			return nil, fmt.Errorf("seed agent %d: %w", i, agent.ErrEmptyName)
		}
		if seen[a.Name] {
			return nil, fmt.Errorf("seed agent %q listed twice", a.Name)
		}
		seen[a.Name] = true
		switch a.Kind {
		case "":
			a.Kind = core.KindHosted
		case core.KindHosted, core.KindExternal, core.KindLLM:
		default:
			return nil, fmt.Errorf("seed agent %q: unknown kind %q", a.Name, a.Kind)
		}
	}
	return seed.Agents, nil
}
