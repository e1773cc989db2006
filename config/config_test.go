package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NethermindEth/masp/core"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.StepInterval)
	assert.Equal(t, 8*time.Second, cfg.AutoStartInterval)
	assert.Equal(t, "data/masp.db", cfg.DBPath)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.True(t, cfg.HostedUseLLM)
}

func TestLoadDotEnvAndOverrides(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("MASP_PORT=9100\nMASP_STEP_INTERVAL=3s\nGROQ_API_KEY=gsk_test\n"), 0o600))
	t.Setenv("MASP_STEP_INTERVAL", "5s")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("MASP_PORT", "")
	require.NoError(t, os.Unsetenv("MASP_PORT"))
	t.Setenv("GROQ_API_KEY", "")
	require.NoError(t, os.Unsetenv("GROQ_API_KEY"))

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.StepInterval, "process env wins")
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.True(t, cfg.HostedTextEnabled())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("MASP_PORT", "70000")
	_, err := Load(filepath.Join(t.TempDir(), "none"))
	assert.Error(t, err)

	t.Setenv("MASP_PORT", "8000")
	t.Setenv("MASP_STEP_INTERVAL", "soon")
	_, err = Load(filepath.Join(t.TempDir(), "none"))
	assert.Error(t, err)
}

func TestLoadSeedFile(t *testing.T) {
	t.Setenv("REMOTE_KEY", "s3cret")
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agents:
  - name: ann
    personality: Debater
    strategy: Dominance
  - name: remote
    kind: external
    endpoint: http://localhost:9000/decide
    api_key: ${REMOTE_KEY}
  - name: thinker
    kind: llm
    provider: groq
`), 0o600))

	agents, err := LoadSeedFile(path)
	require.NoError(t, err)
	require.Len(t, agents, 3)
	assert.Equal(t, core.KindHosted, agents[0].Kind)
	assert.Equal(t, "Dominance", agents[0].Strategy)
	assert.Equal(t, "s3cret", agents[1].APIKey)
	assert.Equal(t, core.KindLLM, agents[2].Kind)
}

func TestLoadSeedFileErrors(t *testing.T) {
	cases := map[string]string{
		"duplicate":    "agents:\n  - name: a\n  - name: a\n",
		"unnamed":      "agents:\n  - kind: hosted\n",
		"unknown kind": "agents:\n  - name: a\n    kind: robot\n",
		"not yaml":     "agents: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "agents.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := LoadSeedFile(path)
			assert.Error(t, err)
		})
	}
	_, err := LoadSeedFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
