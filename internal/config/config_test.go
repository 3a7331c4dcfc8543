package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/deep-research/pkg/types"
)

func newViper(t *testing.T, yamlText string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	if yamlText != "" {
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(strings.NewReader(yamlText)))
	}
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "standard", cfg.Depth)
	assert.Equal(t, "research_workspace", cfg.WorkspaceDir)
	assert.Equal(t, ".claude", cfg.StateDir)
	assert.Equal(t, ".secrets", cfg.SecretsDir)

	assert.Equal(t, "RESEARCH_COMPLETE", cfg.Loop.CompletionPromise)
	assert.False(t, cfg.Loop.LenientCompletion)
	assert.Equal(t, 100, cfg.Loop.SafetyLimit)
	assert.Equal(t, 5, cfg.Loop.PrefetchLimit)

	assert.Equal(t, types.ProviderAnthropic, cfg.AI.Provider)
	assert.Equal(t, DefaultAnthropicModel, cfg.AI.Model)
	assert.Equal(t, 4096, cfg.AI.MaxTokens)
	assert.Equal(t, 10*time.Minute, cfg.AI.Timeout)

	assert.Equal(t, 30*time.Second, cfg.Search.Timeout)
	assert.Equal(t, "deep-research/0.1", cfg.Search.UserAgent)
	assert.Equal(t, 5, cfg.Search.MaxRetries)

	assert.False(t, cfg.Archive.Enabled)
	assert.Equal(t, 20, cfg.Archive.MaxResults)
	assert.True(t, cfg.Trace.Enabled)
	assert.Empty(t, cfg.Trace.OTLPEndpoint)
}

func TestLoadFromYAML(t *testing.T) {
	cfg, err := Load(newViper(t, `
depth: Deep
loop:
  lenient_completion: true
  prefetch_limit: 0
ai:
  provider: openai
  timeout: 90s
search:
  timeout: 5s
  docs_library: cobra
archive:
  enabled: true
  dir: /tmp/archive
trace:
  otlp_endpoint: localhost:4318
`))
	require.NoError(t, err)

	assert.Equal(t, "deep", cfg.Depth)
	assert.True(t, cfg.Loop.LenientCompletion)
	assert.Zero(t, cfg.Loop.PrefetchLimit)
	assert.Equal(t, types.ProviderOpenAI, cfg.AI.Provider)
	assert.Equal(t, DefaultOpenAIModel, cfg.AI.Model)
	assert.Equal(t, 90*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Search.Timeout)
	assert.Equal(t, "cobra", cfg.Search.DocsLibrary)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, "/tmp/archive", cfg.Archive.Dir)
	assert.Equal(t, "localhost:4318", cfg.Trace.OTLPEndpoint)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DEEP_RESEARCH_AI_MODEL", "claude-opus")
	t.Setenv("DEEP_RESEARCH_DEPTH", "quick")
	t.Setenv("DEEP_RESEARCH_LOOP_SAFETY_LIMIT", "7")

	cfg, err := Load(newViper(t, "depth: deep\n"))
	require.NoError(t, err)

	assert.Equal(t, "claude-opus", cfg.AI.Model)
	assert.Equal(t, "quick", cfg.Depth)
	assert.Equal(t, 7, cfg.Loop.SafetyLimit)
}

func TestLoadAutoDepth(t *testing.T) {
	cfg, err := Load(newViper(t, "depth: AUTO\n"))
	require.NoError(t, err)
	assert.Equal(t, AutoDepth, cfg.Depth)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown depth", "depth: bottomless\n", "unknown research depth"},
		{"unknown provider", "ai:\n  provider: gemini\n", "unsupported provider"},
		{"zero safety limit", "loop:\n  safety_limit: 0\n", "safety_limit"},
		{"negative prefetch", "loop:\n  prefetch_limit: -1\n", "prefetch_limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(newViper(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
