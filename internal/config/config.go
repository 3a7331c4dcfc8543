// Package config resolves the deep-research configuration from defaults, an
// optional YAML file, and DEEP_RESEARCH_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/deep-research/pkg/types"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. DEEP_RESEARCH_AI_MODEL.
	EnvPrefix = "DEEP_RESEARCH"

	// FileName is the config file name searched for without extension.
	FileName = "deep-research"
)

// AutoDepth selects the tier from the query's keywords at run time.
const AutoDepth = "auto"

// Default models per provider, used when ai.model is unset.
const (
	DefaultAnthropicModel = "claude-sonnet-4-5-20250929"
	DefaultOpenAIModel    = "gpt-4.1"
)

// SetDefaults registers every key with its default value. Registering all
// keys also lets AutomaticEnv resolve them during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("depth", string(types.DepthStandard))
	v.SetDefault("workspace_dir", "research_workspace")
	v.SetDefault("state_dir", ".claude")
	v.SetDefault("secrets_dir", ".secrets")

	v.SetDefault("loop.completion_promise", "RESEARCH_COMPLETE")
	v.SetDefault("loop.lenient_completion", false)
	v.SetDefault("loop.safety_limit", 100)
	v.SetDefault("loop.prefetch_limit", 5)

	v.SetDefault("ai.provider", string(types.ProviderAnthropic))
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.max_tokens", 4096)
	v.SetDefault("ai.timeout", 10*time.Minute)

	v.SetDefault("search.timeout", 30*time.Second)
	v.SetDefault("search.user_agent", "deep-research/0.1")
	v.SetDefault("search.max_retries", 5)
	v.SetDefault("search.local_root", ".")
	v.SetDefault("search.docs_library", "")

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.dir", "research_workspace/archive")
	v.SetDefault("archive.max_results", 20)

	v.SetDefault("trace.enabled", true)
	v.SetDefault("trace.otlp_endpoint", "")
	v.SetDefault("trace.service_name", "deep-research")
}

// BindEnv enables DEEP_RESEARCH_* overrides, mapping nested keys with
// underscores (ai.model -> DEEP_RESEARCH_AI_MODEL).
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes v into a ResearchConfig and validates it.
func Load(v *viper.Viper) (types.ResearchConfig, error) {
	var cfg types.ResearchConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}

	if strings.EqualFold(strings.TrimSpace(cfg.Depth), AutoDepth) {
		cfg.Depth = AutoDepth
	} else {
		d, err := types.ParseResearchDepth(cfg.Depth)
		if err != nil {
			return cfg, err
		}
		cfg.Depth = string(d)
	}

	cfg.AI.Provider = types.Provider(strings.ToLower(strings.TrimSpace(string(cfg.AI.Provider))))
	switch cfg.AI.Provider {
	case "", types.ProviderAnthropic:
		cfg.AI.Provider = types.ProviderAnthropic
		if cfg.AI.Model == "" {
			cfg.AI.Model = DefaultAnthropicModel
		}
	case types.ProviderOpenAI:
		if cfg.AI.Model == "" {
			cfg.AI.Model = DefaultOpenAIModel
		}
	default:
		return cfg, fmt.Errorf("unsupported provider %q: use anthropic or openai", cfg.AI.Provider)
	}

	if cfg.Loop.SafetyLimit <= 0 {
		return cfg, fmt.Errorf("loop.safety_limit must be positive, got %d", cfg.Loop.SafetyLimit)
	}
	if cfg.Loop.PrefetchLimit < 0 {
		return cfg, fmt.Errorf("loop.prefetch_limit must not be negative, got %d", cfg.Loop.PrefetchLimit)
	}
	return cfg, nil
}
