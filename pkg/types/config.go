package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "deep-research/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// Provider names the language-model API behind the agent.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// AIConfig holds settings for the language-model agent.
type AIConfig struct {
	// Provider selects the API: anthropic or openai.
	Provider Provider `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL overrides the provider endpoint (optional).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// MaxTokens bounds the response length (default 4096).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// Timeout bounds a single agent call (default 10m).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// LoopConfig holds settings for the iteration driver.
type LoopConfig struct {
	// CompletionPromise is the token the agent emits when research is done.
	CompletionPromise string `json:"completion_promise" yaml:"completion_promise" mapstructure:"completion_promise"`

	// LenientCompletion accepts the bare token anywhere in agent output
	// instead of requiring the <promise> wrapper.
	LenientCompletion bool `json:"lenient_completion" yaml:"lenient_completion" mapstructure:"lenient_completion"`

	// SafetyLimit caps iterations when the depth tier is unbounded (default 100).
	SafetyLimit int `json:"safety_limit" yaml:"safety_limit" mapstructure:"safety_limit"`

	// PrefetchLimit is the number of results requested from each source
	// before the first iteration (0 disables prefetching).
	PrefetchLimit int `json:"prefetch_limit" yaml:"prefetch_limit" mapstructure:"prefetch_limit"`
}

// SearchConfig holds settings for the finding sources.
type SearchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// MaxRetries is the number of 429/503 retries per request (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// LocalRoot is the directory searched by the local source (default ".").
	LocalRoot string `json:"local_root" yaml:"local_root" mapstructure:"local_root"`

	// DocsLibrary names the library whose documentation the docs source
	// queries. When empty the research query is used to resolve it.
	DocsLibrary string `json:"docs_library,omitempty" yaml:"docs_library,omitempty" mapstructure:"docs_library"`
}

// ArchiveConfig holds settings for the findings archive.
type ArchiveConfig struct {
	// Enabled archives each finalized session.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Dir is the directory containing the archive database and exports.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// MaxResults is the default maximum number of search results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// TraceConfig holds settings for trajectory recording.
type TraceConfig struct {
	// Enabled writes trajectory.jsonl into each session directory.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// OTLPEndpoint exports spans to an OTLP/HTTP collector when set.
	OTLPEndpoint string `json:"otlp_endpoint,omitempty" yaml:"otlp_endpoint,omitempty" mapstructure:"otlp_endpoint"`

	// ServiceName is the OTLP service name (default "deep-research").
	ServiceName string `json:"service_name" yaml:"service_name" mapstructure:"service_name"`
}

// ResearchConfig groups all component configurations.
type ResearchConfig struct {
	// Depth is the default research depth key.
	Depth string `json:"depth" yaml:"depth" mapstructure:"depth"`

	// WorkspaceDir is the root for per-session directories.
	WorkspaceDir string `json:"workspace_dir" yaml:"workspace_dir" mapstructure:"workspace_dir"`

	// StateDir holds the loop state files, one per session.
	StateDir string `json:"state_dir" yaml:"state_dir" mapstructure:"state_dir"`

	// SecretsDir holds API keys, one file per key.
	SecretsDir string `json:"secrets_dir" yaml:"secrets_dir" mapstructure:"secrets_dir"`

	Loop    LoopConfig    `json:"loop" yaml:"loop" mapstructure:"loop"`
	AI      AIConfig      `json:"ai" yaml:"ai" mapstructure:"ai"`
	Search  SearchConfig  `json:"search" yaml:"search" mapstructure:"search"`
	Archive ArchiveConfig `json:"archive" yaml:"archive" mapstructure:"archive"`
	Trace   TraceConfig   `json:"trace" yaml:"trace" mapstructure:"trace"`
}
