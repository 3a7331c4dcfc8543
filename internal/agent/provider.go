// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/deep-research/pkg/types"
)

// ErrMissingAPIKey is returned by New when cfg carries no API key.
var ErrMissingAPIKey = errors.New("missing provider api key")

// New selects the agent implementation for cfg.Provider. An empty provider
// means anthropic.
func New(cfg types.AIConfig) (Agent, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	switch types.Provider(strings.ToLower(strings.TrimSpace(string(cfg.Provider)))) {
	case types.ProviderAnthropic, "":
		return NewClaudeAgent(cfg), nil
	case types.ProviderOpenAI:
		return NewOpenAIAgent(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}
