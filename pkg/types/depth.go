// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// ResearchDepth is one of four ordinal presets controlling search budget,
// iteration budget, allowed sources, and cross-validation strictness.
type ResearchDepth string

const (
	DepthQuick      ResearchDepth = "quick"
	DepthStandard   ResearchDepth = "standard"
	DepthDeep       ResearchDepth = "deep"
	DepthExhaustive ResearchDepth = "exhaustive"
)

// AllDepths returns the tiers from shallowest to deepest.
func AllDepths() []ResearchDepth {
	return []ResearchDepth{DepthQuick, DepthStandard, DepthDeep, DepthExhaustive}
}

// ParseResearchDepth validates a depth key. Unknown keys are an error.
func ParseResearchDepth(s string) (ResearchDepth, error) {
	key := ResearchDepth(strings.ToLower(strings.TrimSpace(s)))
	for _, d := range AllDepths() {
		if d == key {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown research depth %q: use quick, standard, deep, or exhaustive", s)
}

// DepthConfig holds the fixed settings for one research depth. Values are
// looked up from a static table and never mutated.
type DepthConfig struct {
	// Depth is the tier this configuration belongs to.
	Depth ResearchDepth `json:"depth" yaml:"depth"`

	// MaxSearches is the total search budget.
	MaxSearches int `json:"max_searches" yaml:"max_searches"`

	// MaxRalphIterations caps loop iterations (0 = unbounded).
	MaxRalphIterations int `json:"max_ralph_iterations" yaml:"max_ralph_iterations"`

	// Sources lists the allowed source types in preference order.
	Sources []SourceType `json:"sources" yaml:"sources"`

	// RequireCrossValidation demands independent corroboration of major claims.
	RequireCrossValidation bool `json:"require_cross_validation" yaml:"require_cross_validation"`

	// MinSourcesForClaim is the number of sources each claim needs (>= 1).
	MinSourcesForClaim int `json:"min_sources_for_claim" yaml:"min_sources_for_claim"`

	// CoverageThreshold is the coverage score at which research is complete.
	CoverageThreshold float64 `json:"coverage_threshold" yaml:"coverage_threshold"`
}

// SourceNames returns the allowed sources as wire names.
func (c DepthConfig) SourceNames() []string {
	names := make([]string, len(c.Sources))
	for i, s := range c.Sources {
		names[i] = s.String()
	}
	return names
}

// AllowsSource reports whether t is among the tier's allowed sources.
func (c DepthConfig) AllowsSource(t SourceType) bool {
	for _, s := range c.Sources {
		if s == t {
			return true
		}
	}
	return false
}
