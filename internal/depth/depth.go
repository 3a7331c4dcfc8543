// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package depth holds the fixed research depth table and infers a depth from
// the wording of a query.
package depth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/deep-research/pkg/types"
)

// ErrUnknownDepth is returned by Lookup for keys outside the table.
var ErrUnknownDepth = errors.New("unknown research depth")

// table is the immutable depth configuration. Config returns copies so
// callers cannot mutate the shared Sources slices.
var table = map[types.ResearchDepth]types.DepthConfig{
	types.DepthQuick: {
		Depth:                  types.DepthQuick,
		MaxSearches:            3,
		MaxRalphIterations:     1,
		Sources:                []types.SourceType{types.SourceWeb},
		RequireCrossValidation: false,
		MinSourcesForClaim:     1,
		CoverageThreshold:      0.5,
	},
	types.DepthStandard: {
		Depth:                  types.DepthStandard,
		MaxSearches:            10,
		MaxRalphIterations:     2,
		Sources:                []types.SourceType{types.SourceWeb, types.SourceLocal},
		RequireCrossValidation: false,
		MinSourcesForClaim:     1,
		CoverageThreshold:      0.7,
	},
	types.DepthDeep: {
		Depth:                  types.DepthDeep,
		MaxSearches:            25,
		MaxRalphIterations:     5,
		Sources:                []types.SourceType{types.SourceWeb, types.SourceLocal, types.SourceGitHub, types.SourceArxiv},
		RequireCrossValidation: true,
		MinSourcesForClaim:     2,
		CoverageThreshold:      0.85,
	},
	types.DepthExhaustive: {
		Depth:                  types.DepthExhaustive,
		MaxSearches:            50,
		MaxRalphIterations:     10,
		Sources:                []types.SourceType{types.SourceWeb, types.SourceLocal, types.SourceGitHub, types.SourceArxiv, types.SourceDocs},
		RequireCrossValidation: true,
		MinSourcesForClaim:     3,
		CoverageThreshold:      0.95,
	},
}

// Lookup returns the configuration for a depth key such as "deep". Unknown
// keys fail with ErrUnknownDepth; there is no fallback tier.
func Lookup(key string) (types.DepthConfig, error) {
	d := types.ResearchDepth(strings.ToLower(strings.TrimSpace(key)))
	cfg, ok := table[d]
	if !ok {
		return types.DepthConfig{}, fmt.Errorf("%w %q: use quick, standard, deep, or exhaustive", ErrUnknownDepth, key)
	}
	return clone(cfg), nil
}

// Config returns the configuration for a known depth.
func Config(d types.ResearchDepth) (types.DepthConfig, error) {
	return Lookup(string(d))
}

// All returns every tier's configuration from shallowest to deepest.
func All() []types.DepthConfig {
	out := make([]types.DepthConfig, 0, len(table))
	for _, d := range types.AllDepths() {
		out = append(out, clone(table[d]))
	}
	return out
}

func clone(cfg types.DepthConfig) types.DepthConfig {
	cfg.Sources = append([]types.SourceType(nil), cfg.Sources...)
	return cfg
}

// Keyword sets in priority order: exhaustive beats deep beats quick.
var (
	exhaustiveKeywords = []string{"comprehensive", "thorough", "academic", "literature review", "exhaustive"}
	deepKeywords       = []string{"analyze", "compare", "investigate", "deep dive", "in-depth"}
	quickKeywords      = []string{"quick", "brief", "summary", "what is", "simple"}
)

// Infer picks a depth from keywords in the query. Queries without a matching
// keyword are standard.
func Infer(query string) types.ResearchDepth {
	q := strings.ToLower(query)
	switch {
	case containsAny(q, exhaustiveKeywords):
		return types.DepthExhaustive
	case containsAny(q, deepKeywords):
		return types.DepthDeep
	case containsAny(q, quickKeywords):
		return types.DepthQuick
	default:
		return types.DepthStandard
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
