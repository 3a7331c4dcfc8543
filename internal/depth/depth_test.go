// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package depth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/deep-research/pkg/types"
)

func TestLookupTable(t *testing.T) {
	tests := []struct {
		key         string
		searches    int
		iterations  int
		sources     []string
		crossVal    bool
		minSources  int
		threshold   float64
	}{
		{"quick", 3, 1, []string{"web"}, false, 1, 0.5},
		{"standard", 10, 2, []string{"web", "local"}, false, 1, 0.7},
		{"deep", 25, 5, []string{"web", "local", "github", "arxiv"}, true, 2, 0.85},
		{"exhaustive", 50, 10, []string{"web", "local", "github", "arxiv", "docs"}, true, 3, 0.95},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg, err := Lookup(tt.key)
			require.NoError(t, err)
			assert.Equal(t, types.ResearchDepth(tt.key), cfg.Depth)
			assert.Equal(t, tt.searches, cfg.MaxSearches)
			assert.Equal(t, tt.iterations, cfg.MaxRalphIterations)
			assert.Equal(t, tt.sources, cfg.SourceNames())
			assert.Equal(t, tt.crossVal, cfg.RequireCrossValidation)
			assert.Equal(t, tt.minSources, cfg.MinSourcesForClaim)
			assert.Equal(t, tt.threshold, cfg.CoverageThreshold)
		})
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("medium")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownDepth))
}

func TestLookupReturnsCopy(t *testing.T) {
	cfg, err := Lookup("deep")
	require.NoError(t, err)
	cfg.Sources[0] = types.SourceDocs

	again, err := Config(types.DepthDeep)
	require.NoError(t, err)
	assert.Equal(t, types.SourceWeb, again.Sources[0])
}

func TestAllOrdered(t *testing.T) {
	all := All()
	require.Len(t, all, 4)
	for i, d := range types.AllDepths() {
		assert.Equal(t, d, all[i].Depth)
	}
}

func TestInfer(t *testing.T) {
	tests := []struct {
		query string
		want  types.ResearchDepth
	}{
		{"quick summary of AI trends", types.DepthQuick},
		{"analyze different RAG strategies", types.DepthDeep},
		{"comprehensive literature review on transformers", types.DepthExhaustive},
		{"Context engineering patterns", types.DepthStandard},
		{"quick but thorough comparison", types.DepthExhaustive},
		{"What is a vector database", types.DepthQuick},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, Infer(tt.query))
		})
	}
}

func TestGuidance(t *testing.T) {
	deep, err := Lookup("deep")
	require.NoError(t, err)
	text := Guidance(deep)
	assert.Contains(t, text, "Deep Research Mode (Ralph Loop)")
	assert.Contains(t, text, "max 25 total searches")
	assert.Contains(t, text, "web + local + github + arxiv")
	assert.Contains(t, text, ">= 2 independent sources")

	quick, err := Lookup("quick")
	require.NoError(t, err)
	assert.Contains(t, Guidance(quick), "Cross-validation is optional")
}
