// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ralph

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/deep-research/internal/depth"
	"github.com/pdiddy/deep-research/pkg/types"
)

func newTestLoop(t *testing.T, cfg *types.DepthConfig) *Loop {
	t.Helper()
	return NewLoop("context engineering", cfg,
		WithStateFile(filepath.Join(t.TempDir(), "state.local.md")),
		WithStartTime(testStart),
	)
}

func TestNewLoopDefaults(t *testing.T) {
	l := newTestLoop(t, nil)
	assert.Equal(t, DefaultMaxIterations, l.MaxIterations())
	assert.Equal(t, DefaultCoverageThreshold, l.Threshold())
	assert.Equal(t, []string{"web"}, l.SourceNames())
	assert.Equal(t, DefaultMaxIterations, l.State().MaxIterations)
}

func TestNewLoopFromDepth(t *testing.T) {
	cfg, err := depth.Lookup("deep")
	require.NoError(t, err)
	l := newTestLoop(t, &cfg)
	assert.Equal(t, 5, l.MaxIterations())
	assert.Equal(t, 0.85, l.Threshold())
	assert.Equal(t, []string{"web", "local", "github", "arxiv"}, l.SourceNames())
}

func TestLoopAdvancePersists(t *testing.T) {
	l := newTestLoop(t, nil)
	require.Equal(t, 1, l.State().Iteration)
	require.NoError(t, l.Advance())
	assert.Equal(t, 2, l.State().Iteration)

	reloaded := NewLoop("context engineering", nil, WithStateFile(l.StatePath()))
	ok, err := reloaded.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, reloaded.State().Iteration)
}

func TestLoopUpdateCoveragePersists(t *testing.T) {
	l := newTestLoop(t, nil)
	require.NoError(t, l.UpdateCoverage(7, 0.42))

	reloaded := NewLoop("context engineering", nil, WithStateFile(l.StatePath()))
	ok, err := reloaded.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 7, reloaded.State().FindingsCount)
	assert.Equal(t, 0.42, reloaded.State().CoverageScore)
}

func TestLoopStopReason(t *testing.T) {
	quick, err := depth.Lookup("quick")
	require.NoError(t, err)

	t.Run("quick tier completes after one iteration", func(t *testing.T) {
		l := newTestLoop(t, &quick)
		assert.True(t, l.IsComplete())
		assert.Equal(t, StopMaxIterations, l.StopReason())
	})

	t.Run("coverage threshold", func(t *testing.T) {
		l := newTestLoop(t, nil)
		require.NoError(t, l.UpdateCoverage(10, 0.9))
		assert.True(t, l.IsComplete())
		assert.Equal(t, StopCoverage, l.StopReason())
	})

	t.Run("not complete", func(t *testing.T) {
		l := newTestLoop(t, nil)
		require.NoError(t, l.UpdateCoverage(3, 0.2))
		assert.False(t, l.IsComplete())
		assert.Equal(t, StopNone, l.StopReason())
	})

	t.Run("unbounded never hits max", func(t *testing.T) {
		cfg := quick
		cfg.MaxRalphIterations = 0
		l := newTestLoop(t, &cfg)
		for i := 0; i < 20; i++ {
			require.NoError(t, l.Advance())
		}
		assert.False(t, l.IsComplete())
	})
}

func TestLoopPrompt(t *testing.T) {
	cfg, err := depth.Lookup("standard")
	require.NoError(t, err)
	l := newTestLoop(t, &cfg)
	require.NoError(t, l.UpdateCoverage(3, 0.25))

	prompt, err := l.Prompt()
	require.NoError(t, err)
	assert.Contains(t, prompt, "## Research Iteration 1/2")
	assert.Contains(t, prompt, "context engineering")
	assert.Contains(t, prompt, "Conduct targeted searches using: web, local")
	assert.Contains(t, prompt, "<promise>RESEARCH_COMPLETE</promise>")
	assert.Contains(t, prompt, "Coverage score >= 0.7 (current: 0.25)")
	assert.Contains(t, prompt, "- Findings: 3")
	assert.Contains(t, prompt, "- Coverage: 25.00%")
	assert.Contains(t, prompt, "Standard Research Mode")
}

func TestLoopPromptUnbounded(t *testing.T) {
	cfg, err := depth.Lookup("deep")
	require.NoError(t, err)
	cfg.MaxRalphIterations = 0
	l := newTestLoop(t, &cfg)

	prompt, err := l.Prompt()
	require.NoError(t, err)
	assert.Contains(t, prompt, "## Research Iteration 1/∞")
}

func TestLoopCleanup(t *testing.T) {
	l := newTestLoop(t, nil)
	require.NoError(t, l.Save())
	require.FileExists(t, l.StatePath())
	require.NoError(t, l.Cleanup())
	assert.NoFileExists(t, l.StatePath())
}

func TestCompletionMatcher(t *testing.T) {
	tests := []struct {
		name    string
		lenient bool
		output  string
		want    bool
	}{
		{"strict wrapped", false, "done <promise>RESEARCH_COMPLETE</promise>", true},
		{"strict bare", false, "I will say RESEARCH_COMPLETE later", false},
		{"lenient bare", true, "I will say RESEARCH_COMPLETE later", true},
		{"lenient wrapped", true, "<promise>RESEARCH_COMPLETE</promise>", true},
		{"absent", true, "still researching", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := CompletionMatcher{Token: DefaultCompletionPromise, Lenient: tt.lenient}
			assert.Equal(t, tt.want, m.Matches(tt.output))
		})
	}
}

func TestCompletionMatcherCustomToken(t *testing.T) {
	m := CompletionMatcher{Token: "DONE"}
	assert.True(t, m.Matches("<promise>DONE</promise>"))
	assert.False(t, m.Matches("<promise>RESEARCH_COMPLETE</promise>"))
	assert.True(t, CompletionMatcher{}.Matches(PromiseTag(DefaultCompletionPromise)))
}
