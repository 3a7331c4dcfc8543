// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ralph implements the iterative research loop: an append-only
// finding store, the coverage estimate that drives termination, persisted
// loop state, and the session that ties them to a workspace on disk.
package ralph

import (
	"fmt"
	"time"

	"github.com/pdiddy/deep-research/internal/depth"
	"github.com/pdiddy/deep-research/pkg/types"
)

// Defaults used when a loop is created without a depth configuration.
const (
	DefaultMaxIterations     = 10
	DefaultCoverageThreshold = 0.85
	DefaultWorkspace         = "research_workspace"
)

// StopReason records why a research loop ended.
type StopReason string

const (
	StopNone          StopReason = ""
	StopMaxIterations StopReason = "max_iterations"
	StopCoverage      StopReason = "coverage_reached"
	StopMarker        StopReason = "completion_marker"
	StopSafetyLimit   StopReason = "safety_limit"
	StopCancelled     StopReason = "cancelled"
	StopAgentError    StopReason = "agent_error"
)

// Loop owns the persisted LoopState of one research query along with the
// depth-derived limits that decide when it is complete. Every mutator
// persists before returning.
type Loop struct {
	query         string
	maxIterations int
	threshold     float64
	sources       []types.SourceType
	guidance      string
	workspace     string

	state LoopState
	file  StateFile
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithStateFile persists the loop at path instead of DefaultStatePath.
func WithStateFile(path string) LoopOption {
	return func(l *Loop) { l.file = StateFile{Path: path} }
}

// WithStartTime sets the loop's StartedAt timestamp.
func WithStartTime(t time.Time) LoopOption {
	return func(l *Loop) { l.state.StartedAt = t.UTC() }
}

// WithCompletionPromise replaces the completion token.
func WithCompletionPromise(token string) LoopOption {
	return func(l *Loop) {
		if token != "" {
			l.state.CompletionPromise = token
		}
	}
}

// WithWorkspaceHint sets the directory the prompt points the agent at.
func WithWorkspaceHint(dir string) LoopOption {
	return func(l *Loop) { l.workspace = dir }
}

// NewLoop creates a loop for query. When cfg is nil the loop is capped at
// DefaultMaxIterations with DefaultCoverageThreshold and only web sources.
func NewLoop(query string, cfg *types.DepthConfig, opts ...LoopOption) *Loop {
	l := &Loop{
		query:         query,
		maxIterations: DefaultMaxIterations,
		threshold:     DefaultCoverageThreshold,
		sources:       []types.SourceType{types.SourceWeb},
		workspace:     DefaultWorkspace,
		file:          StateFile{Path: DefaultStatePath},
	}
	if cfg != nil {
		l.maxIterations = cfg.MaxRalphIterations
		l.threshold = cfg.CoverageThreshold
		l.sources = append([]types.SourceType(nil), cfg.Sources...)
		l.guidance = depth.Guidance(*cfg)
	}
	l.state = NewLoopState(l.maxIterations, time.Now())
	for _, o := range opts {
		o(l)
	}
	return l
}

// State returns a copy of the current loop state.
func (l *Loop) State() LoopState { return l.state }

// Query returns the research query.
func (l *Loop) Query() string { return l.query }

// MaxIterations returns the iteration cap (0 = unbounded).
func (l *Loop) MaxIterations() int { return l.maxIterations }

// Threshold returns the coverage score at which the loop is complete.
func (l *Loop) Threshold() float64 { return l.threshold }

// Sources returns the allowed source types.
func (l *Loop) Sources() []types.SourceType {
	return append([]types.SourceType(nil), l.sources...)
}

// SourceNames returns the allowed sources as wire names.
func (l *Loop) SourceNames() []string {
	names := make([]string, len(l.sources))
	for i, s := range l.sources {
		names[i] = s.String()
	}
	return names
}

// StatePath returns the path of the persisted state block.
func (l *Loop) StatePath() string { return l.file.Path }

// Prompt renders the prompt for the current iteration.
func (l *Loop) Prompt() (string, error) {
	return renderPrompt(l)
}

// Save persists the state block together with the current prompt.
func (l *Loop) Save() error {
	prompt, err := l.Prompt()
	if err != nil {
		return err
	}
	return l.file.Save(l.state, prompt)
}

// Load reads a previously persisted state into the loop. It returns false
// when there is nothing to resume.
func (l *Loop) Load() (bool, error) {
	return l.file.Load(&l.state)
}

// Advance moves to the next iteration and persists.
func (l *Loop) Advance() error {
	l.state.Iteration++
	if err := l.Save(); err != nil {
		return fmt.Errorf("advancing to iteration %d: %w", l.state.Iteration, err)
	}
	return nil
}

// UpdateCoverage overwrites the finding count and coverage score and persists.
func (l *Loop) UpdateCoverage(findings int, coverage float64) error {
	l.state.FindingsCount = findings
	l.state.CoverageScore = coverage
	if err := l.Save(); err != nil {
		return fmt.Errorf("updating coverage: %w", err)
	}
	return nil
}

// IsComplete reports whether the loop has reached its iteration cap or its
// coverage threshold. It is recomputed on every call.
func (l *Loop) IsComplete() bool {
	return l.StopReason() != StopNone
}

// StopReason returns why the loop is complete, or StopNone.
func (l *Loop) StopReason() StopReason {
	switch {
	case l.state.IsMaxReached():
		return StopMaxIterations
	case l.state.CoverageScore >= l.threshold:
		return StopCoverage
	default:
		return StopNone
	}
}

// Cleanup removes the persisted state block.
func (l *Loop) Cleanup() error {
	return l.file.Remove()
}
