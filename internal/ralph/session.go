// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ralph

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pdiddy/deep-research/pkg/types"
)

// ErrSessionFinalized is returned by mutating calls on a finalized session.
var ErrSessionFinalized = errors.New("research session already finalized")

// SessionIDLayout is the time layout of generated session identifiers.
const SessionIDLayout = "20060102_150405"

// Session binds a Loop and a FindingStore to a per-session workspace
// directory holding TODO.md, FINDINGS.md, and, once finalized, SUMMARY.md.
// A Session is owned by a single goroutine.
type Session struct {
	query     string
	id        string
	workspace string
	dir       string

	loop   *Loop
	store  FindingStore
	now    func() time.Time
	logger *slog.Logger

	finalized bool
}

type sessionOptions struct {
	id        string
	workspace string
	stateDir  string
	statePath string
	promise   string
	now       func() time.Time
	logger    *slog.Logger
}

// SessionOption configures a Session.
type SessionOption func(*sessionOptions)

// WithSessionID fixes the session identifier. By default it is the creation
// time formatted with SessionIDLayout.
func WithSessionID(id string) SessionOption {
	return func(o *sessionOptions) { o.id = id }
}

// WithWorkspace sets the root under which session directories are created.
func WithWorkspace(dir string) SessionOption {
	return func(o *sessionOptions) { o.workspace = dir }
}

// WithStateDir sets the directory holding the session's state file. The
// file name is derived from the session ID.
func WithStateDir(dir string) SessionOption {
	return func(o *sessionOptions) { o.stateDir = dir }
}

// WithStatePath persists the loop state block at path, overriding the
// per-session default.
func WithStatePath(path string) SessionOption {
	return func(o *sessionOptions) { o.statePath = path }
}

// WithSessionCompletionPromise replaces the completion token.
func WithSessionCompletionPromise(token string) SessionOption {
	return func(o *sessionOptions) { o.promise = token }
}

// WithClock replaces time.Now for the session's timestamps.
func WithClock(now func() time.Time) SessionOption {
	return func(o *sessionOptions) { o.now = now }
}

// WithLogger sets the session logger. The default discards output.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(o *sessionOptions) { o.logger = logger }
}

// NewSession creates a session for query. cfg may be nil, in which case the
// loop defaults apply. Nothing touches the filesystem until Initialize.
func NewSession(query string, cfg *types.DepthConfig, opts ...SessionOption) *Session {
	o := sessionOptions{
		workspace: DefaultWorkspace,
		stateDir:  DefaultStateDir,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	started := o.now()
	if o.id == "" {
		o.id = started.Format(SessionIDLayout)
	}
	if o.statePath == "" {
		o.statePath = StatePath(o.stateDir, o.id)
	}

	dir := filepath.Join(o.workspace, "session_"+o.id)
	loop := NewLoop(query, cfg,
		WithStateFile(o.statePath),
		WithStartTime(started),
		WithCompletionPromise(o.promise),
		WithWorkspaceHint(dir),
	)

	return &Session{
		query:     query,
		id:        o.id,
		workspace: o.workspace,
		dir:       dir,
		loop:      loop,
		now:       o.now,
		logger:    o.logger.With("session", o.id),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Query returns the research query.
func (s *Session) Query() string { return s.query }

// Dir returns the session directory.
func (s *Session) Dir() string { return s.dir }

// Loop returns the session's loop controller.
func (s *Session) Loop() *Loop { return s.loop }

// State returns a copy of the current loop state.
func (s *Session) State() LoopState { return s.loop.State() }

// Findings returns the recorded findings in insertion order.
func (s *Session) Findings() []types.Finding { return s.store.All() }

// Coverage returns the most recently computed coverage score.
func (s *Session) Coverage() float64 { return s.loop.State().CoverageScore }

// Finalized reports whether Finalize has completed.
func (s *Session) Finalized() bool { return s.finalized }

// Prompt renders the prompt for the current iteration.
func (s *Session) Prompt() (string, error) { return s.loop.Prompt() }

// Initialize creates the session directory, writes the TODO and findings
// templates, and persists the initial loop state. Calling it again rewrites
// the templates but keeps the loop counters.
func (s *Session) Initialize() error {
	if s.finalized {
		return ErrSessionFinalized
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	data := findingsData{Query: s.query}
	if _, err := writeDocument(s.dir, TodoFile, todoTmpl, data); err != nil {
		return err
	}
	if _, err := writeDocument(s.dir, FindingsFile, findingsSkeletonTmpl, data); err != nil {
		return err
	}
	if err := s.loop.Save(); err != nil {
		return fmt.Errorf("saving initial loop state: %w", err)
	}
	s.logger.Info("session initialized", "dir", s.dir, "max_iterations", s.loop.MaxIterations(), "threshold", s.loop.Threshold())
	return nil
}

// AddFinding records f, regenerates FINDINGS.md from the full list, and
// recomputes and persists coverage.
func (s *Session) AddFinding(f types.Finding) error {
	if s.finalized {
		return ErrSessionFinalized
	}
	findings := append(s.store.All(), f)
	if _, err := writeDocument(s.dir, FindingsFile, findingsTmpl, findingsData{Query: s.query, Findings: findings}); err != nil {
		return err
	}
	s.store.Add(f)

	coverage := Coverage(findings)
	if err := s.loop.UpdateCoverage(len(findings), coverage); err != nil {
		return err
	}
	s.logger.Debug("finding added", "title", f.SourceTitle, "findings", len(findings), "coverage", coverage)
	return nil
}

// CompleteIteration returns true, without changing state, when the loop is
// complete. Otherwise it advances to the next iteration and returns false.
func (s *Session) CompleteIteration() (bool, error) {
	if s.finalized {
		return false, ErrSessionFinalized
	}
	if s.loop.IsComplete() {
		s.logger.Info("research complete", "reason", string(s.loop.StopReason()), "iteration", s.loop.State().Iteration)
		return true, nil
	}
	if err := s.loop.Advance(); err != nil {
		return false, err
	}
	return false, nil
}

// Finalize removes the persisted loop state and writes SUMMARY.md, returning
// its path. It may be called once.
func (s *Session) Finalize() (string, error) {
	if s.finalized {
		return "", ErrSessionFinalized
	}
	if err := s.loop.Cleanup(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating session directory: %w", err)
	}

	state := s.loop.State()
	path, err := writeDocument(s.dir, SummaryFile, summaryTmpl, summaryData{
		Query:           s.query,
		Iterations:      state.Iteration,
		Findings:        s.store.Len(),
		CoveragePercent: state.CoverageScore * 100,
		SessionID:       s.id,
		Started:         state.StartedAt.Format(time.RFC3339),
		Completed:       s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", err
	}
	s.finalized = true
	s.logger.Info("session finalized", "summary", path, "findings", s.store.Len(), "coverage", state.CoverageScore)
	return path, nil
}
