// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package runner drives a research session to completion: it prompts the
// agent once per iteration, ingests the findings it reports, and stops on
// the completion marker, the coverage threshold, the iteration cap, or
// cancellation. The session is always finalized.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/pdiddy/deep-research/internal/agent"
	"github.com/pdiddy/deep-research/internal/archive"
	"github.com/pdiddy/deep-research/internal/ralph"
	"github.com/pdiddy/deep-research/internal/sources"
	"github.com/pdiddy/deep-research/internal/trajectory"
	"github.com/pdiddy/deep-research/pkg/types"
)

// DefaultSafetyLimit caps iterations when the depth tier is unbounded.
const DefaultSafetyLimit = 100

// Archiver stores a finalized session.
type Archiver interface {
	ArchiveSession(ctx context.Context, rec archive.SessionRecord, findings []types.Finding) error
}

// RecorderFactory opens a trajectory recorder for a session directory.
type RecorderFactory func(dir string) (*trajectory.Recorder, error)

// Summary reports the outcome of a run.
type Summary struct {
	SessionID   string
	Dir         string
	SummaryPath string
	Iterations  int
	Findings    int
	Coverage    float64
	StopReason  ralph.StopReason
	Duration    time.Duration
	Trajectory  trajectory.Summary
}

// Runner runs research sessions. All collaborators are injected; only the
// agent is required.
type Runner struct {
	agent       agent.Agent
	sources     []sources.Source
	archiver    Archiver
	recorders   RecorderFactory
	logger      *slog.Logger
	out         io.Writer
	sessionOpts []ralph.SessionOption

	promise       string
	lenient       bool
	safetyLimit   int
	prefetchLimit int
	maxRetries    int
	now           func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithSources sets the sources queried before the first iteration.
func WithSources(srcs []sources.Source, limit int) Option {
	return func(r *Runner) {
		r.sources = srcs
		r.prefetchLimit = limit
	}
}

// WithArchiver archives each finalized session.
func WithArchiver(a Archiver) Option {
	return func(r *Runner) { r.archiver = a }
}

// WithRecorders records a trajectory for each session.
func WithRecorders(f RecorderFactory) Option {
	return func(r *Runner) { r.recorders = f }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithOutput sets the writer for progress lines.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

// WithCompletion sets the completion token and whether the bare token
// counts as a marker.
func WithCompletion(token string, lenient bool) Option {
	return func(r *Runner) {
		r.promise = token
		r.lenient = lenient
	}
}

// WithSafetyLimit replaces DefaultSafetyLimit.
func WithSafetyLimit(n int) Option {
	return func(r *Runner) { r.safetyLimit = n }
}

// WithMaxRetries sets how often a failed agent call is retried.
func WithMaxRetries(n int) Option {
	return func(r *Runner) { r.maxRetries = n }
}

// WithSessionOptions passes options through to every session.
func WithSessionOptions(opts ...ralph.SessionOption) Option {
	return func(r *Runner) { r.sessionOpts = append(r.sessionOpts, opts...) }
}

// WithClock replaces time.Now for run durations.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New creates a Runner for a.
func New(a agent.Agent, opts ...Option) *Runner {
	r := &Runner{
		agent:       a,
		out:         io.Discard,
		safetyLimit: DefaultSafetyLimit,
		maxRetries:  2,
		now:         time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if r.safetyLimit <= 0 {
		r.safetyLimit = DefaultSafetyLimit
	}
	return r
}

// Run researches query at the given depth. The session is finalized on
// every path that got past initialization, including cancellation and agent
// failure; in those cases the returned Summary is filled in alongside the
// error.
func (r *Runner) Run(ctx context.Context, query string, depth *types.DepthConfig) (Summary, error) {
	start := r.now()
	opts := append([]ralph.SessionOption{
		ralph.WithSessionCompletionPromise(r.promise),
		ralph.WithLogger(r.logger),
	}, r.sessionOpts...)
	sess := ralph.NewSession(query, depth, opts...)

	if err := sess.Initialize(); err != nil {
		return Summary{}, fmt.Errorf("initializing session: %w", err)
	}
	loop := sess.Loop()
	depthName := ""
	if depth != nil {
		depthName = string(depth.Depth)
	}

	limit := loop.MaxIterations()
	if limit == 0 {
		limit = r.safetyLimit
	}
	fmt.Fprintf(r.out, "session %s\n", sess.ID())
	fmt.Fprintf(r.out, "workspace: %s\n", sess.Dir())
	fmt.Fprintf(r.out, "depth: %s, max iterations: %s, threshold: %.2f\n",
		depthName, iterationCap(loop.MaxIterations()), loop.Threshold())

	rec := r.openRecorder(sess.Dir())
	loopSpan := rec.Start(trajectory.EventLoopStart, map[string]string{
		"session_id": sess.ID(),
		"query":      query,
		"depth":      depthName,
	})

	matcher := ralph.CompletionMatcher{Token: loop.State().CompletionPromise, Lenient: r.lenient}
	stop, runErr := r.iterate(ctx, sess, matcher, limit, loopSpan)

	summaryPath, err := sess.Finalize()
	if err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("finalizing session: %w", err))
	}

	state := sess.State()
	sum := Summary{
		SessionID:   sess.ID(),
		Dir:         sess.Dir(),
		SummaryPath: summaryPath,
		Iterations:  state.Iteration,
		Findings:    state.FindingsCount,
		Coverage:    state.CoverageScore,
		StopReason:  stop,
	}

	// Archiving and closing the trajectory outlive a cancelled run.
	bg := context.WithoutCancel(ctx)
	if r.archiver != nil && summaryPath != "" {
		err := r.archiver.ArchiveSession(bg, archive.SessionRecord{
			ID:          sess.ID(),
			Query:       query,
			Depth:       depthName,
			Iterations:  sum.Iterations,
			Coverage:    sum.Coverage,
			StopReason:  string(stop),
			StartedAt:   state.StartedAt,
			CompletedAt: r.now(),
		}, sess.Findings())
		if err != nil {
			fmt.Fprintf(r.out, "warning: archiving session failed: %v\n", err)
			r.logger.Warn("archive failed", "session", sess.ID(), "error", err)
		} else {
			fmt.Fprintf(r.out, "archived session %s (%d findings)\n", sess.ID(), sum.Findings)
		}
	}

	loopSpan.Set("stop_reason", string(stop))
	loopSpan.Set("findings", strconv.Itoa(sum.Findings))
	loopSpan.Set("coverage", strconv.FormatFloat(sum.Coverage, 'f', 4, 64))
	loopSpan.End(runErr)
	rec.Record(trajectory.EventLoopEnd, map[string]string{"stop_reason": string(stop)})
	sum.Trajectory = rec.Summary()
	if err := rec.Close(bg); err != nil {
		r.logger.Warn("closing trajectory failed", "error", err)
	}

	sum.Duration = r.now().Sub(start)
	fmt.Fprintf(r.out, "\nstopped: %s after %d iterations\n", stop, sum.Iterations)
	fmt.Fprintf(r.out, "findings: %d, coverage: %.2f%%\n", sum.Findings, sum.Coverage*100)
	if summaryPath != "" {
		fmt.Fprintf(r.out, "summary: %s\n", summaryPath)
	}
	return sum, runErr
}

// iterate runs iterations until a stop condition holds. It returns the
// reason and, for agent and session failures, the error.
func (r *Runner) iterate(ctx context.Context, sess *ralph.Session, matcher ralph.CompletionMatcher, limit int, parent *trajectory.Span) (ralph.StopReason, error) {
	loop := sess.Loop()
	for {
		if ctx.Err() != nil {
			return ralph.StopCancelled, nil
		}
		iteration := sess.State().Iteration
		fmt.Fprintf(r.out, "\niteration %d/%s\n", iteration, iterationCap(loop.MaxIterations()))

		span := parent.Start(trajectory.EventIterationStart, map[string]string{"iteration": strconv.Itoa(iteration)})
		stop, err := r.runIteration(ctx, sess, matcher, iteration, span)
		span.Set("findings", strconv.Itoa(sess.State().FindingsCount))
		span.End(err)
		parent.Start(trajectory.EventIterationEnd, map[string]string{
			"iteration": strconv.Itoa(iteration),
			"coverage":  strconv.FormatFloat(sess.Coverage(), 'f', 4, 64),
		}).End(nil)
		if stop != ralph.StopNone || err != nil {
			return stop, err
		}

		if loop.MaxIterations() == 0 && iteration >= limit {
			fmt.Fprintf(r.out, "safety limit of %d iterations reached\n", limit)
			return ralph.StopSafetyLimit, nil
		}

		done, err := sess.CompleteIteration()
		if err != nil {
			return ralph.StopNone, err
		}
		if done {
			return loop.StopReason(), nil
		}
	}
}

// runIteration performs one iteration. A non-empty StopReason ends the loop.
func (r *Runner) runIteration(ctx context.Context, sess *ralph.Session, matcher ralph.CompletionMatcher, iteration int, span *trajectory.Span) (ralph.StopReason, error) {
	if iteration == 1 && len(r.sources) > 0 && r.prefetchLimit > 0 {
		if err := r.prefetch(ctx, sess, span); err != nil {
			return ralph.StopNone, err
		}
	}

	prompt, err := sess.Prompt()
	if err != nil {
		return ralph.StopNone, fmt.Errorf("rendering prompt: %w", err)
	}
	prompt, err = agent.WithReportingInstructions(prompt)
	if err != nil {
		return ralph.StopNone, err
	}

	call := span.Start(trajectory.EventAgentCall, map[string]string{"agent": r.agent.Name()})
	resp, err := agent.RunWithRetry(ctx, r.agent, prompt, r.maxRetries)
	call.Set("findings", strconv.Itoa(len(resp.Findings)))
	call.End(err)
	if err != nil {
		if ctx.Err() != nil {
			fmt.Fprintf(r.out, "cancelled during iteration %d\n", iteration)
			return ralph.StopCancelled, nil
		}
		return ralph.StopAgentError, fmt.Errorf("iteration %d: %w", iteration, err)
	}

	for _, reason := range resp.Rejected {
		fmt.Fprintf(r.out, "warning: rejected finding: %s\n", reason)
	}
	for _, f := range resp.Findings {
		if err := r.addFinding(sess, f, span); err != nil {
			return ralph.StopNone, err
		}
	}
	fmt.Fprintf(r.out, "agent reported %d findings, coverage %.2f%%\n", len(resp.Findings), sess.Coverage()*100)

	if matcher.Matches(resp.Text) {
		fmt.Fprintln(r.out, "completion marker found")
		return ralph.StopMarker, nil
	}
	return ralph.StopNone, nil
}

func (r *Runner) prefetch(ctx context.Context, sess *ralph.Session, span *trajectory.Span) error {
	call := span.Start(trajectory.EventSourceCall, map[string]string{"sources": strconv.Itoa(len(r.sources))})
	out, err := sources.Gather(ctx, r.sources, sess.Query(), r.prefetchLimit, r.out)
	if err != nil {
		call.End(err)
		return fmt.Errorf("prefetching sources: %w", err)
	}
	call.Set("findings", strconv.Itoa(len(out.Findings)))
	call.Set("failed", strconv.Itoa(len(out.SourceErrors)))
	call.End(nil)

	for _, f := range out.Findings {
		if err := r.addFinding(sess, f, span); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) addFinding(sess *ralph.Session, f types.Finding, span *trajectory.Span) error {
	if err := sess.AddFinding(f); err != nil {
		return fmt.Errorf("adding finding: %w", err)
	}
	attrs := map[string]string{"title": f.SourceTitle, "url": f.SourceURL}
	if f.Quality != nil {
		attrs["source_type"] = f.Quality.SourceType.String()
	}
	span.Start(trajectory.EventFindingAdded, attrs).End(nil)
	return nil
}

func (r *Runner) openRecorder(dir string) *trajectory.Recorder {
	if r.recorders == nil {
		return nil
	}
	rec, err := r.recorders(dir)
	if err != nil {
		fmt.Fprintf(r.out, "warning: trajectory disabled: %v\n", err)
		return nil
	}
	return rec
}

func iterationCap(n int) string {
	if n == 0 {
		return "∞"
	}
	return strconv.Itoa(n)
}
