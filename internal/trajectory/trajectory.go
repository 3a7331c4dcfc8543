// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package trajectory records what a research run did as a sequence of
// spans: the loop, each iteration, agent calls, source calls and added
// findings. Spans are written as JSON lines when they end and may also be
// exported to an OTLP collector.
//
// A nil *Recorder and a nil *Span are valid and record nothing, so callers
// never need to check whether recording is enabled.
package trajectory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileName is the trajectory file written into each session directory.
const FileName = "trajectory.jsonl"

// EventType identifies what a span covers.
type EventType string

const (
	EventLoopStart      EventType = "loop_start"
	EventLoopEnd        EventType = "loop_end"
	EventIterationStart EventType = "iteration_start"
	EventIterationEnd   EventType = "iteration_end"
	EventAgentCall      EventType = "agent_call"
	EventSourceCall     EventType = "source_call"
	EventFindingAdded   EventType = "finding_added"
)

// Event is one line of trajectory.jsonl.
type Event struct {
	RunID      string            `json:"run_id"`
	SpanID     string            `json:"span_id"`
	ParentID   string            `json:"parent_id,omitempty"`
	Type       EventType         `json:"type"`
	Timestamp  time.Time         `json:"timestamp"`
	DurationMS int64             `json:"duration_ms"`
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Summary counts ended spans.
type Summary struct {
	RunID   string `json:"run_id"`
	Total   int    `json:"total"`
	Success int    `json:"success"`
	Failed  int    `json:"failed"`
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(r *Recorder) { r.clock = clock }
}

// WithRunID sets the run identifier instead of a random UUID.
func WithRunID(id string) Option {
	return func(r *Recorder) { r.runID = id }
}

// WithExporter mirrors every span to an OTLP exporter.
func WithExporter(e *OTLPExporter) Option {
	return func(r *Recorder) { r.exporter = e }
}

// Recorder writes spans as JSON lines. It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	enc      *json.Encoder
	closer   io.Closer
	runID    string
	clock    func() time.Time
	exporter *OTLPExporter
	summary  Summary
	writeErr error
}

// New returns a Recorder writing to w.
func New(w io.Writer, opts ...Option) *Recorder {
	r := &Recorder{
		enc:   json.NewEncoder(w),
		clock: time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	r.summary.RunID = r.runID
	return r
}

// Open creates (or truncates) trajectory.jsonl in dir and returns a
// Recorder writing to it. Close releases the file.
func Open(dir string, opts ...Option) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating trajectory directory %s: %w", dir, err)
	}
	f, err := os.Create(filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("creating trajectory file: %w", err)
	}
	r := New(f, opts...)
	r.closer = f
	return r, nil
}

// RunID returns the run identifier shared by all spans.
func (r *Recorder) RunID() string {
	if r == nil {
		return ""
	}
	return r.runID
}

// Start opens a root span.
func (r *Recorder) Start(name EventType, attrs map[string]string) *Span {
	return r.start(nil, name, attrs)
}

// Record writes an instantaneous successful span.
func (r *Recorder) Record(name EventType, attrs map[string]string) {
	r.Start(name, attrs).End(nil)
}

// Summary returns the counts of spans ended so far.
func (r *Recorder) Summary() Summary {
	if r == nil {
		return Summary{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

// Err returns the first write error, if any. Recording continues past
// write failures so a full disk never stops a run.
func (r *Recorder) Err() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeErr
}

// Close flushes the exporter and closes the trajectory file.
func (r *Recorder) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	var firstErr error
	if err := r.exporter.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("shutting down exporter: %w", err)
	}
	if r.closer != nil {
		if err := r.closer.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing trajectory file: %w", err)
		}
	}
	return firstErr
}

func (r *Recorder) start(parent *Span, name EventType, attrs map[string]string) *Span {
	if r == nil {
		return nil
	}
	s := &Span{
		rec:   r,
		id:    uuid.NewString(),
		name:  name,
		start: r.clock(),
		attrs: attrs,
	}
	if parent != nil {
		s.parentID = parent.id
		s.otel = r.exporter.startSpan(parent.otel, name, s.start, attrs)
	} else {
		s.otel = r.exporter.startSpan(nil, name, s.start, attrs)
	}
	return s
}

func (r *Recorder) write(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Total++
	if ev.Success {
		r.summary.Success++
	} else {
		r.summary.Failed++
	}
	if err := r.enc.Encode(ev); err != nil && r.writeErr == nil {
		r.writeErr = err
	}
}

// Span is an open unit of work.
type Span struct {
	rec      *Recorder
	id       string
	parentID string
	name     EventType
	start    time.Time
	attrs    map[string]string
	otel     *exportSpan
	once     sync.Once
}

// Start opens a child span.
func (s *Span) Start(name EventType, attrs map[string]string) *Span {
	if s == nil {
		return nil
	}
	return s.rec.start(s, name, attrs)
}

// Set adds or replaces an attribute before the span ends.
func (s *Span) Set(key, value string) {
	if s == nil {
		return
	}
	if s.attrs == nil {
		s.attrs = make(map[string]string)
	}
	s.attrs[key] = value
}

// End closes the span, marking it failed when err is non-nil. Only the first
// call has any effect.
func (s *Span) End(err error) {
	if s == nil {
		return
	}
	s.once.Do(func() {
		end := s.rec.clock()
		ev := Event{
			RunID:      s.rec.runID,
			SpanID:     s.id,
			ParentID:   s.parentID,
			Type:       s.name,
			Timestamp:  s.start,
			DurationMS: end.Sub(s.start).Milliseconds(),
			Success:    err == nil,
			Attributes: s.attrs,
		}
		if err != nil {
			ev.Error = err.Error()
		}
		s.rec.write(ev)
		s.otel.end(end, s.attrs, err)
	})
}
