// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ralph

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

const (
	// DefaultCompletionPromise is the token the agent emits when done.
	DefaultCompletionPromise = "RESEARCH_COMPLETE"

	// DefaultStateDir holds the per-session loop state files.
	DefaultStateDir = ".claude"

	// DefaultStatePath is where a Loop created outside a session persists
	// its state. Sessions derive their own path with StatePath.
	DefaultStatePath = DefaultStateDir + "/research-ralph-loop.local.md"

	stateFilePrefix = "research-ralph-loop."
	stateFileSuffix = ".local.md"

	frontmatterMarker = "---"
)

// LoopState is the persisted progress of one research loop. Iteration starts
// at 1 and only increases.
type LoopState struct {
	Iteration         int
	MaxIterations     int // 0 means unbounded
	CompletionPromise string
	StartedAt         time.Time
	FindingsCount     int
	CoverageScore     float64
}

// NewLoopState returns the initial state for a loop capped at maxIterations.
func NewLoopState(maxIterations int, startedAt time.Time) LoopState {
	return LoopState{
		Iteration:         1,
		MaxIterations:     maxIterations,
		CompletionPromise: DefaultCompletionPromise,
		StartedAt:         startedAt.UTC(),
	}
}

// IsMaxReached reports whether a bounded loop has used its iteration budget.
// An unbounded loop (MaxIterations == 0) never reaches its maximum.
func (s LoopState) IsMaxReached() bool {
	return s.MaxIterations > 0 && s.Iteration >= s.MaxIterations
}

// StatePath returns the state file of session id under dir.
func StatePath(dir, id string) string {
	return filepath.Join(dir, stateFilePrefix+id+stateFileSuffix)
}

// FindStateFiles lists the session state files under dir, sorted by name.
func FindStateFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, stateFilePrefix+"*"+stateFileSuffix))
	if err != nil {
		return nil, fmt.Errorf("listing state files in %s: %w", dir, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// stateFrontmatter mirrors the keys of the persisted block.
type stateFrontmatter struct {
	Active            bool       `yaml:"active"`
	Iteration         stateInt   `yaml:"iteration"`
	MaxIterations     stateInt   `yaml:"max_iterations"`
	CompletionPromise string     `yaml:"completion_promise"`
	StartedAt         string     `yaml:"started_at"`
	FindingsCount     stateInt   `yaml:"findings_count"`
	CoverageScore     stateFloat `yaml:"coverage_score"`
}

// stateInt accepts only plain decimal integers. YAML would otherwise
// truncate 3.7 to 3 and read 0x10 as 16.
type stateInt int

func (n *stateInt) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected an integer", value.Line)
	}
	v, err := strconv.Atoi(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid integer %q", value.Line, value.Value)
	}
	*n = stateInt(v)
	return nil
}

// stateFloat accepts only decimal numbers.
type stateFloat float64

func (f *stateFloat) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", value.Line)
	}
	v, err := strconv.ParseFloat(value.Value, 64)
	if err != nil || strings.ContainsAny(value.Value, "xX_") {
		return fmt.Errorf("line %d: invalid number %q", value.Line, value.Value)
	}
	*f = stateFloat(v)
	return nil
}

// MarshalState renders the state as a "---" delimited key:value block
// followed by the free-form prompt text.
func MarshalState(s LoopState, prompt string) []byte {
	var b bytes.Buffer
	b.WriteString(frontmatterMarker + "\n")
	b.WriteString("active: true\n")
	fmt.Fprintf(&b, "iteration: %d\n", s.Iteration)
	fmt.Fprintf(&b, "max_iterations: %d\n", s.MaxIterations)
	fmt.Fprintf(&b, "completion_promise: %q\n", s.CompletionPromise)
	fmt.Fprintf(&b, "started_at: %q\n", s.StartedAt.UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(&b, "findings_count: %d\n", s.FindingsCount)
	fmt.Fprintf(&b, "coverage_score: %s\n", strconv.FormatFloat(s.CoverageScore, 'g', -1, 64))
	b.WriteString(frontmatterMarker + "\n\n")
	b.WriteString(prompt)
	if !strings.HasSuffix(prompt, "\n") {
		b.WriteString("\n")
	}
	return b.Bytes()
}

// ParseState reads a persisted block into s. Keys missing from the block
// leave the corresponding fields of s unchanged and unrecognized keys are
// ignored. Malformed values are an error; nothing is defaulted silently.
func ParseState(data []byte, s *LoopState) error {
	block, err := frontmatter(data)
	if err != nil {
		return err
	}

	fm := stateFrontmatter{
		Iteration:         stateInt(s.Iteration),
		MaxIterations:     stateInt(s.MaxIterations),
		CompletionPromise: s.CompletionPromise,
		FindingsCount:     stateInt(s.FindingsCount),
		CoverageScore:     stateFloat(s.CoverageScore),
	}
	if !s.StartedAt.IsZero() {
		fm.StartedAt = s.StartedAt.UTC().Format(time.RFC3339Nano)
	}

	if err := yaml.Unmarshal(block, &fm); err != nil {
		return fmt.Errorf("parsing loop state: %w", err)
	}

	var startedAt time.Time
	if fm.StartedAt != "" {
		startedAt, err = time.Parse(time.RFC3339Nano, fm.StartedAt)
		if err != nil {
			return fmt.Errorf("parsing loop state started_at: %w", err)
		}
	}

	s.Iteration = int(fm.Iteration)
	s.MaxIterations = int(fm.MaxIterations)
	s.CompletionPromise = fm.CompletionPromise
	s.StartedAt = startedAt
	s.FindingsCount = int(fm.FindingsCount)
	s.CoverageScore = float64(fm.CoverageScore)
	return nil
}

// frontmatter returns the lines between the first two marker lines.
func frontmatter(data []byte) ([]byte, error) {
	lines := strings.Split(string(data), "\n")
	start := -1
	for i, line := range lines {
		if strings.TrimSpace(line) != frontmatterMarker {
			continue
		}
		if start < 0 {
			start = i
			continue
		}
		return []byte(strings.Join(lines[start+1:i], "\n")), nil
	}
	return nil, errors.New("loop state has no frontmatter block")
}

// StateFile persists a LoopState at a fixed path. Each session owns its path
// exclusively.
type StateFile struct {
	Path string
}

// Save writes the state block, creating parent directories as needed. The
// block is written to a temporary file and renamed into place.
func (f StateFile) Save(s LoopState, prompt string) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, MarshalState(s, prompt), 0o644); err != nil {
		return fmt.Errorf("writing loop state: %w", err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		return fmt.Errorf("replacing loop state: %w", err)
	}
	return nil
}

// Load reads the persisted block into s. It returns false with no error when
// the file does not exist, which is the normal first-run case.
func (f StateFile) Load(s *LoopState) (bool, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading loop state %s: %w", f.Path, err)
	}
	if err := ParseState(data, s); err != nil {
		return false, fmt.Errorf("%s: %w", f.Path, err)
	}
	return true, nil
}

// Exists reports whether the state file is present.
func (f StateFile) Exists() bool {
	_, err := os.Stat(f.Path)
	return err == nil
}

// Remove deletes the state file. A missing file is not an error.
func (f StateFile) Remove() error {
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing loop state: %w", err)
	}
	return nil
}
