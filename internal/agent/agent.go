// Package agent wraps the language-model call at the heart of each research
// iteration. The driver hands an agent the iteration prompt and receives the
// raw text together with any findings the model reported.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pdiddy/deep-research/pkg/types"
)

// Agent abstracts the model provider so tests can supply a fake. Each call is
// one iteration's worth of work.
type Agent interface {
	Name() string
	Run(ctx context.Context, prompt string) (Response, error)
}

// Response is what one agent call produced.
type Response struct {
	// Text is the full model output, scanned by the driver for the
	// completion marker.
	Text string

	// Findings are the findings reported in the output's JSON block.
	Findings []types.Finding

	// Rejected describes reported findings that failed validation.
	Rejected []string
}

// reportedFindings is the JSON block the model is asked to emit.
type reportedFindings struct {
	Findings []reportedFinding `json:"findings"`
}

// reportedFinding is a single finding as written by the model.
type reportedFinding struct {
	Content     string   `json:"content"`
	SourceURL   string   `json:"source_url"`
	SourceTitle string   `json:"source_title"`
	Confidence  float64  `json:"confidence"`
	SourceType  string   `json:"source_type"`
	Recency     *float64 `json:"recency"`
	Relevance   *float64 `json:"relevance"`
	VerifiedBy  []string `json:"verified_by"`
}

// ParseFindings extracts the findings block from model output. The block is
// the first ```json fence, or the whole output when it is a bare JSON object.
// Output without a block yields no findings. Invalid entries are skipped and
// described in the second return value.
func ParseFindings(text string) ([]types.Finding, []string) {
	block, ok := findingsBlock(text)
	if !ok {
		return nil, nil
	}
	var reported reportedFindings
	if err := json.Unmarshal([]byte(block), &reported); err != nil {
		return nil, []string{fmt.Sprintf("findings block: invalid JSON: %v", err)}
	}
	return convertFindings(reported.Findings)
}

func findingsBlock(text string) (string, bool) {
	const fence = "```json"
	if i := strings.Index(text, fence); i >= 0 {
		rest := text[i+len(fence):]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j]), true
		}
		return "", false
	}
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return trimmed, true
	}
	return "", false
}

// convertFindings validates reported findings and converts them. Findings
// without a source type carry no quality assessment.
func convertFindings(items []reportedFinding) ([]types.Finding, []string) {
	var result []types.Finding
	var problems []string

	for i, item := range items {
		if strings.TrimSpace(item.Content) == "" {
			problems = append(problems, fmt.Sprintf("finding %d: empty content", i))
			continue
		}

		f := types.Finding{
			Content:     item.Content,
			SourceURL:   item.SourceURL,
			SourceTitle: item.SourceTitle,
			Confidence:  clamp01(item.Confidence),
			VerifiedBy:  item.VerifiedBy,
		}

		if item.SourceType != "" {
			st, err := types.ParseSourceType(item.SourceType)
			if err != nil {
				problems = append(problems, fmt.Sprintf("finding %d: %v", i, err))
				continue
			}
			opts := []types.QualityOption{types.WithVerifications(len(item.VerifiedBy))}
			if item.Recency != nil {
				opts = append(opts, types.WithRecency(clamp01(*item.Recency)))
			}
			if item.Relevance != nil {
				opts = append(opts, types.WithRelevance(clamp01(*item.Relevance)))
			}
			q := types.NewSourceQuality(st, opts...)
			f.Quality = &q
		}

		result = append(result, f)
	}

	return result, problems
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(v, 1))
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// RunWithRetry calls the agent, retrying failures with exponential backoff.
// A negative maxRetries is treated as 0.
func RunWithRetry(ctx context.Context, a Agent, prompt string, maxRetries int) (Response, error) {
	maxRetries = max(maxRetries, 0)
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := a.Run(ctx, prompt)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		lastErr = err
	}
	return Response{}, fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}
