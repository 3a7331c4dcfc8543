// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sources turns search tools into findings. Each Source queries one
// kind of provenance (web, arXiv, GitHub code, library docs, local files)
// and attaches a SourceQuality derived from rank and publication age.
package sources

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/pdiddy/deep-research/internal/httputil"
	"github.com/pdiddy/deep-research/pkg/types"
)

// Secret keys read by the network sources.
const (
	TavilyKey   = "tavily-api-key"
	Context7Key = "context7-api-key"
	ScholarKey  = "semantic-scholar-api-key"
)

// searchConfidence is the confidence given to raw search hits. They are
// unverified until the agent corroborates them.
const searchConfidence = 0.6

// neutralRecency is used when a source has no publication date.
const neutralRecency = 0.5

// maxContentLen bounds the evidence text stored per finding.
const maxContentLen = 1000

// Source searches a single tool. Each source implements this interface per
// the Strategy pattern.
type Source interface {
	Name() string
	Type() types.SourceType
	Find(ctx context.Context, query string, limit int) ([]types.Finding, error)
}

// Keys supplies API keys by name.
type Keys interface {
	Get(key, fallback string) string
}

// GatherOutput holds the findings from all sources and per-source failures.
type GatherOutput struct {
	Findings     []types.Finding
	SourceErrors []string
}

// Gather queries every source concurrently. Findings keep the order of
// srcs. A failing source is reported on w and in SourceErrors without
// aborting the others.
func Gather(ctx context.Context, srcs []Source, query string, limit int, w io.Writer) (GatherOutput, error) {
	if strings.TrimSpace(query) == "" {
		return GatherOutput{}, fmt.Errorf("query is empty")
	}

	results := make([][]types.Finding, len(srcs))
	errs := make([]error, len(srcs))
	var wg sync.WaitGroup
	for i, s := range srcs {
		wg.Add(1)
		go func(i int, s Source) {
			defer wg.Done()
			results[i], errs[i] = s.Find(ctx, query, limit)
		}(i, s)
	}
	wg.Wait()

	var out GatherOutput
	for i, s := range srcs {
		if errs[i] != nil {
			out.SourceErrors = append(out.SourceErrors, fmt.Sprintf("%s: %v", s.Name(), errs[i]))
			fmt.Fprintf(w, "warning: source %s failed: %v\n", s.Name(), errs[i])
			continue
		}
		fmt.Fprintf(w, "source %s: %d findings\n", s.Name(), len(results[i]))
		out.Findings = append(out.Findings, results[i]...)
	}
	return out, nil
}

// ForTypes builds the sources for the allowed types. Sources that need a
// missing API key are skipped and named in the second return value.
func ForTypes(allowed []types.SourceType, cfg types.SearchConfig, keys Keys, logger *slog.Logger) ([]Source, []string) {
	req := httputil.NewRequester(cfg.HTTPConfig, cfg.MaxRetries, logger)

	var srcs []Source
	var skipped []string
	for _, t := range allowed {
		switch t {
		case types.SourceWeb:
			key := keys.Get(TavilyKey, "")
			if key == "" {
				skipped = append(skipped, fmt.Sprintf("web: no %s secret", TavilyKey))
				continue
			}
			srcs = append(srcs, &WebSource{Requester: req, APIKey: key})
		case types.SourceArxiv:
			srcs = append(srcs,
				&ArxivSource{Requester: req},
				&ScholarSource{Requester: req, APIKey: keys.Get(ScholarKey, "")})
		case types.SourceGitHub:
			srcs = append(srcs, &GitHubSource{Requester: req})
		case types.SourceDocs:
			srcs = append(srcs, &DocsSource{Requester: req, APIKey: keys.Get(Context7Key, ""), Library: cfg.DocsLibrary})
		case types.SourceLocal:
			root := cfg.LocalRoot
			if root == "" {
				root = "."
			}
			srcs = append(srcs, &LocalSource{Root: root})
		}
	}
	return srcs, skipped
}

// rankRelevance scores a result by its position: 1.0 for the first and
// decreasing linearly to 0.1 for the last.
func rankRelevance(i, total int) float64 {
	if total <= 1 {
		return 1.0
	}
	return 1.0 - float64(i)/float64(total-1)*0.9
}

// recencyScore rates a publication date: 1.0 within a year, losing 0.2 per
// further year down to 0.2. An unknown date is neutral (0.5).
func recencyScore(published, now time.Time) float64 {
	if published.IsZero() {
		return neutralRecency
	}
	years := now.Sub(published).Hours() / (24 * 365)
	if years <= 1 {
		return 1.0
	}
	return math.Max(0.2, 1.0-0.2*(years-1))
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

// newFinding builds a search-hit finding with quality for t.
func newFinding(t types.SourceType, title, url, content string, relevance, recency float64) types.Finding {
	q := types.NewSourceQuality(t, types.WithRelevance(relevance), types.WithRecency(recency))
	return types.Finding{
		Content:     truncate(content, maxContentLen),
		SourceURL:   url,
		SourceTitle: strings.TrimSpace(title),
		Confidence:  searchConfidence,
		Quality:     &q,
	}
}

// now is the clock used for recency scoring. Tests override it.
var now = time.Now
