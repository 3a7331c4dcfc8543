// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pdiddy/deep-research/internal/httputil"
	"github.com/pdiddy/deep-research/pkg/types"
)

// tavilyAPIBase is the Tavily search endpoint. Declared as a var so tests
// can substitute an httptest server.
var tavilyAPIBase = "https://api.tavily.com/search"

// WebSource searches the general web through the Tavily API.
type WebSource struct {
	Requester httputil.Requester
	APIKey    string
}

// Name returns the source identifier.
func (s *WebSource) Name() string { return "web" }

// Type returns SourceWeb.
func (s *WebSource) Type() types.SourceType { return types.SourceWeb }

type tavilyRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
	Topic      string `json:"topic"`
}

type tavilyResponse struct {
	Results []tavilyResult `json:"results"`
}

type tavilyResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date"`
}

// Find returns one finding per web result. Tavily's own score is used as
// relevance when present, otherwise the rank position.
func (s *WebSource) Find(ctx context.Context, query string, limit int) ([]types.Finding, error) {
	if limit <= 0 {
		limit = 5
	}
	header := http.Header{"Authorization": {"Bearer " + s.APIKey}}
	var resp tavilyResponse
	if err := s.Requester.PostJSON(ctx, tavilyAPIBase, header, tavilyRequest{
		Query:      query,
		MaxResults: limit,
		Topic:      "general",
	}, &resp); err != nil {
		return nil, fmt.Errorf("Tavily API request: %w", err)
	}

	current := now()
	var findings []types.Finding
	for i, r := range resp.Results {
		if r.URL == "" {
			continue
		}
		relevance := rankRelevance(i, len(resp.Results))
		if r.Score > 0 {
			relevance = clamp01(r.Score)
		}
		findings = append(findings, newFinding(types.SourceWeb, r.Title, r.URL, r.Content,
			relevance, recencyScore(parseLooseDate(r.PublishedDate), current)))
	}
	return findings, nil
}

// parseLooseDate accepts the date layouts seen in search APIs. Unparseable
// input yields the zero time.
func parseLooseDate(s string) time.Time {
	for _, layout := range []string{time.RFC3339, time.RFC1123, time.RFC1123Z, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func clamp01(v float64) float64 {
	return max(0, min(v, 1))
}
