// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/pdiddy/deep-research/internal/httputil"
	"github.com/pdiddy/deep-research/pkg/types"
)

// grepAPIBase is the grep.app code search endpoint. Declared as a var so
// tests can substitute an httptest server.
var grepAPIBase = "https://grep.app/api/search"

const maxSnippetLen = 500

var htmlTag = regexp.MustCompile(`<[^>]+>`)

// GitHubSource finds real code in public GitHub repositories through
// grep.app. It works best with literal code tokens rather than concepts.
type GitHubSource struct {
	Requester httputil.Requester
}

// Name returns the source identifier.
func (s *GitHubSource) Name() string { return "github" }

// Type returns SourceGitHub.
func (s *GitHubSource) Type() types.SourceType { return types.SourceGitHub }

type grepResponse struct {
	Hits struct {
		Hits []grepHit `json:"hits"`
	} `json:"hits"`
}

type grepHit struct {
	Repo    string `json:"repo"`
	Path    string `json:"path"`
	Branch  string `json:"branch"`
	Content struct {
		Snippet string `json:"snippet"`
	} `json:"content"`
}

// Find returns one finding per matching file with the code snippet as
// content. Publication dates are unknown, so recency stays neutral.
func (s *GitHubSource) Find(ctx context.Context, query string, limit int) ([]types.Finding, error) {
	if limit <= 0 {
		limit = 5
	}
	params := url.Values{
		"q":      {query},
		"case":   {"false"},
		"words":  {"false"},
		"regexp": {"false"},
	}
	var resp grepResponse
	if err := s.Requester.GetJSON(ctx, grepAPIBase+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("grep.app request: %w", err)
	}

	hits := resp.Hits.Hits
	if len(hits) > limit {
		hits = hits[:limit]
	}
	var findings []types.Finding
	for i, h := range hits {
		branch := h.Branch
		if branch == "" {
			branch = "main"
		}
		fileURL := fmt.Sprintf("https://github.com/%s/blob/%s/%s", h.Repo, branch, h.Path)
		title := h.Repo + ": " + h.Path
		findings = append(findings, newFinding(types.SourceGitHub, title, fileURL,
			cleanSnippet(h.Content.Snippet), rankRelevance(i, len(hits)), neutralRecency))
	}
	return findings, nil
}

// cleanSnippet strips markup from a highlighted snippet, drops blank lines,
// and truncates it.
func cleanSnippet(snippet string) string {
	text := html.UnescapeString(htmlTag.ReplaceAllString(snippet, ""))
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return truncate(strings.Join(lines, "\n"), maxSnippetLen)
}
