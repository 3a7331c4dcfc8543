// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/deep-research/internal/httputil"
	"github.com/pdiddy/deep-research/pkg/types"
)

// scholarAPIBase is the Semantic Scholar paper search endpoint. Declared
// as a var so tests can substitute an httptest server.
var scholarAPIBase = "https://api.semanticscholar.org/graph/v1/paper/search"

const scholarFields = "title,abstract,externalIds,year,publicationDate,url"

// ScholarSource queries Semantic Scholar for papers. It complements arXiv
// with published venues and reports its findings as academic (arxiv) type.
// The API key is optional; it raises the rate limit.
type ScholarSource struct {
	Requester httputil.Requester
	APIKey    string
}

// Name returns the source identifier.
func (s *ScholarSource) Name() string { return "semantic_scholar" }

// Type returns SourceArxiv.
func (s *ScholarSource) Type() types.SourceType { return types.SourceArxiv }

// Find searches by relevance. Papers without an abstract are skipped since
// they carry no evidence text.
func (s *ScholarSource) Find(ctx context.Context, query string, limit int) ([]types.Finding, error) {
	q := strings.Join(strings.Fields(query), " ")
	if q == "" {
		return nil, fmt.Errorf("empty Semantic Scholar query")
	}
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{
		"query":  {q},
		"limit":  {strconv.Itoa(limit)},
		"fields": {scholarFields},
	}
	var header http.Header
	if s.APIKey != "" {
		header = http.Header{"x-api-key": {s.APIKey}}
	}

	var sr scholarResponse
	if err := s.Requester.GetJSON(ctx, scholarAPIBase+"?"+params.Encode(), header, &sr); err != nil {
		return nil, fmt.Errorf("Semantic Scholar API request: %w", err)
	}

	total := len(sr.Data)
	current := now()
	var findings []types.Finding
	for i, paper := range sr.Data {
		if strings.TrimSpace(paper.Abstract) == "" {
			continue
		}
		findings = append(findings, newFinding(types.SourceArxiv, paper.Title, paper.link(),
			paper.Abstract, rankRelevance(i, total), recencyScore(paper.published(), current)))
	}
	return findings, nil
}

// Semantic Scholar API JSON structures.
type scholarResponse struct {
	Data []scholarPaper `json:"data"`
}

type scholarPaper struct {
	PaperID         string `json:"paperId"`
	Title           string `json:"title"`
	Abstract        string `json:"abstract"`
	Year            int    `json:"year"`
	PublicationDate string `json:"publicationDate"`
	URL             string `json:"url"`
	ExternalIDs     struct {
		DOI   string `json:"DOI"`
		ArXiv string `json:"ArXiv"`
	} `json:"externalIds"`
}

// link prefers the arXiv abstract page, then the DOI, then the Semantic
// Scholar page.
func (p scholarPaper) link() string {
	switch {
	case p.ExternalIDs.ArXiv != "":
		return "https://arxiv.org/abs/" + p.ExternalIDs.ArXiv
	case p.ExternalIDs.DOI != "":
		return "https://doi.org/" + p.ExternalIDs.DOI
	case p.URL != "":
		return p.URL
	default:
		return "https://www.semanticscholar.org/paper/" + p.PaperID
	}
}

func (p scholarPaper) published() time.Time {
	if p.PublicationDate != "" {
		if t, err := time.Parse("2006-01-02", p.PublicationDate); err == nil {
			return t
		}
	}
	if p.Year > 0 {
		return time.Date(p.Year, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Time{}
}
