// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdiddy/deep-research/internal/httputil"
	"github.com/pdiddy/deep-research/pkg/types"
)

// Context7 endpoints. Declared as vars so tests can substitute an httptest
// server.
var (
	context7ResolveURL = "https://context7.com/api/v1/resolve-library-id"
	context7QueryURL   = "https://context7.com/api/v1/query-docs"
)

const docsMaxTokens = 5000

// DocsSource queries official library documentation through Context7. The
// library name is resolved to a Context7 ID first, then the docs are
// queried with the research question.
type DocsSource struct {
	Requester httputil.Requester
	APIKey    string
	// Library is the library to resolve. When empty the query is used.
	Library string
}

// Name returns the source identifier.
func (s *DocsSource) Name() string { return "docs" }

// Type returns SourceDocs.
func (s *DocsSource) Type() types.SourceType { return types.SourceDocs }

type context7Library struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Find returns at most one finding: the documentation excerpt for the best
// matching library. An unknown library is not an error.
func (s *DocsSource) Find(ctx context.Context, query string, _ int) ([]types.Finding, error) {
	library := s.Library
	if library == "" {
		library = query
	}
	var header http.Header
	if s.APIKey != "" {
		header = http.Header{"Authorization": {"Bearer " + s.APIKey}}
	}

	var resolved struct {
		Libraries []context7Library `json:"libraries"`
	}
	err := s.Requester.PostJSON(ctx, context7ResolveURL, header,
		map[string]string{"libraryName": library, "query": query}, &resolved)
	var se *httputil.StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolving library %q: %w", library, err)
	}
	if len(resolved.Libraries) == 0 || resolved.Libraries[0].ID == "" {
		return nil, nil
	}
	lib := resolved.Libraries[0]

	var docs struct {
		Content string `json:"content"`
	}
	if err := s.Requester.PostJSON(ctx, context7QueryURL, header, map[string]any{
		"libraryId": lib.ID,
		"query":     query,
		"maxTokens": docsMaxTokens,
	}, &docs); err != nil {
		return nil, fmt.Errorf("querying docs for %s: %w", lib.ID, err)
	}
	if strings.TrimSpace(docs.Content) == "" {
		return nil, nil
	}

	title := lib.Name
	if title == "" {
		title = library
	}
	return []types.Finding{newFinding(types.SourceDocs, title+" Official Documentation",
		"https://context7.com"+lib.ID, docs.Content, 1.0, neutralRecency)}, nil
}
