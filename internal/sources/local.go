// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"bufio"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/deep-research/pkg/types"
)

// maxLocalFileSize skips files too large to be worth scanning.
const maxLocalFileSize = 1 << 20

// skippedDirs are never descended into.
var skippedDirs = map[string]bool{
	".git":               true,
	".claude":            true,
	"node_modules":       true,
	"vendor":             true,
	"research_workspace": true,
}

// textExtensions are the file types the local source reads.
var textExtensions = map[string]bool{
	".md": true, ".txt": true, ".go": true, ".py": true, ".ts": true,
	".js": true, ".yaml": true, ".yml": true, ".json": true, ".rst": true,
}

// LocalSource searches text files under Root for the query terms.
type LocalSource struct {
	Root string
}

// Name returns the source identifier.
func (s *LocalSource) Name() string { return "local" }

// Type returns SourceLocal.
func (s *LocalSource) Type() types.SourceType { return types.SourceLocal }

type localMatch struct {
	path    string
	hits    int
	snippet string
	modTime time.Time
}

// Find ranks files by how many query term occurrences they contain and
// returns the best limit files with the first matching line as content.
// Recency comes from the file's modification time.
func (s *LocalSource) Find(ctx context.Context, query string, limit int) ([]types.Finding, error) {
	if limit <= 0 {
		limit = 10
	}
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	var matches []localMatch
	err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != s.Root && skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !textExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > maxLocalFileSize {
			return nil
		}
		if m, ok := scanFile(path, terms); ok {
			m.modTime = info.ModTime()
			matches = append(matches, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].hits != matches[j].hits {
			return matches[i].hits > matches[j].hits
		}
		return matches[i].path < matches[j].path
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	current := now()
	var findings []types.Finding
	for i, m := range matches {
		abs, err := filepath.Abs(m.path)
		if err != nil {
			abs = m.path
		}
		rel, err := filepath.Rel(s.Root, m.path)
		if err != nil {
			rel = m.path
		}
		findings = append(findings, newFinding(types.SourceLocal, rel, "file://"+filepath.ToSlash(abs),
			m.snippet, rankRelevance(i, len(matches)), recencyScore(m.modTime, current)))
	}
	return findings, nil
}

// queryTerms lowercases the query and drops words shorter than three
// characters.
func queryTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, ".,;:!?\"'()[]")
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

func scanFile(path string, terms []string) (localMatch, bool) {
	f, err := os.Open(path)
	if err != nil {
		return localMatch{}, false
	}
	defer f.Close()

	m := localMatch{path: path}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLocalFileSize)
	for sc.Scan() {
		line := sc.Text()
		lower := strings.ToLower(line)
		lineHits := 0
		for _, t := range terms {
			lineHits += strings.Count(lower, t)
		}
		if lineHits > 0 && m.snippet == "" {
			m.snippet = strings.TrimSpace(line)
		}
		m.hits += lineHits
	}
	return m, m.hits > 0
}
