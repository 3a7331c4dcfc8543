// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/deep-research/pkg/types"
)

// QueryOptions holds parameters for archive searches.
type QueryOptions struct {
	// Query is the FTS5 full-text search string matched against finding
	// content and source titles.
	Query string

	// SourceType filters by the finding's source type. Zero means any.
	SourceType types.SourceType

	// SessionID filters by session.
	SessionID string

	// MinConfidence drops findings whose confidence is lower.
	MinConfidence float64

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// Result is an archived finding with the query of the session it came from.
type Result struct {
	ID                 string   `json:"id" yaml:"id"`
	SessionID          string   `json:"session_id" yaml:"session_id"`
	SessionQuery       string   `json:"session_query" yaml:"session_query"`
	Content            string   `json:"content" yaml:"content"`
	SourceURL          string   `json:"source_url" yaml:"source_url"`
	SourceTitle        string   `json:"source_title" yaml:"source_title"`
	Confidence         float64  `json:"confidence" yaml:"confidence"`
	WeightedConfidence float64  `json:"weighted_confidence" yaml:"weighted_confidence"`
	SourceType         string   `json:"source_type,omitempty" yaml:"source_type,omitempty"`
	QualityScore       *float64 `json:"quality_score,omitempty" yaml:"quality_score,omitempty"`
	VerifiedBy         []string `json:"verified_by,omitempty" yaml:"verified_by,omitempty"`
}

// Search queries the archive with optional full-text search and filters.
// Full-text results are ranked by relevance; filter-only results are
// ordered by session and position.
func (s *Store) Search(ctx context.Context, opts QueryOptions) ([]Result, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != ""
	)

	const columns = `f.id, f.session_id, s.query, f.content, f.source_url, f.source_title,
		f.confidence, f.weighted_confidence, f.source_type, f.quality_score, f.verified_by`

	if useFTS {
		qb.WriteString(`SELECT ` + columns + `
			FROM findings_fts
			JOIN findings f ON f.rowid = findings_fts.rowid
			JOIN sessions s ON s.id = f.session_id
			WHERE findings_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(`SELECT ` + columns + `
			FROM findings f
			JOIN sessions s ON s.id = f.session_id
			WHERE 1=1`)
	}

	if opts.SourceType.Valid() {
		qb.WriteString(` AND f.source_type = ?`)
		args = append(args, opts.SourceType.String())
	}
	if opts.SessionID != "" {
		qb.WriteString(` AND f.session_id = ?`)
		args = append(args, opts.SessionID)
	}
	if opts.MinConfidence > 0 {
		qb.WriteString(` AND f.confidence >= ?`)
		args = append(args, opts.MinConfidence)
	}

	if useFTS {
		qb.WriteString(` ORDER BY findings_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY f.session_id, f.position`)
	}
	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying archive: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			r            Result
			url, title   sql.NullString
			sourceType   sql.NullString
			quality      sql.NullFloat64
			verifiedJSON sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.SessionQuery, &r.Content, &url, &title,
			&r.Confidence, &r.WeightedConfidence, &sourceType, &quality, &verifiedJSON); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		r.SourceURL = url.String
		r.SourceTitle = title.String
		r.SourceType = sourceType.String
		if quality.Valid {
			q := quality.Float64
			r.QualityScore = &q
		}
		if verifiedJSON.Valid {
			json.Unmarshal([]byte(verifiedJSON.String), &r.VerifiedBy)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
