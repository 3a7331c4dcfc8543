// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive keeps finalized research sessions and their findings in
// a SQLite database with a full-text index, so evidence gathered by past
// runs can be searched and exported.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/deep-research/pkg/types"
)

const (
	dbFile = "archive.db"

	// DefaultDir is used when ArchiveConfig.Dir is empty.
	DefaultDir = "research_workspace/archive"

	defaultMaxResults = 20
)

// SessionRecord is the archived summary of one research session.
type SessionRecord struct {
	ID          string    `json:"id" yaml:"id"`
	Query       string    `json:"query" yaml:"query"`
	Depth       string    `json:"depth" yaml:"depth"`
	Iterations  int       `json:"iterations" yaml:"iterations"`
	Findings    int       `json:"findings" yaml:"findings"`
	Coverage    float64   `json:"coverage" yaml:"coverage"`
	StopReason  string    `json:"stop_reason" yaml:"stop_reason"`
	StartedAt   time.Time `json:"started_at" yaml:"started_at"`
	CompletedAt time.Time `json:"completed_at" yaml:"completed_at"`
}

// Store manages the archive database.
type Store struct {
	db         *sql.DB
	dir        string
	maxResults int
}

// Open opens or creates the archive database at cfg.Dir/archive.db and
// creates the schema if it does not exist.
func Open(cfg types.ArchiveConfig) (*Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, dbFile)+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	s := &Store{db: db, dir: dir, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the directory holding the database and exports.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			depth TEXT,
			iterations INTEGER,
			findings INTEGER,
			coverage REAL,
			stop_reason TEXT,
			started_at TEXT,
			completed_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS findings (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			content TEXT NOT NULL,
			source_url TEXT,
			source_title TEXT,
			confidence REAL,
			weighted_confidence REAL,
			source_type TEXT,
			quality_score REAL,
			verified_by TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_findings_session ON findings(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_findings_source_type ON findings(source_type)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='findings_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		return nil
	}

	ftsStatements := []string{
		`CREATE VIRTUAL TABLE findings_fts USING fts5(content, source_title, content=findings, content_rowid=rowid)`,
		`CREATE TRIGGER findings_ai AFTER INSERT ON findings BEGIN
			INSERT INTO findings_fts(rowid, content, source_title) VALUES (new.rowid, new.content, new.source_title);
		END`,
		`CREATE TRIGGER findings_ad AFTER DELETE ON findings BEGIN
			INSERT INTO findings_fts(findings_fts, rowid, content, source_title) VALUES('delete', old.rowid, old.content, old.source_title);
		END`,
		`CREATE TRIGGER findings_au AFTER UPDATE ON findings BEGIN
			INSERT INTO findings_fts(findings_fts, rowid, content, source_title) VALUES('delete', old.rowid, old.content, old.source_title);
			INSERT INTO findings_fts(rowid, content, source_title) VALUES (new.rowid, new.content, new.source_title);
		END`,
	}
	for _, stmt := range ftsStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	return nil
}

// ArchiveSession stores rec and its findings in one transaction. Archiving
// the same session ID again replaces the earlier copy.
func (s *Store) ArchiveSession(ctx context.Context, rec SessionRecord, findings []types.Finding) error {
	if rec.ID == "" {
		return fmt.Errorf("session record has no ID")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM findings WHERE session_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("deleting old findings: %w", err)
	}

	rec.Findings = len(findings)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, query, depth, iterations, findings, coverage, stop_reason, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			query=excluded.query, depth=excluded.depth, iterations=excluded.iterations,
			findings=excluded.findings, coverage=excluded.coverage, stop_reason=excluded.stop_reason,
			started_at=excluded.started_at, completed_at=excluded.completed_at`,
		rec.ID, rec.Query, rec.Depth, rec.Iterations, rec.Findings, rec.Coverage, rec.StopReason,
		formatTime(rec.StartedAt), formatTime(rec.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO findings (id, session_id, position, content, source_url, source_title,
			confidence, weighted_confidence, source_type, quality_score, verified_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, f := range findings {
		var (
			sourceType string
			quality    sql.NullFloat64
		)
		if f.Quality != nil {
			sourceType = f.Quality.SourceType.String()
			quality = sql.NullFloat64{Float64: f.Quality.OverallScore(), Valid: true}
		}
		verifiedJSON, _ := json.Marshal(f.VerifiedBy)
		_, err := stmt.ExecContext(ctx,
			uuid.NewString(), rec.ID, i, f.Content, f.SourceURL, f.SourceTitle,
			f.Confidence, f.WeightedConfidence(), sourceType, quality, string(verifiedJSON),
		)
		if err != nil {
			return fmt.Errorf("inserting finding %d: %w", i+1, err)
		}
	}

	return tx.Commit()
}

// Sessions lists archived sessions, newest first.
func (s *Store) Sessions(ctx context.Context) ([]SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, depth, iterations, findings, coverage, stop_reason, started_at, completed_at
		 FROM sessions ORDER BY started_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var (
			rec                SessionRecord
			depth, stopReason  sql.NullString
			started, completed sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Query, &depth, &rec.Iterations, &rec.Findings,
			&rec.Coverage, &stopReason, &started, &completed); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		rec.Depth = depth.String
		rec.StopReason = stopReason.String
		rec.StartedAt = parseTime(started.String)
		rec.CompletedAt = parseTime(completed.String)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
