package archive

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/deep-research/pkg/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(types.ArchiveConfig{Dir: filepath.Join(t.TempDir(), "archive"), MaxResults: 20})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func quality(st types.SourceType) *types.SourceQuality {
	q := types.NewSourceQuality(st, types.WithRelevance(1), types.WithRecency(1))
	return &q
}

func sampleFindings() []types.Finding {
	return []types.Finding{
		{
			Content:     "Go generics use GC shape stenciling with dictionaries",
			SourceURL:   "https://arxiv.org/abs/2201.00001",
			SourceTitle: "Generics implementation in Go",
			Confidence:  0.9,
			Quality:     quality(types.SourceArxiv),
		},
		{
			Content:     "Type parameters were released in Go 1.18",
			SourceURL:   "https://go.dev/blog/go1.18",
			SourceTitle: "Go 1.18 is released",
			Confidence:  0.95,
			VerifiedBy:  []string{"https://go.dev/doc/go1.18"},
			Quality:     quality(types.SourceDocs),
		},
		{
			Content:     "Some blog claims generics are slow",
			SourceURL:   "https://example.com/blog",
			SourceTitle: "A blog",
			Confidence:  0.4,
		},
	}
}

func sampleRecord(id string, started time.Time) SessionRecord {
	return SessionRecord{
		ID:          id,
		Query:       "how are go generics implemented",
		Depth:       "standard",
		Iterations:  4,
		Coverage:    0.72,
		StopReason:  "coverage_reached",
		StartedAt:   started,
		CompletedAt: started.Add(10 * time.Minute),
	}
}

func TestArchiveAndSearch(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	if err := store.ArchiveSession(ctx, sampleRecord("20260314_092653", start), sampleFindings()); err != nil {
		t.Fatalf("ArchiveSession: %v", err)
	}

	tests := []struct {
		name string
		opts QueryOptions
		want []string
	}{
		{"fts content", QueryOptions{Query: "stenciling"}, []string{"https://arxiv.org/abs/2201.00001"}},
		{"fts title", QueryOptions{Query: "released"}, []string{"https://go.dev/blog/go1.18"}},
		{"source type", QueryOptions{SourceType: types.SourceDocs}, []string{"https://go.dev/blog/go1.18"}},
		{"min confidence", QueryOptions{MinConfidence: 0.9}, []string{"https://arxiv.org/abs/2201.00001", "https://go.dev/blog/go1.18"}},
		{"session order", QueryOptions{SessionID: "20260314_092653"}, []string{
			"https://arxiv.org/abs/2201.00001", "https://go.dev/blog/go1.18", "https://example.com/blog",
		}},
		{"max results", QueryOptions{MaxResults: 1}, []string{"https://arxiv.org/abs/2201.00001"}},
		{"no match", QueryOptions{Query: "kubernetes"}, nil},
		{"unknown session", QueryOptions{SessionID: "nope"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := store.Search(ctx, tt.opts)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			var got []string
			for _, r := range results {
				got = append(got, r.SourceURL)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("result %d = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSearchResultFields(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	findings := sampleFindings()
	if err := store.ArchiveSession(ctx, sampleRecord("s1", time.Now()), findings); err != nil {
		t.Fatal(err)
	}

	results, err := store.Search(ctx, QueryOptions{SessionID: "s1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	docs := results[1]
	if docs.SessionQuery != "how are go generics implemented" {
		t.Errorf("SessionQuery = %q", docs.SessionQuery)
	}
	if docs.SourceType != "docs" {
		t.Errorf("SourceType = %q, want docs", docs.SourceType)
	}
	if docs.QualityScore == nil {
		t.Fatal("QualityScore is nil")
	}
	if got, want := *docs.QualityScore, findings[1].Quality.OverallScore(); got != want {
		t.Errorf("QualityScore = %v, want %v", got, want)
	}
	if got, want := docs.WeightedConfidence, findings[1].WeightedConfidence(); got != want {
		t.Errorf("WeightedConfidence = %v, want %v", got, want)
	}
	if len(docs.VerifiedBy) != 1 || docs.VerifiedBy[0] != "https://go.dev/doc/go1.18" {
		t.Errorf("VerifiedBy = %v", docs.VerifiedBy)
	}
	if docs.ID == "" || docs.ID == results[0].ID {
		t.Errorf("finding IDs not unique: %q, %q", docs.ID, results[0].ID)
	}

	blog := results[2]
	if blog.QualityScore != nil || blog.SourceType != "" {
		t.Errorf("unqualified finding got quality %v type %q", blog.QualityScore, blog.SourceType)
	}
	if blog.WeightedConfidence != 0.4 {
		t.Errorf("WeightedConfidence = %v, want 0.4", blog.WeightedConfidence)
	}
}

func TestArchiveReplacesSession(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	rec := sampleRecord("s1", time.Now())

	if err := store.ArchiveSession(ctx, rec, sampleFindings()); err != nil {
		t.Fatal(err)
	}
	rec.Iterations = 6
	if err := store.ArchiveSession(ctx, rec, sampleFindings()[:1]); err != nil {
		t.Fatal(err)
	}

	results, err := store.Search(ctx, QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("got %d findings after re-archive, want 1", len(results))
	}
	results, err = store.Search(ctx, QueryOptions{Query: "released"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("FTS still returns replaced finding")
	}

	sessions, err := store.Sessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].Iterations != 6 || sessions[0].Findings != 1 {
		t.Errorf("sessions = %+v", sessions)
	}
}

func TestArchiveRequiresID(t *testing.T) {
	store := testStore(t)
	if err := store.ArchiveSession(context.Background(), SessionRecord{Query: "q"}, nil); err == nil {
		t.Error("expected error for empty session ID")
	}
}

func TestSessionsNewestFirst(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "new", "mid"} {
		started := base.Add([]time.Duration{0, 48 * time.Hour, 24 * time.Hour}[i])
		if err := store.ArchiveSession(ctx, sampleRecord(id, started), nil); err != nil {
			t.Fatal(err)
		}
	}

	sessions, err := store.Sessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, s := range sessions {
		ids = append(ids, s.ID)
	}
	want := []string{"new", "mid", "old"}
	if len(ids) != 3 || ids[0] != want[0] || ids[1] != want[1] || ids[2] != want[2] {
		t.Errorf("order = %v, want %v", ids, want)
	}
	if !sessions[2].StartedAt.Equal(base) {
		t.Errorf("StartedAt = %v, want %v", sessions[2].StartedAt, base)
	}
	if sessions[0].StopReason != "coverage_reached" || sessions[0].Coverage != 0.72 {
		t.Errorf("session fields = %+v", sessions[0])
	}
}

func TestReopenKeepsData(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "archive")
	store, err := Open(types.ArchiveConfig{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.ArchiveSession(context.Background(), sampleRecord("s1", time.Now()), sampleFindings()); err != nil {
		t.Fatal(err)
	}
	store.Close()

	store, err = Open(types.ArchiveConfig{Dir: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	results, err := store.Search(context.Background(), QueryOptions{Query: "generics"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results after reopen, want 2", len(results))
	}
}

func TestExport(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	if err := store.ArchiveSession(ctx, sampleRecord("s1", time.Now()), sampleFindings()); err != nil {
		t.Fatal(err)
	}

	yamlPath, err := store.ExportYAML(ctx, QueryOptions{SourceType: types.SourceArxiv})
	if err != nil {
		t.Fatalf("ExportYAML: %v", err)
	}
	if filepath.Base(yamlPath) != "export.yaml" {
		t.Errorf("path = %s", yamlPath)
	}
	data, err := os.ReadFile(yamlPath)
	if err != nil {
		t.Fatal(err)
	}
	var fromYAML []Result
	if err := yaml.Unmarshal(data, &fromYAML); err != nil {
		t.Fatal(err)
	}
	if len(fromYAML) != 1 || fromYAML[0].SourceType != "arxiv" {
		t.Errorf("YAML export = %+v", fromYAML)
	}

	jsonPath, err := store.ExportJSON(ctx, QueryOptions{})
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	data, err = os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	var fromJSON []Result
	if err := json.Unmarshal(data, &fromJSON); err != nil {
		t.Fatal(err)
	}
	if len(fromJSON) != 3 {
		t.Errorf("JSON export has %d entries, want 3", len(fromJSON))
	}

	emptyPath, err := store.ExportJSON(ctx, QueryOptions{Query: "kubernetes"})
	if err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(emptyPath)
	if string(data) != "[]" {
		t.Errorf("empty export = %q, want []", data)
	}
}
