// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/deep-research/internal/archive"
	"github.com/pdiddy/deep-research/pkg/types"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Search and export archived research sessions",
	Long: `Archive queries the SQLite database of finalized sessions written by
run --archive. Findings are indexed with FTS5 over content and source title.`,
}

// --- search subcommand ---

var archiveSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search archived findings with full-text search and filters",
	RunE:  runArchiveSearch,
}

func runArchiveSearch(cmd *cobra.Command, args []string) error {
	opts, err := archiveQueryFromFlags(cmd, args)
	if err != nil {
		return err
	}
	if opts.Query == "" && !opts.SourceType.Valid() && opts.SessionID == "" && opts.MinConfidence == 0 {
		return fmt.Errorf("query or filter required: provide a search query, --source, --session, or --min-confidence")
	}

	store, err := archive.Open(cfg.Archive)
	if err != nil {
		return err
	}
	defer store.Close()

	results, err := store.Search(context.Background(), opts)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-6s  %-50s  %-30s  %s\n", "Rank", "Conf", "Content", "Source", "Session")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 115))
	for i, r := range results {
		fmt.Fprintf(os.Stdout, "%-4d  %-6.2f  %-50s  %-30s  %s\n",
			i+1, r.Confidence, clip(r.Content, 50), clip(r.SourceTitle, 30), r.SessionID)
	}
	fmt.Fprintf(os.Stdout, "\n%d results\n", len(results))
	return nil
}

// --- sessions subcommand ---

var archiveSessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List archived sessions, newest first",
	RunE:  runArchiveSessions,
}

func runArchiveSessions(cmd *cobra.Command, args []string) error {
	store, err := archive.Open(cfg.Archive)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.Sessions(context.Background())
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No archived sessions.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-16s  %-10s  %-5s  %-8s  %-9s  %-18s  %s\n",
		"Session", "Depth", "Iter", "Findings", "Coverage", "Stopped", "Query")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 115))
	for _, s := range sessions {
		fmt.Fprintf(os.Stdout, "%-16s  %-10s  %-5d  %-8d  %-9s  %-18s  %s\n",
			s.ID, s.Depth, s.Iterations, s.Findings, fmt.Sprintf("%.2f%%", s.Coverage*100),
			s.StopReason, clip(s.Query, 40))
	}
	return nil
}

// --- export subcommand ---

var archiveExportCmd = &cobra.Command{
	Use:   "export [query]",
	Short: "Export archived findings to YAML or JSON",
	Long: `Export writes all archived findings (or a filtered subset) to
export.yaml or export.json in the archive directory. Supports the same
filter flags as search.`,
	RunE: runArchiveExport,
}

func runArchiveExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	opts, err := archiveQueryFromFlags(cmd, args)
	if err != nil {
		return err
	}

	store, err := archive.Open(cfg.Archive)
	if err != nil {
		return err
	}
	defer store.Close()

	var path string
	switch format {
	case "yaml", "":
		path, err = store.ExportYAML(context.Background(), opts)
	case "json":
		path, err = store.ExportJSON(context.Background(), opts)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Exported to %s\n", path)
	return nil
}

// --- shared helpers ---

func archiveQueryFromFlags(cmd *cobra.Command, args []string) (archive.QueryOptions, error) {
	source, _ := cmd.Flags().GetString("source")
	session, _ := cmd.Flags().GetString("session")
	minConf, _ := cmd.Flags().GetFloat64("min-confidence")
	limit, _ := cmd.Flags().GetInt("limit")

	opts := archive.QueryOptions{
		Query:         strings.Join(args, " "),
		SessionID:     session,
		MinConfidence: minConf,
		MaxResults:    limit,
	}
	if source != "" {
		t, err := types.ParseSourceType(source)
		if err != nil {
			return opts, err
		}
		opts.SourceType = t
	}
	return opts, nil
}

func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}

func init() {
	for _, c := range []*cobra.Command{archiveSearchCmd, archiveExportCmd} {
		c.Flags().String("source", "", "filter by source type: web, arxiv, github, docs, local")
		c.Flags().String("session", "", "filter by session ID")
		c.Flags().Float64("min-confidence", 0, "drop findings below this confidence")
	}
	archiveSearchCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	archiveSearchCmd.Flags().Bool("json", false, "output results as JSON")
	archiveExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	archiveCmd.AddCommand(archiveSearchCmd)
	archiveCmd.AddCommand(archiveSessionsCmd)
	archiveCmd.AddCommand(archiveExportCmd)

	rootCmd.AddCommand(archiveCmd)
}
