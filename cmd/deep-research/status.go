// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/deep-research/internal/ralph"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted state of active research loops",
	Long: `Status reads the loop state files in the state directory and prints the
current iteration, findings count, and coverage of each active session. Each
session keeps its own state file, removed when the session finalizes.
--session limits the output to one session.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	sessionID, _ := cmd.Flags().GetString("session")

	var paths []string
	if sessionID != "" {
		paths = []string{ralph.StatePath(cfg.StateDir, sessionID)}
	} else {
		found, err := ralph.FindStateFiles(cfg.StateDir)
		if err != nil {
			return err
		}
		paths = found
	}

	shown := 0
	for _, path := range paths {
		ok, err := printLoopState(os.Stdout, path)
		if err != nil {
			return err
		}
		if ok {
			shown++
		}
	}
	if shown == 0 {
		fmt.Fprintf(os.Stdout, "No active research loop in %s.\n", cfg.StateDir)
	}
	return nil
}

// printLoopState renders the state file at path. It reports false when the
// file does not exist.
func printLoopState(w io.Writer, path string) (bool, error) {
	var state ralph.LoopState
	found, err := ralph.StateFile{Path: path}.Load(&state)
	if err != nil || !found {
		return false, err
	}

	maxLabel := "∞"
	if state.MaxIterations > 0 {
		maxLabel = fmt.Sprintf("%d", state.MaxIterations)
	}
	started := "unknown"
	if !state.StartedAt.IsZero() {
		started = state.StartedAt.Format(time.RFC3339)
	}

	fmt.Fprintln(w, renderPanel("Research Loop", [][2]string{
		{"Iteration", fmt.Sprintf("%d/%s", state.Iteration, maxLabel)},
		{"Findings", fmt.Sprintf("%d", state.FindingsCount)},
		{"Coverage", fmt.Sprintf("%.2f%%", state.CoverageScore*100)},
		{"Promise", ralph.PromiseTag(state.CompletionPromise)},
		{"Started", started},
		{"State file", path},
	}, colorPrimary))
	return true, nil
}

func init() {
	statusCmd.Flags().String("session", "", "show only this session ID")
	rootCmd.AddCommand(statusCmd)
}
