// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/deep-research/internal/depth"
	"github.com/pdiddy/deep-research/pkg/types"
)

var depthCmd = &cobra.Command{
	Use:   "depth [tier]",
	Short: "List the research depth tiers or show one",
	Long: `Depth prints the fixed depth table: search budget, iteration cap,
allowed sources, cross-validation, and coverage threshold per tier.

With a tier argument it prints that tier and the guidance added to every
iteration prompt. --infer shows which tier a query would get with --depth auto.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDepth,
}

func runDepth(cmd *cobra.Command, args []string) error {
	if infer, _ := cmd.Flags().GetString("infer"); infer != "" {
		fmt.Fprintf(os.Stdout, "%s\n", depth.Infer(infer))
		return nil
	}

	if len(args) == 1 {
		c, err := depth.Lookup(args[0])
		if err != nil {
			return err
		}
		printDepthTable([]types.DepthConfig{c})
		fmt.Fprintf(os.Stdout, "\n%s\n", depth.Guidance(c))
		return nil
	}

	printDepthTable(depth.All())
	return nil
}

func printDepthTable(configs []types.DepthConfig) {
	fmt.Fprintf(os.Stdout, "%-11s  %-8s  %-10s  %-9s  %-9s  %s\n",
		"Depth", "Searches", "Iterations", "Validate", "Threshold", "Sources")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 80))
	for _, c := range configs {
		iterations := fmt.Sprintf("%d", c.MaxRalphIterations)
		if c.MaxRalphIterations == 0 {
			iterations = "unlimited"
		}
		validate := "no"
		if c.RequireCrossValidation {
			validate = fmt.Sprintf("%d srcs", c.MinSourcesForClaim)
		}
		fmt.Fprintf(os.Stdout, "%-11s  %-8d  %-10s  %-9s  %-9.2f  %s\n",
			c.Depth, c.MaxSearches, iterations, validate, c.CoverageThreshold,
			strings.Join(c.SourceNames(), ", "))
	}
}

func init() {
	depthCmd.Flags().String("infer", "", "print the tier inferred from a query")
	rootCmd.AddCommand(depthCmd)
}
