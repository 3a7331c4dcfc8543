// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/deep-research/internal/agent"
	"github.com/pdiddy/deep-research/internal/archive"
	"github.com/pdiddy/deep-research/internal/config"
	"github.com/pdiddy/deep-research/internal/depth"
	"github.com/pdiddy/deep-research/internal/ralph"
	"github.com/pdiddy/deep-research/internal/runner"
	"github.com/pdiddy/deep-research/internal/secrets"
	"github.com/pdiddy/deep-research/internal/sources"
	"github.com/pdiddy/deep-research/internal/trajectory"
	"github.com/pdiddy/deep-research/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run <query>",
	Short: "Research a query until it is covered",
	Long: `Run starts a research session for the query. The depth tier sets the
iteration cap, coverage threshold, and allowed sources; --depth auto picks a
tier from keywords in the query.

Sources allowed by the tier are queried once before the first iteration and
their results seed the findings. The loop stops when the agent emits
<promise>RESEARCH_COMPLETE</promise>, coverage reaches the tier threshold, or
the iteration cap is hit. Interrupting with Ctrl-C still writes SUMMARY.md.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResearch,
}

func runResearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	depthKey, _ := cmd.Flags().GetString("depth")
	if depthKey == "" {
		depthKey = cfg.Depth
	}
	if strings.EqualFold(depthKey, config.AutoDepth) {
		depthKey = string(depth.Infer(query))
	}
	depthCfg, err := depth.Lookup(depthKey)
	if err != nil {
		return err
	}

	aiCfg := cfg.AI
	if aiCfg.APIKey == "" {
		aiCfg.APIKey = loadedSecrets.Get(secrets.ProviderKey(aiCfg.Provider), providerEnvKey(aiCfg.Provider))
	}
	a, err := agent.New(aiCfg)
	if err != nil {
		return fmt.Errorf("creating agent: %w", err)
	}

	srcs, skipped := sources.ForTypes(depthCfg.Sources, cfg.Search, loadedSecrets, logger)
	for _, s := range skipped {
		fmt.Fprintf(os.Stderr, "skipping source %s\n", s)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []runner.Option{
		runner.WithOutput(os.Stdout),
		runner.WithLogger(logger),
		runner.WithSources(srcs, cfg.Loop.PrefetchLimit),
		runner.WithCompletion(cfg.Loop.CompletionPromise, cfg.Loop.LenientCompletion),
		runner.WithSafetyLimit(cfg.Loop.SafetyLimit),
		runner.WithSessionOptions(
			ralph.WithWorkspace(cfg.WorkspaceDir),
			ralph.WithStateDir(cfg.StateDir),
		),
	}

	if cfg.Archive.Enabled {
		store, err := archive.Open(cfg.Archive)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, runner.WithArchiver(store))
	}

	if cfg.Trace.Enabled {
		exporter, err := trajectory.NewOTLPExporter(ctx, cfg.Trace.OTLPEndpoint, cfg.Trace.ServiceName)
		if err != nil {
			return fmt.Errorf("creating OTLP exporter: %w", err)
		}
		opts = append(opts, runner.WithRecorders(func(dir string) (*trajectory.Recorder, error) {
			return trajectory.Open(dir, trajectory.WithExporter(exporter))
		}))
	}

	fmt.Fprintf(os.Stdout, "%s\n", renderPanel("Research Session Started", [][2]string{
		{"Query", query},
		{"Depth", depthKey},
		{"Agent", a.Name()},
		{"Sources", strings.Join(depthCfg.SourceNames(), ", ")},
	}, colorPrimary))

	sum, err := runner.New(a, opts...).Run(ctx, query, &depthCfg)
	if sum.SessionID != "" {
		fmt.Fprintf(os.Stdout, "%s\n", renderSummary(sum))
	}
	return err
}

// providerEnvKey reads the provider's conventional API key variable.
func providerEnvKey(p types.Provider) string {
	if p == types.ProviderOpenAI {
		return os.Getenv("OPENAI_API_KEY")
	}
	return os.Getenv("ANTHROPIC_API_KEY")
}

func init() {
	runCmd.Flags().String("depth", "", "research depth: quick, standard, deep, exhaustive, or auto (default from config)")
	runCmd.Flags().String("model", "", "model identifier")
	runCmd.Flags().String("provider", "", "agent provider: anthropic or openai")
	runCmd.Flags().Bool("lenient", false, "accept the bare completion token without <promise> tags")
	runCmd.Flags().Bool("archive", false, "archive the finished session")
	runCmd.Flags().Int("prefetch", 0, "results requested per source before the first iteration")

	viper.BindPFlag("ai.model", runCmd.Flags().Lookup("model"))
	viper.BindPFlag("ai.provider", runCmd.Flags().Lookup("provider"))
	viper.BindPFlag("loop.lenient_completion", runCmd.Flags().Lookup("lenient"))
	viper.BindPFlag("archive.enabled", runCmd.Flags().Lookup("archive"))
	viper.BindPFlag("loop.prefetch_limit", runCmd.Flags().Lookup("prefetch"))

	rootCmd.AddCommand(runCmd)
}
