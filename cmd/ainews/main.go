// Command ainews runs the daily AI-news newsletter pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xlawrence/ainews-app-sub000/internal/config"
	"github.com/0xlawrence/ainews-app-sub000/internal/core"
	"github.com/0xlawrence/ainews-app-sub000/internal/logger"
	"github.com/0xlawrence/ainews-app-sub000/internal/pipeline"
)

var (
	cfgFile     string
	maxItems    int
	edition     string
	outputDir   string
	dryRun      bool
	embedModel  string
	embedDims   int
	targetDate  string
	sourcesFile string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ainews",
		Short: "Generate the daily Japanese AI-news newsletter",
		Long: `ainews collects AI news from configured feeds and YouTube channels,
filters and summarizes it in Japanese, groups related stories, and writes
a Markdown newsletter draft.

Examples:
  # Generate today's newsletter
  ainews run

  # Backfill a past date without writing artifacts
  ainews run --target-date 2026-08-20 --dry-run`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ainews.yaml)")
	rootCmd.AddCommand(newRunCmd())
	return rootCmd
}

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline and write the newsletter draft",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			return run(cmd.Context())
		},
	}

	runCmd.Flags().IntVar(&maxItems, "max-items", 0, "cap on collected items (0 uses the configured default)")
	runCmd.Flags().StringVar(&edition, "edition", "daily", "edition label used in file names")
	runCmd.Flags().StringVar(&outputDir, "output-dir", "", "draft directory (overrides config)")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "run everything but write no artifacts")
	runCmd.Flags().StringVar(&embedModel, "embedding-model", "", "embedding model (overrides config)")
	runCmd.Flags().IntVar(&embedDims, "embedding-dimensions", 0, "embedding dimensions (overrides config)")
	runCmd.Flags().StringVar(&targetDate, "target-date", "", "backfill date in YYYY-MM-DD form")
	runCmd.Flags().StringVar(&sourcesFile, "sources", "", "sources file (overrides config)")
	return runCmd
}

func run(ctx context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger.Init(cfg.App.LogLevel)
	creds := config.LoadCredentials()

	if sourcesFile != "" {
		cfg.App.SourcesFile = sourcesFile
	}
	if embedModel != "" {
		cfg.Embedding.Model = embedModel
	}

	runCfg := core.RunConfig{
		Edition:             edition,
		MaxItems:            maxItems,
		OutputDir:           outputDir,
		DryRun:              dryRun,
		EmbeddingModel:      cfg.Embedding.Model,
		EmbeddingDimensions: embedDims,
	}
	if targetDate != "" {
		date, err := time.Parse("2006-01-02", targetDate)
		if err != nil {
			return fmt.Errorf("invalid --target-date %q: %w", targetDate, err)
		}
		runCfg.TargetDate = date
	}

	state, err := pipeline.New(cfg, creds).Run(ctx, runCfg)
	if err != nil {
		logger.Error("run failed", err, "run_id", state.RunID)
		return err
	}
	logger.Info("run finished",
		"run_id", state.RunID,
		"status", string(state.Status),
		"articles", state.Stats.ArticlesProcessed,
		"llm_calls", state.Stats.LLMCalls,
		"tokens", state.Stats.TotalTokens,
		"seconds", fmt.Sprintf("%.1f", state.Stats.ProcessingSeconds))
	return nil
}
