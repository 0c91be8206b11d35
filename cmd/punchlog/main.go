package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/punchlabs/punchlog/internal/anthropic"
	"github.com/punchlabs/punchlog/internal/classify"
	"github.com/punchlabs/punchlog/internal/config"
	"github.com/punchlabs/punchlog/internal/gitlog"
	"github.com/punchlabs/punchlog/internal/ingest"
	"github.com/punchlabs/punchlog/internal/report"
	"github.com/punchlabs/punchlog/internal/store"
	"github.com/punchlabs/punchlog/internal/tags"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root := &cobra.Command{
		Use:           "punchlog",
		Short:         "Harvest time-log lines from git commit messages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(ingestCommand(&cfg), reportCommand(&cfg))

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func ingestCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Scan the repository and record new time entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.RepoPath, "repo", cfg.RepoPath, "path to the git repository to scan")
	cmd.Flags().IntVar(&cfg.RecentWindow, "recent-window", cfg.RecentWindow, "re-examine the last N commits for amendments")
	cmd.Flags().BoolVar(&cfg.Classify, "classify", cfg.Classify, "classify unmatched entries with the LLM")
	return cmd
}

func runIngest(ctx context.Context, cfg *config.Config) error {
	index, err := tags.Load(cfg.TagsFile)
	if err != nil {
		return fmt.Errorf("load tags file: %w", err)
	}
	slog.Info("tags loaded",
		"file", cfg.TagsFile,
		"categories", len(index.Keys()),
		"timezone", index.Location().String(),
	)

	repoName := cfg.RepoName
	if repoName == "" {
		abs, err := filepath.Abs(cfg.RepoPath)
		if err != nil {
			return fmt.Errorf("resolve repo path: %w", err)
		}
		repoName = filepath.Base(abs)
	}

	days := store.NewDayStore(filepath.Join(cfg.DataDir, "days"), index.Location().String())
	errs, err := store.LoadErrorLog(filepath.Join(cfg.DataDir, "errors.json"))
	if err != nil {
		return fmt.Errorf("load error log: %w", err)
	}

	var classifier ingest.Classifier
	if cfg.Classify && cfg.AnthropicAPIKey != "" {
		cache, err := classify.LoadCache(filepath.Join(cfg.DataDir, "classify-cache.json"))
		if err != nil {
			return fmt.Errorf("load classification cache: %w", err)
		}
		ledger, err := classify.LoadLedger(filepath.Join(cfg.DataDir, "suggestions.json"))
		if err != nil {
			return fmt.Errorf("load suggestion ledger: %w", err)
		}
		llm := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		classifier = classify.New(llm, index, cache, ledger, slog.Default())
		slog.Info("classifier ready", "model", cfg.AnthropicModel, "cached", cache.Len())
	} else if cfg.Classify {
		slog.Warn("ANTHROPIC_API_KEY not set, unmatched entries will be recorded as uncategorized")
	}

	runner := ingest.NewRunner(
		ingest.Config{RepoName: repoName, RecentWindow: cfg.RecentWindow},
		gitlog.New(cfg.RepoPath),
		index, days, errs,
		filepath.Join(cfg.DataDir, "state.json"),
		classifier,
		slog.Default(),
	)

	sum, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	printSummary(sum)
	return nil
}

func printSummary(sum *ingest.Summary) {
	bold := color.New(color.Bold)
	bold.Printf("Ingested %d commit(s)\n", sum.Commits)
	color.Green("  added   %d", sum.Added)
	fmt.Printf("  skipped %d\n", sum.Skipped)
	if sum.Errored > 0 {
		color.Yellow("  errored %d (see errors.json)", sum.Errored)
	}
}

func reportCommand(cfg *config.Config) *cobra.Command {
	var month, from, to string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize recorded hours by category",
		RunE: func(cmd *cobra.Command, args []string) error {
			if month != "" && (from != "" || to != "") {
				return fmt.Errorf("--month cannot be combined with --from/--to")
			}

			var period report.Period
			var err error
			if month != "" {
				period, err = report.MonthPeriod(month)
			} else {
				period, err = report.RangePeriod(from, to)
			}
			if err != nil {
				return err
			}

			index, err := tags.Load(cfg.TagsFile)
			if err != nil {
				return fmt.Errorf("load tags file: %w", err)
			}

			days := store.NewDayStore(filepath.Join(cfg.DataDir, "days"), index.Location().String())
			rep, err := report.Build(days, period)
			if err != nil {
				return err
			}
			rep.Render(os.Stdout)
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "report one calendar month (YYYY-MM)")
	cmd.Flags().StringVar(&from, "from", "", "first date of the report (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last date of the report (YYYY-MM-DD)")
	return cmd
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
