// Package ingest orchestrates one pipeline run: select commits, parse
// time lines, resolve dates and durations, normalize categories, and
// append entries exactly once per source line.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/punchlabs/punchlog/internal/classify"
	"github.com/punchlabs/punchlog/internal/gitlog"
	"github.com/punchlabs/punchlog/internal/parse"
	"github.com/punchlabs/punchlog/internal/store"
	"github.com/punchlabs/punchlog/internal/tags"
)

// Classifier is the fallback normalization stage. A nil Classifier
// disables the stage; unresolved lines then land on "uncategorized"
// directly.
type Classifier interface {
	Classify(ctx context.Context, rawTags []string, note string) (*classify.Result, error)
}

// Config holds the per-run coordinator settings.
type Config struct {
	RepoName     string
	RecentWindow int
}

// Summary is the scalar result of one run. A run always completes with
// a summary even when individual lines failed.
type Summary struct {
	RunID   string
	Commits int
	Added   int
	Skipped int
	Errored int
}

// Runner drives the ingestion pipeline. Commits and lines are processed
// strictly sequentially; the classifier call is the only suspension
// point.
type Runner struct {
	cfg           Config
	reader        gitlog.Reader
	index         *tags.Index
	days          *store.DayStore
	errs          *store.ErrorLog
	watermarkPath string
	classifier    Classifier
	logger        *slog.Logger
}

func NewRunner(cfg Config, reader gitlog.Reader, index *tags.Index, days *store.DayStore, errs *store.ErrorLog, watermarkPath string, classifier Classifier, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:           cfg,
		reader:        reader,
		index:         index,
		days:          days,
		errs:          errs,
		watermarkPath: watermarkPath,
		classifier:    classifier,
		logger:        logger,
	}
}

// Run executes one full pipeline pass. Only storage and repository
// failures abort the run; line-level failures are recorded and skipped.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{RunID: uuid.NewString()}
	logger := r.logger.With("run_id", sum.RunID)

	wm, found, err := store.LoadWatermark(r.watermarkPath)
	if err != nil {
		return nil, fmt.Errorf("load watermark: %w", err)
	}

	var selected []gitlog.Commit
	if !found {
		logger.Info("no watermark recorded, scanning full history")
		selected, err = r.reader.All(ctx)
		if err != nil {
			return nil, fmt.Errorf("read full history: %w", err)
		}
	} else {
		selected, err = r.reader.After(ctx, wm.LastProcessed)
		if err != nil {
			// The watermark commit may no longer exist after a history
			// rewrite. Fall back to full history for this run; identity
			// checks keep re-processing from duplicating entries.
			logger.Warn("incremental range query failed, rescanning full history",
				"after", wm.LastProcessed,
				"error", err,
			)
			selected, err = r.reader.All(ctx)
			if err != nil {
				return nil, fmt.Errorf("read full history: %w", err)
			}
		}
	}

	recent, err := r.reader.Recent(ctx, r.cfg.RecentWindow)
	if err != nil {
		return nil, fmt.Errorf("read recent commits: %w", err)
	}

	commits := mergeCommits(selected, recent)
	sum.Commits = len(commits)
	logger.Info("commits selected",
		"range", len(selected),
		"recent", len(recent),
		"merged", len(commits),
	)

	for _, c := range commits {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if err := r.processCommit(ctx, c, sum, logger); err != nil {
			return nil, err
		}
	}

	if err := r.errs.Save(); err != nil {
		return nil, fmt.Errorf("save error log: %w", err)
	}

	// Refresh the watermark unconditionally, even for a run that added
	// nothing, so the next run's re-absorption window stays current.
	next := &store.Watermark{}
	if len(recent) > 0 {
		next.LastProcessed = recent[0].Hash
	}
	for _, c := range recent {
		next.RecentCommits = append(next.RecentCommits, c.Hash)
	}
	if err := store.SaveWatermark(r.watermarkPath, next); err != nil {
		return nil, fmt.Errorf("save watermark: %w", err)
	}

	logger.Info("run complete",
		"commits", sum.Commits,
		"added", sum.Added,
		"skipped", sum.Skipped,
		"errored", sum.Errored,
	)
	return sum, nil
}

// mergeCommits combines the selected range with the recent window,
// deduplicated by commit identity, first occurrence wins. selected is
// oldest first, recent newest first; extras from the window are
// appended in chronological order.
func mergeCommits(selected, recent []gitlog.Commit) []gitlog.Commit {
	seen := make(map[string]bool, len(selected)+len(recent))
	out := make([]gitlog.Commit, 0, len(selected)+len(recent))
	for _, c := range selected {
		if seen[c.Hash] {
			continue
		}
		seen[c.Hash] = true
		out = append(out, c)
	}
	for i := len(recent) - 1; i >= 0; i-- {
		c := recent[i]
		if seen[c.Hash] {
			continue
		}
		seen[c.Hash] = true
		out = append(out, c)
	}
	return out
}

// processCommit ingests every time line of one commit message. The
// returned error is always a storage failure; line-level problems are
// recorded in the error log and the loop continues.
func (r *Runner) processCommit(ctx context.Context, c gitlog.Commit, sum *Summary, logger *slog.Logger) error {
	ts, tsErr := time.Parse(time.RFC3339, c.Timestamp)

	// The line index counts every line carrying the time marker,
	// erroneous ones included, so identities stay stable even when some
	// lines fail.
	idx := 0
	for _, raw := range strings.Split(c.Message, "\n") {
		parsed, perr := parse.ParseLine(raw)
		if parsed == nil && perr == nil {
			continue
		}
		id := fmt.Sprintf("%s:%d", c.Hash, idx)
		idx++

		if perr != nil {
			r.recordError(id, c.Hash, raw, perr.Error(), sum, logger)
			continue
		}

		relative := parsed.DateToken == "today" || parsed.DateToken == "yesterday"
		if relative && tsErr != nil {
			r.recordError(id, c.Hash, raw,
				fmt.Sprintf("cannot resolve %q: unparseable commit timestamp %q", parsed.DateToken, c.Timestamp),
				sum, logger)
			continue
		}

		date, ok := parse.ResolveDate(parsed.DateToken, ts, r.index.Location())
		if !ok {
			r.recordError(id, c.Hash, raw, fmt.Sprintf("invalid date %q", parsed.DateToken), sum, logger)
			continue
		}

		hours, ok := parse.ParseDuration(parsed.DurationToken)
		if !ok {
			r.recordError(id, c.Hash, raw, fmt.Sprintf("invalid duration %q", parsed.DurationToken), sum, logger)
			continue
		}

		has, err := r.days.Has(date, id)
		if err != nil {
			return err
		}
		if has {
			sum.Skipped++
			continue
		}

		norm := r.normalize(ctx, id, c.Hash, raw, parsed, sum, logger)

		entry := store.TimeEntry{
			ID:    id,
			At:    c.Timestamp,
			Hours: hours,
			Raw: store.RawLine{
				Date:     parsed.DateToken,
				Duration: parsed.DurationToken,
				Tags:     parsed.Tags,
				TagMeta:  parsed.TagMeta,
				Note:     parsed.Note,
			},
			Normalized: norm,
			Source:     store.Source{Repo: r.cfg.RepoName, Commit: c.Hash},
		}
		if err := r.days.Append(date, entry); err != nil {
			return err
		}
		sum.Added++

		logger.Debug("entry recorded",
			"id", id,
			"date", date,
			"hours", hours,
			"primary", norm.Primary,
			"method", norm.Method,
		)
	}
	return nil
}

// normalize runs the two-stage category resolution: the alias table
// first, then the classifier fallback. A classifier failure records an
// error and degrades to "uncategorized"; it never aborts the line.
func (r *Runner) normalize(ctx context.Context, id, commit, raw string, parsed *parse.Line, sum *Summary, logger *slog.Logger) store.Normalized {
	if matched := r.index.Match(parsed.Tags); len(matched) > 0 {
		return store.Normalized{
			Primary:    matched[0],
			Secondary:  matched[1:],
			Confidence: 1.0,
			Method:     "alias",
		}
	}

	if r.classifier != nil {
		result, err := r.classifier.Classify(ctx, parsed.Tags, parsed.Note)
		if err != nil {
			r.recordError(id, commit, raw, fmt.Sprintf("classification failed: %v", err), sum, logger)
		} else {
			return store.Normalized{
				Primary:    result.Primary,
				Secondary:  result.Secondary,
				Confidence: result.Confidence,
				Method:     "llm",
			}
		}
	}

	return store.Normalized{
		Primary:    tags.Uncategorized,
		Confidence: 0,
		Method:     "fallback",
	}
}

func (r *Runner) recordError(id, commit, line, reason string, sum *Summary, logger *slog.Logger) {
	r.errs.Append(store.ErrorEntry{
		ID:     id,
		Commit: commit,
		Line:   strings.TrimSpace(line),
		Reason: reason,
	})
	sum.Errored++
	logger.Warn("line failed", "id", id, "reason", reason)
}
