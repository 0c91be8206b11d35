package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/punchlabs/punchlog/internal/classify"
	"github.com/punchlabs/punchlog/internal/gitlog"
	"github.com/punchlabs/punchlog/internal/store"
	"github.com/punchlabs/punchlog/internal/tags"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeReader serves a fixed commit list, oldest first.
type fakeReader struct {
	commits  []gitlog.Commit
	afterErr error
}

func (f *fakeReader) All(ctx context.Context) ([]gitlog.Commit, error) {
	return f.commits, nil
}

func (f *fakeReader) After(ctx context.Context, hash string) ([]gitlog.Commit, error) {
	if f.afterErr != nil {
		return nil, f.afterErr
	}
	for i, c := range f.commits {
		if c.Hash == hash {
			return f.commits[i+1:], nil
		}
	}
	return nil, fmt.Errorf("unknown revision %q", hash)
}

func (f *fakeReader) Recent(ctx context.Context, n int) ([]gitlog.Commit, error) {
	var out []gitlog.Commit
	for i := len(f.commits) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, f.commits[i])
	}
	return out, nil
}

// fakeClassifier counts calls and returns a fixed result or error.
type fakeClassifier struct {
	calls  int
	result *classify.Result
	err    error
}

func (f *fakeClassifier) Classify(ctx context.Context, rawTags []string, note string) (*classify.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fixture struct {
	runner *Runner
	reader *fakeReader
	days   *store.DayStore
	errs   *store.ErrorLog
	wmPath string
	dir    string
}

func newFixture(t *testing.T, reader *fakeReader, clf Classifier) *fixture {
	t.Helper()
	dir := t.TempDir()

	idx, err := tags.NewIndex("UTC", map[string][]string{
		"bjj":     {"grappling"},
		"study":   {"reading"},
		"writing": {"blog"},
	})
	if err != nil {
		t.Fatalf("NewIndex failed: %v", err)
	}

	days := store.NewDayStore(filepath.Join(dir, "days"), "UTC")
	errs, err := store.LoadErrorLog(filepath.Join(dir, "errors.json"))
	if err != nil {
		t.Fatalf("LoadErrorLog failed: %v", err)
	}
	wmPath := filepath.Join(dir, "state.json")

	runner := NewRunner(
		Config{RepoName: "timelog", RecentWindow: 20},
		reader, idx, days, errs, wmPath, clf, discardLogger(),
	)
	return &fixture{runner: runner, reader: reader, days: days, errs: errs, wmPath: wmPath, dir: dir}
}

// reload builds a fresh fixture over the same data dir, as a new run
// would see it.
func (fx *fixture) reload(t *testing.T, clf Classifier) *fixture {
	t.Helper()

	idx, err := tags.NewIndex("UTC", map[string][]string{
		"bjj":     {"grappling"},
		"study":   {"reading"},
		"writing": {"blog"},
	})
	if err != nil {
		t.Fatalf("NewIndex failed: %v", err)
	}
	days := store.NewDayStore(filepath.Join(fx.dir, "days"), "UTC")
	errs, err := store.LoadErrorLog(filepath.Join(fx.dir, "errors.json"))
	if err != nil {
		t.Fatalf("LoadErrorLog failed: %v", err)
	}
	runner := NewRunner(
		Config{RepoName: "timelog", RecentWindow: 20},
		fx.reader, idx, days, errs, fx.wmPath, clf, discardLogger(),
	)
	return &fixture{runner: runner, reader: fx.reader, days: days, errs: errs, wmPath: fx.wmPath, dir: fx.dir}
}

func commit(hash, message string) gitlog.Commit {
	return gitlog.Commit{
		Hash:      hash,
		Timestamp: "2026-08-27T10:00:00Z",
		Message:   message,
	}
}

func TestRun_Bootstrap(t *testing.T) {
	reader := &fakeReader{commits: []gitlog.Commit{
		commit("aaa", "fix watcher\n\ntime: today 2h #bjj sparring"),
		commit("bbb", "write post\n\ntime: yesterday 90m #blog"),
	}}
	fx := newFixture(t, reader, nil)

	sum, err := fx.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if sum.Added != 2 || sum.Skipped != 0 || sum.Errored != 0 {
		t.Fatalf("summary = %+v", sum)
	}

	day, err := fx.days.Load("2026-08-27")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(day.Entries) != 1 {
		t.Fatalf("expected 1 entry on 2026-08-27, got %d", len(day.Entries))
	}
	e := day.Entries[0]
	if e.ID != "aaa:0" {
		t.Errorf("id = %q", e.ID)
	}
	if e.Hours != 2.0 {
		t.Errorf("hours = %v", e.Hours)
	}
	if e.Normalized.Primary != "bjj" || e.Normalized.Method != "alias" || e.Normalized.Confidence != 1.0 {
		t.Errorf("normalized = %+v", e.Normalized)
	}
	if e.Raw.Note != "" || len(e.Raw.TagMeta["bjj"]) != 1 {
		t.Errorf("raw = %+v", e.Raw)
	}
	if e.Source.Repo != "timelog" || e.Source.Commit != "aaa" {
		t.Errorf("source = %+v", e.Source)
	}

	// "yesterday" against the commit timestamp.
	day, err = fx.days.Load("2026-08-26")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(day.Entries) != 1 || day.Entries[0].Hours != 1.5 {
		t.Fatalf("2026-08-26 entries = %+v", day.Entries)
	}
	if day.Entries[0].Normalized.Primary != "writing" {
		t.Errorf("primary = %q", day.Entries[0].Normalized.Primary)
	}

	wm, found, err := store.LoadWatermark(fx.wmPath)
	if err != nil || !found {
		t.Fatalf("watermark missing: %v", err)
	}
	if wm.LastProcessed != "bbb" {
		t.Errorf("last_processed = %q", wm.LastProcessed)
	}
	if len(wm.RecentCommits) != 2 {
		t.Errorf("recent_commits = %v", wm.RecentCommits)
	}
}

func TestRun_Idempotent(t *testing.T) {
	reader := &fakeReader{commits: []gitlog.Commit{
		commit("aaa", "time: today 2h #bjj"),
		commit("bbb", "time: today 1h #blog\ntime: today 30m #reading"),
	}}
	fx := newFixture(t, reader, nil)

	sum, err := fx.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if sum.Added != 3 {
		t.Fatalf("first run added = %d", sum.Added)
	}

	// Second run over unchanged history: the recent window re-examines
	// everything, identity checks skip it all.
	fx2 := fx.reload(t, nil)
	sum2, err := fx2.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if sum2.Added != 0 {
		t.Errorf("second run added = %d, want 0", sum2.Added)
	}
	if sum2.Skipped != 3 {
		t.Errorf("second run skipped = %d, want 3", sum2.Skipped)
	}

	day, err := fx2.days.Load("2026-08-27")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(day.Entries) != 3 {
		t.Errorf("day entries = %d, want 3", len(day.Entries))
	}
}

func TestRun_IncrementalProcessesOnlyNewCommits(t *testing.T) {
	reader := &fakeReader{commits: []gitlog.Commit{
		commit("aaa", "time: today 1h #bjj"),
	}}
	fx := newFixture(t, reader, nil)

	if _, err := fx.runner.Run(context.Background()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// A new commit lands.
	reader.commits = append(reader.commits, commit("bbb", "time: today 2h #blog"))

	fx2 := fx.reload(t, nil)
	sum, err := fx2.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if sum.Added != 1 {
		t.Errorf("added = %d, want 1", sum.Added)
	}
	if sum.Skipped != 1 {
		t.Errorf("skipped = %d, want 1 (recent window re-examines aaa)", sum.Skipped)
	}

	wm, _, err := store.LoadWatermark(fx.wmPath)
	if err != nil {
		t.Fatalf("load watermark: %v", err)
	}
	if wm.LastProcessed != "bbb" {
		t.Errorf("last_processed = %q", wm.LastProcessed)
	}
}

func TestRun_DegradedIncremental(t *testing.T) {
	reader := &fakeReader{commits: []gitlog.Commit{
		commit("aaa", "time: today 1h #bjj"),
	}}
	fx := newFixture(t, reader, nil)

	if _, err := fx.runner.Run(context.Background()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// History rewritten: the watermark commit is gone.
	reader.commits = []gitlog.Commit{
		commit("aaa2", "time: today 1h #bjj"),
		commit("ccc", "time: today 45m #reading"),
	}
	reader.afterErr = errors.New("unknown revision")

	fx2 := fx.reload(t, nil)
	sum, err := fx2.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("degraded run failed: %v", err)
	}
	if sum.Added != 2 {
		t.Errorf("added = %d, want 2 (rewritten commits have new identities)", sum.Added)
	}
}

func TestRun_IdentityCountsErroredLines(t *testing.T) {
	msg := "time: today 1h #bjj\ntime: today\ntime: today 30m #reading"
	reader := &fakeReader{commits: []gitlog.Commit{commit("aaa", msg)}}
	fx := newFixture(t, reader, nil)

	sum, err := fx.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if sum.Added != 2 || sum.Errored != 1 {
		t.Fatalf("summary = %+v", sum)
	}

	day, err := fx.days.Load("2026-08-27")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	// The malformed middle line still consumed index 1.
	if day.Entries[0].ID != "aaa:0" || day.Entries[1].ID != "aaa:2" {
		t.Errorf("ids = %q, %q", day.Entries[0].ID, day.Entries[1].ID)
	}

	errEntries := fx.errs.Entries()
	if len(errEntries) != 1 {
		t.Fatalf("error log entries = %d", len(errEntries))
	}
	if errEntries[0].ID != "aaa:1" || errEntries[0].Reason != "missing date or duration" {
		t.Errorf("error entry = %+v", errEntries[0])
	}
}

func TestRun_ErrorIsolation(t *testing.T) {
	msg := "some work\n\ntime: today 9x #bjj\ntime: today 1h #blog"
	reader := &fakeReader{commits: []gitlog.Commit{commit("aaa", msg)}}
	fx := newFixture(t, reader, nil)

	sum, err := fx.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if sum.Added != 1 || sum.Errored != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(fx.errs.Entries()) != 1 {
		t.Errorf("error log entries = %d, want 1", len(fx.errs.Entries()))
	}
}

func TestRun_BadDateToken(t *testing.T) {
	reader := &fakeReader{commits: []gitlog.Commit{
		commit("aaa", "time: someday 1h #bjj"),
	}}
	fx := newFixture(t, reader, nil)

	sum, err := fx.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if sum.Added != 0 || sum.Errored != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if got := fx.errs.Entries()[0].Reason; got != `invalid date "someday"` {
		t.Errorf("reason = %q", got)
	}
}

func TestRun_FallbackDisabled(t *testing.T) {
	reader := &fakeReader{commits: []gitlog.Commit{
		commit("aaa", "time: today 1h #nonexistent"),
	}}
	fx := newFixture(t, reader, nil)

	sum, err := fx.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if sum.Added != 1 || sum.Errored != 0 {
		t.Fatalf("summary = %+v", sum)
	}

	day, _ := fx.days.Load("2026-08-27")
	n := day.Entries[0].Normalized
	if n.Primary != "uncategorized" || n.Confidence != 0 || n.Method != "fallback" {
		t.Errorf("normalized = %+v", n)
	}
}

func TestRun_ClassifierSupplies(t *testing.T) {
	reader := &fakeReader{commits: []gitlog.Commit{
		commit("aaa", "time: today 1h #mats open mat session"),
	}}
	clf := &fakeClassifier{result: &classify.Result{
		Primary:    "bjj",
		Confidence: 0.8,
	}}
	fx := newFixture(t, reader, clf)

	sum, err := fx.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if sum.Added != 1 || sum.Errored != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if clf.calls != 1 {
		t.Errorf("classifier calls = %d", clf.calls)
	}

	day, _ := fx.days.Load("2026-08-27")
	n := day.Entries[0].Normalized
	if n.Primary != "bjj" || n.Method != "llm" || n.Confidence != 0.8 {
		t.Errorf("normalized = %+v", n)
	}
}

func TestRun_ClassifierNotCalledWhenAliasMatches(t *testing.T) {
	reader := &fakeReader{commits: []gitlog.Commit{
		commit("aaa", "time: today 1h #grappling"),
	}}
	clf := &fakeClassifier{result: &classify.Result{Primary: "study"}}
	fx := newFixture(t, reader, clf)

	if _, err := fx.runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if clf.calls != 0 {
		t.Errorf("classifier calls = %d, want 0", clf.calls)
	}
}

func TestRun_ClassifierFailureDegrades(t *testing.T) {
	reader := &fakeReader{commits: []gitlog.Commit{
		commit("aaa", "time: today 1h #mystery"),
	}}
	clf := &fakeClassifier{err: errors.New("api error 500")}
	fx := newFixture(t, reader, clf)

	sum, err := fx.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// The line is recorded as an error AND stored with the fallback
	// category.
	if sum.Added != 1 || sum.Errored != 1 {
		t.Fatalf("summary = %+v", sum)
	}

	day, _ := fx.days.Load("2026-08-27")
	n := day.Entries[0].Normalized
	if n.Primary != "uncategorized" || n.Method != "fallback" {
		t.Errorf("normalized = %+v", n)
	}

	errEntries := fx.errs.Entries()
	if len(errEntries) != 1 {
		t.Fatalf("error log entries = %d", len(errEntries))
	}
	if want := "classification failed: api error 500"; errEntries[0].Reason != want {
		t.Errorf("reason = %q, want %q", errEntries[0].Reason, want)
	}
}

func TestRun_SkippedEntriesNeverReachClassifier(t *testing.T) {
	reader := &fakeReader{commits: []gitlog.Commit{
		commit("aaa", "time: today 1h #mystery"),
	}}
	clf := &fakeClassifier{result: &classify.Result{Primary: "bjj", Confidence: 0.9}}
	fx := newFixture(t, reader, clf)

	if _, err := fx.runner.Run(context.Background()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	fx2 := fx.reload(t, clf)
	sum, err := fx2.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if sum.Skipped != 1 {
		t.Errorf("skipped = %d", sum.Skipped)
	}
	if clf.calls != 1 {
		t.Errorf("classifier calls = %d, want 1 (skip check runs before classification)", clf.calls)
	}
}

func TestRun_WatermarkRefreshedOnEmptyRun(t *testing.T) {
	reader := &fakeReader{commits: []gitlog.Commit{
		commit("aaa", "no time lines here"),
	}}
	fx := newFixture(t, reader, nil)

	sum, err := fx.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if sum.Added != 0 {
		t.Fatalf("added = %d", sum.Added)
	}

	wm, found, err := store.LoadWatermark(fx.wmPath)
	if err != nil || !found {
		t.Fatalf("watermark missing after empty run: %v", err)
	}
	if wm.LastProcessed != "aaa" {
		t.Errorf("last_processed = %q", wm.LastProcessed)
	}
}

func TestMergeCommits_FirstOccurrenceWins(t *testing.T) {
	selected := []gitlog.Commit{commit("aaa", "a"), commit("bbb", "b")}
	recent := []gitlog.Commit{commit("ccc", "c"), commit("bbb", "b")} // newest first

	merged := mergeCommits(selected, recent)
	if len(merged) != 3 {
		t.Fatalf("merged = %d commits", len(merged))
	}
	if merged[0].Hash != "aaa" || merged[1].Hash != "bbb" || merged[2].Hash != "ccc" {
		t.Errorf("order = %s, %s, %s", merged[0].Hash, merged[1].Hash, merged[2].Hash)
	}
}
