// Package gitlog reads commit records from a local git repository.
package gitlog

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Commit is one immutable commit record as supplied by git.
type Commit struct {
	Hash      string
	Timestamp string // author date with offset, as authored
	Message   string
}

// Reader supplies ordered commit sequences. All and After return commits
// oldest first (processing order); Recent returns the newest n commits,
// newest first. After fails when the reference cannot be resolved, which
// callers treat as the trigger for a full-history rescan.
type Reader interface {
	All(ctx context.Context) ([]Commit, error)
	After(ctx context.Context, hash string) ([]Commit, error)
	Recent(ctx context.Context, n int) ([]Commit, error)
}

// commit fields are joined with the unit separator, records with the
// record separator, so multi-line messages survive the round trip.
const logFormat = "%H%x1f%aI%x1f%B%x1e"

// GitReader runs the git CLI against a repository working directory.
type GitReader struct {
	dir string
}

func New(dir string) *GitReader {
	return &GitReader{dir: dir}
}

func (g *GitReader) All(ctx context.Context) ([]Commit, error) {
	return g.log(ctx, "--reverse")
}

func (g *GitReader) After(ctx context.Context, hash string) ([]Commit, error) {
	if hash == "" {
		return nil, fmt.Errorf("empty commit reference")
	}
	return g.log(ctx, "--reverse", hash+"..HEAD")
}

func (g *GitReader) Recent(ctx context.Context, n int) ([]Commit, error) {
	return g.log(ctx, fmt.Sprintf("-n%d", n))
}

func (g *GitReader) log(ctx context.Context, args ...string) ([]Commit, error) {
	full := append([]string{"-C", g.dir, "log", "--format=" + logFormat}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)

	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("git log: %w: %s", err, strings.TrimSpace(string(ee.Stderr)))
		}
		return nil, fmt.Errorf("git log: %w", err)
	}

	return parseLog(string(out)), nil
}

func parseLog(out string) []Commit {
	var commits []Commit
	for _, record := range strings.Split(out, "\x1e") {
		record = strings.TrimLeft(record, "\n")
		fields := strings.SplitN(record, "\x1f", 3)
		if len(fields) != 3 || fields[0] == "" {
			continue
		}
		commits = append(commits, Commit{
			Hash:      fields[0],
			Timestamp: fields[1],
			Message:   strings.TrimRight(fields[2], "\n"),
		})
	}
	return commits
}
