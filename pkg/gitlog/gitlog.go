package gitlog

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/Promptonauts/releasepipe/pkg/analyzer"
)

const (
	fieldSep  = "\x1f"
	recordSep = "\x1e"
)

// ErrNoTag is returned by LastTag when no tag matches.
var ErrNoTag = errors.New("no matching tag")

// Collector reads commit history through the git binary.
type Collector struct {
	RepoPath string
}

// Commits returns the parsed commits in from..to, newest first. An empty from
// walks the whole history reachable from to.
func (c Collector) Commits(ctx context.Context, from, to string) ([]analyzer.Commit, error) {
	if to == "" {
		to = "HEAD"
	}
	rangeSpec := to
	if from != "" {
		rangeSpec = fmt.Sprintf("%s..%s", from, to)
	}
	out, err := c.git(ctx, "log", "--format=%H"+fieldSep+"%B"+recordSep, rangeSpec)
	if err != nil {
		return nil, fmt.Errorf("git log %s: %w", rangeSpec, err)
	}
	return parseLog(out), nil
}

// LastTag returns the most recent tag reachable from HEAD matching pattern
// (a git glob such as "v*").
func (c Collector) LastTag(ctx context.Context, pattern string) (string, error) {
	args := []string{"describe", "--tags", "--abbrev=0"}
	if pattern != "" {
		args = append(args, "--match", pattern)
	}
	out, err := c.git(ctx, args...)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", ErrNoTag
		}
		return "", fmt.Errorf("git describe: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func (c Collector) git(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-C", c.repoPath()}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (c Collector) repoPath() string {
	if c.RepoPath == "" {
		return "."
	}
	return c.RepoPath
}

func parseLog(out string) []analyzer.Commit {
	var commits []analyzer.Commit
	for _, record := range strings.Split(out, recordSep) {
		record = strings.TrimLeft(record, "\n")
		if strings.TrimSpace(record) == "" {
			continue
		}
		sha, body, _ := strings.Cut(record, fieldSep)
		commit := analyzer.ParseCommit(body)
		commit.SHA = strings.TrimSpace(sha)
		commits = append(commits, commit)
	}
	return commits
}

// VersionFromTag strips the literal prefix of a "prefix${version}" tag format.
func VersionFromTag(tag, tagFormat string) string {
	prefix, _, found := strings.Cut(tagFormat, "${version}")
	if !found {
		return tag
	}
	return strings.TrimPrefix(tag, prefix)
}
