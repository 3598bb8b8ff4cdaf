package changelog

import (
	"strings"
	"testing"

	"github.com/Promptonauts/releasepipe/pkg/analyzer"
	"github.com/Promptonauts/releasepipe/pkg/models"
)

var presetConfig = models.PresetConfig{
	Header: "CHANGELOG",
	Types: []models.SectionType{
		{Type: "feat", Section: "Features"},
		{Type: "BREAKING CHANGE", Section: "Breaking Changes"},
		{Type: "feat!", Section: "Breaking Changes"},
		{Type: "fix", Section: "Bug Fixes"},
		{Type: "chore", Hidden: true},
	},
}

func parse(raws ...string) []analyzer.Commit {
	out := make([]analyzer.Commit, len(raws))
	for i, r := range raws {
		out[i] = analyzer.ParseCommit(r)
	}
	return out
}

func TestNotesGroupsBySection(t *testing.T) {
	commits := parse("fix(api): handle nil", "feat: add search", "chore: bump", "docs: typo", "feat!: new config")
	commits[1].SHA = "0123456789abcdef"
	notes := Notes(presetConfig, Context{Version: "2.0.0", Date: "2026-10-18"}, commits)

	want := "## 2.0.0 (2026-10-18)\n" +
		"\n### Features\n\n* add search (0123456)\n" +
		"\n### Breaking Changes\n\n* new config\n" +
		"\n### Bug Fixes\n\n* **api:** handle nil\n"
	if notes != want {
		t.Fatalf("unexpected notes:\n%s\nwant:\n%s", notes, want)
	}
}

func TestNotesBreakingFooter(t *testing.T) {
	notes := Notes(presetConfig, Context{Version: "3.0.0"}, parse("feat(cli): x\n\nBREAKING CHANGE: flags renamed"))
	if !strings.Contains(notes, "### Features\n\n* **cli:** x") {
		t.Fatalf("expected feature entry:\n%s", notes)
	}
	if !strings.Contains(notes, "BREAKING CHANGES\n\n* **cli:** flags renamed") {
		t.Fatalf("expected breaking note:\n%s", notes)
	}
}

func TestNotesCompareLink(t *testing.T) {
	ctx := Context{
		Version:       "1.1.0",
		PreviousTag:   "v1.0.0",
		CurrentTag:    "v1.1.0",
		RepositoryURL: "https://github.com/Promptonauts/releasepipe.git",
	}
	notes := Notes(presetConfig, ctx, nil)
	want := "## [1.1.0](https://github.com/Promptonauts/releasepipe/compare/v1.0.0...v1.1.0)\n"
	if notes != want {
		t.Fatalf("unexpected title: %q", notes)
	}
}

func TestPreviewPlacesHeader(t *testing.T) {
	notes := "## 1.0.0\n\n### Features\n\n* a\n\n"
	got := Preview(presetConfig.Header, notes)
	want := "# " + presetConfig.Header + "\n\n## 1.0.0\n\n### Features\n\n* a\n"
	if got != want {
		t.Fatalf("unexpected preview:\n%q\nwant:\n%q", got, want)
	}
	if bare := Preview("  ", notes); bare != "## 1.0.0\n\n### Features\n\n* a\n" {
		t.Fatalf("expected notes unchanged without header, got %q", bare)
	}
}
