package plan

import (
	"errors"
	"strings"
	"testing"

	"github.com/Promptonauts/releasepipe/pkg/analyzer"
	"github.com/Promptonauts/releasepipe/pkg/descriptor"
	"github.com/Promptonauts/releasepipe/pkg/models"
)

func commits(raws ...string) []analyzer.Commit {
	out := make([]analyzer.Commit, len(raws))
	for i, r := range raws {
		out[i] = analyzer.ParseCommit(r)
	}
	return out
}

func TestBuildMinorRelease(t *testing.T) {
	d := descriptor.Default()
	p, err := Build(&d, Input{
		Branch:      "master",
		LastVersion: "1.2.3",
		Commits:     commits("feat: add export", "fix: typo"),
		Date:        "2026-10-18",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if p.Release != models.MagnitudeMinor || p.NextVersion != "1.3.0" || p.GitTag != "v1.3.0" {
		t.Fatalf("unexpected plan: %+v", p)
	}
	if !strings.HasPrefix(p.Notes, "## 1.3.0 (2026-10-18)") {
		t.Fatalf("unexpected notes:\n%s", p.Notes)
	}
	if len(p.Steps) != 2 {
		t.Fatalf("expected exec and git steps, got %+v", p.Steps)
	}
	if p.Steps[0].Option != "prepareCmd" || p.Steps[0].Value != "echo 1.3.0 > .version" {
		t.Fatalf("unexpected prepare step: %+v", p.Steps[0])
	}
	if !strings.HasPrefix(p.Steps[1].Value, "chore(release): 1.3.0 [skip ci]\n\n## 1.3.0") {
		t.Fatalf("unexpected git message: %q", p.Steps[1].Value)
	}
}

func TestBuildMajorFromBang(t *testing.T) {
	d := descriptor.Default()
	p, err := Build(&d, Input{Branch: "master", LastVersion: "1.2.3", Commits: commits("feat!: drop legacy api")})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if p.Release != models.MagnitudeMajor || p.NextVersion != "2.0.0" {
		t.Fatalf("expected major 2.0.0, got %s %s", p.Release, p.NextVersion)
	}
}

func TestBuildFirstRelease(t *testing.T) {
	d := descriptor.Default()
	p, err := Build(&d, Input{Branch: "master", Commits: commits("chore: init")})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if p.Release != models.MagnitudePatch || p.NextVersion != analyzer.FirstRelease {
		t.Fatalf("expected first release, got %s %s", p.Release, p.NextVersion)
	}
}

func TestBuildNoRelease(t *testing.T) {
	d := descriptor.Default()
	p, err := Build(&d, Input{Branch: "master", LastVersion: "1.0.0"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if p.Released() || p.NextVersion != "" || len(p.Steps) != 0 {
		t.Fatalf("expected no release, got %+v", p)
	}
	rec := Record(p, "default", 1)
	if rec.State != models.PlanNoRelease {
		t.Fatalf("expected NoRelease record, got %s", rec.State)
	}
}

func TestBuildIneligibleBranch(t *testing.T) {
	d := descriptor.Default()
	_, err := Build(&d, Input{Branch: "feature/x", Commits: commits("feat: x")})
	if !errors.Is(err, ErrBranchNotEligible) {
		t.Fatalf("expected ErrBranchNotEligible, got %v", err)
	}
}

func TestBuildRejectsInvalidDescriptor(t *testing.T) {
	d := descriptor.Default()
	d.Branches = nil
	_, err := Build(&d, Input{Branch: "master"})
	var schema *descriptor.SchemaError
	if !errors.As(err, &schema) || schema.Field != "branches" {
		t.Fatalf("expected branches SchemaError, got %v", err)
	}
}

func TestBuildCustomTagFormat(t *testing.T) {
	d := descriptor.Default()
	d.TagFormat = "release-${version}"
	p, err := Build(&d, Input{Branch: "master", LastVersion: "0.9.0", Commits: commits("fix: x")})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if p.GitTag != "release-0.9.1" {
		t.Fatalf("unexpected tag %q", p.GitTag)
	}
}

func TestRecordLogsEachCommit(t *testing.T) {
	d := descriptor.Default()
	p, err := Build(&d, Input{Branch: "master", LastVersion: "1.0.0", Commits: commits("feat: a", "fix: b")})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	rec := Record(p, "default", 3)
	if rec.State != models.PlanReleased || rec.CommitCount != 2 || len(rec.Logs) != 2 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Logs[0].Message != "a -> minor (rule 2)" {
		t.Fatalf("unexpected log: %q", rec.Logs[0].Message)
	}
}

func TestBuildRejectsPaddedNames(t *testing.T) {
	d := models.Descriptor{
		Branches: []string{"master"},
		Plugins: []models.Stage{models.WithOptions(" "+models.PluginCommitAnalyzer, models.Options{
			"releaseRules": []interface{}{
				map[string]interface{}{"type": "docs", "release": "major"},
				map[string]interface{}{"message": "*", "release": "none"},
			},
		})},
	}
	_, err := Build(&d, Input{Branch: "master", Commits: commits("docs: readme")})
	var schema *descriptor.SchemaError
	if !errors.As(err, &schema) || schema.Field != "plugins[0]" {
		t.Fatalf("expected schema error on plugins[0], got %v", err)
	}

	d.Plugins[0].Name = models.PluginCommitAnalyzer
	d.Branches = []string{"master "}
	_, err = Build(&d, Input{Branch: "master", Commits: commits("docs: readme")})
	if !errors.As(err, &schema) || schema.Field != "branches[0]" {
		t.Fatalf("expected schema error on branches[0], got %v", err)
	}

	d.Branches = []string{"master"}
	p, err := Build(&d, Input{Branch: "master", LastVersion: "1.0.0", Commits: commits("docs: readme")})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if p.Release != models.MagnitudeMajor || p.NextVersion != "2.0.0" {
		t.Fatalf("expected configured docs rule to give major, got %s %s", p.Release, p.NextVersion)
	}
}

type memPlans struct {
	plans []*models.PlanRecord
	logs  map[string][]models.PlanLog
}

func (m *memPlans) CreatePlan(p *models.PlanRecord) error {
	p.ID = "plan-1"
	m.plans = append(m.plans, p)
	return nil
}

func (m *memPlans) AppendPlanLog(id string, log models.PlanLog) error {
	m.logs[id] = append(m.logs[id], log)
	return nil
}

func TestSaveFailure(t *testing.T) {
	w := &memPlans{logs: map[string][]models.PlanLog{}}
	cause := errors.New("branch is not configured for releases")
	rec, err := SaveFailure(w, "default", 3, Input{Branch: "dev", Commits: commits("feat: x")}, cause)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if rec.State != models.PlanFailed || rec.Revision != 3 || rec.CommitCount != 1 || rec.Error != cause.Error() {
		t.Fatalf("unexpected record: %+v", rec)
	}
	logs := w.logs[rec.ID]
	if len(logs) != 1 || logs[0].Level != "error" || logs[0].Message != cause.Error() {
		t.Fatalf("unexpected logs: %+v", logs)
	}
}

func TestBuildChangelogPreview(t *testing.T) {
	d := descriptor.Default()
	p, err := Build(&d, Input{Branch: "master", LastVersion: "1.0.0", Commits: commits("fix: typo"), Date: "2026-10-18"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.HasPrefix(p.Changelog, "# CHANGELOG\n\n## 1.0.1 (2026-10-18)") {
		t.Fatalf("unexpected changelog preview:\n%s", p.Changelog)
	}
	if strings.Contains(p.Notes, "# CHANGELOG") {
		t.Fatalf("notes must not carry the changelog header:\n%s", p.Notes)
	}
}
