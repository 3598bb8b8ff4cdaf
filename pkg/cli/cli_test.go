package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/Promptonauts/releasepipe/pkg/descriptor"
	"github.com/Promptonauts/releasepipe/pkg/publish"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("RELEASEPIPE_DB_PATH", filepath.Join(t.TempDir(), "cli.db"))
	t.Setenv("RELEASEPIPE_S3_ENDPOINT", "")
	return runWithEnv(t, args...)
}

func runWithEnv(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand(&out, &errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestValidateBuiltin(t *testing.T) {
	out, err := run(t, "validate")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "OK: built-in (1 branches, 6 plugins)") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestValidateRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "release.config.json")
	if err := os.WriteFile(path, []byte(`{"branches":["master"],"plugins":["@semantic-release/unknown"]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := run(t, "validate", path)
	var schema *descriptor.SchemaError
	if !errors.As(err, &schema) {
		t.Fatalf("expected schema error, got %v", err)
	}
	if schema.Field != "plugins[0]" {
		t.Fatalf("unexpected field %q", schema.Field)
	}
}

func TestExportRoundTrip(t *testing.T) {
	for _, format := range []descriptor.Format{descriptor.FormatJSON, descriptor.FormatYAML, descriptor.FormatJS} {
		t.Run(string(format), func(t *testing.T) {
			out, err := run(t, "export", "--format", string(format))
			if err != nil {
				t.Fatalf("export: %v", err)
			}
			got, err := descriptor.Parse([]byte(out), format)
			if err != nil {
				t.Fatalf("parse exported output: %v", err)
			}
			if want := descriptor.Default(); !reflect.DeepEqual(got, want) {
				t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
			}
		})
	}
}

func TestExportToFileThenValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".releaserc.yaml")
	if _, err := run(t, "export", "-f", "yaml", "-o", path); err != nil {
		t.Fatalf("export: %v", err)
	}
	out, err := run(t, "validate", path)
	if err != nil {
		t.Fatalf("validate exported file: %v", err)
	}
	if !strings.Contains(out, "OK: "+path) {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestExportPublishRequiresObjectStore(t *testing.T) {
	_, err := run(t, "export", "--publish", "default")
	if !errors.Is(err, publish.ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	if _, err := run(t, "export", "--format", "toml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestPlanFromMessages(t *testing.T) {
	out, err := run(t, "plan", "--last-version", "1.2.3", "--date", "2026-10-18",
		"-m", "feat(api): add endpoint", "-m", "fix: typo")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	for _, want := range []string{
		"minor release on master: 1.2.3 -> 1.3.0 (tag v1.3.0)",
		"@semantic-release/exec prepareCmd: echo 1.3.0 > .version",
		"# CHANGELOG\n\n## 1.3.0 (2026-10-18)",
		"### Features",
		"add endpoint",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestPlanIneligibleBranch(t *testing.T) {
	_, err := run(t, "plan", "--branch", "dev", "-m", "feat: x")
	if err == nil || !strings.Contains(err.Error(), "branch is not configured") {
		t.Fatalf("expected ineligible branch error, got %v", err)
	}
}

func TestPlanRecordAndHistory(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RELEASEPIPE_DB_PATH", filepath.Join(dir, "history.db"))
	t.Setenv("RELEASEPIPE_S3_ENDPOINT", "")

	commits := filepath.Join(dir, "commits.txt")
	body := "feat: new flag\n\nBREAKING CHANGE: flag renamed\n---\nchore: tidy\n"
	if err := os.WriteFile(commits, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := runWithEnv(t, "register", "default"); err != nil {
		t.Fatalf("register: %v", err)
	}
	out, err := runWithEnv(t, "plan", "--commits-file", commits, "--last-version", "2.0.0", "--record", "default", "--json")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !strings.Contains(out, `"nextVersion": "3.0.0"`) {
		t.Fatalf("expected major bump in %s", out)
	}

	history, err := runWithEnv(t, "history", "default")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(history), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one plan, got %q", history)
	}
	for _, want := range []string{"master", "Released", "major", "3.0.0"} {
		if !strings.Contains(lines[1], want) {
			t.Fatalf("expected %q in %q", want, lines[1])
		}
	}
}

func TestPlanRecordsFailure(t *testing.T) {
	t.Setenv("RELEASEPIPE_DB_PATH", filepath.Join(t.TempDir(), "failed.db"))
	t.Setenv("RELEASEPIPE_S3_ENDPOINT", "")

	if _, err := runWithEnv(t, "plan", "--branch", "dev", "-m", "feat: x", "--record", "default"); err == nil {
		t.Fatal("expected ineligible branch error")
	}
	history, err := runWithEnv(t, "history", "default")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(history), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "Failed") || !strings.Contains(lines[1], "dev") {
		t.Fatalf("expected one failed plan on dev, got %q", history)
	}
}

func TestHistoryEmpty(t *testing.T) {
	out, err := run(t, "history", "missing")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "no plans recorded for missing") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestPluginsList(t *testing.T) {
	out, err := run(t, "plugins")
	if err != nil {
		t.Fatalf("plugins: %v", err)
	}
	if got := strings.Fields(out); !reflect.DeepEqual(got, descriptor.Plugins()) {
		t.Fatalf("expected %v, got %v", descriptor.Plugins(), got)
	}
}

func TestReadCommitsFile(t *testing.T) {
	input := "feat: one\n\nbody line\n---\n\n---\nfix: two\n"
	got, err := readCommitsFile("-", strings.NewReader(input))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := []string{"feat: one\n\nbody line", "fix: two"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
