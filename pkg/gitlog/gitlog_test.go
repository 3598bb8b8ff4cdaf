package gitlog

import "testing"

func TestParseLog(t *testing.T) {
	out := "aaa111" + fieldSep + "feat(cli): add plan\n\nBody text\n" + recordSep + "\n" +
		"bbb222" + fieldSep + "fix: typo\n" + recordSep + "\n"
	commits := parseLog(out)
	if len(commits) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(commits))
	}
	if commits[0].SHA != "aaa111" || commits[0].Type != "feat" || commits[0].Scope != "cli" {
		t.Fatalf("unexpected first commit: %+v", commits[0])
	}
	if commits[1].SHA != "bbb222" || commits[1].Subject != "typo" {
		t.Fatalf("unexpected second commit: %+v", commits[1])
	}
}

func TestParseLogEmpty(t *testing.T) {
	if commits := parseLog("\n"); len(commits) != 0 {
		t.Fatalf("expected no commits, got %+v", commits)
	}
}

func TestVersionFromTag(t *testing.T) {
	cases := []struct{ tag, format, want string }{
		{"v1.2.3", "v${version}", "1.2.3"},
		{"release-2.0.0", "release-${version}", "2.0.0"},
		{"1.0.0", "", "1.0.0"},
	}
	for _, tc := range cases {
		if got := VersionFromTag(tc.tag, tc.format); got != tc.want {
			t.Fatalf("%s/%s: expected %s, got %s", tc.tag, tc.format, tc.want, got)
		}
	}
}
