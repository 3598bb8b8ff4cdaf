package models

import "strings"

// Known plugin identifiers.
const (
	PluginCommitAnalyzer = "@semantic-release/commit-analyzer"
	PluginNotesGenerator = "@semantic-release/release-notes-generator"
	PluginExec           = "@semantic-release/exec"
	PluginNpm            = "@semantic-release/npm"
	PluginGit            = "@semantic-release/git"
	PluginGithub         = "@semantic-release/github"
)

type Magnitude string

const (
	MagnitudeNone  Magnitude = "none"
	MagnitudePatch Magnitude = "patch"
	MagnitudeMinor Magnitude = "minor"
	MagnitudeMajor Magnitude = "major"
)

var magnitudeRank = map[Magnitude]int{
	MagnitudeNone:  0,
	MagnitudePatch: 1,
	MagnitudeMinor: 2,
	MagnitudeMajor: 3,
}

func (m Magnitude) Valid() bool {
	_, ok := magnitudeRank[m]
	return ok
}

// Max returns the larger of two magnitudes. Unknown values rank below none.
func (m Magnitude) Max(other Magnitude) Magnitude {
	a, okA := magnitudeRank[m]
	b, okB := magnitudeRank[other]
	switch {
	case !okA && !okB:
		return MagnitudeNone
	case !okA:
		return other
	case !okB:
		return m
	case b > a:
		return other
	}
	return m
}

// WildcardMessage is the message matcher that accepts any commit.
const WildcardMessage = "*"

// ReleaseRule maps a commit classification to a release magnitude. All
// declared predicates must match for the rule to apply.
type ReleaseRule struct {
	Type    string    `yaml:"type,omitempty" json:"type,omitempty"`
	Scope   string    `yaml:"scope,omitempty" json:"scope,omitempty"`
	Message string    `yaml:"message,omitempty" json:"message,omitempty"`
	Release Magnitude `yaml:"release" json:"release"`
}

func (r ReleaseRule) IsWildcard() bool {
	return strings.TrimSpace(r.Type) == "" &&
		strings.TrimSpace(r.Scope) == "" &&
		strings.TrimSpace(r.Message) == WildcardMessage
}

func (r ReleaseRule) HasPredicate() bool {
	return strings.TrimSpace(r.Type) != "" ||
		strings.TrimSpace(r.Scope) != "" ||
		strings.TrimSpace(r.Message) != ""
}

// SectionType maps a commit type tag to a changelog section heading.
type SectionType struct {
	Type    string `yaml:"type" json:"type"`
	Section string `yaml:"section,omitempty" json:"section,omitempty"`
	Hidden  bool   `yaml:"hidden,omitempty" json:"hidden,omitempty"`
}

type PresetConfig struct {
	Header string        `yaml:"header,omitempty" json:"header,omitempty"`
	Types  []SectionType `yaml:"types,omitempty" json:"types,omitempty"`
}

// Section returns the heading configured for a type tag.
func (c PresetConfig) Section(commitType string) (SectionType, bool) {
	for _, t := range c.Types {
		if t.Type == commitType {
			return t, true
		}
	}
	return SectionType{}, false
}

type CommitAnalyzerOptions struct {
	Preset       string        `yaml:"preset,omitempty" json:"preset,omitempty"`
	ReleaseRules []ReleaseRule `yaml:"releaseRules,omitempty" json:"releaseRules,omitempty"`
}

type NotesGeneratorOptions struct {
	Preset       string       `yaml:"preset,omitempty" json:"preset,omitempty"`
	PresetConfig PresetConfig `yaml:"presetConfig,omitempty" json:"presetConfig,omitempty"`
}

// ExecOptions holds the shell command templates of the exec stage, one per
// lifecycle step.
type ExecOptions struct {
	VerifyConditionsCmd string `yaml:"verifyConditionsCmd,omitempty" json:"verifyConditionsCmd,omitempty"`
	AnalyzeCommitsCmd   string `yaml:"analyzeCommitsCmd,omitempty" json:"analyzeCommitsCmd,omitempty"`
	VerifyReleaseCmd    string `yaml:"verifyReleaseCmd,omitempty" json:"verifyReleaseCmd,omitempty"`
	GenerateNotesCmd    string `yaml:"generateNotesCmd,omitempty" json:"generateNotesCmd,omitempty"`
	PrepareCmd          string `yaml:"prepareCmd,omitempty" json:"prepareCmd,omitempty"`
	PublishCmd          string `yaml:"publishCmd,omitempty" json:"publishCmd,omitempty"`
	SuccessCmd          string `yaml:"successCmd,omitempty" json:"successCmd,omitempty"`
	FailCmd             string `yaml:"failCmd,omitempty" json:"failCmd,omitempty"`
}

// Commands lists the configured commands keyed by their option name, in
// lifecycle order.
func (o ExecOptions) Commands() []NamedCommand {
	all := []NamedCommand{
		{"verifyConditionsCmd", o.VerifyConditionsCmd},
		{"analyzeCommitsCmd", o.AnalyzeCommitsCmd},
		{"verifyReleaseCmd", o.VerifyReleaseCmd},
		{"generateNotesCmd", o.GenerateNotesCmd},
		{"prepareCmd", o.PrepareCmd},
		{"publishCmd", o.PublishCmd},
		{"successCmd", o.SuccessCmd},
		{"failCmd", o.FailCmd},
	}
	var set []NamedCommand
	for _, c := range all {
		if c.Command != "" {
			set = append(set, c)
		}
	}
	return set
}

type NamedCommand struct {
	Option  string `json:"option"`
	Command string `json:"command"`
}

type NpmOptions struct {
	NpmPublish *bool  `yaml:"npmPublish,omitempty" json:"npmPublish,omitempty"`
	PkgRoot    string `yaml:"pkgRoot,omitempty" json:"pkgRoot,omitempty"`
}

type GitOptions struct {
	Assets  []string `yaml:"assets,omitempty" json:"assets,omitempty"`
	Message string   `yaml:"message,omitempty" json:"message,omitempty"`
}

type GithubOptions struct {
	Assets         []string `yaml:"assets,omitempty" json:"assets,omitempty"`
	SuccessComment string   `yaml:"successComment,omitempty" json:"successComment,omitempty"`
	DraftRelease   bool     `yaml:"draftRelease,omitempty" json:"draftRelease,omitempty"`
}
