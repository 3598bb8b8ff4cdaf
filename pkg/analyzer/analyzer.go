package analyzer

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/Promptonauts/releasepipe/pkg/models"
)

// DefaultRules apply when the commit-analyzer stage declares no rules of its
// own; they follow the angular preset.
var DefaultRules = []models.ReleaseRule{
	{Type: BreakingTag, Release: models.MagnitudeMajor},
	{Type: "feat!", Release: models.MagnitudeMajor},
	{Type: "fix!", Release: models.MagnitudeMajor},
	{Type: "perf!", Release: models.MagnitudeMajor},
	{Type: "feat", Release: models.MagnitudeMinor},
	{Type: "fix", Release: models.MagnitudePatch},
	{Type: "perf", Release: models.MagnitudePatch},
	{Type: "revert", Release: models.MagnitudePatch},
}

type compiledRule struct {
	rule    models.ReleaseRule
	scope   glob.Glob
	message glob.Glob
}

func (r compiledRule) matches(c Commit) bool {
	if t := strings.TrimSpace(r.rule.Type); t != "" {
		found := false
		for _, tag := range c.Tags() {
			if tag == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if r.scope != nil && !r.scope.Match(c.Scope) {
		return false
	}
	if r.message != nil && !r.message.Match(c.Raw) {
		return false
	}
	return true
}

// Analyzer decides release magnitudes from an ordered rule list. The first
// matching rule wins for each commit.
type Analyzer struct {
	rules []compiledRule
}

func New(rules []models.ReleaseRule) (*Analyzer, error) {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	a := &Analyzer{rules: make([]compiledRule, 0, len(rules))}
	for i, rule := range rules {
		if !rule.Release.Valid() {
			return nil, fmt.Errorf("release rule %d: unknown magnitude %q", i, rule.Release)
		}
		cr := compiledRule{rule: rule}
		if s := strings.TrimSpace(rule.Scope); s != "" {
			g, err := glob.Compile(s)
			if err != nil {
				return nil, fmt.Errorf("release rule %d: scope pattern: %w", i, err)
			}
			cr.scope = g
		}
		if m := strings.TrimSpace(rule.Message); m != "" {
			g, err := glob.Compile(m)
			if err != nil {
				return nil, fmt.Errorf("release rule %d: message pattern: %w", i, err)
			}
			cr.message = g
		}
		a.rules = append(a.rules, cr)
	}
	return a, nil
}

// ForDescriptor builds an analyzer from the descriptor's commit-analyzer
// stage. A descriptor without that stage gets the default rules.
func ForDescriptor(d *models.Descriptor) (*Analyzer, error) {
	stage, ok := d.Stage(models.PluginCommitAnalyzer)
	if !ok {
		return New(nil)
	}
	var opts models.CommitAnalyzerOptions
	if err := stage.Options.Decode(&opts); err != nil {
		return nil, fmt.Errorf("commit analyzer options: %w", err)
	}
	return New(opts.ReleaseRules)
}

type CommitDecision struct {
	Commit  Commit           `json:"commit"`
	Release models.Magnitude `json:"release"`
	// Rule is the index of the matching rule, or -1.
	Rule int `json:"rule"`
}

type Decision struct {
	Release models.Magnitude `json:"release"`
	Commits []CommitDecision `json:"commits"`
}

// Classify returns the magnitude for one commit and the index of the rule
// that decided it. Skipped and unmatched commits yield none and -1.
func (a *Analyzer) Classify(c Commit) (models.Magnitude, int) {
	if c.Skip {
		return models.MagnitudeNone, -1
	}
	for i, r := range a.rules {
		if r.matches(c) {
			return r.rule.Release, i
		}
	}
	return models.MagnitudeNone, -1
}

// Analyze classifies every commit and returns the largest magnitude.
func (a *Analyzer) Analyze(commits []Commit) Decision {
	d := Decision{Release: models.MagnitudeNone, Commits: make([]CommitDecision, 0, len(commits))}
	for _, c := range commits {
		release, idx := a.Classify(c)
		d.Commits = append(d.Commits, CommitDecision{Commit: c, Release: release, Rule: idx})
		d.Release = d.Release.Max(release)
	}
	return d
}
