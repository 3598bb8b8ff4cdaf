// Package plan computes what a release run would do for a descriptor and a
// set of commits, without executing anything.
package plan

import (
	"errors"
	"fmt"
	"time"

	"github.com/Promptonauts/releasepipe/pkg/analyzer"
	"github.com/Promptonauts/releasepipe/pkg/changelog"
	"github.com/Promptonauts/releasepipe/pkg/descriptor"
	"github.com/Promptonauts/releasepipe/pkg/models"
	"github.com/Promptonauts/releasepipe/pkg/templating"
)

// DefaultTagFormat is used when the descriptor sets no tagFormat.
const DefaultTagFormat = "v${version}"

var ErrBranchNotEligible = errors.New("branch is not configured for releases")

type Input struct {
	Branch      string
	LastVersion string
	Commits     []analyzer.Commit
	// Date is the release date printed in the notes; defaults to today (UTC).
	Date string
}

// Step is one templated stage option rendered for the planned release.
type Step struct {
	Stage  string `json:"stage"`
	Option string `json:"option"`
	Value  string `json:"value"`
}

type Plan struct {
	Branch      string               `json:"branch"`
	LastVersion string               `json:"lastVersion,omitempty"`
	NextVersion string               `json:"nextVersion,omitempty"`
	GitTag      string               `json:"gitTag,omitempty"`
	Release     models.Magnitude     `json:"release"`
	Decision    analyzer.Decision    `json:"decision"`
	Notes       string               `json:"notes,omitempty"`
	Changelog   string               `json:"changelog,omitempty"`
	Steps       []Step               `json:"steps,omitempty"`
	Warnings    []descriptor.Warning `json:"warnings,omitempty"`
}

func (p *Plan) Released() bool {
	return p.Release != models.MagnitudeNone
}

// Build validates d and plans a release of in.Commits on in.Branch.
func Build(d *models.Descriptor, in Input) (*Plan, error) {
	if err := descriptor.Validate(d); err != nil {
		return nil, err
	}
	if !eligible(d, in.Branch) {
		return nil, fmt.Errorf("%w: %q", ErrBranchNotEligible, in.Branch)
	}
	a, err := analyzer.ForDescriptor(d)
	if err != nil {
		return nil, err
	}

	decision := a.Analyze(in.Commits)
	p := &Plan{
		Branch:      in.Branch,
		LastVersion: in.LastVersion,
		Release:     decision.Release,
		Decision:    decision,
		Warnings:    descriptor.Lint(d),
	}
	if !p.Released() {
		return p, nil
	}

	p.NextVersion, err = analyzer.NextVersion(in.LastVersion, decision.Release)
	if err != nil {
		return nil, err
	}
	tagFormat := d.TagFormat
	if tagFormat == "" {
		tagFormat = DefaultTagFormat
	}
	ctx := templating.Context{
		NextRelease: templating.Release{Version: p.NextVersion},
		Branch:      in.Branch,
	}
	if p.GitTag, err = templating.Interpolate(tagFormat, ctx); err != nil {
		return nil, fmt.Errorf("tagFormat: %w", err)
	}
	ctx.NextRelease.GitTag = p.GitTag
	if in.LastVersion != "" {
		ctx.LastRelease.Version = in.LastVersion
		last := templating.Context{NextRelease: templating.Release{Version: in.LastVersion}}
		if ctx.LastRelease.GitTag, err = templating.Interpolate(tagFormat, last); err != nil {
			return nil, fmt.Errorf("tagFormat: %w", err)
		}
	}

	date := in.Date
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}
	var notesCfg models.NotesGeneratorOptions
	if stage, ok := d.Stage(models.PluginNotesGenerator); ok {
		if err := stage.Options.Decode(&notesCfg); err != nil {
			return nil, fmt.Errorf("release notes options: %w", err)
		}
	}
	p.Notes = changelog.Notes(notesCfg.PresetConfig, changelog.Context{
		Version:       p.NextVersion,
		PreviousTag:   ctx.LastRelease.GitTag,
		CurrentTag:    p.GitTag,
		Date:          date,
		RepositoryURL: d.RepositoryURL,
	}, in.Commits)
	ctx.NextRelease.Notes = p.Notes
	p.Changelog = changelog.Preview(notesCfg.PresetConfig.Header, p.Notes)

	if p.Steps, err = renderSteps(d, ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func eligible(d *models.Descriptor, branch string) bool {
	for _, b := range d.Branches {
		if b == branch {
			return true
		}
	}
	return false
}

func renderSteps(d *models.Descriptor, ctx templating.Context) ([]Step, error) {
	var steps []Step
	for _, stage := range d.Plugins {
		switch stage.Name {
		case models.PluginExec:
			var opts models.ExecOptions
			if err := stage.Options.Decode(&opts); err != nil {
				return nil, fmt.Errorf("exec options: %w", err)
			}
			for _, cmd := range opts.Commands() {
				value, err := templating.Interpolate(cmd.Command, ctx)
				if err != nil {
					return nil, fmt.Errorf("%s %s: %w", stage.Name, cmd.Option, err)
				}
				steps = append(steps, Step{Stage: stage.Name, Option: cmd.Option, Value: value})
			}
		case models.PluginGit:
			var opts models.GitOptions
			if err := stage.Options.Decode(&opts); err != nil {
				return nil, fmt.Errorf("git options: %w", err)
			}
			if opts.Message == "" {
				continue
			}
			value, err := templating.Interpolate(opts.Message, ctx)
			if err != nil {
				return nil, fmt.Errorf("%s message: %w", stage.Name, err)
			}
			steps = append(steps, Step{Stage: stage.Name, Option: "message", Value: value})
		}
	}
	return steps, nil
}

// Record converts a plan into its persisted form, one log line per commit.
func Record(p *Plan, descriptorName string, revision int) *models.PlanRecord {
	rec := &models.PlanRecord{
		DescriptorName: descriptorName,
		Revision:       revision,
		Branch:         p.Branch,
		State:          models.PlanNoRelease,
		LastVersion:    p.LastVersion,
		NextVersion:    p.NextVersion,
		GitTag:         p.GitTag,
		Magnitude:      p.Release,
		Notes:          p.Notes,
		CommitCount:    len(p.Decision.Commits),
	}
	if p.Released() {
		rec.State = models.PlanReleased
	}
	now := time.Now().UTC()
	for i, cd := range p.Decision.Commits {
		msg := fmt.Sprintf("%s -> %s", cd.Commit.Subject, cd.Release)
		if cd.Rule >= 0 {
			msg = fmt.Sprintf("%s (rule %d)", msg, cd.Rule)
		}
		rec.Logs = append(rec.Logs, models.PlanLog{Timestamp: now, Level: "info", Message: msg, Commit: i})
	}
	return rec
}

// PlanWriter is the part of the store a plan is persisted through.
type PlanWriter interface {
	CreatePlan(plan *models.PlanRecord) error
	AppendPlanLog(id string, log models.PlanLog) error
}

// SaveFailure records a plan that could not be built. The cause becomes its
// only log entry.
func SaveFailure(w PlanWriter, descriptorName string, revision int, in Input, cause error) (*models.PlanRecord, error) {
	rec := &models.PlanRecord{
		DescriptorName: descriptorName,
		Revision:       revision,
		Branch:         in.Branch,
		State:          models.PlanFailed,
		LastVersion:    in.LastVersion,
		Magnitude:      models.MagnitudeNone,
		CommitCount:    len(in.Commits),
		Error:          cause.Error(),
	}
	if err := w.CreatePlan(rec); err != nil {
		return nil, err
	}
	entry := models.PlanLog{Timestamp: time.Now().UTC(), Level: "error", Message: cause.Error(), Commit: -1}
	if err := w.AppendPlanLog(rec.ID, entry); err != nil {
		return rec, err
	}
	return rec, nil
}
