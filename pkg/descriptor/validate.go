package descriptor

import (
	"fmt"
	"strings"

	"github.com/Promptonauts/releasepipe/pkg/models"
	"github.com/Promptonauts/releasepipe/pkg/templating"
)

// Validate checks that d is structurally well formed. It returns nil or a
// *SchemaError naming the first offending field.
func Validate(d *models.Descriptor) error {
	if d == nil {
		return schemaErr("descriptor", "descriptor is nil")
	}
	if err := validateBranches(d.Branches); err != nil {
		return err
	}
	if len(d.Plugins) == 0 {
		return schemaErr("plugins", "at least one plugin is required")
	}
	seen := make(map[string]int, len(d.Plugins))
	for i, stage := range d.Plugins {
		field := fmt.Sprintf("plugins[%d]", i)
		name := stage.Name
		if strings.TrimSpace(name) == "" {
			return schemaErr(field, "plugin name is required")
		}
		if strings.TrimSpace(name) != name {
			return schemaErr(field, "plugin name %q has surrounding whitespace", name)
		}
		check, ok := catalog[name]
		if !ok {
			return schemaErr(field, "unknown plugin %s", name)
		}
		if prev, dup := seen[name]; dup {
			return schemaErr(field, "duplicate plugin %s (first declared at plugins[%d])", name, prev)
		}
		seen[name] = i
		if stage.HasOptions() {
			if err := check(field+".options", stage.Options); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateBranches(branches []string) error {
	if len(branches) == 0 {
		return schemaErr("branches", "at least one branch is required")
	}
	seen := make(map[string]struct{}, len(branches))
	for i, branch := range branches {
		name := strings.TrimSpace(branch)
		if name == "" {
			return schemaErr(fmt.Sprintf("branches[%d]", i), "branch name must not be empty")
		}
		if name != branch {
			return schemaErr(fmt.Sprintf("branches[%d]", i), "branch name %q has surrounding whitespace", branch)
		}
		if _, dup := seen[name]; dup {
			return schemaErr(fmt.Sprintf("branches[%d]", i), "duplicate branch %s", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Warning is an advisory finding that does not block export.
type Warning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return w.Field + ": " + w.Message
}

// Lint reports advisory findings: release rule types that have no changelog
// section mapping, and template placeholders the planner cannot resolve.
// It assumes d already passed Validate.
func Lint(d *models.Descriptor) []Warning {
	return append(lintSections(d), lintTemplates(d)...)
}

func lintSections(d *models.Descriptor) []Warning {
	analyzerAt := stageIndex(d, models.PluginCommitAnalyzer)
	if analyzerAt < 0 || !d.Plugins[analyzerAt].HasOptions() {
		return nil
	}
	notesAt := stageIndex(d, models.PluginNotesGenerator)
	if notesAt < 0 {
		return []Warning{{
			Field:   "plugins",
			Message: "commit analyzer configured without a release notes generator",
		}}
	}
	var rules models.CommitAnalyzerOptions
	var gen models.NotesGeneratorOptions
	if d.Plugins[analyzerAt].Options.Decode(&rules) != nil || d.Plugins[notesAt].Options.Decode(&gen) != nil {
		return nil
	}
	if len(gen.PresetConfig.Types) == 0 {
		return nil
	}

	var warnings []Warning
	for i, rule := range rules.ReleaseRules {
		t := strings.TrimSpace(rule.Type)
		if t == "" {
			continue
		}
		if _, mapped := gen.PresetConfig.Section(t); !mapped {
			warnings = append(warnings, Warning{
				Field:   fmt.Sprintf("plugins[%d].options.releaseRules[%d].type", analyzerAt, i),
				Message: fmt.Sprintf("type %s has no changelog section", t),
			})
		}
	}
	return warnings
}

func stageIndex(d *models.Descriptor, name string) int {
	for i, stage := range d.Plugins {
		if stage.Name == name {
			return i
		}
	}
	return -1
}

func lintTemplates(d *models.Descriptor) []Warning {
	var warnings []Warning
	check := func(field, tmpl string) {
		for _, key := range templating.Placeholders(tmpl) {
			if !templating.Known(key) {
				warnings = append(warnings, Warning{
					Field:   field,
					Message: fmt.Sprintf("unknown placeholder ${%s}", key),
				})
			}
		}
	}
	check("tagFormat", d.TagFormat)
	for i, stage := range d.Plugins {
		switch stage.Name {
		case models.PluginExec:
			var opts models.ExecOptions
			if stage.Options.Decode(&opts) != nil {
				continue
			}
			for _, cmd := range opts.Commands() {
				check(fmt.Sprintf("plugins[%d].options.%s", i, cmd.Option), cmd.Command)
			}
		case models.PluginGit:
			var opts models.GitOptions
			if stage.Options.Decode(&opts) != nil {
				continue
			}
			check(fmt.Sprintf("plugins[%d].options.message", i), opts.Message)
		}
	}
	return warnings
}
