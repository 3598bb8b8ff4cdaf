package descriptor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Promptonauts/releasepipe/pkg/models"
)

// optionsChecker validates the options of one plugin stage. field is the
// path of the stage options, e.g. "plugins[2].options".
type optionsChecker func(field string, opts models.Options) error

var catalog = map[string]optionsChecker{
	models.PluginCommitAnalyzer: checkCommitAnalyzer,
	models.PluginNotesGenerator: checkNotesGenerator,
	models.PluginExec:           checkExec,
	models.PluginNpm:            checkNpm,
	models.PluginGit:            checkGit,
	models.PluginGithub:         checkGithub,
}

// Known reports whether name is a plugin the orchestrator can resolve.
func Known(name string) bool {
	_, ok := catalog[name]
	return ok
}

// Plugins lists the known plugin identifiers in sorted order.
func Plugins() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func decodeOptions(field string, opts models.Options, into interface{}) error {
	if err := opts.Decode(into); err != nil {
		return schemaErr(field, "options: %v", err)
	}
	return nil
}

func checkCommitAnalyzer(field string, opts models.Options) error {
	var typed models.CommitAnalyzerOptions
	if err := decodeOptions(field, opts, &typed); err != nil {
		return err
	}
	if _, declared := opts["releaseRules"]; !declared {
		return nil
	}
	return checkReleaseRules(field+".releaseRules", typed.ReleaseRules)
}

// checkReleaseRules enforces first-match-wins ordering: exactly one wildcard
// rule, placed last so it acts as the default.
func checkReleaseRules(field string, rules []models.ReleaseRule) error {
	wildcards := 0
	for i, rule := range rules {
		ruleField := fmt.Sprintf("%s[%d]", field, i)
		if !rule.HasPredicate() {
			return schemaErr(ruleField, "rule must declare a type, scope or message")
		}
		if !rule.Release.Valid() {
			return schemaErr(ruleField+".release", "unknown magnitude %q (want major, minor, patch or none)", rule.Release)
		}
		if rule.IsWildcard() {
			wildcards++
			if i != len(rules)-1 {
				return schemaErr(ruleField, "wildcard rule must be the last rule")
			}
		}
	}
	if wildcards != 1 {
		return schemaErr(field, "expected exactly one terminal wildcard rule, found %d", wildcards)
	}
	return nil
}

func checkNotesGenerator(field string, opts models.Options) error {
	var typed models.NotesGeneratorOptions
	if err := decodeOptions(field, opts, &typed); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(typed.PresetConfig.Types))
	for i, t := range typed.PresetConfig.Types {
		typeField := fmt.Sprintf("%s.presetConfig.types[%d]", field, i)
		key := strings.TrimSpace(t.Type)
		if key == "" {
			return schemaErr(typeField+".type", "type is required")
		}
		if !t.Hidden && strings.TrimSpace(t.Section) == "" {
			return schemaErr(typeField+".section", "section is required for visible type %s", key)
		}
		if _, dup := seen[key]; dup {
			return schemaErr(typeField+".type", "duplicate type %s", key)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func checkExec(field string, opts models.Options) error {
	var typed models.ExecOptions
	if err := decodeOptions(field, opts, &typed); err != nil {
		return err
	}
	for key, value := range opts {
		if !strings.HasSuffix(key, "Cmd") {
			continue
		}
		cmd, _ := value.(string)
		if strings.TrimSpace(cmd) == "" {
			return schemaErr(field+"."+key, "command must not be blank")
		}
	}
	if len(typed.Commands()) == 0 {
		return schemaErr(field, "at least one command is required")
	}
	return nil
}

func checkNpm(field string, opts models.Options) error {
	var typed models.NpmOptions
	return decodeOptions(field, opts, &typed)
}

func checkGit(field string, opts models.Options) error {
	var typed models.GitOptions
	if err := decodeOptions(field, opts, &typed); err != nil {
		return err
	}
	for i, asset := range typed.Assets {
		if strings.TrimSpace(asset) == "" {
			return schemaErr(fmt.Sprintf("%s.assets[%d]", field, i), "asset path must not be blank")
		}
	}
	return nil
}

func checkGithub(field string, opts models.Options) error {
	var typed models.GithubOptions
	return decodeOptions(field, opts, &typed)
}
