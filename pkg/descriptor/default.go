package descriptor

import (
	"fmt"

	"github.com/Promptonauts/releasepipe/pkg/models"
)

// Default builds the release pipeline this repository ships with: angular
// release rules on master, conventional-commits notes, a .version file,
// package.json bump without publishing, a release commit and a GitHub release.
func Default() models.Descriptor {
	noPublish := false
	return models.Descriptor{
		Branches: []string{"master"},
		Plugins: []models.Stage{
			mustStage(models.PluginCommitAnalyzer, models.CommitAnalyzerOptions{
				Preset: "angular",
				ReleaseRules: []models.ReleaseRule{
					// Both spellings of a breaking change are kept; commit
					// authors use either.
					{Type: "BREAKING CHANGE", Release: models.MagnitudeMajor},
					{Type: "feat!", Release: models.MagnitudeMajor},
					{Type: "feat", Release: models.MagnitudeMinor},
					{Message: models.WildcardMessage, Release: models.MagnitudePatch},
				},
			}),
			mustStage(models.PluginNotesGenerator, models.NotesGeneratorOptions{
				Preset: "conventionalcommits",
				PresetConfig: models.PresetConfig{
					Header: "CHANGELOG",
					Types: []models.SectionType{
						{Type: "feat", Section: "Features"},
						{Type: "BREAKING CHANGE", Section: "Breaking Changes"},
						{Type: "feat!", Section: "Breaking Changes"},
						{Type: "fix", Section: "Bug Fixes"},
						{Type: "perf", Section: "Performance Improvements"},
						{Type: "test", Section: "Tests"},
						{Type: "build", Section: "Build System"},
						{Type: "ci", Section: "CI/CD"},
						{Type: "revert", Section: "Reverts"},
					},
				},
			}),
			mustStage(models.PluginExec, models.ExecOptions{
				PrepareCmd: "echo ${nextRelease.version} > .version",
			}),
			mustStage(models.PluginNpm, models.NpmOptions{NpmPublish: &noPublish}),
			mustStage(models.PluginGit, models.GitOptions{
				Assets:  []string{"package.json", ".version"},
				Message: "chore(release): ${nextRelease.version} [skip ci]\n\n${nextRelease.notes}",
			}),
			models.NameOnly(models.PluginGithub),
		},
	}
}

func mustStage(name string, typed interface{}) models.Stage {
	opts, err := models.OptionsFrom(typed)
	if err != nil {
		panic(fmt.Sprintf("descriptor: build %s options: %v", name, err))
	}
	return models.WithOptions(name, opts)
}
