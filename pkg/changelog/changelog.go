// Package changelog renders release notes grouped by the section mapping of
// the release-notes-generator stage.
package changelog

import (
	"fmt"
	"strings"

	"github.com/Promptonauts/releasepipe/pkg/analyzer"
	"github.com/Promptonauts/releasepipe/pkg/models"
)

// Context describes the release the notes are written for.
type Context struct {
	Version       string
	PreviousTag   string
	CurrentTag    string
	Date          string
	RepositoryURL string
}

type section struct {
	title   string
	entries []string
}

// Notes renders markdown notes for one release. Sections appear in the order
// the mapping first names them; hidden and unmapped types are left out.
func Notes(cfg models.PresetConfig, ctx Context, commits []analyzer.Commit) string {
	var order []*section
	byTitle := map[string]*section{}
	for _, t := range cfg.Types {
		if t.Hidden || t.Section == "" {
			continue
		}
		if _, ok := byTitle[t.Section]; ok {
			continue
		}
		s := &section{title: t.Section}
		byTitle[t.Section] = s
		order = append(order, s)
	}

	var breaking []string
	for _, c := range commits {
		if c.Skip {
			continue
		}
		for _, note := range c.Notes {
			if c.Type != analyzer.BreakingTag && note != "" {
				breaking = append(breaking, "* "+scoped(c.Scope, note))
			}
		}
		s := sectionFor(cfg, byTitle, c)
		if s == nil {
			continue
		}
		s.entries = append(s.entries, entry(c))
	}

	var b strings.Builder
	b.WriteString(title(ctx))
	b.WriteString("\n")
	for _, s := range order {
		if len(s.entries) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n### %s\n\n", s.title)
		for _, e := range s.entries {
			b.WriteString(e)
			b.WriteString("\n")
		}
	}
	if len(breaking) > 0 {
		b.WriteString("\n### ⚠ BREAKING CHANGES\n\n")
		for _, e := range breaking {
			b.WriteString(e)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func sectionFor(cfg models.PresetConfig, byTitle map[string]*section, c analyzer.Commit) *section {
	for _, tag := range c.Tags() {
		t, ok := cfg.Section(tag)
		if !ok {
			continue
		}
		if t.Hidden {
			return nil
		}
		return byTitle[t.Section]
	}
	return nil
}

func title(ctx Context) string {
	version := ctx.Version
	if ctx.RepositoryURL != "" && ctx.PreviousTag != "" && ctx.CurrentTag != "" {
		base := strings.TrimSuffix(strings.TrimSuffix(ctx.RepositoryURL, "/"), ".git")
		version = fmt.Sprintf("[%s](%s/compare/%s...%s)", ctx.Version, base, ctx.PreviousTag, ctx.CurrentTag)
	}
	if ctx.Date == "" {
		return "## " + version
	}
	return fmt.Sprintf("## %s (%s)", version, ctx.Date)
}

func entry(c analyzer.Commit) string {
	line := "* " + scoped(c.Scope, c.Subject)
	if c.SHA != "" {
		short := c.SHA
		if len(short) > 7 {
			short = short[:7]
		}
		line += " (" + short + ")"
	}
	return line
}

func scoped(scope, text string) string {
	if scope == "" {
		return text
	}
	return fmt.Sprintf("**%s:** %s", scope, text)
}

// Preview shows notes the way they would open the changelog file: under the
// preset's global header, when one is set.
func Preview(header, notes string) string {
	notes = strings.TrimRight(notes, "\n") + "\n"
	if header = strings.TrimSpace(header); header == "" {
		return notes
	}
	return "# " + header + "\n\n" + notes
}
