package templating

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`\$\{\s*([A-Za-z_][\w.]*)\s*\}`)

type Release struct {
	Version string `json:"version"`
	GitTag  string `json:"gitTag"`
	Notes   string `json:"notes"`
}

// Context holds the values a stage option template may reference.
type Context struct {
	NextRelease Release `json:"nextRelease"`
	LastRelease Release `json:"lastRelease"`
	Branch      string  `json:"branch"`
}

func (c Context) lookup(key string) (string, bool) {
	switch key {
	case "nextRelease.version":
		return c.NextRelease.Version, true
	case "nextRelease.gitTag":
		return c.NextRelease.GitTag, true
	case "nextRelease.notes":
		return c.NextRelease.Notes, true
	case "lastRelease.version":
		return c.LastRelease.Version, true
	case "lastRelease.gitTag":
		return c.LastRelease.GitTag, true
	case "branch.name":
		return c.Branch, true
	case "version":
		// tagFormat templates use the bare name
		return c.NextRelease.Version, true
	}
	return "", false
}

// Interpolate replaces ${key} placeholders. Unknown keys fail so a typo in
// a command template is caught before handoff.
func Interpolate(tmpl string, ctx Context) (string, error) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		v, ok := ctx.lookup(key)
		if !ok {
			missing = append(missing, key)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("template %q: unknown placeholder %s", tmpl, strings.Join(missing, ", "))
	}
	return out, nil
}

// Known reports whether key is a placeholder Interpolate can resolve.
func Known(key string) bool {
	_, ok := Context{}.lookup(key)
	return ok
}

// Placeholders lists the keys referenced by tmpl in order of appearance.
func Placeholders(tmpl string) []string {
	matches := placeholder.FindAllStringSubmatch(tmpl, -1)
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		keys = append(keys, m[1])
	}
	return keys
}
