package analyzer

import (
	"regexp"
	"strings"
)

// BreakingTag is the type tag a commit carries when its footer announces a
// breaking change.
const BreakingTag = "BREAKING CHANGE"

var headerPattern = regexp.MustCompile(`^(\w[\w -]*?)(?:\(([^()\r\n]*)\))?(!)?: (.+)$`)

var skipMarkers = []string{"[skip release]", "[release skip]"}

// Commit is a parsed conventional commit message.
type Commit struct {
	SHA     string   `json:"sha,omitempty"`
	Raw     string   `json:"raw"`
	Type    string   `json:"type,omitempty"`
	Scope   string   `json:"scope,omitempty"`
	Subject string   `json:"subject"`
	Bang    bool     `json:"bang,omitempty"`
	Notes   []string `json:"notes,omitempty"`
	Skip    bool     `json:"skip,omitempty"`
}

// ParseCommit splits a raw message into its conventional parts. Messages
// without a conventional header keep their first line as the subject and
// have no type.
func ParseCommit(raw string) Commit {
	msg := strings.ReplaceAll(raw, "\r\n", "\n")
	msg = strings.TrimSpace(msg)
	c := Commit{Raw: msg}

	header, body, _ := strings.Cut(msg, "\n")
	header = strings.TrimSpace(header)
	if m := headerPattern.FindStringSubmatch(header); m != nil {
		c.Type = strings.TrimSpace(m[1])
		c.Scope = strings.TrimSpace(m[2])
		c.Bang = m[3] == "!"
		c.Subject = strings.TrimSpace(m[4])
	} else {
		c.Subject = header
	}
	if c.Type == BreakingTag || c.Type == "BREAKING-CHANGE" {
		c.Type = BreakingTag
		c.Notes = append(c.Notes, c.Subject)
	}

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		for _, prefix := range []string{"BREAKING CHANGE:", "BREAKING-CHANGE:"} {
			if strings.HasPrefix(line, prefix) {
				c.Notes = append(c.Notes, strings.TrimSpace(strings.TrimPrefix(line, prefix)))
			}
		}
	}

	lower := strings.ToLower(msg)
	for _, marker := range skipMarkers {
		if strings.Contains(lower, marker) {
			c.Skip = true
		}
	}
	return c
}

// Breaking reports whether the commit announces an incompatible change
// through a bang or a breaking footer.
func (c Commit) Breaking() bool {
	return c.Bang || len(c.Notes) > 0
}

// TypeTag is the type as release rules see it: "feat!" for a banged feat.
// A breaking-change header keeps BreakingTag with or without the bang.
func (c Commit) TypeTag() string {
	if c.Type == "" || c.Type == BreakingTag {
		return c.Type
	}
	if c.Bang {
		return c.Type + "!"
	}
	return c.Type
}

// Tags lists every type tag a rule may match. A breaking footer adds
// BreakingTag next to the header type.
func (c Commit) Tags() []string {
	var tags []string
	if tag := c.TypeTag(); tag != "" {
		tags = append(tags, tag)
	}
	if len(c.Notes) > 0 && c.Type != BreakingTag {
		tags = append(tags, BreakingTag)
	}
	return tags
}
