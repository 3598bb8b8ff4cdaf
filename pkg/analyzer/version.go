package analyzer

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/Promptonauts/releasepipe/pkg/models"
)

// FirstRelease is the version of the first release of a project.
const FirstRelease = "1.0.0"

// NextVersion bumps last by m. An empty last means no release exists yet.
// A none magnitude yields "" and no error.
func NextVersion(last string, m models.Magnitude) (string, error) {
	if !m.Valid() {
		return "", fmt.Errorf("unknown magnitude %q", m)
	}
	if m == models.MagnitudeNone {
		return "", nil
	}
	last = strings.TrimSpace(last)
	if last == "" {
		return FirstRelease, nil
	}
	v, err := semver.NewVersion(last)
	if err != nil {
		return "", fmt.Errorf("parse last version %q: %w", last, err)
	}
	var next semver.Version
	switch m {
	case models.MagnitudeMajor:
		next = v.IncMajor()
	case models.MagnitudeMinor:
		next = v.IncMinor()
	default:
		next = v.IncPatch()
	}
	return next.String(), nil
}
