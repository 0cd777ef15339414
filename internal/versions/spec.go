package versions

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ValidateSpec checks that a package version spec is either empty (any version)
// or a valid semver constraint such as "1.0", ">= 1.2, < 2" or "~1.4.0".
func ValidateSpec(spec string) error {
	if strings.TrimSpace(spec) == "" {
		return nil
	}
	if _, err := semver.NewConstraint(spec); err != nil {
		return fmt.Errorf("invalid version spec %q: %w", spec, err)
	}
	return nil
}

// Satisfies reports whether version satisfies spec. An empty spec accepts any version.
// A partial spec such as "1.0" matches any 1.0.x release.
func Satisfies(spec, version string) (bool, error) {
	if strings.TrimSpace(spec) == "" {
		return true, nil
	}
	constraint, err := semver.NewConstraint(spec)
	if err != nil {
		return false, fmt.Errorf("invalid version spec %q: %w", spec, err)
	}
	v, err := semver.NewVersion(strings.TrimSpace(version))
	if err != nil {
		return false, fmt.Errorf("invalid version %q: %w", version, err)
	}
	return constraint.Check(v), nil
}
