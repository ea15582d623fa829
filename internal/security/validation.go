package security

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// ValidPackageNameRegex follows the index's project name rule: ASCII
	// letters and digits, with '.', '_' and '-' allowed only in the middle.
	ValidPackageNameRegex = regexp.MustCompile(`^(?i:[a-z0-9]|[a-z0-9][a-z0-9._-]*[a-z0-9])$`)

	// ValidVersionRegex allows standard version formats
	ValidVersionRegex = regexp.MustCompile(`^[a-zA-Z0-9._+!-]+$`)
)

// ValidatePackageName validates a package name before it is placed in an
// index URL
func ValidatePackageName(name string) error {
	if name == "" {
		return fmt.Errorf("package name cannot be empty")
	}

	if len(name) > 255 {
		return fmt.Errorf("package name too long (max 255 characters)")
	}

	if !ValidPackageNameRegex.MatchString(name) {
		return fmt.Errorf("invalid package name %q: must contain only letters, digits, '.', '_' or '-' and start and end with a letter or digit", name)
	}

	return nil
}

// ValidateVersion validates a version string reported by the index
func ValidateVersion(version string) error {
	if version == "" {
		return fmt.Errorf("invalid version: version cannot be empty")
	}

	if len(version) >= 100 {
		return fmt.Errorf("version string too long (max 100 characters)")
	}

	for _, pattern := range []string{"..", "/", "\\", "\x00", "\n", "\r"} {
		if strings.Contains(version, pattern) {
			return fmt.Errorf("invalid version: contains dangerous pattern: %q", pattern)
		}
	}

	if !ValidVersionRegex.MatchString(version) {
		return fmt.Errorf("invalid version format: %q", version)
	}

	return nil
}
