package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateExtractPath prevents directory traversal attacks (Zip Slip vulnerability).
// Ensures that the extracted path does not escape the target directory.
func ValidateExtractPath(targetDir, extractedPath string) error {
	if err := ValidatePath(extractedPath); err != nil {
		return err
	}

	// Reject before cleaning; Clean would fold "a/../../x" into "../x" anyway
	for _, seg := range strings.Split(filepath.ToSlash(extractedPath), "/") {
		if seg == ".." {
			return fmt.Errorf("path contains ..: %s", extractedPath)
		}
	}

	cleanPath := filepath.Clean(extractedPath)
	if filepath.IsAbs(cleanPath) {
		return fmt.Errorf("absolute path not allowed: %s", extractedPath)
	}

	cleanDest := filepath.Clean(targetDir)
	cleanTarget := filepath.Join(cleanDest, cleanPath)

	rel, err := filepath.Rel(cleanDest, cleanTarget)
	if err != nil {
		return fmt.Errorf("resolve destination path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path escapes destination directory: %s", extractedPath)
	}

	return nil
}

// ValidatePath performs general path validation
func ValidatePath(path string) error {
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("path contains null bytes: %q", path)
	}

	if len(path) > 4096 {
		return fmt.Errorf("path too long: %d characters", len(path))
	}

	return nil
}
