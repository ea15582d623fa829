package resolver

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// nameRE matches the project name at the start of a requirement line
var nameRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*`)

// ParseRequires extracts dependency names from a requires.txt blob. Blank
// lines and comments are ignored, version specifiers and markers are dropped,
// and parsing stops at the first "[extra]" section since optional
// dependencies are never installed.
func ParseRequires(blob []byte) []string {
	var names []string
	for _, line := range bytes.Split(blob, []byte("\n")) {
		s := strings.TrimSpace(string(line))
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		if strings.HasPrefix(s, "[") {
			break
		}
		if name := nameRE.FindString(s); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// ParseRequirements reads a requirements list: one package name per line,
// surrounding whitespace trimmed, blank and comment lines skipped
func ParseRequirements(r io.Reader) ([]string, error) {
	var names []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read requirements: %w", err)
	}
	return names, nil
}
