package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Color scheme for upip
var (
	Success = color.New(color.FgGreen)
	Error   = color.New(color.FgRed, color.Bold)
	Warning = color.New(color.FgYellow)
	Info    = color.New(color.FgCyan)

	Muted = color.New(color.Faint)
	Bold  = color.New(color.Bold)

	// Status indicators
	CheckMark = "✓"
	CrossMark = "✗"
	Arrow     = "→"
)

// Output streams, replaceable in tests
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

// InitColors initializes color settings from the configured mode
// ("always", "never" or "auto") and the environment
func InitColors(mode string) {
	switch mode {
	case "always":
		EnableColors()
		return
	case "never":
		DisableColors()
		return
	}

	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		DisableColors()
	}

	// Respect TERM environment variable
	if os.Getenv("TERM") == "dumb" {
		DisableColors()
	}
}

// PrintSuccess prints a success message
func PrintSuccess(format string, args ...interface{}) {
	Success.Fprintf(Stdout, "%s %s\n", CheckMark, fmt.Sprintf(format, args...))
}

// PrintError prints an error message
func PrintError(format string, args ...interface{}) {
	Error.Fprintf(Stderr, "%s Error: %s\n", CrossMark, fmt.Sprintf(format, args...))
}

// PrintWarning prints a warning message
func PrintWarning(format string, args ...interface{}) {
	Warning.Fprintf(Stderr, "Warning: %s\n", fmt.Sprintf(format, args...))
}

// PrintInfo prints an info message
func PrintInfo(format string, args ...interface{}) {
	Info.Fprintf(Stdout, "%s %s\n", Arrow, fmt.Sprintf(format, args...))
}

// PrintHeader prints a section header
func PrintHeader(text string) {
	fmt.Fprintln(Stdout)
	Bold.Fprintln(Stdout, text)
	Muted.Fprintln(Stdout, "────────────────────────────────────────")
}

// DisableColors disables all color output
func DisableColors() {
	color.NoColor = true
}

// EnableColors enables color output
func EnableColors() {
	color.NoColor = false
}

// AreColorsEnabled returns whether colors are currently enabled
func AreColorsEnabled() bool {
	return !color.NoColor
}
