package core

// InstallOptions contains options for an install run
type InstallOptions struct {
	InstallPath  string   // Destination root; resolved from the environment when empty
	Requirements []string // Requirements files read before positional packages
	Debug        bool     // Verbose logging, temp files kept
	NoProgress   bool     // Disable download progress bars
}
