package paths

import (
	"os"
	"strings"

	"github.com/quantmind-br/upip/internal/config"
)

// EnvMicroPyPath lists module search directories, colon separated
const EnvMicroPyPath = "MICROPYPATH"

// DefaultMicroPyPath is used when MICROPYPATH is unset
const DefaultMicroPyPath = "~/.micropython/lib:/usr/lib/micropython"

// Resolver computes the install destination from flags, configuration and
// the environment
type Resolver struct {
	homeDir string
	cfg     *config.Config
	getenv  func(string) string
}

// NewResolver creates a Resolver using the current user's HOME
func NewResolver(cfg *config.Config) *Resolver {
	return &Resolver{
		homeDir: os.Getenv("HOME"),
		cfg:     cfg,
		getenv:  os.Getenv,
	}
}

// NewResolverWithEnv creates a Resolver with an explicit home directory and
// environment lookup (useful for tests)
func NewResolverWithEnv(cfg *config.Config, homeDir string, getenv func(string) string) *Resolver {
	return &Resolver{
		homeDir: homeDir,
		cfg:     cfg,
		getenv:  getenv,
	}
}

// InstallPath returns the destination root. Precedence: flag, configured
// install path, first entry of MICROPYPATH, first entry of the default list.
func (r *Resolver) InstallPath(flag string) string {
	if flag != "" {
		return r.ExpandHome(flag)
	}
	if r.cfg != nil && r.cfg.Paths.InstallPath != "" {
		return r.ExpandHome(r.cfg.Paths.InstallPath)
	}

	list, ok := "", false
	if r.getenv != nil {
		list = r.getenv(EnvMicroPyPath)
		ok = list != ""
	}
	if !ok {
		list = DefaultMicroPyPath
	}
	first, _, _ := strings.Cut(list, ":")
	return r.ExpandHome(first)
}

// ExpandHome replaces a leading "~/" with the home directory
func (r *Resolver) ExpandHome(s string) string {
	if rest, ok := strings.CutPrefix(s, "~/"); ok && r.homeDir != "" {
		return strings.TrimRight(r.homeDir, "/") + "/" + rest
	}
	return s
}
