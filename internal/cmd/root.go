package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/quantmind-br/upip/internal/config"
	"github.com/quantmind-br/upip/internal/core"
	"github.com/quantmind-br/upip/internal/resolver"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// ErrUsage is returned after usage has been printed for a malformed invocation
	ErrUsage = errors.New("invalid usage")

	// ErrHelp is returned by Execute after help was printed
	ErrHelp = fmt.Errorf("%w: help requested", ErrUsage)
)

const helpShownAnnotation = "upip/help-shown"

// NewRootCmd creates the root command
func NewRootCmd(cfg *config.Config, log *zerolog.Logger, version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upip",
		Short: "Simple PyPI package installer for MicroPython",
		Long: `upip installs packages and their dependencies from a PyPI-style index.

If -p is not given, packages are installed to the first path component of
MICROPYPATH, or to ~/.micropython/lib/ by default.
Only pure source packages (usually micropython-*) are supported; setup.py is
never run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("%w: only 'install' command supported, got %q", ErrUsage, args[0])
			}
			_ = cmd.Usage()
			return ErrUsage
		},
	}
	cmd.SetFlagErrorFunc(flagError)

	defaultHelp := cmd.HelpFunc()
	cmd.SetHelpFunc(func(c *cobra.Command, args []string) {
		defaultHelp(c, args)
		root := c.Root()
		if root.Annotations == nil {
			root.Annotations = map[string]string{}
		}
		root.Annotations[helpShownAnnotation] = "true"
	})

	// Add subcommands
	cmd.AddCommand(NewInstallCmd(cfg, log))
	cmd.AddCommand(NewVersionCmd(version))

	return cmd
}

// Execute runs root. Printing help counts as a usage error, so -h ends with a
// non-zero status like any other invocation that only prints usage.
func Execute(ctx context.Context, root *cobra.Command) error {
	if err := root.ExecuteContext(ctx); err != nil {
		return err
	}
	if root.Annotations[helpShownAnnotation] != "" {
		return ErrHelp
	}
	return nil
}

func flagError(cmd *cobra.Command, err error) error {
	_ = cmd.Usage()
	return fmt.Errorf("%w: %v", ErrUsage, err)
}

// ExitCode maps a command error to the process exit status
func ExitCode(err error) int {
	if err == nil {
		return core.ExitSuccess
	}
	if errors.Is(err, ErrUsage) {
		return core.ExitInvalidArgs
	}
	var ierr *resolver.InstallError
	if errors.As(err, &ierr) {
		if code := core.ExitCode(ierr.Err); code != core.ExitGeneral {
			return code
		}
		return core.ExitInstallFailed
	}
	return core.ExitCode(err)
}
