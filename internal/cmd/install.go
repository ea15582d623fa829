package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/quantmind-br/upip/internal/cleanup"
	"github.com/quantmind-br/upip/internal/config"
	"github.com/quantmind-br/upip/internal/core"
	"github.com/quantmind-br/upip/internal/extract"
	"github.com/quantmind-br/upip/internal/index"
	"github.com/quantmind-br/upip/internal/logging"
	"github.com/quantmind-br/upip/internal/paths"
	"github.com/quantmind-br/upip/internal/resolver"
	"github.com/quantmind-br/upip/internal/transport"
	"github.com/quantmind-br/upip/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// NewInstallCmd creates the install command
func NewInstallCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	var opts core.InstallOptions

	cmd := &cobra.Command{
		Use:   "install [-p PATH] [-r FILE]... PACKAGE...",
		Short: "Install packages and their dependencies",
		Long: `Install packages from the index together with every dependency listed in
their egg-info requires.txt. Only the latest release of each package is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := collectSpecs(opts.Requirements, args)
			if err != nil {
				return err
			}
			if len(specs) == 0 {
				_ = cmd.Usage()
				return ErrUsage
			}
			return runInstall(cmd, cfg, log, opts, specs)
		},
	}
	cmd.SetFlagErrorFunc(flagError)

	cmd.Flags().StringVarP(&opts.InstallPath, "path", "p", "", "install destination (default: first MICROPYPATH entry)")
	cmd.Flags().StringArrayVarP(&opts.Requirements, "requirements", "r", nil, "install packages listed in a requirements file (repeatable)")
	cmd.Flags().BoolVar(&opts.Debug, "debug", false, "verbose logging; keep temporary files")
	cmd.Flags().BoolVar(&opts.NoProgress, "no-progress", false, "disable download progress bars")

	return cmd
}

// collectSpecs returns requirements-file entries, in file order, followed by
// the positional package names
func collectSpecs(files, args []string) ([]string, error) {
	var specs []string
	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			return nil, fmt.Errorf("open requirements file: %w", err)
		}
		names, err := resolver.ParseRequirements(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		specs = append(specs, names...)
	}
	return append(specs, args...), nil
}

func runInstall(cmd *cobra.Command, cfg *config.Config, log *zerolog.Logger, opts core.InstallOptions, specs []string) error {
	runLog, runID := logging.WithRunID(log)
	if opts.Debug {
		debugLog := runLog.Level(zerolog.DebugLevel)
		runLog = &debugLog
	}

	dest := paths.NewResolver(cfg).InstallPath(opts.InstallPath)

	runLog.Info().
		Str("run_id", runID).
		Str("destination", dest).
		Strs("packages", specs).
		Msg("starting installation")

	fs := afero.NewOsFs()
	tracker := cleanup.NewTracker(fs, runLog)
	defer func() {
		if opts.Debug {
			if kept := tracker.Pending(); len(kept) > 0 {
				ui.PrintWarning("keeping %d temporary file(s): %s", len(kept), strings.Join(kept, ", "))
			}
			return
		}
		if n := tracker.Cleanup(); n > 0 {
			runLog.Debug().Int("count", n).Msg("removed temporary files")
		}
	}()

	tr := transport.New(runLog, transport.WithTLSVerification(cfg.Index.VerifyTLS))
	installer := resolver.NewInstaller(
		index.NewClient(tr, cfg.Index.URL, runLog),
		tr,
		extract.New(fs, runLog,
			extract.WithTracker(tracker),
			extract.WithBufferSize(cfg.Extract.BufferSize),
		),
		runLog,
		resolver.WithProgress(!opts.NoProgress),
		resolver.WithStartHook(func(rel *core.Release) {
			ui.PrintInfo("Installing %s %s from %s", rel.Name, rel.Version, rel.URL)
		}),
	)

	ui.PrintInfo("Installing to: %s", dest)
	report, err := installer.Install(cmd.Context(), dest, specs)
	if report != nil && len(report.Installed) > 0 {
		printSummary(cmd, report)
	}
	if err != nil {
		ui.PrintError("%v", err)
		runLog.Error().Err(err).Msg("installation failed")
		return err
	}

	ui.PrintSuccess("Installed %d package(s) to %s", len(report.Installed), dest)
	runLog.Info().Strs("installed", report.Names()).Msg("installation completed successfully")
	return nil
}

// printSummary prints the installed packages as a table
func printSummary(cmd *cobra.Command, report *resolver.Report) {
	ui.PrintHeader("Installed packages")
	table := tablewriter.NewTable(cmd.OutOrStdout(),
		tablewriter.WithHeader([]string{"Name", "Version", "Files", "Dependencies"}),
		tablewriter.WithAlignment(tw.MakeAlign(4, tw.AlignLeft)),
		tablewriter.WithSymbols(tw.NewSymbols(tw.StyleLight)),
	)

	for _, pkg := range report.Installed {
		deps := "-"
		if len(pkg.Deps) > 0 {
			deps = strings.Join(pkg.Deps, ", ")
		}
		table.Append(
			pkg.Name,
			pkg.Version,
			strconv.Itoa(len(pkg.Files)),
			deps,
		)
	}

	table.Render()
}
