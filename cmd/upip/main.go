package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/quantmind-br/upip/internal/cmd"
	"github.com/quantmind-br/upip/internal/config"
	"github.com/quantmind-br/upip/internal/core"
	"github.com/quantmind-br/upip/internal/logging"
	"github.com/quantmind-br/upip/internal/ui"
)

var version = "dev"

// envConfigFile names an explicit configuration file
const envConfigFile = "UPIP_CONFIG"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	// a second interrupt gets the default behaviour
	go func() {
		<-ctx.Done()
		stop()
	}()

	// Load configuration
	var (
		cfg *config.Config
		err error
	)
	if path := os.Getenv(envConfigFile); path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return core.ExitGeneral
	}

	ui.InitColors(cfg.Logging.Color)

	// Initialize logger
	log := logging.NewLogger(logging.Config{
		Level:   cfg.Logging.Level,
		LogFile: cfg.Paths.LogFile,
		NoColor: !ui.AreColorsEnabled(),
	})

	// Execute root command
	rootCmd := cmd.NewRootCmd(cfg, log, version)
	rootCmd.SetArgs(args)
	if err := cmd.Execute(ctx, rootCmd); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn().Msg("interrupted")
			return core.ExitInterrupted
		}
		if errors.Is(err, cmd.ErrUsage) && !errors.Is(err, cmd.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		log.Debug().Err(err).Msg("command failed")
		return cmd.ExitCode(err)
	}
	return core.ExitSuccess
}
