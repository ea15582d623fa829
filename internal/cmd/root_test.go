package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/quantmind-br/upip/internal/config"
	"github.com/quantmind-br/upip/internal/core"
	"github.com/quantmind-br/upip/internal/resolver"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoot(t *testing.T, cfg *config.Config) (*bytes.Buffer, func(args ...string) error) {
	t.Helper()

	log := zerolog.New(io.Discard)
	root := NewRootCmd(cfg, &log, "1.0.0")

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	return &out, func(args ...string) error {
		root.SetArgs(args)
		return Execute(context.Background(), root)
	}
}

func TestNewRootCmd(t *testing.T) {
	log := zerolog.New(io.Discard)
	cmd := NewRootCmd(&config.Config{}, &log, "1.0.0")

	assert.Equal(t, "upip", cmd.Use)
	assert.True(t, cmd.SilenceUsage)

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "install")
	assert.Contains(t, names, "version")
}

func TestRootCmd_NoArgsPrintsUsage(t *testing.T) {
	out, run := newTestRoot(t, &config.Config{})

	err := run()
	require.ErrorIs(t, err, ErrUsage)
	assert.Contains(t, out.String(), "Usage:")
	assert.Equal(t, core.ExitInvalidArgs, ExitCode(err))
}

func TestRootCmd_Help(t *testing.T) {
	out, run := newTestRoot(t, &config.Config{})

	err := run("-h")
	require.ErrorIs(t, err, ErrHelp)
	assert.ErrorIs(t, err, ErrUsage)
	assert.Equal(t, core.ExitInvalidArgs, ExitCode(err))
	assert.Contains(t, out.String(), "MICROPYPATH")
}

func TestInstallCmd_Help(t *testing.T) {
	out, run := newTestRoot(t, &config.Config{})

	err := run("install", "--help")
	require.ErrorIs(t, err, ErrHelp)
	assert.Equal(t, core.ExitInvalidArgs, ExitCode(err))
	assert.Contains(t, out.String(), "--requirements")
}

func TestRootCmd_VersionIsNotHelp(t *testing.T) {
	out, run := newTestRoot(t, &config.Config{})

	require.NoError(t, run("version"))
	assert.Contains(t, out.String(), "upip version 1.0.0")
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	_, run := newTestRoot(t, &config.Config{})

	err := run("uninstall")
	require.ErrorIs(t, err, ErrUsage)
	assert.Contains(t, err.Error(), "only 'install' command supported")
}

func TestRootCmd_UnknownFlag(t *testing.T) {
	_, run := newTestRoot(t, &config.Config{})

	err := run("install", "--bogus", "pkg")
	require.ErrorIs(t, err, ErrUsage)
	assert.Equal(t, core.ExitInvalidArgs, ExitCode(err))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, core.ExitSuccess},
		{"usage", ErrUsage, core.ExitInvalidArgs},
		{"not found", &resolver.InstallError{Package: "x", Err: core.NewError(core.KindNotFound, "get", nil)}, core.ExitNetwork},
		{"transport", &resolver.InstallError{Package: "x", Err: core.NewError(core.KindTransportFailure, "get", nil)}, core.ExitNetwork},
		{"corruption", &resolver.InstallError{Package: "x", Err: core.NewError(core.KindFormatCorruption, "tar", nil)}, core.ExitInstallFailed},
		{"untagged install failure", &resolver.InstallError{Package: "x", Err: errors.New("boom")}, core.ExitInstallFailed},
		{"other", errors.New("boom"), core.ExitGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
