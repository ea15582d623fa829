// Package resolver drives an install run: it drains a FIFO of package names,
// installs each one and queues the dependencies found in its archive.
package resolver

import (
	"context"
	"fmt"
	"io"

	"github.com/quantmind-br/upip/internal/core"
	"github.com/quantmind-br/upip/internal/decompress"
	"github.com/quantmind-br/upip/internal/tarstream"
	"github.com/quantmind-br/upip/internal/transport"
	"github.com/quantmind-br/upip/internal/ui"
	"github.com/rs/zerolog"
)

// MetadataClient resolves a package name to its latest release
type MetadataClient interface {
	Lookup(ctx context.Context, name string) (*core.Release, error)
}

// Opener opens a URL and returns its body
type Opener interface {
	Open(ctx context.Context, url string) (*transport.Response, error)
}

// Extractor unpacks an archive below dest
type Extractor interface {
	Extract(tr *tarstream.Reader, dest string) (*core.InstallMeta, error)
}

// InstallError reports the package an install run stopped at
type InstallError struct {
	Package core.PackageSpec
	Err     error
}

// Error implements the error interface
func (e *InstallError) Error() string {
	if core.IsKind(e.Err, core.KindNotFound) {
		return fmt.Sprintf("cannot find '%s' package (or server error), packages may be partially installed: %v", e.Package, e.Err)
	}
	return fmt.Sprintf("cannot install '%s', packages may be partially installed: %v", e.Package, e.Err)
}

// Unwrap returns the underlying cause
func (e *InstallError) Unwrap() error {
	return e.Err
}

// Report lists what an install run did, in install order
type Report struct {
	Destination string
	Installed   []core.InstalledPackage
}

// Names returns the installed package names in install order
func (r *Report) Names() []string {
	names := make([]string, 0, len(r.Installed))
	for _, p := range r.Installed {
		names = append(names, p.Name)
	}
	return names
}

// Installer installs packages and their dependency closure
type Installer struct {
	index     MetadataClient
	opener    Opener
	extractor Extractor
	log       *zerolog.Logger
	progress  bool
	onStart   func(*core.Release)
}

// Option configures an Installer
type Option func(*Installer)

// WithProgress shows a download progress bar per archive
func WithProgress(enabled bool) Option {
	return func(i *Installer) {
		i.progress = enabled
	}
}

// WithStartHook is called before each archive download
func WithStartHook(fn func(*core.Release)) Option {
	return func(i *Installer) {
		i.onStart = fn
	}
}

// NewInstaller creates an Installer
func NewInstaller(index MetadataClient, opener Opener, extractor Extractor, log *zerolog.Logger, opts ...Option) *Installer {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	i := &Installer{
		index:     index,
		opener:    opener,
		extractor: extractor,
		log:       log,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Install installs specs and everything they depend on into dest, breadth
// first. A name is processed at most once; repeats are dropped when they reach
// the head of the queue. The first failure stops the run and nothing already
// written is removed; the returned Report always lists what was installed.
func (i *Installer) Install(ctx context.Context, dest string, specs []core.PackageSpec) (*Report, error) {
	report := &Report{Destination: dest}
	queue := NewQueue(specs...)
	installed := make(map[core.PackageSpec]bool)

	for queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		i.log.Debug().Strs("queue", queue.Snapshot()).Msg("install queue")
		spec, _ := queue.Pop()
		if installed[spec] {
			continue
		}

		pkg, err := i.installOne(ctx, spec, dest)
		if err != nil {
			return report, &InstallError{Package: spec, Err: err}
		}
		installed[spec] = true
		report.Installed = append(report.Installed, *pkg)
		queue.Push(pkg.Deps...)
	}

	return report, nil
}

func (i *Installer) installOne(ctx context.Context, spec core.PackageSpec, dest string) (*core.InstalledPackage, error) {
	rel, err := i.index.Lookup(ctx, spec)
	if err != nil {
		return nil, err
	}

	i.log.Info().
		Str("package", spec).
		Str("version", rel.Version).
		Str("url", rel.URL).
		Msg("installing package")
	if i.onStart != nil {
		i.onStart(rel)
	}

	resp, err := i.opener.Open(ctx, rel.URL)
	if err != nil {
		return nil, err
	}
	defer resp.Close()

	var body io.Reader = resp
	if i.progress {
		pr := ui.NewProgressReader(resp, resp.ContentLength, rel.Filename)
		defer pr.Close()
		body = pr
	}

	dr, err := decompress.NewReader(body)
	if err != nil {
		return nil, err
	}
	defer dr.Close()

	tr := tarstream.NewReader(dr)
	meta, err := i.extractor.Extract(tr, dest)
	if err != nil {
		return nil, err
	}

	var deps []string
	if meta.HasDeps() {
		deps = ParseRequires(meta.Deps)
	}
	i.log.Debug().
		Str("package", spec).
		Str("compression", string(dr.Format())).
		Int64("archive_bytes", tr.Offset()).
		Int("files", len(meta.Files)).
		Strs("deps", deps).
		Msg("package extracted")

	return &core.InstalledPackage{
		Name:    spec,
		Version: rel.Version,
		URL:     rel.URL,
		Files:   meta.Files,
		Deps:    deps,
	}, nil
}
