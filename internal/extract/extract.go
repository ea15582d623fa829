// Package extract unpacks source distribution archives into an install
// directory, skipping packaging metadata and capturing the dependency list.
package extract

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/quantmind-br/upip/internal/cleanup"
	"github.com/quantmind-br/upip/internal/core"
	"github.com/quantmind-br/upip/internal/fsops"
	"github.com/quantmind-br/upip/internal/security"
	"github.com/quantmind-br/upip/internal/tarstream"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// TempSuffix is appended to a destination path while it is being written
const TempSuffix = ".upip-tmp"

const requiresSuffix = "/requires.txt"

// metadataPrefixes mark packaging files that are never installed
var metadataPrefixes = []string{"setup.", "PKG-INFO", "README"}

// Extractor writes archive members below a destination directory
type Extractor struct {
	fs      afero.Fs
	log     *zerolog.Logger
	tracker *cleanup.Tracker
	bufSize int
}

// Option configures an Extractor
type Option func(*Extractor)

// WithBufferSize sets the copy buffer size
func WithBufferSize(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.bufSize = n
		}
	}
}

// WithTracker registers in-flight temporary files with tracker
func WithTracker(tracker *cleanup.Tracker) Option {
	return func(e *Extractor) {
		e.tracker = tracker
	}
}

// New creates an Extractor over fs
func New(fs afero.Fs, log *zerolog.Logger, opts ...Option) *Extractor {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	e := &Extractor{
		fs:      fs,
		log:     log,
		bufSize: fsops.DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract consumes every member of tr. Payload files are written below dest
// with the archive's top-level directory removed; metadata files are skipped
// and the content of an egg-info requires.txt is returned as the dependency
// blob. Files written before a failure stay on disk.
func (e *Extractor) Extract(tr *tarstream.Reader, dest string) (*core.InstallMeta, error) {
	meta := &core.InstallMeta{}
	buf := make([]byte, e.bufSize)

	for {
		m, err := tr.Next()
		if err == io.EOF { //nolint:errorlint // tarstream returns io.EOF unwrapped
			return meta, nil
		}
		if err != nil {
			return meta, err
		}

		rel := StripRoot(m.Name)
		if rel == "" {
			continue
		}

		if IsMetadata(rel) {
			if strings.HasSuffix(rel, requiresSuffix) && !m.IsDir() {
				deps, err := e.readDeps(m)
				if err != nil {
					return meta, err
				}
				meta.Deps = deps
			}
			e.log.Debug().Str("member", rel).Msg("skipping metadata")
			meta.Skipped = append(meta.Skipped, rel)
			continue
		}

		switch m.Type {
		case core.MemberDirectory:
			continue
		case core.MemberOther:
			e.log.Debug().Str("member", rel).Msg("skipping unsupported member type")
			meta.Skipped = append(meta.Skipped, rel)
			continue
		}

		if err := security.ValidateExtractPath(dest, rel); err != nil {
			return meta, core.NewError(core.KindFormatCorruption, "extract "+m.Name, err)
		}

		target := filepath.Join(dest, filepath.FromSlash(rel))
		e.log.Debug().Str("path", target).Int64("size", m.Size).Msg("extracting")
		if err := e.writeFile(m, target, buf); err != nil {
			return meta, err
		}
		meta.Files = append(meta.Files, target)
	}
}

func (e *Extractor) readDeps(m *tarstream.Member) ([]byte, error) {
	r, err := m.Open()
	if err != nil {
		return nil, core.NewError(core.KindFormatCorruption, "read "+m.Name, err)
	}
	deps, err := io.ReadAll(r)
	if err != nil {
		if core.KindOf(err) != core.KindUnknown {
			return nil, err
		}
		return nil, core.NewError(core.KindTransportFailure, "read "+m.Name, err)
	}
	if deps == nil {
		deps = []byte{}
	}
	return deps, nil
}

// writeFile streams the member payload to a temporary sibling of target and
// renames it into place, replacing any existing file
func (e *Extractor) writeFile(m *tarstream.Member, target string, buf []byte) error {
	if err := fsops.EnsureDir(e.fs, filepath.Dir(target), 0755); err != nil {
		return core.NewError(core.KindFilesystemFailure, "create directory "+filepath.Dir(target), err)
	}

	if fsops.IsDir(e.fs, target) {
		return core.Errorf(core.KindFilesystemFailure, "create "+target, "destination is a directory")
	}

	r, err := m.Open()
	if err != nil {
		return core.NewError(core.KindFormatCorruption, "read "+m.Name, err)
	}

	tmp := target + TempSuffix
	f, err := e.fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fileMode(m.Mode))
	if err != nil {
		return core.NewError(core.KindFilesystemFailure, "create "+target, err)
	}
	if e.tracker != nil {
		e.tracker.Track(tmp)
	}

	if _, err := fsops.CopyBuffer(&fileWriter{f: f, target: target}, r, buf); err != nil {
		f.Close()
		if core.KindOf(err) != core.KindUnknown {
			return err
		}
		// anything untagged came from the network below the decompressor
		return core.NewError(core.KindTransportFailure, "read "+m.Name, err)
	}
	if err := f.Close(); err != nil {
		return core.NewError(core.KindFilesystemFailure, "write "+target, err)
	}

	if err := e.fs.Rename(tmp, target); err != nil {
		return core.NewError(core.KindFilesystemFailure, "rename "+target, err)
	}
	if e.tracker != nil {
		e.tracker.Untrack(tmp)
	}
	return nil
}

// fileWriter tags write failures so they are not mistaken for read failures
type fileWriter struct {
	f      afero.File
	target string
}

func (w *fileWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	if err != nil {
		return n, core.NewError(core.KindFilesystemFailure, "write "+w.target, err)
	}
	return n, nil
}

// StripRoot removes the first path segment of an archive member name. A name
// without a separator is the root entry itself and yields "".
func StripRoot(name string) string {
	i := strings.IndexByte(name, '/')
	if i < 0 {
		return ""
	}
	return name[i+1:]
}

// IsMetadata reports whether a root-relative member path is packaging
// metadata that is never installed
func IsMetadata(rel string) bool {
	if strings.Contains(rel, ".egg-info") {
		return true
	}
	for _, p := range metadataPrefixes {
		if strings.HasPrefix(rel, p) {
			return true
		}
	}
	return false
}

func fileMode(mode int64) os.FileMode {
	perm := os.FileMode(mode) & 0o777
	if perm&0o400 == 0 {
		return 0o644
	}
	return perm | 0o200
}
