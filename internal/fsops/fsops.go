package fsops

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
)

// DefaultBufferSize is the copy buffer used when none is configured
const DefaultBufferSize = 512

// EnsureDir ensures a directory exists with the given permissions.
// An existing directory is not an error.
func EnsureDir(fs afero.Fs, path string, perm os.FileMode) error {
	if err := fs.MkdirAll(path, perm); err != nil {
		return fmt.Errorf("ensure directory: %w", err)
	}
	return nil
}

// Exists checks if a path exists
func Exists(fs afero.Fs, path string) bool {
	_, err := fs.Stat(path)
	return err == nil
}

// IsDir checks if a path is a directory
func IsDir(fs afero.Fs, path string) bool {
	info, err := fs.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// CopyBuffer copies src to dst through buf with repeated bounded reads until
// src is exhausted. Unlike io.CopyBuffer it never bypasses buf through
// ReaderFrom or WriterTo, so at most len(buf) bytes are in flight.
func CopyBuffer(dst io.Writer, src io.Reader, buf []byte) (int64, error) {
	if len(buf) == 0 {
		buf = make([]byte, DefaultBufferSize)
	}
	var written int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			written += int64(w)
			if werr != nil {
				return written, werr
			}
			if w != n {
				return written, io.ErrShortWrite
			}
		}
		if rerr == io.EOF { //nolint:errorlint // io.Reader contract
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

// RemoveIfExists removes a file, treating a missing file as success
func RemoveIfExists(fs afero.Fs, path string) error {
	if err := fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
