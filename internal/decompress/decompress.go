// Package decompress wraps a compressed archive stream with a lazily
// decoding reader. The container is detected from its magic bytes.
package decompress

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/quantmind-br/upip/internal/core"
	"github.com/ulikunitz/xz"
)

// Format identifies a compression container
type Format string

const (
	FormatGzip Format = "gzip"
	FormatXz   Format = "xz"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// Reader is a decompressing stream
type Reader struct {
	format Format
	dec    io.Reader
	closer io.Closer
}

// NewReader sniffs the container of r and returns a decompressing reader.
// An unrecognized or malformed header is a format-corruption error.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(xzMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, core.NewError(core.KindFormatCorruption, "gzip header", err)
		}
		return &Reader{format: FormatGzip, dec: zr, closer: zr}, nil

	case bytes.HasPrefix(head, xzMagic):
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, core.NewError(core.KindFormatCorruption, "xz header", err)
		}
		return &Reader{format: FormatXz, dec: xr}, nil

	default:
		return nil, core.Errorf(core.KindFormatCorruption, "decompress",
			"unrecognized compression (leading bytes % x)", head)
	}
}

// Format returns the detected container
func (r *Reader) Format() Format {
	return r.format
}

// Read implements io.Reader. Decode failures are reported as format corruption.
func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.dec.Read(p)
	if err == nil || err == io.EOF { //nolint:errorlint // io.Reader contract
		return n, err
	}
	if isDecodeError(r.format, err) {
		return n, core.NewError(core.KindFormatCorruption, fmt.Sprintf("%s stream", r.format), err)
	}
	return n, err
}

// Close releases decoder state. It does not close the underlying stream.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

func isDecodeError(format Format, err error) bool {
	var corrupt flate.CorruptInputError
	switch {
	case errors.Is(err, gzip.ErrChecksum), errors.Is(err, gzip.ErrHeader):
		return true
	case errors.As(err, &corrupt):
		return true
	case errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}
	// xz reports every decoding problem as a plain error
	return format == FormatXz
}
