// Package tarstream reads tar archives incrementally from a non-seekable
// stream. Members are yielded one at a time; each member's payload is a
// bounded view over the underlying stream that must be read (or is skipped)
// before the next header is parsed.
package tarstream

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/quantmind-br/upip/internal/core"
)

var (
	// ErrPayloadOpened is returned when a member payload is opened twice
	ErrPayloadOpened = errors.New("member payload already opened")

	// ErrStaleMember is returned when reading a payload after the reader advanced
	ErrStaleMember = errors.New("member payload no longer readable")
)

// Member is one archive entry
type Member struct {
	Name string
	Size int64
	Mode int64
	Type core.MemberType

	tr     *Reader
	opened bool
}

// IsDir reports whether the member is a directory
func (m *Member) IsDir() bool {
	return m.Type == core.MemberDirectory
}

// Open returns the member payload, limited to exactly Size bytes. It may be
// called once; unread bytes are skipped by the next call to Reader.Next.
func (m *Member) Open() (io.Reader, error) {
	if m.opened {
		return nil, ErrPayloadOpened
	}
	m.opened = true
	return &payload{m: m}, nil
}

// Reader yields archive members from a stream
type Reader struct {
	r        io.Reader
	blk      [BlockSize]byte
	consumed int64
	remain   int64 // payload bytes of cur not yet consumed
	pad      int64 // alignment bytes following cur's payload
	cur      *Member
	err      error
}

// NewReader creates a Reader over r
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Offset returns the number of input bytes consumed so far
func (tr *Reader) Offset() int64 {
	return tr.consumed
}

// Next advances to the next member, skipping whatever remains of the current
// one. It returns io.EOF at the end-of-archive marker or when the input ends
// at a header boundary.
func (tr *Reader) Next() (*Member, error) {
	if tr.err != nil {
		return nil, tr.err
	}
	m, err := tr.next()
	if err != nil {
		tr.err = err
		tr.cur = nil
		return nil, err
	}
	return m, nil
}

func (tr *Reader) next() (*Member, error) {
	if err := tr.skipCurrent(); err != nil {
		return nil, err
	}

	var (
		longName string
		paxSize  = int64(-1)
	)
	for {
		hdr, err := tr.readHeader()
		if err != nil {
			return nil, err
		}

		switch hdr.typeflag {
		case typeGNULongName:
			data, err := tr.readExtended(hdr.size)
			if err != nil {
				return nil, err
			}
			longName = cString(data)
			continue
		case typeXHeader:
			data, err := tr.readExtended(hdr.size)
			if err != nil {
				return nil, err
			}
			recs, err := parsePAX(data)
			if err != nil {
				return nil, core.NewError(core.KindFormatCorruption, "pax header", err)
			}
			if p, ok := recs["path"]; ok && p != "" {
				longName = p
			}
			if s, ok := recs["size"]; ok {
				v, err := strconv.ParseInt(s, 10, 64)
				if err != nil || v < 0 {
					return nil, core.Errorf(core.KindFormatCorruption, "pax header", "invalid size %q", s)
				}
				paxSize = v
			}
			continue
		case typeGNULongLink, typeXGlobal:
			if _, err := tr.readExtended(hdr.size); err != nil {
				return nil, err
			}
			continue
		}

		name := hdr.name
		if longName != "" {
			name = longName
		}
		size := hdr.size
		if paxSize >= 0 {
			size = paxSize
		}
		typ := memberType(hdr.typeflag, name)
		if typ == core.MemberDirectory {
			size = 0
		}

		m := &Member{
			Name: name,
			Size: size,
			Mode: hdr.mode,
			Type: typ,
			tr:   tr,
		}
		tr.cur = m
		tr.remain = hdr.size
		if paxSize >= 0 {
			tr.remain = paxSize
		}
		tr.pad = padding(tr.remain)
		return m, nil
	}
}

// readHeader reads the next header block. Two zero blocks, or input ending at
// a block boundary or inside a header, mark the end of the archive.
func (tr *Reader) readHeader() (*rawHeader, error) {
	ok, err := tr.readBlock()
	if err != nil || !ok {
		return nil, err
	}
	if isZeroBlock(tr.blk[:]) {
		ok, err := tr.readBlock()
		if err != nil {
			return nil, err
		}
		if !ok || isZeroBlock(tr.blk[:]) {
			return nil, io.EOF
		}
		return nil, core.Errorf(core.KindFormatCorruption, "tar header",
			"zero block followed by data at offset %d", tr.consumed-BlockSize)
	}
	return parseHeader(tr.blk[:])
}

// readBlock fills tr.blk. It returns false with io.EOF when the input is
// exhausted before a full block is available.
func (tr *Reader) readBlock() (bool, error) {
	n, err := io.ReadFull(tr.r, tr.blk[:])
	tr.consumed += int64(n)
	switch {
	case err == nil:
		return true, nil
	case err == io.EOF || err == io.ErrUnexpectedEOF: //nolint:errorlint // io.ReadFull returns these unwrapped
		return false, io.EOF
	default:
		return false, err
	}
}

// readExtended reads an extended-header payload plus its padding
func (tr *Reader) readExtended(size int64) ([]byte, error) {
	if size > maxExtendedHeaderPayload {
		return nil, core.Errorf(core.KindFormatCorruption, "extended header", "payload too large: %d bytes", size)
	}
	buf := make([]byte, size+padding(size))
	n, err := io.ReadFull(tr.r, buf)
	tr.consumed += int64(n)
	if err != nil {
		return nil, truncated(err)
	}
	return buf[:size], nil
}

// skipCurrent discards the unread payload and padding of the current member
func (tr *Reader) skipCurrent() error {
	if tr.cur == nil {
		return nil
	}
	tr.cur = nil
	n := tr.remain + tr.pad
	tr.remain, tr.pad = 0, 0
	if n == 0 {
		return nil
	}
	skipped, err := io.CopyN(io.Discard, tr.r, n)
	tr.consumed += skipped
	if err != nil {
		return truncated(err)
	}
	return nil
}

type payload struct {
	m *Member
}

// Read reads at most the member's remaining bytes. Once the payload is
// exhausted, its block padding is consumed as well.
func (p *payload) Read(b []byte) (int, error) {
	tr := p.m.tr
	if tr.cur != p.m {
		return 0, ErrStaleMember
	}
	if tr.remain == 0 {
		if err := tr.consumePadding(); err != nil {
			return 0, err
		}
		return 0, io.EOF
	}
	if int64(len(b)) > tr.remain {
		b = b[:tr.remain]
	}
	n, err := tr.r.Read(b)
	tr.consumed += int64(n)
	tr.remain -= int64(n)
	if err == io.EOF { //nolint:errorlint // io.Reader contract
		if tr.remain > 0 {
			return n, core.Errorf(core.KindFormatCorruption, "tar payload",
				"unexpected end of archive in %s", p.m.Name)
		}
		return n, nil
	}
	return n, err
}

func (tr *Reader) consumePadding() error {
	if tr.pad == 0 {
		return nil
	}
	skipped, err := io.CopyN(io.Discard, tr.r, tr.pad)
	tr.consumed += skipped
	tr.pad -= skipped
	if err != nil {
		return truncated(err)
	}
	return nil
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return core.NewError(core.KindFormatCorruption, "tar payload", fmt.Errorf("unexpected end of archive: %w", io.ErrUnexpectedEOF))
	}
	return err
}
