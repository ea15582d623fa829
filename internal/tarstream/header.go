package tarstream

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/quantmind-br/upip/internal/core"
)

// BlockSize is the tar record alignment
const BlockSize = 512

// Header field offsets (POSIX ustar layout)
const (
	nameOff, nameLen         = 0, 100
	modeOff, modeLen         = 100, 8
	sizeOff, sizeLen         = 124, 12
	chksumOff, chksumLen     = 148, 8
	typeOff                  = 156
	magicOff, magicLen       = 257, 8
	prefixOff, prefixLen     = 345, 155
	ustarMagic               = "ustar\x0000"
	maxExtendedHeaderPayload = 1 << 20
)

// Type flags
const (
	typeReg         = '0'
	typeRegA        = '\x00'
	typeDir         = '5'
	typeCont        = '7'
	typeXHeader     = 'x'
	typeXGlobal     = 'g'
	typeGNULongName = 'L'
	typeGNULongLink = 'K'
)

type rawHeader struct {
	name     string
	mode     int64
	size     int64
	typeflag byte
}

// parseHeader validates the checksum and decodes one header block
func parseHeader(blk []byte) (*rawHeader, error) {
	stored, err := parseNumeric(blk[chksumOff : chksumOff+chksumLen])
	if err != nil {
		return nil, core.Errorf(core.KindFormatCorruption, "tar header", "invalid checksum field: %w", err)
	}
	unsigned, signed := checksum(blk)
	if stored != unsigned && stored != signed {
		return nil, core.Errorf(core.KindFormatCorruption, "tar header",
			"checksum mismatch: stored %d, computed %d", stored, unsigned)
	}

	size, err := parseNumeric(blk[sizeOff : sizeOff+sizeLen])
	if err != nil {
		return nil, core.Errorf(core.KindFormatCorruption, "tar header", "invalid size field: %w", err)
	}
	if size < 0 {
		return nil, core.Errorf(core.KindFormatCorruption, "tar header", "negative size %d", size)
	}
	mode, err := parseNumeric(blk[modeOff : modeOff+modeLen])
	if err != nil {
		mode = 0
	}

	name := cString(blk[nameOff : nameOff+nameLen])
	if string(blk[magicOff:magicOff+magicLen]) == ustarMagic {
		if prefix := cString(blk[prefixOff : prefixOff+prefixLen]); prefix != "" {
			name = prefix + "/" + name
		}
	}

	return &rawHeader{
		name:     name,
		mode:     mode,
		size:     size,
		typeflag: blk[typeOff],
	}, nil
}

// checksum sums the header bytes with the checksum field read as spaces.
// Some historic writers used signed bytes, so both sums are returned.
func checksum(blk []byte) (unsigned, signed int64) {
	for i, c := range blk {
		if i >= chksumOff && i < chksumOff+chksumLen {
			c = ' '
		}
		unsigned += int64(c)
		signed += int64(int8(c))
	}
	return unsigned, signed
}

// parseNumeric decodes an octal text field or a GNU base-256 field
func parseNumeric(b []byte) (int64, error) {
	if len(b) > 0 && b[0]&0x80 != 0 {
		if len(b) > 9 {
			for _, c := range b[1 : len(b)-8] {
				if c != 0 {
					return 0, fmt.Errorf("base-256 value overflows int64")
				}
			}
			b = append([]byte{b[0]}, b[len(b)-8:]...)
		}
		if len(b) == 9 && b[0]&0x7f != 0 {
			return 0, fmt.Errorf("base-256 value overflows int64")
		}
		var x int64
		for i, c := range b {
			if i == 0 {
				c &= 0x7f
			}
			x = x<<8 | int64(c)
		}
		return x, nil
	}

	s := strings.Trim(string(b), " \x00")
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 8, 64)
	if err != nil {
		return 0, fmt.Errorf("parse octal %q: %w", s, err)
	}
	return v, nil
}

// parsePAX decodes "%d %s=%s\n" records
func parsePAX(data []byte) (map[string]string, error) {
	recs := make(map[string]string)
	for len(data) > 0 {
		sp := bytes.IndexByte(data, ' ')
		if sp <= 0 {
			return nil, fmt.Errorf("malformed pax record")
		}
		n, err := strconv.Atoi(string(data[:sp]))
		if err != nil || n <= sp+1 || n > len(data) {
			return nil, fmt.Errorf("malformed pax record length")
		}
		rec := data[sp+1 : n]
		data = data[n:]
		if len(rec) == 0 || rec[len(rec)-1] != '\n' {
			return nil, fmt.Errorf("pax record missing newline")
		}
		rec = rec[:len(rec)-1]
		eq := bytes.IndexByte(rec, '=')
		if eq < 0 {
			return nil, fmt.Errorf("pax record missing '='")
		}
		recs[string(rec[:eq])] = string(rec[eq+1:])
	}
	return recs, nil
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func isZeroBlock(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// padding returns the bytes needed to align size to BlockSize
func padding(size int64) int64 {
	return -size & (BlockSize - 1)
}

func memberType(typeflag byte, name string) core.MemberType {
	switch typeflag {
	case typeDir:
		return core.MemberDirectory
	case typeReg, typeRegA, typeCont:
		if strings.HasSuffix(name, "/") {
			return core.MemberDirectory
		}
		return core.MemberRegular
	default:
		return core.MemberOther
	}
}
