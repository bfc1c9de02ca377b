package core

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
)

// magic is the 8-byte ASCII preamble every syncless store file starts with.
var magic = [8]byte{'S', 'y', 'n', 'c', 'l', 'e', 's', 's'}

const headerLen = 12 // 8-byte magic + 1-byte major + 1-byte format + 2-byte minor (LE)

// Current on-disk version. major bumps are a hard reject on any open;
// format bumps only reject a writable open (see headerVersion.isWriteCompatible).
const (
	currentMajor  = 0
	currentFormat = 0
	currentMinor  = 0
)

// headerVersion is the parsed version triple from a store's header.
type headerVersion struct {
	major  uint8
	format uint8
	minor  uint16
}

func (v headerVersion) isReadCompatible() bool {
	return v.major <= currentMajor
}

func (v headerVersion) isWriteCompatible() bool {
	return v.isReadCompatible() && v.format <= currentFormat
}

// writeHeader writes the 12-byte preamble at the current file position
// (which must be offset 0, i.e. a freshly created/empty file) and returns
// the number of bytes written.
func writeHeader(f *os.File) (int, error) {
	var buf [headerLen]byte
	copy(buf[0:8], magic[:])
	buf[8] = currentMajor
	buf[9] = currentFormat
	binary.LittleEndian.PutUint16(buf[10:12], currentMinor)

	n, err := f.Write(buf[:])
	if err != nil {
		return n, wrapIO("write header", err)
	}
	return n, nil
}

// readHeader reads the 12-byte preamble via a positioned read at offset 0
// (so it never disturbs the file's cursor) and validates the magic tag.
// It returns ErrNotSyncless on a short read or magic mismatch, and wraps
// any other I/O error.
func readHeader(f *os.File) (headerVersion, error) {
	var buf [headerLen]byte
	if _, err := f.ReadAt(buf[:], 0); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return headerVersion{}, errKindNotSyncless("file shorter than 12-byte header")
		}
		return headerVersion{}, wrapIO("read header", err)
	}

	if [8]byte(buf[0:8]) != magic {
		return headerVersion{}, errKindNotSyncless("magic tag mismatch")
	}

	return headerVersion{
		major:  buf[8],
		format: buf[9],
		minor:  binary.LittleEndian.Uint16(buf[10:12]),
	}, nil
}
