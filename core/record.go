package core

import (
	"encoding/binary"
	"errors"
	"hash/crc64"
	"io"
	"os"
)

// MaxRecordSize is the upper bound on a single record's payload length.
// The on-disk length field is 3 bytes wide (values up to 2^24-1), but the
// store enforces the stricter bound length < MaxRecordSize, i.e. a payload
// of exactly 2^24 bytes is a writer bug, never emitted or accepted.
const MaxRecordSize = 1 << 24

const (
	offsetFieldLen = 8
	lengthFieldLen = 3
	recordHeaderLen = offsetFieldLen + lengthFieldLen // 11
	checksumLen     = 8
)

// crcTable is the CRC64 polynomial used for every record trailer. Any
// CRC64 variant is acceptable as long as every reader of the file uses
// the same one; this store uses the stdlib's ECMA-182 table.
var crcTable = crc64.MakeTable(crc64.ECMA)

func checksum(b []byte) uint64 {
	return crc64.Checksum(b, crcTable)
}

func putUint24LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

func getUint24LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

// writeRecord appends one framed record to f at the position tracked by
// fileSize (the caller must keep the file's cursor positioned there; a
// freshly-opened store's cursor sits at fileSize right after replay).
// It returns the absolute file offset of the payload (not the record
// header) and advances *fileSize past the trailer.
func writeRecord(f *os.File, logicalOffset uint64, payload []byte, fileSize *int64) (int64, error) {
	if len(payload) >= MaxRecordSize {
		return 0, &Error{Kind: KindIO, Err: errors.New("payload exceeds MaxRecordSize")}
	}

	total := recordHeaderLen + len(payload) + checksumLen
	buf := make([]byte, total)

	binary.LittleEndian.PutUint64(buf[0:offsetFieldLen], logicalOffset)
	putUint24LE(buf[offsetFieldLen:recordHeaderLen], uint32(len(payload)))
	copy(buf[recordHeaderLen:recordHeaderLen+len(payload)], payload)

	cs := checksum(buf[:recordHeaderLen+len(payload)])
	binary.LittleEndian.PutUint64(buf[recordHeaderLen+len(payload):], cs)

	if _, err := f.Write(buf); err != nil {
		return 0, wrapIO("write record", err)
	}

	dataOffset := *fileSize + recordHeaderLen
	*fileSize += int64(total)
	return dataOffset, nil
}

// scannedRecord is what the replay engine learns about one record on disk.
type scannedRecord struct {
	logicalOffset  uint64
	length         uint64
	fileDataOffset int64
}

// readNextRecord reads one record starting at file offset `at`, using
// positioned reads (io.ReaderAt) exclusively. Because ReadAt never moves
// the file's cursor, a short/torn read leaves nothing to seek back from
// (unlike a sequential-cursor reader, which must undo a partial read) —
// the caller simply sees ok=false and the file is left untouched.
//
// Returns ok=false (never an error) when the tail is torn, truncated, or
// checksum-invalid: this is the internal "no more records" signal that
// terminates replay without propagating as an error: a torn tail is
// expected after a crash and is never surfaced as an error.
func readNextRecord(f *os.File, at int64, streamLen int64) (rec scannedRecord, consumed int64, ok bool, err error) {
	if at+recordHeaderLen > streamLen {
		return scannedRecord{}, 0, false, nil
	}

	var hdr [recordHeaderLen]byte
	if _, rerr := f.ReadAt(hdr[:], at); rerr != nil {
		if isShortRead(rerr) {
			return scannedRecord{}, 0, false, nil
		}
		return scannedRecord{}, 0, false, wrapIO("read record header", rerr)
	}

	logicalOffset := binary.LittleEndian.Uint64(hdr[0:offsetFieldLen])
	length := getUint24LE(hdr[offsetFieldLen:recordHeaderLen])

	total := int64(recordHeaderLen) + int64(length) + checksumLen
	if at+total > streamLen {
		// Not enough bytes left for payload+trailer: torn tail.
		return scannedRecord{}, 0, false, nil
	}

	buf := make([]byte, total)
	copy(buf, hdr[:])

	if _, rerr := f.ReadAt(buf[recordHeaderLen:], at+recordHeaderLen); rerr != nil {
		if isShortRead(rerr) {
			return scannedRecord{}, 0, false, nil
		}
		return scannedRecord{}, 0, false, wrapIO("read record payload+trailer", rerr)
	}

	trailer := binary.LittleEndian.Uint64(buf[recordHeaderLen+int(length):])
	if checksum(buf[:recordHeaderLen+int(length)]) != trailer {
		return scannedRecord{}, 0, false, nil
	}

	rec = scannedRecord{
		logicalOffset:  logicalOffset,
		length:         length,
		fileDataOffset: at + recordHeaderLen,
	}
	return rec, total, true, nil
}

// validateRecord recomputes the checksum of the record whose payload lives
// at [dataOffset, dataOffset+dataLength) and reports whether it still
// matches the on-disk trailer.
func validateRecord(f *os.File, dataOffset int64, dataLength int64) (bool, error) {
	headerStart := dataOffset - recordHeaderLen
	total := recordHeaderLen + dataLength + checksumLen

	buf := make([]byte, total)
	if _, err := f.ReadAt(buf, headerStart); err != nil {
		if isShortRead(err) {
			return false, nil
		}
		return false, wrapIO("validate record", err)
	}

	storedLength := getUint24LE(buf[offsetFieldLen:recordHeaderLen])
	if int64(storedLength) != dataLength {
		return false, nil
	}

	trailer := binary.LittleEndian.Uint64(buf[recordHeaderLen+dataLength:])
	return checksum(buf[:recordHeaderLen+dataLength]) == trailer, nil
}

// validateWithRetry implements the phantom-zero retry protocol: a
// freshly-written span that fails its first validation is given one
// data-sync before being declared genuinely corrupt. On some filesystems
// (ZFS on Linux notably) a read of very recently written data can
// transiently return zeros until a sync forces stable metadata; syncing
// and rechecking once distinguishes that benign race from real corruption.
func validateWithRetry(f *os.File, dataOffset int64, dataLength int64) error {
	ok, err := validateRecord(f, dataOffset, dataLength)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	if err := f.Sync(); err != nil {
		return wrapIO("sync before validate retry", err)
	}

	ok, err = validateRecord(f, dataOffset, dataLength)
	if err != nil {
		return err
	}
	if !ok {
		return errKindCorruptRecord("record failed validation after sync")
	}
	return nil
}

func isShortRead(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
