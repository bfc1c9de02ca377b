package core

import (
	"fmt"
	"io"
	"os"
)

// OpenMode selects how a writable Open treats an existing (or missing) file.
type OpenMode int

const (
	// MustExist opens an existing store; it never creates one.
	MustExist OpenMode = iota
	// MustNotExist creates a new store; it fails if the file already exists.
	MustNotExist
	// MayExist opens the store if it exists, or creates it if it doesn't.
	MayExist
)

// base holds everything shared between a ReadOnlyStore and a Store: the
// open file, the reconstructed span map, and the tracked log length.
//
// There is deliberately no mutex here: a store handle is single-writer and
// not safe to share across goroutines without external synchronization —
// callers that need that must provide their own locking.
type base struct {
	file        *os.File
	spans       *spanMap
	logicalSize uint64
	fileSize    int64 // length of the valid log prefix; a writable store's file cursor sits here
}

// ReadOnlyStore is a store handle that can only read. It is produced by
// OpenReadOnly or by downgrading a Store with IntoReadOnly.
type ReadOnlyStore struct {
	b *base
}

// Store is a writable store handle. It supports read, write, and a one-way
// downgrade to ReadOnlyStore.
type Store struct {
	b *base
}

// OpenReadOnly opens an existing store for reading only. Only the header's
// major version gates compatibility; a format newer than this
// implementation understands is fine for reading, just not writing.
func OpenReadOnly(path string) (*ReadOnlyStore, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, wrapIO("open", err)
	}

	b, err := loadBase(f, false)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &ReadOnlyStore{b: b}, nil
}

// Open opens (or creates, depending on mode) a store for reading and
// writing. A format newer than this implementation understands is
// rejected here even though it would be fine for a read-only open.
func Open(path string, mode OpenMode) (*Store, error) {
	flags := os.O_RDWR
	switch mode {
	case MustExist:
		// no extra flags
	case MustNotExist:
		flags |= os.O_CREATE | os.O_EXCL
	case MayExist:
		flags |= os.O_CREATE
	default:
		return nil, fmt.Errorf("syncless: unknown open mode %d", mode)
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, wrapIO("open", err)
	}

	b, err := loadBase(f, true)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Store{b: b}, nil
}

// loadBase opens the header (bootstrapping it for a brand new writable
// file) and replays the log into a fresh span map.
func loadBase(f *os.File, writable bool) (*base, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, wrapIO("stat", err)
	}

	b := &base{file: f, spans: newSpanMap()}

	if writable && info.Size() == 0 {
		n, err := writeHeader(f)
		if err != nil {
			return nil, err
		}
		if err := f.Sync(); err != nil {
			return nil, wrapIO("sync new store", err)
		}
		b.fileSize = int64(n)
		return b, nil
	}

	ver, err := readHeader(f)
	if err != nil {
		return nil, err
	}
	if !ver.isReadCompatible() {
		return nil, errKindUnsupportedVersion("major version is newer than this implementation supports")
	}
	if writable && !ver.isWriteCompatible() {
		return nil, errKindUnsupportedVersion("format version is newer than this implementation can write")
	}

	streamLen := info.Size()
	offset := int64(headerLen)
	for {
		rec, consumed, ok, err := readNextRecord(f, offset, streamLen)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		b.spans.insert(rec.logicalOffset, rec.length, rec.fileDataOffset, true)
		if end := rec.logicalOffset + rec.length; end > b.logicalSize {
			b.logicalSize = end
		}
		offset += consumed
	}
	b.fileSize = offset

	if writable {
		// Drop any torn/corrupt trailing bytes left over from an interrupted
		// write so the file's length matches the valid log prefix we just
		// reconstructed, and leave the cursor there for the next append.
		if err := f.Truncate(b.fileSize); err != nil {
			return nil, wrapIO("truncate torn tail", err)
		}
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			return nil, wrapIO("seek to log tail", err)
		}
	}

	return b, nil
}

// Size returns the logical size of the store: the highest byte offset any
// surviving span reaches, or 0 if the store is empty.
func (s *ReadOnlyStore) Size() uint64 { return s.b.logicalSize }

// Size returns the logical size of the store.
func (s *Store) Size() uint64 { return s.b.logicalSize }

// Read fills buf from the logical view starting at offset. Bytes not
// covered by any span (holes, or anything past Size()) come back zero.
func (s *ReadOnlyStore) Read(offset uint64, buf []byte) error {
	return s.b.read(offset, buf)
}

// Read fills buf from the logical view starting at offset, first
// revalidating any not-yet-validated span the read might touch.
func (s *Store) Read(offset uint64, buf []byte) error {
	if err := s.b.validateRange(prevKey(s.b.spans, offset), offset+uint64(len(buf))); err != nil {
		return err
	}
	return s.b.read(offset, buf)
}

func (b *base) read(offset uint64, buf []byte) error {
	for i := range buf {
		buf[i] = 0
	}
	if len(buf) == 0 {
		return nil
	}

	for _, ov := range b.spans.query(offset, uint64(len(buf))) {
		dst := buf[ov.regionStart-offset : ov.regionStart-offset+ov.length]
		if _, err := b.file.ReadAt(dst, ov.fileOffset); err != nil {
			return wrapIO("read", err)
		}
	}
	return nil
}

// Write appends buf at offset, chunking it into records of at most
// MaxRecordSize-1 bytes as needed, and makes it visible to subsequent reads on this
// handle immediately (one span insert per chunk, in order).
func (s *Store) Write(offset uint64, buf []byte) error {
	end := offset + uint64(len(buf))
	if err := s.b.validateRange(prevKey(s.b.spans, offset), end); err != nil {
		return err
	}

	for len(buf) > 0 {
		chunk := buf
		if len(chunk) > MaxRecordSize-1 {
			chunk = chunk[:MaxRecordSize-1]
		}

		dataOffset, err := writeRecord(s.b.file, offset, chunk, &s.b.fileSize)
		if err != nil {
			return err
		}
		s.b.spans.insert(offset, uint64(len(chunk)), dataOffset, false)
		if newEnd := offset + uint64(len(chunk)); newEnd > s.b.logicalSize {
			s.b.logicalSize = newEnd
		}

		offset += uint64(len(chunk))
		buf = buf[len(chunk):]
	}
	return nil
}

// IntoReadOnly validates every not-yet-validated span and, on success,
// returns a read-only handle over the same file. The writable handle must
// not be used again afterward.
func (s *Store) IntoReadOnly() (*ReadOnlyStore, error) {
	if err := s.b.validateRange(0, s.b.logicalSize); err != nil {
		return nil, err
	}
	return &ReadOnlyStore{b: s.b}, nil
}

// validateRange revalidates every unvalidated span with a key in
// [start, end), syncing and rechecking once on first failure. No-op when
// the range is empty (e.g. a zero-length read, or IntoReadOnly on an empty
// store).
func (b *base) validateRange(start, end uint64) error {
	if end <= start {
		return nil
	}
	return b.spans.unvalidated(start, end, func(_ uint64, sp *span) error {
		if err := validateWithRetry(b.file, sp.fileDataOffset, int64(sp.len)); err != nil {
			return err
		}
		sp.validated = true
		return nil
	})
}

// prevKey returns the key of the span starting strictly before offset, if
// any has one, else offset itself. Used so validateRange also covers a
// possibly-overlapping left neighbor the way read/query does.
func prevKey(m *spanMap, offset uint64) uint64 {
	if k, _, ok := m.floorBefore(offset); ok {
		return k
	}
	return offset
}

// Close releases the underlying file handle. A *ReadOnlyStore produced by
// IntoReadOnly shares its file with the Store it came from; closing it
// closes that file for both.
func (s *ReadOnlyStore) Close() error { return wrapIO("close", s.b.file.Close()) }

// Close releases the underlying file handle.
func (s *Store) Close() error { return wrapIO("close", s.b.file.Close()) }
