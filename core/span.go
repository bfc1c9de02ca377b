package core

import "sort"

// span is one entry of the span map: the logical range [key, key+len) is
// backed by the on-disk payload starting at fileDataOffset. validated is
// lazily flipped true once the backing record has survived a checksum
// recheck since it was written (see validateWithRetry); replayed spans
// start out validated, since replay itself already checksummed them.
type span struct {
	len            uint64
	fileDataOffset int64
	validated      bool
}

// spanMap is the ordered, non-overlapping interval map over logical
// offsets: a flat dictionary keyed by a monotone logical offset, no
// back-references or tree structure beyond what's needed for lookup.
type spanMap struct {
	keys []uint64 // sorted ascending, kept in lockstep with byKey
	byKey map[uint64]*span
}

func newSpanMap() *spanMap {
	return &spanMap{byKey: make(map[uint64]*span)}
}

// size returns max(k+span.len) over all spans, or 0 if empty.
func (m *spanMap) size() uint64 {
	if len(m.keys) == 0 {
		return 0
	}
	last := m.keys[len(m.keys)-1]
	return last + m.byKey[last].len
}

// indexOf returns the position in m.keys of the first key >= target.
func (m *spanMap) indexOf(target uint64) int {
	return sort.Search(len(m.keys), func(i int) bool { return m.keys[i] >= target })
}

// floorBefore returns the greatest key strictly less than target, if any.
func (m *spanMap) floorBefore(target uint64) (uint64, *span, bool) {
	i := m.indexOf(target)
	if i == 0 {
		return 0, nil, false
	}
	k := m.keys[i-1]
	return k, m.byKey[k], true
}

func (m *spanMap) insertKey(k uint64, s *span) {
	i := m.indexOf(k)
	if i < len(m.keys) && m.keys[i] == k {
		m.byKey[k] = s
		return
	}
	m.keys = append(m.keys, 0)
	copy(m.keys[i+1:], m.keys[i:])
	m.keys[i] = k
	m.byKey[k] = s
}

func (m *spanMap) removeKey(k uint64) {
	i := m.indexOf(k)
	if i >= len(m.keys) || m.keys[i] != k {
		return
	}
	copy(m.keys[i:], m.keys[i+1:])
	m.keys = m.keys[:len(m.keys)-1]
	delete(m.byKey, k)
}

// insert establishes a new span covering [logicalOffset, logicalOffset+length)
// backed by fileDataOffset, splitting or removing whatever spans it
// overlaps: trim the left neighbor if it overhangs into the new range,
// carve off a surviving tail from whatever overhangs past the new range's
// end, delete everything fully inside the new range, then insert.
//
// The caller must ensure any span this call would split is already
// validated: a split creates a second span pointing into the interior of
// an on-disk record, which can never be independently re-validated
// against that record's single trailer checksum.
func (m *spanMap) insert(logicalOffset, length uint64, fileDataOffset int64, validated bool) {
	end := logicalOffset + length

	// Split at both boundaries first. Splitting at logicalOffset can itself
	// produce a new span sitting exactly at logicalOffset that extends past
	// `end` (when a single existing span enveloped the whole new range);
	// splitting at `end` afterward catches that case too, since it looks at
	// whatever now sits just before `end`, not just the pre-existing spans.
	m.splitAt(logicalOffset)
	m.splitAt(end)

	// Everything now fully inside [logicalOffset, end) is superseded.
	lo := m.indexOf(logicalOffset)
	hi := m.indexOf(end)
	toDelete := make([]uint64, hi-lo)
	copy(toDelete, m.keys[lo:hi])
	for _, k := range toDelete {
		m.removeKey(k)
	}

	m.insertKey(logicalOffset, &span{len: length, fileDataOffset: fileDataOffset, validated: validated})
}

// splitAt ensures no existing span straddles the logical offset `at`: if
// the span starting at the greatest key < at extends past it, it is
// shortened in place and a new span is inserted at `at` carrying the
// trimmed-off tail (same file_data_offset math, validated tag inherited).
func (m *spanMap) splitAt(at uint64) {
	k, sp, ok := m.floorBefore(at)
	if !ok || k+sp.len <= at {
		return
	}
	tailLen := k + sp.len - at
	tailFileOffset := sp.fileDataOffset + int64(at-k)
	tailValidated := sp.validated
	sp.len = at - k
	m.insertKey(at, &span{len: tailLen, fileDataOffset: tailFileOffset, validated: tailValidated})
}

// unvalidated calls fn for every span whose key lies in [start, end) and
// is not yet validated, in ascending key order.
func (m *spanMap) unvalidated(start, end uint64, fn func(key uint64, sp *span) error) error {
	lo := m.indexOf(start)
	hi := m.indexOf(end)
	for _, k := range m.keys[lo:hi] {
		sp := m.byKey[k]
		if sp.validated {
			continue
		}
		if err := fn(k, sp); err != nil {
			return err
		}
	}
	return nil
}

// overlap describes one covering span intersected with a query range,
// already clipped to the bytes actually relevant to the query.
type overlap struct {
	regionStart uint64 // logical offset where this overlap begins, within the query range
	length      uint64
	fileOffset  int64 // file offset to start reading from, already adjusted into the span
}

// query returns, in ascending order, every span overlapping
// [offset, offset+length), including a possibly-overlapping left neighbor,
// clipped to that range.
func (m *spanMap) query(offset, length uint64) []overlap {
	end := offset + length
	var out []overlap

	if k, sp, ok := m.floorBefore(offset); ok && k+sp.len > offset && length > 0 {
		bytesBefore := offset - k
		clipped := sp.len - bytesBefore
		if clipped > length {
			clipped = length
		}
		out = append(out, overlap{
			regionStart: offset,
			length:      clipped,
			fileOffset:  sp.fileDataOffset + int64(bytesBefore),
		})
	}

	lo := m.indexOf(offset)
	hi := m.indexOf(end)
	for _, k := range m.keys[lo:hi] {
		sp := m.byKey[k]
		clipped := sp.len
		if k+clipped > end {
			clipped = end - k
		}
		out = append(out, overlap{
			regionStart: k,
			length:      clipped,
			fileOffset:  sp.fileDataOffset,
		})
	}

	return out
}
