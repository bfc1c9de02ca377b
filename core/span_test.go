package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func keysOf(m *spanMap) []uint64 {
	return append([]uint64(nil), m.keys...)
}

func TestSpanMapInsertNoOverlap(t *testing.T) {
	m := newSpanMap()
	m.insert(0, 5, 100, true)
	m.insert(10, 5, 200, true)

	require.Equal(t, []uint64{0, 10}, keysOf(m))
	require.Equal(t, uint64(15), m.size())
}

func TestSpanMapInsertEnvelopedByExisting(t *testing.T) {
	// write(0,10) then write(3,2): the new write lands entirely inside the
	// first span, which must survive on both sides of the hole it punches.
	m := newSpanMap()
	m.insert(0, 10, 1000, true)
	m.insert(3, 2, 2000, false)

	require.Equal(t, []uint64{0, 3, 5}, keysOf(m))

	left := m.byKey[0]
	mid := m.byKey[3]
	right := m.byKey[5]

	require.Equal(t, uint64(3), left.len)
	require.Equal(t, int64(1000), left.fileDataOffset)

	require.Equal(t, uint64(2), mid.len)
	require.Equal(t, int64(2000), mid.fileDataOffset)

	require.Equal(t, uint64(5), right.len)
	require.Equal(t, int64(1005), right.fileDataOffset)
}

func TestSpanMapInsertOverlapsLeftNeighborOnly(t *testing.T) {
	m := newSpanMap()
	m.insert(0, 5, 100, true)
	m.insert(3, 5, 200, true) // [3,8) overlaps [0,5)'s tail [3,5)

	require.Equal(t, []uint64{0, 3}, keysOf(m))
	require.Equal(t, uint64(3), m.byKey[0].len)
	require.Equal(t, uint64(5), m.byKey[3].len)
	require.Equal(t, uint64(8), m.size())
}

func TestSpanMapInsertOverlapsRightNeighborOnly(t *testing.T) {
	m := newSpanMap()
	m.insert(5, 5, 100, true) // [5,10)
	m.insert(0, 7, 200, true) // [0,7) overlaps [5,7) of the first span

	require.Equal(t, []uint64{0, 7}, keysOf(m))
	require.Equal(t, uint64(7), m.byKey[0].len)
	require.Equal(t, uint64(3), m.byKey[7].len)
	require.Equal(t, int64(102), m.byKey[7].fileDataOffset)
}

func TestSpanMapInsertSupersedesFullyCoveredSpans(t *testing.T) {
	m := newSpanMap()
	m.insert(0, 2, 100, true)
	m.insert(2, 2, 200, true)
	m.insert(4, 2, 300, true)
	m.insert(0, 6, 999, true)

	require.Equal(t, []uint64{0}, keysOf(m))
	require.Equal(t, uint64(6), m.byKey[0].len)
}

func TestSpanMapQueryClipsToRequestedRange(t *testing.T) {
	m := newSpanMap()
	m.insert(0, 10, 100, true)

	ov := m.query(3, 4)
	require.Len(t, ov, 1)
	require.Equal(t, uint64(3), ov[0].regionStart)
	require.Equal(t, uint64(4), ov[0].length)
	require.Equal(t, int64(103), ov[0].fileOffset)
}

func TestSpanMapQueryAcrossHole(t *testing.T) {
	m := newSpanMap()
	m.insert(0, 3, 100, true)
	m.insert(6, 3, 200, true)

	ov := m.query(0, 9)
	require.Len(t, ov, 2)
	if diff := cmp.Diff(uint64(0), ov[0].regionStart); diff != "" {
		t.Errorf("unexpected first overlap start (-want +got):\n%s", diff)
	}
	require.Equal(t, uint64(6), ov[1].regionStart)
}

func TestSpanMapUnvalidatedVisitsOnlyUnvalidated(t *testing.T) {
	m := newSpanMap()
	m.insert(0, 2, 100, true)
	m.insert(2, 2, 200, false)
	m.insert(4, 2, 300, false)

	var visited []uint64
	err := m.unvalidated(0, 6, func(k uint64, sp *span) error {
		visited = append(visited, k)
		sp.validated = true
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []uint64{2, 4}, visited)

	var second []uint64
	require.NoError(t, m.unvalidated(0, 6, func(k uint64, sp *span) error {
		second = append(second, k)
		return nil
	}))
	require.Empty(t, second)
}
