package core

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
)

// SpanInfo is a read-only snapshot of one span map entry, exported for
// diagnostic tooling (see cmd/syncless-cli's verify subcommand).
type SpanInfo struct {
	LogicalOffset  uint64
	Length         uint64
	FileDataOffset int64
	Validated      bool
}

// Report is a diagnostic snapshot of a store's internal state.
type Report struct {
	LogicalSize  uint64
	PhysicalSize int64
	Spans        []SpanInfo
}

// Inspect takes a diagnostic snapshot of s. It walks the span map directly
// rather than going through Read, so it never allocates the full logical
// view just to report on it.
func Inspect(s *ReadOnlyStore) Report {
	spans := make([]SpanInfo, 0, len(s.b.spans.keys))
	for _, k := range s.b.spans.keys {
		sp := s.b.spans.byKey[k]
		spans = append(spans, SpanInfo{
			LogicalOffset:  k,
			Length:         sp.len,
			FileDataOffset: sp.fileDataOffset,
			Validated:      sp.validated,
		})
	}
	return Report{
		LogicalSize:  s.b.logicalSize,
		PhysicalSize: s.b.fileSize,
		Spans:        spans,
	}
}

// VerifyInvariants independently re-checks the non-overlap and
// non-empty-span invariants the span map is already supposed to maintain
// by construction. Under normal operation this always returns an empty
// slice; a non-empty result points at a bug in the span map itself rather
// than at anything a caller did wrong.
func VerifyInvariants(r Report) []string {
	var problems []string

	seenStarts := mapset.NewSet[uint64]()
	var prevEnd uint64
	for i, sp := range r.Spans {
		if sp.Length == 0 {
			problems = append(problems, fmt.Sprintf("span at offset %d is empty", sp.LogicalOffset))
		}
		if seenStarts.Contains(sp.LogicalOffset) {
			problems = append(problems, fmt.Sprintf("duplicate span start at offset %d", sp.LogicalOffset))
		}
		seenStarts.Add(sp.LogicalOffset)

		if i > 0 && sp.LogicalOffset < prevEnd {
			problems = append(problems, fmt.Sprintf(
				"span at offset %d overlaps previous span ending at %d", sp.LogicalOffset, prevEnd))
		}
		prevEnd = sp.LogicalOffset + sp.Length
	}
	return problems
}
