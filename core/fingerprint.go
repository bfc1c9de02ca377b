package core

import "github.com/zeebo/xxh3"

// Fingerprint returns a fast, non-authoritative content hash of the
// store's current logical view, read in fixed-size chunks so it never has
// to materialize the whole view in memory at once.
//
// This exists purely as a diagnostic signal (e.g. "did anything change
// between these two snapshots?"); it is not part of the integrity
// protocol. The CRC64 trailer on each record is what gates correctness —
// xxh3 is used here only because it's fast and the store already reads
// through the same Read path either way.
func Fingerprint(s *ReadOnlyStore) (uint64, error) {
	const chunk = 1 << 16
	h := xxh3.New()

	size := s.Size()
	buf := make([]byte, chunk)
	for off := uint64(0); off < size; off += chunk {
		n := chunk
		if remaining := size - off; remaining < uint64(n) {
			n = int(remaining)
		}
		if err := s.Read(off, buf[:n]); err != nil {
			return 0, err
		}
		if _, err := h.Write(buf[:n]); err != nil {
			return 0, wrapIO("fingerprint", err)
		}
	}
	return h.Sum64(), nil
}
