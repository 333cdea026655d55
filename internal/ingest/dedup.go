package ingest

import "github.com/zeebo/xxh3"

// dedup tracks transaction_id fingerprints seen within one upload. Keys are
// stored as 64-bit xxh3 hashes, so a million-row file costs a few megabytes
// rather than retaining every key string.
type dedup struct {
	seen map[uint64]struct{}
}

func newDedup() *dedup {
	return &dedup{seen: make(map[uint64]struct{})}
}

// duplicate reports whether key was already observed, recording it if not.
func (d *dedup) duplicate(key string) bool {
	h := xxh3.HashString(key)
	if _, ok := d.seen[h]; ok {
		return true
	}
	d.seen[h] = struct{}{}
	return false
}
