// Package snapshot fingerprints buffer regions so patch staleness can be
// judged against the exact text a patch intends to touch.
package snapshot

import (
	"hash/fnv"

	"github.com/inlay-dev/inlay/pkg/buffer"
)

// Snapshot records the state of a buffer region at a point in time. A
// snapshot is only meaningful against the buffer it was taken from.
type Snapshot struct {
	Buffer *buffer.Buffer
	Tick   uint64
	Hash   uint64
	Range  *buffer.Range // nil means the whole document
}

// Take fingerprints rng on buf, or the whole document when rng is nil.
func Take(buf *buffer.Buffer, rng *buffer.Range) Snapshot {
	return Snapshot{
		Buffer: buf,
		Tick:   buf.Tick(),
		Hash:   HashRange(buf, rng),
		Range:  rng,
	}
}

// HashRange computes a cheap FNV-1a fingerprint of the range text.
func HashRange(buf *buffer.Buffer, rng *buffer.Range) uint64 {
	h := fnv.New64a()
	if rng == nil {
		h.Write([]byte(buf.Text()))
	} else {
		h.Write([]byte(buf.TextRange(*rng)))
	}
	return h.Sum64()
}

// ContentChanged recomputes the hash over the same range and reports
// whether the snapshotted text differs from the live buffer. Change
// counters bump on events that are not content changes, so callers compare
// ticks first and fall back to this.
func (s Snapshot) ContentChanged() bool {
	return HashRange(s.Buffer, s.Range) != s.Hash
}
