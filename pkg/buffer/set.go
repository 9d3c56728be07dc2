package buffer

import "path/filepath"

// Set tracks the open buffers the engine knows about, keyed by name for
// the fast path with a by-basename scan as fallback.
type Set struct {
	byName map[string]*Buffer
}

// NewSet creates an empty buffer set.
func NewSet() *Set {
	return &Set{byName: make(map[string]*Buffer)}
}

// Add registers a buffer under its name, replacing any previous entry.
func (s *Set) Add(b *Buffer) {
	s.byName[b.Name()] = b
}

// Remove drops a buffer from the set and invalidates its handle.
func (s *Set) Remove(b *Buffer) {
	delete(s.byName, b.Name())
	b.Invalidate()
}

// Lookup finds a buffer by exact name, falling back to a scan comparing
// base names when the direct lookup misses. Editors report paths in
// inconsistent forms (absolute vs relative), so the scan keeps companion
// prompts working.
func (s *Set) Lookup(name string) (*Buffer, bool) {
	if b, ok := s.byName[name]; ok {
		return b, true
	}
	base := filepath.Base(name)
	for n, b := range s.byName {
		if filepath.Base(n) == base {
			return b, true
		}
	}
	return nil, false
}

// All returns every registered buffer.
func (s *Set) All() []*Buffer {
	out := make([]*Buffer, 0, len(s.byName))
	for _, b := range s.byName {
		out = append(out, b)
	}
	return out
}

// Len returns the number of registered buffers.
func (s *Set) Len() int { return len(s.byName) }
