// Package toolname implements the deterministic tool-name truncation
// described in spec §4.1: upstreams cap function names at 64 characters, so
// names longer than that are shortened to a stable prefix plus an 8-hex-digit
// suffix derived from a 64-bit hash of the full name.
package toolname

import (
	"fmt"
	"hash/fnv"
	"sync"
)

// MaxLength is the upstream tool-name length cap.
const MaxLength = 64

const prefixLength = 55

// Truncate deterministically shortens name to at most MaxLength characters.
// Names already within the limit are returned unchanged. The same input
// always produces the same output within a single process (hash stability
// across process restarts is not required per spec §4.1).
func Truncate(name string) string {
	if len(name) <= MaxLength {
		return name
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	// The original takes the first 8 hex digits of the full 64-bit hash
	// (i.e. its high 32 bits); match that rather than the low 32 bits so
	// the suffix is the same slice of the hash space.
	suffix := uint32(h.Sum64() >> 32)
	return fmt.Sprintf("%s_%08x", name[:prefixLength], suffix)
}

// Map is a per-request truncated→original lookup, built while translating
// tool definitions and tool_use blocks, and consulted while translating
// responses back to restore original names (§4.1).
type Map struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMap returns an empty tool-name map for one in-flight request.
func NewMap() *Map {
	return &Map{entries: make(map[string]string)}
}

// Put records truncated -> original, truncating name first if needed, and
// returns the (possibly truncated) name to use on the wire.
func (m *Map) Put(name string) string {
	truncated := Truncate(name)
	if truncated == name {
		return name
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = make(map[string]string)
	}
	m.entries[truncated] = name
	return truncated
}

// Restore looks up the original name for a truncated one, falling back to
// the input itself when there is no mapping (i.e. it was never truncated).
func (m *Map) Restore(truncated string) string {
	if m == nil {
		return truncated
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if original, ok := m.entries[truncated]; ok {
		return original
	}
	return truncated
}
