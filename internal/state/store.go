// Package state holds the single mutable key-value state of one workflow
// run, offers dot-path field access, and keeps an append-only snapshot
// history for audit.
package state

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// Snapshot is a labeled, timestamped deep copy of the whole run state.
type Snapshot struct {
	Timestamp time.Time      `json:"timestamp"`
	Label     string         `json:"label"`
	State     map[string]any `json:"state"`
}

// Store owns the mutable state of a single run. Each run gets an exclusive
// Store; the engine mutates it strictly sequentially, but reads may come
// from other goroutines (progress reporting), so access is guarded.
type Store struct {
	mu      sync.RWMutex
	current map[string]any
	history []Snapshot
}

// New creates a Store seeded with a deep copy of the initial state and an
// "initial" snapshot in the history.
func New(initial map[string]any) *Store {
	s := &Store{current: deepCopyMap(initial)}
	s.snapshotLocked("initial")
	return s
}

// Read returns a deep copy of the current state. Callers may mutate the
// result freely without aliasing engine-owned state.
func (s *Store) Read() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return deepCopyMap(s.current)
}

// Replace swaps in a whole new state (replace, not merge) and appends a
// snapshot labeled by the given node name.
func (s *Store) Replace(next map[string]any, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = deepCopyMap(next)
	s.snapshotLocked(label)
}

// Get resolves a dot-notation path against the state, traversing nested
// mappings by key and lists by integer index. Any resolution failure
// returns the caller-supplied default.
func (s *Store) Get(path string, def any) any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := resolve(s.current, path)
	if !ok {
		return def
	}
	return deepCopyValue(v)
}

// Has reports whether the dot-notation path resolves in the state.
func (s *Store) Has(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := resolve(s.current, path)
	return ok
}

// Set writes a value at a dot-notation path, creating intermediate
// mappings as needed. Intermediate lists are never created: setting
// through a missing list index is unsupported and overwrites with a
// mapping instead. A snapshot labeled with the path is appended.
func (s *Store) Set(path string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := strings.Split(path, ".")
	current := s.current
	for _, key := range keys[:len(keys)-1] {
		next, ok := current[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[key] = next
		}
		current = next
	}
	current[keys[len(keys)-1]] = deepCopyValue(value)
	s.snapshotLocked("set:" + path)
}

// History returns a deep copy of all snapshots in append order. The
// history is never truncated during a run.
func (s *Store) History() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Snapshot, len(s.history))
	for i, snap := range s.history {
		out[i] = Snapshot{
			Timestamp: snap.Timestamp,
			Label:     snap.Label,
			State:     deepCopyMap(snap.State),
		}
	}
	return out
}

// HistoryLen returns the number of snapshots taken so far.
func (s *Store) HistoryLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

func (s *Store) snapshotLocked(label string) {
	s.history = append(s.history, Snapshot{
		Timestamp: time.Now().UTC(),
		Label:     label,
		State:     deepCopyMap(s.current),
	})
}

// resolve walks a dot-path through nested maps and slices.
func resolve(root map[string]any, path string) (any, bool) {
	var current any = root
	for _, key := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]any:
			next, ok := v[key]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			current = v[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// deepCopyMap deep-copies JSON-shaped data (maps, slices, scalars).
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return val
	}
}
