package mapping

import (
	"slices"
	"strings"
	"sync"

	"github.com/syssam/sqlmap"
)

// strictMap stores entities by qualified id and also by short id (the part
// after the last dot) as long as the short id is unique. Duplicate qualified
// ids are rejected.
type strictMap[V any] struct {
	kind sqlmap.Kind

	mu        sync.RWMutex
	entries   map[string]V
	short     map[string]string   // short id -> qualified id
	ambiguous map[string][]string // short id -> qualified ids
}

func newStrictMap[V any](kind sqlmap.Kind) *strictMap[V] {
	return &strictMap[V]{
		kind:      kind,
		entries:   make(map[string]V),
		short:     make(map[string]string),
		ambiguous: make(map[string][]string),
	}
}

func shortName(id string) string {
	if i := strings.LastIndexByte(id, '.'); i >= 0 {
		return id[i+1:]
	}
	return id
}

func (m *strictMap[V]) put(id string, v V) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; ok {
		return sqlmap.Builderf("%s collection already contains value for %s", m.kind, id)
	}
	m.entries[id] = v
	s := shortName(id)
	if s == id {
		return nil
	}
	if names, ok := m.ambiguous[s]; ok {
		m.ambiguous[s] = append(names, id)
		return nil
	}
	if prev, ok := m.short[s]; ok {
		delete(m.short, s)
		m.ambiguous[s] = []string{prev, id}
		return nil
	}
	m.short[s] = id
	return nil
}

// get returns the entity for a qualified or unique short id.
func (m *strictMap[V]) get(id string) (V, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.entries[id]; ok {
		return v, nil
	}
	var zero V
	if full, ok := m.short[id]; ok {
		return m.entries[full], nil
	}
	if names, ok := m.ambiguous[id]; ok {
		return zero, &sqlmap.AmbiguousError{Kind: m.kind, Name: id, Candidates: slices.Sorted(slices.Values(names))}
	}
	return zero, sqlmap.NewNotFoundError(m.kind, id)
}

func (m *strictMap[V]) has(id string) bool {
	_, err := m.get(id)
	return err == nil
}

// ids returns the qualified ids, sorted.
func (m *strictMap[V]) ids() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.entries))
	for id := range m.entries {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (m *strictMap[V]) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
