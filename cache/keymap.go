package cache

import "github.com/syssam/sqlmap"

// keyMap is a map keyed by *sqlmap.CacheKey using the key's structural
// equality: entries are bucketed by hash code and compared with Equal.
type keyMap[V any] struct {
	buckets map[int][]keyEntry[V]
	n       int
}

type keyEntry[V any] struct {
	key   *sqlmap.CacheKey
	value V
}

func newKeyMap[V any]() *keyMap[V] {
	return &keyMap[V]{buckets: make(map[int][]keyEntry[V])}
}

func (m *keyMap[V]) get(k *sqlmap.CacheKey) (V, bool) {
	for _, e := range m.buckets[k.HashCode()] {
		if e.key.Equal(k) {
			return e.value, true
		}
	}
	var zero V
	return zero, false
}

// put stores v and reports whether k was new.
func (m *keyMap[V]) put(k *sqlmap.CacheKey, v V) bool {
	h := k.HashCode()
	b := m.buckets[h]
	for i := range b {
		if b[i].key.Equal(k) {
			b[i].value = v
			return false
		}
	}
	m.buckets[h] = append(b, keyEntry[V]{key: k, value: v})
	m.n++
	return true
}

func (m *keyMap[V]) remove(k *sqlmap.CacheKey) (V, bool) {
	h := k.HashCode()
	b := m.buckets[h]
	for i, e := range b {
		if e.key.Equal(k) {
			b = append(b[:i], b[i+1:]...)
			if len(b) == 0 {
				delete(m.buckets, h)
			} else {
				m.buckets[h] = b
			}
			m.n--
			return e.value, true
		}
	}
	var zero V
	return zero, false
}

func (m *keyMap[V]) clear() {
	clear(m.buckets)
	m.n = 0
}

func (m *keyMap[V]) len() int { return m.n }
