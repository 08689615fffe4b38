// Package cache provides the second level cache implementations: a
// perpetual base cache and decorators adding eviction, scheduled flushes,
// copy-on-read, locking and hit-ratio logging. Builder assembles them from
// a namespace's cache declaration.
package cache

import "github.com/syssam/sqlmap"

// Perpetual is an unbounded cache. It is not safe for concurrent use; wrap
// it in a Synchronized cache for that.
type Perpetual struct {
	id      string
	entries *keyMap[any]
}

var _ sqlmap.Cache = (*Perpetual)(nil)

// NewPerpetual returns an empty cache with the given id.
func NewPerpetual(id string) *Perpetual {
	return &Perpetual{id: id, entries: newKeyMap[any]()}
}

// ID implements sqlmap.Cache.
func (c *Perpetual) ID() string { return c.id }

// Get implements sqlmap.Cache.
func (c *Perpetual) Get(key *sqlmap.CacheKey) (any, error) {
	v, _ := c.entries.get(key)
	return v, nil
}

// Put implements sqlmap.Cache.
func (c *Perpetual) Put(key *sqlmap.CacheKey, value any) error {
	c.entries.put(key, value)
	return nil
}

// Remove implements sqlmap.Cache.
func (c *Perpetual) Remove(key *sqlmap.CacheKey) error {
	c.entries.remove(key)
	return nil
}

// Clear implements sqlmap.Cache.
func (c *Perpetual) Clear() error {
	c.entries.clear()
	return nil
}

// Size implements sqlmap.Cache.
func (c *Perpetual) Size() int { return c.entries.len() }
