package cache

import (
	"sync"

	"github.com/syssam/sqlmap"
)

// Synchronized serializes every call to the delegate.
type Synchronized struct {
	mu       sync.Mutex
	delegate sqlmap.Cache
}

var _ sqlmap.Cache = (*Synchronized)(nil)

// NewSynchronized wraps delegate.
func NewSynchronized(delegate sqlmap.Cache) *Synchronized {
	return &Synchronized{delegate: delegate}
}

// ID implements sqlmap.Cache.
func (c *Synchronized) ID() string { return c.delegate.ID() }

// Get implements sqlmap.Cache.
func (c *Synchronized) Get(key *sqlmap.CacheKey) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegate.Get(key)
}

// Put implements sqlmap.Cache.
func (c *Synchronized) Put(key *sqlmap.CacheKey, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegate.Put(key, value)
}

// Remove implements sqlmap.Cache.
func (c *Synchronized) Remove(key *sqlmap.CacheKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegate.Remove(key)
}

// Clear implements sqlmap.Cache.
func (c *Synchronized) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegate.Clear()
}

// Size implements sqlmap.Cache.
func (c *Synchronized) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegate.Size()
}
