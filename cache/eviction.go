package cache

import (
	"container/list"

	"github.com/syssam/sqlmap"
)

// DefaultSize is the capacity of eviction decorators when none is set.
const DefaultSize = 1024

// LRU evicts the least recently used entry from the delegate once more
// than Size keys were put.
type LRU struct {
	sqlmap.Cache
	size  int
	order *list.List // front is most recently used
	index *keyMap[*list.Element]
}

// NewLRU wraps delegate. A size <= 0 selects DefaultSize.
func NewLRU(delegate sqlmap.Cache, size int) *LRU {
	if size <= 0 {
		size = DefaultSize
	}
	return &LRU{Cache: delegate, size: size, order: list.New(), index: newKeyMap[*list.Element]()}
}

// Get implements sqlmap.Cache and marks key as recently used.
func (c *LRU) Get(key *sqlmap.CacheKey) (any, error) {
	if e, ok := c.index.get(key); ok {
		c.order.MoveToFront(e)
	}
	return c.Cache.Get(key)
}

// Put implements sqlmap.Cache.
func (c *LRU) Put(key *sqlmap.CacheKey, value any) error {
	if err := c.Cache.Put(key, value); err != nil {
		return err
	}
	if e, ok := c.index.get(key); ok {
		c.order.MoveToFront(e)
		return nil
	}
	c.index.put(key, c.order.PushFront(key))
	for c.order.Len() > c.size {
		eldest := c.order.Remove(c.order.Back()).(*sqlmap.CacheKey)
		c.index.remove(eldest)
		if err := c.Cache.Remove(eldest); err != nil {
			return err
		}
	}
	return nil
}

// Remove implements sqlmap.Cache.
func (c *LRU) Remove(key *sqlmap.CacheKey) error {
	if e, ok := c.index.remove(key); ok {
		c.order.Remove(e)
	}
	return c.Cache.Remove(key)
}

// Clear implements sqlmap.Cache.
func (c *LRU) Clear() error {
	c.order.Init()
	c.index.clear()
	return c.Cache.Clear()
}

// SetSize changes the capacity for subsequent puts.
func (c *LRU) SetSize(size int) { c.size = size }

// FIFO evicts the oldest inserted entry from the delegate once more than
// Size keys were put.
type FIFO struct {
	sqlmap.Cache
	size  int
	order *list.List // front is oldest
	index *keyMap[*list.Element]
}

// NewFIFO wraps delegate. A size <= 0 selects DefaultSize.
func NewFIFO(delegate sqlmap.Cache, size int) *FIFO {
	if size <= 0 {
		size = DefaultSize
	}
	return &FIFO{Cache: delegate, size: size, order: list.New(), index: newKeyMap[*list.Element]()}
}

// Put implements sqlmap.Cache.
func (c *FIFO) Put(key *sqlmap.CacheKey, value any) error {
	if err := c.Cache.Put(key, value); err != nil {
		return err
	}
	if _, ok := c.index.get(key); ok {
		return nil
	}
	c.index.put(key, c.order.PushBack(key))
	for c.order.Len() > c.size {
		oldest := c.order.Remove(c.order.Front()).(*sqlmap.CacheKey)
		c.index.remove(oldest)
		if err := c.Cache.Remove(oldest); err != nil {
			return err
		}
	}
	return nil
}

// Remove implements sqlmap.Cache.
func (c *FIFO) Remove(key *sqlmap.CacheKey) error {
	if e, ok := c.index.remove(key); ok {
		c.order.Remove(e)
	}
	return c.Cache.Remove(key)
}

// Clear implements sqlmap.Cache.
func (c *FIFO) Clear() error {
	c.order.Init()
	c.index.clear()
	return c.Cache.Clear()
}

// SetSize changes the capacity for subsequent puts.
func (c *FIFO) SetSize(size int) { c.size = size }
