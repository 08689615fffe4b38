package cache

import (
	"errors"
	"sync"
	"time"

	"github.com/syssam/sqlmap"
)

// ErrLockTimeout is returned when a blocking cache waits too long for a key.
var ErrLockTimeout = errors.New("sqlmap: timed out waiting for cache lock")

// Blocking lets a single caller compute a missing entry: a Get that misses
// keeps the key locked until the same caller Puts (or Removes) it, and
// concurrent Gets for that key wait in the meantime.
type Blocking struct {
	sqlmap.Cache
	// Timeout bounds the wait for a locked key. Zero waits forever.
	Timeout time.Duration

	mu    sync.Mutex
	locks *keyMap[chan struct{}]
}

// NewBlocking wraps delegate. The delegate must be safe for concurrent use.
func NewBlocking(delegate sqlmap.Cache, timeout time.Duration) *Blocking {
	return &Blocking{Cache: delegate, Timeout: timeout, locks: newKeyMap[chan struct{}]()}
}

func (c *Blocking) acquire(key *sqlmap.CacheKey) error {
	for {
		c.mu.Lock()
		held, ok := c.locks.get(key)
		if !ok {
			c.locks.put(key, make(chan struct{}))
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()
		if c.Timeout <= 0 {
			<-held
			continue
		}
		select {
		case <-held:
		case <-time.After(c.Timeout):
			return &sqlmap.CacheError{Cache: c.ID(), Err: ErrLockTimeout}
		}
	}
}

func (c *Blocking) release(key *sqlmap.CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if held, ok := c.locks.remove(key); ok {
		close(held)
	}
}

// Get implements sqlmap.Cache. On a miss the key stays locked.
func (c *Blocking) Get(key *sqlmap.CacheKey) (any, error) {
	if err := c.acquire(key); err != nil {
		return nil, err
	}
	v, err := c.Cache.Get(key)
	if v != nil || err != nil {
		c.release(key)
	}
	return v, err
}

// Put implements sqlmap.Cache and releases the key.
func (c *Blocking) Put(key *sqlmap.CacheKey, value any) error {
	defer c.release(key)
	return c.Cache.Put(key, value)
}

// Remove releases the key without touching the delegate.
func (c *Blocking) Remove(key *sqlmap.CacheKey) error {
	c.release(key)
	return nil
}
