package cache

import (
	"time"

	"github.com/syssam/sqlmap"
)

// Scheduled clears the delegate when more than Interval elapsed since the
// last clear. The check runs on every access; there is no background
// goroutine.
type Scheduled struct {
	sqlmap.Cache
	Interval time.Duration

	now       func() time.Time
	lastClear time.Time
}

// NewScheduled wraps delegate.
func NewScheduled(delegate sqlmap.Cache, interval time.Duration) *Scheduled {
	return newScheduled(delegate, interval, time.Now)
}

func newScheduled(delegate sqlmap.Cache, interval time.Duration, now func() time.Time) *Scheduled {
	return &Scheduled{Cache: delegate, Interval: interval, now: now, lastClear: now()}
}

func (c *Scheduled) clearWhenStale() (bool, error) {
	if c.now().Sub(c.lastClear) <= c.Interval {
		return false, nil
	}
	return true, c.Clear()
}

// Get implements sqlmap.Cache.
func (c *Scheduled) Get(key *sqlmap.CacheKey) (any, error) {
	if cleared, err := c.clearWhenStale(); cleared || err != nil {
		return nil, err
	}
	return c.Cache.Get(key)
}

// Put implements sqlmap.Cache.
func (c *Scheduled) Put(key *sqlmap.CacheKey, value any) error {
	if _, err := c.clearWhenStale(); err != nil {
		return err
	}
	return c.Cache.Put(key, value)
}

// Remove implements sqlmap.Cache.
func (c *Scheduled) Remove(key *sqlmap.CacheKey) error {
	if _, err := c.clearWhenStale(); err != nil {
		return err
	}
	return c.Cache.Remove(key)
}

// Clear implements sqlmap.Cache.
func (c *Scheduled) Clear() error {
	c.lastClear = c.now()
	return c.Cache.Clear()
}

// Size implements sqlmap.Cache.
func (c *Scheduled) Size() int {
	_, _ = c.clearWhenStale()
	return c.Cache.Size()
}
