package cache

import (
	"log/slog"
	"sync/atomic"

	"github.com/syssam/sqlmap"
)

// Logging counts hits and logs the running hit ratio on every Get.
type Logging struct {
	sqlmap.Cache

	logger   *slog.Logger
	requests atomic.Int64
	hits     atomic.Int64
}

// NewLogging wraps delegate. A nil logger selects slog.Default().
func NewLogging(delegate sqlmap.Cache, logger *slog.Logger) *Logging {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logging{Cache: delegate, logger: logger}
}

// Get implements sqlmap.Cache.
func (c *Logging) Get(key *sqlmap.CacheKey) (any, error) {
	c.requests.Add(1)
	v, err := c.Cache.Get(key)
	if v != nil {
		c.hits.Add(1)
	}
	c.logger.Debug("cache lookup", "cache", c.ID(), "hit", v != nil, "hit_ratio", c.HitRatio())
	return v, err
}

// HitRatio returns hits / requests, or 0 before the first request.
func (c *Logging) HitRatio() float64 {
	r := c.requests.Load()
	if r == 0 {
		return 0
	}
	return float64(c.hits.Load()) / float64(r)
}
