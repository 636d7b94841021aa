// Package backward resolves raw instruction addresses from the current
// process to source locations. It is the convenience surface over the
// resolver package: one process-wide resolver, one lock, and a memo of
// addresses already resolved, so hot call sites are symbolicated once.
package backward

import (
	"sync"

	"github.com/backward-go/backward/metrics"
	"github.com/backward-go/backward/resolver"
	"github.com/backward-go/backward/trace"
)

// Cache is a memoizing front over a resolver backend. Safe for
// concurrent use; the whole batch runs under one lock, matching the
// backends' single-threaded contract.
type Cache struct {
	mu       sync.Mutex
	resolver resolver.TraceResolver
	memo     map[uint64]trace.SourceLoc
	metrics  *metrics.Metrics
}

func NewCache(r resolver.TraceResolver, m *metrics.Metrics) *Cache {
	return &Cache{
		resolver: r,
		memo:     make(map[uint64]trace.SourceLoc),
		metrics:  m,
	}
}

// Resolve maps each address to a source location, in order. Only the
// Source field is memoized: object paths and inliner chains are cheap
// to drop here and available through the resolver package for callers
// that need them.
func (c *Cache) Resolve(addrs []uint64) []trace.SourceLoc {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := make([]trace.SourceLoc, len(addrs))
	misses := false
	for _, addr := range addrs {
		if _, ok := c.memo[addr]; !ok {
			misses = true
			break
		}
	}
	if misses {
		// batch backends want the full stack, not just the misses
		c.resolver.LoadAddresses(addrs)
	}
	for i, addr := range addrs {
		if loc, ok := c.memo[addr]; ok {
			if c.metrics != nil {
				c.metrics.CacheHits.Inc()
			}
			res[i] = loc
			continue
		}
		if c.metrics != nil {
			c.metrics.CacheMisses.Inc()
		}
		rt := c.resolver.Resolve(trace.NewResolved(trace.New(addr, i)))
		c.memo[addr] = rt.Source
		res[i] = rt.Source
	}
	return res
}

var (
	processOnce  sync.Once
	processCache *Cache
)

// Resolve resolves addresses against the process-wide cache. The
// backing resolver is built on first use with default options and lives
// for the life of the process.
func Resolve(addrs []uint64) []trace.SourceLoc {
	processOnce.Do(func() {
		processCache = NewCache(resolver.New(resolver.DefaultOptions()), nil)
	})
	return processCache.Resolve(addrs)
}
