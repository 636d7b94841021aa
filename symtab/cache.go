package symtab

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// SymbolCache shares parsed symbol tables between objects that refer to
// the same file. Tables are keyed by build ID when the file has one, and
// by dev+inode otherwise, so that the same library mapped by many paths
// (bind mounts, hard links) is parsed once.
type SymbolCache struct {
	byBuildID *lru.Cache[BuildID, *SymbolTab]
	byStat    *lru.Cache[Stat, *SymbolTab]
}

type CacheOptions struct {
	BuildIDCacheSize  int
	SameFileCacheSize int
}

var DefaultCacheOptions = CacheOptions{
	BuildIDCacheSize:  64,
	SameFileCacheSize: 64,
}

func NewSymbolCache(options CacheOptions) (*SymbolCache, error) {
	if options.BuildIDCacheSize <= 0 {
		options.BuildIDCacheSize = DefaultCacheOptions.BuildIDCacheSize
	}
	if options.SameFileCacheSize <= 0 {
		options.SameFileCacheSize = DefaultCacheOptions.SameFileCacheSize
	}
	byBuildID, err := lru.New[BuildID, *SymbolTab](options.BuildIDCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create build id cache: %w", err)
	}
	byStat, err := lru.New[Stat, *SymbolTab](options.SameFileCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create same file cache: %w", err)
	}
	return &SymbolCache{byBuildID: byBuildID, byStat: byStat}, nil
}

func (c *SymbolCache) GetByBuildID(id BuildID) *SymbolTab {
	if id.Empty() {
		return nil
	}
	if tab, ok := c.byBuildID.Get(id); ok {
		return tab
	}
	return nil
}

func (c *SymbolCache) CacheByBuildID(id BuildID, tab *SymbolTab) {
	if id.Empty() || tab == nil {
		return
	}
	c.byBuildID.Add(id, tab)
}

func (c *SymbolCache) GetByStat(s Stat) *SymbolTab {
	if s == (Stat{}) {
		return nil
	}
	if tab, ok := c.byStat.Get(s); ok {
		return tab
	}
	return nil
}

func (c *SymbolCache) CacheByStat(s Stat, tab *SymbolTab) {
	if s == (Stat{}) || tab == nil {
		return
	}
	c.byStat.Add(s, tab)
}
