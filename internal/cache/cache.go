// Package cache provides caching for rendered pages and filtered query results.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Config contains cache configuration.
type Config struct {
	PageCacheSizeMB int
	PageTTL         time.Duration
	QueryCacheSize  int
}

// Manager manages page and query caches.
type Manager struct {
	pageCache  *bigcache.BigCache
	queryCache *lru.Cache[string, []byte]
}

// NewManager creates a new cache manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.PageTTL <= 0 {
		return nil, fmt.Errorf("page ttl must be positive, got %s", cfg.PageTTL)
	}

	// Pages and previews are few but large.
	pageCacheConfig := bigcache.Config{
		Shards:             16,
		LifeWindow:         cfg.PageTTL,
		CleanWindow:        cfg.PageTTL / 2,
		MaxEntriesInWindow: 1024,
		MaxEntrySize:       512 * 1024,
		HardMaxCacheSize:   cfg.PageCacheSizeMB,
		Verbose:            false,
	}

	pageCache, err := bigcache.New(context.Background(), pageCacheConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create page cache: %w", err)
	}

	queryCache, err := lru.New[string, []byte](cfg.QueryCacheSize)
	if err != nil {
		pageCache.Close()
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}

	return &Manager{
		pageCache:  pageCache,
		queryCache: queryCache,
	}, nil
}

// GetPage retrieves a rendered page or image from cache.
func (m *Manager) GetPage(key string) ([]byte, bool) {
	data, err := m.pageCache.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetPage stores a rendered page or image in cache.
func (m *Manager) SetPage(key string, data []byte) error {
	return m.pageCache.Set(key, data)
}

// GetQuery retrieves a query result from cache.
func (m *Manager) GetQuery(key string) ([]byte, bool) {
	return m.queryCache.Get(key)
}

// SetQuery stores a query result in cache.
func (m *Manager) SetQuery(key string, data []byte) {
	m.queryCache.Add(key, data)
}

// PageKey generates a cache key for a dataset page.
func PageKey(dataset string) string {
	return "page:" + dataset
}

// PreviewKey generates a cache key for a preview image.
func PreviewKey(dataset string, size int, colormap string) string {
	return fmt.Sprintf("preview:%s:%d:%s", dataset, size, colormap)
}

// FilterKey generates a cache key for a table filtered at threshold.
func FilterKey(dataset string, threshold float64) string {
	return "filter:" + dataset + ":" + strconv.FormatFloat(threshold, 'g', -1, 64)
}

// Stats returns cache statistics.
func (m *Manager) Stats() map[string]interface{} {
	return map[string]interface{}{
		"page_cache_len":  m.pageCache.Len(),
		"page_cache_cap":  m.pageCache.Capacity(),
		"query_cache_len": m.queryCache.Len(),
	}
}

// Close closes the cache manager.
func (m *Manager) Close() error {
	return m.pageCache.Close()
}
