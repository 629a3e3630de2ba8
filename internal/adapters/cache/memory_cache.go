package cache

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/core"
)

var (
	// ErrNotFound is returned when a cache entry is not found
	ErrNotFound = errors.New("cache entry not found")
)

// MemoryCache is an in-memory implementation of the VerdictCache port
// with TTL expiry and least-recently-used eviction over a capacity cap.
type MemoryCache struct {
	entries     map[string]*list.Element
	order       *list.List
	maxEntries  int
	mu          sync.RWMutex
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

type memoryEntry struct {
	fingerprint string
	verdict     core.EnsembleVerdict
	expiresAt   time.Time
}

// NewMemoryCache creates a new in-memory verdict cache.
func NewMemoryCache(logger *zap.Logger, cleanupFreq time.Duration, maxEntries int) *MemoryCache {
	cache := &MemoryCache{
		entries:     make(map[string]*list.Element),
		order:       list.New(),
		maxEntries:  maxEntries,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	if cleanupFreq > 0 {
		go cache.startCleanupTask()
	}

	return cache
}

// Get retrieves a non-expired verdict. Expired entries are purged lazily
// here; live ones move to the front of the LRU order.
func (c *MemoryCache) Get(_ context.Context, fingerprint string) (*core.EnsembleVerdict, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[fingerprint]
	if !ok {
		return nil, false
	}

	entry := elem.Value.(*memoryEntry)
	if time.Now().After(entry.expiresAt) {
		c.order.Remove(elem)
		delete(c.entries, fingerprint)
		return nil, false
	}

	c.order.MoveToFront(elem)
	verdict := entry.verdict
	return &verdict, true
}

// Set stores a verdict, evicting the least-recently-used entries when
// the capacity cap is exceeded.
func (c *MemoryCache) Set(_ context.Context, fingerprint string, verdict *core.EnsembleVerdict, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &memoryEntry{
		fingerprint: fingerprint,
		verdict:     *verdict,
		expiresAt:   time.Now().Add(ttl),
	}

	if elem, ok := c.entries[fingerprint]; ok {
		elem.Value = entry
		c.order.MoveToFront(elem)
		return nil
	}

	c.entries[fingerprint] = c.order.PushFront(entry)

	for c.maxEntries > 0 && c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		evicted := oldest.Value.(*memoryEntry)
		c.order.Remove(oldest)
		delete(c.entries, evicted.fingerprint)
		c.logger.Debug("Evicted LRU cache entry", zap.String("fingerprint", evicted.fingerprint[:8]))
	}

	return nil
}

// Cleanup removes expired entries.
func (c *MemoryCache) Cleanup(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	expiredCount := 0

	for fingerprint, elem := range c.entries {
		entry := elem.Value.(*memoryEntry)
		if now.After(entry.expiresAt) {
			c.order.Remove(elem)
			delete(c.entries, fingerprint)
			expiredCount++
		}
	}

	c.logger.Debug("Cleaned up expired cache entries", zap.Int("expired_count", expiredCount))
	return nil
}

// Len returns the current entry count.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}

// startCleanupTask starts a background task to clean up expired entries
func (c *MemoryCache) startCleanupTask() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Cleanup(context.Background()); err != nil {
				c.logger.Error("Failed to clean up cache", zap.Error(err))
			}
		case <-c.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task.
func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}
