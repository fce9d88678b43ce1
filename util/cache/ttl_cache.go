package cache

import (
	"sync"
	"time"
)

// ttlEntry 缓存条目。过期时间一到条目即视为不存在，
// 物理删除交给清扫逻辑完成
type ttlEntry[V any] struct {
	value      V
	expiresAt  time.Time
	lastAccess time.Time
}

// Stats 缓存统计信息，Active+Expired恒等于Total
type Stats struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Expired int `json:"expired"`
}

// TTLCache 带TTL过期和LRU淘汰的内存缓存。
// 条目数达到上限时写入新键会先淘汰最久未访问的条目；
// 读写都会在满足最小间隔的前提下顺带清扫过期条目
type TTLCache[V any] struct {
	mutex            sync.Mutex
	entries          map[string]*ttlEntry[V]
	maxEntries       int
	minSweepInterval time.Duration
	lastSweep        time.Time
}

// NewTTLCache 创建内存缓存。
// maxEntries小于等于0表示不限制条目数，minSweepInterval控制清扫频率
func NewTTLCache[V any](maxEntries int, minSweepInterval time.Duration) *TTLCache[V] {
	return &TTLCache[V]{
		entries:          make(map[string]*ttlEntry[V]),
		maxEntries:       maxEntries,
		minSweepInterval: minSweepInterval,
	}
}

// Set 写入缓存并刷新过期时间。
// 新键在容量已满时先触发一次LRU淘汰，已有键直接覆盖
func (c *TTLCache[V]) Set(key string, value V, ttl time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	c.maybeSweepLocked(now)

	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}

	c.entries[key] = &ttlEntry[V]{
		value:      value,
		expiresAt:  now.Add(ttl),
		lastAccess: now,
	}
}

// Get 读取缓存。不存在或已过期返回未命中，命中会刷新访问时间
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	c.maybeSweepLocked(now)

	var zero V
	entry, exists := c.entries[key]
	if !exists {
		return zero, false
	}
	if !now.Before(entry.expiresAt) {
		return zero, false
	}

	entry.lastAccess = now
	return entry.value, true
}

// Clear 清空全部条目
func (c *TTLCache[V]) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]*ttlEntry[V])
	c.lastSweep = time.Time{}
}

// Stats 返回当前统计信息
func (c *TTLCache[V]) Stats() Stats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	stats := Stats{Total: len(c.entries)}
	for _, entry := range c.entries {
		if now.Before(entry.expiresAt) {
			stats.Active++
		} else {
			stats.Expired++
		}
	}
	return stats
}

// StartCleanupTask 启动后台定期清扫，返回停止函数
func (c *TTLCache[V]) StartCleanupTask(interval time.Duration) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.mutex.Lock()
				c.sweepLocked(time.Now())
				c.mutex.Unlock()
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }
}

// maybeSweepLocked 距离上次清扫超过最小间隔时执行一次清扫
func (c *TTLCache[V]) maybeSweepLocked(now time.Time) {
	if now.Sub(c.lastSweep) < c.minSweepInterval {
		return
	}
	c.sweepLocked(now)
}

// sweepLocked 删除全部过期条目
func (c *TTLCache[V]) sweepLocked(now time.Time) {
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	c.lastSweep = now
}

// evictOldestLocked 淘汰最久未访问的条目
func (c *TTLCache[V]) evictOldestLocked() {
	var oldestKey string
	var oldestAccess time.Time
	first := true

	for key, entry := range c.entries {
		if first || entry.lastAccess.Before(oldestAccess) {
			oldestKey = key
			oldestAccess = entry.lastAccess
			first = false
		}
	}

	if !first {
		delete(c.entries, oldestKey)
	}
}
