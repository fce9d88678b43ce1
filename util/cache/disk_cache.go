package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"yunsou/util/json"
)

// diskMeta 磁盘缓存条目的元数据，以.meta文件伴随数据文件落盘
type diskMeta struct {
	Key      string    `json:"key"`
	Expiry   time.Time `json:"expiry"`
	LastUsed time.Time `json:"last_used"`
	Size     int       `json:"size"`
}

// DiskCache 磁盘缓存。数据文件以键的md5命名，
// 总大小超出预算时按最近最少使用淘汰
type DiskCache struct {
	path      string
	maxSizeMB int
	metadata  map[string]*diskMeta
	mutex     sync.RWMutex
	currSize  int64
}

// NewDiskCache 创建磁盘缓存并恢复已有条目的元数据
func NewDiskCache(path string, maxSizeMB int) (*DiskCache, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("创建缓存目录: %w", err)
	}

	cache := &DiskCache{
		path:      path,
		maxSizeMB: maxSizeMB,
		metadata:  make(map[string]*diskMeta),
	}
	cache.loadMetadata()

	go cache.cleanupLoop()

	return cache, nil
}

// loadMetadata 扫描缓存目录里的.meta文件，重建内存索引
func (c *DiskCache) loadMetadata() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entries, err := os.ReadDir(c.path)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".meta") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(c.path, entry.Name()))
		if err != nil {
			continue
		}

		var meta diskMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}

		c.currSize += int64(meta.Size)
		c.metadata[meta.Key] = &meta
	}
}

func (c *DiskCache) filename(key string) string {
	hash := md5.Sum([]byte(key))
	return hex.EncodeToString(hash[:])
}

func (c *DiskCache) saveMeta(key string, meta *diskMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.path, c.filename(key)+".meta"), data, 0644)
}

// Set 写入缓存，空间不足时先按LRU腾出位置
func (c *DiskCache) Set(key string, data []byte, ttl time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if meta, exists := c.metadata[key]; exists {
		c.currSize -= int64(meta.Size)
		c.removeFilesLocked(key)
	}

	maxSize := int64(c.maxSizeMB) * 1024 * 1024
	if c.currSize+int64(len(data)) > maxSize {
		c.evictLRULocked(int64(len(data)))
	}

	// 缓存目录可能被外部清掉，写入前补建
	if err := os.MkdirAll(c.path, 0755); err != nil {
		return fmt.Errorf("创建缓存目录: %w", err)
	}

	filePath := filepath.Join(c.path, c.filename(key))
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("写入缓存文件: %w", err)
	}

	now := time.Now()
	meta := &diskMeta{
		Key:      key,
		Expiry:   now.Add(ttl),
		LastUsed: now,
		Size:     len(data),
	}
	if err := c.saveMeta(key, meta); err != nil {
		os.Remove(filePath)
		return fmt.Errorf("写入缓存元数据: %w", err)
	}

	c.metadata[key] = meta
	c.currSize += int64(len(data))
	return nil
}

// Get 读取缓存，过期或文件丢失按未命中处理
func (c *DiskCache) Get(key string) ([]byte, bool, error) {
	c.mutex.RLock()
	meta, exists := c.metadata[key]
	c.mutex.RUnlock()

	if !exists {
		return nil, false, nil
	}
	if time.Now().After(meta.Expiry) {
		c.Delete(key)
		return nil, false, nil
	}

	data, err := os.ReadFile(filepath.Join(c.path, c.filename(key)))
	if err != nil {
		if os.IsNotExist(err) {
			c.Delete(key)
			return nil, false, nil
		}
		return nil, false, err
	}

	c.mutex.Lock()
	meta.LastUsed = time.Now()
	c.saveMeta(key, meta)
	c.mutex.Unlock()

	return data, true, nil
}

// Delete 删除缓存条目
func (c *DiskCache) Delete(key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	meta, exists := c.metadata[key]
	if !exists {
		return nil
	}

	c.removeFilesLocked(key)
	c.currSize -= int64(meta.Size)
	delete(c.metadata, key)
	return nil
}

// Clear 清空磁盘缓存
func (c *DiskCache) Clear() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entries, err := os.ReadDir(c.path)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		os.Remove(filepath.Join(c.path, entry.Name()))
	}

	c.metadata = make(map[string]*diskMeta)
	c.currSize = 0
	return nil
}

func (c *DiskCache) removeFilesLocked(key string) {
	filename := c.filename(key)
	os.Remove(filepath.Join(c.path, filename))
	os.Remove(filepath.Join(c.path, filename+".meta"))
}

// cleanExpired 删除全部过期条目
func (c *DiskCache) cleanExpired() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	for key, meta := range c.metadata {
		if now.After(meta.Expiry) {
			c.removeFilesLocked(key)
			c.currSize -= int64(meta.Size)
			delete(c.metadata, key)
		}
	}
}

// evictLRULocked 从最久未使用的条目开始删除，直到容纳下新数据
func (c *DiskCache) evictLRULocked(requiredSpace int64) {
	type item struct {
		key      string
		lastUsed time.Time
		size     int
	}

	items := make([]item, 0, len(c.metadata))
	for key, meta := range c.metadata {
		items = append(items, item{key: key, lastUsed: meta.LastUsed, size: meta.Size})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].lastUsed.Before(items[j].lastUsed)
	})

	maxSize := int64(c.maxSizeMB) * 1024 * 1024
	for _, it := range items {
		if c.currSize+requiredSpace <= maxSize {
			break
		}
		c.removeFilesLocked(it.key)
		c.currSize -= int64(it.size)
		delete(c.metadata, it.key)
	}
}

func (c *DiskCache) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		c.cleanExpired()
	}
}
