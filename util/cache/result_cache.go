package cache

import (
	"time"

	"yunsou/model"
	"yunsou/util/json"
	"yunsou/util/log"
)

// ResultCache 搜索结果的两级缓存，内存为主、磁盘可选。
// 每个实例服务一类检索路径，由搜索服务自持，不做包级共享
type ResultCache struct {
	memory *TTLCache[[]model.SearchResult]
	disk   *DiskCache
	ttl    time.Duration
}

// NewResultCache 创建结果缓存。
// diskPath为空时只启用内存层；磁盘层初始化失败会降级为纯内存并记录日志
func NewResultCache(maxEntries int, ttl time.Duration, diskPath string, diskMaxSizeMB int) *ResultCache {
	rc := &ResultCache{
		memory: NewTTLCache[[]model.SearchResult](maxEntries, time.Minute),
		ttl:    ttl,
	}

	if diskPath != "" {
		disk, err := NewDiskCache(diskPath, diskMaxSizeMB)
		if err != nil {
			log.Warnf("磁盘缓存初始化失败，降级为纯内存缓存: %v", err)
		} else {
			rc.disk = disk
		}
	}

	return rc
}

// Get 先查内存，未命中再查磁盘，磁盘命中的数据回填内存
func (rc *ResultCache) Get(key string) ([]model.SearchResult, bool) {
	if results, ok := rc.memory.Get(key); ok {
		return results, true
	}

	if rc.disk == nil {
		return nil, false
	}

	data, ok, err := rc.disk.Get(key)
	if err != nil || !ok {
		return nil, false
	}

	var results []model.SearchResult
	if err := json.Unmarshal(data, &results); err != nil {
		log.Warnf("磁盘缓存数据损坏，按未命中处理: key=%s err=%v", key, err)
		rc.disk.Delete(key)
		return nil, false
	}

	rc.memory.Set(key, results, rc.ttl)
	return results, true
}

// Set 写入内存并异步落盘，落盘失败只记日志不影响本次请求
func (rc *ResultCache) Set(key string, results []model.SearchResult) {
	rc.memory.Set(key, results, rc.ttl)

	if rc.disk == nil {
		return
	}

	go func() {
		data, err := json.Marshal(results)
		if err != nil {
			log.Warnf("序列化缓存结果失败: key=%s err=%v", key, err)
			return
		}
		if err := rc.disk.Set(key, data, rc.ttl); err != nil {
			log.Warnf("写入磁盘缓存失败: key=%s err=%v", key, err)
		}
	}()
}

// Clear 清空两级缓存
func (rc *ResultCache) Clear() {
	rc.memory.Clear()
	if rc.disk != nil {
		rc.disk.Clear()
	}
}

// Stats 返回内存层统计信息
func (rc *ResultCache) Stats() Stats {
	return rc.memory.Stats()
}
