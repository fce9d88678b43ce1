package plugin

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"yunsou/config"
	"yunsou/model"
	"yunsou/util"
	"yunsou/util/log"
)

// cachedResponse 插件响应缓存条目。
// Complete为false表示该条目来自被超时截断的搜索，后台还会补全
type cachedResponse struct {
	Results   []model.SearchResult
	Timestamp time.Time
	Complete  bool
}

// persistedEntry 落盘用的缓存条目快照
type persistedEntry struct {
	Results   []model.SearchResult
	Timestamp time.Time
	Complete  bool
	ExpireAt  time.Time
}

// searchOutcome 一次前台搜索的结果
type searchOutcome struct {
	results []model.SearchResult
	err     error
}

// 插件层共享的异步基础设施，首个插件创建时懒初始化
var (
	asyncSetupOnce   sync.Once
	apiResponseCache *gocache.Cache
	backgroundSlots  chan struct{}
	refreshInFlight  sync.Map
	persistPath      string

	mainCacheUpdater func(key string, results []model.SearchResult)
	updaterMutex     sync.RWMutex
)

// SetMainCacheUpdater 注册主缓存回写函数。
// 后台刷新完成的插件结果沿搜索时关联的主缓存键写回调用方的缓存
func SetMainCacheUpdater(fn func(key string, results []model.SearchResult)) {
	updaterMutex.Lock()
	defer updaterMutex.Unlock()
	mainCacheUpdater = fn
}

// InitAsyncPluginSystem 初始化插件层的异步基础设施，启动时调用一次
func InitAsyncPluginSystem() {
	setupAsyncRuntime()
}

func setupAsyncRuntime() {
	asyncSetupOnce.Do(func() {
		ttl := time.Hour
		workers := 20
		if config.AppConfig != nil {
			if config.AppConfig.AsyncCacheTTLHours > 0 {
				ttl = time.Duration(config.AppConfig.AsyncCacheTTLHours) * time.Hour
			}
			if config.AppConfig.AsyncMaxBackgroundWorkers > 0 {
				workers = config.AppConfig.AsyncMaxBackgroundWorkers
			}
			if config.AppConfig.CacheEnabled {
				persistPath = filepath.Join(config.AppConfig.CachePath, "plugin_response_cache.gz")
			}
		}

		apiResponseCache = gocache.New(ttl, 10*time.Minute)
		backgroundSlots = make(chan struct{}, workers)

		if persistPath != "" {
			loadPluginCache()
			go func() {
				ticker := time.NewTicker(2 * time.Minute)
				defer ticker.Stop()
				for range ticker.C {
					if err := SavePluginCache(); err != nil {
						log.Warnf("定期保存插件缓存失败: %v", err)
					}
				}
			}()
		}
	})
}

// BaseAsyncPlugin 异步插件基类。
// 前台用短超时客户端抢首屏响应，没抢到的部分交给长超时客户端后台补全
type BaseAsyncPlugin struct {
	name              string
	priority          int
	client            *http.Client
	backgroundClient  *http.Client
	responseTimeout   time.Duration
	mainCacheKey      string
	currentKeyword    string
	skipServiceFilter bool
}

// NewBaseAsyncPlugin 创建插件基类
func NewBaseAsyncPlugin(name string, priority int) *BaseAsyncPlugin {
	return NewBaseAsyncPluginWithFilter(name, priority, false)
}

// NewBaseAsyncPluginWithFilter 创建插件基类并指定是否跳过服务层关键词过滤
func NewBaseAsyncPluginWithFilter(name string, priority int, skipServiceFilter bool) *BaseAsyncPlugin {
	setupAsyncRuntime()

	responseTimeout := 4 * time.Second
	backgroundTimeout := 30 * time.Second
	if config.AppConfig != nil {
		responseTimeout = config.AppConfig.AsyncResponseTimeoutDur
		backgroundTimeout = config.AppConfig.PluginTimeout
	}

	return &BaseAsyncPlugin{
		name:              name,
		priority:          priority,
		client:            &http.Client{Timeout: responseTimeout},
		backgroundClient:  &http.Client{Timeout: backgroundTimeout},
		responseTimeout:   responseTimeout,
		skipServiceFilter: skipServiceFilter,
	}
}

// Name 返回插件名称
func (p *BaseAsyncPlugin) Name() string {
	return p.name
}

// Priority 返回插件优先级
func (p *BaseAsyncPlugin) Priority() int {
	return p.priority
}

// SetMainCacheKey 关联本次搜索的主缓存键
func (p *BaseAsyncPlugin) SetMainCacheKey(key string) {
	p.mainCacheKey = key
}

// SetCurrentKeyword 设置当前关键词，用于后台任务的日志关联
func (p *BaseAsyncPlugin) SetCurrentKeyword(keyword string) {
	p.currentKeyword = keyword
}

// MainCacheKey 返回当前关联的主缓存键
func (p *BaseAsyncPlugin) MainCacheKey() string {
	return p.mainCacheKey
}

// SkipServiceFilter 是否跳过服务层关键词过滤
func (p *BaseAsyncPlugin) SkipServiceFilter() bool {
	return p.skipServiceFilter
}

// AsyncSearch 异步搜索。
// 完整缓存直接命中；半成品缓存先交出旧数据同时调度后台补全；
// 无缓存时前台抢一轮响应超时，没抢到转后台并先返回空结果
func (p *BaseAsyncPlugin) AsyncSearch(
	keyword string,
	searchFunc func(*http.Client, string, map[string]interface{}) ([]model.SearchResult, error),
	mainCacheKey string,
	ext map[string]interface{},
) ([]model.SearchResult, error) {
	if ext == nil {
		ext = map[string]interface{}{}
	}
	cacheKey := p.name + ":" + keyword

	if cached, found := apiResponseCache.Get(cacheKey); found {
		response := cached.(cachedResponse)
		if response.Complete {
			return response.Results, nil
		}
		p.scheduleBackgroundRefresh(cacheKey, keyword, searchFunc, mainCacheKey, ext)
		return response.Results, nil
	}

	resultChan := make(chan searchOutcome, 1)
	go func() {
		results, err := searchFunc(p.client, keyword, ext)
		if err == nil {
			p.storeResponse(cacheKey, results, true)
			p.writeMainCache(mainCacheKey, results)
		}
		resultChan <- searchOutcome{results: results, err: err}
	}()

	timer := time.NewTimer(p.responseTimeout)
	defer timer.Stop()

	select {
	case outcome := <-resultChan:
		if outcome.err != nil {
			return nil, fmt.Errorf("[%s] 搜索失败: %w", p.name, outcome.err)
		}
		return outcome.results, nil
	case <-timer.C:
		log.Debugf("[%s] 响应超时转后台刷新: %s", p.name, keyword)
		p.scheduleBackgroundRefresh(cacheKey, keyword, searchFunc, mainCacheKey, ext)
		return []model.SearchResult{}, nil
	}
}

// scheduleBackgroundRefresh 调度一次后台补全。
// 同一缓存键最多一个在途任务，槽位耗尽时放弃本次补全
func (p *BaseAsyncPlugin) scheduleBackgroundRefresh(
	cacheKey, keyword string,
	searchFunc func(*http.Client, string, map[string]interface{}) ([]model.SearchResult, error),
	mainCacheKey string,
	ext map[string]interface{},
) {
	if _, running := refreshInFlight.LoadOrStore(cacheKey, struct{}{}); running {
		return
	}

	select {
	case backgroundSlots <- struct{}{}:
	default:
		refreshInFlight.Delete(cacheKey)
		log.Debugf("[%s] 后台槽位已满，跳过刷新: %s", p.name, keyword)
		return
	}

	go func() {
		defer func() {
			<-backgroundSlots
			refreshInFlight.Delete(cacheKey)
			if r := recover(); r != nil {
				log.Warnf("[%s] 后台刷新panic已隔离: %v", p.name, r)
			}
		}()

		results, err := searchFunc(p.backgroundClient, keyword, ext)
		if err != nil {
			log.Debugf("[%s] 后台刷新失败: %s err=%v", p.name, keyword, err)
			return
		}

		merged := p.mergeWithCached(cacheKey, results)
		p.storeResponse(cacheKey, merged, true)
		p.writeMainCache(mainCacheKey, merged)
		log.Debugf("[%s] 后台刷新完成: %s 共%d条", p.name, keyword, len(merged))
	}()
}

// mergeWithCached 合并新旧结果，新数据在前，按身份键去重
func (p *BaseAsyncPlugin) mergeWithCached(cacheKey string, fresh []model.SearchResult) []model.SearchResult {
	merged := make([]model.SearchResult, 0, len(fresh))
	seen := make(map[string]bool, len(fresh))

	for _, result := range fresh {
		key := result.IdentityKey()
		if !seen[key] {
			seen[key] = true
			merged = append(merged, result)
		}
	}

	if cached, found := apiResponseCache.Get(cacheKey); found {
		if response, ok := cached.(cachedResponse); ok {
			for _, result := range response.Results {
				key := result.IdentityKey()
				if !seen[key] {
					seen[key] = true
					merged = append(merged, result)
				}
			}
		}
	}

	return merged
}

func (p *BaseAsyncPlugin) storeResponse(cacheKey string, results []model.SearchResult, complete bool) {
	apiResponseCache.Set(cacheKey, cachedResponse{
		Results:   results,
		Timestamp: time.Now(),
		Complete:  complete,
	}, gocache.DefaultExpiration)
}

func (p *BaseAsyncPlugin) writeMainCache(mainCacheKey string, results []model.SearchResult) {
	if mainCacheKey == "" || len(results) == 0 {
		return
	}

	updaterMutex.RLock()
	updater := mainCacheUpdater
	updaterMutex.RUnlock()

	if updater != nil {
		updater(mainCacheKey, results)
	}
}

// SavePluginCache 把插件响应缓存压缩落盘，重启后可恢复
func SavePluginCache() error {
	if apiResponseCache == nil || persistPath == "" {
		return nil
	}

	snapshot := make(map[string]persistedEntry)
	for key, item := range apiResponseCache.Items() {
		response, ok := item.Object.(cachedResponse)
		if !ok {
			continue
		}
		entry := persistedEntry{
			Results:   response.Results,
			Timestamp: response.Timestamp,
			Complete:  response.Complete,
		}
		if item.Expiration > 0 {
			entry.ExpireAt = time.Unix(0, item.Expiration)
		}
		snapshot[key] = entry
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snapshot); err != nil {
		return fmt.Errorf("编码插件缓存: %w", err)
	}
	compressed, err := util.CompressData(buf.Bytes())
	if err != nil {
		return fmt.Errorf("压缩插件缓存: %w", err)
	}
	if err := util.WriteFile(persistPath, compressed, 0644); err != nil {
		return fmt.Errorf("写入插件缓存文件: %w", err)
	}
	return nil
}

// loadPluginCache 从磁盘恢复未过期的插件响应缓存
func loadPluginCache() {
	data, err := os.ReadFile(persistPath)
	if err != nil {
		return
	}

	raw, err := util.DecompressData(data)
	if err != nil {
		log.Warnf("解压插件缓存失败，忽略历史数据: %v", err)
		return
	}

	var snapshot map[string]persistedEntry
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&snapshot); err != nil {
		log.Warnf("解码插件缓存失败，忽略历史数据: %v", err)
		return
	}

	now := time.Now()
	restored := 0
	for key, entry := range snapshot {
		ttl := gocache.DefaultExpiration
		if !entry.ExpireAt.IsZero() {
			if !entry.ExpireAt.After(now) {
				continue
			}
			ttl = entry.ExpireAt.Sub(now)
		}
		apiResponseCache.Set(key, cachedResponse{
			Results:   entry.Results,
			Timestamp: entry.Timestamp,
			Complete:  entry.Complete,
		}, ttl)
		restored++
	}

	if restored > 0 {
		log.Infof("从磁盘恢复插件缓存%d条", restored)
	}
}
