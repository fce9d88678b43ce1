package plugin

import (
	"net/http"
	"strings"
	"sync"

	"yunsou/model"
)

// 全局插件注册表，插件包在init中注册自己
var (
	globalRegistry     = make(map[string]AsyncSearchPlugin)
	globalRegistryLock sync.RWMutex
)

// AsyncSearchPlugin 异步搜索插件接口
type AsyncSearchPlugin interface {
	// Name 返回插件名称，注册表和缓存键都以它为准
	Name() string

	// Priority 返回插件优先级
	Priority() int

	// AsyncSearch 异步搜索：优先交出缓存结果，超时部分转入后台刷新
	AsyncSearch(keyword string, searchFunc func(*http.Client, string, map[string]interface{}) ([]model.SearchResult, error), mainCacheKey string, ext map[string]interface{}) ([]model.SearchResult, error)

	// SetMainCacheKey 关联本次搜索的主缓存键，后台结果沿此键回写
	SetMainCacheKey(key string)

	// SetCurrentKeyword 设置当前关键词，用于后台任务的日志关联
	SetCurrentKeyword(keyword string)

	// Search 同步入口，内部委托AsyncSearch
	Search(keyword string, ext map[string]interface{}) ([]model.SearchResult, error)

	// SkipServiceFilter 是否跳过服务层的关键词过滤。
	// 磁力类插件返回的结果标题常与关键词无直接包含关系，需要跳过
	SkipServiceFilter() bool
}

// RegisterGlobalPlugin 注册插件到全局注册表，空插件或空名称忽略
func RegisterGlobalPlugin(p AsyncSearchPlugin) {
	if p == nil || p.Name() == "" {
		return
	}

	globalRegistryLock.Lock()
	defer globalRegistryLock.Unlock()
	globalRegistry[p.Name()] = p
}

// GetRegisteredPlugins 返回全部已注册插件
func GetRegisteredPlugins() []AsyncSearchPlugin {
	globalRegistryLock.RLock()
	defer globalRegistryLock.RUnlock()

	plugins := make([]AsyncSearchPlugin, 0, len(globalRegistry))
	for _, p := range globalRegistry {
		plugins = append(plugins, p)
	}
	return plugins
}

// GetPluginByName 按名称查找已注册插件
func GetPluginByName(name string) (AsyncSearchPlugin, bool) {
	globalRegistryLock.RLock()
	defer globalRegistryLock.RUnlock()

	p, exists := globalRegistry[name]
	return p, exists
}

// PluginManager 持有一次服务实例启用的插件集合
type PluginManager struct {
	plugins []AsyncSearchPlugin
}

// NewPluginManager 创建插件管理器
func NewPluginManager() *PluginManager {
	return &PluginManager{
		plugins: make([]AsyncSearchPlugin, 0),
	}
}

// RegisterPlugin 注册单个插件
func (pm *PluginManager) RegisterPlugin(p AsyncSearchPlugin) {
	pm.plugins = append(pm.plugins, p)
}

// RegisterAllGlobalPlugins 把全局注册表里的插件全部纳入管理
func (pm *PluginManager) RegisterAllGlobalPlugins() {
	for _, p := range GetRegisteredPlugins() {
		pm.RegisterPlugin(p)
	}
}

// GetPlugins 返回托管的插件列表
func (pm *PluginManager) GetPlugins() []AsyncSearchPlugin {
	return pm.plugins
}

// FilterResultsByKeyword 按关键词过滤结果，支持空格分隔的多关键词，
// 标题和内容任一包含全部关键词的结果保留
func FilterResultsByKeyword(results []model.SearchResult, keyword string) []model.SearchResult {
	if keyword == "" {
		return results
	}

	filtered := make([]model.SearchResult, 0, len(results))
	keywords := strings.Fields(strings.ToLower(keyword))

	for _, result := range results {
		lowerTitle := strings.ToLower(result.Title)
		lowerContent := strings.ToLower(result.Content)

		matched := true
		for _, kw := range keywords {
			if !strings.Contains(lowerTitle, kw) && !strings.Contains(lowerContent, kw) {
				matched = false
				break
			}
		}
		if matched {
			filtered = append(filtered, result)
		}
	}

	return filtered
}
