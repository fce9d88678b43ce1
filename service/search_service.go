package service

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"yunsou/config"
	"yunsou/model"
	"yunsou/plugin"
	"yunsou/util"
	"yunsou/util/cache"
	"yunsou/util/log"
	"yunsou/util/pool"
)

// 频道搜索的并发边界
const (
	minChannelConcurrency = 2
	maxChannelConcurrency = 12
)

// minSearchTimeout 远程搜索任务的超时下限
var minSearchTimeout = 3 * time.Second

// fallbackKeywords 短关键词兜底列表，按序逐个尝试，第一个出结果的生效
var fallbackKeywords = []string{"电影", "电视剧", "4k"}

// channelSearchFunc 单频道搜索函数，测试中可替换
type channelSearchFunc func(ctx context.Context, keyword string, channel string) ([]model.SearchResult, error)

// SearchService 搜索服务。
// 频道和插件两路各持一个结果缓存，实例自有，不做包级共享
type SearchService struct {
	pluginManager *plugin.PluginManager
	tgCache       *cache.ResultCache
	pluginCache   *cache.ResultCache
	channelSearch channelSearchFunc

	// 结果分级的策略挂点，默认实现不做区分
	keywordPriority func(title string) int
	sourceLevel     func(result *model.SearchResult) int
}

// Option 搜索服务的可选配置
type Option func(*SearchService)

// WithChannelSearcher 替换单频道搜索实现
func WithChannelSearcher(fn channelSearchFunc) Option {
	return func(s *SearchService) {
		s.channelSearch = fn
	}
}

// WithKeywordPriority 安装标题关键词优先级策略
func WithKeywordPriority(fn func(title string) int) Option {
	return func(s *SearchService) {
		s.keywordPriority = fn
	}
}

// WithSourceLevel 安装来源分级策略
func WithSourceLevel(fn func(result *model.SearchResult) int) Option {
	return func(s *SearchService) {
		s.sourceLevel = fn
	}
}

// NewSearchService 创建搜索服务实例。
// 配置启用缓存时频道和插件两路分别落到独立的磁盘目录
func NewSearchService(pluginManager *plugin.PluginManager, opts ...Option) *SearchService {
	s := &SearchService{
		pluginManager:   pluginManager,
		channelSearch:   defaultChannelSearch,
		keywordPriority: func(string) int { return 0 },
		sourceLevel:     func(*model.SearchResult) int { return 3 },
	}

	if config.AppConfig != nil && config.AppConfig.CacheEnabled {
		ttl := time.Duration(config.AppConfig.CacheTTLMinutes) * time.Minute
		maxEntries := config.AppConfig.CacheMaxEntries
		diskBudget := config.AppConfig.CacheMaxSizeMB / 2
		if diskBudget < 1 {
			diskBudget = 1
		}
		s.tgCache = cache.NewResultCache(maxEntries, ttl, filepath.Join(config.AppConfig.CachePath, "tg"), diskBudget)
		s.pluginCache = cache.NewResultCache(maxEntries, ttl, filepath.Join(config.AppConfig.CachePath, "plugin"), diskBudget)
	} else {
		s.tgCache = cache.NewResultCache(1000, time.Hour, "", 0)
		s.pluginCache = cache.NewResultCache(1000, time.Hour, "", 0)
	}

	for _, opt := range opts {
		opt(s)
	}

	// 插件后台刷新的结果沿主缓存键并入插件路缓存
	plugin.SetMainCacheUpdater(s.mergeIntoPluginCache)

	return s
}

// Search 执行一次聚合搜索。
// 搜索失败只会让对应来源缺席，永远返回可用的响应而不是错误
func (s *SearchService) Search(
	keyword string,
	channels []string,
	concurrency int,
	forceRefresh bool,
	resultType string,
	sourceType string,
	plugins []string,
	cloudTypes []string,
	ext map[string]interface{},
) model.SearchResponse {
	keyword = strings.TrimSpace(keyword)

	if resultType == "" || resultType == "merge" {
		resultType = "merged_by_type"
	}
	if sourceType == "" {
		sourceType = "all"
	}
	if len(channels) == 0 && config.AppConfig != nil {
		channels = config.AppConfig.DefaultChannels
	}
	if concurrency <= 0 {
		if config.AppConfig != nil {
			concurrency = config.AppConfig.DefaultConcurrency
		}
		if concurrency <= 0 {
			concurrency = len(channels) + 10
		}
	}
	if ext == nil {
		ext = map[string]interface{}{}
	}

	timeout := s.effectiveTimeout(ext)

	// 两路并发执行，各自失败互不牵连
	var tgResults, pluginResults []model.SearchResult
	var wg sync.WaitGroup

	if sourceType == "all" || sourceType == "tg" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tgResults = s.searchTG(keyword, channels, concurrency, forceRefresh, timeout)
		}()
	}
	if sourceType == "all" || sourceType == "plugin" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pluginResults = s.searchPlugins(keyword, plugins, concurrency, forceRefresh, timeout, ext)
		}()
	}
	wg.Wait()

	// 频道结果在前，插件结果在后，重复身份先到先得
	merged := mergeSearchResults(tgResults, pluginResults)

	sortResultsByTime(merged)

	filteredForResults := s.filterForResultList(merged)
	mergedLinks := s.mergeResultsByType(merged, cloudTypes)

	switch resultType {
	case "results":
		return model.SearchResponse{
			Total:   len(filteredForResults),
			Results: filteredForResults,
		}
	case "merged_by_type":
		total := 0
		for _, links := range mergedLinks {
			total += len(links)
		}
		return model.SearchResponse{
			Total:        total,
			MergedByType: mergedLinks,
		}
	default:
		total := len(filteredForResults)
		for _, links := range mergedLinks {
			total += len(links)
		}
		return model.SearchResponse{
			Total:        total,
			Results:      filteredForResults,
			MergedByType: mergedLinks,
		}
	}
}

// searchTG 频道路搜索：缓存命中直接返回，否则并发抓取各频道
func (s *SearchService) searchTG(keyword string, channels []string, concurrency int, forceRefresh bool, timeout time.Duration) []model.SearchResult {
	if len(channels) == 0 {
		return nil
	}

	cacheKey := cache.TGCacheKey(keyword, channels)
	if !forceRefresh {
		if results, ok := s.tgCache.Get(cacheKey); ok {
			return results
		}
	}

	tasks := make([]pool.Task, 0, len(channels))
	for _, channel := range channels {
		ch := channel
		tasks = append(tasks, func() interface{} {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			results, err := s.channelSearch(ctx, keyword, ch)
			if err != nil {
				log.Warnf("频道搜索失败: channel=%s err=%v", ch, err)
				return nil
			}
			return results
		})
	}

	raw := pool.ExecuteBatchWithTimeout(tasks, clampChannelConcurrency(concurrency), timeout)
	results := collectResults(raw)

	if len(results) > 0 {
		s.tgCache.Set(cacheKey, results)
	}
	return results
}

// searchPlugins 插件路搜索。
// 过滤列表选中插件子集，短关键词搜不到时走兜底关键词，
// 兜底结果仍然记在原始关键词的缓存键下
func (s *SearchService) searchPlugins(keyword string, pluginFilter []string, concurrency int, forceRefresh bool, timeout time.Duration, ext map[string]interface{}) []model.SearchResult {
	cacheKey := cache.PluginCacheKey(keyword, pluginFilter)
	if !forceRefresh {
		if results, ok := s.pluginCache.Get(cacheKey); ok {
			return results
		}
	}

	selected := s.selectPlugins(pluginFilter)
	if len(selected) == 0 {
		return nil
	}

	results := s.runPluginSearch(keyword, selected, concurrency, timeout, cacheKey, ext)

	if len(results) == 0 && utf8.RuneCountInString(keyword) <= 1 {
		for _, fallback := range fallbackKeywords {
			log.Infof("关键词过短无结果，尝试兜底关键词: %q -> %q", keyword, fallback)
			results = s.runPluginSearch(fallback, selected, concurrency, timeout, cacheKey, ext)
			if len(results) > 0 {
				break
			}
		}
	}

	if len(results) > 0 {
		s.pluginCache.Set(cacheKey, results)
	}
	return results
}

// runPluginSearch 并发调用一批插件并汇总结果
func (s *SearchService) runPluginSearch(keyword string, selected []plugin.AsyncSearchPlugin, concurrency int, timeout time.Duration, cacheKey string, ext map[string]interface{}) []model.SearchResult {
	tasks := make([]pool.Task, 0, len(selected))
	for _, p := range selected {
		pl := p
		tasks = append(tasks, func() interface{} {
			pl.SetMainCacheKey(cacheKey)
			pl.SetCurrentKeyword(keyword)

			results, err := pl.Search(keyword, ext)
			if err != nil {
				log.Warnf("插件搜索失败: plugin=%s err=%v", pl.Name(), err)
				return nil
			}
			if !pl.SkipServiceFilter() {
				results = plugin.FilterResultsByKeyword(results, keyword)
			}
			return results
		})
	}

	raw := pool.ExecuteBatchWithTimeout(tasks, concurrency, timeout)
	return collectResults(raw)
}

// selectPlugins 按过滤列表挑选插件，列表为空或全空白时用全部插件
func (s *SearchService) selectPlugins(filter []string) []plugin.AsyncSearchPlugin {
	if s.pluginManager == nil {
		return nil
	}
	all := s.pluginManager.GetPlugins()

	wanted := make(map[string]bool)
	for _, name := range filter {
		name = strings.TrimSpace(name)
		if name != "" {
			wanted[strings.ToLower(name)] = true
		}
	}
	if len(wanted) == 0 {
		return all
	}

	selected := make([]plugin.AsyncSearchPlugin, 0, len(wanted))
	for _, p := range all {
		if wanted[strings.ToLower(p.Name())] {
			selected = append(selected, p)
		}
	}
	return selected
}

// mergeIntoPluginCache 把插件后台刷新的结果并入插件路缓存，新数据优先
func (s *SearchService) mergeIntoPluginCache(key string, fresh []model.SearchResult) {
	if len(fresh) == 0 {
		return
	}

	existing, _ := s.pluginCache.Get(key)

	merged := make([]model.SearchResult, 0, len(existing)+len(fresh))
	seen := make(map[string]bool, len(existing)+len(fresh))
	for _, result := range fresh {
		if k := result.IdentityKey(); !seen[k] {
			seen[k] = true
			merged = append(merged, result)
		}
	}
	for _, result := range existing {
		if k := result.IdentityKey(); !seen[k] {
			seen[k] = true
			merged = append(merged, result)
		}
	}

	s.pluginCache.Set(key, merged)
}

// effectiveTimeout 解析本次搜索的任务超时。
// ext里的plugin_timeout(秒)可覆写配置，最终不低于超时下限
func (s *SearchService) effectiveTimeout(ext map[string]interface{}) time.Duration {
	timeout := 30 * time.Second
	if config.AppConfig != nil {
		timeout = config.AppConfig.PluginTimeout
	}

	if raw, ok := ext["plugin_timeout"]; ok {
		switch v := raw.(type) {
		case float64:
			if v > 0 {
				timeout = time.Duration(v * float64(time.Second))
			}
		case int:
			if v > 0 {
				timeout = time.Duration(v) * time.Second
			}
		case json.Number:
			if f, err := v.Float64(); err == nil && f > 0 {
				timeout = time.Duration(f * float64(time.Second))
			}
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
				timeout = time.Duration(f * float64(time.Second))
			}
		}
	}

	if timeout < minSearchTimeout {
		timeout = minSearchTimeout
	}
	return timeout
}

// CacheStats 返回两路缓存的内存层统计
func (s *SearchService) CacheStats() (tg cache.Stats, plugin cache.Stats) {
	return s.tgCache.Stats(), s.pluginCache.Stats()
}

// GetPluginManager 获取插件管理器
func (s *SearchService) GetPluginManager() *plugin.PluginManager {
	return s.pluginManager
}

// defaultChannelSearch 抓取单个频道的搜索页并解析，结果截断到配置上限
func defaultChannelSearch(ctx context.Context, keyword string, channel string) ([]model.SearchResult, error) {
	html, err := util.FetchHTML(ctx, util.BuildSearchURL(channel, keyword, ""))
	if err != nil {
		return nil, fmt.Errorf("抓取频道%s: %w", channel, err)
	}

	results, _, err := util.ParseSearchResults(html, channel)
	if err != nil {
		return nil, fmt.Errorf("解析频道%s: %w", channel, err)
	}

	limit := 30
	if config.AppConfig != nil && config.AppConfig.ChannelResultLimit > 0 {
		limit = config.AppConfig.ChannelResultLimit
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// clampChannelConcurrency 频道抓取并发收拢到[2,12]
func clampChannelConcurrency(concurrency int) int {
	if concurrency < minChannelConcurrency {
		return minChannelConcurrency
	}
	if concurrency > maxChannelConcurrency {
		return maxChannelConcurrency
	}
	return concurrency
}

// collectResults 汇总工作池的产出，nil和非结果项跳过
func collectResults(raw []interface{}) []model.SearchResult {
	results := make([]model.SearchResult, 0, len(raw)*20)
	for _, item := range raw {
		if item == nil {
			continue
		}
		if batch, ok := item.([]model.SearchResult); ok {
			results = append(results, batch...)
		}
	}
	return results
}

// mergeSearchResults 合并两路结果并按身份键去重。
// 频道结果在前，先出现的条目保留，后续重复丢弃
func mergeSearchResults(tgResults, pluginResults []model.SearchResult) []model.SearchResult {
	merged := make([]model.SearchResult, 0, len(tgResults)+len(pluginResults))
	seen := make(map[string]bool, len(tgResults)+len(pluginResults))

	for _, result := range tgResults {
		if key := result.IdentityKey(); !seen[key] {
			seen[key] = true
			merged = append(merged, result)
		}
	}
	for _, result := range pluginResults {
		if key := result.IdentityKey(); !seen[key] {
			seen[key] = true
			merged = append(merged, result)
		}
	}

	return merged
}

// sortResultsByTime 按时间降序排序，零值时间沉底，同时间按标题保证稳定输出
func sortResultsByTime(results []model.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		iZero := results[i].Datetime.IsZero()
		jZero := results[j].Datetime.IsZero()

		if iZero != jZero {
			return !iZero
		}
		if iZero && jZero {
			return results[i].Title < results[j].Title
		}
		if !results[i].Datetime.Equal(results[j].Datetime) {
			return results[i].Datetime.After(results[j].Datetime)
		}
		return results[i].Title < results[j].Title
	})
}

// filterForResultList 结果列表的保留条件：
// 有时间、有链接、标题命中优先关键词、或来源层级不低于可信档
func (s *SearchService) filterForResultList(results []model.SearchResult) []model.SearchResult {
	filtered := make([]model.SearchResult, 0, len(results))
	for i := range results {
		result := results[i]
		if !result.Datetime.IsZero() || len(result.Links) > 0 ||
			s.keywordPriority(result.Title) > 0 || s.sourceLevel(&result) <= 2 {
			filtered = append(filtered, result)
		}
	}
	return filtered
}

// mergeResultsByType 把结果里的链接按网盘类型分组。
// 结果已按时间降序，组内顺序即新到旧；同组内重复URL首现保留；
// cloudTypes非空时做白名单过滤
func (s *SearchService) mergeResultsByType(results []model.SearchResult, cloudTypes []string) model.MergedLinks {
	allowed := make(map[string]bool)
	for _, t := range cloudTypes {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			allowed[t] = true
		}
	}

	mergedLinks := make(model.MergedLinks, 10)
	seen := make(map[string]bool)

	for _, result := range results {
		for _, link := range result.Links {
			linkType := strings.ToLower(link.Type)
			if linkType == "" {
				linkType = "others"
			}
			if len(allowed) > 0 && !allowed[linkType] {
				continue
			}

			dedupKey := linkType + "|" + link.URL
			if seen[dedupKey] {
				continue
			}
			seen[dedupKey] = true

			mergedLinks[linkType] = append(mergedLinks[linkType], model.MergedLink{
				URL:      link.URL,
				Password: link.Password,
				Note:     result.Title,
				Datetime: result.Datetime,
				Source:   resultSource(&result),
				Images:   result.Images,
			})
		}
	}

	return mergedLinks
}

// resultSource 标注链接来源，频道结果用频道名，插件结果取唯一ID的插件前缀
func resultSource(result *model.SearchResult) string {
	if result.Channel != "" {
		return "tg:" + result.Channel
	}
	if idx := strings.Index(result.UniqueID, "-"); idx > 0 {
		return "plugin:" + result.UniqueID[:idx]
	}
	return ""
}
