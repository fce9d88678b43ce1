package cache

import (
	"sort"
	"strings"
)

// TGCacheKey 生成频道搜索的缓存键。
// 频道列表排序后参与拼接，保证同一组频道的不同传参顺序命中同一条缓存
func TGCacheKey(keyword string, channels []string) string {
	sorted := make([]string, len(channels))
	copy(sorted, channels)
	sort.Strings(sorted)
	return "tg:" + keyword + ":" + strings.Join(sorted, ",")
}

// PluginCacheKey 生成插件搜索的缓存键。
// 插件名统一小写并排序，空白项剔除；
// 过滤列表为空时键的尾段为空串，代表"全部已注册插件"
func PluginCacheKey(keyword string, plugins []string) string {
	normalized := make([]string, 0, len(plugins))
	for _, name := range plugins {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		normalized = append(normalized, strings.ToLower(name))
	}
	sort.Strings(normalized)
	return "plugin:" + keyword + ":" + strings.Join(normalized, ",")
}
