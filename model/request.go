package model

// SearchRequest 搜索请求参数
type SearchRequest struct {
	Keyword      string                 `json:"kw" binding:"required"` // 搜索关键词
	Channels     []string               `json:"channels"`              // 搜索的频道列表，留空使用默认频道
	Concurrency  int                    `json:"conc"`                  // 并发数量，0或负数使用默认值
	ForceRefresh bool                   `json:"refresh"`               // 强制刷新，跳过缓存重新搜索
	ResultType   string                 `json:"res"`                   // 结果类型：all、results、merged_by_type(merge)
	SourceType   string                 `json:"src"`                   // 数据来源：all(默认)、tg、plugin
	Plugins      []string               `json:"plugins"`               // 指定插件列表，留空搜索全部已注册插件
	CloudTypes   []string               `json:"cloud_types"`           // 网盘类型白名单，留空不过滤
	Ext          map[string]interface{} `json:"ext"`                   // 扩展参数，透传给插件；plugin_timeout可覆写本次超时(秒)
}
