package model

import "time"

// Link 网盘链接
type Link struct {
	Type     string `json:"type" sonic:"type"`
	URL      string `json:"url" sonic:"url"`
	Password string `json:"password" sonic:"password"`
}

// SearchResult 单条搜索结果，创建后不再修改
type SearchResult struct {
	MessageID string    `json:"message_id" sonic:"message_id"`
	UniqueID  string    `json:"unique_id" sonic:"unique_id"` // 全局唯一ID，频道结果为"频道名_消息ID"
	Channel   string    `json:"channel" sonic:"channel"`
	Datetime  time.Time `json:"datetime" sonic:"datetime"`
	Title     string    `json:"title" sonic:"title"`
	Content   string    `json:"content" sonic:"content"`
	Links     []Link    `json:"links" sonic:"links"`
	Tags      []string  `json:"tags,omitempty" sonic:"tags,omitempty"`
	Images    []string  `json:"images,omitempty" sonic:"images,omitempty"`
}

// IdentityKey 返回去重用的身份键。
// 优先用UniqueID，其次MessageID，都没有时退化为标题加频道
func (r *SearchResult) IdentityKey() string {
	if r.UniqueID != "" {
		return r.UniqueID
	}
	if r.MessageID != "" {
		return r.MessageID
	}
	return r.Title + "|" + r.Channel
}

// MergedLink 按网盘类型归并后的链接
type MergedLink struct {
	URL      string    `json:"url" sonic:"url"`
	Password string    `json:"password" sonic:"password"`
	Note     string    `json:"note" sonic:"note"` // 归属结果的标题
	Datetime time.Time `json:"datetime" sonic:"datetime"`
	Source   string    `json:"source,omitempty" sonic:"source,omitempty"` // 来源标识：tg:频道名 或 plugin:插件名
	Images   []string  `json:"images,omitempty" sonic:"images,omitempty"`
}

// MergedLinks 网盘类型(小写)到链接列表的映射
type MergedLinks map[string][]MergedLink

// SearchResponse 搜索响应
type SearchResponse struct {
	Total        int            `json:"total" sonic:"total"`
	Results      []SearchResult `json:"results,omitempty" sonic:"results,omitempty"`
	MergedByType MergedLinks    `json:"merged_by_type,omitempty" sonic:"merged_by_type,omitempty"`
}

// Response API统一响应壳
type Response struct {
	Code    int         `json:"code" sonic:"code"`
	Message string      `json:"message" sonic:"message"`
	Data    interface{} `json:"data,omitempty" sonic:"data,omitempty"`
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) Response {
	return Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) Response {
	return Response{
		Code:    code,
		Message: message,
	}
}
