package soupan

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"yunsou/model"
	"yunsou/plugin"
	"yunsou/util"
	"yunsou/util/json"
)

// 在init函数中注册插件
func init() {
	plugin.RegisterGlobalPlugin(NewSouPanPlugin())
}

const (
	// SouPanAPIURL 搜盘聚合API地址
	SouPanAPIURL = "https://api.soupan.info/search"
)

// SouPanPlugin 搜盘插件，走JSON GET接口，结果自带更新时间
type SouPanPlugin struct {
	*plugin.BaseAsyncPlugin
}

// NewSouPanPlugin 创建搜盘插件。
// 接口在服务端已做关键词匹配，跳过服务层的二次过滤
func NewSouPanPlugin() *SouPanPlugin {
	return &SouPanPlugin{
		BaseAsyncPlugin: plugin.NewBaseAsyncPluginWithFilter("soupan", 2, true),
	}
}

// Search 执行搜索并返回结果
func (p *SouPanPlugin) Search(keyword string, ext map[string]interface{}) ([]model.SearchResult, error) {
	return p.AsyncSearch(keyword, p.doSearch, p.MainCacheKey(), ext)
}

// doSearch 实际的搜索实现
func (p *SouPanPlugin) doSearch(client *http.Client, keyword string, ext map[string]interface{}) ([]model.SearchResult, error) {
	reqURL := SouPanAPIURL + "?kw=" + url.QueryEscape(keyword) + "&limit=50"

	req, err := http.NewRequest("GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Referer", "https://soupan.info/")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body failed: %w", err)
	}

	var apiResp SouPanResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("decode response failed: %w", err)
	}

	if apiResp.Status != 200 {
		return nil, fmt.Errorf("API returned error: %s", apiResp.Message)
	}

	return p.convertResults(apiResp.Data.Items), nil
}

// convertResults 转换为统一的结果格式。
// 接口的updated_at是RFC3339，解析失败时保留零值时间
func (p *SouPanPlugin) convertResults(items []SouPanItem) []model.SearchResult {
	results := make([]model.SearchResult, 0, len(items))

	for i, item := range items {
		if item.URL == "" {
			continue
		}

		linkType := util.GetLinkType(item.URL)
		if linkType == "others" && item.Type != "" {
			linkType = item.Type
		}

		var datetime time.Time
		if item.UpdatedAt != "" {
			if parsed, err := time.Parse(time.RFC3339, item.UpdatedAt); err == nil {
				datetime = parsed
			}
		}

		results = append(results, model.SearchResult{
			UniqueID: fmt.Sprintf("soupan-%d", i),
			Title:    item.Title,
			Content:  item.Description,
			Datetime: datetime,
			Links: []model.Link{
				{
					URL:      item.URL,
					Type:     linkType,
					Password: item.Password,
				},
			},
		})
	}

	return results
}

// SouPanResponse API响应结构
type SouPanResponse struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    SouPanData  `json:"data"`
}

// SouPanData 响应数据段
type SouPanData struct {
	Total int          `json:"total"`
	Items []SouPanItem `json:"items"`
}

// SouPanItem 单条搜索结果
type SouPanItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Type        string `json:"type"`
	Password    string `json:"password"`
	UpdatedAt   string `json:"updated_at"`
}
