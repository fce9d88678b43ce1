package jianpan

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"yunsou/model"
	"yunsou/plugin"
	"yunsou/util/json"
)

// 在init函数中注册插件
func init() {
	plugin.RegisterGlobalPlugin(NewJianPanPlugin())
}

const (
	// JianPanAPIURL 简盘搜索API地址
	JianPanAPIURL = "https://api.jianpan.cloud/v1/search"
)

// JianPanPlugin 简盘搜索插件，走JSON POST接口
type JianPanPlugin struct {
	*plugin.BaseAsyncPlugin
}

// NewJianPanPlugin 创建简盘插件
func NewJianPanPlugin() *JianPanPlugin {
	return &JianPanPlugin{
		BaseAsyncPlugin: plugin.NewBaseAsyncPlugin("jianpan", 3),
	}
}

// Search 执行搜索并返回结果
func (p *JianPanPlugin) Search(keyword string, ext map[string]interface{}) ([]model.SearchResult, error) {
	return p.AsyncSearch(keyword, p.doSearch, p.MainCacheKey(), ext)
}

// doSearch 实际的搜索实现
func (p *JianPanPlugin) doSearch(client *http.Client, keyword string, ext map[string]interface{}) ([]model.SearchResult, error) {
	reqBody := map[string]interface{}{
		"keyword": keyword,
		"page":    1,
		"exact":   false,
	}

	// 透传exact参数，精确匹配时接口只回标题完全命中的资源
	if ext != nil {
		if exact, ok := ext["exact"].(bool); ok && exact {
			reqBody["exact"] = true
		}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}

	req, err := http.NewRequest("POST", JianPanAPIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", "https://jianpan.cloud/")
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

	var apiResp JianPanResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("decode response failed: %w", err)
	}

	if apiResp.Code != 0 {
		return nil, fmt.Errorf("API returned error: %s", apiResp.Msg)
	}

	return p.convertResults(apiResp.Data), nil
}

// convertResults 转换为统一的结果格式
func (p *JianPanPlugin) convertResults(items []JianPanItem) []model.SearchResult {
	results := make([]model.SearchResult, 0, len(items))

	for i, item := range items {
		if len(item.Links) == 0 {
			continue
		}

		links := make([]model.Link, 0, len(item.Links))
		for _, link := range item.Links {
			linkType := p.convertLinkType(link.Service)
			if linkType == "" {
				continue
			}
			links = append(links, model.Link{
				URL:      link.URL,
				Type:     linkType,
				Password: link.Pwd,
			})
		}
		if len(links) == 0 {
			continue
		}

		results = append(results, model.SearchResult{
			UniqueID: fmt.Sprintf("jianpan-%d", i),
			Title:    item.Name,
			Content:  item.Summary,
			Links:    links,
		})
	}

	return results
}

// convertLinkType 接口的service字段到统一链接类型
func (p *JianPanPlugin) convertLinkType(service string) string {
	switch strings.ToLower(service) {
	case "baidu":
		return "baidu"
	case "aliyun", "alipan":
		return "aliyun"
	case "quark":
		return "quark"
	case "xunlei":
		return "xunlei"
	case "189cloud", "tianyi":
		return "tianyi"
	case "caiyun":
		return "mobile"
	case "uc":
		return "uc"
	case "115":
		return "115"
	case "123":
		return "123"
	case "pikpak":
		return "pikpak"
	case "ed2k":
		return "ed2k"
	case "magnet":
		return "magnet"
	case "unknown":
		return ""
	default:
		return "others"
	}
}

// JianPanResponse API响应结构
type JianPanResponse struct {
	Code int           `json:"code"`
	Msg  string        `json:"msg"`
	Data []JianPanItem `json:"data"`
}

// JianPanItem 单条搜索结果
type JianPanItem struct {
	Name    string        `json:"name"`
	Summary string        `json:"summary"`
	Links   []JianPanLink `json:"links"`
}

// JianPanLink 资源链接
type JianPanLink struct {
	Service string `json:"service"`
	URL     string `json:"url"`
	Pwd     string `json:"pwd,omitempty"`
}
