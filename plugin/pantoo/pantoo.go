package pantoo

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"yunsou/model"
	"yunsou/plugin"
	"yunsou/util"
)

// 在init函数中注册插件
func init() {
	plugin.RegisterGlobalPlugin(NewPanTooPlugin())
}

const (
	// 搜索页URL模板
	searchURLTemplate = "https://www.pantoo.net/search?keyword=%s"
)

// topicIDRegex 从帖子链接中提取topicId
var topicIDRegex = regexp.MustCompile(`topicId=(\d+)`)

// PanTooPlugin 盘兔论坛插件，抓搜索页HTML解析帖子里的网盘链接
type PanTooPlugin struct {
	*plugin.BaseAsyncPlugin
}

// NewPanTooPlugin 创建盘兔插件
func NewPanTooPlugin() *PanTooPlugin {
	return &PanTooPlugin{
		BaseAsyncPlugin: plugin.NewBaseAsyncPlugin("pantoo", 4),
	}
}

// Search 执行搜索并返回结果
func (p *PanTooPlugin) Search(keyword string, ext map[string]interface{}) ([]model.SearchResult, error) {
	return p.AsyncSearch(keyword, p.doSearch, p.MainCacheKey(), ext)
}

// doSearch 抓取搜索页并解析
func (p *PanTooPlugin) doSearch(client *http.Client, keyword string, ext map[string]interface{}) ([]model.SearchResult, error) {
	reqURL := fmt.Sprintf(searchURLTemplate, url.QueryEscape(keyword))

	req, err := http.NewRequest("GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html failed: %w", err)
	}

	return p.parseSearchPage(doc), nil
}

// parseSearchPage 解析搜索结果列表。
// 每个topicItem块是一个帖子，正文摘要里直接带着网盘链接
func (p *PanTooPlugin) parseSearchPage(doc *goquery.Document) []model.SearchResult {
	var results []model.SearchResult

	doc.Find(".topicItem").Each(func(i int, s *goquery.Selection) {
		titleElem := s.Find(".topicSubject a")
		title := strings.TrimSpace(titleElem.Text())
		if title == "" {
			return
		}

		href, _ := titleElem.Attr("href")
		topicID := ""
		if matches := topicIDRegex.FindStringSubmatch(href); len(matches) > 1 {
			topicID = matches[1]
		}

		summary := s.Find(".topicContent").Text()
		links := p.extractLinks(summary)
		if len(links) == 0 {
			return
		}

		var datetime time.Time
		if timeText := strings.TrimSpace(s.Find(".postTime").Text()); timeText != "" {
			if parsed, err := time.Parse("2006-01-02 15:04", timeText); err == nil {
				datetime = parsed
			}
		}

		uniqueID := fmt.Sprintf("pantoo-%s", topicID)
		if topicID == "" {
			uniqueID = fmt.Sprintf("pantoo-p%d", i)
		}

		results = append(results, model.SearchResult{
			UniqueID: uniqueID,
			Title:    title,
			Content:  strings.TrimSpace(summary),
			Datetime: datetime,
			Links:    links,
		})
	})

	return results
}

// extractLinks 从帖子摘要里提取网盘链接并配对提取码
func (p *PanTooPlugin) extractLinks(content string) []model.Link {
	var links []model.Link
	seen := make(map[string]bool)

	for _, match := range util.AllPanLinksPattern.FindAllString(content, -1) {
		// 正文匹配可能带"链接："前缀，去掉后再去重
		match = strings.TrimSpace(match)
		match = strings.TrimPrefix(match, "链接：")
		match = strings.TrimPrefix(match, "链接:")
		match = strings.TrimSpace(match)
		if match == "" || seen[match] {
			continue
		}
		seen[match] = true

		links = append(links, model.Link{
			URL:      match,
			Type:     util.GetLinkType(match),
			Password: util.ExtractPassword(content, match),
		})
	}

	return links
}
