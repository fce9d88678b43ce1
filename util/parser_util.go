package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"yunsou/model"
)

// ParseSearchResults 解析t.me/s频道搜索页，返回页面内全部带网盘链接的消息。
// 不带链接的消息和无法定位发布时间的消息直接跳过
func ParseSearchResults(html string, channel string) ([]model.SearchResult, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, "", fmt.Errorf("解析频道页面: %w", err)
	}

	var results []model.SearchResult
	var nextPageParam string

	doc.Find(".tgme_widget_message_wrap").Each(func(i int, s *goquery.Selection) {
		messageDiv := s.Find(".tgme_widget_message")

		// data-post形如"channel/12345"，后半段是消息ID
		dataPost, exists := messageDiv.Attr("data-post")
		if !exists {
			return
		}
		parts := strings.Split(dataPost, "/")
		if len(parts) != 2 {
			return
		}
		messageID := parts[1]
		uniqueID := channel + "_" + messageID

		timeStr, exists := messageDiv.Find(".tgme_widget_message_date time").Attr("datetime")
		if !exists {
			return
		}
		datetime, err := time.Parse(time.RFC3339, timeStr)
		if err != nil {
			return
		}

		messageTextElem := messageDiv.Find(".tgme_widget_message_text")
		messageHTML, _ := messageTextElem.Html()
		messageText := messageTextElem.Text()

		title := extractTitle(messageHTML, messageText)
		links := extractMessageLinks(messageTextElem, messageText)

		// 频道里的话题标签以?q=%23开头的链接呈现
		var tags []string
		messageTextElem.Find("a[href^='?q=%23']").Each(func(i int, a *goquery.Selection) {
			tag := a.Text()
			if strings.HasPrefix(tag, "#") {
				tags = append(tags, tag[1:])
			}
		})

		if len(links) > 0 {
			results = append(results, model.SearchResult{
				MessageID: messageID,
				UniqueID:  uniqueID,
				Channel:   channel,
				Datetime:  datetime,
				Title:     title,
				Content:   messageText,
				Links:     links,
				Tags:      tags,
			})
		}
	})

	return results, nextPageParam, nil
}

// extractMessageLinks 汇总一条消息里的网盘链接。
// 同一链接经常同时出现在a标签和正文里，按最终URL去重
func extractMessageLinks(messageTextElem *goquery.Selection, messageText string) []model.Link {
	var links []model.Link
	seen := make(map[string]bool)

	add := func(raw string) {
		raw = stripLinkPrefix(raw)
		if raw == "" {
			return
		}
		linkType := GetLinkType(raw)
		password := ExtractPassword(messageText, raw)
		if linkType == "baidu" {
			raw = normalizeBaiduPanURL(raw, password)
		}
		if seen[raw] {
			return
		}
		seen[raw] = true
		links = append(links, model.Link{
			Type:     linkType,
			URL:      raw,
			Password: password,
		})
	}

	messageTextElem.Find("a").Each(func(i int, a *goquery.Selection) {
		href, exists := a.Attr("href")
		if !exists {
			return
		}
		if AllPanLinksPattern.MatchString(strings.ToLower(href)) {
			add(href)
		}
	})

	for _, match := range AllPanLinksPattern.FindAllString(messageText, -1) {
		add(match)
	}

	return links
}

// stripLinkPrefix 去掉正文匹配可能带上的"链接："前缀
func stripLinkPrefix(raw string) string {
	raw = strings.TrimSpace(raw)
	if idx := strings.Index(raw, "链接"); idx == 0 {
		raw = raw[len("链接"):]
		raw = strings.TrimPrefix(raw, "：")
		raw = strings.TrimPrefix(raw, ":")
		raw = strings.TrimSpace(raw)
	}
	return raw
}

// normalizeBaiduPanURL 给百度网盘链接补上pwd参数，方便直接打开
func normalizeBaiduPanURL(url string, password string) string {
	if strings.Contains(url, "?pwd=") {
		return url
	}
	if password != "" {
		if len(password) > 4 {
			password = password[:4]
		}
		return url + "?pwd=" + password
	}
	return url
}

// extractTitle 从消息内容中提取标题。
// 优先解析首个<br>之前的HTML片段，失败时回退到纯文本首行
func extractTitle(htmlContent string, textContent string) string {
	if brIndex := strings.Index(htmlContent, "<br"); brIndex > 0 {
		firstLineHTML := htmlContent[:brIndex]
		doc, err := goquery.NewDocumentFromReader(strings.NewReader("<div>" + firstLineHTML + "</div>"))
		if err == nil {
			return cleanTitleLine(doc.Text())
		}
	}

	lines := strings.Split(textContent, "\n")
	if len(lines) == 0 {
		return ""
	}
	return cleanTitleLine(lines[0])
}

// cleanTitleLine 规整标题行，资源频道习惯用"名称：xxx"开头
func cleanTitleLine(line string) string {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "名称：") {
		return strings.TrimSpace(line[len("名称："):])
	}
	return line
}
