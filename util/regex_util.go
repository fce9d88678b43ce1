package util

import (
	"regexp"
	"strings"
)

// AllPanLinksPattern 匹配消息文本中出现的全部网盘链接，
// 覆盖主流网盘域名以及magnet、ed2k两类协议链接
var AllPanLinksPattern = regexp.MustCompile(`(?i)(?:链接[:：]\s*)?(?:(?:magnet:\?xt=urn:btih:[a-zA-Z0-9]+)|(?:ed2k://\|file\|[^|]+\|\d+\|[A-Fa-f0-9]+\|/?)|(?:https?://(?:(?:[\w.-]+\.)?(?:pan\.(?:baidu|quark)\.cn|(?:www\.)?(?:alipan|aliyundrive)\.com|drive\.uc\.cn|cloud\.189\.cn|caiyun\.139\.com|(?:www\.)?123(?:684|685|912|pan|592)\.(?:com|cn)|115\.com|115cdn\.com|anxia\.com|pan\.xunlei\.com|mypikpak\.com))(?:/[^\s'"<>()]*)?))`)

// PasswordPattern 从正文中匹配提取码
var PasswordPattern = regexp.MustCompile(`(?i)(?:(?:提取|访问|提取密|密)码|pwd)[：:]\s*([a-zA-Z0-9]{4,})`)

// UrlPasswordPattern 从链接参数中匹配提取码
var UrlPasswordPattern = regexp.MustCompile(`(?i)[?&]pwd=([a-zA-Z0-9]{4,})`)

// panDomainTypes 域名片段到链接类型的映射表，GetLinkType按序匹配
var panDomainTypes = []struct {
	fragment string
	linkType string
}{
	{"pan.baidu.com", "baidu"},
	{"pan.quark.cn", "quark"},
	{"alipan.com", "aliyun"},
	{"aliyundrive.com", "aliyun"},
	{"cloud.189.cn", "tianyi"},
	{"drive.uc.cn", "uc"},
	{"caiyun.139.com", "mobile"},
	{"115.com", "115"},
	{"115cdn.com", "115"},
	{"anxia.com", "115"},
	{"mypikpak.com", "pikpak"},
	{"pan.xunlei.com", "xunlei"},
	{"123684.com", "123"},
	{"123685.com", "123"},
	{"123912.com", "123"},
	{"123pan.com", "123"},
	{"123pan.cn", "123"},
	{"123592.com", "123"},
}

// GetLinkType 根据链接判断网盘类型，无法识别时返回others
func GetLinkType(url string) string {
	url = strings.ToLower(url)

	// 消息里抓出来的链接可能带"链接："前缀
	if idx := strings.Index(url, "链接"); idx >= 0 {
		url = url[idx+len("链接"):]
		url = strings.TrimPrefix(url, "：")
		url = strings.TrimPrefix(url, ":")
		url = strings.TrimSpace(url)
	}

	if strings.Contains(url, "ed2k:") {
		return "ed2k"
	}
	if strings.HasPrefix(url, "magnet:") {
		return "magnet"
	}

	for _, entry := range panDomainTypes {
		if strings.Contains(url, entry.fragment) {
			return entry.linkType
		}
	}

	return "others"
}

// ExtractPassword 提取链接的访问密码，优先取URL参数里的pwd，
// 找不到再从正文中匹配提取码
func ExtractPassword(content, url string) string {
	if matches := UrlPasswordPattern.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1]
	}
	if matches := PasswordPattern.FindStringSubmatch(content); len(matches) > 1 {
		return matches[1]
	}
	return ""
}
