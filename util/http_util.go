package util

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"

	"yunsou/config"
)

// 全局HTTP客户端，所有频道抓取共用一个连接池
var httpClient *http.Client

// tgLimiter 限制对t.me的请求速率，避免高并发搜索时被封
var tgLimiter *rate.Limiter

// InitHTTPClient 初始化HTTP客户端和抓取限速器
func InitHTTPClient() {
	transport := &http.Transport{
		ForceAttemptHTTP2: true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: false,
		},
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		MaxConnsPerHost:       100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	if config.AppConfig != nil && config.AppConfig.UseProxy {
		proxyURL, err := url.Parse(config.AppConfig.ProxyURL)
		if err == nil {
			if proxyURL.Scheme == "socks5" {
				dialer, err := proxy.FromURL(proxyURL, proxy.Direct)
				if err == nil {
					transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
						return dialer.Dial(network, addr)
					}
				}
			} else {
				transport.Proxy = http.ProxyURL(proxyURL)
			}
		}
	}

	httpClient = &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}

	limit := 10
	if config.AppConfig != nil {
		limit = config.AppConfig.TGRateLimit
	}
	if limit <= 0 {
		tgLimiter = rate.NewLimiter(rate.Inf, 1)
	} else {
		tgLimiter = rate.NewLimiter(rate.Limit(limit), limit)
	}
}

// GetHTTPClient 获取全局HTTP客户端
func GetHTTPClient() *http.Client {
	if httpClient == nil {
		InitHTTPClient()
	}
	return httpClient
}

// FetchHTML 抓取页面HTML，经过限速器排队后发出请求。
// 调用方超时放弃后ctx会被取消，排队中的请求随之退出
func FetchHTML(ctx context.Context, targetURL string) (string, error) {
	client := GetHTTPClient()

	if tgLimiter != nil {
		if err := tgLimiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("等待限速器: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return "", fmt.Errorf("构建请求: %w", err)
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("请求%s: %w", targetURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("请求%s: 状态码%d", targetURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取响应: %w", err)
	}

	return string(body), nil
}

// BuildSearchURL 构建频道搜索页的URL
func BuildSearchURL(channel string, keyword string, nextPageParam string) string {
	baseURL := "https://t.me/s/" + channel
	if keyword != "" {
		baseURL += "?q=" + url.QueryEscape(keyword)
		if nextPageParam != "" {
			baseURL += "&" + nextPageParam
		}
	}
	return baseURL
}
