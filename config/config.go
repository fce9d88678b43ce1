package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"time"
)

// Config 应用配置
type Config struct {
	DefaultChannels    []string
	DefaultConcurrency int
	Port               string
	ProxyURL           string
	UseProxy           bool
	LogLevel           string
	// 结果缓存配置
	CacheEnabled    bool
	CachePath       string
	CacheMaxSizeMB  int
	CacheMaxEntries int
	CacheTTLMinutes int
	// 响应压缩配置
	EnableCompression bool
	MinSizeToCompress int
	// GC配置
	GCPercent      int
	OptimizeMemory bool
	// 插件配置
	PluginTimeoutSeconds int
	PluginTimeout        time.Duration
	// 异步插件配置
	AsyncPluginEnabled        bool
	AsyncResponseTimeout      int
	AsyncResponseTimeoutDur   time.Duration
	AsyncMaxBackgroundWorkers int
	AsyncMaxBackgroundTasks   int
	AsyncCacheTTLHours        int
	// 频道抓取配置
	ChannelResultLimit int
	TGRateLimit        int
	// 认证配置
	AuthEnabled         bool
	AuthSecret          string
	AuthSecretGenerated bool
	DataPath            string
	// 搜索历史配置
	HistoryMaxEntries int
	// HTTP服务器配置
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// AppConfig 全局配置实例
var AppConfig *Config

// Init 从环境变量构建全局配置
func Init() {
	proxyURL := getProxyURL()
	pluginTimeoutSeconds := getPluginTimeout()
	asyncResponseTimeoutSeconds := getAsyncResponseTimeout()
	authSecret, generated := getAuthSecret()

	AppConfig = &Config{
		DefaultChannels:    getDefaultChannels(),
		DefaultConcurrency: getDefaultConcurrency(),
		Port:               getPort(),
		ProxyURL:           proxyURL,
		UseProxy:           proxyURL != "",
		LogLevel:           getLogLevel(),

		CacheEnabled:    getCacheEnabled(),
		CachePath:       getCachePath(),
		CacheMaxSizeMB:  getCacheMaxSize(),
		CacheMaxEntries: getCacheMaxEntries(),
		CacheTTLMinutes: getCacheTTL(),

		EnableCompression: getEnableCompression(),
		MinSizeToCompress: getMinSizeToCompress(),

		GCPercent:      getGCPercent(),
		OptimizeMemory: getOptimizeMemory(),

		PluginTimeoutSeconds: pluginTimeoutSeconds,
		PluginTimeout:        time.Duration(pluginTimeoutSeconds) * time.Second,

		AsyncPluginEnabled:        getAsyncPluginEnabled(),
		AsyncResponseTimeout:      asyncResponseTimeoutSeconds,
		AsyncResponseTimeoutDur:   time.Duration(asyncResponseTimeoutSeconds) * time.Second,
		AsyncMaxBackgroundWorkers: getAsyncMaxBackgroundWorkers(),
		AsyncMaxBackgroundTasks:   getAsyncMaxBackgroundTasks(),
		AsyncCacheTTLHours:        getAsyncCacheTTLHours(),

		ChannelResultLimit: getChannelResultLimit(),
		TGRateLimit:        getTGRateLimit(),

		AuthEnabled:         getAuthEnabled(),
		AuthSecret:          authSecret,
		AuthSecretGenerated: generated,
		DataPath:            getDataPath(),

		HistoryMaxEntries: getHistoryMaxEntries(),

		HTTPReadTimeout:  getHTTPReadTimeout(),
		HTTPWriteTimeout: getHTTPWriteTimeout(),
		HTTPIdleTimeout:  getHTTPIdleTimeout(),
	}

	applyGCSettings()
}

// 默认频道列表
func getDefaultChannels() []string {
	channelsEnv := os.Getenv("CHANNELS")
	if channelsEnv == "" {
		return []string{"tgsearchers2"}
	}

	var channels []string
	for _, channel := range strings.Split(channelsEnv, ",") {
		channel = strings.TrimSpace(channel)
		if channel != "" {
			channels = append(channels, channel)
		}
	}
	if len(channels) == 0 {
		return []string{"tgsearchers2"}
	}
	return channels
}

// 默认并发数，未显式配置时按 频道数+插件数+10 估算
func getDefaultConcurrency() int {
	concurrencyEnv := os.Getenv("CONCURRENCY")
	if concurrencyEnv != "" {
		concurrency, err := strconv.Atoi(concurrencyEnv)
		if err == nil && concurrency > 0 {
			return concurrency
		}
	}

	channelCount := len(getDefaultChannels())

	pluginCount := 0
	if pluginCountEnv := os.Getenv("PLUGIN_COUNT"); pluginCountEnv != "" {
		count, err := strconv.Atoi(pluginCountEnv)
		if err == nil && count > 0 {
			pluginCount = count
		}
	}
	if pluginCount == 0 {
		pluginCount = 3
	}

	concurrency := channelCount + pluginCount + 10
	if concurrency < 1 {
		concurrency = 1
	}
	return concurrency
}

// UpdateDefaultConcurrency 在真实插件数已知后修正默认并发数。
// 通过环境变量显式配置过并发数时不做调整
func UpdateDefaultConcurrency(pluginCount int) {
	if AppConfig == nil {
		return
	}
	if os.Getenv("CONCURRENCY") != "" {
		return
	}

	concurrency := len(AppConfig.DefaultChannels) + pluginCount + 10
	if concurrency < 1 {
		concurrency = 1
	}
	AppConfig.DefaultConcurrency = concurrency
}

func getPort() string {
	port := os.Getenv("PORT")
	if port == "" {
		return "8888"
	}
	return port
}

func getProxyURL() string {
	return os.Getenv("PROXY")
}

func getLogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

func getCacheEnabled() bool {
	enabled := os.Getenv("CACHE_ENABLED")
	if enabled == "" {
		return true
	}
	return enabled != "false" && enabled != "0"
}

func getCachePath() string {
	path := os.Getenv("CACHE_PATH")
	if path == "" {
		defaultPath, err := filepath.Abs("./cache")
		if err != nil {
			return "./cache"
		}
		return defaultPath
	}
	return path
}

// 磁盘缓存大小上限(MB)
func getCacheMaxSize() int {
	sizeEnv := os.Getenv("CACHE_MAX_SIZE")
	if sizeEnv == "" {
		return 100
	}
	size, err := strconv.Atoi(sizeEnv)
	if err != nil || size <= 0 {
		return 100
	}
	return size
}

// 内存缓存条目数上限
func getCacheMaxEntries() int {
	entriesEnv := os.Getenv("CACHE_MAX_ENTRIES")
	if entriesEnv == "" {
		return 1000
	}
	entries, err := strconv.Atoi(entriesEnv)
	if err != nil || entries <= 0 {
		return 1000
	}
	return entries
}

// 缓存TTL(分钟)
func getCacheTTL() int {
	ttlEnv := os.Getenv("CACHE_TTL")
	if ttlEnv == "" {
		return 60
	}
	ttl, err := strconv.Atoi(ttlEnv)
	if err != nil || ttl <= 0 {
		return 60
	}
	return ttl
}

// 是否启用响应压缩，默认关闭，一般交给前置的Nginx处理
func getEnableCompression() bool {
	enabled := os.Getenv("ENABLE_COMPRESSION")
	if enabled == "" {
		return false
	}
	return enabled == "true" || enabled == "1"
}

func getMinSizeToCompress() int {
	sizeEnv := os.Getenv("MIN_SIZE_TO_COMPRESS")
	if sizeEnv == "" {
		return 1024
	}
	size, err := strconv.Atoi(sizeEnv)
	if err != nil || size <= 0 {
		return 1024
	}
	return size
}

func getGCPercent() int {
	percentEnv := os.Getenv("GC_PERCENT")
	if percentEnv == "" {
		return 100
	}
	percent, err := strconv.Atoi(percentEnv)
	if err != nil || percent <= 0 {
		return 100
	}
	return percent
}

func getOptimizeMemory() bool {
	enabled := os.Getenv("OPTIMIZE_MEMORY")
	if enabled == "" {
		return true
	}
	return enabled != "false" && enabled != "0"
}

// 插件超时(秒)
func getPluginTimeout() int {
	timeoutEnv := os.Getenv("PLUGIN_TIMEOUT")
	if timeoutEnv == "" {
		return 30
	}
	timeout, err := strconv.Atoi(timeoutEnv)
	if err != nil || timeout <= 0 {
		return 30
	}
	return timeout
}

func getAsyncPluginEnabled() bool {
	enabled := os.Getenv("ASYNC_PLUGIN_ENABLED")
	if enabled == "" {
		return true
	}
	return enabled != "false" && enabled != "0"
}

// 异步插件首次响应超时(秒)
func getAsyncResponseTimeout() int {
	timeoutEnv := os.Getenv("ASYNC_RESPONSE_TIMEOUT")
	if timeoutEnv == "" {
		return 4
	}
	timeout, err := strconv.Atoi(timeoutEnv)
	if err != nil || timeout <= 0 {
		return 4
	}
	return timeout
}

func getAsyncMaxBackgroundWorkers() int {
	if sizeEnv := os.Getenv("ASYNC_MAX_BACKGROUND_WORKERS"); sizeEnv != "" {
		size, err := strconv.Atoi(sizeEnv)
		if err == nil && size > 0 {
			return size
		}
	}

	workers := runtime.NumCPU() * 5
	if workers < 20 {
		workers = 20
	}
	return workers
}

func getAsyncMaxBackgroundTasks() int {
	if sizeEnv := os.Getenv("ASYNC_MAX_BACKGROUND_TASKS"); sizeEnv != "" {
		size, err := strconv.Atoi(sizeEnv)
		if err == nil && size > 0 {
			return size
		}
	}

	tasks := getAsyncMaxBackgroundWorkers() * 5
	if tasks < 100 {
		tasks = 100
	}
	return tasks
}

func getAsyncCacheTTLHours() int {
	ttlEnv := os.Getenv("ASYNC_CACHE_TTL_HOURS")
	if ttlEnv == "" {
		return 1
	}
	ttl, err := strconv.Atoi(ttlEnv)
	if err != nil || ttl <= 0 {
		return 1
	}
	return ttl
}

// 单频道抓取结果上限
func getChannelResultLimit() int {
	limitEnv := os.Getenv("CHANNEL_RESULT_LIMIT")
	if limitEnv == "" {
		return 30
	}
	limit, err := strconv.Atoi(limitEnv)
	if err != nil || limit <= 0 {
		return 30
	}
	return limit
}

// t.me抓取限速(每秒请求数)，0或负数表示不限速
func getTGRateLimit() int {
	limitEnv := os.Getenv("TG_RATE_LIMIT")
	if limitEnv == "" {
		return 10
	}
	limit, err := strconv.Atoi(limitEnv)
	if err != nil {
		return 10
	}
	return limit
}

func getAuthEnabled() bool {
	enabled := os.Getenv("AUTH_ENABLED")
	if enabled == "" {
		return true
	}
	return enabled != "false" && enabled != "0"
}

// JWT签名密钥。未配置时生成随机密钥，重启后旧令牌全部失效
func getAuthSecret() (secret string, generated bool) {
	secret = os.Getenv("AUTH_SECRET")
	if secret != "" {
		return secret, false
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "yunsou-dev-secret", true
	}
	return hex.EncodeToString(buf), true
}

// 用户数据落盘目录
func getDataPath() string {
	path := os.Getenv("DATA_PATH")
	if path == "" {
		defaultPath, err := filepath.Abs("./data")
		if err != nil {
			return "./data"
		}
		return defaultPath
	}
	return path
}

// 每用户搜索历史条数上限
func getHistoryMaxEntries() int {
	limitEnv := os.Getenv("HISTORY_MAX_ENTRIES")
	if limitEnv == "" {
		return 100
	}
	limit, err := strconv.Atoi(limitEnv)
	if err != nil || limit <= 0 {
		return 100
	}
	return limit
}

func getHTTPReadTimeout() time.Duration {
	if timeoutEnv := os.Getenv("HTTP_READ_TIMEOUT"); timeoutEnv != "" {
		timeout, err := strconv.Atoi(timeoutEnv)
		if err == nil && timeout > 0 {
			return time.Duration(timeout) * time.Second
		}
	}

	timeout := 30 * time.Second
	if getAsyncPluginEnabled() {
		// 读超时至少给异步首次响应留3倍余量
		extended := time.Duration(getAsyncResponseTimeout()*3) * time.Second
		if extended > timeout {
			timeout = extended
		}
	}
	return timeout
}

func getHTTPWriteTimeout() time.Duration {
	if timeoutEnv := os.Getenv("HTTP_WRITE_TIMEOUT"); timeoutEnv != "" {
		timeout, err := strconv.Atoi(timeoutEnv)
		if err == nil && timeout > 0 {
			return time.Duration(timeout) * time.Second
		}
	}

	timeout := 60 * time.Second
	// 写超时盖过1.5倍插件超时，避免慢插件拖断响应
	extended := time.Duration(getPluginTimeout()*3/2) * time.Second
	if extended > timeout {
		timeout = extended
	}
	return timeout
}

func getHTTPIdleTimeout() time.Duration {
	if timeoutEnv := os.Getenv("HTTP_IDLE_TIMEOUT"); timeoutEnv != "" {
		timeout, err := strconv.Atoi(timeoutEnv)
		if err == nil && timeout > 0 {
			return time.Duration(timeout) * time.Second
		}
	}
	return 120 * time.Second
}

func applyGCSettings() {
	debug.SetGCPercent(AppConfig.GCPercent)
	if AppConfig.OptimizeMemory {
		debug.FreeOSMemory()
	}
}
