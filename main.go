package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"yunsou/api"
	"yunsou/config"
	"yunsou/plugin"
	// 以下是插件的空导入，用于触发各插件的init函数，实现自动注册
	// 添加新插件时，只需在此处添加对应的导入语句即可
	_ "yunsou/plugin/jianpan"
	_ "yunsou/plugin/pantoo"
	_ "yunsou/plugin/soupan"
	"yunsou/service"
	"yunsou/util"
	"yunsou/util/log"
)

func main() {
	initApp()
	startServer()
}

// initApp 初始化应用程序
func initApp() {
	config.Init()
	log.Init(config.AppConfig.LogLevel)
	util.InitHTTPClient()
	plugin.InitAsyncPluginSystem()
}

// startServer 启动Web服务器
func startServer() {
	pluginManager := plugin.NewPluginManager()

	// 注册所有全局插件（通过init函数自动注册到全局注册表）
	pluginManager.RegisterAllGlobalPlugins()

	// 插件数已知，修正默认并发数
	config.UpdateDefaultConcurrency(len(pluginManager.GetPlugins()))

	searchService := service.NewSearchService(pluginManager)

	router := api.SetupRouter(searchService)

	port := config.AppConfig.Port

	printServiceInfo(port, pluginManager)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  config.AppConfig.HTTPReadTimeout,
		WriteTimeout: config.AppConfig.HTTPWriteTimeout,
		IdleTimeout:  config.AppConfig.HTTPIdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("启动服务器失败: %v", err)
			os.Exit(1)
		}
	}()

	// 等待退出信号，收到后先落盘插件缓存再优雅关停
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infof("收到退出信号，开始关闭服务")

	if err := plugin.SavePluginCache(); err != nil {
		log.Warnf("保存插件缓存失败: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("关闭服务器失败: %v", err)
	}

	log.Infof("服务已退出")
}

// printServiceInfo 打印服务信息
func printServiceInfo(port string, pluginManager *plugin.PluginManager) {
	fmt.Printf("服务器启动在 http://localhost:%s\n", port)

	if config.AppConfig.UseProxy {
		fmt.Printf("使用SOCKS5代理: %s\n", config.AppConfig.ProxyURL)
	} else {
		fmt.Println("未使用代理")
	}

	if config.AppConfig.CacheEnabled {
		fmt.Printf("缓存已启用: 路径=%s, 最大大小=%dMB, TTL=%d分钟\n",
			config.AppConfig.CachePath,
			config.AppConfig.CacheMaxSizeMB,
			config.AppConfig.CacheTTLMinutes)
	} else {
		fmt.Println("缓存已禁用")
	}

	if config.AppConfig.EnableCompression {
		fmt.Printf("响应压缩已启用: 最小压缩大小=%d字节\n",
			config.AppConfig.MinSizeToCompress)
	} else {
		fmt.Println("响应压缩已禁用")
	}

	if config.AppConfig.AuthEnabled {
		fmt.Println("认证已启用")
		if config.AppConfig.AuthSecretGenerated {
			log.Warnf("未配置AUTH_SECRET，本次使用随机生成的密钥，重启后已签发的令牌将全部失效")
		}
	} else {
		fmt.Println("认证已禁用")
	}

	fmt.Printf("GC配置: 触发阈值=%d%%, 内存优化=%v\n",
		config.AppConfig.GCPercent,
		config.AppConfig.OptimizeMemory)

	fmt.Println("已加载插件:")
	for _, p := range pluginManager.GetPlugins() {
		fmt.Printf("  - %s (优先级: %d)\n", p.Name(), p.Priority())
	}
}
