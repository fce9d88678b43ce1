package util

import (
	"bytes"
	"compress/gzip"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"yunsou/config"
)

// gzipBufferWriter 先把响应体缓冲下来，待处理结束后统一决定是否压缩输出
type gzipBufferWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *gzipBufferWriter) Write(b []byte) (int, error) {
	return w.body.Write(b)
}

func (w *gzipBufferWriter) WriteString(s string) (int, error) {
	return w.body.WriteString(s)
}

// GzipMiddleware 返回响应压缩中间件。
// 客户端不支持gzip或响应体小于压缩阈值时原样输出
func GzipMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.AppConfig == nil || !config.AppConfig.EnableCompression {
			c.Next()
			return
		}

		if !strings.Contains(c.Request.Header.Get("Accept-Encoding"), "gzip") {
			c.Next()
			return
		}

		original := c.Writer
		buffer := &bytes.Buffer{}
		c.Writer = &gzipBufferWriter{ResponseWriter: original, body: buffer}

		c.Next()

		c.Writer = original
		data := buffer.Bytes()

		if len(data) < config.AppConfig.MinSizeToCompress {
			original.Write(data)
			return
		}

		c.Header("Content-Encoding", "gzip")
		c.Header("Vary", "Accept-Encoding")

		gz, err := gzip.NewWriterLevel(original, gzip.BestSpeed)
		if err != nil {
			original.Write(data)
			return
		}
		defer gz.Close()
		gz.Write(data)
	}
}

// CompressData 用gzip压缩数据，插件缓存落盘前调用
func CompressData(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecompressData 解压gzip数据
func DecompressData(data []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	return io.ReadAll(gz)
}
