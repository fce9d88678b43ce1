package log

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// logger 是全局的logrus实例，默认输出到标准输出
var logger = logrus.New()

func init() {
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)
}

// Init 根据配置的级别初始化日志，未识别的级别回退到info
func Init(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}
}

// SetOutput 设置日志输出目标，测试中用于静默输出
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// Debugf 输出调试日志
func Debugf(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

// Infof 输出普通日志
func Infof(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

// Warnf 输出警告日志
func Warnf(format string, args ...interface{}) {
	logger.Warnf(format, args...)
}

// Errorf 输出错误日志
func Errorf(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}

// WithFields 返回带结构化字段的日志入口
func WithFields(fields map[string]interface{}) *logrus.Entry {
	return logger.WithFields(logrus.Fields(fields))
}
