package json

import (
	"github.com/bytedance/sonic"
)

// API 是全局的sonic编解码配置
var API = sonic.ConfigDefault

func init() {
	API = sonic.Config{
		UseNumber:   true,
		EscapeHTML:  true,
		SortMapKeys: false,
	}.Froze()
}

// Marshal 序列化对象为JSON字节
func Marshal(v interface{}) ([]byte, error) {
	return API.Marshal(v)
}

// Unmarshal 反序列化JSON字节到对象
func Unmarshal(data []byte, v interface{}) error {
	return API.Unmarshal(data, v)
}

// MarshalString 序列化对象为JSON字符串
func MarshalString(v interface{}) (string, error) {
	b, err := API.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UnmarshalString 反序列化JSON字符串到对象
func UnmarshalString(str string, v interface{}) error {
	return API.Unmarshal([]byte(str), v)
}

// MarshalIndent 序列化对象为带缩进的JSON，用于落盘的配置和账号文件
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return API.MarshalIndent(v, prefix, indent)
}
