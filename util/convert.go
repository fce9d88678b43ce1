package util

import (
	"strconv"
)

// StringToInt 将字符串转换为整数，空串或非法输入返回0
func StringToInt(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// StringToBool 将字符串转换为布尔值，非法输入返回false
func StringToBool(s string) bool {
	if s == "" {
		return false
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return b
}
