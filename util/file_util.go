package util

import (
	"os"
	"path/filepath"
)

// FileExists 检查文件是否存在
func FileExists(filename string) bool {
	_, err := os.Stat(filename)
	return !os.IsNotExist(err)
}

// DirExists 检查目录是否存在且确实是目录
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	return !os.IsNotExist(err) && info != nil && info.IsDir()
}

// EnsureDir 确保目录存在，不存在时逐级创建
func EnsureDir(dirname string) error {
	if DirExists(dirname) {
		return nil
	}
	return os.MkdirAll(dirname, 0755)
}

// WriteFile 写入文件，父目录不存在时先创建
func WriteFile(filename string, data []byte, perm os.FileMode) error {
	if err := EnsureDir(filepath.Dir(filename)); err != nil {
		return err
	}
	return os.WriteFile(filename, data, perm)
}
