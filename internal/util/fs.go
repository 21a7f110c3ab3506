package util

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
)

// FileExists 检查文件是否存在
func FileExists(filename string) bool {
	_, err := os.Stat(filename)
	return !os.IsNotExist(err)
}

// EnsureDir 确保目录存在
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// HomeDataDir 返回应用数据目录（~/.snowball），失败时退回当前目录
func HomeDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".snowball"
	}
	return filepath.Join(homeDir, ".snowball")
}

// RandomString 生成指定长度的随机十六进制字符串
func RandomString(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		// 在加密安全的随机数生成失败时，回退到一个固定占位值
		return "fallback"
	}
	return hex.EncodeToString(bytes)
}
