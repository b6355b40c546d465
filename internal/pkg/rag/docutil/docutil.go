// Package docutil 提供文档目录与文件写入相关的工具函数。
package docutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultChunkSize 分块写入的默认块大小（1 MiB）。
const DefaultChunkSize = 1 << 20

var (
	// ErrInvalidName 文件名为空、包含路径分隔符或是 "." / ".."。
	ErrInvalidName = errors.New("invalid file name")
	// ErrExists 目标文件已存在。
	ErrExists = errors.New("file already exists")
)

// EnsureDir 确保目录存在，如果不存在则创建。
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// FileExists 检查文件是否存在。
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirExists 检查目录是否存在。
func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// ValidateName 校验上传文件名只包含单个路径元素。
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// SafeJoin 把 name 拼接到 dir 下，拒绝逃出 dir 的名称。
func SafeJoin(dir, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// CopyInChunks 以 chunkSize（<= 0 时为 1 MiB）为块把 r 写入新文件 dst。
// dst 已存在时返回 ErrExists，不会覆盖；写入失败时删除半成品文件。
func CopyInChunks(dst string, r io.Reader, chunkSize int) (int64, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if err := EnsureDir(filepath.Dir(dst)); err != nil {
		return 0, err
	}

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return 0, fmt.Errorf("%w: %s", ErrExists, filepath.Base(dst))
		}
		return 0, err
	}

	n, err := io.CopyBuffer(f, r, make([]byte, chunkSize))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return 0, err
	}
	return n, nil
}

// RemoveDirs 删除多个目录，忽略不存在的目录，返回第一个错误。
func RemoveDirs(dirs ...string) error {
	var firstErr error
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.RemoveAll(dir); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// FindFiles 在目录中递归查找指定扩展名的文件，exts 为空时返回所有文件。
func FindFiles(dir string, exts ...string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if len(exts) == 0 {
			files = append(files, path)
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		for _, e := range exts {
			if ext == e {
				files = append(files, path)
				break
			}
		}
		return nil
	})
	return files, err
}
