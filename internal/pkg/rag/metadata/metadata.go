// Package metadata 从文件系统信息中提取文档元数据。
package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Category 文件分类。
type Category string

const (
	CategoryText         Category = "text"
	CategoryDocument     Category = "document"
	CategoryPresentation Category = "presentation"
	CategorySpreadsheet  Category = "spreadsheet"
	CategoryEbook        Category = "ebook"
	CategoryEmail        Category = "email"
	CategoryNotebook     Category = "notebook"
	CategoryData         Category = "data"
	CategoryOther        Category = "other"
)

var categories = map[string]Category{
	".txt": CategoryText, ".md": CategoryText, ".markdown": CategoryText, ".rst": CategoryText, ".log": CategoryText,
	".pdf": CategoryDocument, ".docx": CategoryDocument, ".doc": CategoryDocument, ".odt": CategoryDocument, ".rtf": CategoryDocument,
	".pptx": CategoryPresentation, ".ppt": CategoryPresentation, ".odp": CategoryPresentation,
	".csv": CategorySpreadsheet, ".tsv": CategorySpreadsheet, ".xlsx": CategorySpreadsheet, ".xls": CategorySpreadsheet,
	".epub": CategoryEbook,
	".mbox": CategoryEmail, ".eml": CategoryEmail,
	".ipynb": CategoryNotebook,
	".json": CategoryData, ".jsonl": CategoryData, ".xml": CategoryData, ".yaml": CategoryData, ".yml": CategoryData,
}

// CategoryOf 返回扩展名（含点，大小写不敏感）对应的分类。
func CategoryOf(ext string) Category {
	if c, ok := categories[strings.ToLower(ext)]; ok {
		return c
	}
	return CategoryOther
}

// IsBinary 报告分类是否为二进制格式。
func (c Category) IsBinary() bool {
	switch c {
	case CategoryDocument, CategoryPresentation, CategoryEbook:
		return true
	}
	return false
}

// Metadata 文件元数据。
type Metadata struct {
	FileName   string   `json:"file_name"`
	FileType   string   `json:"file_type"`
	Category   Category `json:"category"`
	Size       int64    `json:"size"`
	SizeHuman  string   `json:"size_human"`
	CreatedAt  string   `json:"created_at"`
	ModifiedAt string   `json:"modified_at"`
	IsBinary   bool     `json:"is_binary"`
}

// Extract 读取 path 的文件信息并生成元数据。
// 文件不存在时返回的错误满足 errors.Is(err, fs.ErrNotExist)。
func Extract(path string) (*Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("extract metadata: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	category := CategoryOf(ext)
	mtime := info.ModTime()

	return &Metadata{
		FileName:   filepath.Base(path),
		FileType:   strings.TrimPrefix(ext, "."),
		Category:   category,
		Size:       info.Size(),
		SizeHuman:  humanize.IBytes(uint64(info.Size())),
		CreatedAt:  birthTime(info, mtime).Format(time.RFC3339),
		ModifiedAt: mtime.Format(time.RFC3339),
		IsBinary:   category.IsBinary(),
	}, nil
}

// Map 把元数据展开为文档元数据 map。
func (m *Metadata) Map() map[string]any {
	return map[string]any{
		"file_name":   m.FileName,
		"file_type":   m.FileType,
		"category":    string(m.Category),
		"size":        m.Size,
		"size_human":  m.SizeHuman,
		"created_at":  m.CreatedAt,
		"modified_at": m.ModifiedAt,
		"is_binary":   m.IsBinary,
	}
}
