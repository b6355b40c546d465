// Package store 基于 gorm 持久化会话、文件、消息与笔记。
package store

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	"gorm.io/gorm"

	"github.com/kart-io/docuverse/internal/model"
)

var (
	// ErrSessionNotFound 会话不存在。
	ErrSessionNotFound = errors.New("session not found")
	// ErrFileNotFound 文件不存在。
	ErrFileNotFound = errors.New("file not found")
	// ErrFileExists 同一会话中已有同名文件。
	ErrFileExists = errors.New("file already exists")
	// ErrMessageNotFound 消息不存在。
	ErrMessageNotFound = errors.New("message not found")
	// ErrNoteNotFound 笔记不存在。
	ErrNoteNotFound = errors.New("note not found")
)

// FileRef 索引构建使用的文件引用。
type FileRef struct {
	Path string
	Name string
}

// Datastore 会话数据的 gorm 实现。
type Datastore struct {
	db *gorm.DB

	// appendMu 串行化消息追加，保证同一会话内时间戳单调递增。
	appendMu sync.Mutex
}

// New 创建 Datastore。
func New(db *gorm.DB) *Datastore {
	return &Datastore{db: db}
}

// AutoMigrate 迁移数据库表结构。
func (ds *Datastore) AutoMigrate() error {
	return ds.db.AutoMigrate(
		&model.Session{},
		&model.File{},
		&model.Message{},
		&model.Note{},
	)
}

// DB 返回底层 gorm.DB。
func (ds *Datastore) DB() *gorm.DB {
	return ds.db
}

func (ds *Datastore) sessionExists(ctx context.Context, tx *gorm.DB, sessionID string) error {
	var n int64
	if err := tx.WithContext(ctx).Model(&model.Session{}).Where("id = ?", sessionID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key")
}

func fileOnDisk(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
