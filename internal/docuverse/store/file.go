package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/kart-io/docuverse/internal/model"
)

// AddFile 登记会话中的文件；同名文件返回 ErrFileExists。
func (ds *Datastore) AddFile(ctx context.Context, f *model.File) error {
	if f.UploadedAt.IsZero() {
		f.UploadedAt = time.Now().UTC()
	}
	return ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ds.sessionExists(ctx, tx, f.SessionID); err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&model.File{}).
			Where("session_id = ? AND name = ?", f.SessionID, f.Name).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrFileExists
		}
		if err := tx.Create(f).Error; err != nil {
			if isDuplicate(err) {
				return ErrFileExists
			}
			return err
		}
		return nil
	})
}

// GetFile 按名称获取文件记录。
func (ds *Datastore) GetFile(ctx context.Context, sessionID, name string) (*model.File, error) {
	var f model.File
	err := ds.db.WithContext(ctx).Where("session_id = ? AND name = ?", sessionID, name).First(&f).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return &f, nil
}

// ListFileRecords 按上传顺序列出会话的文件记录。
func (ds *Datastore) ListFileRecords(ctx context.Context, sessionID string) ([]model.File, error) {
	var files []model.File
	if err := ds.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("id").Find(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}

// ListFiles 返回磁盘上仍然存在的文件引用。
func (ds *Datastore) ListFiles(ctx context.Context, sessionID string) ([]FileRef, error) {
	files, err := ds.ListFileRecords(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	refs := make([]FileRef, 0, len(files))
	for _, f := range files {
		if !fileOnDisk(f.Path) {
			continue
		}
		refs = append(refs, FileRef{Path: f.Path, Name: f.Name})
	}
	return refs, nil
}

// DeleteFile 删除文件记录并返回它。
func (ds *Datastore) DeleteFile(ctx context.Context, sessionID, name string) (*model.File, error) {
	var f model.File
	err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ? AND name = ?", sessionID, name).First(&f).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrFileNotFound
			}
			return err
		}
		return tx.Delete(&model.File{}, f.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &f, nil
}
