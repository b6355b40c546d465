package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/kart-io/docuverse/internal/model"
)

// AddNote 保存笔记。
func (ds *Datastore) AddNote(ctx context.Context, n *model.Note) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ds.sessionExists(ctx, tx, n.SessionID); err != nil {
			return err
		}
		return tx.Create(n).Error
	})
}

// ListNotes 按创建时间倒序列出笔记。
func (ds *Datastore) ListNotes(ctx context.Context, sessionID string) ([]model.Note, error) {
	var notes []model.Note
	err := ds.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").Order("id DESC").
		Find(&notes).Error
	if err != nil {
		return nil, err
	}
	return notes, nil
}

// DeleteNote 删除笔记并返回它。
func (ds *Datastore) DeleteNote(ctx context.Context, sessionID string, noteID uint64) (*model.Note, error) {
	var n model.Note
	err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ? AND id = ?", sessionID, noteID).First(&n).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoteNotFound
			}
			return err
		}
		return tx.Delete(&model.Note{}, n.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &n, nil
}
