package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/kart-io/docuverse/internal/model"
)

// timestampResolution 所有驱动都能精确保存的时间精度。
const timestampResolution = time.Millisecond

// AppendMessage 追加一条消息；时间戳不晚于上一条时向后推进一个精度单位。
func (ds *Datastore) AppendMessage(ctx context.Context, sessionID string, role model.Role, content string) (*model.Message, error) {
	ds.appendMu.Lock()
	defer ds.appendMu.Unlock()

	msg := &model.Message{SessionID: sessionID, Role: role, Content: content}
	err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ds.sessionExists(ctx, tx, sessionID); err != nil {
			return err
		}

		now := time.Now().UTC().Truncate(timestampResolution)
		var last model.Message
		err := tx.Where("session_id = ?", sessionID).
			Order("created_at DESC").Order("id DESC").
			Limit(1).Find(&last).Error
		if err != nil {
			return err
		}
		if last.ID != 0 && !now.After(last.CreatedAt) {
			now = last.CreatedAt.Add(timestampResolution)
		}
		msg.CreatedAt = now

		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&model.Session{}).Where("id = ?", sessionID).Update("updated_at", now).Error
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages 按时间顺序返回会话的全部消息。
func (ds *Datastore) ListMessages(ctx context.Context, sessionID string) ([]model.Message, error) {
	var msgs []model.Message
	err := ds.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at").Order("id").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// GetMessage 获取会话中的一条消息。
func (ds *Datastore) GetMessage(ctx context.Context, sessionID string, messageID uint64) (*model.Message, error) {
	var m model.Message
	err := ds.db.WithContext(ctx).Where("session_id = ? AND id = ?", sessionID, messageID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &m, nil
}

// DeleteMessages 删除会话中的指定消息。
func (ds *Datastore) DeleteMessages(ctx context.Context, sessionID string, ids ...uint64) error {
	if len(ids) == 0 {
		return nil
	}
	return ds.db.WithContext(ctx).
		Where("session_id = ? AND id IN ?", sessionID, ids).
		Delete(&model.Message{}).Error
}

// DeleteMessagePair 删除助手消息及紧邻其前的用户消息，返回被删除的用户消息（可能为 nil）。
func (ds *Datastore) DeleteMessagePair(ctx context.Context, sessionID string, assistantID uint64) (*model.Message, error) {
	msgs, err := ds.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, m := range msgs {
		if m.ID == assistantID && m.Role == model.RoleAssistant {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrMessageNotFound
	}

	ids := []uint64{assistantID}
	var question *model.Message
	if idx > 0 && msgs[idx-1].Role == model.RoleUser {
		q := msgs[idx-1]
		question = &q
		ids = append(ids, q.ID)
	}
	if err := ds.DeleteMessages(ctx, sessionID, ids...); err != nil {
		return nil, err
	}
	return question, nil
}
