package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/kart-io/docuverse/internal/model"
	"github.com/kart-io/docuverse/pkg/id"
)

// CreateSession 创建名为 "New Conversation" 的新会话。
func (ds *Datastore) CreateSession(ctx context.Context) (*model.Session, error) {
	now := time.Now().UTC()
	s := &model.Session{
		ID:        id.NewSessionID(),
		Name:      model.DefaultSessionName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := ds.db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// GetSession 获取会话。
func (ds *Datastore) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	var s model.Session
	if err := ds.db.WithContext(ctx).Where("id = ?", sessionID).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// RenameSession 修改会话名称。
func (ds *Datastore) RenameSession(ctx context.Context, sessionID, name string) error {
	res := ds.db.WithContext(ctx).Model(&model.Session{}).
		Where("id = ?", sessionID).
		Updates(map[string]any{"name": name, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// TouchSession 更新会话的 updated_at。
func (ds *Datastore) TouchSession(ctx context.Context, sessionID string) error {
	return ds.db.WithContext(ctx).Model(&model.Session{}).
		Where("id = ?", sessionID).
		Update("updated_at", time.Now().UTC()).Error
}

// ListSessions 返回带统计信息的会话列表，最新的在前。
func (ds *Datastore) ListSessions(ctx context.Context) ([]*model.SessionDetail, error) {
	db := ds.db.WithContext(ctx)

	var sessions []model.Session
	if err := db.Order("created_at DESC").Order("id DESC").Find(&sessions).Error; err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return []*model.SessionDetail{}, nil
	}

	type countRow struct {
		SessionID string
		N         int64
	}
	var msgCounts []countRow
	if err := db.Model(&model.Message{}).
		Select("session_id, COUNT(*) AS n").
		Group("session_id").
		Scan(&msgCounts).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(msgCounts))
	for _, r := range msgCounts {
		counts[r.SessionID] = r.N
	}

	var files []model.File
	if err := db.Select("session_id", "name").Order("id").Find(&files).Error; err != nil {
		return nil, err
	}
	names := make(map[string][]string)
	for _, f := range files {
		names[f.SessionID] = append(names[f.SessionID], f.Name)
	}

	details := make([]*model.SessionDetail, 0, len(sessions))
	for _, s := range sessions {
		fn := names[s.ID]
		if fn == nil {
			fn = []string{}
		}
		details = append(details, &model.SessionDetail{
			Session:      s,
			MessageCount: counts[s.ID],
			FileCount:    int64(len(fn)),
			FileNames:    fn,
		})
	}
	return details, nil
}

// DeleteSession 在一个事务中删除会话及其文件、消息与笔记记录，返回被删除的文件记录。
func (ds *Datastore) DeleteSession(ctx context.Context, sessionID string) ([]model.File, error) {
	var files []model.File
	err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ds.sessionExists(ctx, tx, sessionID); err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", sessionID).Find(&files).Error; err != nil {
			return err
		}
		for _, m := range []any{&model.Message{}, &model.File{}, &model.Note{}} {
			if err := tx.Where("session_id = ?", sessionID).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", sessionID).Delete(&model.Session{}).Error
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
