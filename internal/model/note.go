package model

import (
	"fmt"
	"time"
)

// Note 从问答对保存下来的 markdown 笔记。
type Note struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	SessionID string    `json:"session_id" gorm:"size:64;not null;index:idx_notes_session"`
	Title     string    `json:"title" gorm:"size:255;not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	Path      string    `json:"path" gorm:"size:1024"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name for GORM.
func (Note) TableName() string {
	return "notes"
}

// NoteMarkdown 渲染笔记正文。
func NoteMarkdown(question, answer string) string {
	return fmt.Sprintf("# %s\n\n---\n\n%s", question, answer)
}
