// Package model 定义 docuverse 持久化的数据模型。
package model

import "time"

// DefaultSessionName 新建会话的默认名称。
const DefaultSessionName = "New Conversation"

// Session 一个对话会话，拥有文件、消息与笔记。
type Session struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	Name      string    `json:"name" gorm:"size:255;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_sessions_created"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Session) TableName() string {
	return "sessions"
}

// SessionDetail 会话列表项。
type SessionDetail struct {
	Session
	MessageCount int64    `json:"message_count"`
	FileCount    int64    `json:"file_count"`
	FileNames    []string `json:"file_names"`
}
