package model

import "time"

// Role 消息角色。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message 会话中的一条消息。同一会话内 CreatedAt 严格递增。
type Message struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	SessionID string    `json:"session_id" gorm:"size:64;not null;index:idx_messages_session_ts,priority:1"`
	Role      Role      `json:"role" gorm:"size:16;not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime:false;index:idx_messages_session_ts,priority:2"`
}

// TableName returns the table name for GORM.
func (Message) TableName() string {
	return "messages"
}
