package model

import "time"

// File 会话中上传的文件；(session_id, name) 唯一。
type File struct {
	ID         uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	SessionID  string    `json:"session_id" gorm:"size:64;not null;uniqueIndex:uk_files_session_name,priority:1"`
	Name       string    `json:"name" gorm:"size:255;not null;uniqueIndex:uk_files_session_name,priority:2"`
	Path       string    `json:"path" gorm:"size:1024;not null"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// TableName returns the table name for GORM.
func (File) TableName() string {
	return "files"
}
