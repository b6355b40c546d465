package handler

import (
	"github.com/gin-gonic/gin"
)

// CreateSession 创建会话。
func (h *Handler) CreateSession(c *gin.Context) {
	sess, err := h.service.CreateSession(c.Request.Context())
	write(c, err, sess)
}

// ListSessions 列出全部会话，最新的在前。
func (h *Handler) ListSessions(c *gin.Context) {
	sessions, err := h.service.ListSessions(c.Request.Context())
	write(c, err, sessions)
}

// GetSession 返回会话详情。
func (h *Handler) GetSession(c *gin.Context) {
	detail, err := h.service.GetSession(c.Request.Context(), sessionID(c))
	write(c, err, detail)
}

// RenameSessionRequest 重命名请求。
type RenameSessionRequest struct {
	Name string `json:"name" binding:"required,notblank,max=255"`
}

// RenameSession 重命名会话。
func (h *Handler) RenameSession(c *gin.Context) {
	var req RenameSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	id := sessionID(c)
	if err := h.service.RenameSession(c.Request.Context(), id, req.Name); err != nil {
		write(c, err, nil)
		return
	}
	write(c, nil, gin.H{"id": id, "name": h.service.SessionName(c.Request.Context(), id)})
}

// SuggestSessionName 根据第一个问题生成并应用会话名称。
func (h *Handler) SuggestSessionName(c *gin.Context) {
	id := sessionID(c)
	name, err := h.service.SuggestSessionName(c.Request.Context(), id)
	if err != nil {
		write(c, err, nil)
		return
	}
	write(c, nil, gin.H{"id": id, "name": name})
}

// DeleteSession 删除会话及其文件、消息、笔记与索引。
func (h *Handler) DeleteSession(c *gin.Context) {
	write(c, h.service.DeleteSession(c.Request.Context(), sessionID(c)), nil)
}
