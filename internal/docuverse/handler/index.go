package handler

import (
	"github.com/gin-gonic/gin"
)

// IndexStatus 返回会话索引状态。
func (h *Handler) IndexStatus(c *gin.Context) {
	status, err := h.service.IndexStatus(c.Request.Context(), sessionID(c))
	write(c, err, status)
}

// RebuildIndex 强制在后台重建索引，立即返回当前状态。
func (h *Handler) RebuildIndex(c *gin.Context) {
	ctx := c.Request.Context()
	id := sessionID(c)
	if err := h.service.RebuildIndex(ctx, id); err != nil {
		write(c, err, nil)
		return
	}
	status, err := h.service.IndexStatus(ctx, id)
	write(c, err, status)
}
