package handler

import (
	"github.com/gin-gonic/gin"
)

// QueryRequest 提问请求。
type QueryRequest struct {
	Question string `json:"question" binding:"required"`
}

// ListMessages 按时间顺序返回会话消息。
func (h *Handler) ListMessages(c *gin.Context) {
	msgs, err := h.service.ListMessages(c.Request.Context(), sessionID(c))
	write(c, err, msgs)
}

// Query 保存问题并返回回答。
// 回答失败（无上下文、限流、超时等）仍以 200 返回，outcome 字段说明原因。
func (h *Handler) Query(c *gin.Context) {
	var req QueryRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.service.Ask(c.Request.Context(), sessionID(c), req.Question)
	write(c, err, res)
}

// RerunMessage 重新回答助手消息对应的问题。
func (h *Handler) RerunMessage(c *gin.Context) {
	mid, ok := uintParam(c, "mid")
	if !ok {
		return
	}
	res, err := h.service.RerunMessage(c.Request.Context(), sessionID(c), mid)
	write(c, err, res)
}

// DeleteMessage 删除助手消息及其对应的问题。
func (h *Handler) DeleteMessage(c *gin.Context) {
	mid, ok := uintParam(c, "mid")
	if !ok {
		return
	}
	write(c, h.service.DeleteMessagePair(c.Request.Context(), sessionID(c), mid), nil)
}
