package handler

import (
	"github.com/gin-gonic/gin"
)

// AddNoteRequest 保存笔记请求，title 为空时使用问题。
type AddNoteRequest struct {
	Question string `json:"question" binding:"required,notblank"`
	Answer   string `json:"answer"`
	Title    string `json:"title" binding:"max=255"`
}

// ListNotes 返回会话笔记。
func (h *Handler) ListNotes(c *gin.Context) {
	notes, err := h.service.ListNotes(c.Request.Context(), sessionID(c))
	write(c, err, notes)
}

// AddNote 把问答对保存为笔记。
func (h *Handler) AddNote(c *gin.Context) {
	var req AddNoteRequest
	if !bindJSON(c, &req) {
		return
	}
	note, err := h.service.AddNote(c.Request.Context(), sessionID(c), req.Question, req.Answer, req.Title)
	write(c, err, note)
}

// DeleteNote 删除笔记。
func (h *Handler) DeleteNote(c *gin.Context) {
	nid, ok := uintParam(c, "nid")
	if !ok {
		return
	}
	write(c, h.service.DeleteNote(c.Request.Context(), sessionID(c), nid), nil)
}
