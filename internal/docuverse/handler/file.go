package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/docuverse/internal/docuverse/biz"
	"github.com/kart-io/docuverse/internal/docuverse/errno"
	"github.com/kart-io/docuverse/internal/model"
	pkgerrors "github.com/kart-io/docuverse/pkg/errors"
)

// UploadFormField multipart 表单中的文件字段名。
const UploadFormField = "files"

// UploadResult 单个文件的上传结果，失败时带错误码与信息。
type UploadResult struct {
	Name    string      `json:"name"`
	File    *model.File `json:"file,omitempty"`
	Code    int         `json:"code"`
	Message string      `json:"message,omitempty"`
}

// ListFiles 列出会话文件。
func (h *Handler) ListFiles(c *gin.Context) {
	files, err := h.service.ListFiles(c.Request.Context(), sessionID(c))
	write(c, err, files)
}

// UploadFiles 接收 multipart 上传。每个文件独立成功或失败，结果逐个返回。
func (h *Handler) UploadFiles(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			write(c, pkgerrors.ErrRequestTooLarge, nil)
			return
		}
		write(c, errno.ErrInvalidUpload.WithCause(err), nil)
		return
	}

	headers := form.File[UploadFormField]
	if len(headers) == 0 {
		write(c, errno.ErrInvalidUpload.WithMessage("no files in form field "+UploadFormField), nil)
		return
	}

	uploads := make([]biz.Upload, len(headers))
	for i, fh := range headers {
		uploads[i] = biz.Upload{Name: fh.Filename, Open: opener(fh)}
	}

	results, err := h.service.UploadFiles(c.Request.Context(), sessionID(c), uploads)
	if err != nil {
		write(c, err, nil)
		return
	}

	out := make([]UploadResult, len(results))
	for i, r := range results {
		out[i] = UploadResult{Name: r.Name, File: r.File}
		if r.Error != nil {
			e := errno.From(r.Error)
			out[i].Code = e.Code
			out[i].Message = e.Message(lang(c))
		}
	}
	write(c, nil, out)
}

func opener(fh *multipart.FileHeader) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return fh.Open()
	}
}

// DeleteFile 删除会话中的文件并触发索引重建。
func (h *Handler) DeleteFile(c *gin.Context) {
	write(c, h.service.DeleteFile(c.Request.Context(), sessionID(c), c.Param("name")), nil)
}
