// Package handler provides HTTP handlers for the docuverse API.
package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/docuverse/internal/docuverse/biz"
	"github.com/kart-io/docuverse/internal/docuverse/errno"
	pkgerrors "github.com/kart-io/docuverse/pkg/errors"
	"github.com/kart-io/docuverse/pkg/utils/response"
	"github.com/kart-io/docuverse/pkg/validator"
)

// Handler 会话、文件、消息、笔记与索引的 HTTP 处理器。
type Handler struct {
	service *biz.SessionService
}

// NewHandler 创建处理器。请求体大小由 BodyLimit 中间件限制。
func NewHandler(service *biz.SessionService) *Handler {
	return &Handler{service: service}
}

// write 把服务层错误映射为 Errno 后输出统一响应。
func write(c *gin.Context, err error, data interface{}) {
	if err != nil {
		_ = c.Error(err)
		response.WriteResponse(c, errno.From(err), nil)
		return
	}
	response.WriteResponse(c, nil, data)
}

// bindJSON 解析请求体，校验失败时按 Accept-Language 返回翻译后的字段错误。
func bindJSON(c *gin.Context, req interface{}) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	if verrs := validator.Global().Translate(err, lang(c)); verrs != nil {
		write(c, pkgerrors.ErrValidationFailed.WithMessage(verrs.Error()), nil)
		return false
	}
	write(c, pkgerrors.ErrBadRequest.WithMessage(err.Error()), nil)
	return false
}

func lang(c *gin.Context) string {
	return validator.NormalizeLang(c.GetHeader("Accept-Language"))
}

func sessionID(c *gin.Context) string {
	return c.Param("id")
}

func uintParam(c *gin.Context, name string) (uint64, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		write(c, pkgerrors.ErrInvalidParam.WithMessage("invalid "+name), nil)
		return 0, false
	}
	return v, true
}
