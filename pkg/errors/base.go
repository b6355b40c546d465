package errors

import "net/http"

// OK represents a successful operation.
var OK = Register(&Errno{Code: 0, HTTP: http.StatusOK, MessageEN: "Success", MessageZH: "成功"})

// 请求类错误。
var (
	ErrBadRequest       = NewRequestErr(ServiceCommon, 0, "Bad request", "请求错误")
	ErrInvalidParam     = NewRequestErr(ServiceCommon, 1, "Invalid parameter", "参数无效")
	ErrValidationFailed = NewRequestErr(ServiceCommon, 4, "Validation failed", "验证失败")
	ErrRequestTooLarge  = NewBuilder(ServiceCommon, CategoryRequest, 5).
				HTTP(http.StatusRequestEntityTooLarge).
				Message("Request entity too large", "请求体过大").
				MustBuild()
)

// 资源类错误。
var (
	ErrNotFound        = NewNotFoundErr(ServiceCommon, 0, "Resource not found", "资源不存在")
	ErrConflict        = NewConflictErr(ServiceCommon, 0, "Resource conflict", "资源冲突")
	ErrTooManyRequests = NewBuilder(ServiceCommon, CategoryRateLimit, 0).
				Message("Too many requests", "请求过于频繁").
				MustBuild()
)

// 服务端错误。
var (
	ErrInternal = NewBuilder(ServiceCommon, CategoryInternal, 0).
			Message("Internal server error", "服务器内部错误").MustBuild()
	ErrDatabase = NewBuilder(ServiceCommon, CategoryDatabase, 0).
			Message("Database error", "数据库错误").MustBuild()
	ErrServiceUnavailable = NewBuilder(ServiceCommon, CategoryNetwork, 0).
				Message("Service unavailable", "服务不可用").MustBuild()
	ErrTimeout = NewBuilder(ServiceCommon, CategoryTimeout, 0).
			Message("Request timeout", "请求超时").MustBuild()
)
