// Package errors 提供 docuverse 的统一错误码体系。
//
// 错误码格式 AABBCCC（7 位）：
//
//	AA  (00-99):   服务/模块码，00 为通用错误，20 为 docuverse 业务
//	BB  (00-99):   类别码，决定默认的 HTTP 状态
//	CCC (000-999): 类别内序号
//
// 用法：
//
//	return errors.ErrInvalidParam.WithMessage("question is required")
//
//	var ErrSessionNotFound = errors.NewNotFoundErr(ServiceDocuVerse, 1,
//	    "Conversation not found", "会话不存在")
package errors

import "net/http"

// Service codes (AA)
const (
	// ServiceCommon 通用错误。
	ServiceCommon = 0
	// ServiceDocuVerse docuverse 业务错误。
	ServiceDocuVerse = 20
)

// Category codes (BB)
const (
	CategorySuccess    = 0
	CategoryRequest    = 1
	CategoryAuth       = 2
	CategoryPermission = 3
	CategoryResource   = 4
	CategoryConflict   = 5
	CategoryRateLimit  = 6
	CategoryInternal   = 7
	CategoryDatabase   = 8
	CategoryCache      = 9
	CategoryNetwork    = 10
	CategoryTimeout    = 11
	CategoryConfig     = 12
)

// MakeCode creates an error code from service, category, and sequence.
func MakeCode(service, category, sequence int) int {
	return service*100000 + category*1000 + sequence
}

// ParseCode parses an error code into service, category, and sequence.
func ParseCode(code int) (service, category, sequence int) {
	return code / 100000, (code % 100000) / 1000, code % 1000
}

// GetCategory returns the category code from an error code.
func GetCategory(code int) int {
	return (code % 100000) / 1000
}

// StatusForCategory returns the default HTTP status of a category.
func StatusForCategory(category int) int {
	switch category {
	case CategorySuccess:
		return http.StatusOK
	case CategoryRequest:
		return http.StatusBadRequest
	case CategoryAuth:
		return http.StatusUnauthorized
	case CategoryPermission:
		return http.StatusForbidden
	case CategoryResource:
		return http.StatusNotFound
	case CategoryConflict:
		return http.StatusConflict
	case CategoryRateLimit:
		return http.StatusTooManyRequests
	case CategoryTimeout:
		return http.StatusGatewayTimeout
	case CategoryNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
