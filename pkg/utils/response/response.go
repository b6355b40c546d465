// Package response defines the JSON envelope returned by every HTTP endpoint.
package response

import (
	"net/http"

	"github.com/kart-io/docuverse/pkg/errors"
)

// Response 统一响应体。Code 为 0 表示成功。
type Response struct {
	Code      int         `json:"code"`
	HTTPCode  int         `json:"http_code,omitempty"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	// Timestamp 毫秒时间戳。
	Timestamp int64 `json:"timestamp,omitempty"`
}

// Success 包装成功结果。
func Success(data interface{}) *Response {
	return &Response{HTTPCode: http.StatusOK, Message: "success", Data: data}
}

// Err 按语言生成错误响应，e 为 nil 时等同 Success(nil)。
func Err(e *errors.Errno, lang string) *Response {
	if e == nil {
		return Success(nil)
	}
	return &Response{Code: e.Code, HTTPCode: e.HTTPStatus(), Message: e.Message(lang)}
}

// IsSuccess reports whether the response carries no error.
func (r *Response) IsSuccess() bool {
	return r.Code == 0
}

// HTTPStatus 返回响应的 HTTP 状态码。
// 未设置 HTTPCode 时依次查注册表与错误码类别。
func (r *Response) HTTPStatus() int {
	if r.HTTPCode != 0 {
		return r.HTTPCode
	}
	if r.Code == 0 {
		return http.StatusOK
	}
	if e, ok := errors.Lookup(r.Code); ok {
		return e.HTTPStatus()
	}
	return errors.StatusForCategory(errors.GetCategory(r.Code))
}
