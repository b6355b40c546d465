package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/sony/gobreaker"

	"github.com/kart-io/docuverse/pkg/utils/httpclient"
)

// Class 模型调用失败的分类。
type Class int

const (
	// ClassGeneric 无法归类的错误。
	ClassGeneric Class = iota
	// ClassRateLimited 服务端限流（HTTP 429）。
	ClassRateLimited
	// ClassTimedOut 调用超时。
	ClassTimedOut
	// ClassUnavailable 服务暂时不可用（5xx、网络错误、熔断打开）。
	ClassUnavailable
)

func (c Class) String() string {
	switch c {
	case ClassRateLimited:
		return "rate_limited"
	case ClassTimedOut:
		return "timed_out"
	case ClassUnavailable:
		return "unavailable"
	default:
		return "generic"
	}
}

// ClassifiedError 带分类的模型调用错误。
type ClassifiedError struct {
	Class Class
	Err   error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// Classified 用 Classify 的结果包装 err；err 为 nil 时返回 nil。
func Classified(err error) *ClassifiedError {
	if err == nil {
		return nil
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}
	return &ClassifiedError{Class: Classify(err), Err: err}
}

// Classify 判断错误所属分类。
func Classify(err error) Class {
	if err == nil {
		return ClassGeneric
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}

	if se, ok := httpclient.AsStatusError(err); ok {
		switch {
		case se.StatusCode == http.StatusTooManyRequests:
			return ClassRateLimited
		case se.StatusCode == http.StatusRequestTimeout, se.StatusCode == http.StatusGatewayTimeout:
			return ClassTimedOut
		case se.StatusCode >= 500:
			return ClassUnavailable
		default:
			return ClassGeneric
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimedOut
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ClassUnavailable
	}
	if isNetworkError(err) {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ClassTimedOut
		}
		return ClassUnavailable
	}

	// 部分 SDK 只在消息里给出提示
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "429"):
		return ClassRateLimited
	case strings.Contains(msg, "timed out"), strings.Contains(msg, "timeout"):
		return ClassTimedOut
	case strings.Contains(msg, "service unavailable"), strings.Contains(msg, "503"):
		return ClassUnavailable
	}
	return ClassGeneric
}

func isNetworkError(err error) bool {
	var opErr *net.OpError
	var dnsErr *net.DNSError
	var netErr net.Error
	return errors.As(err, &opErr) ||
		errors.As(err, &dnsErr) ||
		errors.As(err, &netErr) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED)
}

// IsRetryableError 判断错误是否值得重试。
// 只有服务不可用与网络错误会重试；限流、超时、熔断打开与取消都直接返回。
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if isNetworkError(err) {
		return true
	}
	return Classify(err) == ClassUnavailable
}
