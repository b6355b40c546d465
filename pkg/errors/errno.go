package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
)

// Errno 带错误码与中英文消息的错误。注册后的实例只读，WithXxx 返回副本。
type Errno struct {
	Code      int    `json:"code"`
	HTTP      int    `json:"-"`
	MessageEN string `json:"message"`
	MessageZH string `json:"message_zh,omitempty"`

	cause error
}

// Error implements the error interface.
func (e *Errno) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("errno %d: %s: %v", e.Code, e.MessageEN, e.cause)
	}
	return fmt.Sprintf("errno %d: %s", e.Code, e.MessageEN)
}

// Unwrap returns the underlying cause.
func (e *Errno) Unwrap() error {
	return e.cause
}

// WithCause returns a copy carrying cause.
func (e *Errno) WithCause(cause error) *Errno {
	c := *e
	c.cause = cause
	return &c
}

// WithMessage returns a copy whose messages are replaced by msg in both languages.
func (e *Errno) WithMessage(msg string) *Errno {
	c := *e
	c.MessageEN = msg
	c.MessageZH = ""
	return &c
}

// Message 按语言返回消息，lang 以 zh 开头时优先中文。
func (e *Errno) Message(lang string) string {
	if e.MessageZH != "" && strings.HasPrefix(strings.ToLower(lang), "zh") {
		return e.MessageZH
	}
	return e.MessageEN
}

// HTTPStatus returns the HTTP status, falling back to the category default.
func (e *Errno) HTTPStatus() int {
	if e.HTTP != 0 {
		return e.HTTP
	}
	return StatusForCategory(GetCategory(e.Code))
}

// Is matches any Errno with the same code, so errors.Is works across WithCause copies.
func (e *Errno) Is(target error) bool {
	t, ok := target.(*Errno)
	return ok && e.Code == t.Code
}

var (
	registry   = make(map[int]*Errno)
	registryMu sync.RWMutex
)

// Register records e under its code. It panics on a duplicate code.
func Register(e *Errno) *Errno {
	registryMu.Lock()
	defer registryMu.Unlock()

	if existing, ok := registry[e.Code]; ok {
		panic(fmt.Sprintf("errno code %d already registered: %s", e.Code, existing.MessageEN))
	}
	registry[e.Code] = e
	return e
}

// Lookup returns the registered Errno for code.
func Lookup(code int) (*Errno, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := registry[code]
	return e, ok
}

// FromError returns the first Errno in err's chain, or ErrInternal wrapping err.
func FromError(err error) *Errno {
	if err == nil {
		return nil
	}
	var e *Errno
	if stderrors.As(err, &e) {
		return e
	}
	return ErrInternal.WithCause(err)
}
