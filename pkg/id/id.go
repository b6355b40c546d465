// Package id 提供 docuverse 使用的标识符生成器。
//
// 会话 ID 基于 ULID，按创建时间字典序排列；请求 ID 使用 UUIDv4。
package id

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// SessionPrefix 是会话 ID 的固定前缀。
const SessionPrefix = "session_"

var (
	entropyMu sync.Mutex
	// 单调熵源保证同一毫秒内生成的 ULID 仍然严格递增。
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// NewULID 返回一个新的 ULID（大写 Crockford Base32）。
func NewULID() string {
	return newULIDAt(time.Now())
}

func newULIDAt(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// NewSessionID 返回 "session_" + 小写 ULID。
func NewSessionID() string {
	return SessionPrefix + strings.ToLower(NewULID())
}

// IsSessionID 判断字符串是否为合法的会话 ID。
func IsSessionID(s string) bool {
	if !strings.HasPrefix(s, SessionPrefix) {
		return false
	}
	_, err := ulid.ParseStrict(strings.ToUpper(strings.TrimPrefix(s, SessionPrefix)))
	return err == nil
}

// SessionTime 返回会话 ID 中编码的创建时间。
func SessionTime(s string) (time.Time, bool) {
	u, err := ulid.ParseStrict(strings.ToUpper(strings.TrimPrefix(s, SessionPrefix)))
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(u.Time()), true
}

// NewRequestID 返回一个 UUIDv4 字符串，用作 HTTP 请求 ID。
func NewRequestID() string {
	return uuid.NewString()
}
