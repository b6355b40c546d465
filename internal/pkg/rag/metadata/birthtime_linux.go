//go:build linux

package metadata

import (
	"os"
	"syscall"
	"time"
)

// Linux 的 stat 不暴露创建时间，使用 ctime 与 mtime 中较早者。
func birthTime(info os.FileInfo, mtime time.Time) time.Time {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return mtime
	}
	ctime := time.Unix(int64(st.Ctim.Sec), int64(st.Ctim.Nsec))
	if ctime.Before(mtime) {
		return ctime
	}
	return mtime
}
