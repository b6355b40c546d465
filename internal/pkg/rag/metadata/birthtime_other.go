//go:build !linux

package metadata

import (
	"os"
	"time"
)

func birthTime(_ os.FileInfo, mtime time.Time) time.Time {
	return mtime
}
