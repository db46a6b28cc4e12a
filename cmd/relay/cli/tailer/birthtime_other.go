//go:build !linux && !darwin

package tailer

import (
	"os"
	"time"
)

func createdAt(_ string, fi os.FileInfo) time.Time {
	return fi.ModTime()
}
