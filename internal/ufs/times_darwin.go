//go:build darwin

package ufs

import (
	"time"

	"golang.org/x/sys/unix"
)

// Darwin names the stat timestamp fields Atimespec and Mtimespec.
func statTimes(st *unix.Stat_t) (atime, mtime time.Time) {
	return time.Unix(int64(st.Atimespec.Sec), int64(st.Atimespec.Nsec)),
		time.Unix(int64(st.Mtimespec.Sec), int64(st.Mtimespec.Nsec))
}
