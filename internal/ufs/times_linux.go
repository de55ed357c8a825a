//go:build linux

package ufs

import (
	"time"

	"golang.org/x/sys/unix"
)

func statTimes(st *unix.Stat_t) (atime, mtime time.Time) {
	return time.Unix(int64(st.Atim.Sec), int64(st.Atim.Nsec)),
		time.Unix(int64(st.Mtim.Sec), int64(st.Mtim.Nsec))
}
