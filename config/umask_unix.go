//go:build unix

package config

import "golang.org/x/sys/unix"

// captureUmask reads the process umask. umask(2) can only be read by
// writing it, so this must happen before any other goroutine creates
// files.
func captureUmask() uint32 {
	old := unix.Umask(0)
	unix.Umask(old)
	return uint32(old)
}
