//go:build unix && !linux

package ufs

import (
	"os"

	"golang.org/x/sys/unix"
)

// ReadNames returns the names of the directory's children, excluding "."
// and "..", in whatever order the OS hands them out.
//
// On Darwin and the BSDs, x/sys emulates Getdirentries in user space and
// moves the descriptor's seek offset while doing so, which can confuse
// later *at calls on the same descriptor. Listing through a fresh
// descriptor for the same directory keeps the handle itself untouched; the
// re-open goes through the already-open descriptor, so it still refers to
// the same object.
func (d *Dir) ReadNames() ([]string, error) {
	fd, err := retryOpen(func() (int, error) {
		return unix.Openat(d.fd, ".", O_RDONLY|O_DIRECTORY|O_CLOEXEC, 0)
	})
	if err != nil {
		return nil, convertErr(err, "openat", d.path)
	}
	f := os.NewFile(uintptr(fd), d.path)
	defer f.Close()
	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, convertErr(err, "readdirnames", d.path)
	}
	return names, nil
}
