//go:build linux

package ufs

import (
	"golang.org/x/sys/unix"
)

// ReadNames returns the names of the directory's children, excluding "."
// and "..", in whatever order the OS hands them out. On Linux getdents64 is
// a real syscall and the descriptor remains fully usable for subsequent *at
// operations afterwards.
func (d *Dir) ReadNames() ([]string, error) {
	// Rewind in case the directory was already listed through this handle.
	if _, err := unix.Seek(d.fd, 0, 0); err != nil {
		return nil, convertErr(err, "lseek", d.path)
	}
	var names []string
	buf := make([]byte, 8192)
	for {
		var n int
		err := retry(func() error {
			var err error
			n, err = unix.ReadDirent(d.fd, buf)
			return err
		})
		if err != nil {
			return nil, convertErr(err, "readdirent", d.path)
		}
		if n <= 0 {
			return names, nil
		}
		// ParseDirent skips ".", ".." and deleted entries.
		_, _, names = unix.ParseDirent(buf[:n], -1, names)
	}
}
