//go:build unix

// Package ufs provides a TOCTOU-safe filesystem layer for recursive
// traversal. Every operation resolves a name relative to an already-open
// directory descriptor rather than a fresh path, so a concurrent process
// cannot substitute a different object between check and use.
package ufs

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Dir owns one open directory descriptor. It is exclusively owned by the
// stack frame that opened it and must be released on every exit path. Pass
// it by reference to recursive calls, never copy it.
type Dir struct {
	fd   int
	path string
}

// OpenDir opens a directory read-only, close-on-exec, without following a
// symlink in the final path component.
func OpenDir(path string) (*Dir, error) {
	return openDir(path, O_RDONLY|O_DIRECTORY|O_CLOEXEC|O_NOFOLLOW)
}

// OpenDirDeref opens a directory like OpenDir but follows a symlink in the
// final component. This is only for paths named directly on the command
// line; nested descent always goes through OpenSubdir.
func OpenDirDeref(path string) (*Dir, error) {
	return openDir(path, O_RDONLY|O_DIRECTORY|O_CLOEXEC)
}

func openDir(path string, flags int) (*Dir, error) {
	fd, err := retryOpen(func() (int, error) {
		return unix.Open(path, flags, 0)
	})
	if err != nil {
		return nil, convertErr(err, "open", path)
	}
	return &Dir{fd: fd, path: path}, nil
}

// Path returns the path the directory was opened with. It is only for
// diagnostics; the directory may have been renamed since.
func (d *Dir) Path() string {
	return d.path
}

// Fd returns the raw descriptor.
func (d *Dir) Fd() int {
	return d.fd
}

// Close releases the descriptor. Calling it twice is safe.
func (d *Dir) Close() error {
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return convertErr(err, "close", d.path)
}

// OpenSubdir opens a child directory relative to this descriptor. With
// follow unset a symlink in place of the child is refused.
func (d *Dir) OpenSubdir(name string, follow bool) (*Dir, error) {
	flags := O_RDONLY | O_DIRECTORY | O_CLOEXEC
	if !follow {
		flags |= O_NOFOLLOW
	}
	fd, err := retryOpen(func() (int, error) {
		return unix.Openat(d.fd, name, flags, 0)
	})
	if err != nil {
		return nil, convertErr(err, "openat", d.childPath(name))
	}
	return &Dir{fd: fd, path: d.childPath(name)}, nil
}

// OpenFile opens a non-directory child relative to this descriptor and
// wraps it in an os.File, which takes over ownership of the descriptor.
func (d *Dir) OpenFile(name string, flags int, mode uint32) (*os.File, error) {
	fd, err := retryOpen(func() (int, error) {
		return unix.Openat(d.fd, name, flags|O_CLOEXEC, mode)
	})
	if err != nil {
		return nil, convertErr(err, "openat", d.childPath(name))
	}
	return os.NewFile(uintptr(fd), d.childPath(name)), nil
}

// StatEntry stats a child by name. With follow unset the stat never
// dereferences, even if the child is a symlink.
func (d *Dir) StatEntry(name string, follow bool) (EntryStat, error) {
	var st unix.Stat_t
	err := retry(func() error {
		return unix.Fstatat(d.fd, name, &st, atFlags(follow))
	})
	if err != nil {
		return EntryStat{}, convertErr(err, "fstatat", d.childPath(name))
	}
	return fromStat(&st), nil
}

// StatSelf stats the directory through its own open descriptor. The result
// refers to the object that was opened even if the directory has since been
// renamed or replaced.
func (d *Dir) StatSelf() (EntryStat, error) {
	var st unix.Stat_t
	err := retry(func() error {
		return unix.Fstat(d.fd, &st)
	})
	if err != nil {
		return EntryStat{}, convertErr(err, "fstat", d.path)
	}
	return fromStat(&st), nil
}

// Chmod changes the mode of a child by name.
func (d *Dir) Chmod(name string, mode uint32, follow bool) error {
	err := retry(func() error {
		return unix.Fchmodat(d.fd, name, mode, atFlags(follow))
	})
	return convertErr(err, "fchmodat", d.childPath(name))
}

// Chown changes the ownership of a child by name.
func (d *Dir) Chown(name string, uid, gid int, follow bool) error {
	err := retry(func() error {
		return unix.Fchownat(d.fd, name, uid, gid, atFlags(follow))
	})
	return convertErr(err, "fchownat", d.childPath(name))
}

// Unlink removes a child by name. Directories must be removed with isDir
// set, everything else with it unset.
func (d *Dir) Unlink(name string, isDir bool) error {
	var flags int
	if isDir {
		flags = AT_REMOVEDIR
	}
	err := retry(func() error {
		return unix.Unlinkat(d.fd, name, flags)
	})
	return convertErr(err, "unlinkat", d.childPath(name))
}

// Readlink reads the target of a symlink child by name.
func (d *Dir) Readlink(name string) (string, error) {
	for size := 128; ; size *= 2 {
		buf := make([]byte, size)
		var n int
		err := retry(func() error {
			var err error
			n, err = unix.Readlinkat(d.fd, name, buf)
			return err
		})
		if err != nil {
			return "", convertErr(err, "readlinkat", d.childPath(name))
		}
		if n < size {
			return string(buf[:n]), nil
		}
	}
}

func (d *Dir) childPath(name string) string {
	return filepath.Join(d.path, name)
}

func atFlags(follow bool) int {
	if follow {
		return 0
	}
	return AT_SYMLINK_NOFOLLOW
}

// Lstat stats a path without following a final symlink. Only for resolving
// root arguments; everything below a root goes through StatEntry.
func Lstat(path string) (EntryStat, error) {
	var st unix.Stat_t
	err := retry(func() error {
		return unix.Lstat(path, &st)
	})
	if err != nil {
		return EntryStat{}, convertErr(err, "lstat", path)
	}
	return fromStat(&st), nil
}

// Stat stats a path, following symlinks. Only for resolving root arguments.
func Stat(path string) (EntryStat, error) {
	var st unix.Stat_t
	err := retry(func() error {
		return unix.Stat(path, &st)
	})
	if err != nil {
		return EntryStat{}, convertErr(err, "stat", path)
	}
	return fromStat(&st), nil
}

func fromStat(st *unix.Stat_t) EntryStat {
	// st_dev and st_nlink have narrower types on some platforms, and the
	// timestamp fields are named differently, so those go through a
	// platform helper.
	atime, mtime := statTimes(st)
	return EntryStat{
		Dev:    uint64(st.Dev),
		Ino:    uint64(st.Ino),
		Mode:   uint32(st.Mode),
		Size:   st.Size,
		Blocks: st.Blocks,
		Nlink:  uint64(st.Nlink),
		Uid:    st.Uid,
		Gid:    st.Gid,
		Atime:  atime,
		Mtime:  mtime,
	}
}

// retry re-issues a syscall while it reports EINTR, matching Go's stdlib.
func retry(fn func() error) error {
	for {
		err := fn()
		if err != unix.EINTR {
			return err
		}
	}
}

func retryOpen(fn func() (int, error)) (int, error) {
	for {
		fd, err := fn()
		if err != unix.EINTR {
			return fd, err
		}
	}
}
