//go:build !unix

package ufs

import (
	"os"
	"path/filepath"
)

// Open flag and at-flag stand-ins for platforms without fd-relative
// syscalls. Values mirror the Linux ones so client code can stay
// platform-agnostic.
const (
	O_RDONLY    = os.O_RDONLY
	O_WRONLY    = os.O_WRONLY
	O_RDWR      = os.O_RDWR
	O_CREATE    = os.O_CREATE
	O_EXCL      = os.O_EXCL
	O_TRUNC     = os.O_TRUNC
	O_DIRECTORY = 0x10000
	O_NOFOLLOW  = 0x20000
	O_CLOEXEC   = 0

	AT_SYMLINK_NOFOLLOW = 0x100
	AT_REMOVEDIR        = 0x200
)

// Dir emulates a directory descriptor by re-resolving the directory's path
// on every operation. This is a degraded mode: between any two operations
// the path can be re-pointed at a different object, so the TOCTOU guarantee
// of the unix implementation does not hold here.
type Dir struct {
	path string
}

func OpenDir(path string) (*Dir, error) {
	return openDir(path)
}

func OpenDirDeref(path string) (*Dir, error) {
	return openDir(path)
}

func openDir(path string) (*Dir, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &PathError{Op: "open", Path: path, Err: ErrNotDirectory}
	}
	return &Dir{path: filepath.Clean(path)}, nil
}

func (d *Dir) Path() string {
	return d.path
}

func (d *Dir) Fd() int {
	return -1
}

func (d *Dir) Close() error {
	return nil
}

func (d *Dir) OpenSubdir(name string, follow bool) (*Dir, error) {
	child := filepath.Join(d.path, name)
	if !follow {
		info, err := os.Lstat(child)
		if err != nil {
			return nil, err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return nil, &PathError{Op: "open", Path: child, Err: ErrBadPathResolution}
		}
	}
	return openDir(child)
}

func (d *Dir) OpenFile(name string, flags int, mode uint32) (*os.File, error) {
	return os.OpenFile(filepath.Join(d.path, name), flags, os.FileMode(mode))
}

func (d *Dir) StatEntry(name string, follow bool) (EntryStat, error) {
	child := filepath.Join(d.path, name)
	var (
		info os.FileInfo
		err  error
	)
	if follow {
		info, err = os.Stat(child)
	} else {
		info, err = os.Lstat(child)
	}
	if err != nil {
		return EntryStat{}, err
	}
	return fromFileInfo(info), nil
}

func (d *Dir) StatSelf() (EntryStat, error) {
	info, err := os.Stat(d.path)
	if err != nil {
		return EntryStat{}, err
	}
	return fromFileInfo(info), nil
}

func (d *Dir) ReadNames() ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func (d *Dir) Chmod(name string, mode uint32, follow bool) error {
	child := filepath.Join(d.path, name)
	if !follow {
		info, err := os.Lstat(child)
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			// No lchmod equivalent here; leave the link untouched.
			return nil
		}
	}
	return os.Chmod(child, os.FileMode(mode&0o777))
}

func (d *Dir) Chown(name string, uid, gid int, follow bool) error {
	child := filepath.Join(d.path, name)
	if follow {
		return os.Chown(child, uid, gid)
	}
	return os.Lchown(child, uid, gid)
}

func (d *Dir) Unlink(name string, isDir bool) error {
	return os.Remove(filepath.Join(d.path, name))
}

func (d *Dir) Readlink(name string) (string, error) {
	return os.Readlink(filepath.Join(d.path, name))
}

func Lstat(path string) (EntryStat, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return EntryStat{}, err
	}
	return fromFileInfo(info), nil
}

func Stat(path string) (EntryStat, error) {
	info, err := os.Stat(path)
	if err != nil {
		return EntryStat{}, err
	}
	return fromFileInfo(info), nil
}

func fromFileInfo(info os.FileInfo) EntryStat {
	st := EntryStat{
		Size:   info.Size(),
		Blocks: (info.Size() + 511) / 512,
		Nlink:  1,
		Atime:  info.ModTime(),
		Mtime:  info.ModTime(),
	}
	switch {
	case info.IsDir():
		st.Mode = TypeDir
	case info.Mode()&os.ModeSymlink != 0:
		st.Mode = TypeSymlink
	default:
		st.Mode = TypeRegular
	}
	st.Mode |= uint32(info.Mode().Perm())
	return st
}
