package ufs

import "time"

// File type and permission masks of a raw st_mode, identical across the
// unices we build for.
const (
	TypeMask    = 0o170000
	TypeDir     = 0o040000
	TypeRegular = 0o100000
	TypeSymlink = 0o120000

	// PermMask covers the permission bits plus setuid, setgid and sticky.
	PermMask = 0o7777
)

// EntryStat is the raw result of a single stat syscall. A fresh value is
// fetched per syscall and never cached across directory mutations.
type EntryStat struct {
	// Dev is the ID of the device containing the file.
	Dev uint64
	// Ino is the inode number.
	Ino uint64
	// Mode holds the raw st_mode bits, file type included.
	Mode uint32
	// Size is the apparent size in bytes.
	Size int64
	// Blocks is the number of 512-byte blocks allocated.
	Blocks int64
	// Nlink is the number of hard links.
	Nlink uint64
	// Uid and Gid identify the owning user and group.
	Uid uint32
	Gid uint32
	// Atime and Mtime are the access and modification times.
	Atime time.Time
	Mtime time.Time
}

// FileID identifies the underlying storage object of an entry. Two directory
// entries with the same FileID are hard links to the same object.
type FileID struct {
	Dev uint64
	Ino uint64
}

func (s EntryStat) IsDir() bool {
	return s.Mode&TypeMask == TypeDir
}

func (s EntryStat) IsRegular() bool {
	return s.Mode&TypeMask == TypeRegular
}

func (s EntryStat) IsSymlink() bool {
	return s.Mode&TypeMask == TypeSymlink
}

// Perm returns the permission bits, setuid/setgid/sticky included.
func (s EntryStat) Perm() uint32 {
	return s.Mode & PermMask
}

// ID returns the (device, inode) pair for hardlink and cycle detection.
func (s EntryStat) ID() FileID {
	return FileID{Dev: s.Dev, Ino: s.Ino}
}
