package ufs

import (
	iofs "io/fs"
)

var (
	// ErrIsDirectory is an error for when an operation that operates only on
	// files is given a path to a directory.
	ErrIsDirectory = errString("is a directory")
	// ErrNotDirectory is an error for when an operation that operates only on
	// directories is given a path to a file.
	ErrNotDirectory = errString("not a directory")
	// ErrBadPathResolution is an error for when a path cannot be resolved the
	// way the caller asked, such as a symlink where none may be followed.
	ErrBadPathResolution = errString("bad path resolution")
	// ErrNotRegular is an error for when an operation that operates only on
	// regular files is given a path to something else.
	ErrNotRegular = errString("not a regular file")

	// ErrExist is aliased for convenience, so consumers don't need to import
	// both this package and io/fs.
	ErrExist = iofs.ErrExist
	// ErrNotExist is aliased for convenience.
	ErrNotExist = iofs.ErrNotExist
	// ErrPermission is aliased for convenience.
	ErrPermission = iofs.ErrPermission
)

type errString string

func (e errString) Error() string {
	return string(e)
}

// PathError is aliased so consumers don't need to import io/fs alongside
// this package.
type PathError = iofs.PathError
