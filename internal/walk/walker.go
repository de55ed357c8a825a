// Package walk implements a race-free depth-first traversal driver on top
// of the ufs directory handles. The walker recurses by opening child
// directories relative to the parent's descriptor, never by re-resolving a
// path from scratch.
package walk

import (
	"path/filepath"

	"github.com/apex/log"

	"github.com/priyxstudio/coreutils/internal/report"
	"github.com/priyxstudio/coreutils/internal/ufs"
)

// Callbacks are the client hooks invoked per visited node. Any error
// returned from a hook aborts the walk and is handed back to the caller;
// recoverable per-entry failures never reach the hooks as errors.
//
// For a directory the walker calls EnterDir, descends, then LeaveDir, so a
// pre-order client does its work in EnterDir and a post-order aggregator in
// LeaveDir. Entry is called for everything that is not a directory after
// follow resolution.
type Callbacks struct {
	Entry func(parent *ufs.Dir, name, path string, st ufs.EntryStat, depth int) error
	// PrepareDir runs after a directory is statted but before it is
	// opened, so a client can first make the directory enterable, the
	// way a recursive mode change must.
	PrepareDir func(parent *ufs.Dir, name, path string, st ufs.EntryStat, depth int) error
	EnterDir   func(parent, dir *ufs.Dir, name, path string, st ufs.EntryStat, depth int) (descend bool, err error)
	LeaveDir   func(name, path string, st ufs.EntryStat, depth int) error
	// DirError is invoked when a directory below the root cannot be
	// opened or listed. When nil the walker emits a single diagnostic for
	// the directory itself and moves on.
	DirError func(name, path string, st ufs.EntryStat, depth int, err error)
}

// Walker drives one traversal per Run call. Sibling order is whatever the
// OS returns; no ordering guarantee exists.
type Walker struct {
	Policy Policy
	Report *report.Reporter
	Calls  Callbacks

	visited Visited
}

func New(pol Policy, rep *report.Reporter, cb Callbacks) *Walker {
	return &Walker{Policy: pol, Report: rep, Calls: cb}
}

// Visited exposes the (device, inode) set of the current Run so clients can
// fold their own hardlink accounting into the same set.
func (w *Walker) Visited() Visited {
	return w.visited
}

// Run walks one root argument. A failure to resolve or open the root is
// fatal for this argument only and is returned to the caller; sibling
// roots of a multi-path invocation are unaffected.
func (w *Walker) Run(root string) error {
	w.visited = NewVisited()

	st, err := ufs.Lstat(root)
	if err != nil {
		return err
	}
	if st.IsSymlink() && w.Policy.FollowAt(0) {
		// A dangling command-line symlink degrades to the link itself.
		if ts, err := ufs.Stat(root); err == nil {
			st = ts
		}
	}

	if !st.IsDir() {
		w.visited.Add(st.ID())
		if w.Calls.Entry != nil {
			return w.Calls.Entry(nil, filepath.Base(root), root, st, 0)
		}
		return nil
	}

	if w.Calls.PrepareDir != nil {
		if err := w.Calls.PrepareDir(nil, filepath.Base(root), root, st, 0); err != nil {
			return err
		}
	}

	var d *ufs.Dir
	if w.Policy.FollowAt(0) {
		d, err = ufs.OpenDirDeref(root)
	} else {
		d, err = ufs.OpenDir(root)
	}
	if err != nil {
		return err
	}
	defer d.Close()

	self, err := d.StatSelf()
	if err != nil {
		return err
	}
	w.visited.Add(self.ID())

	descend := true
	if w.Calls.EnterDir != nil {
		descend, err = w.Calls.EnterDir(nil, d, filepath.Base(root), root, self, 0)
		if err != nil {
			return err
		}
	}
	if descend {
		if err := w.walkDir(d, root, self, 0); err != nil {
			return err
		}
	}
	if w.Calls.LeaveDir != nil {
		return w.Calls.LeaveDir(filepath.Base(root), root, self, 0)
	}
	return nil
}

// walkDir visits the children of an open directory. Only callback errors
// propagate; everything else is recovered locally so siblings continue.
func (w *Walker) walkDir(d *ufs.Dir, path string, self ufs.EntryStat, depth int) error {
	if !w.Policy.WithinDepth(depth + 1) {
		return nil
	}

	names, err := d.ReadNames()
	if err != nil {
		w.dirError(filepath.Base(path), path, self, depth, err)
		return nil
	}
	log.WithField("path", path).WithField("entries", len(names)).Debug("walking directory")

	for _, name := range names {
		childDepth := depth + 1
		childPath := Join(path, name)
		if w.Policy.Excluded(childPath, name) {
			continue
		}

		follow := w.Policy.FollowAt(childDepth)
		st, err := d.StatEntry(name, follow)
		if err != nil && follow {
			// Dangling symlink: fall back to the link itself.
			st, err = d.StatEntry(name, false)
		}
		if err != nil {
			w.Report.Errorf("cannot access '%s': %v", childPath, cause(err))
			continue
		}

		// Crossing onto another filesystem prunes the whole subtree
		// without accounting or diagnostics.
		if w.Policy.OneFileSystem && st.Dev != self.Dev {
			continue
		}

		if !st.IsDir() {
			if w.Calls.Entry != nil {
				if err := w.Calls.Entry(d, name, childPath, st, childDepth); err != nil {
					return err
				}
			}
			continue
		}

		// A directory already in the visited set would recurse forever
		// through a symlink cycle, or double-count a hardlinked tree.
		if w.visited.Seen(st.ID()) {
			continue
		}
		w.visited.Add(st.ID())

		if w.Calls.PrepareDir != nil {
			if err := w.Calls.PrepareDir(d, name, childPath, st, childDepth); err != nil {
				return err
			}
		}

		sub, err := d.OpenSubdir(name, follow)
		if err != nil {
			w.dirError(name, childPath, st, childDepth, err)
			continue
		}
		if err := w.visitDir(d, sub, name, childPath, st, childDepth); err != nil {
			sub.Close()
			return err
		}
		sub.Close()
	}
	return nil
}

func (w *Walker) visitDir(parent, sub *ufs.Dir, name, path string, st ufs.EntryStat, depth int) error {
	self, err := sub.StatSelf()
	if err != nil {
		self = st
	}

	descend := true
	if w.Calls.EnterDir != nil {
		descend, err = w.Calls.EnterDir(parent, sub, name, path, st, depth)
		if err != nil {
			return err
		}
	}
	if descend {
		if err := w.walkDir(sub, path, self, depth); err != nil {
			return err
		}
	}
	if w.Calls.LeaveDir != nil {
		return w.Calls.LeaveDir(name, path, st, depth)
	}
	return nil
}

func (w *Walker) dirError(name, path string, st ufs.EntryStat, depth int, err error) {
	if w.Calls.DirError != nil {
		w.Calls.DirError(name, path, st, depth, err)
		return
	}
	w.Report.ErrorOnce(path, "cannot read directory '%s': %v", path, cause(err))
}

// cause unwraps a PathError to its bare reason so diagnostics read like
// "cannot access 'x': permission denied" instead of repeating the path.
func cause(err error) error {
	if pe, ok := err.(*ufs.PathError); ok {
		return pe.Err
	}
	return err
}
