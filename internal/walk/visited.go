package walk

import "github.com/priyxstudio/coreutils/internal/ufs"

// Visited is the set of (device, inode) pairs already seen by one
// top-level traversal. It is scoped to a single root argument and never
// shared across distinct roots, so the same path passed twice on the
// command line does not interfere with its own cycle detection.
type Visited map[ufs.FileID]struct{}

func NewVisited() Visited {
	return make(Visited)
}

// Seen reports whether the object was recorded before.
func (v Visited) Seen(id ufs.FileID) bool {
	_, ok := v[id]
	return ok
}

// Add records the object and reports whether it was new.
func (v Visited) Add(id ufs.FileID) bool {
	if _, ok := v[id]; ok {
		return false
	}
	v[id] = struct{}{}
	return true
}
