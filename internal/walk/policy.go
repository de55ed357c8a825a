package walk

import (
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"
)

// FollowMode controls how symlinks are treated during traversal.
type FollowMode int

const (
	// FollowNone never dereferences a symlink.
	FollowNone FollowMode = iota
	// FollowTop dereferences a symlink only when it was named directly on
	// the command line, never for nested symlinks.
	FollowTop
	// FollowAll dereferences every symlink.
	FollowAll
)

// Policy is the immutable configuration of one traversal. Construct it once
// per invocation; it is never mutated while walking.
type Policy struct {
	Follow FollowMode
	// OneFileSystem skips any subtree whose device differs from its
	// parent directory's device.
	OneFileSystem bool
	// MaxDepth bounds descent when non-negative. Entries below the limit
	// are not visited at all.
	MaxDepth int
	excludes *ignore.GitIgnore
}

// NewPolicy builds a Policy with the exclude patterns compiled once.
func NewPolicy(follow FollowMode, oneFS bool, maxDepth int, excludes []string) Policy {
	p := Policy{Follow: follow, OneFileSystem: oneFS, MaxDepth: maxDepth}
	if len(excludes) > 0 {
		p.excludes = ignore.CompileIgnoreLines(excludes...)
	}
	return p
}

// Excluded tests the patterns against both the full relative path and the
// bare name of an entry.
func (p Policy) Excluded(path, name string) bool {
	if p.excludes == nil {
		return false
	}
	return p.excludes.MatchesPath(path) || p.excludes.MatchesPath(name)
}

// FollowAt resolves the follow decision for an entry at the given depth.
// Depth 0 is the command-line argument itself.
func (p Policy) FollowAt(depth int) bool {
	switch p.Follow {
	case FollowAll:
		return true
	case FollowTop:
		return depth == 0
	default:
		return false
	}
}

// WithinDepth reports whether entries at the given depth are visited.
func (p Policy) WithinDepth(depth int) bool {
	return p.MaxDepth < 0 || depth <= p.MaxDepth
}

// Join builds the display path of a child entry.
func Join(parent, name string) string {
	if parent == "" {
		return name
	}
	return filepath.Join(parent, name)
}
