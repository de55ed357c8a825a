// Package copier implements recursive file copying on top of the
// fd-relative traversal layer. Directories are created with reduced
// permissions while the tree is still being populated and receive their
// final attributes afterwards, deepest first, so a hostile process never
// sees a world-accessible half-copied directory.
package copier

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"emperror.dev/errors"

	"github.com/priyxstudio/coreutils/internal/report"
	"github.com/priyxstudio/coreutils/internal/ufs"
	"github.com/priyxstudio/coreutils/internal/walk"
)

// Deref controls symlink handling for sources, mirroring cp's -P, -H
// and -L flags. DerefNone is the default for recursive copies.
type Deref int

const (
	DerefNone Deref = iota
	DerefArgs
	DerefAll
)

// Preserve selects source attributes to carry onto the copies.
type Preserve struct {
	Mode       bool
	Ownership  bool
	Timestamps bool
	// Links recreates hard link groups on the destination instead of
	// duplicating content.
	Links bool
}

type Options struct {
	Recursive bool
	Deref     Deref
	// Parents recreates the full source path under the target
	// directory, cp --parents.
	Parents  bool
	Verbose  bool
	Preserve Preserve
	// Umask is the process umask captured at startup. Mkdir and open
	// apply it in the kernel; it is needed here to compute the final
	// mode of directories whose attributes are not preserved.
	Umask uint32
}

// dirFix is one directory awaiting its final attributes.
type dirFix struct {
	src     string
	dest    string
	st      ufs.EntryStat
	created bool
}

type Copier struct {
	opts   Options
	report *report.Reporter
	out    io.Writer

	srcRoot  string
	destRoot string
	dirs     []dirFix
	parents  []dirFix
	linked   map[ufs.FileID]string
}

func New(opts Options, rep *report.Reporter, out io.Writer) *Copier {
	return &Copier{opts: opts, report: rep, out: out, linked: make(map[ufs.FileID]string)}
}

// Dest computes the destination path for one source operand. With
// Parents the source's own directories are recreated under target and
// recorded for attribute finalization.
func (c *Copier) Dest(source, target string) (string, error) {
	if !c.opts.Parents {
		return filepath.Join(target, filepath.Base(source)), nil
	}
	dest := filepath.Join(target, source)
	rel := filepath.Dir(source)
	for _, anc := range ancestors(rel) {
		destAnc := filepath.Join(target, anc)
		created := false
		if err := os.Mkdir(destAnc, 0o777); err == nil {
			created = true
			if c.opts.Verbose {
				fmt.Fprintf(c.out, "%s -> %s\n", anc, destAnc)
			}
		} else if !errors.Is(err, ufs.ErrExist) {
			return "", errors.WrapIff(err, "cannot make directory '%s'", destAnc)
		}
		st, err := ufs.Stat(anc)
		if err == nil {
			c.parents = append(c.parents, dirFix{src: anc, dest: destAnc, st: st, created: created})
		}
	}
	return dest, nil
}

// ancestors lists rel's path prefixes shallowest first: "a/b/c" yields
// "a", "a/b", "a/b/c".
func ancestors(rel string) []string {
	if rel == "." || rel == "/" || rel == "" {
		return nil
	}
	parts := strings.Split(filepath.Clean(rel), string(filepath.Separator))
	out := make([]string, 0, len(parts))
	for i := range parts {
		p := filepath.Join(parts[:i+1]...)
		if p == "" || p == "." {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Copy copies source to the exact destination path dest. Directories
// require Recursive; symlink operands follow the Deref setting.
func (c *Copier) Copy(source, dest string) error {
	st, err := ufs.Lstat(source)
	if err != nil {
		return errors.WrapIff(err, "cannot stat '%s'", source)
	}
	if st.IsSymlink() {
		if c.opts.Deref == DerefNone {
			return c.recreateLinkPath(source, dest)
		}
		if st, err = ufs.Stat(source); err != nil {
			return errors.WrapIff(err, "cannot stat '%s'", source)
		}
	}
	if !st.IsDir() {
		return c.copyRegularPath(source, dest, st)
	}
	if !c.opts.Recursive {
		return errors.Errorf("-r not specified; omitting directory '%s'", source)
	}
	if err := rejectSelfCopy(source, dest); err != nil {
		return err
	}
	return c.copyTree(source, dest)
}

// rejectSelfCopy refuses copying a directory into its own subtree.
func rejectSelfCopy(source, dest string) error {
	src, err := filepath.EvalSymlinks(source)
	if err != nil {
		src = filepath.Clean(source)
	}
	dst := filepath.Clean(dest)
	if resolved, err := filepath.EvalSymlinks(filepath.Dir(dst)); err == nil {
		dst = filepath.Join(resolved, filepath.Base(dst))
	}
	if dst == src || strings.HasPrefix(dst, src+string(filepath.Separator)) {
		return errors.Errorf("cannot copy a directory, '%s', into itself, '%s'", source, dest)
	}
	return nil
}

func (c *Copier) copyTree(source, dest string) error {
	c.srcRoot = filepath.Clean(source)
	c.destRoot = filepath.Clean(dest)
	c.dirs = c.dirs[:0]

	follow := walk.FollowNone
	switch c.opts.Deref {
	case DerefArgs:
		follow = walk.FollowTop
	case DerefAll:
		follow = walk.FollowAll
	}
	w := walk.New(walk.NewPolicy(follow, false, -1, nil), c.report, walk.Callbacks{
		Entry:    c.entry,
		EnterDir: c.enterDir,
		DirError: c.dirError,
	})
	err := w.Run(source)

	// Deepest directories first, so a parent's restrictive final mode
	// never blocks fixing its children.
	for i := len(c.dirs) - 1; i >= 0; i-- {
		c.finalize(c.dirs[i])
	}
	for i := len(c.parents) - 1; i >= 0; i-- {
		c.finalize(c.parents[i])
	}
	c.parents = c.parents[:0]
	return err
}

func (c *Copier) destPath(path string) string {
	rel, err := filepath.Rel(c.srcRoot, path)
	if err != nil || rel == "." {
		return c.destRoot
	}
	return filepath.Join(c.destRoot, rel)
}

func (c *Copier) enterDir(_, _ *ufs.Dir, _, path string, st ufs.EntryStat, _ int) (bool, error) {
	dest := c.destPath(path)
	created := false
	switch err := os.Mkdir(dest, os.FileMode(c.buildMode(st))); {
	case err == nil:
		created = true
		c.verbose(path, dest)
	case errors.Is(err, ufs.ErrExist):
		existing, serr := ufs.Lstat(dest)
		if serr == nil && !existing.IsDir() {
			return false, errors.Errorf("cannot overwrite non-directory '%s' with directory '%s'", dest, path)
		}
	default:
		c.report.Errorf("cannot create directory '%s': %v", dest, reason(err))
		return false, nil
	}
	c.dirs = append(c.dirs, dirFix{src: path, dest: dest, st: st, created: created})
	return true, nil
}

// buildMode is the temporary mode for a directory still being filled.
// Bits that would let other users in before ownership or the final mode
// is settled stay off until finalize.
func (c *Copier) buildMode(st ufs.EntryStat) uint32 {
	switch {
	case c.opts.Preserve.Ownership:
		return 0o700
	case c.opts.Preserve.Mode:
		return (st.Perm() | 0o700) &^ 0o022 & 0o777
	default:
		return 0o777
	}
}

func (c *Copier) entry(parent *ufs.Dir, name, path string, st ufs.EntryStat, depth int) error {
	dest := c.destPath(path)
	if st.IsSymlink() {
		return c.recreateLink(parent, name, path, dest)
	}
	if c.opts.Preserve.Links && st.Nlink > 1 {
		if prev, ok := c.linked[st.ID()]; ok {
			_ = os.Remove(dest)
			if err := os.Link(prev, dest); err != nil {
				return errors.WrapIff(err, "cannot create hard link '%s' to '%s'", dest, prev)
			}
			c.verbose(path, dest)
			return nil
		}
		c.linked[st.ID()] = dest
	}
	if !st.IsRegular() {
		c.report.Errorf("cannot copy special file '%s'", path)
		return nil
	}

	src, err := parent.OpenFile(name, ufs.O_RDONLY|ufs.O_NOFOLLOW, 0)
	if err != nil {
		if errors.Is(err, ufs.ErrPermission) && !c.opts.Preserve.Links {
			c.report.Errorf("cannot open '%s' for reading: %v", path, reason(err))
			return nil
		}
		return errors.WrapIff(err, "cannot open '%s' for reading", path)
	}
	defer src.Close()

	if err := c.writeFile(src, dest, st); err != nil {
		return err
	}
	c.applyFileAttributes(dest, st)
	c.verbose(path, dest)
	return nil
}

func (c *Copier) writeFile(src io.Reader, dest string, st ufs.EntryStat) error {
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(st.Perm()&0o777))
	if err != nil {
		return errors.WrapIff(err, "cannot create regular file '%s'", dest)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return errors.WrapIff(err, "error writing '%s'", dest)
	}
	return errors.WrapIff(out.Close(), "error writing '%s'", dest)
}

func (c *Copier) applyFileAttributes(dest string, st ufs.EntryStat) {
	if c.opts.Preserve.Mode {
		if err := os.Chmod(dest, os.FileMode(st.Perm())); err != nil {
			c.report.Errorf("setting permissions for '%s': %v", dest, reason(err))
		}
	}
	c.applyOwnerAndTimes(dest, st)
}

func (c *Copier) applyOwnerAndTimes(dest string, st ufs.EntryStat) {
	if c.opts.Preserve.Ownership {
		// Only root may give files away; everyone else gets EPERM,
		// which cp tolerates quietly.
		if err := os.Lchown(dest, int(st.Uid), int(st.Gid)); err != nil && !errors.Is(err, ufs.ErrPermission) {
			c.report.Errorf("failed to preserve ownership for '%s': %v", dest, reason(err))
		}
	}
	if c.opts.Preserve.Timestamps {
		if err := os.Chtimes(dest, st.Atime, st.Mtime); err != nil {
			c.report.Errorf("preserving times for '%s': %v", dest, reason(err))
		}
	}
}

func (c *Copier) finalize(d dirFix) {
	if c.opts.Preserve.Mode {
		if err := os.Chmod(d.dest, os.FileMode(d.st.Perm())); err != nil {
			c.report.Errorf("setting permissions for '%s': %v", d.dest, reason(err))
		}
	} else if d.created {
		if err := os.Chmod(d.dest, os.FileMode(0o777&^c.opts.Umask)); err != nil {
			c.report.Errorf("setting permissions for '%s': %v", d.dest, reason(err))
		}
	}
	c.applyOwnerAndTimes(d.dest, d.st)
}

func (c *Copier) recreateLink(parent *ufs.Dir, name, path, dest string) error {
	target, err := parent.Readlink(name)
	if err != nil {
		return errors.WrapIff(err, "cannot read symbolic link '%s'", path)
	}
	return c.makeLink(target, path, dest)
}

func (c *Copier) recreateLinkPath(source, dest string) error {
	target, err := os.Readlink(source)
	if err != nil {
		return errors.WrapIff(err, "cannot read symbolic link '%s'", source)
	}
	return c.makeLink(target, source, dest)
}

func (c *Copier) makeLink(target, source, dest string) error {
	if err := os.Symlink(target, dest); err != nil {
		if !errors.Is(err, ufs.ErrExist) {
			return errors.WrapIff(err, "cannot create symbolic link '%s'", dest)
		}
		if err := os.Remove(dest); err != nil {
			return errors.WrapIff(err, "cannot remove '%s'", dest)
		}
		if err := os.Symlink(target, dest); err != nil {
			return errors.WrapIff(err, "cannot create symbolic link '%s'", dest)
		}
	}
	c.verbose(source, dest)
	return nil
}

func (c *Copier) copyRegularPath(source, dest string, st ufs.EntryStat) error {
	src, err := os.Open(source)
	if err != nil {
		return errors.WrapIff(err, "cannot open '%s' for reading", source)
	}
	defer src.Close()
	if err := c.writeFile(src, dest, st); err != nil {
		return err
	}
	c.applyFileAttributes(dest, st)
	c.verbose(source, dest)
	return nil
}

func (c *Copier) dirError(_, path string, _ ufs.EntryStat, _ int, err error) {
	c.report.Errorf("cannot access '%s': %v", path, reason(err))
}

func (c *Copier) verbose(src, dest string) {
	if c.opts.Verbose {
		fmt.Fprintf(c.out, "'%s' -> '%s'\n", src, dest)
	}
}

func reason(err error) error {
	var pe *ufs.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	var le *os.LinkError
	if errors.As(err, &le) {
		return le.Err
	}
	return err
}
