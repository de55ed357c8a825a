// Package chmodder changes file modes, optionally walking directory
// trees. Directories are reprocessed before their contents so that a
// mode granting traversal takes effect before descent.
package chmodder

import (
	"fmt"
	"io"
	"os"

	"emperror.dev/errors"

	"github.com/priyxstudio/coreutils/internal/mode"
	"github.com/priyxstudio/coreutils/internal/report"
	"github.com/priyxstudio/coreutils/internal/ufs"
	"github.com/priyxstudio/coreutils/internal/walk"
)

type Options struct {
	// Changes reports only files whose mode actually changed.
	Changes bool
	// Quiet suppresses most diagnostics. The exit status still
	// reflects failures.
	Quiet   bool
	Verbose bool
	// PreserveRoot refuses to operate recursively on "/".
	PreserveRoot bool
	Recursive    bool
	// Dereference applies the mode to a symlink's referent when the
	// operand itself is a link.
	Dereference bool
	// Follow selects which symlinks a recursive walk descends through.
	Follow walk.FollowMode
	// RefMode, when set, is the exact mode to apply, from --reference.
	// Otherwise Modes is folded over each file's current bits.
	RefMode *uint32
	Modes   *mode.Set
	// Umask is the process umask captured at startup, used to detect
	// requested bits that umask withheld.
	Umask uint32
}

type Chmodder struct {
	opts   Options
	report *report.Reporter
	out    io.Writer
}

func New(opts Options, rep *report.Reporter, out io.Writer) *Chmodder {
	return &Chmodder{opts: opts, report: rep, out: out}
}

// Run processes every operand. A fatal precondition such as operating
// recursively on "/" is returned as an error before any mode changes;
// per-file failures latch the reporter's status instead.
func (c *Chmodder) Run(files []string) error {
	if c.opts.Recursive && c.opts.PreserveRoot {
		for _, f := range files {
			if f == "/" {
				return errors.New("it is dangerous to operate recursively on '/'\nuse --no-preserve-root to override this failsafe")
			}
		}
	}
	for _, f := range files {
		c.runOne(f)
	}
	return nil
}

func (c *Chmodder) runOne(file string) {
	st, err := ufs.Lstat(file)
	if err != nil {
		if !c.opts.Quiet {
			c.report.Errorf("cannot access '%s': %v", file, reason(err))
		}
		c.report.Latch()
		return
	}
	if st.IsSymlink() {
		follow := c.opts.Dereference
		if c.opts.Recursive {
			// Under -R the traversal policy decides whether a
			// command-line symlink is entered, mirroring -H/-L/-P.
			follow = c.opts.Follow != walk.FollowNone
		}
		if !follow {
			// Link modes are immutable; nothing to change.
			return
		}
		ts, terr := ufs.Stat(file)
		if terr != nil {
			if !c.opts.Quiet {
				c.report.Errorf("cannot operate on dangling symlink '%s'", file)
			}
			c.report.Latch()
			return
		}
		st = ts
	}

	if c.opts.Recursive && st.IsDir() {
		// PrepareDir rather than EnterDir: the new mode has to land
		// before the walker opens the directory, or a mode string
		// that grants search permission could never take effect.
		w := walk.New(walk.NewPolicy(c.opts.Follow, false, -1, nil), c.report, walk.Callbacks{
			Entry:      c.entry,
			PrepareDir: c.prepareDir,
			DirError:   c.dirError,
		})
		if err := w.Run(file); err != nil {
			if !c.opts.Quiet {
				c.report.Errorf("cannot access '%s': %v", file, reason(err))
			}
			c.report.Latch()
		}
		return
	}
	c.apply(nil, "", file, st)
}

func (c *Chmodder) prepareDir(parent *ufs.Dir, name, path string, st ufs.EntryStat, _ int) error {
	c.apply(parent, name, path, st)
	return nil
}

func (c *Chmodder) entry(parent *ufs.Dir, name, path string, st ufs.EntryStat, _ int) error {
	if st.IsSymlink() {
		// Symlink modes are ignored by the kernel, so there is
		// nothing useful to change without following the link.
		if c.opts.Verbose {
			fmt.Fprintf(c.out, "neither symbolic link '%s' nor referent has been changed\n", path)
		}
		return nil
	}
	c.apply(parent, name, path, st)
	return nil
}

func (c *Chmodder) dirError(_, path string, _ ufs.EntryStat, _ int, err error) {
	if !c.opts.Quiet {
		c.report.ErrorOnce(path, "cannot read directory '%s': %v", path, reason(err))
	}
	c.report.Latch()
}

// apply computes and sets the new mode of one file. With a parent
// handle the change is issued fd-relative; only tree roots and
// non-recursive operands go through the path.
func (c *Chmodder) apply(parent *ufs.Dir, name, path string, st ufs.EntryStat) {
	cur := st.Perm()
	var next, naive uint32
	if c.opts.RefMode != nil {
		next, naive = *c.opts.RefMode, *c.opts.RefMode
	} else {
		next = c.opts.Modes.Apply(cur, st.IsDir(), c.opts.Umask)
		naive = c.opts.Modes.ApplyNaive(cur, st.IsDir())
	}

	if next == cur {
		if c.opts.Verbose && !c.opts.Changes {
			fmt.Fprintf(c.out, "mode of '%s' retained as %04o (%s)\n", path, cur, mode.Display(cur))
		}
	} else if err := c.chmod(parent, name, path, next); err != nil {
		if !c.opts.Quiet {
			c.report.Errorf("changing permissions of '%s': %v", path, reason(err))
		}
		c.report.Latch()
		if c.opts.Verbose {
			fmt.Fprintf(c.out, "failed to change mode of file '%s' from %04o (%s) to %04o (%s)\n",
				path, cur, mode.Display(cur), next, mode.Display(next))
		}
		return
	} else if c.opts.Verbose || c.opts.Changes {
		fmt.Fprintf(c.out, "mode of '%s' changed from %04o (%s) to %04o (%s)\n",
			path, cur, mode.Display(cur), next, mode.Display(next))
	}

	// A requested bit that umask silently withheld is an error, the
	// same as GNU reports for "chmod +w" under a restrictive umask.
	if next&^naive != 0 {
		c.report.Errorf("%s: new permissions are %s, not %s", path, mode.Display(next), mode.Display(naive))
	}
}

func (c *Chmodder) chmod(parent *ufs.Dir, name, path string, m uint32) error {
	if parent != nil {
		return parent.Chmod(name, m, true)
	}
	return os.Chmod(path, os.FileMode(m))
}

func reason(err error) error {
	var pe *ufs.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	return err
}
