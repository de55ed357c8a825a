// Package du aggregates disk usage over a directory tree. Traversal and
// accounting run on the caller's goroutine while a printer goroutine
// renders finished directories, so deep trees start producing output
// before the walk completes.
package du

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"emperror.dev/errors"
	"golang.org/x/sync/errgroup"

	"github.com/priyxstudio/coreutils/internal/report"
	"github.com/priyxstudio/coreutils/internal/ufs"
	"github.com/priyxstudio/coreutils/internal/walk"
)

// Deref controls which symlinks are followed during accounting.
type Deref int

const (
	// DerefNone counts every symlink as the link object itself.
	DerefNone Deref = iota
	// DerefArgs follows symlinks given as command line operands only.
	DerefArgs
	// DerefAll follows every symlink encountered.
	DerefAll
)

// Options mirrors the du command line.
type Options struct {
	All           bool
	ApparentSize  bool
	BlockSize     uint64
	CountLinks    bool
	Deref         Deref
	Excludes      []string
	Format        SizeFormat
	Inodes        bool
	MaxDepth      int // negative means unlimited
	NulEnding     bool
	OneFileSystem bool
	SeparateDirs  bool
	Summarize     bool
	// Threshold excludes entries smaller than it when positive and
	// entries greater than its magnitude when negative. Zero disables.
	Threshold int64
	Total     bool
	// UnreadableDirBlocks is charged for a directory whose contents
	// cannot be listed and whose own stat reports zero blocks.
	UnreadableDirBlocks int64
}

// Validate rejects option combinations du refuses to run with.
func (o Options) Validate() error {
	if o.Summarize && o.All {
		return errors.New("cannot both summarize and show all entries")
	}
	if o.Summarize && o.MaxDepth >= 0 {
		return errors.Errorf("summarizing conflicts with --max-depth=%d", o.MaxDepth)
	}
	return nil
}

type stat struct {
	path   string
	size   uint64
	blocks uint64
	inodes uint64
}

type statInfo struct {
	stat
	depth int
}

// Runner owns one du invocation.
type Runner struct {
	opts   Options
	report *report.Reporter
	out    io.Writer
}

func New(opts Options, rep *report.Reporter, out io.Writer) *Runner {
	return &Runner{opts: opts, report: rep, out: out}
}

// Run walks every root in order and prints aggregated sizes. Diagnostics
// latch the reporter's exit status; the returned error covers only
// failures to write output.
func (r *Runner) Run(roots []string) error {
	ch := make(chan statInfo, 64)
	var g errgroup.Group
	g.Go(func() error {
		return r.printStats(ch)
	})

	follow := walk.FollowNone
	switch r.opts.Deref {
	case DerefArgs:
		follow = walk.FollowTop
	case DerefAll:
		follow = walk.FollowAll
	}
	pol := walk.NewPolicy(follow, r.opts.OneFileSystem, -1, r.opts.Excludes)

	for _, root := range roots {
		acc := &accumulator{r: r, out: ch, seen: walk.NewVisited()}
		w := walk.New(pol, r.report, walk.Callbacks{
			Entry:    acc.entry,
			EnterDir: acc.enterDir,
			LeaveDir: acc.leaveDir,
			DirError: acc.dirError,
		})
		if err := w.Run(root); err != nil {
			if si, ok := r.unreadableRoot(root, err); ok {
				ch <- si
				continue
			}
			r.report.Errorf("cannot access '%s': %v", root, reason(err))
		}
	}
	close(ch)
	return g.Wait()
}

// unreadableRoot turns a permission failure opening a root operand into
// the same minimal aggregate an unreadable nested directory gets, so the
// operand still appears in the output instead of vanishing.
func (r *Runner) unreadableRoot(root string, err error) (statInfo, bool) {
	if !errors.Is(err, ufs.ErrPermission) {
		return statInfo{}, false
	}
	st, serr := ufs.Lstat(root)
	if serr != nil || !st.IsDir() {
		return statInfo{}, false
	}
	r.report.ErrorOnce(root, "cannot read directory '%s': %v", root, reason(err))
	blocks := uint64(st.Blocks)
	if blocks == 0 {
		blocks = uint64(r.opts.UnreadableDirBlocks)
	}
	return statInfo{
		stat: stat{path: root, size: uint64(st.Size), blocks: blocks, inodes: st.Nlink},
	}, true
}

type accumulator struct {
	r     *Runner
	out   chan<- statInfo
	stack []stat
	seen  walk.Visited
}

func (a *accumulator) entry(_ *ufs.Dir, _, path string, st ufs.EntryStat, depth int) error {
	// Every non-directory consults the visited set, not just files with
	// multiple links: under --dereference the same inode can also be
	// reached through a symlink.
	if !a.seen.Add(st.ID()) && !a.r.opts.CountLinks {
		return nil
	}
	fs := stat{path: path, size: uint64(st.Size), blocks: uint64(st.Blocks), inodes: 1}
	if len(a.stack) == 0 {
		// Non-directory operand.
		a.out <- statInfo{stat: fs, depth: 0}
		return nil
	}
	if a.r.opts.All {
		a.out <- statInfo{stat: fs, depth: depth}
	}
	a.fold(fs)
	return nil
}

func (a *accumulator) enterDir(_, _ *ufs.Dir, _, path string, st ufs.EntryStat, _ int) (bool, error) {
	a.stack = append(a.stack, stat{path: path, blocks: uint64(st.Blocks), inodes: 1})
	return true, nil
}

func (a *accumulator) leaveDir(_, _ string, _ ufs.EntryStat, depth int) error {
	top := a.stack[len(a.stack)-1]
	a.stack = a.stack[:len(a.stack)-1]
	a.out <- statInfo{stat: top, depth: depth}
	if len(a.stack) > 0 && !a.r.opts.SeparateDirs {
		a.fold(top)
	}
	return nil
}

func (a *accumulator) dirError(_, path string, st ufs.EntryStat, depth int, err error) {
	a.r.report.ErrorOnce(path, "cannot read directory '%s': %v", path, reason(err))
	if len(a.stack) > 0 && a.stack[len(a.stack)-1].path == path {
		// The directory itself was opened but not listed. du still
		// charges the directory's own footprint.
		top := &a.stack[len(a.stack)-1]
		top.size = uint64(st.Size)
		top.inodes = st.Nlink
		if top.blocks == 0 {
			top.blocks = uint64(a.r.opts.UnreadableDirBlocks)
		}
		return
	}
	// The directory could not even be opened, so nothing was pushed. A
	// minimal aggregate keeps the entry in the output and in its
	// parent's total.
	fs := stat{path: path, size: uint64(st.Size), blocks: uint64(st.Blocks), inodes: st.Nlink}
	if fs.blocks == 0 {
		fs.blocks = uint64(a.r.opts.UnreadableDirBlocks)
	}
	a.out <- statInfo{stat: fs, depth: depth}
	if len(a.stack) > 0 && !a.r.opts.SeparateDirs {
		a.fold(fs)
	}
}

func (a *accumulator) fold(child stat) {
	top := &a.stack[len(a.stack)-1]
	top.size += child.size
	top.blocks += child.blocks
	top.inodes += child.inodes
}

func (r *Runner) printStats(ch <-chan statInfo) error {
	var grand uint64
	for si := range ch {
		size := r.chooseSize(si.stat)
		if si.depth == 0 {
			grand += size
		}
		if r.thresholdExcludes(size) {
			continue
		}
		if r.opts.MaxDepth >= 0 && si.depth > r.opts.MaxDepth {
			continue
		}
		if r.opts.Summarize && si.depth != 0 {
			continue
		}
		if _, err := fmt.Fprintf(r.out, "%s\t%s%c", r.convertSize(size), si.path, r.ending()); err != nil {
			return errors.WrapIf(err, "writing output")
		}
	}
	if r.opts.Total {
		if _, err := fmt.Fprintf(r.out, "%s\ttotal%c", r.convertSize(grand), r.ending()); err != nil {
			return errors.WrapIf(err, "writing output")
		}
	}
	return nil
}

func (r *Runner) chooseSize(st stat) uint64 {
	switch {
	case r.opts.Inodes:
		return st.inodes
	case r.opts.ApparentSize:
		return st.size
	default:
		// st_blocks counts 512-byte units regardless of the
		// filesystem's actual block size.
		return st.blocks * 512
	}
}

func (r *Runner) convertSize(size uint64) string {
	switch r.opts.Format {
	case FormatHumanBinary:
		return humanReadable(size, 1024)
	case FormatHumanDecimal:
		return humanReadable(size, 1000)
	default:
		if r.opts.Inodes {
			// Inode counts are never scaled by a block size.
			return strconv.FormatUint(size, 10)
		}
		bs := r.opts.BlockSize
		if bs == 0 {
			bs = 1024
		}
		return strconv.FormatUint((size+bs-1)/bs, 10)
	}
}

func (r *Runner) thresholdExcludes(size uint64) bool {
	t := r.opts.Threshold
	switch {
	case t > 0:
		return size < uint64(t)
	case t < 0:
		return size > uint64(-t)
	default:
		return false
	}
}

func (r *Runner) ending() byte {
	if r.opts.NulEnding {
		return 0
	}
	return '\n'
}

// DedupRoots drops operands naming the same path, matching du's
// behavior when -l is not given. With deref the comparison happens on
// resolved paths so a link and its target count once.
func DedupRoots(roots []string, countLinks, deref bool) []string {
	if countLinks {
		return roots
	}
	seen := make(map[string]struct{}, len(roots))
	kept := roots[:0]
	for _, root := range roots {
		key := root
		if deref {
			if resolved, err := filepath.EvalSymlinks(root); err == nil {
				key = resolved
			}
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, root)
	}
	return kept
}

// ReadRoots parses a NUL separated operand list, for --files0-from.
// The name "-" reads standard input.
func ReadRoots(name string) ([]string, error) {
	var data []byte
	var err error
	if name == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return nil, errors.WrapIf(err, "cannot read file names")
	}
	parts := bytes.Split(data, []byte{0})
	var roots []string
	for i, part := range parts {
		if len(part) == 0 {
			if i == len(parts)-1 {
				break
			}
			return nil, errors.Errorf("%s:%d: invalid zero-length file name", name, i+1)
		}
		roots = append(roots, string(part))
	}
	return roots, nil
}

func reason(err error) error {
	var pe *ufs.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	return err
}
