package walk_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/priyxstudio/coreutils/internal/report"
	"github.com/priyxstudio/coreutils/internal/ufs"
	"github.com/priyxstudio/coreutils/internal/walk"
)

func buildTree(t *testing.T, layout map[string]string) string {
	t.Helper()
	root, err := os.MkdirTemp(os.TempDir(), "walk")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(root) })
	for rel, content := range layout {
		p := filepath.Join(root, rel)
		if content == "DIR" {
			if err := os.MkdirAll(p, 0o755); err != nil {
				t.Fatal(err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

// collect walks the root and returns the visited paths relative to it,
// sorted. Sibling order is OS defined, so tests never assert on it.
func collect(t *testing.T, root string, pol walk.Policy) ([]string, *report.Reporter) {
	t.Helper()
	var buf bytes.Buffer
	rep := report.NewWriter("walk", &buf)
	var paths []string
	w := walk.New(pol, rep, walk.Callbacks{
		Entry: func(_ *ufs.Dir, _, path string, _ ufs.EntryStat, _ int) error {
			paths = append(paths, path)
			return nil
		},
		EnterDir: func(_, _ *ufs.Dir, _, path string, _ ufs.EntryStat, _ int) (bool, error) {
			paths = append(paths, path)
			return true, nil
		},
	})
	if err := w.Run(root); err != nil {
		t.Fatalf("walk failed: %v", err)
	}
	for i, p := range paths {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			t.Fatal(err)
		}
		paths[i] = rel
	}
	slices.Sort(paths)
	return paths, rep
}

func TestWalker_VisitsEverything(t *testing.T) {
	t.Parallel()
	root := buildTree(t, map[string]string{
		"a/b/f1": "100 bytes worth",
		"a/c":    "DIR",
		"top":    "x",
	})

	paths, rep := collect(t, root, walk.NewPolicy(walk.FollowNone, false, -1, nil))
	want := []string{".", "a", "a/b", "a/b/f1", "a/c", "top"}
	if !slices.Equal(paths, want) {
		t.Errorf("visited %v, want %v", paths, want)
	}
	if rep.Status() != 0 {
		t.Errorf("clean walk should not latch an error status")
	}
}

func TestWalker_ExcludePatterns(t *testing.T) {
	t.Parallel()
	root := buildTree(t, map[string]string{
		"keep.go":      "x",
		"skip.tmp":     "x",
		"sub/also.tmp": "x",
		"sub/keep":     "x",
		"node_modules": "DIR",
	})

	pol := walk.NewPolicy(walk.FollowNone, false, -1, []string{"*.tmp", "node_modules"})
	paths, _ := collect(t, root, pol)
	want := []string{".", "keep.go", "sub", "sub/keep"}
	if !slices.Equal(paths, want) {
		t.Errorf("visited %v, want %v", paths, want)
	}
}

func TestWalker_MaxDepth(t *testing.T) {
	t.Parallel()
	root := buildTree(t, map[string]string{
		"a/b/c/deep": "x",
		"shallow":    "x",
	})

	pol := walk.NewPolicy(walk.FollowNone, false, 1, nil)
	paths, _ := collect(t, root, pol)
	want := []string{".", "a", "shallow"}
	if !slices.Equal(paths, want) {
		t.Errorf("visited %v, want %v", paths, want)
	}
}

func TestWalker_SymlinkCycleTerminates(t *testing.T) {
	t.Parallel()
	root := buildTree(t, map[string]string{
		"a/b/f1": "0123456789",
		"a/c":    "DIR",
	})
	// a/d points back at a; following all symlinks must visit a exactly
	// once and terminate.
	if err := os.Symlink(filepath.Join(root, "a"), filepath.Join(root, "a", "d")); err != nil {
		t.Fatal(err)
	}

	pol := walk.NewPolicy(walk.FollowAll, false, -1, nil)
	paths, _ := collect(t, root, pol)
	want := []string{".", "a", "a/b", "a/b/f1", "a/c"}
	if !slices.Equal(paths, want) {
		t.Errorf("visited %v, want %v", paths, want)
	}
}

func TestWalker_NestedSymlinkNotFollowedUnderFollowTop(t *testing.T) {
	t.Parallel()
	root := buildTree(t, map[string]string{
		"real/inner": "x",
	})
	if err := os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "link")); err != nil {
		t.Fatal(err)
	}

	// FollowTop follows only the root argument; the nested link is
	// visited as a link object, not descended into.
	pol := walk.NewPolicy(walk.FollowTop, false, -1, nil)
	var sawLinkAsDir bool
	rep := report.NewWriter("walk", &bytes.Buffer{})
	w := walk.New(pol, rep, walk.Callbacks{
		Entry: func(_ *ufs.Dir, name, _ string, st ufs.EntryStat, _ int) error {
			if name == "link" && !st.IsSymlink() {
				t.Errorf("nested link was dereferenced")
			}
			return nil
		},
		EnterDir: func(_, _ *ufs.Dir, name, _ string, _ ufs.EntryStat, _ int) (bool, error) {
			if name == "link" {
				sawLinkAsDir = true
			}
			return true, nil
		},
	})
	if err := w.Run(root); err != nil {
		t.Fatal(err)
	}
	if sawLinkAsDir {
		t.Error("nested symlink must not be treated as a directory under FollowTop")
	}
}

func TestWalker_FileRoot(t *testing.T) {
	t.Parallel()
	root := buildTree(t, map[string]string{"f": "content"})
	file := filepath.Join(root, "f")

	var visited []string
	rep := report.NewWriter("walk", &bytes.Buffer{})
	w := walk.New(walk.NewPolicy(walk.FollowNone, false, -1, nil), rep, walk.Callbacks{
		Entry: func(parent *ufs.Dir, _, path string, st ufs.EntryStat, depth int) error {
			if parent != nil {
				t.Error("file root should have no parent handle")
			}
			if depth != 0 {
				t.Errorf("file root should be depth 0, got %d", depth)
			}
			if !st.IsRegular() || st.Size != 7 {
				t.Errorf("unexpected stat: %+v", st)
			}
			visited = append(visited, path)
			return nil
		},
	})
	if err := w.Run(file); err != nil {
		t.Fatal(err)
	}
	if len(visited) != 1 || visited[0] != file {
		t.Errorf("visited %v, want just %q", visited, file)
	}
}

func TestWalker_MissingRootIsFatalForThatRootOnly(t *testing.T) {
	t.Parallel()
	root := buildTree(t, map[string]string{"ok/f": "x"})

	rep := report.NewWriter("walk", &bytes.Buffer{})
	w := walk.New(walk.NewPolicy(walk.FollowNone, false, -1, nil), rep, walk.Callbacks{})
	if err := w.Run(filepath.Join(root, "missing")); !errors.Is(err, ufs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got: %v", err)
	}

	// A sibling root in the same invocation still walks normally.
	if err := w.Run(filepath.Join(root, "ok")); err != nil {
		t.Errorf("sibling root should be unaffected: %v", err)
	}
}

func TestWalker_UnreadableDirReportedOnce(t *testing.T) {
	t.Parallel()
	if os.Getuid() == 0 {
		t.Skip("permission bits have no effect for root")
	}
	root := buildTree(t, map[string]string{
		"locked/secret/deep": "x",
		"open/f":             "x",
	})
	locked := filepath.Join(root, "locked")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	var buf bytes.Buffer
	rep := report.NewWriter("walk", &buf)
	var dirErrors int
	w := walk.New(walk.NewPolicy(walk.FollowNone, false, -1, nil), rep, walk.Callbacks{
		DirError: func(_, path string, _ ufs.EntryStat, _ int, err error) {
			dirErrors++
			if !errors.Is(err, ufs.ErrPermission) {
				t.Errorf("expected a permission error for %s, got: %v", path, err)
			}
		},
	})
	if err := w.Run(root); err != nil {
		t.Fatal(err)
	}
	if dirErrors != 1 {
		t.Errorf("expected exactly one directory error, got %d", dirErrors)
	}
}
