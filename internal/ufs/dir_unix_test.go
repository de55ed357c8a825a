//go:build unix

package ufs_test

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/priyxstudio/coreutils/internal/ufs"
)

type testTree struct {
	Root string
}

func (tt *testTree) Cleanup() {
	_ = os.RemoveAll(tt.Root)
}

func (tt *testTree) path(name string) string {
	return filepath.Join(tt.Root, name)
}

func newTestTree(t *testing.T) *testTree {
	t.Helper()
	root, err := os.MkdirTemp(os.TempDir(), "ufs")
	if err != nil {
		t.Fatal(err)
	}
	return &testTree{Root: root}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestOpenDir(t *testing.T) {
	t.Parallel()
	tt := newTestTree(t)
	defer tt.Cleanup()

	d, err := ufs.OpenDir(tt.Root)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	// Opening a regular file must fail with a "not a directory" error.
	mustWrite(t, tt.path("file"), "hi")
	if _, err := ufs.OpenDir(tt.path("file")); !errors.Is(err, ufs.ErrNotDirectory) {
		t.Errorf("expected ErrNotDirectory, got: %v", err)
	}

	// Opening a missing path must fail with a "not exist" error.
	if _, err := ufs.OpenDir(tt.path("missing")); !errors.Is(err, ufs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got: %v", err)
	}

	// Opening a symlink to a directory must be refused by default but
	// allowed by OpenDirDeref.
	if err := os.Mkdir(tt.path("real"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(tt.path("real"), tt.path("link")); err != nil {
		t.Fatal(err)
	}
	if _, err := ufs.OpenDir(tt.path("link")); err == nil {
		t.Error("expected an error opening a symlink without deref")
	}
	ld, err := ufs.OpenDirDeref(tt.path("link"))
	if err != nil {
		t.Fatalf("OpenDirDeref failed: %v", err)
	}
	_ = ld.Close()
}

func TestDir_Close(t *testing.T) {
	t.Parallel()
	tt := newTestTree(t)
	defer tt.Cleanup()

	d, err := ufs.OpenDir(tt.Root)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("first close failed: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second close failed: %v", err)
	}
}

func TestDir_ReadNames(t *testing.T) {
	t.Parallel()
	tt := newTestTree(t)
	defer tt.Cleanup()

	mustWrite(t, tt.path("a"), "")
	mustWrite(t, tt.path("b"), "")
	if err := os.Mkdir(tt.path("c"), 0o755); err != nil {
		t.Fatal(err)
	}

	d, err := ufs.OpenDir(tt.Root)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	names, err := d.ReadNames()
	if err != nil {
		t.Fatal(err)
	}
	slices.Sort(names)
	if !slices.Equal(names, []string{"a", "b", "c"}) {
		t.Errorf("unexpected names: %v", names)
	}

	// Listing twice through the same handle must produce the same result.
	again, err := d.ReadNames()
	if err != nil {
		t.Fatal(err)
	}
	slices.Sort(again)
	if !slices.Equal(names, again) {
		t.Errorf("second listing differs: %v vs %v", names, again)
	}
}

func TestDir_StatEntry(t *testing.T) {
	t.Parallel()
	tt := newTestTree(t)
	defer tt.Cleanup()

	mustWrite(t, tt.path("file"), "test content")
	if err := os.Symlink("file", tt.path("link")); err != nil {
		t.Fatal(err)
	}

	d, err := ufs.OpenDir(tt.Root)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	st, err := d.StatEntry("file", false)
	if err != nil {
		t.Fatal(err)
	}
	if !st.IsRegular() {
		t.Error("expected a regular file")
	}
	if st.Size != 12 {
		t.Errorf("expected size 12, got %d", st.Size)
	}

	// Non-following stat of a symlink returns the link itself.
	lst, err := d.StatEntry("link", false)
	if err != nil {
		t.Fatal(err)
	}
	if !lst.IsSymlink() {
		t.Error("expected a symlink")
	}

	// Following stat resolves to the target.
	fst, err := d.StatEntry("link", true)
	if err != nil {
		t.Fatal(err)
	}
	if !fst.IsRegular() {
		t.Error("expected stat to follow to the regular file")
	}
	if fst.ID() != st.ID() {
		t.Error("followed stat should identify the same object as the target")
	}

	if _, err := d.StatEntry("missing", false); !errors.Is(err, ufs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got: %v", err)
	}
}

func TestDir_StatSelf(t *testing.T) {
	t.Parallel()
	tt := newTestTree(t)
	defer tt.Cleanup()

	if err := os.Mkdir(tt.path("dir"), 0o755); err != nil {
		t.Fatal(err)
	}
	d, err := ufs.OpenDir(tt.path("dir"))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	st, err := d.StatSelf()
	if err != nil {
		t.Fatal(err)
	}
	if !st.IsDir() {
		t.Error("expected a directory")
	}

	// The handle keeps addressing the same object after a rename.
	if err := os.Rename(tt.path("dir"), tt.path("moved")); err != nil {
		t.Fatal(err)
	}
	st2, err := d.StatSelf()
	if err != nil {
		t.Fatal(err)
	}
	if st.ID() != st2.ID() {
		t.Error("stat after rename identified a different object")
	}
}

func TestDir_OpenSubdir(t *testing.T) {
	t.Parallel()
	tt := newTestTree(t)
	defer tt.Cleanup()

	if err := os.MkdirAll(tt.path("a/b"), 0o755); err != nil {
		t.Fatal(err)
	}
	mustWrite(t, tt.path("a/b/file"), "x")
	if err := os.Symlink("a", tt.path("la")); err != nil {
		t.Fatal(err)
	}

	d, err := ufs.OpenDir(tt.Root)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	a, err := d.OpenSubdir("a", false)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := a.OpenSubdir("b", false)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if _, err := b.StatEntry("file", false); err != nil {
		t.Errorf("stat through nested handles failed: %v", err)
	}

	// A symlinked subdirectory is refused without follow and allowed with.
	if _, err := d.OpenSubdir("la", false); err == nil {
		t.Error("expected an error opening a symlinked subdirectory")
	}
	la, err := d.OpenSubdir("la", true)
	if err != nil {
		t.Fatalf("expected follow open to succeed, got: %v", err)
	}
	_ = la.Close()

	if _, err := d.OpenSubdir("missing", false); !errors.Is(err, ufs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got: %v", err)
	}
}

func TestDir_Chmod(t *testing.T) {
	t.Parallel()
	tt := newTestTree(t)
	defer tt.Cleanup()

	mustWrite(t, tt.path("file"), "")

	d, err := ufs.OpenDir(tt.Root)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	if err := d.Chmod("file", 0o750, true); err != nil {
		t.Fatal(err)
	}
	st, err := d.StatEntry("file", false)
	if err != nil {
		t.Fatal(err)
	}
	if st.Perm() != 0o750 {
		t.Errorf("expected mode 0750, got %o", st.Perm())
	}

	if err := d.Chmod("missing", 0o644, true); !errors.Is(err, ufs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got: %v", err)
	}
}

func TestDir_Unlink(t *testing.T) {
	t.Parallel()
	tt := newTestTree(t)
	defer tt.Cleanup()

	mustWrite(t, tt.path("file"), "")
	if err := os.Mkdir(tt.path("dir"), 0o755); err != nil {
		t.Fatal(err)
	}

	d, err := ufs.OpenDir(tt.Root)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	if err := d.Unlink("file", false); err != nil {
		t.Fatal(err)
	}
	if err := d.Unlink("dir", true); err != nil {
		t.Fatal(err)
	}
	if err := d.Unlink("file", false); !errors.Is(err, ufs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got: %v", err)
	}
}

func TestDir_Readlink(t *testing.T) {
	t.Parallel()
	tt := newTestTree(t)
	defer tt.Cleanup()

	if err := os.Symlink("some/target", tt.path("link")); err != nil {
		t.Fatal(err)
	}

	d, err := ufs.OpenDir(tt.Root)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	target, err := d.Readlink("link")
	if err != nil {
		t.Fatal(err)
	}
	if target != "some/target" {
		t.Errorf("expected 'some/target', got %q", target)
	}
}

func TestDir_HardlinkIdentity(t *testing.T) {
	t.Parallel()
	tt := newTestTree(t)
	defer tt.Cleanup()

	mustWrite(t, tt.path("one"), "shared")
	if err := os.Link(tt.path("one"), tt.path("two")); err != nil {
		t.Fatal(err)
	}

	d, err := ufs.OpenDir(tt.Root)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	a, err := d.StatEntry("one", false)
	if err != nil {
		t.Fatal(err)
	}
	b, err := d.StatEntry("two", false)
	if err != nil {
		t.Fatal(err)
	}
	if a.ID() != b.ID() {
		t.Error("hard links should share a (device, inode) identity")
	}
	if a.Nlink != 2 {
		t.Errorf("expected nlink 2, got %d", a.Nlink)
	}
}
