package copier_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/priyxstudio/coreutils/internal/copier"
	"github.com/priyxstudio/coreutils/internal/report"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func read(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func newCopier(t *testing.T, opts copier.Options) (*copier.Copier, *bytes.Buffer, *report.Reporter) {
	t.Helper()
	var out, diag bytes.Buffer
	rep := report.NewWriter("cp", &diag)
	c := copier.New(opts, rep, &out)
	t.Cleanup(func() {
		if t.Failed() && diag.Len() > 0 {
			t.Logf("diagnostics:\n%s", diag.String())
		}
	})
	return c, &out, rep
}

func TestCopy_RegularFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	write(t, src, "payload")

	c, _, _ := newCopier(t, copier.Options{})
	dest := filepath.Join(dir, "dest")
	if err := c.Copy(src, dest); err != nil {
		t.Fatal(err)
	}
	if got := read(t, dest); got != "payload" {
		t.Errorf("dest content = %q", got)
	}
}

func TestCopy_DirectoryRequiresRecursive(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "d")
	if err := os.Mkdir(src, 0o755); err != nil {
		t.Fatal(err)
	}

	c, _, _ := newCopier(t, copier.Options{})
	err := c.Copy(src, filepath.Join(dir, "dest"))
	if err == nil || !strings.Contains(err.Error(), "omitting directory") {
		t.Errorf("expected omitting-directory error, got: %v", err)
	}
}

func TestCopy_Tree(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	write(t, filepath.Join(src, "a"), "one")
	write(t, filepath.Join(src, "sub", "b"), "two")
	write(t, filepath.Join(src, "sub", "deep", "c"), "three")

	c, _, rep := newCopier(t, copier.Options{Recursive: true})
	dest := filepath.Join(dir, "dest")
	if err := c.Copy(src, dest); err != nil {
		t.Fatal(err)
	}
	if rep.Status() != 0 {
		t.Errorf("clean copy latched status %d", rep.Status())
	}
	for rel, want := range map[string]string{
		"a": "one", "sub/b": "two", "sub/deep/c": "three",
	} {
		if got := read(t, filepath.Join(dest, rel)); got != want {
			t.Errorf("%s = %q, want %q", rel, got, want)
		}
	}
}

func TestCopy_SymlinksRecreatedNotFollowed(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	write(t, filepath.Join(src, "real"), "data")
	if err := os.Symlink("real", filepath.Join(src, "rel")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("/nonexistent", filepath.Join(src, "dangling")); err != nil {
		t.Fatal(err)
	}

	c, _, _ := newCopier(t, copier.Options{Recursive: true})
	dest := filepath.Join(dir, "dest")
	if err := c.Copy(src, dest); err != nil {
		t.Fatal(err)
	}
	for link, want := range map[string]string{"rel": "real", "dangling": "/nonexistent"} {
		got, err := os.Readlink(filepath.Join(dest, link))
		if err != nil {
			t.Errorf("%s: %v", link, err)
			continue
		}
		if got != want {
			t.Errorf("link %s points to %q, want %q", link, got, want)
		}
	}
}

func TestCopy_DerefAllCopiesContent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	write(t, filepath.Join(src, "real"), "data")
	if err := os.Symlink("real", filepath.Join(src, "link")); err != nil {
		t.Fatal(err)
	}

	c, _, _ := newCopier(t, copier.Options{Recursive: true, Deref: copier.DerefAll})
	dest := filepath.Join(dir, "dest")
	if err := c.Copy(src, dest); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Lstat(filepath.Join(dest, "link"))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		t.Error("dereferenced copy must produce a regular file")
	}
	if got := read(t, filepath.Join(dest, "link")); got != "data" {
		t.Errorf("content = %q", got)
	}
}

func TestCopy_IntoItselfRejected(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "d")
	if err := os.Mkdir(src, 0o755); err != nil {
		t.Fatal(err)
	}

	c, _, _ := newCopier(t, copier.Options{Recursive: true})
	err := c.Copy(src, filepath.Join(src, "inner"))
	if err == nil || !strings.Contains(err.Error(), "into itself") {
		t.Errorf("expected into-itself error, got: %v", err)
	}
}

func TestCopy_PreserveModeOnDirs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	write(t, filepath.Join(src, "sub", "f"), "x")
	if err := os.Chmod(filepath.Join(src, "sub"), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(filepath.Join(src, "sub", "f"), 0o604); err != nil {
		t.Fatal(err)
	}

	c, _, _ := newCopier(t, copier.Options{Recursive: true, Preserve: copier.Preserve{Mode: true}})
	dest := filepath.Join(dir, "dest")
	if err := c.Copy(src, dest); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Stat(filepath.Join(dest, "sub"))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0o750 {
		t.Errorf("dir mode = %o, want 750", fi.Mode().Perm())
	}
	fi, err = os.Stat(filepath.Join(dest, "sub", "f"))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0o604 {
		t.Errorf("file mode = %o, want 604", fi.Mode().Perm())
	}
}

func TestCopy_ReadOnlyDirFinalizedAfterChildren(t *testing.T) {
	t.Parallel()
	if os.Getuid() == 0 {
		t.Skip("permission bits have no effect for root")
	}
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	write(t, filepath.Join(src, "ro", "inner", "f"), "x")
	if err := os.Chmod(filepath.Join(src, "ro"), 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(filepath.Join(src, "ro"), 0o755) })

	// If the read-only mode were applied before the children are
	// written, every copy under ro/ would fail with EACCES.
	c, _, rep := newCopier(t, copier.Options{Recursive: true, Preserve: copier.Preserve{Mode: true}})
	dest := filepath.Join(dir, "dest")
	if err := c.Copy(src, dest); err != nil {
		t.Fatal(err)
	}
	if rep.Status() != 0 {
		t.Fatalf("copy into read-only dir failed, status %d", rep.Status())
	}
	if got := read(t, filepath.Join(dest, "ro", "inner", "f")); got != "x" {
		t.Errorf("content = %q", got)
	}
	fi, err := os.Stat(filepath.Join(dest, "ro"))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0o555 {
		t.Errorf("final dir mode = %o, want 555", fi.Mode().Perm())
	}
	t.Cleanup(func() { _ = os.Chmod(filepath.Join(dest, "ro"), 0o755) })
}

func TestCopy_PreserveTimestamps(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	write(t, src, "x")
	stamp := time.Date(2011, 3, 14, 9, 26, 53, 0, time.UTC)
	if err := os.Chtimes(src, stamp, stamp); err != nil {
		t.Fatal(err)
	}

	c, _, _ := newCopier(t, copier.Options{Preserve: copier.Preserve{Timestamps: true}})
	dest := filepath.Join(dir, "dest")
	if err := c.Copy(src, dest); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Stat(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !fi.ModTime().Equal(stamp) {
		t.Errorf("mtime = %v, want %v", fi.ModTime(), stamp)
	}
}

func TestCopy_PreserveHardLinks(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	write(t, filepath.Join(src, "f"), "shared")
	if err := os.Link(filepath.Join(src, "f"), filepath.Join(src, "g")); err != nil {
		t.Fatal(err)
	}

	c, _, _ := newCopier(t, copier.Options{Recursive: true, Preserve: copier.Preserve{Links: true}})
	dest := filepath.Join(dir, "dest")
	if err := c.Copy(src, dest); err != nil {
		t.Fatal(err)
	}
	a, err := os.Stat(filepath.Join(dest, "f"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.Stat(filepath.Join(dest, "g"))
	if err != nil {
		t.Fatal(err)
	}
	if !os.SameFile(a, b) {
		t.Error("hard link group was not preserved")
	}
}

func TestCopy_UnreadableFileContinues(t *testing.T) {
	t.Parallel()
	if os.Getuid() == 0 {
		t.Skip("permission bits have no effect for root")
	}
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	write(t, filepath.Join(src, "locked"), "secret")
	write(t, filepath.Join(src, "open"), "public")
	if err := os.Chmod(filepath.Join(src, "locked"), 0o000); err != nil {
		t.Fatal(err)
	}

	c, _, rep := newCopier(t, copier.Options{Recursive: true})
	dest := filepath.Join(dir, "dest")
	if err := c.Copy(src, dest); err != nil {
		t.Fatal(err)
	}
	if rep.Status() != 1 {
		t.Errorf("unreadable file must latch status 1, got %d", rep.Status())
	}
	if got := read(t, filepath.Join(dest, "open")); got != "public" {
		t.Error("remaining files must still be copied")
	}
}

func TestCopy_MergeIntoExistingDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	write(t, filepath.Join(src, "new"), "added")
	dest := filepath.Join(dir, "dest")
	write(t, filepath.Join(dest, "old"), "kept")

	c, _, _ := newCopier(t, copier.Options{Recursive: true})
	if err := c.Copy(src, dest); err != nil {
		t.Fatal(err)
	}
	if got := read(t, filepath.Join(dest, "old")); got != "kept" {
		t.Error("existing files must survive a merge")
	}
	if got := read(t, filepath.Join(dest, "new")); got != "added" {
		t.Error("new files must be added to the existing dir")
	}
}

// Not parallel: --parents resolves sources relative to the working
// directory, so the test has to chdir.
func TestDest_Parents(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "a", "b", "f"), "x")
	target := filepath.Join(dir, "target")
	if err := os.Mkdir(target, 0o755); err != nil {
		t.Fatal(err)
	}

	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(orig)

	c, _, _ := newCopier(t, copier.Options{Parents: true})
	dest, err := c.Dest(filepath.Join("a", "b", "f"), target)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(target, "a", "b", "f")
	if dest != want {
		t.Errorf("dest = %q, want %q", dest, want)
	}
	if err := c.Copy(filepath.Join("a", "b", "f"), dest); err != nil {
		t.Fatal(err)
	}
	if got := read(t, want); got != "x" {
		t.Errorf("content = %q", got)
	}
}

func TestCopy_Verbose(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	write(t, src, "x")
	dest := filepath.Join(dir, "dest")

	c, out, _ := newCopier(t, copier.Options{Verbose: true})
	if err := c.Copy(src, dest); err != nil {
		t.Fatal(err)
	}
	want := "'" + src + "' -> '" + dest + "'\n"
	if out.String() != want {
		t.Errorf("verbose output = %q, want %q", out.String(), want)
	}
}
