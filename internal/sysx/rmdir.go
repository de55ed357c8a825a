package sysx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"emperror.dev/errors"

	"github.com/priyxstudio/coreutils/internal/report"
)

// RmdirOptions mirrors rmdir's flags.
type RmdirOptions struct {
	// IgnoreNonEmpty suppresses failures caused solely by a directory
	// not being empty.
	IgnoreNonEmpty bool
	// Parents removes each ancestor of the operand as well, so
	// "rmdir -p a/b/c" behaves like removing c, then a/b, then a.
	Parents bool
	Verbose bool
}

// Rmdir removes every named directory. Failures are reported and latch
// the exit status; processing continues with the next operand.
func Rmdir(paths []string, opts RmdirOptions, rep *report.Reporter, out io.Writer) {
	for _, path := range paths {
		if err := removeChain(path, opts, out); err != nil {
			if opts.IgnoreNonEmpty && dirNotEmpty(err) {
				continue
			}
			rep.Errorf("failed to remove '%s': %v", failedPath(err, path), reason(err))
		}
	}
}

type removeError struct {
	path string
	err  error
}

func (e *removeError) Error() string { return e.err.Error() }
func (e *removeError) Unwrap() error { return e.err }

func removeChain(path string, opts RmdirOptions, out io.Writer) error {
	if err := removeOne(path, opts, out); err != nil {
		return err
	}
	if !opts.Parents {
		return nil
	}
	for {
		parent := filepath.Dir(path)
		if parent == path || parent == "." || parent == string(filepath.Separator) {
			return nil
		}
		path = parent
		if err := removeOne(path, opts, out); err != nil {
			return err
		}
	}
}

func removeOne(path string, opts RmdirOptions, out io.Writer) error {
	if opts.Verbose {
		fmt.Fprintf(out, "rmdir: removing directory, '%s'\n", path)
	}
	fi, err := os.Lstat(path)
	if err != nil {
		return &removeError{path: path, err: err}
	}
	if !fi.IsDir() {
		return &removeError{path: path, err: syscall.ENOTDIR}
	}
	if err := os.Remove(path); err != nil {
		return &removeError{path: path, err: err}
	}
	return nil
}

// dirNotEmpty recognizes the two errnos rmdir can get for a non-empty
// directory; some systems return EEXIST instead of ENOTEMPTY.
func dirNotEmpty(err error) bool {
	return errors.Is(err, syscall.ENOTEMPTY) || errors.Is(err, syscall.EEXIST)
}

func failedPath(err error, fallback string) string {
	var re *removeError
	if errors.As(err, &re) {
		return re.path
	}
	return fallback
}

func reason(err error) error {
	var pe *os.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	var re *removeError
	if errors.As(err, &re) {
		return re.err
	}
	return err
}
