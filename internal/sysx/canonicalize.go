package sysx

import (
	"os"
	"path/filepath"
	"strings"

	"emperror.dev/errors"
)

// MissingHandling states which components of a path being canonicalized
// are allowed to not exist, matching readlink's -f, -e and -m flags.
type MissingHandling int

const (
	// MissingNormal requires everything but the final component to
	// exist (readlink -f).
	MissingNormal MissingHandling = iota
	// MissingExisting requires the whole path to exist (readlink -e).
	MissingExisting
	// MissingAll resolves as far as possible and keeps the rest
	// verbatim (readlink -m).
	MissingAll
)

// maxLinkHops bounds symlink chains the way the kernel's ELOOP does.
const maxLinkHops = 40

// Canonicalize resolves path to an absolute path with every symlink
// expanded, subject to the missing-component policy.
func Canonicalize(path string, mh MissingHandling) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	sep := string(filepath.Separator)
	todo := strings.Split(strings.TrimPrefix(abs, sep), sep)
	resolved := sep
	hops := 0

	for len(todo) > 0 {
		comp := todo[0]
		todo = todo[1:]
		switch comp {
		case "", ".":
			continue
		case "..":
			resolved = filepath.Dir(resolved)
			continue
		}

		next := filepath.Join(resolved, comp)
		fi, err := os.Lstat(next)
		if err != nil {
			last := len(todo) == 0
			if mh == MissingExisting || (mh == MissingNormal && !last) {
				return "", errors.WrapIff(err, "'%s'", path)
			}
			return filepath.Join(append([]string{next}, todo...)...), nil
		}
		if fi.Mode()&os.ModeSymlink != 0 {
			hops++
			if hops > maxLinkHops {
				return "", errors.Errorf("'%s': too many levels of symbolic links", path)
			}
			target, err := os.Readlink(next)
			if err != nil {
				return "", errors.WrapIff(err, "'%s'", path)
			}
			if filepath.IsAbs(target) {
				resolved = sep
			}
			todo = append(strings.Split(strings.TrimPrefix(target, sep), sep), todo...)
			continue
		}
		if !fi.IsDir() && len(todo) > 0 && mh != MissingAll {
			return "", errors.Errorf("'%s': not a directory", path)
		}
		resolved = next
	}
	return resolved, nil
}
