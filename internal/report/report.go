// Package report carries tool diagnostics and the process exit status.
//
// The exit status is an explicit value owned by a Reporter and merged by the
// caller, not a process-global flag: each top-level operation reports into
// its own Reporter and main folds the results together.
package report

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/apex/log"
)

// Reporter emits diagnostics in the classic "tool: message" format and
// latches a non-zero exit status the moment any entry-level error is
// reported, even if later entries succeed.
type Reporter struct {
	mu     sync.Mutex
	tool   string
	out    io.Writer
	status int
	seen   map[string]struct{}
}

// New returns a Reporter writing to stderr.
func New(tool string) *Reporter {
	return NewWriter(tool, os.Stderr)
}

// NewWriter returns a Reporter writing to w. Tests use this to capture
// diagnostics.
func NewWriter(tool string, w io.Writer) *Reporter {
	return &Reporter{tool: tool, out: w, seen: make(map[string]struct{})}
}

// Errorf emits one diagnostic and latches exit status 1.
func (r *Reporter) Errorf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = 1
	msg := fmt.Sprintf(format, args...)
	log.WithField("tool", r.tool).Debug(msg)
	fmt.Fprintf(r.out, "%s: %s\n", r.tool, msg)
}

// Error emits an error as a diagnostic and latches exit status 1.
func (r *Reporter) Error(err error) {
	r.Errorf("%v", err)
}

// ErrorOnce is like Errorf but deduplicated on key: an inaccessible
// directory gets exactly one diagnostic, never one per unreachable child.
func (r *Reporter) ErrorOnce(key, format string, args ...any) {
	r.mu.Lock()
	if _, dup := r.seen[key]; dup {
		r.mu.Unlock()
		return
	}
	r.seen[key] = struct{}{}
	r.mu.Unlock()
	r.Errorf(format, args...)
}

// Latch marks the run as failed without emitting a diagnostic.
func (r *Reporter) Latch() {
	r.mu.Lock()
	r.status = 1
	r.mu.Unlock()
}

// Status returns the accumulated exit status: 0 when every reported entry
// succeeded, 1 otherwise.
func (r *Reporter) Status() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}
