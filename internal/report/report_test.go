package report_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/priyxstudio/coreutils/internal/report"
)

func TestReporter_StatusLatches(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := report.NewWriter("du", &buf)
	if r.Status() != 0 {
		t.Fatalf("fresh reporter should have status 0, got %d", r.Status())
	}

	r.Errorf("cannot read directory %q", "x")
	if r.Status() != 1 {
		t.Errorf("expected status 1 after an error, got %d", r.Status())
	}

	// Status stays latched even after successful entries.
	if r.Status() != 1 {
		t.Errorf("status should stay latched, got %d", r.Status())
	}
	if !strings.Contains(buf.String(), `du: cannot read directory "x"`) {
		t.Errorf("unexpected diagnostic: %q", buf.String())
	}
}

func TestReporter_ErrorOnceDeduplicates(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := report.NewWriter("chmod", &buf)

	for i := 0; i < 3; i++ {
		r.ErrorOnce("dir/sub", "cannot access %q", "dir/sub")
	}
	if n := strings.Count(buf.String(), "cannot access"); n != 1 {
		t.Errorf("expected exactly one diagnostic, got %d", n)
	}
}

func TestReporter_Latch(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := report.NewWriter("cp", &buf)
	r.Latch()
	if r.Status() != 1 {
		t.Errorf("expected status 1, got %d", r.Status())
	}
	if buf.Len() != 0 {
		t.Errorf("Latch should not emit a diagnostic, got %q", buf.String())
	}
}
