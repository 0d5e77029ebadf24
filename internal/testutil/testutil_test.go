package testutil

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/banshee-data/clinkcode/internal/clink/geom"
	"github.com/banshee-data/clinkcode/internal/monitoring"
)

func TestAssertNoError(t *testing.T) {
	t.Parallel()

	// Verify nil error doesn't cause issues
	AssertNoError(t, nil)
}

// recordingTB stands in for a *testing.T and records failures instead of
// failing the enclosing test. Methods not overridden panic through the nil
// embedded interface, which flags any helper that starts using them.
type recordingTB struct {
	testing.TB
	failures []string
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Errorf(format string, args ...any) {
	r.failures = append(r.failures, fmt.Sprintf(format, args...))
}

func (r *recordingTB) Fatalf(format string, args ...any) {
	r.failures = append(r.failures, fmt.Sprintf(format, args...))
}

func (r *recordingTB) Fatal(args ...any) {
	r.failures = append(r.failures, fmt.Sprint(args...))
}

func TestAssertNoError_FailurePath(t *testing.T) {
	t.Parallel()
	fake := &recordingTB{}
	AssertNoError(fake, errors.New("boom"))
	if len(fake.failures) != 1 || !strings.Contains(fake.failures[0], "boom") {
		t.Fatalf("failures = %q, want one mentioning boom", fake.failures)
	}
}

func TestAssertError(t *testing.T) {
	t.Parallel()
	AssertError(t, errors.New("test error"))
}

func TestAssertError_FailurePath(t *testing.T) {
	t.Parallel()
	fake := &recordingTB{}
	AssertError(fake, nil)
	if len(fake.failures) != 1 {
		t.Fatalf("failures = %q, want one", fake.failures)
	}
}

func TestAssertNear(t *testing.T) {
	t.Parallel()
	fake := &recordingTB{}
	AssertNear(fake, 1.0005, 1, 1e-3)
	AssertPointNear(fake, geom.Pt(10, 20.0001), geom.Pt(10, 20), 1e-3)
	if len(fake.failures) != 0 {
		t.Fatalf("unexpected failures: %q", fake.failures)
	}
}

func TestAssertNear_FailurePath(t *testing.T) {
	t.Parallel()

	cases := map[string]func(tb testing.TB){
		"too far":     func(tb testing.TB) { AssertNear(tb, 1.1, 1, 1e-3) },
		"nan":         func(tb testing.TB) { AssertNear(tb, math.NaN(), 0, 1) },
		"point apart": func(tb testing.TB) { AssertPointNear(tb, geom.Pt(0, 0), geom.Pt(3, 4), 4.9) },
		"point nan":   func(tb testing.TB) { AssertPointNear(tb, geom.Pt(math.NaN(), 0), geom.Pt(0, 0), 1) },
	}
	for name, fn := range cases {
		fake := &recordingTB{}
		fn(fake)
		if len(fake.failures) != 1 {
			t.Errorf("%s: failures = %q, want one", name, fake.failures)
		}
	}
}

// Not parallel: swaps the process-wide logger.
func TestCaptureLogs(t *testing.T) {
	var first *LogCapture
	t.Run("capture", func(t *testing.T) {
		first = CaptureLogs(t)
		monitoring.Logf("decoded %d markers", 2)
		monitoring.Logf("frame %s", "skipped")
	})
	lines := first.Lines()
	if len(lines) != 2 || lines[0] != "decoded 2 markers" || lines[1] != "frame skipped" {
		t.Fatalf("lines = %q", lines)
	}

	// The subtest cleanup restored the previous logger.
	second := CaptureLogs(t)
	monitoring.Logf("after")
	if got := first.Lines(); len(got) != 2 {
		t.Fatalf("first capture still receiving: %q", got)
	}
	if got := second.Lines(); len(got) != 1 || got[0] != "after" {
		t.Fatalf("second capture = %q", got)
	}
}
