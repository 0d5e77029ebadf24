// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/banshee-data/clinkcode/internal/clink/geom"
	"github.com/banshee-data/clinkcode/internal/monitoring"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertNear checks |got-want| <= tol.
func AssertNear(t testing.TB, got, want, tol float64) {
	t.Helper()
	if math.IsNaN(got) || math.Abs(got-want) > tol {
		t.Errorf("got %g, want %g ± %g", got, want, tol)
	}
}

// AssertPointNear checks both coordinates of got against want.
func AssertPointNear(t testing.TB, got, want geom.Point, tol float64) {
	t.Helper()
	if math.IsNaN(got.X) || math.IsNaN(got.Y) || got.Dist(want) > tol {
		t.Errorf("got (%g, %g), want (%g, %g) ± %g", got.X, got.Y, want.X, want.Y, tol)
	}
}

// LogCapture collects lines written through monitoring.Logf.
type LogCapture struct {
	mu    sync.Mutex
	lines []string
}

// Lines returns the captured lines in order.
func (c *LogCapture) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

// CaptureLogs redirects monitoring.Logf for the rest of the test and
// restores the previous logger on cleanup. Tests using it must not run in
// parallel with tests that log.
func CaptureLogs(t testing.TB) *LogCapture {
	t.Helper()
	c := &LogCapture{}
	prev := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.lines = append(c.lines, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { monitoring.SetLogger(prev) })
	return c
}
