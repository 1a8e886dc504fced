// Package testutil provides shared test infrastructure for the sweep packages:
// numeric assertions, throwaway grids with metadata, and a batch client fake
// that records argument vectors instead of executing them.
package testutil

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t testing.TB, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertDurationNear fails unless got is within tol of want.
func AssertDurationNear(t testing.TB, want, got, tol time.Duration) {
	t.Helper()
	diff := want - got
	if diff < 0 {
		diff = -diff
	}
	if diff > tol {
		t.Errorf("duration: got %v, want %v (±%v)", got, want, tol)
	}
}

// WriteGrid creates an empty grid file at dir/name and its metadata sidecar
// declaring nCells cells. It returns the grid path.
func WriteGrid(t testing.TB, dir, name string, nCells int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("grid"), 0o644))
	meta := []byte("n_cells: " + strconv.Itoa(nCells) + "\n")
	require.NoError(t, os.WriteFile(path+".meta.yaml", meta, 0o644))
	return path
}

// WriteBinary creates a fake executable at path.
func WriteBinary(t testing.TB, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755))
}

// Call is one recorded invocation of the fake runner.
type Call struct {
	Dir  string
	Env  []string
	Argv []string
	Log  string
}

// Command returns the argument vector joined by spaces.
func (c Call) Command() string { return strings.Join(c.Argv, " ") }

// FakeRunner records every command and answers with canned output.
type FakeRunner struct {
	mu     sync.Mutex
	Calls  []Call
	Stdout string // returned by Output
	Err    error  // returned by Output and Start
	Pid    int    // returned by Start
}

// Output records the call and returns Stdout, Err.
func (r *FakeRunner) Output(_ context.Context, dir string, env, argv []string) ([]byte, error) {
	r.record(Call{Dir: dir, Env: env, Argv: argv})
	return []byte(r.Stdout), r.Err
}

// Start records the call and returns Pid, Err.
func (r *FakeRunner) Start(_ context.Context, dir string, env, argv []string, logPath string) (int, error) {
	r.record(Call{Dir: dir, Env: env, Argv: argv, Log: logPath})
	return r.Pid, r.Err
}

// Last returns the most recent call.
func (r *FakeRunner) Last(t testing.TB) Call {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.Calls, "runner was never invoked")
	return r.Calls[len(r.Calls)-1]
}

func (r *FakeRunner) record(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.Env = append([]string(nil), c.Env...)
	c.Argv = append([]string(nil), c.Argv...)
	r.Calls = append(r.Calls, c)
}
