// Package testutil provides test doubles shared across packages.
package testutil

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/maddev333/scubapwshapi/internal/runner"
)

// FakeExecutor stands in for a shell. Scripts are never run; Outputs maps
// a script to the stdout/stderr pair it "prints". Every script that
// passes validation counts as one spawned process.
type FakeExecutor struct {
	Outputs map[string][2]string
	Err     error // returned for every valid script when set

	mu      sync.Mutex
	scripts []string
	spawned atomic.Int64
}

// NewFakeExecutor returns an executor with no canned outputs.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{Outputs: make(map[string][2]string)}
}

// Run mimics runner.Runner.Run.
func (f *FakeExecutor) Run(_ context.Context, script string) (*runner.Result, error) {
	if strings.TrimSpace(script) == "" {
		return nil, runner.ErrInvalidInput
	}
	f.spawned.Add(1)
	f.mu.Lock()
	f.scripts = append(f.scripts, script)
	f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	out := f.Outputs[script]
	return &runner.Result{
		RunID:     uuid.New().String(),
		Shell:     "fake",
		Stdout:    []byte(out[0]),
		Stderr:    []byte(out[1]),
		Completed: true,
		StartedAt: time.Now(),
	}, nil
}

// Started returns the number of spawned processes.
func (f *FakeExecutor) Started() int64 {
	return f.spawned.Load()
}

// Scripts returns the scripts received so far.
func (f *FakeExecutor) Scripts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.scripts...)
}
