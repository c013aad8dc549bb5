// Package report keeps a history of executions so a past run can be
// retrieved by its ID.
package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/maddev333/scubapwshapi/internal/runner"
)

// Kind identifies the type of a run.
type Kind string

const (
	// Script is a shell script execution.
	Script Kind = "script"
	// Forecast is a forecast generation.
	Forecast Kind = "forecast"
)

// ErrNotFound is returned by Load for an unknown run ID.
var ErrNotFound = errors.New("run not found")

// Store persists and retrieves run records.
type Store interface {
	Save(rec *Record) error
	Load(runID string) (*Record, error)
}

// Record is the stored form of one run.
type Record struct {
	ID        string        `json:"id"`
	Kind      Kind          `json:"kind"`
	Script    string        `json:"script,omitempty"`
	Shell     string        `json:"shell,omitempty"`
	ExitCode  int           `json:"exit_code"`
	Output    string        `json:"output"`
	Truncated bool          `json:"truncated,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// Expect returns an error if the record's Kind does not match want.
func (r *Record) Expect(want Kind) error {
	if r.Kind != want {
		return fmt.Errorf("run %s is a %s run, not a %s run", r.ID, r.Kind, want)
	}
	return nil
}

// FromResult builds the record of a script execution.
func FromResult(script string, res *runner.Result) *Record {
	return &Record{
		ID:        res.RunID,
		Kind:      Script,
		Script:    script,
		Shell:     res.Shell,
		ExitCode:  res.ExitCode,
		Output:    res.Combined(),
		Truncated: res.Truncated,
		StartedAt: res.StartedAt,
		Duration:  res.Duration,
	}
}

// Open returns the store described by backend: "sqlite" opens the
// database at path, anything else uses a temp-dir DiskStore. Either is
// fronted by an LRU cache of cacheSize records. The returned close
// function releases the backing store.
func Open(backend, path string, cacheSize int) (*LRUStore, func() error, error) {
	var back Store
	closeFn := func() error { return nil }
	switch backend {
	case "sqlite":
		s, err := NewSQLiteStore(path)
		if err != nil {
			return nil, nil, err
		}
		back, closeFn = s, s.Close
	default:
		back = NewDiskStore()
	}
	return NewLRUStore(cacheSize, back), closeFn, nil
}
