// Package runner feeds scripts to a freshly started interactive shell and
// captures everything it prints.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Backend runs one invocation to completion, writing the shell's output
// streams to stdout and stderr. A non-zero exit is reported through the
// exit code, not the error.
type Backend interface {
	Name() string
	Exec(ctx context.Context, inv *Invocation, stdout, stderr io.Writer) (int, error)
}

// Runner executes scripts through a Backend. Timeout, MaxOutput and
// MaxConcurrent are optional; their zero values mean unbounded.
type Runner struct {
	Backend       Backend
	Timeout       time.Duration
	MaxOutput     int // bytes per stream
	MaxConcurrent int
	Logger        *slog.Logger

	semOnce sync.Once
	sem     *semaphore.Weighted
	started atomic.Int64
}

// Started returns the number of scripts handed to the backend so far.
func (r *Runner) Started() int64 {
	return r.started.Load()
}

// Run executes script in a new shell session and returns its output.
func (r *Runner) Run(ctx context.Context, script string) (*Result, error) {
	if strings.TrimSpace(script) == "" {
		return nil, ErrInvalidInput
	}
	if r.Backend == nil {
		return nil, fmt.Errorf("no shell backend configured")
	}

	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	defer r.release()

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	runID := uuid.New().String()
	log := r.logger().With("run_id", runID, "shell", r.Backend.Name())

	inv := NewInvocation(script)
	r.started.Add(1)

	var stdout, stderr bytes.Buffer
	outW := &limitWriter{buf: &stdout, limit: r.MaxOutput}
	errW := &limitWriter{buf: &stderr, limit: r.MaxOutput}

	log.Debug("script started", "bytes", len(script))
	start := time.Now()
	exitCode, err := r.Backend.Exec(ctx, inv, outW, errW)
	if err != nil {
		inv.Enter(StateFaulted)
		log.Error("script faulted", "error", err)
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		inv.Enter(StateFaulted)
		log.Warn("script cancelled", "error", ctxErr)
		return nil, fmt.Errorf("script %s: %w", runID, ctxErr)
	}

	inv.Enter(StateTerminated)
	if inv.StartedAt.IsZero() {
		inv.StartedAt = start
	}
	duration := time.Since(inv.StartedAt)
	log.Info("script finished", "exit_code", exitCode, "duration", duration)

	return &Result{
		RunID:     runID,
		Shell:     r.Backend.Name(),
		ExitCode:  exitCode,
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
		Truncated: outW.dropped || errW.dropped,
		Completed: inv.ExitObserved,
		StartedAt: inv.StartedAt,
		Duration:  duration,
	}, nil
}

func (r *Runner) acquire(ctx context.Context) error {
	if r.MaxConcurrent <= 0 {
		return nil
	}
	r.semOnce.Do(func() {
		r.sem = semaphore.NewWeighted(int64(r.MaxConcurrent))
	})
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %v", ErrBusy, err)
	}
	return nil
}

func (r *Runner) release() {
	if r.sem != nil {
		r.sem.Release(1)
	}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// limitWriter writes up to limit bytes to buf, then silently discards the
// rest. A limit of zero or less disables the cap.
type limitWriter struct {
	mu      sync.Mutex
	buf     *bytes.Buffer
	limit   int
	dropped bool
}

func (w *limitWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.limit <= 0 {
		return w.buf.Write(p)
	}
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		w.dropped = w.dropped || len(p) > 0
		return len(p), nil // discard
	}
	if len(p) > remaining {
		// Write only what fits, but report all bytes as consumed
		// to avoid short write errors from io.Copy.
		w.buf.Write(p[:remaining])
		w.dropped = true
		return len(p), nil
	}
	return w.buf.Write(p)
}
