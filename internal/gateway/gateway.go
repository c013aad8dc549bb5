// Package gateway ties script execution, forecasts and run history
// together. The HTTP and MCP surfaces are thin adapters over a Gateway.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maddev333/scubapwshapi/internal/config"
	"github.com/maddev333/scubapwshapi/internal/forecast"
	"github.com/maddev333/scubapwshapi/internal/report"
	"github.com/maddev333/scubapwshapi/internal/runner"
)

// Executor runs one script. *runner.Runner implements it.
type Executor interface {
	Run(ctx context.Context, script string) (*runner.Result, error)
	Started() int64
}

// Gateway serves script executions and forecasts and records each run.
type Gateway struct {
	Exec   Executor
	Store  report.Store // optional
	Logger *slog.Logger
	Now    func() time.Time

	randMu sync.Mutex
	rng    *rand.Rand
}

// New returns a Gateway with a randomly seeded forecast source.
func New(exec Executor, store report.Store, logger *slog.Logger) *Gateway {
	return &Gateway{
		Exec:   exec,
		Store:  store,
		Logger: logger,
		rng:    forecast.NewSource(),
	}
}

// NewRunner builds the runner described by cfg.
func NewRunner(cfg *config.Config, logger *slog.Logger) *runner.Runner {
	var backend runner.Backend
	switch cfg.ShellBackend() {
	case config.BackendVirtual:
		backend = &runner.VirtualBackend{Exit: cfg.ExitInstruction(), Dir: cfg.Shell.Dir}
	default:
		backend = &runner.ProcessBackend{
			Program: cfg.ShellProgram(),
			Args:    cfg.Shell.Args,
			Exit:    cfg.ExitInstruction(),
			Dir:     cfg.Shell.Dir,
		}
	}
	return &runner.Runner{
		Backend:       backend,
		Timeout:       cfg.Timeout(),
		MaxOutput:     cfg.MaxOutputBytes(),
		MaxConcurrent: cfg.MaxConcurrent,
		Logger:        logger,
	}
}

// SeedForecasts replaces the forecast random source, for deterministic
// output.
func (g *Gateway) SeedForecasts(rng *rand.Rand) {
	g.randMu.Lock()
	g.rng = rng
	g.randMu.Unlock()
}

// Execute runs script and records the result. Errors from the runner are
// returned unchanged so callers can match runner.ErrInvalidInput,
// runner.ErrBusy and *runner.SpawnError.
func (g *Gateway) Execute(ctx context.Context, script string) (*runner.Result, error) {
	res, err := g.Exec.Run(ctx, script)
	if err != nil {
		return nil, err
	}
	g.save(report.FromResult(script, res))
	return res, nil
}

// Forecast generates the forecast for the days after today.
func (g *Gateway) Forecast() []forecast.Forecast {
	now := g.now()

	g.randMu.Lock()
	if g.rng == nil {
		g.rng = forecast.NewSource()
	}
	out := forecast.Generate(g.rng, now)
	g.randMu.Unlock()

	if g.Store != nil {
		data, err := json.Marshal(out)
		if err == nil {
			g.save(&report.Record{
				ID:        uuid.New().String(),
				Kind:      report.Forecast,
				Output:    string(data),
				StartedAt: now,
			})
		}
	}
	return out
}

// Inspect returns a recorded run.
func (g *Gateway) Inspect(runID string) (*report.Record, error) {
	if g.Store == nil {
		return nil, report.ErrNotFound
	}
	return g.Store.Load(runID)
}

// Executions returns the number of scripts handed to a shell.
func (g *Gateway) Executions() int64 {
	if g.Exec == nil {
		return 0
	}
	return g.Exec.Started()
}

// save records rec. History is best effort; a failed write is logged and
// does not fail the request.
func (g *Gateway) save(rec *report.Record) {
	if g.Store == nil {
		return
	}
	if err := g.Store.Save(rec); err != nil {
		g.logger().Warn("recording run failed", "run_id", rec.ID, "error", err)
	}
}

func (g *Gateway) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g *Gateway) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}
