// Package api serves the gateway over HTTP.
package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/maddev333/scubapwshapi/internal/config"
	"github.com/maddev333/scubapwshapi/internal/gateway"
	"github.com/maddev333/scubapwshapi/internal/report"
	"github.com/maddev333/scubapwshapi/internal/runner"
)

//go:embed openapi.yaml
var openAPI []byte

// Options configures NewHandler.
type Options struct {
	Development bool
	RateLimit   config.RateLimitConfig
}

// Handlers contains the HTTP handlers for the gateway.
type Handlers struct {
	gw     *gateway.Gateway
	logger *slog.Logger
}

// NewHandler returns the routed and wrapped HTTP handler. ctx bounds the
// lifetime of background work started by the middleware.
func NewHandler(ctx context.Context, gw *gateway.Gateway, logger *slog.Logger, opts Options) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{gw: gw, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /weatherforecast", h.weatherForecast)
	mux.HandleFunc("POST /powershell", h.powershell)
	mux.HandleFunc("GET /runs/{id}", h.getRun)
	mux.HandleFunc("GET /health", h.health)
	if opts.Development {
		mux.HandleFunc("GET /swagger/v1/swagger.yaml", h.openAPIDocument)
	}

	var handler http.Handler = mux
	if opts.RateLimit.RequestsPerMin > 0 {
		handler = RateLimit(ctx, opts.RateLimit.RequestsPerMin, opts.RateLimit.Burst)(handler)
	}
	handler = SecurityHeaders(handler)
	handler = Recover(logger)(handler)
	return RequestLog(logger)(handler)
}

func (h *Handlers) weatherForecast(w http.ResponseWriter, r *http.Request) {
	h.json(w, http.StatusOK, h.gw.Forecast())
}

// powershell runs the request body in a new shell and returns the shell's
// combined output as a JSON string.
func (h *Handlers) powershell(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	res, err := h.gw.Execute(r.Context(), string(body))
	if err != nil {
		h.executionError(w, r, err)
		return
	}

	w.Header().Set("X-Run-Id", res.RunID)
	h.json(w, http.StatusOK, res.Combined())
}

func (h *Handlers) executionError(w http.ResponseWriter, r *http.Request, err error) {
	var spawnErr *runner.SpawnError
	switch {
	case errors.Is(err, runner.ErrInvalidInput):
		w.WriteHeader(http.StatusBadRequest)
	case errors.Is(err, runner.ErrBusy):
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, http.StatusText(http.StatusGatewayTimeout), http.StatusGatewayTimeout)
	case errors.As(err, &spawnErr):
		h.logger.Error("shell unavailable", "shell", spawnErr.Shell, "error", spawnErr.Err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	default:
		h.logger.Error("script execution failed", "path", r.URL.Path, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handlers) getRun(w http.ResponseWriter, r *http.Request) {
	rec, err := h.gw.Inspect(r.PathValue("id"))
	if errors.Is(err, report.ErrNotFound) {
		h.json(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	if err != nil {
		h.logger.Error("loading run failed", "error", err)
		h.json(w, http.StatusInternalServerError, map[string]string{"error": "loading run failed"})
		return
	}
	h.json(w, http.StatusOK, rec)
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	h.json(w, http.StatusOK, map[string]any{
		"status":     "healthy",
		"executions": h.gw.Executions(),
	})
}

func (h *Handlers) openAPIDocument(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openAPI)
}

// json writes v without the trailing newline json.Encoder would add.
func (h *Handlers) json(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("encoding response failed", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
