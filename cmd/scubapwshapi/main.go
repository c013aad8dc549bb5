// Command scubapwshapi serves a weather forecast and a script execution
// gateway over HTTP and MCP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/maddev333/scubapwshapi"
	"github.com/maddev333/scubapwshapi/internal/api"
	"github.com/maddev333/scubapwshapi/internal/config"
	"github.com/maddev333/scubapwshapi/internal/gateway"
	"github.com/maddev333/scubapwshapi/internal/logging"
	govmcp "github.com/maddev333/scubapwshapi/internal/mcp"
	"github.com/maddev333/scubapwshapi/internal/report"
	"github.com/maddev333/scubapwshapi/internal/runner"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("scubapwshapi: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "serve":
		err = serveMain(args)
	case "mcp":
		err = mcpMain(args)
	case "run":
		err = runMain(args)
	case "forecast":
		err = forecastMain(args)
	case "version":
		fmt.Println(scubapwshapi.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "scubapwshapi: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: scubapwshapi <command> [flags]

Commands:
  serve       Start the HTTP API
  mcp         Start the MCP server (stdio, or HTTP with -http)
  run         Run a script from the arguments or stdin and print the output
  forecast    Print a five-day forecast as JSON
  version     Print the version
  help        Show this help

Use "scubapwshapi <command> -h" for command-specific flags.`)
}

// --- serve ---

func serveMain(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configFlag := fs.String("config", "", "path to a config file (default: nearest .scubapwsh)")
	addrFlag := fs.String("addr", "", "listen address (overrides config)")
	_ = fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app, err := newApp(*configFlag)
	if err != nil {
		return err
	}
	defer app.close()

	addr := app.cfg.ListenAddr()
	if *addrFlag != "" {
		addr = *addrFlag
	}

	handler := api.NewHandler(ctx, app.gw, app.logger, api.Options{
		Development: app.cfg.IsDevelopment(),
		RateLimit:   app.cfg.RateLimit,
	})
	app.logger.Info("starting HTTP API",
		"addr", addr,
		"environment", app.cfg.Env(),
		"shell", app.cfg.ShellProgram(),
		"backend", app.cfg.ShellBackend(),
	)
	return serveHTTP(ctx, handler, addr, app.logger)
}

// --- mcp ---

func mcpMain(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	configFlag := fs.String("config", "", "path to a config file (default: nearest .scubapwsh)")
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	httpAddr := fs.String("http", "", "start HTTP server on address (e.g. :9090)")
	_ = fs.Parse(args)

	if *instructions {
		fmt.Print(govmcp.Instructions)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app, err := newApp(*configFlag)
	if err != nil {
		return err
	}
	defer app.close()

	server := govmcp.NewServer(app.gw)
	if *httpAddr != "" {
		handler := mcpsdk.NewStreamableHTTPHandler(
			func(_ *http.Request) *mcpsdk.Server { return server },
			nil,
		)
		return serveHTTP(ctx, handler, *httpAddr, app.logger)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

// --- run ---

func runMain(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configFlag := fs.String("config", "", "path to a config file (default: nearest .scubapwsh)")
	jsonFlag := fs.Bool("json", false, "print the output as a JSON string")
	_ = fs.Parse(args)

	script := strings.Join(fs.Args(), " ")
	if script == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading script: %w", err)
		}
		script = string(data)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app, err := newApp(*configFlag)
	if err != nil {
		return err
	}
	defer app.close()

	res, err := app.gw.Execute(ctx, script)
	if errors.Is(err, runner.ErrInvalidInput) {
		fmt.Fprintln(os.Stderr, "scubapwshapi: no script given")
		os.Exit(2)
	}
	if err != nil {
		return err
	}

	if *jsonFlag {
		return json.NewEncoder(os.Stdout).Encode(res.Combined())
	}
	fmt.Print(res.Combined())
	if res.ExitCode != 0 {
		os.Exit(res.ExitCode)
	}
	return nil
}

// --- forecast ---

func forecastMain(args []string) error {
	fs := flag.NewFlagSet("forecast", flag.ExitOnError)
	_ = fs.Parse(args)

	gw := gateway.New(nil, nil, nil)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(gw.Forecast())
}

// --- shared ---

type app struct {
	cfg    *config.Config
	logger *slog.Logger
	gw     *gateway.Gateway
	closer []func() error
}

func newApp(configPath string) (*app, error) {
	var (
		loaded *config.LoadResult
		err    error
	)
	if configPath != "" {
		loaded, err = config.LoadFile(configPath)
	} else {
		var wd string
		wd, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determining working directory: %w", err)
		}
		loaded, err = config.Load(wd)
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg := loaded.Config

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, closer: []func() error{closeLog}}

	store, closeStore, err := report.Open(cfg.HistoryBackend(), cfg.History.Path, cfg.HistoryCacheSize())
	if err != nil {
		a.close()
		return nil, fmt.Errorf("opening history: %w", err)
	}
	a.closer = append(a.closer, closeStore)

	if loaded.Path != "" {
		logger.Debug("loaded config", "path", loaded.Path)
	}

	a.gw = gateway.New(gateway.NewRunner(cfg, logger), store, logger)
	return a, nil
}

func (a *app) close() {
	for i := len(a.closer) - 1; i >= 0; i-- {
		_ = a.closer[i]()
	}
}

func serveHTTP(ctx context.Context, handler http.Handler, addr string, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
