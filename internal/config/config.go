// Package config loads and validates the optional .scubapwsh YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file looked up by Load.
const FileName = ".scubapwsh"

// Defaults. A zero timeout, output cap or concurrency cap means unbounded.
const (
	DefaultAddr        = ":8080"
	DefaultEnvironment = "production"
	DefaultProgram     = "pwsh"
	DefaultExit        = "Exit"
	DefaultCacheSize   = 64
)

// Shell backends.
const (
	BackendProcess = "process"
	BackendVirtual = "virtual"
)

// History backends.
const (
	HistoryDisk   = "disk"
	HistorySQLite = "sqlite"
)

// Config holds the parsed .scubapwsh configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version       int             `yaml:"version"`
	Environment   string          `yaml:"environment"` // "development" enables the API document
	Addr          string          `yaml:"addr"`
	RawTimeout    string          `yaml:"timeout"`        // e.g. "30s"; empty means none
	RawMaxOutput  int             `yaml:"max_output"`     // bytes per stream; 0 means unlimited
	MaxConcurrent int             `yaml:"max_concurrent"` // 0 means unlimited
	Shell         ShellConfig     `yaml:"shell"`
	Log           LogConfig       `yaml:"log"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
	History       HistoryConfig   `yaml:"history"`
}

// ShellConfig selects the interactive shell scripts are fed to.
type ShellConfig struct {
	Backend string   `yaml:"backend"` // process (default) or virtual
	Program string   `yaml:"program"` // default: pwsh
	Args    []string `yaml:"args"`    // arguments placed before stdin is read
	Exit    string   `yaml:"exit"`    // instruction written after the script; default: Exit
	Dir     string   `yaml:"dir"`     // working directory of the shell
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
	Output string `yaml:"output"` // stdout, stderr or a file path
}

// RateLimitConfig enables per-client token bucket limiting when
// RequestsPerMin is positive.
type RateLimitConfig struct {
	RequestsPerMin int `yaml:"requests_per_min"`
	Burst          int `yaml:"burst"`
}

// HistoryConfig controls where execution records are kept.
type HistoryConfig struct {
	Backend   string `yaml:"backend"`    // disk (default) or sqlite
	Path      string `yaml:"path"`       // sqlite database file
	CacheSize int    `yaml:"cache_size"` // in-memory LRU entries
}

// Timeout returns the configured per-script timeout, or 0 for none.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return 0
}

// MaxOutputBytes returns the configured per-stream output cap, or 0 for none.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return 0
}

// ListenAddr returns the HTTP listen address.
func (c *Config) ListenAddr() string {
	if c.Addr != "" {
		return c.Addr
	}
	return DefaultAddr
}

// Env returns the deployment environment name.
func (c *Config) Env() string {
	if c.Environment != "" {
		return c.Environment
	}
	return DefaultEnvironment
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env() == "development"
}

// ShellBackend returns the configured shell backend.
func (c *Config) ShellBackend() string {
	if c.Shell.Backend != "" {
		return c.Shell.Backend
	}
	return BackendProcess
}

// ShellProgram returns the shell binary, resolved via PATH at spawn time.
func (c *Config) ShellProgram() string {
	if c.Shell.Program != "" {
		return c.Shell.Program
	}
	return DefaultProgram
}

// ExitInstruction returns the line written after the script that makes
// the shell terminate.
func (c *Config) ExitInstruction() string {
	if c.Shell.Exit != "" {
		return c.Shell.Exit
	}
	if c.ShellBackend() == BackendVirtual {
		return "exit"
	}
	return DefaultExit
}

// HistoryBackend returns the configured history backend.
func (c *Config) HistoryBackend() string {
	if c.History.Backend != "" {
		return c.History.Backend
	}
	return HistoryDisk
}

// HistoryCacheSize returns the number of records kept in memory.
func (c *Config) HistoryCacheSize() int {
	if c.History.CacheSize > 0 {
		return c.History.CacheSize
	}
	return DefaultCacheSize
}

// Validate reports settings that cannot be honoured.
func (c *Config) Validate() error {
	switch c.ShellBackend() {
	case BackendProcess, BackendVirtual:
	default:
		return fmt.Errorf("unknown shell backend %q", c.Shell.Backend)
	}
	switch c.HistoryBackend() {
	case HistoryDisk:
	case HistorySQLite:
		if c.History.Path == "" {
			return fmt.Errorf("history.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown history backend %q", c.History.Backend)
	}
	if c.RawTimeout != "" {
		if _, err := time.ParseDuration(c.RawTimeout); err != nil {
			return fmt.Errorf("invalid timeout %q: %w", c.RawTimeout, err)
		}
	}
	if c.MaxConcurrent < 0 {
		return fmt.Errorf("max_concurrent must not be negative")
	}
	if c.RateLimit.RequestsPerMin < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit values must not be negative")
	}
	return nil
}

// LoadResult holds the parsed config and the directory it was found in.
type LoadResult struct {
	Config *Config
	Root   string // directory containing .scubapwsh; falls back to the start dir
	Path   string // path of the file read, empty when defaults are used
}

// Load reads .scubapwsh from dir or the nearest ancestor that has one.
// If no file exists, a default Config is returned.
func Load(dir string) (*LoadResult, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}

	path, err := findConfig(dir)
	if err != nil {
		return &LoadResult{Config: &Config{}, Root: dir}, nil
	}
	return loadFile(path)
}

// LoadFile reads the configuration at an explicit path.
func LoadFile(path string) (*LoadResult, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	return loadFile(path)
}

func loadFile(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}
	return &LoadResult{Config: cfg, Root: filepath.Dir(path), Path: path}, nil
}

// findConfig walks upward from dir looking for a .scubapwsh file.
func findConfig(dir string) (string, error) {
	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s not found", FileName)
		}
		dir = parent
	}
}
