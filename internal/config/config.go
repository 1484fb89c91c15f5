// Package config parses server startup configuration the way
// kstaniek-go-ampio-server/cmd/can-server/config.go does: flag.* for CLI
// flags, environment-variable overrides applied only where the matching
// flag was not explicitly set, then a pure validate() pass.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the server's startup parameters (spec.md §6 and
// SPEC_FULL.md §2.2).
type Config struct {
	Port             int
	ListenBacklog    int
	ExpectedAgencies int
	LogLevel         string
	AcceptTimeout    time.Duration
	ShutdownTimeout  time.Duration
	StorePath        string
	MetricsAddr      string
}

const (
	defaultPort             = 12345
	defaultListenBacklog    = 5
	defaultExpectedAgencies = 5
	defaultLogLevel         = "INFO"
	defaultAcceptTimeout    = 5 * time.Second
	defaultShutdownTimeout  = 2 * time.Second
	defaultStorePath        = "./bets.csv"
)

// Parse reads CLI flags from args (pass os.Args[1:] in production), applies
// LOTTERY_SERVER_* environment overrides for any flag not explicitly set in
// args, and validates the result.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("lottery-server", flag.ContinueOnError)
	port := fs.Int("port", defaultPort, "TCP listen port")
	backlog := fs.Int("listen-backlog", defaultListenBacklog, "listen() backlog")
	expected := fs.Int("expected-agencies", defaultExpectedAgencies, "barrier completion threshold")
	logLevel := fs.String("log-level", defaultLogLevel, "DEBUG|INFO|WARNING|ERROR|CRITICAL")
	acceptTimeout := fs.Duration("accept-timeout", defaultAcceptTimeout, "accept-loop wakeup period")
	shutdownTimeout := fs.Duration("shutdown-timeout", defaultShutdownTimeout, "bounded worker join wait on shutdown")
	storePath := fs.String("store-path", defaultStorePath, "file backing the bet store adapter")
	metricsAddr := fs.String("metrics-addr", "", "optional Prometheus /metrics HTTP listen address")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	set := map[string]struct{}{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = struct{}{} })

	cfg := &Config{
		Port:             *port,
		ListenBacklog:    *backlog,
		ExpectedAgencies: *expected,
		LogLevel:         *logLevel,
		AcceptTimeout:    *acceptTimeout,
		ShutdownTimeout:  *shutdownTimeout,
		StorePath:        *storePath,
		MetricsAddr:      *metricsAddr,
	}

	if err := applyEnvOverrides(cfg, set); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks only value ranges/shapes; it never touches the network
// or filesystem.
func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be in 1..65535 (got %d)", c.Port)
	}
	if c.ListenBacklog <= 0 {
		return fmt.Errorf("listen-backlog must be > 0 (got %d)", c.ListenBacklog)
	}
	if c.ExpectedAgencies <= 0 {
		return fmt.Errorf("expected-agencies must be > 0 (got %d)", c.ExpectedAgencies)
	}
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL":
	default:
		return fmt.Errorf("invalid log-level: %s", c.LogLevel)
	}
	if c.AcceptTimeout <= 0 {
		return fmt.Errorf("accept-timeout must be > 0")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown-timeout must be > 0")
	}
	if c.StorePath == "" {
		return fmt.Errorf("store-path must not be empty")
	}
	return nil
}

// applyEnvOverrides maps LOTTERY_SERVER_* environment variables onto cfg,
// skipping any field whose flag was explicitly set (the flag wins).
func applyEnvOverrides(c *Config, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) {
		v, ok := os.LookupEnv(k)
		return strings.TrimSpace(v), ok
	}
	recordErr := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	if _, ok := set["port"]; !ok {
		if v, ok := get("LOTTERY_SERVER_PORT"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.Port = n
			} else {
				recordErr(fmt.Errorf("invalid LOTTERY_SERVER_PORT: %w", err))
			}
		}
	}
	if _, ok := set["listen-backlog"]; !ok {
		if v, ok := get("LOTTERY_SERVER_LISTEN_BACKLOG"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.ListenBacklog = n
			} else {
				recordErr(fmt.Errorf("invalid LOTTERY_SERVER_LISTEN_BACKLOG: %w", err))
			}
		}
	}
	if _, ok := set["expected-agencies"]; !ok {
		if v, ok := get("LOTTERY_SERVER_EXPECTED_AGENCIES"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.ExpectedAgencies = n
			} else {
				recordErr(fmt.Errorf("invalid LOTTERY_SERVER_EXPECTED_AGENCIES: %w", err))
			}
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("LOTTERY_SERVER_LOG_LEVEL"); ok && v != "" {
			c.LogLevel = v
		}
	}
	if _, ok := set["accept-timeout"]; !ok {
		if v, ok := get("LOTTERY_SERVER_ACCEPT_TIMEOUT"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				c.AcceptTimeout = d
			} else {
				recordErr(fmt.Errorf("invalid LOTTERY_SERVER_ACCEPT_TIMEOUT: %w", err))
			}
		}
	}
	if _, ok := set["shutdown-timeout"]; !ok {
		if v, ok := get("LOTTERY_SERVER_SHUTDOWN_TIMEOUT"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				c.ShutdownTimeout = d
			} else {
				recordErr(fmt.Errorf("invalid LOTTERY_SERVER_SHUTDOWN_TIMEOUT: %w", err))
			}
		}
	}
	if _, ok := set["store-path"]; !ok {
		if v, ok := get("LOTTERY_SERVER_STORE_PATH"); ok && v != "" {
			c.StorePath = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("LOTTERY_SERVER_METRICS_ADDR"); ok {
			c.MetricsAddr = v
		}
	}
	return firstErr
}
