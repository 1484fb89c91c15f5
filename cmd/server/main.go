// Command lottery-server is the entrypoint wiring config, logging, metrics,
// the bet store, the barrier, and the acceptor together, and driving
// signal-triggered graceful shutdown (spec.md §4.F, §9).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fedepagnotta/tp0-distribuidos/internal/barrier"
	"github.com/fedepagnotta/tp0-distribuidos/internal/config"
	"github.com/fedepagnotta/tp0-distribuidos/internal/logging"
	"github.com/fedepagnotta/tp0-distribuidos/internal/lottery"
	"github.com/fedepagnotta/tp0-distribuidos/internal/metrics"
	"github.com/fedepagnotta/tp0-distribuidos/internal/store"
)

var log = logging.MustGetLogger("main")

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	if err := logging.InitLogger(cfg.LogLevel); err != nil {
		return fmt.Errorf("logging configuration error: %w", err)
	}

	log.Infof(
		"action: config | result: success | port: %d | listen_backlog: %d | expected_agencies: %d | log_level: %s | store_path: %s",
		cfg.Port, cfg.ListenBacklog, cfg.ExpectedAgencies, cfg.LogLevel, cfg.StorePath,
	)

	metricsServer := metrics.StartHTTP(cfg.MetricsAddr)
	if metricsServer != nil {
		defer metricsServer.Close()
	}

	st := store.NewFileStore(cfg.StorePath)
	b := barrier.New(cfg.ExpectedAgencies)

	srv := lottery.New(st, b, cfg.AcceptTimeout, cfg.ShutdownTimeout)
	if err := srv.Listen(cfg.Port); err != nil {
		log.Criticalf("action: bind | result: fail | error: %v", err)
		return fmt.Errorf("action: bind | result: fail | error: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := make(chan error, 1)
	go func() { runErr <- srv.Run(ctx) }()

	<-ctx.Done()
	log.Infof("action: shutdown_signal | result: success")
	if err := srv.Shutdown(); err != nil {
		return fmt.Errorf("action: shutdown | result: fail | error: %w", err)
	}
	return <-runErr
}
