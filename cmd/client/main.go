// Command lottery-client is a reference agency client driving the protocol
// implemented by cmd/server: it streams a CSV of bets, declares completion,
// and polls for winners, all interruptible via SIGTERM/SIGINT.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fedepagnotta/tp0-distribuidos/client"
	"github.com/fedepagnotta/tp0-distribuidos/internal/logging"
)

var log = logging.MustGetLogger("main")

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("lottery-client", flag.ContinueOnError)
	agencyID := fs.String("agency-id", "", "this agency's numeric id")
	serverAddr := fs.String("server-address", "localhost:12345", "lottery server host:port")
	betsFile := fs.String("bets-file", "", "path to the agency's bets CSV (nombre,apellido,documento,nacimiento,numero)")
	batchMax := fs.Int("batch-max-amount", 50, "maximum bets per batch, 0 for size-only bounding")
	logLevel := fs.String("log-level", "INFO", "DEBUG|INFO|WARNING|ERROR|CRITICAL")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	if err := logging.InitLogger(*logLevel); err != nil {
		return fmt.Errorf("logging configuration error: %w", err)
	}
	if *agencyID == "" {
		return fmt.Errorf("-agency-id is required")
	}
	if *betsFile == "" {
		return fmt.Errorf("-bets-file is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := client.New(client.Config{
		AgencyID:       *agencyID,
		ServerAddress:  *serverAddr,
		BetsFilePath:   *betsFile,
		BatchMaxAmount: *batchMax,
	})

	log.Infof("action: config | result: success | agency_id: %s | server_address: %s", *agencyID, *serverAddr)
	return c.Run(ctx)
}
