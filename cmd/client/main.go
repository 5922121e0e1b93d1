package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/omochice/socket-relay/internal/client"
	"github.com/omochice/socket-relay/internal/config"
	"github.com/omochice/socket-relay/internal/logging"
)

func main() {
	// Parse command-line flags
	cfg := config.DefaultClient()
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, os.Stderr)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Connect to server
	conn, err := client.Dial(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Client error: %v", err)
	}
	logger.Info("connected", "server", cfg.Server, "framing", cfg.FramingMode().String())

	sender := client.New(conn, cfg.FramingMode(), os.Stdout, logger)
	defer sender.Close()

	// Read from stdin and send one write per line
	if err := sender.Run(os.Stdin); err != nil {
		sender.Close()
		log.Fatalf("Failed to send message: %v", err)
	}
}
