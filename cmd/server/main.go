package main

import (
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/omochice/socket-relay/internal/config"
	"github.com/omochice/socket-relay/internal/logging"
	"github.com/omochice/socket-relay/internal/relay"
	"github.com/omochice/socket-relay/internal/server"
)

func main() {
	// Parse command-line flags
	cfg := config.DefaultServer()
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, os.Stderr)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	sink := relay.NewConsoleSink(os.Stdout)
	sink.ShowRemote = cfg.ShowRemote

	srv := server.New(cfg, sink, logger)
	if err := srv.Listen(); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve()
	}()

	// Wait for either error or shutdown signal
	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, server.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", "signal", sig.String())
		if err := srv.Stop(cfg.ShutdownTimeout); err != nil {
			logger.Warn("shutdown incomplete", "error", err)
		}
	}

	logger.Info("server stopped")
}
