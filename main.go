package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teilomillet/lucid/config"
	"github.com/teilomillet/lucid/errors"
	"github.com/teilomillet/lucid/logging"
	"github.com/teilomillet/lucid/server"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (watched for changes)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Critical error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Critical error: Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		// Syncing stderr fails on some platforms; nothing useful can be done.
		_ = logger.Sync()
	}()

	errors.SetLogger(logger)

	srv, err := newServer(*configPath, cfg, logger)
	if err != nil {
		logger.Fatal("Server initialization failed",
			zap.Error(err),
			zap.String("config_path", *configPath),
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("Shutdown signal received",
			zap.String("signal", sig.String()),
			zap.String("action", "initiating graceful shutdown"),
		)
		cancel()
	}()

	logger.Info("Starting lucid",
		zap.Int("port", cfg.Server.Port),
		zap.String("model", cfg.Model),
		zap.String("backend", cfg.Backend.Kind),
	)
	if err := srv.Start(ctx); err != nil {
		logger.Fatal("Server startup or runtime error",
			zap.Error(err),
			zap.String("action", "server_start_failed"),
		)
	}
}

// loadConfig reads the file at path, or returns the defaults when path is
// empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.LoadFile(path)
}

// newServer watches path for changes when given, and serves cfg unchanged
// otherwise. Missing credentials come from the environment.
func newServer(path string, cfg *config.Config, logger *zap.Logger) (*server.Server, error) {
	if path == "" {
		return server.NewServerWithConfig(config.NewStatic(cfg), logger, server.WithEnvLookup(os.LookupEnv))
	}
	return server.NewServer(path, logger, server.WithEnvLookup(os.LookupEnv))
}
