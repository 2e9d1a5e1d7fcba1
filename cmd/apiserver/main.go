// API server entry point for TechIntel.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/TechIntel/internal/app"
	"github.com/turtacn/TechIntel/internal/config"
	"github.com/turtacn/TechIntel/internal/infrastructure/monitoring/logging"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	watch := flag.Bool("watch", false, "log configuration file changes")
	flag.Parse()

	var opts []config.LoadOption
	if *configPath != "" {
		opts = append(opts, config.WithConfigPath(*configPath))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if *watch && *configPath != "" {
		err := config.Watch(*configPath, func(*config.Config) {
			logger.Warn("Configuration changed; restart to apply", logging.String("path", *configPath))
		}, func(err error) {
			logger.Error("Configuration reload failed", logging.Err(err))
		})
		if err != nil {
			logger.Warn("Configuration watch disabled", logging.Err(err))
		}
	}

	logger.Info("Starting TechIntel API server",
		logging.String("addr", cfg.Server.Addr()),
		logging.String("backend", cfg.Backend.BaseURL))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg, logger); err != nil {
		logger.Error("Server stopped", logging.Err(err))
		stop()
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
