package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"docbridge/internal/platform/config"
	"docbridge/internal/platform/logger"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "docbridge:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Server.Environment, cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	log.Info("starting docbridge",
		"addr", cfg.Server.Addr,
		"env", cfg.Server.Environment,
		"catalog_source", cfg.Catalog.Source,
	)
	return a.run(ctx)
}
