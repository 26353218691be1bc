// Package main is the entry point for the gift redemption server.
// main stays minimal: read configuration, build the logger and catalog,
// hand everything to the server package.
package main

import (
	"log/slog"
	"os"

	"github.com/talmor/giftdesk/internal/catalog"
	"github.com/talmor/giftdesk/internal/config"
	"github.com/talmor/giftdesk/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cat, err := catalog.Load(cfg.CatalogPath, logger)
	if err != nil {
		logger.Error("failed to load gift catalog", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.WatchCatalog {
		if err := cat.Watch(); err != nil {
			logger.Warn("catalog watching disabled", slog.String("error", err.Error()))
		}
	}

	srv, err := server.New(cfg, cat, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
