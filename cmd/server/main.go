package main

import (
	"fmt"
	"log/slog"
	"os"

	"webchat-signaling/internal/config"
	"webchat-signaling/internal/server"
	"webchat-signaling/internal/signaling"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	hub := signaling.NewHub(signaling.HubConfig{
		SweepInterval: cfg.HeartbeatInterval,
		StaleTimeout:  cfg.HeartbeatTimeout,
	}, logger)
	go hub.Run()

	router := server.NewRouter(hub, cfg, logger)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("starting signaling server",
		"addr", addr,
		"sweep_interval", cfg.HeartbeatInterval,
		"stale_timeout", cfg.HeartbeatTimeout,
	)

	if err := router.Run(addr); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}
