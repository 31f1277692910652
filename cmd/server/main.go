package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoCodeAlone/atelier/config"
	"github.com/GoCodeAlone/atelier/host"
)

var (
	configFile = flag.String("config", "", "Path to host configuration YAML file")
	addr       = flag.String("addr", "", "HTTP listen address (overrides config)")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	var cfg *config.HostConfig
	if *configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(*configFile)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	} else {
		cfg = config.Default()
		logger.Info("No config file specified, using defaults")
	}
	if *addr != "" {
		cfg.Listen = *addr
	}

	h, err := host.New(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to create host: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := h.Bootstrap(ctx)
	if err != nil {
		log.Fatalf("Bootstrap failed: %v", err)
	}
	logger.Info("Bootstrap complete",
		"registered", res.Registered, "failed", res.Failed, "dropped", res.Dropped)

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Plugin host listening", "addr", cfg.Listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}
	if err := h.Close(); err != nil {
		logger.Error("Host close failed", "error", err)
	}
}
