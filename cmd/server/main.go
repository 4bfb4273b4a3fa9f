package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clinote/internal/app"
	"clinote/internal/config"
	"clinote/internal/observability"
)

func main() {
	configPath := flag.String("config", os.Getenv("CLINOTE_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(cfg.Tracing.Stdout)
	if err != nil {
		slog.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	a, err := app.New(ctx, cfg, prometheus.DefaultRegisterer)
	if err != nil {
		slog.Error("Failed to start services", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	go func() {
		if err := a.WatchChanges(ctx); err != nil {
			slog.Error("Index change listener stopped", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           a.Server(promhttp.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("Listening", "addr", srv.Addr, "llm_model", cfg.LLM.Model)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Warn("Tracing shutdown failed", "error", err)
	}
}
