package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kworr/smtp2tg/internal/config"
	"github.com/kworr/smtp2tg/internal/dispatch"
	"github.com/kworr/smtp2tg/internal/logging"
	"github.com/kworr/smtp2tg/internal/metrics"
	"github.com/kworr/smtp2tg/internal/route"
	"github.com/kworr/smtp2tg/internal/smtp"
	"github.com/kworr/smtp2tg/internal/telegram"
)

func runServe() {
	flags := config.ParseFlags()

	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel)

	table, err := route.FromConfig(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid routing table: %v\n", err)
		os.Exit(1)
	}
	tables := route.NewStore(table)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range sigChan {
			if sig == syscall.SIGHUP {
				reloadTable(flags.ConfigPath, tables, logger)
				continue
			}
			logger.Info("received signal, shutting down", "signal", sig.String())
			cancel()
			return
		}
	}()

	var collector metrics.Collector = &metrics.NoopCollector{}
	if cfg.Metrics.Enabled {
		collector = metrics.NewPrometheusCollector(prometheus.DefaultRegisterer)
		metricsServer := metrics.NewPrometheusServer(cfg.Metrics.Address, cfg.Metrics.Path)
		go func() {
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	client := telegram.NewClient(cfg.Telegram.APIGateway, cfg.Telegram.APIKey, cfg.Telegram.APITimeout())

	dispatcher := dispatch.New(dispatch.Config{
		MaxInflight:    cfg.Delivery.MaxInflight,
		MaxAttempts:    cfg.Delivery.MaxAttempts,
		RetryBase:      cfg.Delivery.RetryBaseDuration(),
		RetryCap:       cfg.Delivery.RetryCapDuration(),
		QueueDepth:     cfg.Delivery.QueueDepth,
		AttemptTimeout: cfg.Telegram.APITimeout(),
	}, client, dispatch.NewLogReporter(logger), collector, logger)

	backend := smtp.NewBackend(smtp.BackendConfig{
		Hostname:      cfg.Hostname,
		Tables:        tables,
		Dispatcher:    dispatcher,
		Collector:     collector,
		MaxRecipients: cfg.Limits.MaxRecipients,
		Logger:        logger,
	})

	var debug io.Writer
	if cfg.LogLevel == "debug" {
		debug = logging.NewDebugWriter(logger)
	}

	srv := smtp.NewServer(smtp.ServerConfig{
		Backend:        backend,
		Address:        cfg.Listen,
		Hostname:       cfg.Hostname,
		ReadTimeout:    cfg.Timeouts.ConnectionTimeout(),
		WriteTimeout:   cfg.Timeouts.CommandTimeout(),
		MaxMessageSize: cfg.Limits.MaxMessageSize,
		MaxRecipients:  cfg.Limits.MaxRecipients,
		Debug:          debug,
		Logger:         logger,
	})

	logger.Info("starting smtp2tg",
		"hostname", cfg.Hostname,
		"listen", cfg.Listen,
		"domains", table.Domains(),
		"unknown", string(cfg.Unknown))

	if err := srv.Run(ctx); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	// Let queued deliveries finish before exiting.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Warn("dispatcher shutdown incomplete", "error", err)
	}

	logger.Info("stopped")
}

// reloadTable rebuilds the routing table from the config file and swaps it
// in atomically. Sessions in flight keep their snapshot; a broken config
// keeps the old table.
func reloadTable(path string, tables *route.Store, logger *slog.Logger) {
	cfg, err := config.Load(path)
	if err != nil {
		logger.Error("reload failed", "error", err)
		return
	}
	cfg = config.ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error("reload failed", "error", err)
		return
	}
	table, err := route.FromConfig(&cfg)
	if err != nil {
		logger.Error("reload failed", "error", err)
		return
	}
	tables.Swap(table)
	logger.Info("routing table reloaded", "domains", table.Domains())
}
