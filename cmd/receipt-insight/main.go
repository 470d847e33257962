package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/zombor/receipt-insight/internal/assistant"
	"github.com/zombor/receipt-insight/internal/config"
	"github.com/zombor/receipt-insight/internal/extraction"
	"github.com/zombor/receipt-insight/internal/metrics"
	"github.com/zombor/receipt-insight/internal/receipt"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	cfg, help, err := config.Load(os.Args[1:], ".env")
	if errors.Is(err, ff.ErrHelp) {
		fmt.Fprintf(os.Stderr, "%s\n", help)
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", help)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if cfg.ShowVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	if err := run(cfg); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheus(registry)

	slog.Info("Initializing storage...", "path", cfg.Storage.UploadsDir)
	store, err := receipt.NewLocalStorage(cfg.Storage.UploadsDir)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	cache, closeCache, err := newCache(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing insight cache: %w", err)
	}
	defer closeCache()

	model, err := newGenerator(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing llm: %w", err)
	}
	defer model.Close()

	extractor, err := newExtractor(ctx, cfg, model)
	if err != nil {
		return fmt.Errorf("initializing text extraction: %w", err)
	}

	translator, err := newTranslator(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing translation: %w", err)
	}

	pipeline := extraction.NewPipeline(extractor, translator, model,
		extraction.WithTargetLanguage(cfg.Google.TargetLanguage),
		extraction.WithCallTimeout(cfg.LLM.CallTimeout),
		extraction.WithMetrics(recorder),
	)

	service := receipt.NewService(store, cache, pipeline, assistant.New(model, cfg.LLM.CallTimeout), recorder)

	removed, err := service.Reconcile(ctx)
	if err != nil {
		slog.Warn("Failed to reconcile insight cache", "error", err)
	} else if removed > 0 {
		slog.Info("Removed orphaned insights", "count", removed)
	}

	server := receipt.NewServer(service, receipt.ServerConfig{
		BasicAuth: receipt.BasicAuth{
			Username: cfg.Server.AuthUser,
			Password: cfg.Server.AuthPass,
		},
		CORSOrigin:     cfg.Server.CORSOrigin,
		Limiter:        rate.NewLimiter(rate.Limit(cfg.Limits.RPS), cfg.Limits.Burst),
		Metrics:        recorder,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(addr)
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if cfg.Server.AuthUser != "" || cfg.Server.AuthPass != "" {
		slog.Info("Basic auth enabled", "user", cfg.Server.AuthUser)
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
