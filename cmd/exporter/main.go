package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-storefront-export/config"
	"github.com/aluiziolira/go-storefront-export/models"
	"github.com/aluiziolira/go-storefront-export/scraper"
	"github.com/aluiziolira/go-storefront-export/store"
)

func main() {
	defaults, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	storeID := flag.String("store-id", defaults.StoreID, "Source store identifier (required)")
	host := flag.String("host", defaults.Host, "Source marketplace base URL")
	outputDir := flag.String("output-dir", defaults.OutputDir, "Directory for CSV and zip batches")
	stagingDir := flag.String("staging-dir", defaults.StagingDir, "Directory images are staged in before zipping")
	maxRows := flag.Int("max-rows", defaults.MaxRowsPerFile, "Maximum rows per CSV batch")
	politeDelay := flag.Duration("delay", defaults.PoliteDelay, "Pause after every catalog page and item detail")
	requestDelay := flag.Duration("request-delay", defaults.RequestDelay, "Minimum delay between any two requests")
	backend := flag.String("store-backend", defaults.StoreBackend, "Record store backend: memory, sqlite, mysql or postgres")
	dsn := flag.String("store-dsn", defaults.StoreDSN, "Record store DSN")
	detailsDump := flag.String("details-dump", defaults.DetailsDump, "Optional JSONL file receiving every collected item detail")
	metricsAddr := flag.String("metrics-addr", defaults.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", defaults.Verbose, "Enable verbose logging")

	flag.Parse()

	cfg := *defaults
	cfg.StoreID = strings.TrimSpace(*storeID)
	cfg.Host = *host
	cfg.OutputDir = *outputDir
	cfg.StagingDir = *stagingDir
	cfg.MaxRowsPerFile = *maxRows
	cfg.PoliteDelay = *politeDelay
	cfg.RequestDelay = *requestDelay
	cfg.StoreBackend = strings.ToLower(*backend)
	cfg.StoreDSN = *dsn
	cfg.DetailsDump = *detailsDump
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose

	runID := uuid.NewString()
	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger.With(slog.String("run_id", runID)))
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, stopping after the current step")
	}()

	st, err := store.Open(ctx, cfg.StoreBackend, cfg.StoreDSN)
	if err != nil {
		slog.Error("opening record store", slog.String("backend", cfg.StoreBackend), slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("close record store", slog.Any("error", err))
		}
	}()

	metrics := scraper.NewMetrics()
	client, err := scraper.NewClient(&cfg, metrics)
	if err != nil {
		slog.Error("initialising http client", slog.Any("error", err))
		os.Exit(1)
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	slog.Info("starting export",
		slog.String("store_id", cfg.StoreID),
		slog.String("host", cfg.Host),
		slog.String("store_backend", cfg.StoreBackend),
		slog.Int("max_rows", cfg.MaxRowsPerFile),
	)

	r := &runner{
		cfg:     &cfg,
		runID:   runID,
		store:   st,
		client:  client,
		metrics: metrics,
	}
	result, runErr := r.run(ctx)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	if runErr != nil {
		slog.Error("export failed", slog.Any("error", runErr))
		printSummary(result)
		os.Exit(1)
	}
	printSummary(result)
}

func printSummary(result *models.RunResult) {
	if result == nil {
		return
	}
	duration := result.EndTime.Sub(result.StartTime)

	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Export summary")
	fmt.Printf("  Run ID:         %s\n", result.RunID)
	fmt.Printf("  Store:          %s\n", result.StoreID)
	fmt.Printf("  Catalog pages:  %d\n", result.PageCount)
	fmt.Printf("  New items:      %d\n", result.ItemCount)
	fmt.Printf("  Details:        %d\n", result.DetailCount)

	successRate := 0.0
	if result.RequestCount > 0 {
		successRate = float64(result.RequestCount-result.ErrorCount) / float64(result.RequestCount) * 100
	}
	fmt.Printf("  Requests:       %d\n", result.RequestCount)
	fmt.Printf("  Success rate:   %.2f%%\n", successRate)
	fmt.Printf("  Errors:         %d\n", result.ErrorCount)
	fmt.Printf("  Retries:        %d\n", result.RetryCount)
	fmt.Printf("  Failed URLs:    %d\n", len(result.FailedURLs))
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:    %v\n", result.ErrorsByType)
	}
	fmt.Printf("  Batches:        %d\n", result.BatchCount)
	fmt.Printf("  Rows:           %d\n", result.RowCount)
	fmt.Printf("  Missing images: %d\n", result.MissingImages)
	fmt.Printf("  Duration:       %v\n", duration)
	for _, file := range result.OutputFiles {
		fmt.Printf("  Output file:    %s\n", file)
	}
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
