package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aluiziolira/go-storefront-export/config"
	"github.com/aluiziolira/go-storefront-export/currency"
	"github.com/aluiziolira/go-storefront-export/models"
	"github.com/aluiziolira/go-storefront-export/pipeline"
	"github.com/aluiziolira/go-storefront-export/ratelimit"
	"github.com/aluiziolira/go-storefront-export/scraper"
	"github.com/aluiziolira/go-storefront-export/store"
)

// runner executes the stages of one export run against a single store.
type runner struct {
	cfg     *config.Config
	runID   string
	store   store.Store
	client  *scraper.Client
	metrics *scraper.Metrics
	// pacer and sleep default to the configured polite delay and real sleeps.
	pacer ratelimit.Pacer
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func (r *runner) run(ctx context.Context) (*models.RunResult, error) {
	cfg := r.cfg
	if r.pacer == nil {
		r.pacer = ratelimit.Delay(cfg.PoliteDelay)
	}
	if r.sleep == nil {
		r.sleep = ratelimit.Sleep
	}
	if r.now == nil {
		r.now = time.Now
	}

	result := &models.RunResult{
		RunID:     r.runID,
		StoreID:   cfg.StoreID,
		StartTime: r.now(),
	}
	defer func() {
		stats := r.client.Stats()
		result.RequestCount = stats.RequestCount
		result.ErrorCount = stats.ErrorCount
		result.FailedURLs = stats.FailedURLs
		result.ErrorsByType = stats.ErrorsByType
		result.EndTime = r.now()
	}()

	if strings.TrimSpace(cfg.StoreID) == "" {
		return result, scraper.ErrMissingStoreID
	}
	if err := r.store.ResetStore(ctx, cfg.StoreID); err != nil {
		return result, fmt.Errorf("reset store records: %w", err)
	}

	rate := currency.FetchRate(ctx, r.client.Fetcher("rate"), cfg.RateURL, cfg.RateCurrency)
	converter := currency.NewConverter(rate, currency.Options{
		Adjustment:   cfg.RateAdjustment,
		FallbackRate: cfg.FallbackRate,
	})
	slog.Info("exchange rate",
		slog.Float64("rate", rate.Value),
		slog.Bool("fetched", rate.OK),
	)

	pages, err := r.crawl(ctx, result)
	result.PageCount = pages
	if err != nil {
		return result, err
	}

	if err := r.collect(ctx, converter, result); err != nil {
		return result, err
	}

	details, err := r.store.ListDetails(ctx, cfg.StoreID)
	if err != nil {
		return result, fmt.Errorf("list details: %w", err)
	}

	retry := scraper.RetryPolicy{
		MaxAttempts: cfg.ImageAttempts,
		Backoff:     cfg.ImageBackoff,
		Metrics:     r.metrics,
		Sleep: func(ctx context.Context, d time.Duration) error {
			result.RetryCount++
			return r.sleep(ctx, d)
		},
	}
	images := pipeline.NewImageFetcher(r.client.Fetcher("image"), cfg.StagingDir, retry, r.metrics)
	expander := pipeline.NewExpander(pipeline.Pricing{
		PlatformFeePercent: cfg.PlatformFeePercent,
		ShippingFee:        cfg.ShippingFee,
		ProfitMargin:       cfg.ProfitMargin,
	}, cfg.ItemURL)
	exporter := pipeline.NewExporter(pipeline.Options{
		OutputDir:      cfg.OutputDir,
		StagingDir:     cfg.StagingDir,
		MaxRowsPerFile: cfg.MaxRowsPerFile,
		Now:            r.now,
	}, expander, images, r.metrics)

	exported, err := exporter.Export(ctx, cfg.StoreID, details)
	if exported != nil {
		result.BatchCount = len(exported.Batches)
		result.RowCount = exported.RowCount
		result.MissingImages = exported.MissingImages
		result.OutputFiles = exported.Files()
	}
	if err != nil {
		return result, fmt.Errorf("export batches: %w", err)
	}
	return result, nil
}

// crawl stores every new catalog item and returns the number of pages fetched.
// Page failures are logged and skipped; store failures end the run.
func (r *runner) crawl(ctx context.Context, result *models.RunResult) (int, error) {
	crawler := scraper.NewCrawler(r.cfg, r.client, r.store, r.pacer, r.metrics)

	for item, err := range crawler.Crawl(ctx, r.cfg.StoreID) {
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return crawler.Pages(), ctxErr
			}
			if errors.Is(err, scraper.ErrMissingStoreID) {
				return crawler.Pages(), err
			}
			slog.Warn("catalog page skipped", slog.Any("error", err))
			continue
		}

		if err := r.store.InsertItem(ctx, item); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				continue
			}
			return crawler.Pages(), fmt.Errorf("insert item %s: %w", item.ItemID, err)
		}
		result.ItemCount++
	}

	slog.Info("catalog crawl finished",
		slog.Int("pages", crawler.Pages()),
		slog.Int("items", result.ItemCount),
	)
	return crawler.Pages(), nil
}

// collect builds and stores the detail of every catalog item of the store.
// An item whose detail cannot be collected is skipped.
func (r *runner) collect(ctx context.Context, converter *currency.Converter, result *models.RunResult) error {
	items, err := r.store.ListItems(ctx, r.cfg.StoreID)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}

	var dump *pipeline.JSONWriter
	if r.cfg.DetailsDump != "" {
		dump, err = pipeline.NewJSONWriter(r.cfg.DetailsDump)
		if err != nil {
			return err
		}
		defer func() {
			if err := dump.Close(); err != nil {
				slog.Error("close details dump", slog.Any("error", err))
			}
		}()
	}

	collector := scraper.NewDetailCollector(r.client.Fetcher("detail"), nil, converter, r.pacer, r.metrics)
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}

		detail, err := collector.Collect(ctx, item)
		if err != nil {
			slog.Warn("item detail skipped",
				slog.String("item_id", item.ItemID),
				slog.Any("error", err),
			)
			continue
		}
		if err := r.store.InsertDetail(ctx, detail); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				continue
			}
			return fmt.Errorf("insert detail %s: %w", detail.ItemID, err)
		}
		if dump != nil {
			if err := dump.Write([]models.ItemDetail{detail}); err != nil {
				return err
			}
		}
		result.DetailCount++

		slog.Info("item detail collected",
			slog.String("item_id", detail.ItemID),
			slog.Int("index", i+1),
			slog.Int("total", len(items)),
		)
	}
	return nil
}
