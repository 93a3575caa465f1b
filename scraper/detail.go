package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-storefront-export/currency"
	"github.com/aluiziolira/go-storefront-export/models"
	"github.com/aluiziolira/go-storefront-export/parser"
	"github.com/aluiziolira/go-storefront-export/ratelimit"
)

// DetailCollector fetches and extracts the detail page of one catalog item.
// A fetch failure is not retried.
type DetailCollector struct {
	fetcher   Fetcher
	source    parser.DetailSource
	converter *currency.Converter
	pacer     ratelimit.Pacer
	metrics   *Metrics
	now       func() time.Time
}

// NewDetailCollector wires a collector. metrics may be nil.
func NewDetailCollector(fetcher Fetcher, source parser.DetailSource, converter *currency.Converter, pacer ratelimit.Pacer, metrics *Metrics) *DetailCollector {
	if source == nil {
		source = parser.AliExpressSource{}
	}
	if pacer == nil {
		pacer = ratelimit.Nop{}
	}
	return &DetailCollector{
		fetcher:   fetcher,
		source:    source,
		converter: converter,
		pacer:     pacer,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Collect builds the ItemDetail of item. The politeness pause is taken
// whether or not collection succeeds.
func (d *DetailCollector) Collect(ctx context.Context, item models.CatalogItem) (models.ItemDetail, error) {
	detail, err := d.collect(ctx, item)
	// Cancellation is observed by the caller before the next item.
	_ = d.pacer.Pause(ctx)
	if err != nil {
		d.metrics.IncError(errorTypeLabel(err))
		return models.ItemDetail{}, err
	}
	d.metrics.IncDetails()
	return detail, nil
}

func (d *DetailCollector) collect(ctx context.Context, item models.CatalogItem) (models.ItemDetail, error) {
	slog.Debug("collecting item detail",
		slog.String("item_id", item.ItemID),
		slog.String("url", item.URL),
	)

	body, err := d.fetcher.Fetch(ctx, item.URL)
	if err != nil {
		return models.ItemDetail{}, fmt.Errorf("fetch item %s: %w", item.ItemID, err)
	}

	fields, err := d.source.ExtractDetail(body)
	if err != nil {
		return models.ItemDetail{}, fmt.Errorf("extract item %s: %w", item.ItemID, err)
	}

	price := d.converter.Convert(fields.Price)
	originalPrice := d.converter.Convert(fields.OriginalPrice)

	detail := models.ItemDetail{
		StoreID:         item.StoreID,
		ItemID:          item.ItemID,
		StoreName:       fields.StoreName,
		ItemName:        fields.ItemName,
		Price:           price,
		OriginalPrice:   originalPrice,
		DiscountAmount:  originalPrice - price,
		DiscountPercent: parser.ParseCount(fields.Discount),
		Colors:          fields.Colors,
		Sizes:           fields.Sizes,
		ReviewScore:     fields.ReviewScore,
		ReviewCount:     parser.ParseCount(fields.ReviewCount),
		SalesCount:      parser.ParseCount(fields.SalesCount),
		ImageURLs:       fields.ImageURLs,
		CreatedAt:       d.now(),
	}
	if err := parser.ValidateDetail(&detail); err != nil {
		return models.ItemDetail{}, fmt.Errorf("validate item %s: %w", item.ItemID, err)
	}
	return detail, nil
}
