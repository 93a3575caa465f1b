package scraper

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-storefront-export/config"
	"github.com/aluiziolira/go-storefront-export/models"
	"github.com/aluiziolira/go-storefront-export/ratelimit"
)

const (
	itemSelector       = ".items-list .item"
	itemIDSelector     = ".info > .atc-product-id"
	anyItemIDSelector  = ".atc-product-id"
	paginationSelector = ".ui-pagination-navi"
)

// ItemIndex reports whether an item is already known for a store.
type ItemIndex interface {
	HasItem(ctx context.Context, storeID, itemID string) (bool, error)
}

// Crawler walks the paginated catalog listing of a store.
type Crawler struct {
	cfg     *config.Config
	client  *Client
	index   ItemIndex
	pacer   ratelimit.Pacer
	metrics *Metrics
	now     func() time.Time
	pages   int
}

// NewCrawler wires a crawler. index and metrics may be nil.
func NewCrawler(cfg *config.Config, client *Client, index ItemIndex, pacer ratelimit.Pacer, metrics *Metrics) *Crawler {
	if pacer == nil {
		pacer = ratelimit.Delay(cfg.PoliteDelay)
	}
	return &Crawler{
		cfg:     cfg,
		client:  client,
		index:   index,
		pacer:   pacer,
		metrics: metrics,
		now:     time.Now,
	}
}

type catalogPage struct {
	itemIDs []string
	maxPage int
}

// Crawl yields every item of storeID not seen before, starting at page 1.
// Items already in the index or yielded earlier in this crawl are skipped.
// A failure on page 1 ends the crawl; later page failures are yielded as
// *PageError and the crawl moves on if the consumer keeps iterating.
func (c *Crawler) Crawl(ctx context.Context, storeID string) iter.Seq2[models.CatalogItem, error] {
	return func(yield func(models.CatalogItem, error) bool) {
		storeID = strings.TrimSpace(storeID)
		if storeID == "" {
			yield(models.CatalogItem{}, ErrMissingStoreID)
			return
		}

		seen, err := lru.New[string, struct{}](c.cfg.DedupeCacheSize)
		if err != nil {
			yield(models.CatalogItem{}, fmt.Errorf("dedupe cache: %w", err))
			return
		}

		maxPage := 1
		for page := 1; page <= maxPage; page++ {
			if err := ctx.Err(); err != nil {
				yield(models.CatalogItem{}, err)
				return
			}

			pageURL := c.cfg.CatalogPageURL(storeID, page)
			slog.Info("searching catalog page",
				slog.String("store_id", storeID),
				slog.Int("page", page),
				slog.String("url", pageURL),
			)

			result, err := c.fetchPage(ctx, pageURL)
			if err != nil {
				perr := &PageError{Page: page, URL: pageURL, Err: err}
				if !yield(models.CatalogItem{}, perr) || page == 1 {
					return
				}
			} else {
				c.metrics.IncPages()
				c.pages++
				if page == 1 {
					maxPage = result.maxPage
					slog.Debug("catalog pagination", slog.Int("max_page", maxPage))
				}
				for _, itemID := range result.itemIDs {
					fresh, err := c.admit(ctx, seen, storeID, itemID)
					if err != nil {
						if !yield(models.CatalogItem{}, err) {
							return
						}
						continue
					}
					if !fresh {
						continue
					}
					c.metrics.IncItems()
					item := models.CatalogItem{
						StoreID:   storeID,
						ItemID:    itemID,
						URL:       c.cfg.ItemURL(itemID),
						CreatedAt: c.now(),
					}
					if !yield(item, nil) {
						return
					}
				}
			}

			if err := c.pacer.Pause(ctx); err != nil {
				yield(models.CatalogItem{}, err)
				return
			}
		}
	}
}

// Pages returns the number of catalog pages fetched successfully so far.
func (c *Crawler) Pages() int {
	return c.pages
}

func (c *Crawler) admit(ctx context.Context, seen *lru.Cache[string, struct{}], storeID, itemID string) (bool, error) {
	if seen.Contains(itemID) {
		return false, nil
	}
	if c.index != nil {
		known, err := c.index.HasItem(ctx, storeID, itemID)
		if err != nil {
			return false, fmt.Errorf("check item %s: %w", itemID, err)
		}
		if known {
			seen.Add(itemID, struct{}{})
			return false, nil
		}
	}
	seen.Add(itemID, struct{}{})
	return true, nil
}

func (c *Crawler) fetchPage(ctx context.Context, pageURL string) (catalogPage, error) {
	result := catalogPage{maxPage: 1}

	_, err := c.client.Visit(ctx, "catalog", pageURL, func(collector *colly.Collector) {
		collector.OnHTML("html", func(e *colly.HTMLElement) {
			result.itemIDs = extractItemIDs(e.DOM)
		})
		collector.OnHTML(paginationSelector, func(e *colly.HTMLElement) {
			result.maxPage = parseMaxPage(e.DOM)
		})
	})
	if err != nil {
		return catalogPage{}, err
	}
	return result, nil
}

func extractItemIDs(doc *goquery.Selection) []string {
	var ids []string
	doc.Find(itemSelector).Each(func(_ int, item *goquery.Selection) {
		if id := strings.TrimSpace(item.Find(itemIDSelector).AttrOr("value", "")); id != "" {
			ids = append(ids, id)
		}
	})
	if len(ids) > 0 {
		return ids
	}

	doc.Find(anyItemIDSelector).Each(func(_ int, input *goquery.Selection) {
		if id := strings.TrimSpace(input.AttrOr("value", "")); id != "" {
			ids = append(ids, id)
		}
	})
	return ids
}

// parseMaxPage reads the last page number from the pagination text. Tokens
// before "Next" count; "Previous" and non-numeric tokens are ignored.
func parseMaxPage(navi *goquery.Selection) int {
	maxPage := 1
	for _, token := range strings.Fields(navi.Text()) {
		if token == "Previous" {
			continue
		}
		if token == "Next" {
			break
		}
		if n, err := strconv.Atoi(token); err == nil && n > 0 {
			maxPage = n
		}
	}
	return maxPage
}
