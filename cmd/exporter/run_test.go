package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/aluiziolira/go-storefront-export/config"
	"github.com/aluiziolira/go-storefront-export/models"
	"github.com/aluiziolira/go-storefront-export/ratelimit"
	"github.com/aluiziolira/go-storefront-export/scraper"
	"github.com/aluiziolira/go-storefront-export/store"
)

const detailPayload = `<html><script>window.runParams = {"data":{"storeModule":{"storeName":"Sunny &amp; Co"},` +
	`"titleModule":{"subject":"Summer Dress","tradeCount":1520,"feedbackRating":{"averageStar":"4.8","totalValidNum":312}},` +
	`"priceModule":{"actSkuCalPrice":"12.50","skuCalPrice":"25.00","discount":50},` +
	`"skuModule":{"productSKUPropertyList":[` +
	`{"skuPropertyName":"Color","skuPropertyValues":[{"propertyValueDisplayName":"red"},{"propertyValueDisplayName":"blue"}]},` +
	`{"skuPropertyName":"Size","skuPropertyValues":[{"propertyValueDisplayName":"s"},{"propertyValueDisplayName":"m"}]}]},` +
	`"imageModule":{"imagePathList":["https://cdn.test/a.jpg","https://cdn.test/b.png"]}}};</script></html>`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.StoreID = "42"
	cfg.Host = "https://shop.test"
	cfg.RateURL = "https://rate.test/usd"
	cfg.OutputDir = filepath.Join(dir, "base")
	cfg.StagingDir = filepath.Join(dir, "temp_image")
	cfg.DetailsDump = filepath.Join(dir, "details.jsonl")
	cfg.StoreBackend = "memory"
	cfg.PoliteDelay = 0
	cfg.Timeout = 5 * time.Second
	return cfg
}

func newTestRunner(t *testing.T, cfg *config.Config, st store.Store) (*runner, *httpmock.MockTransport) {
	t.Helper()
	metrics := scraper.NewMetrics()
	client, err := scraper.NewClient(cfg, metrics)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	transport := httpmock.NewMockTransport()
	client.Collector().WithTransport(transport)

	return &runner{
		cfg:     cfg,
		runID:   "run-test",
		store:   st,
		client:  client,
		metrics: metrics,
		pacer:   ratelimit.Nop{},
		sleep:   func(context.Context, time.Duration) error { return nil },
		now:     func() time.Time { return time.Date(2025, 11, 4, 9, 0, 0, 0, time.UTC) },
	}, transport
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(http.StatusOK, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func storePage(itemIDs ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul class="items-list">`)
	for _, id := range itemIDs {
		fmt.Fprintf(&b, `<li class="item"><div class="info"><input type="hidden" class="atc-product-id" value="%s"/></div></li>`, id)
	}
	b.WriteString(`</ul><div class="ui-pagination-navi">Previous 1 Next</div></body></html>`)
	return b.String()
}

func TestRunExportsStore(t *testing.T) {
	cfg := testConfig(t)
	st := store.NewMemoryStore()
	ctx := context.Background()

	// Left over from an earlier run; the reset makes it discoverable again.
	if err := st.InsertItem(ctx, models.CatalogItem{StoreID: "42", ItemID: "1001"}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	r, transport := newTestRunner(t, cfg, st)
	transport.RegisterResponder("GET", "https://rate.test/usd", httpmock.NewStringResponder(http.StatusOK, `{"result":"ok","JPY":"100"}`))
	transport.RegisterResponder("GET", "https://shop.test/store/sale-items/42/1.html", htmlResponder(storePage("1001", "1002")))
	transport.RegisterResponder("GET", "https://shop.test/item/1001.html", htmlResponder(detailPayload))
	transport.RegisterResponder("GET", "https://shop.test/item/1002.html", httpmock.NewStringResponder(http.StatusNotFound, ""))
	transport.RegisterResponder("GET", `=~^https://cdn\.test/`, httpmock.NewBytesResponder(http.StatusOK, []byte("img")))

	result, err := r.run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.PageCount != 1 || result.ItemCount != 2 || result.DetailCount != 1 {
		t.Fatalf("pages=%d items=%d details=%d", result.PageCount, result.ItemCount, result.DetailCount)
	}
	if result.BatchCount != 1 || result.RowCount != 4 || result.MissingImages != 0 {
		t.Fatalf("batches=%d rows=%d missing=%d", result.BatchCount, result.RowCount, result.MissingImages)
	}
	if result.ErrorCount != 1 || result.ErrorsByType["not_found"] != 1 {
		t.Fatalf("errors=%d byType=%v", result.ErrorCount, result.ErrorsByType)
	}
	if result.RequestCount != transport.GetTotalCallCount() {
		t.Fatalf("requests=%d, transport calls=%d", result.RequestCount, transport.GetTotalCallCount())
	}

	wantFiles := []string{
		filepath.Join(cfg.OutputDir, "20251104_42_001.csv"),
		filepath.Join(cfg.OutputDir, "20251104_42_001.zip"),
	}
	if len(result.OutputFiles) != 2 || result.OutputFiles[0] != wantFiles[0] || result.OutputFiles[1] != wantFiles[1] {
		t.Fatalf("output files = %v", result.OutputFiles)
	}

	details, err := st.ListDetails(ctx, "42")
	if err != nil {
		t.Fatalf("list details: %v", err)
	}
	if len(details) != 1 || details[0].Price != 1295 || details[0].OriginalPrice != 2590 || details[0].DiscountAmount != 1295 {
		t.Fatalf("stored details = %+v", details)
	}
	if details[0].StoreName != "Sunny & Co" || details[0].ItemName != "Summer Dress" {
		t.Fatalf("stored details = %+v", details)
	}

	f, err := os.Open(cfg.DetailsDump)
	if err != nil {
		t.Fatalf("open details dump: %v", err)
	}
	defer f.Close()
	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines++
	}
	if lines != 1 {
		t.Fatalf("details dump lines = %d, want 1", lines)
	}
}

func TestRunRequiresStoreID(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreID = "  "

	r, transport := newTestRunner(t, cfg, store.NewMemoryStore())
	_, err := r.run(context.Background())
	if !errors.Is(err, scraper.ErrMissingStoreID) {
		t.Fatalf("expected ErrMissingStoreID, got %v", err)
	}
	if got := transport.GetTotalCallCount(); got != 0 {
		t.Fatalf("expected no requests, got %d", got)
	}
}

func TestRunFallsBackWhenRateUnavailable(t *testing.T) {
	cfg := testConfig(t)
	cfg.DetailsDump = ""
	st := store.NewMemoryStore()

	r, transport := newTestRunner(t, cfg, st)
	transport.RegisterResponder("GET", "https://rate.test/usd", httpmock.NewStringResponder(http.StatusOK, `{"result":"ng"}`))
	transport.RegisterResponder("GET", "https://shop.test/store/sale-items/42/1.html", htmlResponder(storePage("1001")))
	transport.RegisterResponder("GET", "https://shop.test/item/1001.html", htmlResponder(detailPayload))
	transport.RegisterResponder("GET", `=~^https://cdn\.test/`, httpmock.NewStringResponder(http.StatusInternalServerError, ""))

	result, err := r.run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	details, err := st.ListDetails(context.Background(), "42")
	if err != nil {
		t.Fatalf("list details: %v", err)
	}
	if len(details) != 1 || details[0].Price != 1375 {
		t.Fatalf("expected fallback price 1375, got %+v", details)
	}
	if result.MissingImages != 2 || result.RetryCount != 4 {
		t.Fatalf("missing=%d retries=%d", result.MissingImages, result.RetryCount)
	}
	if result.BatchCount != 1 {
		t.Fatalf("batches = %d", result.BatchCount)
	}
}
