// Package models defines data structures for the export pipeline.
package models

import "time"

// CatalogItem is a bare listing entry discovered while walking a store's catalog.
type CatalogItem struct {
	StoreID   string    `json:"store_id"`
	ItemID    string    `json:"item_id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// ItemDetail is the enriched per-item record built from the detail page.
// Prices are whole destination-currency units.
type ItemDetail struct {
	StoreID         string    `json:"store_id"`
	ItemID          string    `json:"item_id"`
	StoreName       string    `json:"store_name"`
	ItemName        string    `json:"item_name"`
	Price           int64     `json:"price"`
	OriginalPrice   int64     `json:"original_price"`
	DiscountAmount  int64     `json:"discount_amount"`
	DiscountPercent int       `json:"discount_percent"`
	Colors          []string  `json:"colors"`
	Sizes           []string  `json:"sizes"`
	ReviewScore     string    `json:"review_score"`
	ReviewCount     int       `json:"review_count"`
	SalesCount      int       `json:"sales_count"`
	ImageURLs       []string  `json:"image_urls"`
	CreatedAt       time.Time `json:"created_at"`
}

// RunResult holds the overall result of an export run.
type RunResult struct {
	RunID         string
	StoreID       string
	StartTime     time.Time
	EndTime       time.Time
	PageCount     int
	ItemCount     int
	DetailCount   int
	ErrorCount    int
	FailedURLs    []string
	ErrorsByType  map[string]int
	RetryCount    int
	RequestCount  int
	BatchCount    int
	RowCount      int
	MissingImages int
	OutputFiles   []string
}
