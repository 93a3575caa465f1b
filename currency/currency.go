// Package currency converts source marketplace prices into destination currency units.
package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

const (
	// DefaultAdjustment is added to the fetched rate before conversion.
	DefaultAdjustment = 3.6
	// DefaultFallbackRate is the flat multiplier used when no rate is available.
	DefaultFallbackRate = 110
)

// Fetcher retrieves a URL body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Rate is the exchange rate fetched once per run. OK is false when the
// source was unavailable and fallback conversion applies.
type Rate struct {
	Value float64
	OK    bool
}

// Options tunes the conversion formula.
type Options struct {
	Adjustment   float64
	FallbackRate float64
}

// Converter turns source price text into whole destination units.
type Converter struct {
	rate Rate
	opts Options
}

// NewConverter binds a rate and options. Zero options take the defaults.
func NewConverter(rate Rate, opts Options) *Converter {
	if opts.FallbackRate <= 0 {
		opts.FallbackRate = DefaultFallbackRate
	}
	return &Converter{rate: rate, opts: opts}
}

// Rate returns the rate the converter was built with.
func (c *Converter) Rate() Rate {
	return c.rate
}

// Convert parses amount and converts it. Empty or malformed text converts to 0.
func (c *Converter) Convert(amount string) int64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(amount), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	if !c.rate.OK {
		return int64(math.Round(value * c.opts.FallbackRate))
	}
	return int64(math.Round(value * (c.rate.Value + c.opts.Adjustment)))
}

type rateResponse map[string]json.RawMessage

// FetchRate requests the rate endpoint and reads currencyKey from a
// {"result":"ok","JPY":"..."} document. Any failure yields Rate{OK: false}.
func FetchRate(ctx context.Context, fetcher Fetcher, url, currencyKey string) Rate {
	body, err := fetcher.Fetch(ctx, url)
	if err != nil {
		slog.Warn("exchange rate unavailable, using fallback",
			slog.String("url", url),
			slog.Any("error", err),
		)
		return Rate{}
	}

	value, err := parseRate(body, currencyKey)
	if err != nil {
		slog.Warn("exchange rate unusable, using fallback",
			slog.String("url", url),
			slog.Any("error", err),
		)
		return Rate{}
	}

	slog.Info("exchange rate fetched",
		slog.String("currency", currencyKey),
		slog.Float64("rate", value),
	)
	return Rate{Value: value, OK: true}
}

func parseRate(body []byte, currencyKey string) (float64, error) {
	var doc rateResponse
	if err := json.Unmarshal(body, &doc); err != nil {
		return 0, fmt.Errorf("decode rate response: %w", err)
	}

	var result string
	if raw, ok := doc["result"]; ok {
		_ = json.Unmarshal(raw, &result)
	}
	if result != "ok" {
		return 0, fmt.Errorf("rate response result %q", result)
	}

	raw, ok := doc[currencyKey]
	if !ok {
		return 0, fmt.Errorf("rate response missing %s", currencyKey)
	}

	text := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s rate: %w", currencyKey, err)
	}
	if value <= 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("invalid %s rate %v", currencyKey, value)
	}
	return value, nil
}
