package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/aluiziolira/go-storefront-export/models"
	"github.com/aluiziolira/go-storefront-export/scraper"
)

// Fetcher retrieves the body of a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ImageReport summarises one EnsureLocal call. Names are staging basenames.
type ImageReport struct {
	Downloaded []string
	Cached     []string
	Missing    []string
}

// Staged returns the names present in the staging directory after the call.
func (r ImageReport) Staged() []string {
	staged := make([]string, 0, len(r.Downloaded)+len(r.Cached))
	staged = append(staged, r.Downloaded...)
	return append(staged, r.Cached...)
}

// StagedNames returns the staging basenames of every image of d.
func StagedNames(d models.ItemDetail) []string {
	names := make([]string, 0, len(d.ImageURLs))
	for i, imageURL := range d.ImageURLs {
		names = append(names, ImageName(d.ItemID, i+1, imageURL))
	}
	return names
}

// ImageName is the staged file name of the image at 1-based position pos.
// The extension comes from the URL path and may be empty.
func ImageName(itemID string, pos int, rawURL string) string {
	ext := path.Ext(rawURL)
	if parsed, err := url.Parse(rawURL); err == nil {
		ext = path.Ext(parsed.Path)
	}
	return itemID + "_" + strconv.Itoa(pos) + ext
}

// ImageFetcher downloads item images into the staging directory.
type ImageFetcher struct {
	fetcher Fetcher
	dir     string
	retry   scraper.RetryPolicy
	metrics Recorder
}

// NewImageFetcher builds an ImageFetcher. metrics may be nil.
func NewImageFetcher(fetcher Fetcher, stagingDir string, retry scraper.RetryPolicy, metrics Recorder) *ImageFetcher {
	return &ImageFetcher{
		fetcher: fetcher,
		dir:     stagingDir,
		retry:   retry,
		metrics: metrics,
	}
}

// Dir returns the staging directory.
func (f *ImageFetcher) Dir() string {
	return f.dir
}

// EnsureLocal stages every image of d. Files already present are not fetched again. A download that still fails
// after all attempts is reported in Missing; only context cancellation and
// staging directory errors are returned.
func (f *ImageFetcher) EnsureLocal(ctx context.Context, d models.ItemDetail) (ImageReport, error) {
	var report ImageReport
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return report, fmt.Errorf("create staging dir: %w", err)
	}

	for i, imageURL := range d.ImageURLs {
		name := ImageName(d.ItemID, i+1, imageURL)
		target := filepath.Join(f.dir, name)

		if _, err := os.Stat(target); err == nil {
			report.Cached = append(report.Cached, name)
			recordImage(f.metrics, "cached")
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return report, fmt.Errorf("stat staged image %s: %w", name, err)
		}

		attempts, err := f.retry.Do(ctx, func(ctx context.Context) error {
			return f.download(ctx, imageURL, target)
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			slog.Warn("image download failed, reference dropped",
				slog.String("item_id", d.ItemID),
				slog.String("image", name),
				slog.String("url", imageURL),
				slog.Int("attempts", attempts),
				slog.Any("error", err),
			)
			report.Missing = append(report.Missing, name)
			recordImage(f.metrics, "failed")
			continue
		}
		report.Downloaded = append(report.Downloaded, name)
		recordImage(f.metrics, "downloaded")
	}
	return report, nil
}

// download writes to a temporary file first so a partial body never
// counts as a staged image.
func (f *ImageFetcher) download(ctx context.Context, imageURL, target string) error {
	body, err := f.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, ".download-*")
	if err != nil {
		return fmt.Errorf("create temp image: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close image: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename image: %w", err)
	}
	return nil
}

func recordImage(r Recorder, outcome string) {
	if r != nil {
		r.IncImage(outcome)
	}
}
