// Package pipeline expands item details into destination rows and writes
// them as paired CSV and image zip batches.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/aluiziolira/go-storefront-export/models"
)

// Recorder receives export counters. *scraper.Metrics implements it.
type Recorder interface {
	IncImage(outcome string)
	AddRows(n int)
	IncBatches()
}

// Stager makes the images of an item available in the staging directory.
type Stager interface {
	EnsureLocal(ctx context.Context, d models.ItemDetail) (ImageReport, error)
}

// Options configures an Exporter.
type Options struct {
	OutputDir      string
	StagingDir     string
	MaxRowsPerFile int
	// Now stamps batch file names; defaults to time.Now.
	Now func() time.Time
}

// Batch describes one written CSV and zip pair.
type Batch struct {
	Seq     int
	CSVPath string
	ZipPath string
	Rows    int
	Images  []string
}

// ExportResult summarises an export.
type ExportResult struct {
	Batches       []Batch
	ItemCount     int
	RowCount      int
	MissingImages int
}

// Files returns the paths of every written artifact in batch order.
func (r *ExportResult) Files() []string {
	files := make([]string, 0, len(r.Batches)*2)
	for _, b := range r.Batches {
		files = append(files, b.CSVPath, b.ZipPath)
	}
	return files
}

// Exporter streams item details into row-capped batches.
type Exporter struct {
	opts     Options
	expander *Expander
	images   Stager
	metrics  Recorder
}

// NewExporter builds an Exporter. metrics may be nil.
func NewExporter(opts Options, expander *Expander, images Stager, metrics Recorder) *Exporter {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Exporter{
		opts:     opts,
		expander: expander,
		images:   images,
		metrics:  metrics,
	}
}

type batchState struct {
	storeID string
	date    string
	seq     int
	pending []models.ExportRow
	staged  []string
}

// Export writes details in order. Before an item whose rows would push the
// pending batch over the cap, the pending batch is flushed; the item's
// images are staged after that so they land in the same batch as its rows.
// Each zip holds only the images staged for its own rows. Staged files that
// belong to none of details are removed first.
// CSV and zip errors are returned and end the export.
func (e *Exporter) Export(ctx context.Context, storeID string, details []models.ItemDetail) (*ExportResult, error) {
	result := &ExportResult{}
	if err := e.pruneStaging(details); err != nil {
		return result, err
	}
	state := &batchState{
		storeID: storeID,
		date:    e.opts.Now().Format("20060102"),
		seq:     1,
	}

	for i, detail := range details {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		rows := e.expander.Expand(detail)
		if len(state.pending) > 0 && len(state.pending)+len(rows) > e.opts.MaxRowsPerFile {
			if err := e.flush(state, result); err != nil {
				return result, err
			}
		}
		if len(rows) > e.opts.MaxRowsPerFile {
			slog.Warn("item exceeds row cap, written as its own oversized batch; the destination import may reject the file",
				slog.String("item_id", detail.ItemID),
				slog.Int("rows", len(rows)),
				slog.Int("max_rows", e.opts.MaxRowsPerFile),
			)
		}

		report, err := e.images.EnsureLocal(ctx, detail)
		if err != nil {
			return result, fmt.Errorf("stage images for %s: %w", detail.ItemID, err)
		}
		if len(report.Missing) > 0 {
			dropImages(rows, report.Missing)
			result.MissingImages += len(report.Missing)
		}

		state.pending = append(state.pending, rows...)
		state.staged = append(state.staged, report.Staged()...)
		result.ItemCount++

		slog.Info("processing item",
			slog.String("item_id", detail.ItemID),
			slog.Int("index", i+1),
			slog.Int("total", len(details)),
			slog.Int("rows", len(rows)),
		)
	}

	if len(state.pending) > 0 {
		if err := e.flush(state, result); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (e *Exporter) flush(state *batchState, result *ExportResult) error {
	base := fmt.Sprintf("%s_%s_%03d", state.date, state.storeID, state.seq)
	batch := Batch{
		Seq:     state.seq,
		CSVPath: filepath.Join(e.opts.OutputDir, base+".csv"),
		ZipPath: filepath.Join(e.opts.OutputDir, base+".zip"),
		Rows:    len(state.pending),
	}

	writer, err := NewCSVWriter(batch.CSVPath)
	if err != nil {
		return err
	}
	if err := writer.Write(state.pending); err != nil {
		writer.Close()
		return err
	}
	if err := writer.Validate(); err != nil {
		writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	slices.Sort(state.staged)
	images := slices.Compact(state.staged)
	if err := ZipFiles(e.opts.StagingDir, images, batch.ZipPath); err != nil {
		return err
	}
	if err := DrainDir(e.opts.StagingDir, images); err != nil {
		return err
	}
	batch.Images = slices.Clone(images)

	slog.Info("batch written",
		slog.Int("seq", batch.Seq),
		slog.String("csv", batch.CSVPath),
		slog.String("zip", batch.ZipPath),
		slog.Int("rows", batch.Rows),
		slog.Int("images", len(images)),
	)

	if e.metrics != nil {
		e.metrics.AddRows(batch.Rows)
		e.metrics.IncBatches()
	}
	result.Batches = append(result.Batches, batch)
	result.RowCount += batch.Rows
	state.seq++
	state.pending = state.pending[:0]
	state.staged = state.staged[:0]
	return nil
}

// pruneStaging drops staged files left behind by earlier runs that no item
// of details can use. Files of these items stay as cache hits.
func (e *Exporter) pruneStaging(details []models.ItemDetail) error {
	keep := make(map[string]struct{})
	for _, d := range details {
		for _, name := range StagedNames(d) {
			keep[name] = struct{}{}
		}
	}
	removed, err := PruneDir(e.opts.StagingDir, keep)
	if err != nil {
		return err
	}
	if len(removed) > 0 {
		slog.Info("removed stale staged images",
			slog.String("dir", e.opts.StagingDir),
			slog.Int("count", len(removed)),
		)
	}
	return nil
}

// dropImages blanks references to images that could not be staged so the
// CSV never points at a file missing from the zip.
func dropImages(rows []models.ExportRow, missing []string) {
	gone := make(map[string]struct{}, len(missing))
	for _, name := range missing {
		gone[name] = struct{}{}
	}
	for i := range rows {
		for j, name := range rows[i].Images {
			if _, ok := gone[name]; ok {
				rows[i].Images[j] = ""
			}
		}
	}
}
