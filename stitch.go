package demmosaic

import (
	"context"
	"io"
	"math"
	"os"
	"runtime"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// A Report summarizes one batch: counts, the assembled grid dimensions,
// and where every tile landed. It is written alongside the rasters so
// consumers know, among other things, whether a zero cell is sea level
// or a missing-data placeholder.
type Report struct {
	Mode            Mode
	DocumentsIn     int
	Parsed          int
	ParseFailures   int
	ShapeMismatches int
	TileRows        int
	TileCols        int
	Ty              int
	Tx              int
	Conflicts       int
	Snapped         int
	Filled          int
	Entries         []PlacementEntry
}

// A Result is one assembled batch.
type Result struct {
	Mosaic          *Mosaic
	AspectCorrected *Mosaic
	Extent          Envelope
	Report          *Report
}

// Stitch runs the full pipeline over a set of tile documents: parallel
// parse, shape validation, coordinate clustering, assembly, the
// mode-dependent missing-value handling, and aspect correction.
//
// Per-document failures are warnings; Stitch fails only when nothing
// usable remains (ErrNoTiles, ErrEmptyGrid) or ctx is canceled.
func Stitch(ctx context.Context, docs []string, cfg Config, logger *log.Logger) (*Result, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if len(docs) == 0 {
		return nil, ErrNoTiles
	}

	// Parse every document into its own Tile; no shared mutable state.
	// Failures are collected per slot and never abort sibling parses.
	tiles := make([]*Tile, len(docs))
	parseErrs := make([]error, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tiles[i], parseErrs[i] = parseTileFile(doc, cfg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		Mode:        cfg.Mode,
		DocumentsIn: len(docs),
	}

	// The expected shape comes from configuration, or from the first
	// successfully parsed tile when unset.
	wantRows, wantCols := cfg.TileRows, cfg.TileCols
	if wantRows <= 0 || wantCols <= 0 {
		for _, t := range tiles {
			if t != nil {
				wantRows, wantCols = t.Rows, t.Cols
				logger.Info("adopted tile shape", "rows", wantRows, "cols", wantCols)
				break
			}
		}
	}
	cfg.TileRows, cfg.TileCols = wantRows, wantCols
	report.TileRows, report.TileCols = wantRows, wantCols

	kept := make([]*Tile, 0, len(tiles))
	for i, t := range tiles {
		if t == nil {
			tileParseFailures.Inc()
			report.ParseFailures++
			logger.Warn("tile rejected", "err", parseErrs[i])
			continue
		}
		tilesParsed.Inc()
		report.Parsed++
		if t.Rows != wantRows || t.Cols != wantCols {
			tileShapeMismatches.Inc()
			report.ShapeMismatches++
			logger.Warn("tile excluded", "err", &ShapeMismatchError{
				Path:     t.Path,
				Rows:     t.Rows,
				Cols:     t.Cols,
				WantRows: wantRows,
				WantCols: wantCols,
			})
			continue
		}
		kept = append(kept, t)
	}
	if len(kept) == 0 {
		return nil, ErrNoTiles
	}

	clusters := BuildClusters(kept, cfg.Tolerance)
	report.Ty, report.Tx = len(clusters.Lat), len(clusters.Lon)
	logger.Info("tile grid",
		"tx", report.Tx, "ty", report.Ty,
		"width", report.Tx*wantCols, "height", report.Ty*wantRows)

	mosaic, entries, conflicts, err := Assemble(ctx, kept, clusters, cfg)
	if err != nil {
		return nil, err
	}
	report.Entries = entries
	report.Conflicts = conflicts
	logConflicts(entries, logger)
	for _, entry := range entries {
		if entry.Snapped {
			report.Snapped++
			logger.Warn("envelope snapped to nearest cluster", "tile", entry.Path,
				"row", entry.Coord.R, "col", entry.Coord.C)
		}
	}

	if cfg.Mode == ModeQuality && cfg.FillPasses > 0 {
		report.Filled = FillMissing(mosaic, cfg.FillPasses)
		if report.Filled > 0 {
			logger.Info("filled missing cells", "cells", report.Filled)
		}
	}

	extent := batchExtent(kept)
	corrected := AspectCorrect(mosaic, extent, InterpolationNearest)
	logger.Info("assembled",
		"tiles", len(kept), "conflicts", conflicts,
		"aspect_width", corrected.Width, "mode", cfg.Mode)

	return &Result{
		Mosaic:          mosaic,
		AspectCorrected: corrected,
		Extent:          extent,
		Report:          report,
	}, nil
}

func parseTileFile(path string, cfg Config) (*Tile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: "open", Err: err}
	}
	defer func() {
		_ = f.Close()
	}()
	return ParseTile(f, path, cfg)
}

// logConflicts warns about every pair of tiles that resolved to the same
// cell; the later tile in input order is the one whose data survives.
func logConflicts(entries []PlacementEntry, logger *log.Logger) {
	lastAt := make(map[TileCoord]string, len(entries))
	for _, entry := range entries {
		if earlier, ok := lastAt[entry.Coord]; ok {
			logger.Warn("placement conflict, later tile wins",
				"row", entry.Coord.R, "col", entry.Coord.C,
				"overwritten", earlier, "winner", entry.Path)
		}
		lastAt[entry.Coord] = entry.Path
	}
}

// batchExtent returns the union of all placed tiles' envelopes.
func batchExtent(tiles []*Tile) Envelope {
	extent := Envelope{
		LatMin: math.Inf(1),
		LatMax: math.Inf(-1),
		LonMin: math.Inf(1),
		LonMax: math.Inf(-1),
	}
	for _, t := range tiles {
		extent.LatMin = min(extent.LatMin, t.Envelope.LatMin)
		extent.LatMax = max(extent.LatMax, t.Envelope.LatMax)
		extent.LonMin = min(extent.LonMin, t.Envelope.LonMin)
		extent.LonMax = max(extent.LonMax, t.Envelope.LonMax)
	}
	return extent
}
