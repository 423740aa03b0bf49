package demmosaic

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteOutputs writes a batch's artifacts into dir under the given base
// name: the primary raster, the aspect-corrected raster, in quality mode
// the coverage mask, optionally the raw .npy dump, and the placement
// log. It returns the paths written.
func WriteOutputs(result *Result, dir, base string, cfg Config) ([]string, error) {
	description := fmt.Sprintf("go-demmosaic mode=%s", result.Report.Mode)
	meta := RasterMeta{
		Envelope:     result.Extent,
		Description:  description,
		RowsPerStrip: cfg.RowsPerStrip,
		Deflate:      cfg.Deflate,
	}

	var written []string
	write := func(name string, data []float32, width, height int, meta RasterMeta) error {
		path := filepath.Join(dir, name)
		if err := WriteRasterFile(path, data, width, height, meta); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
		return nil
	}

	m := result.Mosaic
	if err := write(base+".tif", m.Data, m.Width, m.Height, meta); err != nil {
		return written, err
	}
	a := result.AspectCorrected
	if err := write(base+"_aspect.tif", a.Data, a.Width, a.Height, meta); err != nil {
		return written, err
	}
	if cfg.Mode == ModeQuality {
		maskMeta := meta
		maskMeta.Description = description + " mask"
		if err := write(base+"_mask.tif", m.Mask(), m.Width, m.Height, maskMeta); err != nil {
			return written, err
		}
	}

	if cfg.WriteNPY {
		path := filepath.Join(dir, base+".npy")
		if err := writeFileWith(path, func(w io.Writer) error {
			return WriteNPY(w, m.Data, m.Width, m.Height)
		}); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	path := filepath.Join(dir, base+"_placement.txt")
	if err := writeFileWith(path, func(w io.Writer) error {
		return WritePlacementLog(w, result.Report)
	}); err != nil {
		return written, err
	}
	written = append(written, path)

	return written, nil
}

// WritePlacementLog writes the human-readable batch summary: counts,
// grid dimensions, the processing mode, and one line per placed tile.
func WritePlacementLog(w io.Writer, report *Report) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "mode: %s\n", report.Mode)
	fmt.Fprintf(bw, "documents_in: %d\n", report.DocumentsIn)
	fmt.Fprintf(bw, "parsed: %d\n", report.Parsed)
	fmt.Fprintf(bw, "parse_failures: %d\n", report.ParseFailures)
	fmt.Fprintf(bw, "shape_mismatches: %d\n", report.ShapeMismatches)
	fmt.Fprintf(bw, "conflicts: %d\n", report.Conflicts)
	fmt.Fprintf(bw, "snapped: %d\n", report.Snapped)
	fmt.Fprintf(bw, "filled: %d\n", report.Filled)
	fmt.Fprintf(bw, "tile_shape: rows=%d cols=%d\n", report.TileRows, report.TileCols)
	fmt.Fprintf(bw, "grid: Tx=%d Ty=%d\n", report.Tx, report.Ty)
	fmt.Fprintf(bw, "shape: H=%d W=%d\n", report.Ty*report.TileRows, report.Tx*report.TileCols)
	for _, entry := range report.Entries {
		name := filepath.Base(entry.Path)
		if mesh := MeshCode(name); mesh != "" {
			fmt.Fprintf(bw, "tile: r=%d c=%d mesh=%s %s\n", entry.Coord.R, entry.Coord.C, mesh, name)
		} else {
			fmt.Fprintf(bw, "tile: r=%d c=%d %s\n", entry.Coord.R, entry.Coord.C, name)
		}
	}
	return bw.Flush()
}

func writeFileWith(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := write(w); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
