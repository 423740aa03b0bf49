package demmosaic

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"
)

// A Mosaic is the assembled global elevation array, row-major, with row
// 0 at the northern edge and column 0 at the western edge. It is mutated
// only during assembly and is read-only afterwards.
type Mosaic struct {
	Width  int
	Height int
	Data   []float32

	tileRows int
	tileCols int
	tx       int
	ty       int
	// owner[r*tx+c] is the input index of the tile pasted at block
	// (r, c), or -1 for a gap.
	owner []int
}

// NewMosaic allocates a ty×tx block grid of tileRows×tileCols cells,
// filled with fill.
func NewMosaic(ty, tx, tileRows, tileCols int, fill float32) *Mosaic {
	m := &Mosaic{
		Width:    tx * tileCols,
		Height:   ty * tileRows,
		Data:     make([]float32, tx*tileCols*ty*tileRows),
		tileRows: tileRows,
		tileCols: tileCols,
		tx:       tx,
		ty:       ty,
		owner:    make([]int, tx*ty),
	}
	for i := range m.owner {
		m.owner[i] = -1
	}
	if fill != 0 {
		for i := range m.Data {
			m.Data[i] = fill
		}
	}
	return m
}

// At returns the value at pixel (x, y).
func (m *Mosaic) At(x, y int) float32 {
	return m.Data[y*m.Width+x]
}

// Covered reports whether pixel (x, y) lies in a block some tile was
// pasted into.
func (m *Mosaic) Covered(x, y int) bool {
	return m.owner[(y/m.tileRows)*m.tx+x/m.tileCols] >= 0
}

// FlipY reverses the mosaic's row order in place. This corrects whole
// document sets whose tuple ordering runs south to north; it is never a
// per-tile operation.
func (m *Mosaic) FlipY() {
	for y := 0; y < m.Height/2; y++ {
		top := m.Data[y*m.Width : (y+1)*m.Width]
		bottom := m.Data[(m.Height-1-y)*m.Width : (m.Height-y)*m.Width]
		for x := range top {
			top[x], bottom[x] = bottom[x], top[x]
		}
	}
	for r := 0; r < m.ty/2; r++ {
		for c := range m.tx {
			i, j := r*m.tx+c, (m.ty-1-r)*m.tx+c
			m.owner[i], m.owner[j] = m.owner[j], m.owner[i]
		}
	}
}

// Mask returns a raster with 1 where a value is present and 0 where it
// is missing.
func (m *Mosaic) Mask() []float32 {
	mask := make([]float32, len(m.Data))
	for i, v := range m.Data {
		if !math.IsNaN(float64(v)) {
			mask[i] = 1
		}
	}
	return mask
}

// SampleBilinear returns the bilinear interpolation of the four pixels
// around (fx, fy). Coordinates are clamped to the raster.
func (m *Mosaic) SampleBilinear(fx, fy float64) float64 {
	x0 := clamp(int(math.Floor(fx)), 0, m.Width-1)
	y0 := clamp(int(math.Floor(fy)), 0, m.Height-1)
	x1 := min(x0+1, m.Width-1)
	y1 := min(y0+1, m.Height-1)
	dx := fx - float64(x0)
	dy := fy - float64(y0)
	return 0 +
		float64(m.At(x0, y0))*(1-dx)*(1-dy) +
		float64(m.At(x1, y0))*dx*(1-dy) +
		float64(m.At(x0, y1))*(1-dx)*dy +
		float64(m.At(x1, y1))*dx*dy
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// A PlacementEntry records where one tile landed in the assembled grid.
type PlacementEntry struct {
	Path    string
	Coord   TileCoord
	Snapped bool
}

// Assemble pastes every tile into its cluster-assigned cell of a fresh
// mosaic. Conflicting tiles (two envelopes clustering to the same cell)
// resolve to the later tile in input order; both occurrences are
// reported. Uncovered cells stay at the mode's fill value: NaN in
// quality mode, zero in throughput mode.
//
// Placement planning is sequential; the disjoint block copies then run
// in parallel.
func Assemble(ctx context.Context, tiles []*Tile, clusters *Clusters, cfg Config) (*Mosaic, []PlacementEntry, int, error) {
	ty, tx := len(clusters.Lat), len(clusters.Lon)
	if ty == 0 || tx == 0 {
		return nil, nil, 0, ErrEmptyGrid
	}

	fill := float32(math.NaN())
	if cfg.Mode == ModeThroughput {
		fill = 0
	}
	m := NewMosaic(ty, tx, cfg.TileRows, cfg.TileCols, fill)

	// Plan placements in input order so the conflict rule (last in
	// input order wins) is deterministic regardless of parse order.
	entries := make([]PlacementEntry, 0, len(tiles))
	conflicts := 0
	for i, t := range tiles {
		coord, snapped := clusters.Place(t)
		if snapped {
			clusterSnaps.Inc()
		}
		block := coord.R*tx + coord.C
		if m.owner[block] >= 0 {
			conflicts++
			placementConflicts.Inc()
		}
		m.owner[block] = i
		entries = append(entries, PlacementEntry{Path: t.Path, Coord: coord, Snapped: snapped})
	}

	g, ctx := errgroup.WithContext(ctx)
	for block, tileIndex := range m.owner {
		if tileIndex < 0 {
			continue
		}
		t := tiles[tileIndex]
		r, c := block/tx, block%tx
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			x0 := c * cfg.TileCols
			for row := range t.Rows {
				dst := m.Data[(r*cfg.TileRows+row)*m.Width+x0:]
				src := t.Values[row*t.Cols : (row+1)*t.Cols]
				if cfg.Mode == ModeThroughput {
					for x, v := range src {
						if v != v { // NaN
							v = 0
						}
						dst[x] = v
					}
				} else {
					copy(dst[:t.Cols], src)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, 0, err
	}

	if cfg.FlipY {
		m.FlipY()
	}
	return m, entries, conflicts, nil
}
