// Package demmosaic assembles GSI FGD DEM tile documents into a single
// contiguous single-channel float32 elevation raster.
//
// A batch of tile documents is parsed in parallel into geo-located grids,
// every tile is assigned a row/column in a global grid purely from its
// geographic envelope, and all grids are pasted into one mosaic with a
// deterministic north-up, west-left orientation. The mosaic, an
// aspect-corrected variant, and (in quality mode) a coverage mask are
// written as float32 GeoTIFFs.
package demmosaic

import "context"

// A Coord is a pixel coordinate in a raster.
type Coord struct {
	X int
	Y int
}

// A TileCoord is a tile's position in the assembled grid.
type TileCoord struct {
	C int // Column, 0 is the westernmost.
	R int // Row, 0 is the northernmost.
}

// An Envelope is the geographic bounding box declared by a tile, in
// degrees. It is taken from the document verbatim, never recomputed.
type Envelope struct {
	LatMin float64
	LatMax float64
	LonMin float64
	LonMax float64
}

// MidLat returns the latitude of the envelope's center.
func (e Envelope) MidLat() float64 {
	return (e.LatMin + e.LatMax) / 2
}

type Raster interface {
	Samples(ctx context.Context, coords []Coord) ([]float64, error)
	Size() (int, int)
}
