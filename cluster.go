package demmosaic

import (
	"math"
	"slices"
)

// Clusters are the canonical per-axis coordinate values derived from all
// tile envelopes. Latitudes are the tiles' north edges sorted descending
// (row 0 is the northernmost); longitudes are the west edges sorted
// ascending (column 0 is the westernmost). A value's index within its
// axis is the coordinate index of any tile whose anchor matches it
// within the tolerance.
type Clusters struct {
	Lat       []float64
	Lon       []float64
	Tolerance float64

	latIndex map[float64]int
	lonIndex map[float64]int
}

// BuildClusters rounds every tile's north-west anchor to the tolerance
// and deduplicates the rounded values per axis. Values closer than the
// tolerance collapse into one cluster.
func BuildClusters(tiles []*Tile, tolerance float64) *Clusters {
	c := &Clusters{Tolerance: tolerance}
	latSet := make(map[float64]struct{})
	lonSet := make(map[float64]struct{})
	for _, t := range tiles {
		latSet[c.canonical(t.Envelope.LatMax)] = struct{}{}
		lonSet[c.canonical(t.Envelope.LonMin)] = struct{}{}
	}
	for v := range latSet {
		c.Lat = append(c.Lat, v)
	}
	for v := range lonSet {
		c.Lon = append(c.Lon, v)
	}
	slices.Sort(c.Lat)
	slices.Reverse(c.Lat) // north first
	slices.Sort(c.Lon)    // west first
	c.latIndex = make(map[float64]int, len(c.Lat))
	for i, v := range c.Lat {
		c.latIndex[v] = i
	}
	c.lonIndex = make(map[float64]int, len(c.Lon))
	for i, v := range c.Lon {
		c.lonIndex[v] = i
	}
	return c
}

// Place returns the grid cell for a tile, derived from its north-west
// anchor. snapped reports that at least one axis value did not match a
// cluster exactly after rounding and was snapped to the nearest cluster.
// Placement is a function of the envelope alone.
func (c *Clusters) Place(t *Tile) (coord TileCoord, snapped bool) {
	r, rSnapped := c.index(c.Lat, c.latIndex, t.Envelope.LatMax)
	col, cSnapped := c.index(c.Lon, c.lonIndex, t.Envelope.LonMin)
	return TileCoord{C: col, R: r}, rSnapped || cSnapped
}

func (c *Clusters) index(axis []float64, byValue map[float64]int, v float64) (int, bool) {
	if i, ok := byValue[c.canonical(v)]; ok {
		return i, false
	}
	// The rounded value fell between clusters; snap to the nearest.
	best := 0
	bestDist := math.Inf(1)
	for i, cluster := range axis {
		if d := math.Abs(cluster - v); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best, true
}

func (c *Clusters) canonical(v float64) float64 {
	return math.Round(v/c.Tolerance) * c.Tolerance
}
