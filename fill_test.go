package demmosaic

import (
	"math"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestFillMissing(t *testing.T) {
	nan := float32(math.NaN())
	// Three tiles in an L shape; block (1,1) is a gap. The tile at
	// (0,0) has one missing interior cell.
	tiles := []*Tile{
		{
			Path:     "nw.xml",
			Envelope: Envelope{LatMin: 35.10, LatMax: 35.11, LonMin: 139.00, LonMax: 139.01},
			Rows:     2, Cols: 2,
			Values: []float32{2, nan, 4, 6},
		},
		{
			Path:     "ne.xml",
			Envelope: Envelope{LatMin: 35.10, LatMax: 35.11, LonMin: 139.01, LonMax: 139.02},
			Rows:     2, Cols: 2,
			Values: []float32{10, 10, 10, 10},
		},
		{
			Path:     "sw.xml",
			Envelope: Envelope{LatMin: 35.09, LatMax: 35.10, LonMin: 139.00, LonMax: 139.01},
			Rows:     2, Cols: 2,
			Values: []float32{20, 20, 20, 20},
		},
	}

	cfg := testConfig(ModeQuality)
	clusters := BuildClusters(tiles, cfg.Tolerance)
	mosaic, _, _, err := Assemble(t.Context(), tiles, clusters, cfg)
	assert.NoError(t, err)

	filled := FillMissing(mosaic, 2)
	assert.Equal(t, 1, filled)

	// The intra-tile hole is the mean of its valid neighbors:
	// 2, 4, 6 from its own tile and 10, 10 from the eastern one.
	assert.Equal(t, float32((2+4+6+10+10)/5.0), mosaic.At(1, 0))

	// The uncovered block stays missing.
	for y := 2; y < 4; y++ {
		for x := 2; x < 4; x++ {
			assert.True(t, math.IsNaN(float64(mosaic.At(x, y))))
		}
	}
}

func TestFillMissing_NeedsThreeNeighbors(t *testing.T) {
	nan := float32(math.NaN())
	tile := &Tile{
		Path:     "a.xml",
		Envelope: Envelope{LatMin: 35.10, LatMax: 35.11, LonMin: 139.00, LonMax: 139.01},
		Rows:     2, Cols: 2,
		Values: []float32{5, nan, nan, nan},
	}
	cfg := testConfig(ModeQuality)
	clusters := BuildClusters([]*Tile{tile}, cfg.Tolerance)
	mosaic, _, _, err := Assemble(t.Context(), []*Tile{tile}, clusters, cfg)
	assert.NoError(t, err)

	// One pass: every missing cell sees only one valid neighbor, so
	// nothing is filled and the pass loop stops early.
	filled := FillMissing(mosaic, 4)
	assert.Equal(t, 0, filled)
	assert.True(t, math.IsNaN(float64(mosaic.At(1, 0))))
}
