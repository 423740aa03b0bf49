package demmosaic

import (
	"math"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func gridTile(r, c int, values []float32) *Tile {
	// A 0.01-degree tile; row 0 is the northernmost band.
	return &Tile{
		Path: "r" + string(rune('0'+r)) + "c" + string(rune('0'+c)) + ".xml",
		Envelope: Envelope{
			LatMin: 35.10 - float64(r+1)*0.01,
			LatMax: 35.10 - float64(r)*0.01,
			LonMin: 139.00 + float64(c)*0.01,
			LonMax: 139.00 + float64(c+1)*0.01,
		},
		Rows:   2,
		Cols:   2,
		Values: values,
	}
}

func TestBuildClusters(t *testing.T) {
	tiles := []*Tile{
		gridTile(1, 0, make([]float32, 4)),
		gridTile(0, 1, make([]float32, 4)),
		gridTile(0, 0, make([]float32, 4)),
		gridTile(1, 1, make([]float32, 4)),
	}
	clusters := BuildClusters(tiles, 1e-8)

	// Latitude descending, longitude ascending.
	assert.Equal(t, 2, len(clusters.Lat))
	assert.Equal(t, 2, len(clusters.Lon))
	assert.True(t, clusters.Lat[0] > clusters.Lat[1])
	assert.True(t, clusters.Lon[0] < clusters.Lon[1])
	assert.True(t, math.Abs(clusters.Lat[0]-35.10) < 1e-6)
	assert.True(t, math.Abs(clusters.Lon[1]-139.01) < 1e-6)

	for _, tile := range tiles {
		coord, snapped := clusters.Place(tile)
		assert.False(t, snapped)
		want := gridTile(coord.R, coord.C, nil).Envelope
		assert.Equal(t, want, tile.Envelope)
	}
}

func TestBuildClusters_PerturbationStable(t *testing.T) {
	const tolerance = 1e-8
	base := []*Tile{
		gridTile(0, 0, nil),
		gridTile(0, 1, nil),
		gridTile(1, 0, nil),
		gridTile(1, 1, nil),
	}
	noisy := make([]*Tile, len(base))
	for i, tile := range base {
		env := tile.Envelope
		// Perturb every coordinate by less than half the tolerance.
		delta := tolerance * 0.4
		if i%2 == 0 {
			delta = -delta
		}
		env.LatMax += delta
		env.LonMin += delta
		noisy[i] = &Tile{Path: tile.Path, Envelope: env, Rows: 2, Cols: 2}
	}

	baseClusters := BuildClusters(base, tolerance)
	noisyClusters := BuildClusters(noisy, tolerance)
	assert.Equal(t, len(baseClusters.Lat), len(noisyClusters.Lat))
	assert.Equal(t, len(baseClusters.Lon), len(noisyClusters.Lon))
	for i := range base {
		baseCoord, _ := baseClusters.Place(base[i])
		noisyCoord, _ := noisyClusters.Place(noisy[i])
		assert.Equal(t, baseCoord, noisyCoord)
	}
}

func TestClusters_Snap(t *testing.T) {
	tiles := []*Tile{
		gridTile(0, 0, nil),
		gridTile(1, 0, nil),
	}
	clusters := BuildClusters(tiles, 1e-8)

	// An anchor that rounds between the two clusters snaps to the
	// nearest one.
	stray := &Tile{
		Envelope: Envelope{LatMin: 35.085, LatMax: 35.0949999, LonMin: 139.00, LonMax: 139.01},
		Rows:     2,
		Cols:     2,
	}
	coord, snapped := clusters.Place(stray)
	assert.True(t, snapped)
	assert.Equal(t, TileCoord{C: 0, R: 1}, coord)
}
