package demmosaic

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func testRasterData() ([]float32, int, int) {
	nan := float32(math.NaN())
	data := []float32{
		0, 1.5, -2.25, 3735.912,
		nan, 0.1, math.Float32frombits(0x3f800001), -9999,
		100.25, nan, 0.0000001, 8848.86,
	}
	return data, 4, 3
}

func TestWriteRaster_RoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name    string
		deflate bool
	}{
		{name: "uncompressed", deflate: false},
		{name: "deflate", deflate: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			data, width, height := testRasterData()
			env := Envelope{LatMin: 35.09, LatMax: 35.11, LonMin: 139.00, LonMax: 139.02}
			dir := t.TempDir()
			err := WriteRasterFile(filepath.Join(dir, "out.tif"), data, width, height, RasterMeta{
				Envelope:     env,
				Description:  "go-demmosaic mode=quality",
				RowsPerStrip: 2,
				Deflate:      tc.deflate,
			})
			assert.NoError(t, err)

			actual, actualWidth, actualHeight, err := ReadRaster(os.DirFS(dir), "out.tif")
			assert.NoError(t, err)
			assert.Equal(t, width, actualWidth)
			assert.Equal(t, height, actualHeight)
			assert.Equal(t, len(data), len(actual))
			for i := range data {
				// Bit-identical, including the NaN payloads.
				assert.Equal(t, math.Float32bits(data[i]), math.Float32bits(actual[i]))
			}
		})
	}
}

func TestRasterFile(t *testing.T) {
	data, width, height := testRasterData()
	env := Envelope{LatMin: 35.09, LatMax: 35.12, LonMin: 139.00, LonMax: 139.04}
	dir := t.TempDir()
	err := WriteRasterFile(filepath.Join(dir, "out.tif"), data, width, height, RasterMeta{
		Envelope:     env,
		Description:  "go-demmosaic mode=throughput",
		RowsPerStrip: 1,
	})
	assert.NoError(t, err)

	f, err := NewRasterFile(os.DirFS(dir), "out.tif", WithStripCacheSize(2))
	assert.NoError(t, err)
	defer func() {
		assert.NoError(t, f.Close())
	}()

	actualWidth, actualHeight := f.Size()
	assert.Equal(t, width, actualWidth)
	assert.Equal(t, height, actualHeight)
	assert.Equal(t, "go-demmosaic mode=throughput", f.Description())

	actualEnv := f.Envelope()
	assert.True(t, math.Abs(actualEnv.LatMin-env.LatMin) < 1e-9)
	assert.True(t, math.Abs(actualEnv.LatMax-env.LatMax) < 1e-9)
	assert.True(t, math.Abs(actualEnv.LonMin-env.LonMin) < 1e-9)
	assert.True(t, math.Abs(actualEnv.LonMax-env.LonMax) < 1e-9)

	// Sample and Samples agree, missing cells come back NaN, and
	// out-of-range coordinates are NaN.
	coords := []Coord{
		{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 0, Y: 1}, {X: 3, Y: 2}, {X: -1, Y: 0}, {X: 0, Y: 3},
	}
	samples, err := f.Samples(t.Context(), coords)
	assert.NoError(t, err)
	for i, coord := range coords {
		sample, err := f.Sample(t.Context(), coord)
		assert.NoError(t, err)
		assert.Equal(t, sample, samples[i])
	}
	assert.Equal(t, 0.0, samples[0])
	assert.Equal(t, float64(float32(3735.912)), samples[1])
	assert.True(t, math.IsNaN(samples[2]))
	assert.True(t, math.IsNaN(samples[4]))
	assert.True(t, math.IsNaN(samples[5]))
}

func TestWriteNPY(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, WriteNPY(&buf, []float32{1, 2, 3, 4, 5, 6}, 3, 2))
	raw := buf.Bytes()

	assert.Equal(t, []byte("\x93NUMPY\x01\x00"), raw[:8])
	headerLen := int(raw[8]) | int(raw[9])<<8
	assert.Equal(t, 0, (10+headerLen)%64)
	header := string(raw[10 : 10+headerLen])
	assert.Contains(t, header, "'descr': '<f4'")
	assert.Contains(t, header, "'fortran_order': False")
	assert.Contains(t, header, "'shape': (2, 3)")
	assert.Equal(t, byte('\n'), header[len(header)-1])

	payload := raw[10+headerLen:]
	assert.Equal(t, 24, len(payload))
	assert.Equal(t, []byte{0, 0, 0x80, 0x3f}, payload[:4]) // 1.0f LE
}

func TestParseGeoKeys(t *testing.T) {
	parsed, err := ParseGeoKeys(geoKeyDirectory())
	assert.NoError(t, err)
	assert.Equal(t, gtModelTypeGeographic, parsed.Params[GeoKeyGTModelType])
	assert.Equal(t, gtRasterTypePixelIsArea, parsed.Params[GeoKeyGTRasterType])
	assert.Equal(t, epsgWGS84, parsed.Params[GeoKeyGeodeticCRS])
}

func TestParseGeoKeys_Errors(t *testing.T) {
	for name, directory := range map[string][]uint16{
		"too short":   {1, 1},
		"bad version": {2, 1, 0, 0},
		"bad count":   {1, 1, 0, 2, 1024, 0, 1, 2},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseGeoKeys(directory)
			assert.Error(t, err)
		})
	}
}
