package demmosaic

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"slices"
	"strings"

	"github.com/google/tiff"
	_ "github.com/google/tiff/bigtiff"
	_ "github.com/google/tiff/geotiff"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/image/tiff/lzw"
)

// A RasterFile is an open single-channel float32 raster, read lazily one
// strip at a time with an LRU strip cache. It accepts the rasters this
// package writes plus LZW-compressed strips from external producers.
type RasterFile struct {
	file            *os.File
	width           int
	height          int
	rowsPerStrip    int
	compression     uint16
	stripOffsets    []uint64
	stripByteCounts []uint64
	envelope        Envelope
	description     string
	stripCacheSize  int
	stripCache      *lru.Cache[int, []float32]
}

type RasterFileOption func(*RasterFile)

func WithStripCacheSize(stripCacheSize int) RasterFileOption {
	return func(f *RasterFile) {
		f.stripCacheSize = stripCacheSize
	}
}

// A rasterIFD is a struct into which github.com/google/tiff can
// unmarshal an IFD.
type rasterIFD struct {
	ImageWidth       uint32    `tiff:"field,tag=256"`
	ImageLength      uint32    `tiff:"field,tag=257"`
	BitsPerSample    uint16    `tiff:"field,tag=258"`
	Compression      uint16    `tiff:"field,tag=259"`
	Photometric      uint16    `tiff:"field,tag=262"`
	ImageDescription string    `tiff:"field,tag=270"`
	StripOffsets     []uint64  `tiff:"field,tag=273"`
	SamplesPerPixel  uint16    `tiff:"field,tag=277"`
	RowsPerStrip     uint32    `tiff:"field,tag=278"`
	StripByteCounts  []uint64  `tiff:"field,tag=279"`
	SampleFormat     uint16    `tiff:"field,tag=339"`
	ModelPixelScale  []float64 `tiff:"field,tag=33550"`
	ModelTiepoint    []float64 `tiff:"field,tag=33922"`
	GeoKeyDirectory  []uint16  `tiff:"field,tag=34735"`
}

// NewRasterFile opens filename as a strip-organized float32 raster.
func NewRasterFile(fsys fs.FS, filename string, options ...RasterFileOption) (*RasterFile, error) {
	ok := false

	f := &RasterFile{
		stripCacheSize: 32,
	}
	for _, option := range options {
		option(f)
	}

	file, err := fsys.Open(filename)
	if err != nil {
		return nil, err
	}
	osFile, isOSFile := file.(*os.File)
	if !isOSFile {
		return nil, errors.ErrUnsupported
	}
	f.file = osFile
	defer func() {
		if !ok {
			_ = f.file.Close()
		}
	}()

	tiffTIFF, err := tiff.Parse(f.file, tiff.GetTagSpace("GeoTIFF"), nil)
	if err != nil {
		return nil, err
	}
	if len(tiffTIFF.IFDs()) != 1 {
		return nil, fmt.Errorf("found %d IFDs, expected 1", len(tiffTIFF.IFDs()))
	}
	var ifd rasterIFD
	if err := tiff.UnmarshalIFD(tiffTIFF.IFDs()[0], &ifd); err != nil {
		return nil, err
	}

	if ifd.BitsPerSample != 32 ||
		ifd.SamplesPerPixel != 1 ||
		ifd.SampleFormat != sampleFormatFloat {
		return nil, errors.ErrUnsupported
	}
	switch ifd.Compression {
	case compressionNone, compressionLZW, compressionDeflate:
	default:
		return nil, errors.ErrUnsupported
	}

	f.width = int(ifd.ImageWidth)
	f.height = int(ifd.ImageLength)
	f.rowsPerStrip = int(ifd.RowsPerStrip)
	if f.width <= 0 || f.height <= 0 || f.rowsPerStrip <= 0 {
		return nil, errors.ErrUnsupported
	}
	f.compression = ifd.Compression
	f.description = strings.TrimRight(ifd.ImageDescription, "\x00")
	stripCount := (f.height + f.rowsPerStrip - 1) / f.rowsPerStrip
	if len(ifd.StripOffsets) != stripCount || len(ifd.StripByteCounts) != stripCount {
		return nil, errors.New("incorrect number of strip byte counts or offsets")
	}
	f.stripOffsets = ifd.StripOffsets
	f.stripByteCounts = ifd.StripByteCounts

	if len(ifd.ModelPixelScale) == 3 && len(ifd.ModelTiepoint) == 6 {
		scaleX, scaleY := ifd.ModelPixelScale[0], ifd.ModelPixelScale[1]
		lonMin, latMax := ifd.ModelTiepoint[3], ifd.ModelTiepoint[4]
		f.envelope = Envelope{
			LatMin: latMax - scaleY*float64(f.height),
			LatMax: latMax,
			LonMin: lonMin,
			LonMax: lonMin + scaleX*float64(f.width),
		}
	}

	f.stripCache, err = lru.New[int, []float32](max(f.stripCacheSize, 1))
	if err != nil {
		return nil, err
	}

	ok = true
	return f, nil
}

func (f *RasterFile) Close() error {
	return f.file.Close()
}

// Size returns the raster's pixel dimensions.
func (f *RasterFile) Size() (int, int) {
	return f.width, f.height
}

// Envelope returns the georeferenced extent, or the zero Envelope if the
// raster carries no georeferencing.
func (f *RasterFile) Envelope() Envelope {
	return f.envelope
}

// Description returns the raster's ImageDescription, which records the
// batch's processing mode.
func (f *RasterFile) Description() string {
	return f.description
}

// Sample returns a single sample from f. Out-of-range coordinates return
// NaN.
func (f *RasterFile) Sample(ctx context.Context, coord Coord) (float64, error) {
	if coord.X < 0 || f.width <= coord.X || coord.Y < 0 || f.height <= coord.Y {
		return math.NaN(), nil
	}
	stripSamples, err := f.getStripCached(ctx, coord.Y/f.rowsPerStrip)
	if err != nil {
		return 0, err
	}
	return f.stripSample(stripSamples, coord), nil
}

// Samples returns multiple samples from f. It is significantly faster
// than calling [Sample] for each coordinate.
func (f *RasterFile) Samples(ctx context.Context, coords []Coord) ([]float64, error) {
	samples := make([]float64, len(coords))

	// Group indexes by strip.
	indexesByStrip := make(map[int][]int)
	for index, coord := range coords {
		if coord.X < 0 || f.width <= coord.X || coord.Y < 0 || f.height <= coord.Y {
			samples[index] = math.NaN()
			continue
		}
		strip := coord.Y / f.rowsPerStrip
		indexesByStrip[strip] = append(indexesByStrip[strip], index)
	}

	// Populate samples one strip at a time.
	for strip, indexes := range indexesByStrip {
		slices.Sort(indexes)
		stripSamples, err := f.getStripCached(ctx, strip)
		if err != nil {
			return nil, err
		}
		for _, index := range indexes {
			samples[index] = f.stripSample(stripSamples, coords[index])
		}
	}

	return samples, nil
}

// getStrip reads and decodes the samples of one strip.
func (f *RasterFile) getStrip(strip int) ([]float32, error) {
	compressedData := make([]byte, f.stripByteCounts[strip])
	switch n, err := f.file.ReadAt(compressedData, int64(f.stripOffsets[strip])); {
	case err != nil && err != io.EOF:
		return nil, err
	case n != len(compressedData):
		return nil, errShortRead
	}

	firstRow := strip * f.rowsPerStrip
	lastRow := min(firstRow+f.rowsPerStrip, f.height)
	sampleCount := (lastRow - firstRow) * f.width

	var stripData []byte
	switch f.compression {
	case compressionNone:
		stripData = compressedData
	case compressionLZW:
		var err error
		stripData, err = readAll(lzw.NewReader(bytes.NewReader(compressedData), lzw.MSB, 8), 4*sampleCount)
		if err != nil {
			return nil, err
		}
	case compressionDeflate:
		r, err := zlib.NewReader(bytes.NewReader(compressedData))
		if err != nil {
			return nil, err
		}
		stripData, err = readAll(r, 4*sampleCount)
		if err != nil {
			return nil, err
		}
	}
	if len(stripData) < 4*sampleCount {
		return nil, errShortRead
	}

	stripSamples := make([]float32, sampleCount)
	for i := range sampleCount {
		b := binary.LittleEndian.Uint32(stripData[i*4 : (i+1)*4])
		stripSamples[i] = math.Float32frombits(b)
	}
	return stripSamples, nil
}

// getStripCached returns the samples of one strip using f's cache.
func (f *RasterFile) getStripCached(ctx context.Context, strip int) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if stripSamples, cached := f.stripCache.Get(strip); cached {
		stripCacheHits.Inc()
		return stripSamples, nil
	}
	stripCacheMisses.Inc()
	stripSamples, err := f.getStrip(strip)
	if err != nil {
		return nil, err
	}
	f.stripCache.Add(strip, stripSamples)
	return stripSamples, nil
}

// stripSample returns the sample from stripSamples at coord.
func (f *RasterFile) stripSample(stripSamples []float32, coord Coord) float64 {
	return float64(stripSamples[(coord.Y%f.rowsPerStrip)*f.width+coord.X])
}

// readAll reads r until EOF into a buffer sized for want bytes.
func readAll(r io.Reader, want int) ([]byte, error) {
	data := make([]byte, 0, want)
	buf := bytes.NewBuffer(data)
	if _, err := io.Copy(buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadRaster reads an entire raster into memory and returns its values
// and dimensions.
func ReadRaster(fsys fs.FS, filename string) ([]float32, int, int, error) {
	f, err := NewRasterFile(fsys, filename)
	if err != nil {
		return nil, 0, 0, err
	}
	defer func() {
		_ = f.Close()
	}()

	data := make([]float32, 0, f.width*f.height)
	stripCount := (f.height + f.rowsPerStrip - 1) / f.rowsPerStrip
	for strip := range stripCount {
		stripSamples, err := f.getStrip(strip)
		if err != nil {
			return nil, 0, 0, err
		}
		data = append(data, stripSamples...)
	}
	return data, f.width, f.height, nil
}
