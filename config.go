package demmosaic

// A Mode selects how missing values and uncovered cells are represented.
type Mode int

const (
	// ModeQuality keeps missing cells as NaN through assembly, runs a
	// local fill pass over intra-tile holes, and encodes gaps as NaN.
	ModeQuality Mode = iota

	// ModeThroughput replaces missing cells and gaps with zero and skips
	// the fill pass.
	ModeThroughput
)

func (m Mode) String() string {
	switch m {
	case ModeQuality:
		return "quality"
	case ModeThroughput:
		return "throughput"
	default:
		return "unknown"
	}
}

// A Config carries the batch settings threaded into every pipeline stage.
// There is no process-wide state; concurrent batches may use different
// configurations.
type Config struct {
	// TileRows and TileCols are the expected per-tile grid shape. Tiles
	// with any other shape are excluded from the mosaic. If either is
	// zero, the shape of the first successfully parsed tile is adopted
	// for the whole batch.
	TileRows int
	TileCols int

	// MissingThreshold marks elevations at or below it as missing.
	MissingThreshold float64

	// Tolerance is the coordinate clustering tolerance in degrees. Two
	// envelope coordinates closer than it collapse to the same cluster.
	Tolerance float64

	// FlipY flips the assembled mosaic's row axis, for document sets
	// whose value ordering runs south to north.
	FlipY bool

	Mode Mode

	// FillPasses bounds the quality-mode hole fill. Zero disables it.
	FillPasses int

	// MaxArchiveDepth bounds nested archive extraction.
	MaxArchiveDepth int

	// MaxExtractBytes bounds the total bytes extracted from archives.
	MaxExtractBytes int64

	// RowsPerStrip is the strip height of encoded rasters.
	RowsPerStrip int

	// Deflate selects zlib-compressed strips in encoded rasters.
	// The default is uncompressed; both are lossless.
	Deflate bool

	// WriteNPY additionally dumps the raw mosaic as a NumPy .npy array.
	WriteNPY bool
}

// DefaultConfig returns the settings for a standard GSI DEM5 tile batch.
func DefaultConfig() Config {
	return Config{
		TileRows:         150,
		TileCols:         225,
		MissingThreshold: -9990,
		Tolerance:        1e-8,
		Mode:             ModeQuality,
		FillPasses:       2,
		MaxArchiveDepth:  5,
		MaxExtractBytes:  4 << 30, // 4GiB.
		RowsPerStrip:     64,
	}
}
