package main

import (
	"fmt"

	"github.com/BurntSushi/toml"

	demmosaic "github.com/nkmr-geo/go-demmosaic"
)

// fileConfig maps TOML keys to batch settings. Only keys present in the
// file override the defaults.
type fileConfig struct {
	TileRows         int     `toml:"tile_rows"`
	TileCols         int     `toml:"tile_cols"`
	MissingThreshold float64 `toml:"missing_threshold"`
	Tolerance        float64 `toml:"tolerance"`
	FlipY            bool    `toml:"flip_y"`
	FillPasses       int     `toml:"fill_passes"`
	MaxArchiveDepth  int     `toml:"max_archive_depth"`
	MaxExtractBytes  int64   `toml:"max_extract_bytes"`
	RowsPerStrip     int     `toml:"rows_per_strip"`
	Deflate          bool    `toml:"deflate"`
	WriteNPY         bool    `toml:"write_npy"`
}

func applyConfigFile(cfg *demmosaic.Config, path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}
	if meta.IsDefined("tile_rows") {
		cfg.TileRows = raw.TileRows
	}
	if meta.IsDefined("tile_cols") {
		cfg.TileCols = raw.TileCols
	}
	if meta.IsDefined("missing_threshold") {
		cfg.MissingThreshold = raw.MissingThreshold
	}
	if meta.IsDefined("tolerance") {
		cfg.Tolerance = raw.Tolerance
	}
	if meta.IsDefined("flip_y") {
		cfg.FlipY = raw.FlipY
	}
	if meta.IsDefined("fill_passes") {
		cfg.FillPasses = raw.FillPasses
	}
	if meta.IsDefined("max_archive_depth") {
		cfg.MaxArchiveDepth = raw.MaxArchiveDepth
	}
	if meta.IsDefined("max_extract_bytes") {
		cfg.MaxExtractBytes = raw.MaxExtractBytes
	}
	if meta.IsDefined("rows_per_strip") {
		cfg.RowsPerStrip = raw.RowsPerStrip
	}
	if meta.IsDefined("deflate") {
		cfg.Deflate = raw.Deflate
	}
	if meta.IsDefined("write_npy") {
		cfg.WriteNPY = raw.WriteNPY
	}
	return nil
}
