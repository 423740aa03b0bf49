// Command dem-stitch assembles GSI FGD DEM tile documents into
// single-channel float32 elevation rasters.
//
// dem-stitch stitch <folder> runs the quality path over one folder of
// tile documents; dem-stitch batch <zip|folder>... runs the throughput
// path over any mixture of archives and folders.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	demmosaic "github.com/nkmr-geo/go-demmosaic"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		verbose    bool
		configPath string
		flags      configFlags
	)

	root := &cobra.Command{
		Use:           "dem-stitch",
		Short:         "Assemble DEM tile documents into one elevation raster",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().StringVar(&configPath, "config", "", "TOML configuration file")
	flags.register(root.PersistentFlags())

	newSetup := func(mode demmosaic.Mode) (demmosaic.Config, *log.Logger, error) {
		level := log.InfoLevel
		if verbose {
			level = log.DebugLevel
		}
		logger := log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		})
		cfg := demmosaic.DefaultConfig()
		if configPath != "" {
			if err := applyConfigFile(&cfg, configPath); err != nil {
				return cfg, nil, err
			}
		}
		flags.apply(&cfg)
		cfg.Mode = mode
		return cfg, logger, nil
	}

	stitch := &cobra.Command{
		Use:   "stitch <folder>",
		Short: "Assemble one folder of tile documents (quality mode)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := newSetup(demmosaic.ModeQuality)
			if err != nil {
				return err
			}
			dir := filepath.Clean(args[0])
			docs, err := demmosaic.CollectDocuments(cmd.Context(), []string{dir}, "", cfg, logger)
			if err != nil {
				return err
			}
			logger.Info("collected documents", "count", len(docs))
			result, err := demmosaic.Stitch(cmd.Context(), docs, cfg, logger)
			if err != nil {
				return err
			}
			return writeOutputs(result, dir, filepath.Base(dir), cfg, logger)
		},
	}

	var outBase, outDir string
	batch := &cobra.Command{
		Use:   "batch <zip|folder>...",
		Short: "Assemble archives and folders into one raster (throughput mode)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := newSetup(demmosaic.ModeThroughput)
			if err != nil {
				return err
			}
			workDir, err := os.MkdirTemp("", "dem-stitch-")
			if err != nil {
				return err
			}
			defer func() {
				_ = os.RemoveAll(workDir)
			}()
			docs, err := demmosaic.CollectDocuments(cmd.Context(), args, workDir, cfg, logger)
			if err != nil {
				return err
			}
			logger.Info("collected documents", "count", len(docs))
			result, err := demmosaic.Stitch(cmd.Context(), docs, cfg, logger)
			if err != nil {
				return err
			}
			dir := outDir
			if dir == "" {
				dir = outputDirFor(args[0])
			}
			base := outBase
			if base == "" {
				base = "stitch_" + time.Now().Format("20060102_1504")
			}
			return writeOutputs(result, dir, base, cfg, logger)
		},
	}
	batch.Flags().StringVar(&outBase, "out", "", "output base name (default stitch_YYYYMMDD_HHMM)")
	batch.Flags().StringVar(&outDir, "outdir", "", "output directory (default beside the first input)")

	root.AddCommand(stitch, batch)
	return root.Execute()
}

func writeOutputs(result *demmosaic.Result, dir, base string, cfg demmosaic.Config, logger *log.Logger) error {
	written, err := demmosaic.WriteOutputs(result, dir, base, cfg)
	for _, path := range written {
		logger.Info("wrote", "path", path)
	}
	return err
}

// outputDirFor returns the directory outputs land in for the throughput
// path: the first input itself if it is a directory, else its parent.
func outputDirFor(firstInput string) string {
	if info, err := os.Stat(firstInput); err == nil && info.IsDir() {
		return firstInput
	}
	return filepath.Dir(firstInput)
}

// configFlags are the flag overrides applied on top of the defaults and
// any TOML file.
type configFlags struct {
	tileRows   int
	tileCols   int
	tolerance  float64
	flipY      bool
	fillPasses int
	deflate    bool
	npy        bool

	set func(name string) bool
}

func (f *configFlags) register(flags *pflag.FlagSet) {
	flags.IntVar(&f.tileRows, "tile-rows", 0, "expected tile rows (0 = auto-detect)")
	flags.IntVar(&f.tileCols, "tile-cols", 0, "expected tile cols (0 = auto-detect)")
	flags.Float64Var(&f.tolerance, "tolerance", 0, "coordinate clustering tolerance in degrees")
	flags.BoolVar(&f.flipY, "flip-y", false, "flip the mosaic's row axis")
	flags.IntVar(&f.fillPasses, "fill-passes", -1, "quality-mode hole fill passes")
	flags.BoolVar(&f.deflate, "deflate", false, "deflate-compress raster strips")
	flags.BoolVar(&f.npy, "npy", false, "also write a raw .npy dump")
	f.set = flags.Changed
}

func (f *configFlags) apply(cfg *demmosaic.Config) {
	if f.set("tile-rows") {
		cfg.TileRows = f.tileRows
	}
	if f.set("tile-cols") {
		cfg.TileCols = f.tileCols
	}
	if f.set("tolerance") {
		cfg.Tolerance = f.tolerance
	}
	if f.set("flip-y") {
		cfg.FlipY = f.flipY
	}
	if f.set("fill-passes") {
		cfg.FillPasses = f.fillPasses
	}
	if f.set("deflate") {
		cfg.Deflate = f.deflate
	}
	if f.set("npy") {
		cfg.WriteNPY = f.npy
	}
}
