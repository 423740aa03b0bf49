package demmosaic

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tilesParsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "demmosaic_tiles_parsed_total",
		Help: "The total number of tile documents parsed successfully",
	})
	tileParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "demmosaic_tile_parse_failures_total",
		Help: "The total number of tile documents rejected as malformed",
	})
	tileShapeMismatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "demmosaic_tile_shape_mismatches_total",
		Help: "The total number of tiles excluded for an unexpected grid shape",
	})
	clusterSnaps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "demmosaic_cluster_snaps_total",
		Help: "The total number of envelope coordinates snapped to the nearest cluster",
	})
	placementConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "demmosaic_placement_conflicts_total",
		Help: "The total number of tiles overwritten by a later tile at the same cell",
	})
	stripCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "demmosaic_strip_cache_hits_total",
		Help: "The total number of hits on raster file strip caches",
	})
	stripCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "demmosaic_strip_cache_misses_total",
		Help: "The total number of misses on raster file strip caches",
	})
)
