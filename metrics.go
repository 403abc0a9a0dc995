package riverdiff

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	blockCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "riverdiff_block_cache_hits_total",
		Help: "The total number of hits on the GeoTIFF block cache",
	})
	blockCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "riverdiff_block_cache_misses_total",
		Help: "The total number of misses on the GeoTIFF block cache",
	})
	blockCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "riverdiff_block_cache_evictions_total",
		Help: "The total number of evictions from the GeoTIFF block cache",
	})
	samplesReadTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "riverdiff_samples_read_total",
		Help: "The total number of elevations read under centerline points",
	})
	outOfBoundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "riverdiff_out_of_bounds_total",
		Help: "The total number of points that mapped to a cell outside the raster",
	})
	interpolatedCellsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "riverdiff_interpolated_cells_total",
		Help: "The total number of cells computed by inverse distance weighting",
	})
	stageDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "riverdiff_stage_duration_seconds",
		Help:    "Duration of each pipeline stage",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"stage"})
)

// WriteMetrics writes all registered metrics to filename in the text format
// read by the node exporter's textfile collector.
func WriteMetrics(filename string) error {
	if err := prometheus.WriteToTextfile(filename, prometheus.DefaultGatherer); err != nil {
		return ioError("write metrics", filename, err)
	}
	return nil
}
