package riverdiff

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"
)

// A Result is the outcome of Run.
type Result struct {
	Samples       []ElevationSample
	IDW           *Grid
	Difference    *Grid
	NoDataSamples int
}

// Run samples cfg.CenterlinePath every cfg.Spacing, reads cfg.RasterPath
// under each sample, interpolates the samples onto the raster's grid, and
// writes the raster minus the interpolated surface to cfg.OutputPath.
//
// The sample points and the interpolated surface are written to
// cfg.PointsPath and cfg.IDWPath and removed afterwards unless
// cfg.KeepIntermediates is set. Failing to remove them is logged but is not
// an error. Nothing is written to cfg.OutputPath if any stage fails.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger

	var intermediates []string
	defer func() {
		if cfg.KeepIntermediates {
			return
		}
		for _, filename := range intermediates {
			removeIntermediate(logger, filename)
		}
	}()

	if cfg.MetricsPath != "" {
		defer func() {
			if err := WriteMetrics(cfg.MetricsPath); err != nil {
				logger.Warn("write metrics failed", "path", cfg.MetricsPath, "err", err)
			}
		}()
	}

	done, err := startStage(ctx, logger, "read_centerline")
	if err != nil {
		return nil, err
	}
	line, lineCRS, err := ReadCenterline(cfg.CenterlinePath)
	if err != nil {
		return nil, err
	}
	done("vertices", len(line))

	done, err = startStage(ctx, logger, "open_raster")
	if err != nil {
		return nil, err
	}
	var rasterOptions []GeoTIFFOption
	if cfg.BlockCacheSize > 0 {
		rasterOptions = append(rasterOptions, WithBlockCacheSize(cfg.BlockCacheSize))
	}
	raster, err := OpenRaster(cfg.RasterPath, rasterOptions...)
	if err != nil {
		return nil, err
	}
	defer raster.Close()
	width, height := raster.Size()
	done("width", width, "height", height)

	if cfg.CheckCRS {
		done, err = startStage(ctx, logger, "check_crs")
		if err != nil {
			return nil, err
		}
		if lineCRS == "" || raster.CRS() == "" {
			logger.Warn("coordinate reference system unknown, skipping check",
				"centerline_crs", lineCRS,
				"raster_crs", raster.CRS(),
			)
		} else if err := CheckCRS(lineCRS, raster.CRS(), line); err != nil {
			return nil, err
		}
		done()
	}

	done, err = startStage(ctx, logger, "sample_line")
	if err != nil {
		return nil, err
	}
	points, err := SamplePointsAlongLine(line, cfg.Spacing)
	if err != nil {
		return nil, err
	}
	done("points", len(points))

	done, err = startStage(ctx, logger, "sample_raster")
	if err != nil {
		return nil, err
	}
	var sampleOptions []SampleOption
	if cfg.ClampToBounds {
		sampleOptions = append(sampleOptions, WithClampToBounds())
	}
	if cfg.Bilinear {
		sampleOptions = append(sampleOptions, WithBilinear())
	}
	elevations, err := SampleElevations(ctx, raster, points, sampleOptions...)
	if err != nil {
		return nil, err
	}
	samples := NewElevationSamples(points, elevations)
	noDataSamples := countNoData(elevations, raster.NoData())
	if noDataSamples > 0 {
		logger.Warn("samples hit no-data cells", "count", noDataSamples, "nodata", *raster.NoData())
	}
	done("points", len(samples))

	done, err = startStage(ctx, logger, "write_points")
	if err != nil {
		return nil, err
	}
	intermediates = append(intermediates, shapefileSidecars(cfg.PointsPath)...)
	if err := WriteElevationPoints(cfg.PointsPath, samples, lineCRS); err != nil {
		return nil, err
	}
	if vectorFormat(cfg.PointsPath) == "shapefile" && strings.HasPrefix(lineCRS, "EPSG:") {
		logger.Warn("points shapefile written without coordinate reference system",
			"path", cfg.PointsPath,
			"crs", lineCRS,
		)
	}
	done("path", cfg.PointsPath)

	done, err = startStage(ctx, logger, "interpolate")
	if err != nil {
		return nil, err
	}
	request, err := NewInterpolationRequest(raster)
	if err != nil {
		return nil, err
	}
	idwGrid, err := InterpolateIDW(samples, request,
		WithPower(cfg.IDW.Power),
		WithMaxPoints(cfg.IDW.MaxPoints),
		WithMinPoints(cfg.IDW.MinPoints),
		WithRadius(cfg.IDW.Radius),
		WithNoDataValue(cfg.IDW.NoData),
	)
	if err != nil {
		return nil, err
	}
	done("cells", len(idwGrid.Data), "power", cfg.IDW.Power)

	done, err = startStage(ctx, logger, "write_idw")
	if err != nil {
		return nil, err
	}
	intermediates = append(intermediates, cfg.IDWPath)
	if rasterFormat(cfg.IDWPath) == "ascii" && rasterFormat(cfg.RasterPath) == "ascii" && raster.CRS() != "" {
		intermediates = append(intermediates, prjFilename(cfg.IDWPath))
	}
	if err := WriteRaster(cfg.IDWPath, idwGrid, raster); err != nil {
		return nil, err
	}
	done("path", cfg.IDWPath)

	done, err = startStage(ctx, logger, "difference")
	if err != nil {
		return nil, err
	}
	source, err := raster.Grid(ctx)
	if err != nil {
		return nil, err
	}
	difference, err := Difference(source, idwGrid)
	if err != nil {
		return nil, err
	}
	done()

	done, err = startStage(ctx, logger, "write_output")
	if err != nil {
		return nil, err
	}
	if err := WriteRaster(cfg.OutputPath, difference, raster); err != nil {
		return nil, err
	}
	done("path", cfg.OutputPath)

	return &Result{
		Samples:       samples,
		IDW:           idwGrid,
		Difference:    difference,
		NoDataSamples: noDataSamples,
	}, nil
}

// startStage checks ctx and starts timing a stage. The returned function
// records the stage's duration and logs attrs when the stage succeeds.
func startStage(ctx context.Context, logger *slog.Logger, name string) (func(attrs ...any), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger.Debug("stage started", "stage", name)
	start := time.Now()
	return func(attrs ...any) {
		duration := time.Since(start)
		stageDurationSeconds.WithLabelValues(name).Observe(duration.Seconds())
		logger.Info("stage finished", append([]any{"stage", name, "duration", duration}, attrs...)...)
	}, nil
}

func countNoData(values []float64, noData *float64) int {
	if noData == nil {
		return 0
	}
	count := 0
	for _, value := range values {
		if value == *noData {
			count++
		}
	}
	return count
}

// removeIntermediate removes filename. Missing files are ignored and other
// errors are logged.
func removeIntermediate(logger *slog.Logger, filename string) {
	switch err := os.Remove(filename); {
	case err == nil:
		logger.Debug("removed intermediate", "path", filename)
	case errors.Is(err, fs.ErrNotExist):
	default:
		logger.Warn("remove intermediate failed", "path", filename, "err", err)
	}
}
