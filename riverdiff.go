// Package riverdiff compares a river centerline's elevation profile with an
// elevation raster.
//
// A run samples the centerline at a fixed spacing, reads the raster under
// each sample, rebuilds a surface from the samples by inverse distance
// weighting, and subtracts that surface from the raster.
package riverdiff

import (
	"context"

	"github.com/paulmach/orb"
)

// A Cell is a raster cell index.
type Cell struct {
	C int // Column.
	R int // Row.
}

// A BlockCoord is the coordinate of a strip or tile within a raster file.
type BlockCoord struct {
	C int // Column.
	R int // Row.
}

// A Raster is a single band of georeferenced values.
type Raster interface {
	Size() (width, height int)
	Transform() AffineTransform
	Values(ctx context.Context, cells []Cell) ([]float64, error)
}

// An ElevationSample is a point with the raster elevation found under it.
type ElevationSample struct {
	Point     orb.Point
	Elevation float64
}

// NewElevationSamples pairs points with elevations. points and elevations
// must have the same length.
func NewElevationSamples(points []orb.Point, elevations []float64) []ElevationSample {
	samples := make([]ElevationSample, len(points))
	for i, point := range points {
		samples[i] = ElevationSample{
			Point:     point,
			Elevation: elevations[i],
		}
	}
	return samples
}
