package riverdiff

import (
	"context"
	"math"

	"github.com/paulmach/orb"
)

type sampleOptions struct {
	clampToBounds bool
	bilinear      bool
}

// A SampleOption sets an option on SampleElevations.
type SampleOption func(*sampleOptions)

// WithClampToBounds makes points outside the raster read the nearest edge
// cell instead of failing with a *RasterBoundsError.
func WithClampToBounds() SampleOption {
	return func(o *sampleOptions) {
		o.clampToBounds = true
	}
}

// WithBilinear interpolates bilinearly between the four pixel centres nearest
// to each point instead of reading the single cell under it.
func WithBilinear() SampleOption {
	return func(o *sampleOptions) {
		o.bilinear = true
	}
}

// SampleElevations returns the value of raster under each of points, in the
// same order as points. Each point is mapped to fractional pixel coordinates
// with the inverse of raster's transform, which are then truncated towards
// negative infinity to select a cell. A point that selects a cell outside
// raster causes a *RasterBoundsError unless WithClampToBounds is given.
func SampleElevations(ctx context.Context, raster Raster, points []orb.Point, options ...SampleOption) ([]float64, error) {
	var o sampleOptions
	for _, option := range options {
		option(&o)
	}

	inverse, err := raster.Transform().Inverse()
	if err != nil {
		return nil, err
	}
	width, height := raster.Size()

	if o.bilinear {
		return sampleBilinear(ctx, raster, inverse, width, height, points, o)
	}

	cells := make([]Cell, len(points))
	for i, point := range points {
		px, py := inverse.Apply(point[0], point[1])
		cell, err := boundedCell(point, floorCell(px, py), width, height, o.clampToBounds)
		if err != nil {
			return nil, err
		}
		cells[i] = cell
	}
	values, err := raster.Values(ctx, cells)
	if err != nil {
		return nil, err
	}
	samplesReadTotal.Add(float64(len(values)))
	return values, nil
}

// sampleBilinear interpolates between pixel centres. Neighbours that fall
// outside the raster are replaced by the nearest edge cell.
func sampleBilinear(ctx context.Context, raster Raster, inverse AffineTransform, width, height int, points []orb.Point, o sampleOptions) ([]float64, error) {
	cells := make([]Cell, 4*len(points))
	weights := make([][2]float64, len(points))
	for i, point := range points {
		px, py := inverse.Apply(point[0], point[1])
		if _, err := boundedCell(point, floorCell(px, py), width, height, o.clampToBounds); err != nil {
			return nil, err
		}
		fx, fy := px-0.5, py-0.5
		c0, r0 := int(math.Floor(fx)), int(math.Floor(fy))
		weights[i] = [2]float64{fx - float64(c0), fy - float64(r0)}
		c0, c1 := clampInt(c0, 0, width-1), clampInt(c0+1, 0, width-1)
		r0, r1 := clampInt(r0, 0, height-1), clampInt(r0+1, 0, height-1)
		cells[4*i+0] = Cell{C: c0, R: r0}
		cells[4*i+1] = Cell{C: c1, R: r0}
		cells[4*i+2] = Cell{C: c0, R: r1}
		cells[4*i+3] = Cell{C: c1, R: r1}
	}
	values, err := raster.Values(ctx, cells)
	if err != nil {
		return nil, err
	}
	result := make([]float64, len(points))
	for i := range points {
		dx, dy := weights[i][0], weights[i][1]
		result[i] = 0 +
			values[4*i+0]*(1-dx)*(1-dy) +
			values[4*i+1]*dx*(1-dy) +
			values[4*i+2]*(1-dx)*dy +
			values[4*i+3]*dx*dy
	}
	samplesReadTotal.Add(float64(len(result)))
	return result, nil
}

func floorCell(px, py float64) Cell {
	return Cell{
		C: int(math.Floor(px)),
		R: int(math.Floor(py)),
	}
}

// boundedCell returns cell if it is inside a width by height raster. If it is
// not, it returns the nearest edge cell if clamp is set and an error
// otherwise.
func boundedCell(point orb.Point, cell Cell, width, height int, clamp bool) (Cell, error) {
	if containsCell(width, height, cell) {
		return cell, nil
	}
	outOfBoundsTotal.Inc()
	if !clamp {
		return Cell{}, &RasterBoundsError{
			Point:  &point,
			Cell:   cell,
			Width:  width,
			Height: height,
		}
	}
	return Cell{
		C: clampInt(cell.C, 0, width-1),
		R: clampInt(cell.R, 0, height-1),
	}, nil
}

func clampInt(x, lo, hi int) int {
	return min(max(x, lo), hi)
}
