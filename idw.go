package riverdiff

import (
	"fmt"
	"math"
)

// DefaultPower is the default inverse distance weighting exponent.
const DefaultPower = 2.0

// An InterpolationRequest describes the grid produced by InterpolateIDW: the
// world coordinates of its upper left and lower right corners and its size
// in cells.
type InterpolationRequest struct {
	ULX, ULY float64
	LRX, LRY float64
	Width    int
	Height   int
}

// NewInterpolationRequest returns the request for a grid co-registered with
// raster.
func NewInterpolationRequest(raster Raster) (InterpolationRequest, error) {
	transform := raster.Transform()
	if transform.IsRotated() {
		return InterpolationRequest{}, fmt.Errorf("%w: rotated transform %v", ErrInvalidArgument, transform)
	}
	width, height := raster.Size()
	ulx, uly := transform.Apply(0, 0)
	lrx, lry := transform.Apply(float64(width), float64(height))
	return InterpolationRequest{
		ULX:    ulx,
		ULY:    uly,
		LRX:    lrx,
		LRY:    lry,
		Width:  width,
		Height: height,
	}, nil
}

// Transform returns the transform of the grid described by r.
func (r InterpolationRequest) Transform() AffineTransform {
	return NewNorthUpTransform(
		r.ULX,
		r.ULY,
		(r.LRX-r.ULX)/float64(r.Width),
		(r.LRY-r.ULY)/float64(r.Height),
	)
}

func (r InterpolationRequest) validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: output size %dx%d", ErrInvalidArgument, r.Width, r.Height)
	}
	for _, v := range []float64{r.ULX, r.ULY, r.LRX, r.LRY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite bounds", ErrInvalidArgument)
		}
	}
	if r.ULX == r.LRX || r.ULY == r.LRY {
		return fmt.Errorf("%w: empty bounds", ErrInvalidArgument)
	}
	return nil
}

type idwOptions struct {
	power     float64
	maxPoints int
	minPoints int
	radius    float64
	noData    float64
}

// An IDWOption sets an option on InterpolateIDW.
type IDWOption func(*idwOptions)

// WithPower sets the distance exponent.
func WithPower(power float64) IDWOption {
	return func(o *idwOptions) {
		o.power = power
	}
}

// WithMaxPoints limits each cell to its maxPoints nearest samples. Zero means
// no limit.
func WithMaxPoints(maxPoints int) IDWOption {
	return func(o *idwOptions) {
		o.maxPoints = maxPoints
	}
}

// WithMinPoints sets the number of samples a cell needs to be interpolated.
// Cells with fewer samples get the no-data value.
func WithMinPoints(minPoints int) IDWOption {
	return func(o *idwOptions) {
		o.minPoints = minPoints
	}
}

// WithRadius limits each cell to samples within radius. Zero means no limit.
func WithRadius(radius float64) IDWOption {
	return func(o *idwOptions) {
		o.radius = radius
	}
}

// WithNoDataValue sets the value of cells that cannot be interpolated.
func WithNoDataValue(noData float64) IDWOption {
	return func(o *idwOptions) {
		o.noData = noData
	}
}

// InterpolateIDW returns the grid described by request with each cell set to
// the inverse distance weighted mean of samples, measured from the cell's
// centre:
//
//	Σ(vᵢ/dᵢᵖ) / Σ(1/dᵢᵖ)
//
// A cell whose centre coincides with a sample takes that sample's value. If
// several samples coincide with it, the first one in samples wins.
//
// By default every sample contributes to every cell. WithMaxPoints and
// WithRadius restrict each cell to a neighbourhood.
func InterpolateIDW(samples []ElevationSample, request InterpolationRequest, options ...IDWOption) (*Grid, error) {
	o := idwOptions{
		power: DefaultPower,
	}
	for _, option := range options {
		option(&o)
	}

	if err := request.validate(); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrInvalidArgument)
	}
	if math.IsNaN(o.power) || math.IsInf(o.power, 0) || o.power <= 0 {
		return nil, fmt.Errorf("%w: power %g", ErrInvalidArgument, o.power)
	}
	if o.maxPoints < 0 || o.minPoints < 0 || math.IsNaN(o.radius) || math.IsInf(o.radius, 0) || o.radius < 0 {
		return nil, fmt.Errorf("%w: neighbourhood max_points=%d min_points=%d radius=%g",
			ErrInvalidArgument, o.maxPoints, o.minPoints, o.radius)
	}

	grid, err := NewGrid(request.Transform(), request.Width, request.Height)
	if err != nil {
		return nil, err
	}

	var index *sampleIndex
	var indexes []int
	if o.maxPoints > 0 || o.radius > 0 {
		index = newSampleIndex(samples)
		grid.NoData = &o.noData
	}

	for r := range grid.Height {
		for c := range grid.Width {
			x, y := grid.GeoTransform.CellCenter(Cell{C: c, R: r})
			var value float64
			if index == nil {
				value = idwAll(samples, x, y, o.power)
			} else {
				indexes = index.neighbors(indexes, x, y, o.maxPoints, o.radius)
				if len(indexes) == 0 || len(indexes) < o.minPoints {
					value = o.noData
				} else {
					value = idwSubset(samples, indexes, x, y, o.power)
				}
			}
			grid.Set(c, r, value)
		}
	}
	interpolatedCellsTotal.Add(float64(grid.Width * grid.Height))

	return grid, nil
}

func idwAll(samples []ElevationSample, x, y, power float64) float64 {
	var acc idwAccumulator
	for _, sample := range samples {
		if acc.add(sample, x, y, power) {
			break
		}
	}
	return acc.value()
}

func idwSubset(samples []ElevationSample, indexes []int, x, y, power float64) float64 {
	var acc idwAccumulator
	for _, index := range indexes {
		if acc.add(samples[index], x, y, power) {
			break
		}
	}
	return acc.value()
}

// An idwAccumulator accumulates weighted samples. Samples must be added in
// input order for the first coincident sample to win.
type idwAccumulator struct {
	weightedSum  float64
	weightSum    float64
	maxLogWeight float64
	exact        bool
	exactValue   float64
}

// add adds sample and returns true if it coincides with (x, y), in which
// case no further samples are needed.
func (a *idwAccumulator) add(sample ElevationSample, x, y, power float64) bool {
	dx := sample.Point[0] - x
	dy := sample.Point[1] - y
	d2 := dx*dx + dy*dy
	if d2 == 0 || (power == 2 && math.IsInf(1/d2, 1)) {
		a.exact = true
		a.exactValue = sample.Elevation
		return true
	}
	if power == 2 {
		weight := 1 / d2
		a.weightedSum += weight * sample.Elevation
		a.weightSum += weight
		return false
	}

	// Other powers overflow easily, so weights are kept relative to the
	// largest weight seen so far.
	logWeight := -power / 2 * math.Log(d2)
	switch {
	case a.weightSum == 0:
		a.maxLogWeight = logWeight
	case logWeight > a.maxLogWeight:
		scale := math.Exp(a.maxLogWeight - logWeight)
		a.weightedSum *= scale
		a.weightSum *= scale
		a.maxLogWeight = logWeight
	}
	weight := math.Exp(logWeight - a.maxLogWeight)
	a.weightedSum += weight * sample.Elevation
	a.weightSum += weight
	return false
}

func (a *idwAccumulator) value() float64 {
	if a.exact {
		return a.exactValue
	}
	return a.weightedSum / a.weightSum
}
