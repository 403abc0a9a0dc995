package riverdiff_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/paulmach/orb"

	"github.com/twpayne/go-riverdiff"
)

// A testRaster is a Grid that counts calls to Values.
type testRaster struct {
	*riverdiff.Grid
	calls int
}

func (t *testRaster) Values(ctx context.Context, cells []riverdiff.Cell) ([]float64, error) {
	t.calls++
	return t.Grid.Values(ctx, cells)
}

func newSimpleGrid() *riverdiff.Grid {
	return &riverdiff.Grid{
		GeoTransform: riverdiff.NewNorthUpTransform(0, 6, 2, -2),
		Width:        3,
		Height:       3,
		Data: []float64{
			0, 1, 2,
			2, 3, 4,
			4, 5, 6,
		},
	}
}

func TestSampleElevations(t *testing.T) {
	raster := &testRaster{
		Grid: newSimpleGrid(),
	}
	points := []orb.Point{
		{1, 5},
		{2, 4},
		{5.9, 0.1},
		{0, 6},
		{3.99, 5.99},
		{0.01, 0.01},
	}
	actual, err := riverdiff.SampleElevations(t.Context(), raster, points)
	assert.NoError(t, err)
	assert.Equal(t, []float64{0, 3, 6, 0, 1, 4}, actual)
	assert.Equal(t, 1, raster.calls)
}

func TestSampleElevationsBounds(t *testing.T) {
	for _, tc := range []struct {
		name          string
		point         orb.Point
		expectedCell  riverdiff.Cell
		expectedClamp float64
	}{
		{name: "east", point: orb.Point{6, 3}, expectedCell: riverdiff.Cell{C: 3, R: 1}, expectedClamp: 4},
		{name: "west", point: orb.Point{-0.001, 3}, expectedCell: riverdiff.Cell{C: -1, R: 1}, expectedClamp: 2},
		{name: "north", point: orb.Point{1, 6.5}, expectedCell: riverdiff.Cell{C: 0, R: -1}, expectedClamp: 0},
		{name: "south", point: orb.Point{5, 0}, expectedCell: riverdiff.Cell{C: 2, R: 3}, expectedClamp: 6},
		{name: "far", point: orb.Point{100, -100}, expectedCell: riverdiff.Cell{C: 50, R: 53}, expectedClamp: 6},
	} {
		t.Run(tc.name, func(t *testing.T) {
			points := []orb.Point{{1, 5}, tc.point}

			_, err := riverdiff.SampleElevations(t.Context(), newSimpleGrid(), points)
			assert.IsError(t, err, riverdiff.ErrRasterBounds)
			var boundsErr *riverdiff.RasterBoundsError
			assert.True(t, errors.As(err, &boundsErr))
			assert.NotZero(t, boundsErr.Point)
			assert.Equal(t, tc.point, *boundsErr.Point)
			assert.Equal(t, tc.expectedCell, boundsErr.Cell)

			actual, err := riverdiff.SampleElevations(t.Context(), newSimpleGrid(), points, riverdiff.WithClampToBounds())
			assert.NoError(t, err)
			assert.Equal(t, []float64{0, tc.expectedClamp}, actual)
		})
	}
}

func TestSampleElevationsBilinear(t *testing.T) {
	for _, tc := range []struct {
		points   []orb.Point
		expected []float64
	}{
		{
			points: []orb.Point{
				{1, 5},
				{3, 5},
				{1, 3},
				{3, 3},
				{2, 4},
				{2, 5},
				{1, 4},
				{3, 4},
				{2, 3},
			},
			expected: []float64{
				0,
				1,
				2,
				3,
				1.5,
				0.5,
				1,
				2,
				2.5,
			},
		},
		{
			points: []orb.Point{
				{0.5, 5.5},
				{5.5, 0.5},
			},
			expected: []float64{
				0,
				6,
			},
		},
	} {
		actual, err := riverdiff.SampleElevations(t.Context(), newSimpleGrid(), tc.points, riverdiff.WithBilinear())
		assert.NoError(t, err)
		assert.Equal(t, tc.expected, actual)
	}

	_, err := riverdiff.SampleElevations(t.Context(), newSimpleGrid(), []orb.Point{{7, 3}}, riverdiff.WithBilinear())
	assert.IsError(t, err, riverdiff.ErrRasterBounds)
}

func TestSampleElevationsPure(t *testing.T) {
	grid := newSimpleGrid()
	data := slices.Clone(grid.Data)
	points := []orb.Point{{1, 5}, {5, 1}, {3, 3}}
	first, err := riverdiff.SampleElevations(t.Context(), grid, points)
	assert.NoError(t, err)
	second, err := riverdiff.SampleElevations(t.Context(), grid, points)
	assert.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, data, grid.Data)
	assert.Equal(t, []orb.Point{{1, 5}, {5, 1}, {3, 3}}, points)
}
