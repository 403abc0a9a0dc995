package riverdiff_test

import (
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/twpayne/go-riverdiff"
)

func TestDifference(t *testing.T) {
	transform := riverdiff.NewNorthUpTransform(0, 20, 10, -10)
	a := &riverdiff.Grid{
		GeoTransform: transform,
		Width:        2,
		Height:       2,
		Data:         []float64{1, 2, 3, 4},
	}
	b := &riverdiff.Grid{
		GeoTransform: transform,
		Width:        2,
		Height:       2,
		Data:         []float64{0.5, 4, -3, 4},
	}

	aMinusB, err := riverdiff.Difference(a, b)
	assert.NoError(t, err)
	assert.Equal(t, []float64{0.5, -2, 6, 0}, aMinusB.Data)
	assert.Equal(t, transform, aMinusB.GeoTransform)

	bMinusA, err := riverdiff.Difference(b, a)
	assert.NoError(t, err)
	for i := range aMinusB.Data {
		assert.True(t, -aMinusB.Data[i] == bMinusA.Data[i], "cell %d: %g and %g", i, aMinusB.Data[i], bMinusA.Data[i])
	}

	aMinusA, err := riverdiff.Difference(a, a)
	assert.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0}, aMinusA.Data)

	assert.Equal(t, []float64{1, 2, 3, 4}, a.Data)
}

func TestDifferenceMismatch(t *testing.T) {
	transform := riverdiff.NewNorthUpTransform(0, 20, 10, -10)
	a, err := riverdiff.NewGrid(transform, 2, 2)
	assert.NoError(t, err)
	for _, b := range []*riverdiff.Grid{
		must(riverdiff.NewGrid(transform, 3, 2)),
		must(riverdiff.NewGrid(transform, 2, 1)),
		must(riverdiff.NewGrid(riverdiff.NewNorthUpTransform(10, 20, 10, -10), 2, 2)),
		must(riverdiff.NewGrid(riverdiff.NewNorthUpTransform(0, 20, 5, -5), 2, 2)),
	} {
		result, err := riverdiff.Difference(a, b)
		assert.IsError(t, err, riverdiff.ErrGridMismatch)
		assert.Zero(t, result)
	}
}

func must[T any](value T, err error) T {
	if err != nil {
		panic(err)
	}
	return value
}
