package riverdiff_test

import (
	"math"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/twpayne/go-riverdiff"
)

func TestAffineTransformApply(t *testing.T) {
	transform := riverdiff.NewNorthUpTransform(1000, 2000, 10, -10)
	for _, tc := range []struct {
		px, py    float64
		expectedX float64
		expectedY float64
	}{
		{px: 0, py: 0, expectedX: 1000, expectedY: 2000},
		{px: 1, py: 0, expectedX: 1010, expectedY: 2000},
		{px: 0, py: 1, expectedX: 1000, expectedY: 1990},
		{px: 2.5, py: 3.5, expectedX: 1025, expectedY: 1965},
	} {
		x, y := transform.Apply(tc.px, tc.py)
		assert.Equal(t, tc.expectedX, x)
		assert.Equal(t, tc.expectedY, y)
	}

	x, y := transform.CellCenter(riverdiff.Cell{C: 0, R: 0})
	assert.Equal(t, 1005.0, x)
	assert.Equal(t, 1995.0, y)
}

func TestAffineTransformInverse(t *testing.T) {
	for _, tc := range []struct {
		name      string
		transform riverdiff.AffineTransform
	}{
		{
			name:      "north_up",
			transform: riverdiff.NewNorthUpTransform(1000, 2000, 10, -10),
		},
		{
			name:      "rectangular",
			transform: riverdiff.NewNorthUpTransform(-50, 75, 0.5, -2),
		},
		{
			name:      "rotated",
			transform: riverdiff.AffineTransform{100, 8, 6, 200, 6, -8},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			inverse, err := tc.transform.Inverse()
			assert.NoError(t, err)
			for _, p := range [][2]float64{{0, 0}, {1, 0}, {0, 1}, {3.25, 7.5}, {-2, 11}} {
				x, y := tc.transform.Apply(p[0], p[1])
				px, py := inverse.Apply(x, y)
				assert.True(t, math.Abs(px-p[0]) < 1e-9)
				assert.True(t, math.Abs(py-p[1]) < 1e-9)
			}
		})
	}
}

func TestAffineTransformInverseSingular(t *testing.T) {
	for _, transform := range []riverdiff.AffineTransform{
		{0, 0, 0, 0, 0, -1},
		{0, 1, 0, 0, 0, 0},
		{0, 1, 2, 0, 2, 4},
	} {
		_, err := transform.Inverse()
		assert.IsError(t, err, riverdiff.ErrInvalidArgument)
	}
}

func TestAffineTransformEqual(t *testing.T) {
	transform := riverdiff.NewNorthUpTransform(0, 300, 3, -3)
	recomputed := riverdiff.NewNorthUpTransform(0, 300, (300.0-0)/100, (0-300.0)/100)
	assert.True(t, transform.Equal(recomputed))
	assert.True(t, transform.Equal(riverdiff.NewNorthUpTransform(1e-10, 300, 3, -3)))
	assert.False(t, transform.Equal(riverdiff.NewNorthUpTransform(0.001, 300, 3, -3)))
	assert.False(t, transform.Equal(riverdiff.NewNorthUpTransform(0, 300, 3.001, -3)))
	assert.False(t, transform.IsRotated())
	assert.True(t, riverdiff.AffineTransform{0, 1, 0.1, 0, 0, -1}.IsRotated())
}
