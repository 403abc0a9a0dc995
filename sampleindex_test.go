package riverdiff

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/paulmach/orb"
)

func TestSampleIndexNeighbors(t *testing.T) {
	samples := []ElevationSample{
		{Point: orb.Point{0, 0}},
		{Point: orb.Point{10, 0}},
		{Point: orb.Point{0, 10}},
		{Point: orb.Point{3, 4}},
		{Point: orb.Point{100, 100}},
		{Point: orb.Point{3, 4}},
	}
	index := newSampleIndex(samples)

	for _, tc := range []struct {
		name      string
		x, y      float64
		maxPoints int
		radius    float64
		expected  []int
	}{
		{name: "nearest", x: 3, y: 4, maxPoints: 2, expected: []int{3, 5}},
		{name: "nearest_three", x: 0, y: 0, maxPoints: 3, expected: []int{0, 3, 5}},
		{name: "more_than_samples", x: 0, y: 0, maxPoints: 10, expected: []int{0, 1, 2, 3, 4, 5}},
		{name: "radius", x: 0, y: 0, radius: 6, expected: []int{0, 3, 5}},
		{name: "radius_empty", x: 50, y: 50, radius: 5, expected: []int{}},
		{name: "nearest_within_radius", x: 0, y: 0, maxPoints: 3, radius: 4, expected: []int{0}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			actual := index.neighbors(nil, tc.x, tc.y, tc.maxPoints, tc.radius)
			if len(tc.expected) == 0 {
				assert.Equal(t, 0, len(actual))
				return
			}
			assert.Equal(t, tc.expected, actual)
		})
	}
}
