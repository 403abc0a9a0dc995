package riverdiff

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// maxSamplePoints is the largest number of points SamplePointsAlongLine
// returns.
const maxSamplePoints = 1 << 26

// SamplePointsAlongLine returns points along line at arc length offsets 0,
// spacing, 2*spacing, ... up to and including floor(L/spacing)*spacing, where
// L is the length of line. The end of line is only included if it falls on
// one of these offsets. If spacing is greater than or equal to L then only
// the start of line is returned.
func SamplePointsAlongLine(line orb.LineString, spacing float64) ([]orb.Point, error) {
	if math.IsNaN(spacing) || math.IsInf(spacing, 0) || spacing <= 0 {
		return nil, fmt.Errorf("%w: spacing %g", ErrInvalidArgument, spacing)
	}
	if len(line) < 2 {
		return nil, fmt.Errorf("%w: line has %d vertices", ErrInvalidGeometry, len(line))
	}
	length := planar.Length(line)
	if length == 0 {
		return nil, fmt.Errorf("%w: line has zero length", ErrInvalidGeometry)
	}
	if spacing >= length {
		return []orb.Point{line[0]}, nil
	}

	if length/spacing >= maxSamplePoints {
		return nil, fmt.Errorf("%w: spacing %g gives more than %d points over length %g",
			ErrInvalidArgument, spacing, maxSamplePoints, length)
	}
	n := int(math.Floor(length/spacing)) + 1
	points := make([]orb.Point, 0, n)
	points = append(points, line[0])

	// Walk the segments, carrying the arc length at the start of the current
	// segment.
	segmentStart := 0.0
	i := 1
	for k := 1; k < n; k++ {
		offset := float64(k) * spacing
		for i < len(line)-1 && segmentStart+planar.Distance(line[i-1], line[i]) < offset {
			segmentStart += planar.Distance(line[i-1], line[i])
			i++
		}
		points = append(points, interpolateSegment(line[i-1], line[i], offset-segmentStart))
	}
	return points, nil
}

// interpolateSegment returns the point at distance along the segment from a
// to b. Distances past the end of the segment are clamped to b.
func interpolateSegment(a, b orb.Point, distance float64) orb.Point {
	segmentLength := planar.Distance(a, b)
	if segmentLength == 0 {
		return a
	}
	f := min(max(distance/segmentLength, 0), 1)
	return orb.Point{
		a[0] + f*(b[0]-a[0]),
		a[1] + f*(b[1]-a[1]),
	}
}
