package riverdiff

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/twpayne/go-proj/v10"
)

// crsTolerance is the largest movement, relative to the coordinate, allowed
// when transforming between two coordinate reference systems that are
// considered the same.
const crsTolerance = 1e-9

// CheckCRS returns an error matching ErrCRSMismatch if transforming line's
// vertices from lineCRS to rasterCRS moves any of them. Nothing is checked if
// either CRS is empty or if they are identical. Coordinates are never
// reprojected.
func CheckCRS(lineCRS, rasterCRS string, line orb.LineString) error {
	if lineCRS == "" || rasterCRS == "" || lineCRS == rasterCRS {
		return nil
	}

	pj, err := proj.NewCRSToCRS(lineCRS, rasterCRS, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCRSMismatch, err)
	}

	coords := make([][]float64, len(line))
	for i, point := range line {
		coords[i] = []float64{point[0], point[1]}
	}
	if err := pj.ForwardFloat64Slices(coords); err != nil {
		return fmt.Errorf("%w: %w", ErrCRSMismatch, err)
	}

	for i, point := range line {
		if moved(point[0], coords[i][0]) || moved(point[1], coords[i][1]) {
			return fmt.Errorf("%w: (%g, %g) becomes (%g, %g)",
				ErrCRSMismatch, point[0], point[1], coords[i][0], coords[i][1])
		}
	}
	return nil
}

func moved(before, after float64) bool {
	return math.Abs(after-before) > crsTolerance*max(1, math.Abs(before))
}
