package riverdiff

import (
	"fmt"
	"math"
)

// An AffineTransform maps pixel coordinates to world coordinates. The
// coefficients are in GDAL order:
//
//	x = t[0] + c*t[1] + r*t[2]
//	y = t[3] + c*t[4] + r*t[5]
//
// Pixel coordinates refer to the upper left corner of a pixel, so the centre
// of cell (c, r) is at pixel coordinates (c+0.5, r+0.5).
type AffineTransform [6]float64

// NewNorthUpTransform returns the transform of a north-up grid whose upper
// left corner is at (ulx, uly) with the given cell sizes. dy is normally
// negative.
func NewNorthUpTransform(ulx, uly, dx, dy float64) AffineTransform {
	return AffineTransform{ulx, dx, 0, uly, 0, dy}
}

// Apply maps pixel coordinates (px, py) to world coordinates.
func (t AffineTransform) Apply(px, py float64) (float64, float64) {
	return t[0] + px*t[1] + py*t[2], t[3] + px*t[4] + py*t[5]
}

// CellCenter returns the world coordinates of the centre of cell.
func (t AffineTransform) CellCenter(cell Cell) (float64, float64) {
	return t.Apply(float64(cell.C)+0.5, float64(cell.R)+0.5)
}

// Inverse returns the transform that maps world coordinates back to pixel
// coordinates.
func (t AffineTransform) Inverse() (AffineTransform, error) {
	if !t.IsRotated() {
		if t[1] == 0 || t[5] == 0 {
			return AffineTransform{}, fmt.Errorf("%w: singular transform %v", ErrInvalidArgument, t)
		}
		return AffineTransform{-t[0] / t[1], 1 / t[1], 0, -t[3] / t[5], 0, 1 / t[5]}, nil
	}
	det := t[1]*t[5] - t[2]*t[4]
	if det == 0 {
		return AffineTransform{}, fmt.Errorf("%w: singular transform %v", ErrInvalidArgument, t)
	}
	return AffineTransform{
		(t[2]*t[3] - t[0]*t[5]) / det,
		t[5] / det,
		-t[2] / det,
		(-t[1]*t[3] + t[0]*t[4]) / det,
		-t[4] / det,
		t[1] / det,
	}, nil
}

// IsRotated returns whether t has rotation or shear terms.
func (t AffineTransform) IsRotated() bool {
	return t[2] != 0 || t[4] != 0
}

// Equal returns whether t and other describe the same grid. Coefficients may
// differ by a small fraction of the pixel size, because a transform
// recomputed from bounds and dimensions does not round-trip exactly.
func (t AffineTransform) Equal(other AffineTransform) bool {
	tolerance := 1e-9 * math.Max(math.Hypot(t[1], t[4]), math.Hypot(t[2], t[5]))
	for i := range t {
		if math.Abs(t[i]-other[i]) > tolerance {
			return false
		}
	}
	return true
}
