package riverdiff

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidGeometry = errors.New("invalid geometry")
	ErrRasterBounds    = errors.New("outside raster bounds")
	ErrGridMismatch    = errors.New("grids are not co-registered")
	ErrCRSMismatch     = errors.New("coordinate reference systems differ")
	ErrIO              = errors.New("i/o error")

	errShortRead = errors.New("short read")
)

// A RasterBoundsError is returned when a point or cell falls outside a
// raster. Point is nil when only the cell is known.
type RasterBoundsError struct {
	Point  *orb.Point
	Cell   Cell
	Width  int
	Height int
}

func (e *RasterBoundsError) Error() string {
	if e.Point == nil {
		return fmt.Sprintf("cell (%d, %d) outside %dx%d raster", e.Cell.C, e.Cell.R, e.Width, e.Height)
	}
	return fmt.Sprintf("point (%g, %g) maps to cell (%d, %d), outside %dx%d raster",
		e.Point[0], e.Point[1], e.Cell.C, e.Cell.R, e.Width, e.Height)
}

func (e *RasterBoundsError) Is(target error) bool {
	return target == ErrRasterBounds
}

// ioError wraps err, which came from a file collaborator, so that it matches
// ErrIO.
func ioError(op, path string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, path, ErrIO, err)
}
