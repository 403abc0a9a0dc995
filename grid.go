package riverdiff

import (
	"context"
	"fmt"
)

// A Grid is an in-memory raster. Data is stored row by row, so the value of
// cell (c, r) is Data[c+r*Width].
type Grid struct {
	GeoTransform AffineTransform
	Width        int
	Height       int
	Data         []float64
	NoData       *float64
}

// NewGrid returns a new Grid of the given size with all values zero.
func NewGrid(transform AffineTransform, width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: grid size %dx%d", ErrInvalidArgument, width, height)
	}
	return &Grid{
		GeoTransform: transform,
		Width:        width,
		Height:       height,
		Data:         make([]float64, width*height),
	}, nil
}

// NewFilledGrid returns a new Grid of the given size with all values set to
// value.
func NewFilledGrid(transform AffineTransform, width, height int, value float64) (*Grid, error) {
	g, err := NewGrid(transform, width, height)
	if err != nil {
		return nil, err
	}
	for i := range g.Data {
		g.Data[i] = value
	}
	return g, nil
}

// At returns the value of cell (c, r).
func (g *Grid) At(c, r int) float64 {
	return g.Data[c+r*g.Width]
}

// Set sets the value of cell (c, r).
func (g *Grid) Set(c, r int, value float64) {
	g.Data[c+r*g.Width] = value
}

// Contains returns whether cell is inside g.
func (g *Grid) Contains(cell Cell) bool {
	return containsCell(g.Width, g.Height, cell)
}

// Size returns g's width and height.
func (g *Grid) Size() (int, int) {
	return g.Width, g.Height
}

// Transform returns g's transform.
func (g *Grid) Transform() AffineTransform {
	return g.GeoTransform
}

// Values returns the values of cells.
func (g *Grid) Values(ctx context.Context, cells []Cell) ([]float64, error) {
	values := make([]float64, len(cells))
	for i, cell := range cells {
		if !g.Contains(cell) {
			return nil, &RasterBoundsError{
				Cell:   cell,
				Width:  g.Width,
				Height: g.Height,
			}
		}
		values[i] = g.At(cell.C, cell.R)
	}
	return values, nil
}

// CoRegistered returns whether g and other cover the same cells.
func (g *Grid) CoRegistered(other *Grid) bool {
	return g.Width == other.Width &&
		g.Height == other.Height &&
		g.GeoTransform.Equal(other.GeoTransform)
}

// Bounds returns the world coordinates of the upper left and lower right
// corners of g.
func (g *Grid) Bounds() (ulx, uly, lrx, lry float64) {
	ulx, uly = g.GeoTransform.Apply(0, 0)
	lrx, lry = g.GeoTransform.Apply(float64(g.Width), float64(g.Height))
	return
}

func containsCell(width, height int, cell Cell) bool {
	return 0 <= cell.C && cell.C < width && 0 <= cell.R && cell.R < height
}
