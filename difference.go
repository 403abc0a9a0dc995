package riverdiff

import "fmt"

// Difference returns a new grid with each cell set to a minus b. a and b
// must be co-registered. No-data values are subtracted like any other value.
func Difference(a, b *Grid) (*Grid, error) {
	if !a.CoRegistered(b) {
		return nil, fmt.Errorf("%w: %dx%d %v and %dx%d %v",
			ErrGridMismatch, a.Width, a.Height, a.GeoTransform, b.Width, b.Height, b.GeoTransform)
	}
	result, err := NewGrid(a.GeoTransform, a.Width, a.Height)
	if err != nil {
		return nil, err
	}
	for i := range result.Data {
		result.Data[i] = a.Data[i] - b.Data[i]
	}
	return result, nil
}
