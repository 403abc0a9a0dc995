package riverdiff

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// asciiGridHeader is the header of an Esri ASCII grid. Either the corner or
// the centre of the lower left cell is given.
type asciiGridHeader struct {
	ncols       int
	nrows       int
	xllcorner   *float64
	yllcorner   *float64
	xllcenter   *float64
	yllcenter   *float64
	cellSize    float64
	noDataValue *float64
}

// ReadASCIIGridFile reads an Esri ASCII grid from filename. Files ending in
// .gz are gunzipped.
func ReadASCIIGridFile(filename string) (*Grid, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var r io.Reader = file
	if strings.HasSuffix(strings.ToLower(filename), ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}
	return ReadASCIIGrid(r)
}

// ReadASCIIGrid reads an Esri ASCII grid from r.
func ReadASCIIGrid(r io.Reader) (*Grid, error) {
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)

	var header asciiGridHeader
	var token string
	for {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, err
			}
			return nil, errors.New("ASCII grid has no data")
		}
		token = scanner.Text()
		keyword := strings.ToUpper(token)
		if !isASCIIGridKeyword(keyword) {
			break
		}
		if !scanner.Scan() {
			return nil, fmt.Errorf("ASCII grid header %s has no value", token)
		}
		if err := header.set(keyword, scanner.Text()); err != nil {
			return nil, err
		}
	}

	transform, err := header.transform()
	if err != nil {
		return nil, err
	}
	grid, err := NewGrid(transform, header.ncols, header.nrows)
	if err != nil {
		return nil, err
	}
	grid.NoData = header.noDataValue

	// token holds the first value.
	for i := range grid.Data {
		if i > 0 {
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return nil, err
				}
				return nil, fmt.Errorf("ASCII grid has %d values, expected %d", i, len(grid.Data))
			}
			token = scanner.Text()
		}
		value, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return nil, err
		}
		grid.Data[i] = value
	}
	return grid, nil
}

func isASCIIGridKeyword(keyword string) bool {
	switch keyword {
	case "NCOLS", "NROWS", "XLLCORNER", "YLLCORNER", "XLLCENTER", "YLLCENTER", "CELLSIZE", "NODATA_VALUE":
		return true
	default:
		return false
	}
}

func (h *asciiGridHeader) set(keyword, value string) error {
	switch keyword {
	case "NCOLS", "NROWS":
		i, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return err
		}
		if keyword == "NCOLS" {
			h.ncols = int(i)
		} else {
			h.nrows = int(i)
		}
		return nil
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return err
	}
	switch keyword {
	case "XLLCORNER":
		h.xllcorner = &f
	case "YLLCORNER":
		h.yllcorner = &f
	case "XLLCENTER":
		h.xllcenter = &f
	case "YLLCENTER":
		h.yllcenter = &f
	case "CELLSIZE":
		if f <= 0 {
			return errors.New("CELLSIZE must be greater than 0")
		}
		h.cellSize = f
	case "NODATA_VALUE":
		h.noDataValue = &f
	}
	return nil
}

// transform returns the transform of the grid described by h.
func (h *asciiGridHeader) transform() (AffineTransform, error) {
	if h.ncols == 0 || h.nrows == 0 || h.cellSize == 0 {
		return AffineTransform{}, errors.New("ASCII grid doesn't include all mandatory headers")
	}
	var xll, yll float64
	switch {
	case h.xllcorner != nil && h.yllcorner != nil:
		xll, yll = *h.xllcorner, *h.yllcorner
	case h.xllcenter != nil && h.yllcenter != nil:
		xll, yll = *h.xllcenter-h.cellSize/2, *h.yllcenter-h.cellSize/2
	default:
		return AffineTransform{}, errors.New("ASCII grid doesn't include a lower left corner or center")
	}
	return NewNorthUpTransform(xll, yll+float64(h.nrows)*h.cellSize, h.cellSize, -h.cellSize), nil
}

// WriteASCIIGridFile writes grid to filename as an Esri ASCII grid.
func WriteASCIIGridFile(filename string, grid *Grid) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
	}()
	w := bufio.NewWriter(file)
	if err := WriteASCIIGrid(w, grid); err != nil {
		return err
	}
	return w.Flush()
}

// WriteASCIIGrid writes grid to w as an Esri ASCII grid. The grid must be
// north-up with square cells.
func WriteASCIIGrid(w io.Writer, grid *Grid) error {
	t := grid.GeoTransform
	if t.IsRotated() || t[5] >= 0 || math.Abs(t[1]+t[5]) > 1e-9*t[1] {
		return fmt.Errorf("%w: ASCII grids need north-up square cells, got %v", errors.ErrUnsupported, t)
	}
	ulx, _, _, lry := grid.Bounds()
	if _, err := fmt.Fprintf(w, "ncols %d\nnrows %d\nxllcorner %s\nyllcorner %s\ncellsize %s\n",
		grid.Width, grid.Height, formatFloat(ulx), formatFloat(lry), formatFloat(t[1])); err != nil {
		return err
	}
	if grid.NoData != nil {
		if _, err := fmt.Fprintf(w, "NODATA_value %s\n", formatFloat(*grid.NoData)); err != nil {
			return err
		}
	}
	line := make([]byte, 0, 16*grid.Width)
	for r := range grid.Height {
		line = line[:0]
		for c := range grid.Width {
			if c > 0 {
				line = append(line, ' ')
			}
			line = strconv.AppendFloat(line, grid.At(c, r), 'g', -1, 64)
		}
		line = append(line, '\n')
		if _, err := w.Write(line); err != nil {
			return err
		}
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
