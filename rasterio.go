package riverdiff

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// A SourceRaster is a Raster read from a file.
type SourceRaster interface {
	Raster
	Grid(ctx context.Context) (*Grid, error)
	CRS() string
	NoData() *float64
	Close() error
}

// An asciiGridRaster is an Esri ASCII grid, which is always read completely.
type asciiGridRaster struct {
	grid *Grid
	prj  string
}

func (a *asciiGridRaster) Size() (int, int)                        { return a.grid.Size() }
func (a *asciiGridRaster) Transform() AffineTransform              { return a.grid.Transform() }
func (a *asciiGridRaster) Grid(ctx context.Context) (*Grid, error) { return a.grid, nil }
func (a *asciiGridRaster) CRS() string                             { return a.prj }
func (a *asciiGridRaster) NoData() *float64                        { return a.grid.NoData }
func (a *asciiGridRaster) Close() error                            { return nil }

func (a *asciiGridRaster) Values(ctx context.Context, cells []Cell) ([]float64, error) {
	return a.grid.Values(ctx, cells)
}

// OpenRaster opens the raster in filename. The format is chosen by extension:
// .tif and .tiff are GeoTIFFs, .asc and .asc.gz are Esri ASCII grids.
func OpenRaster(filename string, options ...GeoTIFFOption) (SourceRaster, error) {
	switch rasterFormat(filename) {
	case "geotiff":
		g, err := OpenGeoTIFF(os.DirFS(filepath.Dir(filename)), filepath.Base(filename), options...)
		if err != nil {
			return nil, ioError("open raster", filename, err)
		}
		return g, nil
	case "ascii":
		grid, err := ReadASCIIGridFile(filename)
		if err != nil {
			return nil, ioError("open raster", filename, err)
		}
		prj, err := readPRJ(filename)
		if err != nil {
			return nil, ioError("open raster", filename, err)
		}
		return &asciiGridRaster{
			grid: grid,
			prj:  prj,
		}, nil
	default:
		return nil, ioError("open raster", filename, errors.ErrUnsupported)
	}
}

// WriteRaster writes grid to filename in the format chosen by its extension.
// The coordinate reference system is copied from like, which may be nil.
func WriteRaster(filename string, grid *Grid, like SourceRaster) error {
	var err error
	switch rasterFormat(filename) {
	case "geotiff":
		var options []GeoTIFFWriteOption
		if g, ok := like.(*GeoTIFFRaster); ok && g.GeoKeys() != nil {
			options = append(options, WithGeoKeyDirectory(g.GeoKeys()))
		}
		err = WriteGeoTIFFFile(filename, grid, options...)
	case "ascii":
		err = writeASCIIGridFile(filename, grid)
		if a, ok := like.(*asciiGridRaster); ok && err == nil {
			err = writePRJ(filename, a.prj)
		}
	default:
		err = errors.ErrUnsupported
	}
	if err != nil {
		return ioError("write raster", filename, err)
	}
	return nil
}

func writeASCIIGridFile(filename string, grid *Grid) (err error) {
	if !strings.HasSuffix(strings.ToLower(filename), ".gz") {
		return WriteASCIIGridFile(filename, grid)
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
	}()
	gz := gzip.NewWriter(file)
	if err := WriteASCIIGrid(gz, grid); err != nil {
		return err
	}
	return gz.Close()
}

func rasterFormat(filename string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".tif"), strings.HasSuffix(lower, ".tiff"):
		return "geotiff"
	case strings.HasSuffix(lower, ".asc"), strings.HasSuffix(lower, ".asc.gz"):
		return "ascii"
	default:
		return ""
	}
}

// prjFilename returns the name of the .prj sidecar of filename.
func prjFilename(filename string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	if strings.EqualFold(filepath.Ext(filename), ".gz") {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return base + ".prj"
}

// readPRJ returns the contents of filename's .prj sidecar, or the empty
// string if there is none.
func readPRJ(filename string) (string, error) {
	data, err := os.ReadFile(prjFilename(filename))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", nil
	case err != nil:
		return "", err
	default:
		return strings.TrimSpace(string(data)), nil
	}
}

// writePRJ writes crs to filename's .prj sidecar. Nothing is written if crs
// is empty.
func writePRJ(filename, crs string) error {
	if crs == "" {
		return nil
	}
	if err := os.WriteFile(prjFilename(filename), []byte(crs), 0o666); err != nil {
		return fmt.Errorf("write %s: %w", prjFilename(filename), err)
	}
	return nil
}
