package riverdiff

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// An elevationPoint is the archetype of a record in a points shapefile.
type elevationPoint struct {
	geom.Point
	Elevation float64 `shp:"elevation"`
}

// ReadCenterline returns the geometry of the first feature in filename and
// the feature's coordinate reference system, or the empty string if it is
// not known. Shapefiles (.shp) and GeoJSON (.geojson, .json) are supported.
func ReadCenterline(filename string) (orb.LineString, string, error) {
	var line orb.LineString
	var crs string
	var err error
	switch vectorFormat(filename) {
	case "shapefile":
		line, crs, err = readShapefileCenterline(filename)
	case "geojson":
		line, crs, err = readGeoJSONCenterline(filename)
	default:
		err = ioError("read centerline", filename, errors.ErrUnsupported)
	}
	if err != nil {
		return nil, "", err
	}
	return line, crs, nil
}

func readShapefileCenterline(filename string) (orb.LineString, string, error) {
	decoder, err := shp.NewDecoder(filename)
	if err != nil {
		return nil, "", ioError("read centerline", filename, err)
	}
	defer decoder.Close()

	g, _, more := decoder.DecodeRowFields()
	if !more {
		if err := decoder.Error(); err != nil {
			return nil, "", ioError("read centerline", filename, err)
		}
		return nil, "", fmt.Errorf("%w: %s has no features", ErrInvalidGeometry, filename)
	}

	var line orb.LineString
	switch g := g.(type) {
	case geom.LineString:
		line = lineStringFromGeom(g)
	case geom.MultiLineString:
		if len(g) != 1 {
			return nil, "", fmt.Errorf("%w: centerline has %d parts", ErrInvalidGeometry, len(g))
		}
		line = lineStringFromGeom(g[0])
	default:
		return nil, "", fmt.Errorf("%w: centerline is a %T", ErrInvalidGeometry, g)
	}

	crs, err := readPRJ(filename)
	if err != nil {
		return nil, "", ioError("read centerline", filename, err)
	}
	return line, crs, nil
}

func lineStringFromGeom(g geom.LineString) orb.LineString {
	line := make(orb.LineString, len(g))
	for i, p := range g {
		line[i] = orb.Point{p.X, p.Y}
	}
	return line
}

// geoJSONCRS is the pre-RFC 7946 named crs member.
type geoJSONCRS struct {
	CRS *struct {
		Type       string `json:"type"`
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	} `json:"crs"`
}

func readGeoJSONCenterline(filename string) (orb.LineString, string, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, "", ioError("read centerline", filename, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, "", ioError("read centerline", filename, err)
	}
	if len(fc.Features) == 0 {
		return nil, "", fmt.Errorf("%w: %s has no features", ErrInvalidGeometry, filename)
	}

	var line orb.LineString
	switch g := fc.Features[0].Geometry.(type) {
	case orb.LineString:
		line = g
	case orb.MultiLineString:
		if len(g) != 1 {
			return nil, "", fmt.Errorf("%w: centerline has %d parts", ErrInvalidGeometry, len(g))
		}
		line = g[0]
	default:
		return nil, "", fmt.Errorf("%w: centerline is a %T", ErrInvalidGeometry, g)
	}

	var member geoJSONCRS
	if err := json.Unmarshal(data, &member); err != nil {
		return nil, "", ioError("read centerline", filename, err)
	}
	var crs string
	if member.CRS != nil {
		crs = parseCRSName(member.CRS.Properties.Name)
	}
	return line, crs, nil
}

// parseCRSName converts OGC URNs such as urn:ogc:def:crs:EPSG::32633 to
// EPSG:32633. Other names are returned unchanged.
func parseCRSName(name string) string {
	if rest, ok := strings.CutPrefix(name, "urn:ogc:def:crs:EPSG::"); ok {
		return "EPSG:" + rest
	}
	return name
}

// WriteElevationPoints writes samples to filename as point features with an
// elevation attribute. Shapefiles (.shp) and GeoJSON (.geojson, .json) are
// supported. crs is written to the shapefile's .prj sidecar, or to the
// GeoJSON crs member if it is an EPSG code.
func WriteElevationPoints(filename string, samples []ElevationSample, crs string) error {
	var err error
	switch vectorFormat(filename) {
	case "shapefile":
		err = writeShapefilePoints(filename, samples, crs)
	case "geojson":
		err = writeGeoJSONPoints(filename, samples, crs)
	default:
		err = errors.ErrUnsupported
	}
	if err != nil {
		return ioError("write points", filename, err)
	}
	return nil
}

func writeShapefilePoints(filename string, samples []ElevationSample, crs string) error {
	encoder, err := shp.NewEncoder(filename, elevationPoint{})
	if err != nil {
		return err
	}
	for _, sample := range samples {
		if err := encoder.Encode(elevationPoint{
			Point:     geom.Point{X: sample.Point[0], Y: sample.Point[1]},
			Elevation: sample.Elevation,
		}); err != nil {
			encoder.Close()
			return err
		}
	}
	encoder.Close()
	// .prj sidecars hold WKT, which an EPSG code is not.
	if strings.HasPrefix(crs, "EPSG:") {
		return nil
	}
	return writePRJ(filename, crs)
}

func writeGeoJSONPoints(filename string, samples []ElevationSample, crs string) error {
	fc := geojson.NewFeatureCollection()
	for _, sample := range samples {
		feature := geojson.NewFeature(sample.Point)
		feature.Properties["elevation"] = sample.Elevation
		fc.Append(feature)
	}
	if code, ok := strings.CutPrefix(crs, "EPSG:"); ok {
		fc.ExtraMembers = geojson.Properties{
			"crs": map[string]any{
				"type": "name",
				"properties": map[string]any{
					"name": "urn:ogc:def:crs:EPSG::" + code,
				},
			},
		}
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o666)
}

func vectorFormat(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".shp":
		return "shapefile"
	case ".geojson", ".json":
		return "geojson"
	default:
		return ""
	}
}

// shapefileSidecars returns filename and the files that accompany it if it
// is a shapefile.
func shapefileSidecars(filename string) []string {
	if vectorFormat(filename) != "shapefile" {
		return []string{filename}
	}
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	return []string{
		filename,
		base + ".shx",
		base + ".dbf",
		base + ".prj",
		base + ".cpg",
	}
}
