package riverdiff_test

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/twpayne/go-riverdiff"
)

const testCenterlineGeoJSON = `{
  "type": "FeatureCollection",
  "crs": {"type": "name", "properties": {"name": "urn:ogc:def:crs:EPSG::32633"}},
  "features": [
    {
      "type": "Feature",
      "properties": {"name": "main"},
      "geometry": {"type": "LineString", "coordinates": [[0, 0], [300, 0]]}
    },
    {
      "type": "Feature",
      "properties": {"name": "ignored"},
      "geometry": {"type": "LineString", "coordinates": [[5, 5], [6, 6]]}
    }
  ]
}`

func TestReadCenterlineGeoJSON(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "centerline.geojson")
	assert.NoError(t, os.WriteFile(filename, []byte(testCenterlineGeoJSON), 0o666))

	line, crs, err := riverdiff.ReadCenterline(filename)
	assert.NoError(t, err)
	assert.Equal(t, orb.LineString{{0, 0}, {300, 0}}, line)
	assert.Equal(t, "EPSG:32633", crs)
}

func TestReadCenterlineGeoJSONGeometries(t *testing.T) {
	for _, tc := range []struct {
		name        string
		geometry    orb.Geometry
		expected    orb.LineString
		expectedErr error
	}{
		{
			name:     "multi_line_string_one_part",
			geometry: orb.MultiLineString{{{0, 0}, {1, 1}}},
			expected: orb.LineString{{0, 0}, {1, 1}},
		},
		{
			name:        "multi_line_string_two_parts",
			geometry:    orb.MultiLineString{{{0, 0}, {1, 1}}, {{2, 2}, {3, 3}}},
			expectedErr: riverdiff.ErrInvalidGeometry,
		},
		{
			name:        "point",
			geometry:    orb.Point{0, 0},
			expectedErr: riverdiff.ErrInvalidGeometry,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fc := geojson.NewFeatureCollection()
			fc.Append(geojson.NewFeature(tc.geometry))
			data, err := fc.MarshalJSON()
			assert.NoError(t, err)
			filename := filepath.Join(t.TempDir(), "centerline.json")
			assert.NoError(t, os.WriteFile(filename, data, 0o666))

			line, crs, err := riverdiff.ReadCenterline(filename)
			if tc.expectedErr != nil {
				assert.IsError(t, err, tc.expectedErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, line)
			assert.Equal(t, "", crs)
		})
	}

	filename := filepath.Join(t.TempDir(), "empty.geojson")
	assert.NoError(t, os.WriteFile(filename, []byte(`{"type":"FeatureCollection","features":[]}`), 0o666))
	_, _, err := riverdiff.ReadCenterline(filename)
	assert.IsError(t, err, riverdiff.ErrInvalidGeometry)
}

func TestReadCenterlineShapefile(t *testing.T) {
	type centerline struct {
		geom.LineString
	}

	dir := t.TempDir()
	filename := filepath.Join(dir, "centerline.shp")
	encoder, err := shp.NewEncoder(filename, centerline{})
	assert.NoError(t, err)
	assert.NoError(t, encoder.Encode(centerline{
		LineString: geom.LineString{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}},
	}))
	encoder.Close()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "centerline.prj"), []byte(testPRJ), 0o666))

	line, crs, err := riverdiff.ReadCenterline(filename)
	assert.NoError(t, err)
	assert.Equal(t, orb.LineString{{0, 0}, {100, 0}, {100, 100}}, line)
	assert.Equal(t, testPRJ, crs)
}

func TestReadCenterlineErrors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := riverdiff.ReadCenterline(filepath.Join(dir, "missing.geojson"))
	assert.IsError(t, err, riverdiff.ErrIO)

	_, _, err = riverdiff.ReadCenterline(filepath.Join(dir, "missing.shp"))
	assert.IsError(t, err, riverdiff.ErrIO)

	_, _, err = riverdiff.ReadCenterline(filepath.Join(dir, "centerline.kml"))
	assert.IsError(t, err, riverdiff.ErrIO)

	filename := filepath.Join(dir, "bad.geojson")
	assert.NoError(t, os.WriteFile(filename, []byte("{"), 0o666))
	_, _, err = riverdiff.ReadCenterline(filename)
	assert.IsError(t, err, riverdiff.ErrIO)
}

func TestWriteElevationPointsGeoJSON(t *testing.T) {
	samples := []riverdiff.ElevationSample{
		{Point: orb.Point{0, 0}, Elevation: 10},
		{Point: orb.Point{100, 0}, Elevation: 12.5},
	}
	filename := filepath.Join(t.TempDir(), "points.geojson")
	assert.NoError(t, riverdiff.WriteElevationPoints(filename, samples, "EPSG:32633"))

	data, err := os.ReadFile(filename)
	assert.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	assert.NoError(t, err)
	assert.Equal(t, len(samples), len(fc.Features))
	for i, feature := range fc.Features {
		assert.Equal(t, orb.Geometry(samples[i].Point), feature.Geometry)
		assert.Equal(t, samples[i].Elevation, feature.Properties.MustFloat64("elevation"))
	}
	assert.Contains(t, string(data), "urn:ogc:def:crs:EPSG::32633")
}

func TestWriteElevationPointsShapefile(t *testing.T) {
	samples := []riverdiff.ElevationSample{
		{Point: orb.Point{0, 0}, Elevation: 10},
		{Point: orb.Point{70, 0}, Elevation: -2.25},
		{Point: orb.Point{140, 0}, Elevation: 1000},
	}
	dir := t.TempDir()
	filename := filepath.Join(dir, "points.shp")
	assert.NoError(t, riverdiff.WriteElevationPoints(filename, samples, testPRJ))

	prj, err := os.ReadFile(filepath.Join(dir, "points.prj"))
	assert.NoError(t, err)
	assert.Equal(t, testPRJ, string(prj))

	decoder, err := shp.NewDecoder(filename)
	assert.NoError(t, err)
	defer decoder.Close()
	var i int
	for {
		g, fields, more := decoder.DecodeRowFields("elevation")
		if !more {
			break
		}
		point, ok := g.(geom.Point)
		assert.True(t, ok)
		assert.Equal(t, samples[i].Point, orb.Point{point.X, point.Y})
		elevation, err := strconv.ParseFloat(strings.TrimSpace(fields["elevation"]), 64)
		assert.NoError(t, err)
		assert.Equal(t, samples[i].Elevation, elevation)
		i++
	}
	assert.NoError(t, decoder.Error())
	assert.Equal(t, len(samples), i)
}
