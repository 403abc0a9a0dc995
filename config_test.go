package riverdiff

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestLoadConfig(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "riverdiff.yaml")
	assert.NoError(t, os.WriteFile(filename, []byte(""+
		"centerline_path: data/centerline.shp\n"+
		"raster_path: data/dem.tif\n"+
		"spacing: 25\n"+
		"output_path: out/difference.tif\n"+
		"keep_intermediates: true\n"+
		"check_crs: true\n"+
		"idw:\n"+
		"  power: 3\n"+
		"  max_points: 12\n"+
		"  radius: 500\n"+
		"  nodata: -9999\n",
	), 0o666))

	cfg, err := LoadConfig(filename)
	assert.NoError(t, err)
	assert.Equal(t, &Config{
		CenterlinePath:    "data/centerline.shp",
		RasterPath:        "data/dem.tif",
		Spacing:           25,
		OutputPath:        "out/difference.tif",
		KeepIntermediates: true,
		CheckCRS:          true,
		IDW: IDWConfig{
			Power:     3,
			MaxPoints: 12,
			Radius:    500,
			NoData:    -9999,
		},
	}, cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.IsError(t, err, ErrIO)

	filename := filepath.Join(dir, "unknown.yaml")
	assert.NoError(t, os.WriteFile(filename, []byte("spacin: 70\n"), 0o666))
	_, err = LoadConfig(filename)
	assert.IsError(t, err, ErrInvalidArgument)

	filename = filepath.Join(dir, "empty.yaml")
	assert.NoError(t, os.WriteFile(filename, nil, 0o666))
	cfg, err := LoadConfig(filename)
	assert.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)
}

func TestConfigWithDefaults(t *testing.T) {
	for _, tc := range []struct {
		name           string
		cfg            Config
		expectedPoints string
		expectedIDW    string
	}{
		{
			name: "geojson_geotiff",
			cfg: Config{
				CenterlinePath: "centerline.geojson",
				OutputPath:     "out/difference.tif",
			},
			expectedPoints: "out/difference_points.geojson",
			expectedIDW:    "out/difference_idw.tif",
		},
		{
			name: "shapefile_ascii_gzip",
			cfg: Config{
				CenterlinePath: "centerline.shp",
				OutputPath:     "difference.asc.gz",
			},
			expectedPoints: "difference_points.shp",
			expectedIDW:    "difference_idw.asc.gz",
		},
		{
			name: "explicit",
			cfg: Config{
				CenterlinePath: "centerline.shp",
				OutputPath:     "difference.tif",
				PointsPath:     "points.geojson",
				IDWPath:        "idw.asc",
			},
			expectedPoints: "points.geojson",
			expectedIDW:    "idw.asc",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg.withDefaults()
			assert.Equal(t, DefaultSpacing, cfg.Spacing)
			assert.Equal(t, DefaultPower, cfg.IDW.Power)
			assert.NotZero(t, cfg.Logger)
			assert.Equal(t, tc.expectedPoints, cfg.PointsPath)
			assert.Equal(t, tc.expectedIDW, cfg.IDWPath)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		CenterlinePath: "centerline.geojson",
		RasterPath:     "dem.tif",
		OutputPath:     "difference.tif",
	}.withDefaults()
	assert.NoError(t, valid.Validate())

	for _, tc := range []struct {
		name   string
		modify func(*Config)
	}{
		{name: "no_centerline", modify: func(c *Config) { c.CenterlinePath = "" }},
		{name: "no_raster", modify: func(c *Config) { c.RasterPath = "" }},
		{name: "no_output", modify: func(c *Config) { c.OutputPath = "" }},
		{name: "negative_spacing", modify: func(c *Config) { c.Spacing = -70 }},
		{name: "negative_power", modify: func(c *Config) { c.IDW.Power = -1 }},
		{name: "negative_max_points", modify: func(c *Config) { c.IDW.MaxPoints = -1 }},
		{name: "negative_radius", modify: func(c *Config) { c.IDW.Radius = -1 }},
		{name: "output_format", modify: func(c *Config) { c.OutputPath = "difference.png" }},
		{name: "points_format", modify: func(c *Config) { c.PointsPath = "points.csv" }},
		{name: "output_is_raster", modify: func(c *Config) { c.OutputPath = "./dem.tif" }},
		{name: "idw_is_output", modify: func(c *Config) { c.IDWPath = c.OutputPath }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.modify(&cfg)
			assert.IsError(t, cfg.Validate(), ErrInvalidArgument)
		})
	}
}
