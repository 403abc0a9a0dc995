package riverdiff

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSpacing is the default distance between centerline samples, in
// centerline CRS units.
const DefaultSpacing = 70.0

// IDWConfig configures InterpolateIDW. Zero values select the defaults.
type IDWConfig struct {
	Power     float64 `yaml:"power"`
	MaxPoints int     `yaml:"max_points"`
	MinPoints int     `yaml:"min_points"`
	Radius    float64 `yaml:"radius"`
	NoData    float64 `yaml:"nodata"`
}

// A Config configures Run.
type Config struct {
	CenterlinePath    string    `yaml:"centerline_path"`
	RasterPath        string    `yaml:"raster_path"`
	Spacing           float64   `yaml:"spacing"`
	OutputPath        string    `yaml:"output_path"`
	PointsPath        string    `yaml:"points_path"`
	IDWPath           string    `yaml:"idw_path"`
	KeepIntermediates bool      `yaml:"keep_intermediates"`
	ClampToBounds     bool      `yaml:"clamp_to_bounds"`
	Bilinear          bool      `yaml:"bilinear"`
	CheckCRS          bool      `yaml:"check_crs"`
	BlockCacheSize    int       `yaml:"block_cache_size"`
	IDW               IDWConfig `yaml:"idw"`
	MetricsPath       string    `yaml:"metrics_path"`

	Logger *slog.Logger `yaml:"-"`
}

// LoadConfig reads a YAML config from filename. Unknown keys are errors.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, ioError("read config", filename, err)
	}
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w: %w", filename, ErrInvalidArgument, err)
	}
	return &cfg, nil
}

// withDefaults returns a copy of c with unset fields set to their defaults.
// The intermediate paths are derived from the output path.
func (c Config) withDefaults() Config {
	if c.Spacing == 0 {
		c.Spacing = DefaultSpacing
	}
	if c.IDW.Power == 0 {
		c.IDW.Power = DefaultPower
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.OutputPath != "" {
		base, ext := splitRasterExt(c.OutputPath)
		if c.PointsPath == "" {
			pointsExt := ".geojson"
			if vectorFormat(c.CenterlinePath) == "shapefile" {
				pointsExt = ".shp"
			}
			c.PointsPath = base + "_points" + pointsExt
		}
		if c.IDWPath == "" {
			c.IDWPath = base + "_idw" + ext
		}
	}
	return c
}

// Validate returns an error matching ErrInvalidArgument if c cannot be run.
func (c *Config) Validate() error {
	var errs []error
	for _, field := range []struct {
		name  string
		value string
	}{
		{"centerline_path", c.CenterlinePath},
		{"raster_path", c.RasterPath},
		{"output_path", c.OutputPath},
	} {
		if field.value == "" {
			errs = append(errs, fmt.Errorf("%s: required", field.name))
		}
	}
	if math.IsNaN(c.Spacing) || math.IsInf(c.Spacing, 0) || c.Spacing <= 0 {
		errs = append(errs, fmt.Errorf("spacing: must be positive, got %g", c.Spacing))
	}
	if c.IDW.Power < 0 || math.IsNaN(c.IDW.Power) || math.IsInf(c.IDW.Power, 0) {
		errs = append(errs, fmt.Errorf("idw.power: must be positive, got %g", c.IDW.Power))
	}
	if c.IDW.MaxPoints < 0 {
		errs = append(errs, fmt.Errorf("idw.max_points: must not be negative, got %d", c.IDW.MaxPoints))
	}
	if c.IDW.MinPoints < 0 {
		errs = append(errs, fmt.Errorf("idw.min_points: must not be negative, got %d", c.IDW.MinPoints))
	}
	if c.IDW.Radius < 0 || math.IsNaN(c.IDW.Radius) || math.IsInf(c.IDW.Radius, 0) {
		errs = append(errs, fmt.Errorf("idw.radius: must not be negative, got %g", c.IDW.Radius))
	}
	if c.BlockCacheSize < 0 {
		errs = append(errs, fmt.Errorf("block_cache_size: must not be negative, got %d", c.BlockCacheSize))
	}
	if c.OutputPath != "" && rasterFormat(c.OutputPath) == "" {
		errs = append(errs, fmt.Errorf("output_path: unsupported raster format %s", c.OutputPath))
	}
	if c.IDWPath != "" && rasterFormat(c.IDWPath) == "" {
		errs = append(errs, fmt.Errorf("idw_path: unsupported raster format %s", c.IDWPath))
	}
	if c.PointsPath != "" && vectorFormat(c.PointsPath) == "" {
		errs = append(errs, fmt.Errorf("points_path: unsupported vector format %s", c.PointsPath))
	}

	seen := make(map[string]string)
	for _, field := range []struct {
		name  string
		value string
	}{
		{"centerline_path", c.CenterlinePath},
		{"raster_path", c.RasterPath},
		{"output_path", c.OutputPath},
		{"points_path", c.PointsPath},
		{"idw_path", c.IDWPath},
	} {
		if field.value == "" {
			continue
		}
		key := filepath.Clean(field.value)
		if other, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf("%s: same file as %s", field.name, other))
			continue
		}
		seen[key] = field.name
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return nil
}

// splitRasterExt splits filename into a base and a raster extension,
// treating .asc.gz as a single extension.
func splitRasterExt(filename string) (string, string) {
	if strings.HasSuffix(strings.ToLower(filename), ".asc.gz") {
		n := len(filename) - len(".asc.gz")
		return filename[:n], filename[n:]
	}
	ext := filepath.Ext(filename)
	return strings.TrimSuffix(filename, ext), ext
}
