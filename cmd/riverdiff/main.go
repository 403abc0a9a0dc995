package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/twpayne/go-riverdiff"
	"github.com/twpayne/go-riverdiff/internal/logger"
)

func run() error {
	_ = godotenv.Load(".env")

	defaultSpacing := riverdiff.DefaultSpacing
	if s := os.Getenv("RIVERDIFF_SPACING"); s != "" {
		spacing, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("RIVERDIFF_SPACING: %w", err)
		}
		defaultSpacing = spacing
	}

	configPath := flag.String("config", os.Getenv("RIVERDIFF_CONFIG"), "path to YAML config")
	centerline := flag.String("centerline", os.Getenv("RIVERDIFF_CENTERLINE"), "path to centerline (.shp or .geojson)")
	raster := flag.String("raster", os.Getenv("RIVERDIFF_RASTER"), "path to elevation raster (.tif or .asc)")
	spacing := flag.Float64("spacing", defaultSpacing, "distance between samples")
	output := flag.String("output", os.Getenv("RIVERDIFF_OUTPUT"), "path to difference raster")
	keepIntermediates := flag.Bool("keep-intermediates", false, "keep the points and IDW files")
	metrics := flag.String("metrics", "", "path to write Prometheus metrics to")
	flag.Parse()

	if flag.NArg() != 0 {
		return errors.New("syntax: riverdiff [flags]")
	}

	var cfg riverdiff.Config
	if *configPath != "" {
		loadedCfg, err := riverdiff.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = *loadedCfg
	}

	// Flags and environment variables override the config file.
	if *centerline != "" {
		cfg.CenterlinePath = *centerline
	}
	if *raster != "" {
		cfg.RasterPath = *raster
	}
	if *output != "" {
		cfg.OutputPath = *output
	}
	if cfg.Spacing == 0 || isFlagSet("spacing") || os.Getenv("RIVERDIFF_SPACING") != "" {
		cfg.Spacing = *spacing
	}
	if *keepIntermediates {
		cfg.KeepIntermediates = true
	}
	if *metrics != "" {
		cfg.MetricsPath = *metrics
	}
	cfg.Logger = logger.Setup()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	result, err := riverdiff.Run(ctx, cfg)
	if err != nil {
		return err
	}
	cfg.Logger.Info("done",
		"output", cfg.OutputPath,
		"samples", len(result.Samples),
		"nodata_samples", result.NoDataSamples,
	)
	return nil
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func main() {
	if err := run(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
