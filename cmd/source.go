package main

import (
	"context"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/radioreach/stationmap/internal/compose"
	"github.com/radioreach/stationmap/internal/config"
	"github.com/radioreach/stationmap/internal/loader"
)

// newSource builds the configured entity source. The returned close func is
// a no-op for file-backed drivers.
func newSource(ctx context.Context, cfg *config.Config) (loader.Source, func(), error) {
	switch cfg.Data.Driver {
	case "gpkg":
		files := loader.FileSet{
			Stations:  cfg.Data.Files.Stations,
			Buffers:   cfg.Data.Files.Buffers,
			Clusters:  cfg.Data.Files.Clusters,
			GridCells: cfg.Data.Files.GridCells,
			Centroids: cfg.Data.Files.Centroids,
			Roads:     cfg.Data.Files.Roads,
			Villages:  cfg.Data.Files.Villages,
		}
		return loader.NewGeoPackageSource(cfg.Data.Dir, files), func() {}, nil

	case "shapefile":
		return loader.NewShapefileSource(cfg.Data.Dir), func() {}, nil

	case "postgres":
		if cfg.Data.DatabaseURL == "" {
			return nil, nil, eris.New("data.database_url is required for the postgres driver")
		}
		pool, err := pgxpool.New(ctx, cfg.Data.DatabaseURL)
		if err != nil {
			return nil, nil, eris.Wrap(err, "connect postgres")
		}
		return loader.NewPostgresSource(pool), pool.Close, nil

	default:
		return nil, nil, eris.Errorf("unknown data driver %q", cfg.Data.Driver)
	}
}

// composeOptions assembles composition options from config plus a station
// selection, applying any style rule overrides.
func composeOptions(cfg *config.Config, stations []string, zoom int) (compose.Options, error) {
	opts := compose.Options{
		Stations:     stations,
		BufferRules:  compose.BufferRules(),
		ClusterRules: compose.ClusterRules(),
		Zoom:         zoom,
	}
	if zoom == 0 {
		opts.Zoom = cfg.Map.Zoom
	}

	if path := cfg.Style.BufferOverrides; path != "" {
		f, err := os.Open(path)
		if err != nil {
			return compose.Options{}, eris.Wrap(err, "open buffer style overrides")
		}
		defer f.Close()
		opts.BufferRules, err = opts.BufferRules.WithOverrides(f)
		if err != nil {
			return compose.Options{}, err
		}
	}

	if path := cfg.Style.ClusterOverrides; path != "" {
		f, err := os.Open(path)
		if err != nil {
			return compose.Options{}, eris.Wrap(err, "open cluster style overrides")
		}
		defer f.Close()
		opts.ClusterRules, err = opts.ClusterRules.WithOverrides(f)
		if err != nil {
			return compose.Options{}, err
		}
	}

	return opts, nil
}
