package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/radioreach/stationmap/internal/entity"
)

// Querier is the pgx surface the Postgres source needs. *pgxpool.Pool and
// pgxmock both satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresSource loads the entity collections from PostGIS tables in the
// coverage schema. Geometries come back as WKB via ST_AsBinary.
type PostgresSource struct {
	pool Querier
}

// NewPostgresSource creates a source over an existing pgx pool.
func NewPostgresSource(pool Querier) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// Identity hashes the per-table row counts and latest modification stamp so
// cached snapshots refresh when the tables change.
func (s *PostgresSource) Identity() (string, error) {
	row := s.pool.QueryRow(context.Background(), `
		SELECT
			(SELECT count(*) FROM coverage.station_loc),
			(SELECT count(*) FROM coverage.station_buffers),
			(SELECT count(*) FROM coverage.sampled_clusters),
			(SELECT coalesce(max(updated_at)::text, '') FROM coverage.station_loc)`)

	var stations, buffers, clusters int64
	var stamp string
	if err := row.Scan(&stations, &buffers, &clusters, &stamp); err != nil {
		return "", eris.Wrap(err, "postgres: source identity")
	}

	sum := sha256.Sum256(fmt.Appendf(nil, "%d|%d|%d|%s", stations, buffers, clusters, stamp))
	return "pg|" + hex.EncodeToString(sum[:8]), nil
}

// Load reads every collection and returns one validated snapshot.
func (s *PostgresSource) Load(ctx context.Context) (*entity.Dataset, error) {
	ds := &entity.Dataset{}

	var err error
	if ds.Stations, err = s.loadStations(ctx); err != nil {
		return nil, err
	}
	if ds.Buffers, err = s.loadBuffers(ctx); err != nil {
		return nil, err
	}
	if ds.Clusters, err = s.loadClusters(ctx); err != nil {
		return nil, err
	}
	// The reference tables are optional; a deployment without them yields
	// empty collections, same as a file set without the optional files.
	if ds.GridCells, err = s.loadGridCells(ctx); err != nil && !isUndefinedTable(err) {
		return nil, err
	}
	if ds.Centroids, err = s.loadCentroids(ctx); err != nil && !isUndefinedTable(err) {
		return nil, err
	}
	if ds.Roads, err = s.loadRoads(ctx); err != nil && !isUndefinedTable(err) {
		return nil, err
	}
	if ds.Villages, err = s.loadVillages(ctx); err != nil && !isUndefinedTable(err) {
		return nil, err
	}

	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// isUndefinedTable reports a missing-relation failure (SQLSTATE 42P01).
func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

func decodeWKB(raw []byte) (geom.T, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	g, err := wkb.Unmarshal(raw)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: decode WKB")
	}
	return g, nil
}

func (s *PostgresSource) loadStations(ctx context.Context) ([]entity.StationLocation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT station_name, color, ST_X(geom), ST_Y(geom)
		FROM coverage.station_loc
		ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query stations")
	}
	defer rows.Close()

	var out []entity.StationLocation
	for rows.Next() {
		var st entity.StationLocation
		if err := rows.Scan(&st.StationName, &st.Color, &st.Longitude, &st.Latitude); err != nil {
			return nil, eris.Wrap(err, "postgres: scan station")
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate stations")
	}
	return out, nil
}

func (s *PostgresSource) loadBuffers(ctx context.Context) ([]entity.CoverageBuffer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT station_name, buffer_km, original_color, ST_AsBinary(geom)
		FROM coverage.station_buffers
		ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query buffers")
	}
	defer rows.Close()

	var out []entity.CoverageBuffer
	for rows.Next() {
		var b entity.CoverageBuffer
		var raw []byte
		if err := rows.Scan(&b.StationName, &b.BufferKM, &b.Color, &raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan buffer")
		}
		if b.Geometry, err = decodeWKB(raw); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate buffers")
	}
	return out, nil
}

func (s *PostgresSource) loadClusters(ctx context.Context) ([]entity.SampledCluster, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT station_name, grid_id, cluster_type, population_count, ST_AsBinary(geom)
		FROM coverage.sampled_clusters
		ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query clusters")
	}
	defer rows.Close()

	var out []entity.SampledCluster
	for rows.Next() {
		var c entity.SampledCluster
		var ct string
		var raw []byte
		if err := rows.Scan(&c.StationName, &c.GridID, &ct, &c.PopulationCount, &raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cluster")
		}
		c.ClusterType = entity.ClusterType(ct)
		if c.Geometry, err = decodeWKB(raw); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate clusters")
	}
	return out, nil
}

func (s *PostgresSource) loadGridCells(ctx context.Context) ([]entity.GridCell, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT station_name, grid_id, cluster_type, est_population_2020,
		       coalesce(nearest_road_maps_link, ''), ST_AsBinary(geom)
		FROM coverage.grid_cells
		ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query grid cells")
	}
	defer rows.Close()

	var out []entity.GridCell
	for rows.Next() {
		var c entity.GridCell
		var ct string
		var raw []byte
		if err := rows.Scan(&c.StationName, &c.GridID, &ct, &c.EstPopulation2020, &c.NearestRoadMapsLink, &raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan grid cell")
		}
		c.ClusterType = entity.ClusterType(ct)
		if c.Geometry, err = decodeWKB(raw); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate grid cells")
	}
	return out, nil
}

func (s *PostgresSource) loadCentroids(ctx context.Context) ([]entity.Centroid, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT station_name, grid_id, ST_AsBinary(geom)
		FROM coverage.grid_centroids
		ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query centroids")
	}
	defer rows.Close()

	var out []entity.Centroid
	for rows.Next() {
		var c entity.Centroid
		var raw []byte
		if err := rows.Scan(&c.StationName, &c.GridID, &raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan centroid")
		}
		if c.Geometry, err = decodeWKB(raw); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate centroids")
	}
	return out, nil
}

func (s *PostgresSource) loadRoads(ctx context.Context) ([]entity.RoadPoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT station_name, coalesce(grid_id, ''), coalesce(name, ''), ST_AsBinary(geom)
		FROM coverage.nearest_roads
		ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query roads")
	}
	defer rows.Close()

	var out []entity.RoadPoint
	for rows.Next() {
		var r entity.RoadPoint
		var raw []byte
		if err := rows.Scan(&r.StationName, &r.GridID, &r.Name, &raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan road")
		}
		if r.Geometry, err = decodeWKB(raw); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate roads")
	}
	return out, nil
}

func (s *PostgresSource) loadVillages(ctx context.Context) ([]entity.VillagePoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT station_name, coalesce(grid_id, ''), coalesce(name, ''), ST_AsBinary(geom)
		FROM coverage.nearest_villages
		ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query villages")
	}
	defer rows.Close()

	var out []entity.VillagePoint
	for rows.Next() {
		var v entity.VillagePoint
		var raw []byte
		if err := rows.Scan(&v.StationName, &v.GridID, &v.Name, &raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan village")
		}
		if v.Geometry, err = decodeWKB(raw); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate villages")
	}
	return out, nil
}
