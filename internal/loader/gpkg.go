package loader

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/radioreach/stationmap/internal/entity"
)

// FileSet names the per-collection GeoPackage files inside a data directory.
// Empty optional entries are skipped.
type FileSet struct {
	Stations  string
	Buffers   string
	Clusters  string
	GridCells string
	Centroids string
	Roads     string
	Villages  string
}

// DefaultFileSet mirrors the upstream pipeline's processed-data layout.
func DefaultFileSet() FileSet {
	return FileSet{
		Stations:  "station_loc.gpkg",
		Buffers:   "station_buffers.gpkg",
		Clusters:  "sampled_clusters.gpkg",
		GridCells: "grid_cells.gpkg",
		Centroids: "grid_centroids.gpkg",
		Roads:     "nearest_roads.gpkg",
		Villages:  "nearest_villages.gpkg",
	}
}

// GeoPackageSource loads the entity collections from GeoPackage files.
// GeoPackages are SQLite databases; feature tables are located through
// gpkg_contents and geometry blobs decoded from the GP binary format.
type GeoPackageSource struct {
	Dir   string
	Files FileSet
}

// NewGeoPackageSource creates a source over a data directory.
func NewGeoPackageSource(dir string, files FileSet) *GeoPackageSource {
	if files == (FileSet{}) {
		files = DefaultFileSet()
	}
	return &GeoPackageSource{Dir: dir, Files: files}
}

// Identity combines path, size, and mtime of every configured file.
func (s *GeoPackageSource) Identity() (string, error) {
	type spec struct {
		name     string
		required bool
	}
	var parts []string
	for _, f := range []spec{
		{s.Files.Stations, true},
		{s.Files.Buffers, true},
		{s.Files.Clusters, true},
		{s.Files.GridCells, false},
		{s.Files.Centroids, false},
		{s.Files.Roads, false},
		{s.Files.Villages, false},
	} {
		if f.name == "" {
			continue
		}
		id, err := fileIdentity(filepath.Join(s.Dir, f.name), f.required)
		if err != nil {
			return "", err
		}
		parts = append(parts, id)
	}
	return "gpkg|" + strings.Join(parts, "|"), nil
}

// Load reads all collections concurrently and returns one validated snapshot.
func (s *GeoPackageSource) Load(ctx context.Context) (*entity.Dataset, error) {
	log := zap.L().With(zap.String("component", "loader.gpkg"), zap.String("dir", s.Dir))

	ds := &entity.Dataset{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		recs, err := s.readFile(gctx, s.Files.Stations, true)
		if err != nil {
			return err
		}
		ds.Stations, err = stationsFromRecords(recs)
		return err
	})
	g.Go(func() error {
		recs, err := s.readFile(gctx, s.Files.Buffers, true)
		if err != nil {
			return err
		}
		ds.Buffers, err = buffersFromRecords(recs)
		return err
	})
	g.Go(func() error {
		recs, err := s.readFile(gctx, s.Files.Clusters, true)
		if err != nil {
			return err
		}
		ds.Clusters, err = clustersFromRecords(recs)
		return err
	})
	g.Go(func() error {
		recs, err := s.readFile(gctx, s.Files.GridCells, false)
		if err != nil {
			return err
		}
		ds.GridCells, err = gridCellsFromRecords(recs)
		return err
	})
	g.Go(func() error {
		recs, err := s.readFile(gctx, s.Files.Centroids, false)
		if err != nil {
			return err
		}
		ds.Centroids, err = centroidsFromRecords(recs)
		return err
	})
	g.Go(func() error {
		recs, err := s.readFile(gctx, s.Files.Roads, false)
		if err != nil {
			return err
		}
		ds.Roads = roadsFromRecords(recs)
		return nil
	})
	g.Go(func() error {
		recs, err := s.readFile(gctx, s.Files.Villages, false)
		if err != nil {
			return err
		}
		ds.Villages = villagesFromRecords(recs)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}

	log.Info("loaded dataset",
		zap.Int("stations", len(ds.Stations)),
		zap.Int("buffers", len(ds.Buffers)),
		zap.Int("clusters", len(ds.Clusters)),
		zap.Int("grid_cells", len(ds.GridCells)),
	)
	return ds, nil
}

// gpkgRecord is one feature row: stringified attributes plus decoded geometry.
type gpkgRecord struct {
	attrs map[string]string
	geom  geom.T
}

func (r gpkgRecord) str(key string) string { return r.attrs[key] }

func (r gpkgRecord) int(key string) int {
	v := r.attrs[key]
	if v == "" {
		return 0
	}
	// Pipeline exports sometimes carry integral values as floats.
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return int(f)
	}
	return 0
}

// readFile opens one GeoPackage and reads its single feature table. A missing
// optional file yields no records.
func (s *GeoPackageSource) readFile(ctx context.Context, name string, required bool) ([]gpkgRecord, error) {
	if name == "" {
		return nil, nil
	}
	path := filepath.Join(s.Dir, name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !required {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "gpkg: required file %s", path)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, eris.Wrapf(err, "gpkg: open %s", path)
	}
	defer func() { _ = db.Close() }()

	table, geomCol, err := featureTable(ctx, db, path)
	if err != nil {
		return nil, err
	}
	return readFeatureRows(ctx, db, table, geomCol)
}

// featureTable locates the feature table and its geometry column. The
// upstream exports hold exactly one feature layer per file.
func featureTable(ctx context.Context, db *sql.DB, path string) (string, string, error) {
	row := db.QueryRowContext(ctx, `
		SELECT c.table_name, g.column_name, g.srs_id
		FROM gpkg_contents c
		JOIN gpkg_geometry_columns g ON g.table_name = c.table_name
		WHERE c.data_type = 'features'
		LIMIT 1`)

	var table, geomCol string
	var srsID int
	if err := row.Scan(&table, &geomCol, &srsID); err != nil {
		return "", "", eris.Wrapf(err, "gpkg: locate feature table in %s", path)
	}
	if srsID != 4326 && srsID != 0 {
		return "", "", &entity.DataIntegrityError{
			Entity: "gpkg",
			Key:    path,
			Reason: fmt.Sprintf("feature table %s uses SRS %d, expected WGS84 (4326)", table, srsID),
		}
	}
	return table, geomCol, nil
}

// readFeatureRows scans every row of a feature table into generic records.
func readFeatureRows(ctx context.Context, db *sql.DB, table, geomCol string) ([]gpkgRecord, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM "%s"`, table))
	if err != nil {
		return nil, eris.Wrapf(err, "gpkg: select from %s", table)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, eris.Wrap(err, "gpkg: columns")
	}

	var recs []gpkgRecord
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrapf(err, "gpkg: scan row from %s", table)
		}

		rec := gpkgRecord{attrs: make(map[string]string, len(cols))}
		for i, col := range cols {
			name := strings.ToLower(col)
			if name == strings.ToLower(geomCol) {
				blob, _ := vals[i].([]byte)
				g, err := decodeGPKGGeometry(blob)
				if err != nil {
					return nil, &entity.DataIntegrityError{
						Entity: table,
						Key:    fmt.Sprintf("row %d", len(recs)),
						Reason: err.Error(),
					}
				}
				rec.geom = g
				continue
			}
			rec.attrs[name] = stringifyValue(vals[i])
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "gpkg: iterate %s", table)
	}
	return recs, nil
}

func stringifyValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func requireAttr(rec gpkgRecord, entityName, key string) (string, error) {
	v := rec.str(key)
	if v == "" {
		return "", &entity.DataIntegrityError{
			Entity: entityName,
			Key:    key,
			Reason: "missing required column value",
		}
	}
	return v, nil
}

func stationsFromRecords(recs []gpkgRecord) ([]entity.StationLocation, error) {
	out := make([]entity.StationLocation, 0, len(recs))
	for _, r := range recs {
		name, err := requireAttr(r, "station", "station_name")
		if err != nil {
			return nil, err
		}
		pt, ok := r.geom.(*geom.Point)
		if !ok || pt == nil {
			return nil, &entity.DataIntegrityError{
				Entity: "station",
				Key:    name,
				Reason: "geometry is not a point",
			}
		}
		out = append(out, entity.StationLocation{
			StationName: name,
			Longitude:   pt.X(),
			Latitude:    pt.Y(),
			Color:       r.str("color"),
		})
	}
	return out, nil
}

func buffersFromRecords(recs []gpkgRecord) ([]entity.CoverageBuffer, error) {
	out := make([]entity.CoverageBuffer, 0, len(recs))
	for _, r := range recs {
		name, err := requireAttr(r, "coverage_buffer", "station_name")
		if err != nil {
			return nil, err
		}
		if r.geom == nil {
			return nil, &entity.DataIntegrityError{
				Entity: "coverage_buffer",
				Key:    name,
				Reason: "missing polygon geometry",
			}
		}
		out = append(out, entity.CoverageBuffer{
			StationName: name,
			BufferKM:    r.int("buffer_km"),
			Color:       r.str("original_color"),
			Geometry:    r.geom,
		})
	}
	return out, nil
}

func clustersFromRecords(recs []gpkgRecord) ([]entity.SampledCluster, error) {
	out := make([]entity.SampledCluster, 0, len(recs))
	for _, r := range recs {
		name, err := requireAttr(r, "sampled_cluster", "station_name")
		if err != nil {
			return nil, err
		}
		out = append(out, entity.SampledCluster{
			StationName:     name,
			GridID:          r.str("grid_id"),
			ClusterType:     entity.ClusterType(r.str("cluster_type")),
			PopulationCount: r.int("population_count"),
			Geometry:        r.geom,
		})
	}
	return out, nil
}

func gridCellsFromRecords(recs []gpkgRecord) ([]entity.GridCell, error) {
	out := make([]entity.GridCell, 0, len(recs))
	for _, r := range recs {
		name, err := requireAttr(r, "grid_cell", "station_name")
		if err != nil {
			return nil, err
		}
		gridID, err := requireAttr(r, "grid_cell", "grid_id")
		if err != nil {
			return nil, err
		}
		out = append(out, entity.GridCell{
			StationName:         name,
			GridID:              gridID,
			ClusterType:         entity.ClusterType(r.str("cluster_type")),
			EstPopulation2020:   r.int("est_population_2020"),
			NearestRoadMapsLink: r.str("nearest_road_maps_link"),
			Geometry:            r.geom,
		})
	}
	return out, nil
}

func centroidsFromRecords(recs []gpkgRecord) ([]entity.Centroid, error) {
	out := make([]entity.Centroid, 0, len(recs))
	for _, r := range recs {
		name, err := requireAttr(r, "centroid", "station_name")
		if err != nil {
			return nil, err
		}
		gridID, err := requireAttr(r, "centroid", "grid_id")
		if err != nil {
			return nil, err
		}
		out = append(out, entity.Centroid{
			StationName: name,
			GridID:      gridID,
			Geometry:    r.geom,
		})
	}
	return out, nil
}

func roadsFromRecords(recs []gpkgRecord) []entity.RoadPoint {
	out := make([]entity.RoadPoint, 0, len(recs))
	for _, r := range recs {
		// Nil geometry is a valid, skippable state for reference points.
		out = append(out, entity.RoadPoint{
			StationName: r.str("station_name"),
			GridID:      r.str("grid_id"),
			Name:        r.str("name"),
			Geometry:    r.geom,
		})
	}
	return out
}

func villagesFromRecords(recs []gpkgRecord) []entity.VillagePoint {
	out := make([]entity.VillagePoint, 0, len(recs))
	for _, r := range recs {
		out = append(out, entity.VillagePoint{
			StationName: r.str("station_name"),
			GridID:      r.str("grid_id"),
			Name:        r.str("name"),
			Geometry:    r.geom,
		})
	}
	return out
}
