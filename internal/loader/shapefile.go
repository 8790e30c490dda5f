package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/radioreach/stationmap/internal/entity"
)

// ShapefileSource loads the entity collections from a directory of
// shapefiles, one per collection, named like the GeoPackage FileSet but with
// a .shp extension.
type ShapefileSource struct {
	Dir string
}

// NewShapefileSource creates a source over a directory of shapefiles.
func NewShapefileSource(dir string) *ShapefileSource {
	return &ShapefileSource{Dir: dir}
}

func shpName(collection string) string { return collection + ".shp" }

// Identity combines path, size, and mtime of every collection shapefile.
func (s *ShapefileSource) Identity() (string, error) {
	var parts []string
	for _, c := range []struct {
		name     string
		required bool
	}{
		{CollectionStations, true},
		{CollectionBuffers, true},
		{CollectionClusters, true},
		{CollectionGridCells, false},
		{CollectionCentroids, false},
		{CollectionRoads, false},
		{CollectionVillages, false},
	} {
		id, err := fileIdentity(filepath.Join(s.Dir, shpName(c.name)), c.required)
		if err != nil {
			return "", err
		}
		parts = append(parts, id)
	}
	return "shp|" + strings.Join(parts, "|"), nil
}

// Load reads every collection shapefile into one validated snapshot.
func (s *ShapefileSource) Load(_ context.Context) (*entity.Dataset, error) {
	ds := &entity.Dataset{}

	var err error
	if ds.Stations, err = shpStations(filepath.Join(s.Dir, shpName(CollectionStations))); err != nil {
		return nil, err
	}
	if ds.Buffers, err = shpBuffers(filepath.Join(s.Dir, shpName(CollectionBuffers))); err != nil {
		return nil, err
	}
	if ds.Clusters, err = shpClusters(filepath.Join(s.Dir, shpName(CollectionClusters))); err != nil {
		return nil, err
	}
	if ds.GridCells, err = shpGridCells(filepath.Join(s.Dir, shpName(CollectionGridCells))); err != nil {
		return nil, err
	}
	if ds.Centroids, err = shpCentroids(filepath.Join(s.Dir, shpName(CollectionCentroids))); err != nil {
		return nil, err
	}
	if ds.Roads, err = shpRoads(filepath.Join(s.Dir, shpName(CollectionRoads))); err != nil {
		return nil, err
	}
	if ds.Villages, err = shpVillages(filepath.Join(s.Dir, shpName(CollectionVillages))); err != nil {
		return nil, err
	}

	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// shpRows reads every record of a shapefile into generic records. Optional
// files may be absent.
func shpRows(path string, required bool) ([]gpkgRecord, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !required {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "shp: stat %s", path)
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "shp: open %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.ToLower(strings.TrimRight(f.String(), "\x00"))
	}

	var recs []gpkgRecord
	for reader.Next() {
		_, shape := reader.Shape()

		rec := gpkgRecord{attrs: make(map[string]string, len(names))}
		for i, name := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			rec.attrs[name] = val
		}
		rec.geom = shapeToGeom(shape)
		recs = append(recs, rec)
	}
	return recs, nil
}

// shapeToGeom converts a go-shp shape to a go-geom value with SRID 4326.
// Unsupported or null shapes map to nil geometry.
func shapeToGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}).SetSRID(4326)
	case *shp.Polygon:
		return polygonToMultiPolygon(s)
	case *shp.PolyLine:
		return polyLineToMultiLineString(s)
	default:
		return nil
	}
}

// polygonToMultiPolygon treats each ring as a separate polygon shell. The
// upstream exports carry simple single-ring cells and buffers, for which this
// is exact.
func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		ring := geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
		if err := mp.Push(ring); err != nil {
			continue
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

func polyLineToMultiLineString(pl *shp.PolyLine) geom.T {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY).SetSRID(4326)
	for i := int32(0); i < pl.NumParts; i++ {
		start := pl.Parts[i]
		end := int32(len(pl.Points))
		if i+1 < pl.NumParts {
			end = pl.Parts[i+1]
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, pl.Points[j].X, pl.Points[j].Y)
		}
		ls := geom.NewLineStringFlat(geom.XY, flat)
		if err := mls.Push(ls); err != nil {
			continue
		}
	}
	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

func shpStations(path string) ([]entity.StationLocation, error) {
	recs, err := shpRows(path, true)
	if err != nil {
		return nil, err
	}
	return stationsFromRecords(recs)
}

func shpBuffers(path string) ([]entity.CoverageBuffer, error) {
	recs, err := shpRows(path, true)
	if err != nil {
		return nil, err
	}
	return buffersFromRecords(recs)
}

func shpClusters(path string) ([]entity.SampledCluster, error) {
	recs, err := shpRows(path, true)
	if err != nil {
		return nil, err
	}
	return clustersFromRecords(recs)
}

func shpGridCells(path string) ([]entity.GridCell, error) {
	recs, err := shpRows(path, false)
	if err != nil {
		return nil, err
	}
	return gridCellsFromRecords(recs)
}

func shpCentroids(path string) ([]entity.Centroid, error) {
	recs, err := shpRows(path, false)
	if err != nil {
		return nil, err
	}
	return centroidsFromRecords(recs)
}

func shpRoads(path string) ([]entity.RoadPoint, error) {
	recs, err := shpRows(path, false)
	if err != nil {
		return nil, err
	}
	return roadsFromRecords(recs), nil
}

func shpVillages(path string) ([]entity.VillagePoint, error) {
	recs, err := shpRows(path, false)
	if err != nil {
		return nil, err
	}
	return villagesFromRecords(recs), nil
}
