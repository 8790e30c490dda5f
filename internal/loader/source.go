// Package loader supplies complete entity snapshots from GeoPackage,
// shapefile, or PostGIS sources, with an explicit load-once cache keyed by
// source identity.
package loader

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"

	"github.com/radioreach/stationmap/internal/entity"
)

// Collection names shared by all sources. The first three are required; the
// rest are optional reference layers.
const (
	CollectionStations  = "station_loc"
	CollectionBuffers   = "station_buffers"
	CollectionClusters  = "sampled_clusters"
	CollectionGridCells = "grid_cells"
	CollectionCentroids = "grid_centroids"
	CollectionRoads     = "nearest_roads"
	CollectionVillages  = "nearest_villages"
)

// Source loads one complete, validated dataset snapshot. Implementations
// never hand out partial or record-by-record working copies.
type Source interface {
	// Load reads every collection and returns the snapshot.
	Load(ctx context.Context) (*entity.Dataset, error)

	// Identity returns a stable cache key for the source's current content,
	// changing whenever the underlying data changes.
	Identity() (string, error)
}

// fileIdentity derives an identity fragment from a file's path, size, and
// modification time. Missing optional files contribute a fixed marker so the
// identity stays stable.
func fileIdentity(path string, required bool) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return path + ":absent", nil
		}
		return "", eris.Wrapf(err, "loader: stat %s", path)
	}
	return fmt.Sprintf("%s:%d:%d", path, info.Size(), info.ModTime().UnixNano()), nil
}
