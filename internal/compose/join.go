package compose

import (
	"fmt"

	"github.com/radioreach/stationmap/internal/entity"
)

// JoinCentroids left-joins centroids against grid cells on (station_name,
// grid_id), attaching the borrowed cluster_type, est_population_2020, and
// nearest_road_maps_link attributes. Cardinality is preserved: one output
// centroid per input centroid, in input order. A centroid with no matching
// cell keeps its own fields with the borrowed attributes cleared, so the join
// is idempotent. A duplicate grid-cell key is a DataIntegrityError.
func JoinCentroids(centroids []entity.Centroid, cells []entity.GridCell) ([]entity.Centroid, error) {
	idx := make(map[entity.GridKey]entity.GridCell, len(cells))
	for _, c := range cells {
		k := entity.GridKey{StationName: c.StationName, GridID: c.GridID}
		if _, dup := idx[k]; dup {
			return nil, &entity.DataIntegrityError{
				Entity: "grid_cell",
				Key:    fmt.Sprintf("%s/%s", k.StationName, k.GridID),
				Reason: "duplicate (station_name, grid_id) in join input",
			}
		}
		idx[k] = c
	}

	out := make([]entity.Centroid, len(centroids))
	for i, c := range centroids {
		joined := c
		if cell, ok := idx[entity.GridKey{StationName: c.StationName, GridID: c.GridID}]; ok {
			joined.ClusterType = cell.ClusterType
			joined.EstPopulation2020 = cell.EstPopulation2020
			joined.NearestRoadMapsLink = cell.NearestRoadMapsLink
		} else {
			joined.ClusterType = ""
			joined.EstPopulation2020 = 0
			joined.NearestRoadMapsLink = ""
		}
		out[i] = joined
	}
	return out, nil
}
