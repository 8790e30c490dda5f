package entity

import (
	"errors"
	"fmt"
)

// DataIntegrityError reports a hard input-data fault: a duplicate unique key,
// a missing required attribute, or malformed geometry. It is never recovered
// locally; the build aborts and the error bubbles to the caller.
type DataIntegrityError struct {
	Entity string // entity type, e.g. "grid_cell"
	Key    string // offending key or identifier
	Reason string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity: %s %q: %s", e.Entity, e.Key, e.Reason)
}

// IsDataIntegrity reports whether any error in the chain is a DataIntegrityError.
func IsDataIntegrity(err error) bool {
	var die *DataIntegrityError
	return errors.As(err, &die)
}

// Validate checks the dataset's unique-key invariants: station names unique,
// (station_name, grid_id) unique for grid cells and centroids, and grid_id
// unique per station within clusters.
func (d *Dataset) Validate() error {
	stations := make(map[string]bool, len(d.Stations))
	for _, s := range d.Stations {
		if s.StationName == "" {
			return &DataIntegrityError{Entity: "station", Key: "", Reason: "empty station_name"}
		}
		if stations[s.StationName] {
			return &DataIntegrityError{Entity: "station", Key: s.StationName, Reason: "duplicate station_name"}
		}
		stations[s.StationName] = true
	}

	cells := make(map[GridKey]bool, len(d.GridCells))
	for _, c := range d.GridCells {
		k := GridKey{StationName: c.StationName, GridID: c.GridID}
		if cells[k] {
			return &DataIntegrityError{
				Entity: "grid_cell",
				Key:    fmt.Sprintf("%s/%s", k.StationName, k.GridID),
				Reason: "duplicate (station_name, grid_id)",
			}
		}
		cells[k] = true
	}

	centroids := make(map[GridKey]bool, len(d.Centroids))
	for _, c := range d.Centroids {
		k := GridKey{StationName: c.StationName, GridID: c.GridID}
		if centroids[k] {
			return &DataIntegrityError{
				Entity: "centroid",
				Key:    fmt.Sprintf("%s/%s", k.StationName, k.GridID),
				Reason: "duplicate (station_name, grid_id)",
			}
		}
		centroids[k] = true
	}

	clusters := make(map[GridKey]bool, len(d.Clusters))
	for _, c := range d.Clusters {
		switch c.ClusterType {
		case ClusterMain, ClusterReplacement:
		default:
			return &DataIntegrityError{
				Entity: "sampled_cluster",
				Key:    fmt.Sprintf("%s/%s", c.StationName, c.GridID),
				Reason: fmt.Sprintf("unknown cluster_type %q", c.ClusterType),
			}
		}
		if c.GridID == "" {
			continue
		}
		k := GridKey{StationName: c.StationName, GridID: c.GridID}
		if clusters[k] {
			return &DataIntegrityError{
				Entity: "sampled_cluster",
				Key:    fmt.Sprintf("%s/%s", k.StationName, k.GridID),
				Reason: "duplicate grid_id within station",
			}
		}
		clusters[k] = true
	}

	return nil
}
