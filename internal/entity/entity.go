// Package entity defines the typed geospatial collections the composition
// engine consumes. All geometries are WGS84 (EPSG:4326) longitude/latitude.
// Entities are immutable after load; derived values are always new copies.
package entity

import (
	"github.com/twpayne/go-geom"
)

// ClusterType discriminates main sampling clusters from their replacements.
type ClusterType string

const (
	ClusterMain        ClusterType = "main"
	ClusterReplacement ClusterType = "replacement"
)

// Role identifies which toggleable layer a feature belongs to.
type Role string

const (
	RoleBuffer             Role = "buffer"
	RoleClusterMain        Role = "cluster_main"
	RoleClusterReplacement Role = "cluster_replacement"
	RoleGridReference      Role = "grid_reference"
	RoleCentroidReference  Role = "centroid_reference"
	RoleRoadReference      Role = "road_reference"
	RoleVillageReference   Role = "village_reference"
)

// StationLocation is a radio station broadcast point. One per station;
// StationName is the unique identifier across all collections.
type StationLocation struct {
	StationName string  `json:"station_name"`
	Longitude   float64 `json:"longitude"`
	Latitude    float64 `json:"latitude"`
	Color       string  `json:"color"`
}

// CoverageBuffer is an assumed coverage polygon at a fixed radius from one
// station. BufferKM is the style discriminant; the known radii are 20, 25,
// 40, and 60 km.
type CoverageBuffer struct {
	StationName string `json:"station_name"`
	BufferKM    int    `json:"buffer_km"`
	Color       string `json:"original_color"`
	Geometry    geom.T `json:"-"`
}

// SampledCluster is a population-weighted sampling unit selected by the
// external sampling process (35 main + 35 replacement per station).
type SampledCluster struct {
	StationName     string      `json:"station_name"`
	GridID          string      `json:"grid_id"`
	ClusterType     ClusterType `json:"cluster_type"`
	PopulationCount int         `json:"population_count"`
	CentroidLon     float64     `json:"centroid_lon,omitempty"`
	CentroidLat     float64     `json:"centroid_lat,omitempty"`
	Geometry        geom.T      `json:"-"`
}

// GridCell is a 1x1 km enumeration grid cell. (StationName, GridID) is unique.
type GridCell struct {
	StationName         string      `json:"station_name"`
	GridID              string      `json:"grid_id"`
	ClusterType         ClusterType `json:"cluster_type"`
	EstPopulation2020   int         `json:"est_population_2020"`
	NearestRoadMapsLink string      `json:"nearest_road_maps_link,omitempty"`
	Geometry            geom.T      `json:"-"`
}

// Centroid is the center point of one grid cell. The borrowed grid-cell
// attributes are empty until JoinCentroids attaches them.
type Centroid struct {
	StationName string `json:"station_name"`
	GridID      string `json:"grid_id"`
	Geometry    geom.T `json:"-"`

	// Borrowed from GridCell by the join stage.
	ClusterType         ClusterType `json:"cluster_type,omitempty"`
	EstPopulation2020   int         `json:"est_population_2020,omitempty"`
	NearestRoadMapsLink string      `json:"nearest_road_maps_link,omitempty"`
}

// RoadPoint is the nearest-road reference point for a grid cell. Geometry may
// legitimately be nil; such records are skipped during rendering.
type RoadPoint struct {
	StationName string `json:"station_name"`
	GridID      string `json:"grid_id,omitempty"`
	Name        string `json:"name,omitempty"`
	Geometry    geom.T `json:"-"`
}

// VillagePoint is the nearest-village reference point for a grid cell.
// Geometry may legitimately be nil.
type VillagePoint struct {
	StationName string `json:"station_name"`
	GridID      string `json:"grid_id,omitempty"`
	Name        string `json:"name,omitempty"`
	Geometry    geom.T `json:"-"`
}

// GridKey is the composite key joining centroids, grid cells, and reference
// points within a station.
type GridKey struct {
	StationName string `json:"station_name"`
	GridID      string `json:"grid_id"`
}

// Dataset is one complete, immutable snapshot of all entity collections for a
// rendering session. The grid, centroid, road, and village collections are
// optional and may be empty.
type Dataset struct {
	Stations  []StationLocation `json:"stations"`
	Buffers   []CoverageBuffer  `json:"buffers"`
	Clusters  []SampledCluster  `json:"clusters"`
	GridCells []GridCell        `json:"grid_cells,omitempty"`
	Centroids []Centroid        `json:"centroids,omitempty"`
	Roads     []RoadPoint       `json:"roads,omitempty"`
	Villages  []VillagePoint    `json:"villages,omitempty"`
}

// Station returns the station with the given name, or nil.
func (d *Dataset) Station(name string) *StationLocation {
	for i := range d.Stations {
		if d.Stations[i].StationName == name {
			return &d.Stations[i]
		}
	}
	return nil
}

// StationNames returns station names in collection order.
func (d *Dataset) StationNames() []string {
	names := make([]string, len(d.Stations))
	for i, s := range d.Stations {
		names[i] = s.StationName
	}
	return names
}
