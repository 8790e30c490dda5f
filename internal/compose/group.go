package compose

import (
	"encoding/json"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/radioreach/stationmap/internal/entity"
)

// GroupKey is the composite identity of a feature group. Keeping station and
// role as separate fields avoids the collision and parsing ambiguity of a
// concatenated label.
type GroupKey struct {
	StationName string      `json:"station_name"`
	Role        entity.Role `json:"role"`
}

// Feature is one styled, render-ready map feature.
type Feature struct {
	StationName string      `json:"station_name"`
	Role        entity.Role `json:"role"`
	Geometry    geom.T      `json:"-"`
	Color       string      `json:"color"`
	Style       Style       `json:"style"`
	Tooltip     string      `json:"tooltip,omitempty"`
	Popup       string      `json:"popup,omitempty"`

	// BufferKM is set only for buffer features; it drives document z-ordering.
	BufferKM int `json:"buffer_km,omitempty"`
}

// featureJSON mirrors Feature with the geometry encoded as GeoJSON so the
// document stays fully serializable.
type featureJSON struct {
	StationName string          `json:"station_name"`
	Role        entity.Role     `json:"role"`
	Geometry    json.RawMessage `json:"geometry,omitempty"`
	Color       string          `json:"color"`
	Style       Style           `json:"style"`
	Tooltip     string          `json:"tooltip,omitempty"`
	Popup       string          `json:"popup,omitempty"`
	BufferKM    int             `json:"buffer_km,omitempty"`
}

// MarshalJSON encodes the feature with its geometry as inline GeoJSON.
func (f Feature) MarshalJSON() ([]byte, error) {
	out := featureJSON{
		StationName: f.StationName,
		Role:        f.Role,
		Color:       f.Color,
		Style:       f.Style,
		Tooltip:     f.Tooltip,
		Popup:       f.Popup,
		BufferKM:    f.BufferKM,
	}
	if f.Geometry != nil {
		raw, err := geojson.Marshal(f.Geometry)
		if err != nil {
			return nil, err
		}
		out.Geometry = raw
	}
	return json.Marshal(out)
}

// FeatureGroup is a named, independently toggleable bundle of features. It
// carries no geometry of its own.
type FeatureGroup struct {
	Key      GroupKey  `json:"key"`
	Name     string    `json:"name"`
	Features []Feature `json:"features"`
}

// GroupName returns the display name for a (station, role) group, matching
// the layer-control labels end users see.
func GroupName(station string, role entity.Role) string {
	switch role {
	case entity.RoleBuffer:
		return fmt.Sprintf("Ranges %s", station)
	case entity.RoleClusterMain:
		return fmt.Sprintf("Main Clusters - %s", station)
	case entity.RoleClusterReplacement:
		return fmt.Sprintf("Replacement Clusters - %s", station)
	case entity.RoleGridReference:
		return fmt.Sprintf("Grid Cells - %s", station)
	case entity.RoleCentroidReference:
		return fmt.Sprintf("Grid Centroids - %s", station)
	case entity.RoleRoadReference:
		return fmt.Sprintf("Nearest Roads - %s", station)
	case entity.RoleVillageReference:
		return fmt.Sprintf("Nearest Villages - %s", station)
	default:
		return fmt.Sprintf("%s - %s", role, station)
	}
}

// roleOrder is the within-station ordering of groups.
var roleOrder = []entity.Role{
	entity.RoleBuffer,
	entity.RoleClusterMain,
	entity.RoleClusterReplacement,
	entity.RoleGridReference,
	entity.RoleCentroidReference,
	entity.RoleRoadReference,
	entity.RoleVillageReference,
}

// Partition splits features into groups keyed by (station, role). Group order
// is stable and repeatable: stations in the order given (the StationLocation
// collection order), roles in roleOrder within each station. Every feature
// lands in exactly one group; empty groups are not emitted.
func Partition(features []Feature, stations []entity.StationLocation) []FeatureGroup {
	byKey := make(map[GroupKey][]Feature)
	for _, f := range features {
		k := GroupKey{StationName: f.StationName, Role: f.Role}
		byKey[k] = append(byKey[k], f)
	}

	var groups []FeatureGroup
	for _, s := range stations {
		for _, role := range roleOrder {
			k := GroupKey{StationName: s.StationName, Role: role}
			fs, ok := byKey[k]
			if !ok {
				continue
			}
			groups = append(groups, FeatureGroup{
				Key:      k,
				Name:     GroupName(s.StationName, role),
				Features: fs,
			})
		}
	}
	return groups
}
