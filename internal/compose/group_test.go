package compose

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radioreach/stationmap/internal/entity"
)

func TestPartition_StableOrder(t *testing.T) {
	stations := []entity.StationLocation{
		{StationName: "Dwanwana FM"},
		{StationName: "Dokolo FM"},
	}
	features := []Feature{
		{StationName: "Dokolo FM", Role: entity.RoleClusterReplacement},
		{StationName: "Dwanwana FM", Role: entity.RoleBuffer, BufferKM: 20},
		{StationName: "Dokolo FM", Role: entity.RoleClusterMain},
		{StationName: "Dwanwana FM", Role: entity.RoleBuffer, BufferKM: 60},
	}

	groups := Partition(features, stations)
	require.Len(t, groups, 3)

	assert.Equal(t, GroupKey{StationName: "Dwanwana FM", Role: entity.RoleBuffer}, groups[0].Key)
	assert.Equal(t, GroupKey{StationName: "Dokolo FM", Role: entity.RoleClusterMain}, groups[1].Key)
	assert.Equal(t, GroupKey{StationName: "Dokolo FM", Role: entity.RoleClusterReplacement}, groups[2].Key)
	assert.Len(t, groups[0].Features, 2)
}

func TestPartition_Completeness(t *testing.T) {
	stations := []entity.StationLocation{{StationName: "Dokolo FM"}}
	features := []Feature{
		{StationName: "Dokolo FM", Role: entity.RoleBuffer},
		{StationName: "Dokolo FM", Role: entity.RoleGridReference},
		{StationName: "Dokolo FM", Role: entity.RoleVillageReference},
	}

	groups := Partition(features, stations)

	total := 0
	for _, g := range groups {
		total += len(g.Features)
	}
	assert.Equal(t, len(features), total)
}

func TestGroupName(t *testing.T) {
	assert.Equal(t, "Ranges Dokolo FM", GroupName("Dokolo FM", entity.RoleBuffer))
	assert.Equal(t, "Main Clusters - Dokolo FM", GroupName("Dokolo FM", entity.RoleClusterMain))
	assert.Equal(t, "Replacement Clusters - Dokolo FM", GroupName("Dokolo FM", entity.RoleClusterReplacement))
	assert.Equal(t, "Nearest Villages - Dokolo FM", GroupName("Dokolo FM", entity.RoleVillageReference))
}

func TestFeature_MarshalJSON_GeometryAsGeoJSON(t *testing.T) {
	f := Feature{
		StationName: "Dokolo FM",
		Role:        entity.RoleCentroidReference,
		Geometry:    testPoint(33.18, 1.92),
		Color:       "blue",
		Style:       Style{FillOpacity: 0.5, Weight: 2},
		Tooltip:     "Grid c-001",
	}

	raw, err := json.Marshal(f)
	require.NoError(t, err)

	var decoded struct {
		Geometry struct {
			Type        string    `json:"type"`
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Style Style `json:"style"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "Point", decoded.Geometry.Type)
	assert.InDelta(t, 33.18, decoded.Geometry.Coordinates[0], 1e-9)
	assert.Equal(t, 0.5, decoded.Style.FillOpacity)
}

func TestFeature_MarshalJSON_NilGeometry(t *testing.T) {
	f := Feature{StationName: "Dokolo FM", Role: entity.RoleRoadReference}

	raw, err := json.Marshal(f)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"geometry"`)
}
