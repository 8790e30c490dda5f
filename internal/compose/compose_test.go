package compose

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/radioreach/stationmap/internal/entity"
)

func testPolygon(lon, lat, d float64) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{
		lon, lat,
		lon + d, lat,
		lon + d, lat + d,
		lon, lat + d,
		lon, lat,
	}, []int{10}).SetSRID(4326)
}

// scenarioDataset builds the reference scenario: two stations, four buffers
// each, 35 main + 35 replacement clusters each.
func scenarioDataset() *entity.Dataset {
	ds := &entity.Dataset{
		Stations: []entity.StationLocation{
			{StationName: "Dwanwana FM", Longitude: 32.9, Latitude: 2.1, Color: "red"},
			{StationName: "Dokolo FM", Longitude: 33.2, Latitude: 1.9, Color: "blue"},
		},
	}
	for _, s := range ds.Stations {
		for _, km := range []int{20, 25, 40, 60} {
			ds.Buffers = append(ds.Buffers, entity.CoverageBuffer{
				StationName: s.StationName,
				BufferKM:    km,
				Color:       s.Color,
				Geometry:    testPolygon(s.Longitude, s.Latitude, float64(km)/111.0),
			})
		}
		for i := 0; i < 35; i++ {
			ds.Clusters = append(ds.Clusters,
				entity.SampledCluster{
					StationName:     s.StationName,
					GridID:          fmt.Sprintf("m-%03d", i),
					ClusterType:     entity.ClusterMain,
					PopulationCount: 1000 + i,
					Geometry:        testPolygon(s.Longitude+float64(i)*0.01, s.Latitude, 0.009),
				},
				entity.SampledCluster{
					StationName:     s.StationName,
					GridID:          fmt.Sprintf("r-%03d", i),
					ClusterType:     entity.ClusterReplacement,
					PopulationCount: 900 + i,
					Geometry:        testPolygon(s.Longitude+float64(i)*0.01, s.Latitude+0.02, 0.009),
				},
			)
		}
	}
	return ds
}

func TestCompose_Scenario(t *testing.T) {
	doc, err := Compose(scenarioDataset(), Options{})
	require.NoError(t, err)

	// 2 markers, 8 buffer entries, 4 cluster groups.
	assert.Len(t, doc.Markers, 2)

	var bufferGroups, clusterGroups []DocumentGroup
	for _, g := range doc.Groups {
		switch g.Key.Role {
		case entity.RoleBuffer:
			bufferGroups = append(bufferGroups, g)
		case entity.RoleClusterMain, entity.RoleClusterReplacement:
			clusterGroups = append(clusterGroups, g)
		}
	}
	assert.Len(t, bufferGroups, 8)
	assert.Len(t, clusterGroups, 4)

	// Legend: 2 station rows, 4 buffer rows, no reference rows.
	assert.Len(t, doc.Legend.Stations, 2)
	assert.Len(t, doc.Legend.Buffers, 4)
	assert.Len(t, doc.Legend.Clusters, 2)
	assert.Empty(t, doc.Legend.References)

	assert.Equal(t, "Dwanwana FM", doc.Legend.Stations[0].StationName)
	assert.Equal(t, "red", doc.Legend.Stations[0].Color)
	assert.Equal(t, "blue", doc.Legend.Stations[1].Color)
}

func TestCompose_AnchorIsMeanOfStations(t *testing.T) {
	doc, err := Compose(scenarioDataset(), Options{})
	require.NoError(t, err)

	assert.InDelta(t, (32.9+33.2)/2, doc.Anchor.Lon, 1e-9)
	assert.InDelta(t, (2.1+1.9)/2, doc.Anchor.Lat, 1e-9)
	assert.Equal(t, DefaultZoom, doc.Zoom)
}

func TestCompose_BufferZOrder(t *testing.T) {
	doc, err := Compose(scenarioDataset(), Options{})
	require.NoError(t, err)

	// Per station, the 20km entry must come after the 60km entry so it paints
	// on top.
	pos := map[string]map[int]int{}
	for i, g := range doc.Groups {
		if g.Key.Role != entity.RoleBuffer {
			continue
		}
		if pos[g.Key.StationName] == nil {
			pos[g.Key.StationName] = map[int]int{}
		}
		pos[g.Key.StationName][g.BufferKM] = i
	}
	for station, byKM := range pos {
		assert.Greater(t, byKM[20], byKM[60], "station %s: 20km must stack above 60km", station)
		assert.Greater(t, byKM[25], byKM[40], "station %s: 25km must stack above 40km", station)
	}
}

func TestCompose_MainBeforeReplacement(t *testing.T) {
	doc, err := Compose(scenarioDataset(), Options{})
	require.NoError(t, err)

	lastBuffer, firstCluster := -1, -1
	mainPos := map[string]int{}
	replPos := map[string]int{}
	for i, g := range doc.Groups {
		switch g.Key.Role {
		case entity.RoleBuffer:
			lastBuffer = i
		case entity.RoleClusterMain:
			mainPos[g.Key.StationName] = i
			if firstCluster == -1 {
				firstCluster = i
			}
		case entity.RoleClusterReplacement:
			replPos[g.Key.StationName] = i
			if firstCluster == -1 {
				firstCluster = i
			}
		}
	}
	assert.Greater(t, firstCluster, lastBuffer, "cluster groups come after all buffers")
	for station, m := range mainPos {
		assert.Less(t, m, replPos[station], "station %s: main before replacement", station)
	}
}

func TestCompose_SelectionFilter(t *testing.T) {
	ds := scenarioDataset()
	ds.Stations = append(ds.Stations, entity.StationLocation{
		StationName: "Radio Apac", Longitude: 32.5, Latitude: 1.98, Color: "green",
	})
	ds.Buffers = append(ds.Buffers, entity.CoverageBuffer{
		StationName: "Radio Apac", BufferKM: 20, Color: "green",
		Geometry: testPolygon(32.5, 1.98, 0.18),
	})

	full, err := Compose(ds, Options{})
	require.NoError(t, err)

	sub, err := Compose(ds, Options{Stations: []string{"Radio Apac", "Dwanwana FM"}})
	require.NoError(t, err)

	for _, g := range sub.Groups {
		assert.NotEqual(t, "Dokolo FM", g.Key.StationName, "unselected station must not produce groups")
	}
	assert.Len(t, sub.Markers, 2)

	// Feature counts match the filtered full build.
	count := func(doc *MapDocument, station string) int {
		n := 0
		for _, g := range doc.Groups {
			if g.Key.StationName == station {
				n += len(g.Features)
			}
		}
		return n
	}
	for _, station := range []string{"Dwanwana FM", "Radio Apac"} {
		assert.Equal(t, count(full, station), count(sub, station), station)
	}
}

func TestCompose_SelectionOrderInvariant(t *testing.T) {
	ds := scenarioDataset()

	a, err := Compose(ds, Options{Stations: []string{"Dokolo FM", "Dwanwana FM"}})
	require.NoError(t, err)
	b, err := Compose(ds, Options{Stations: []string{"Dwanwana FM", "Dokolo FM"}})
	require.NoError(t, err)

	require.Equal(t, len(a.Groups), len(b.Groups))
	for i := range a.Groups {
		assert.Equal(t, a.Groups[i].Key, b.Groups[i].Key)
		assert.Equal(t, a.Groups[i].BufferKM, b.Groups[i].BufferKM)
	}
	assert.Equal(t, a.Markers, b.Markers)
}

func TestCompose_UnknownSelectedStation(t *testing.T) {
	_, err := Compose(scenarioDataset(), Options{Stations: []string{"Radio Lira"}})
	require.Error(t, err)
	assert.True(t, entity.IsDataIntegrity(err))
	assert.Contains(t, err.Error(), "Radio Lira")
}

func TestCompose_UnmappedBufferAborts(t *testing.T) {
	ds := scenarioDataset()
	ds.Buffers = append(ds.Buffers, entity.CoverageBuffer{
		StationName: "Dokolo FM", BufferKM: 80, Color: "blue",
		Geometry: testPolygon(33.2, 1.9, 0.7),
	})

	doc, err := Compose(ds, Options{})
	require.Error(t, err)
	assert.Nil(t, doc, "no partial document on failure")
	assert.True(t, IsStyleResolution(err))
	assert.Contains(t, err.Error(), `"80"`)
}

func TestCompose_GroupCompleteness(t *testing.T) {
	ds := scenarioDataset()
	doc, err := Compose(ds, Options{})
	require.NoError(t, err)

	total := 0
	for _, g := range doc.Groups {
		total += len(g.Features)
	}
	assert.Equal(t, len(ds.Buffers)+len(ds.Clusters), total,
		"every input feature appears exactly once across all groups")
}

func TestCompose_SoftSkipsNilReferenceGeometry(t *testing.T) {
	ds := scenarioDataset()
	ds.Villages = []entity.VillagePoint{
		{StationName: "Dokolo FM", GridID: "c-001", Name: "Agwata"},                               // nil geometry
		{StationName: "Dokolo FM", GridID: "c-002", Name: "Adok", Geometry: testPoint(33.3, 1.8)}, // valid
	}
	ds.Roads = []entity.RoadPoint{
		{StationName: "Dwanwana FM", GridID: "c-003"}, // nil geometry
	}

	doc, err := Compose(ds, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, doc.SkippedReferences)

	var villages int
	for _, g := range doc.Groups {
		if g.Key.Role == entity.RoleVillageReference {
			villages += len(g.Features)
		}
	}
	assert.Equal(t, 1, villages)
	assert.Contains(t, doc.Legend.References, "Nearest village points")
	assert.NotContains(t, doc.Legend.References, "Nearest road points",
		"road layer with only nil geometry gets no legend entry")
}

func TestCompose_LayerControl(t *testing.T) {
	doc, err := Compose(scenarioDataset(), Options{})
	require.NoError(t, err)

	assert.False(t, doc.LayerControl.Collapsed)
	// 2 buffer toggles + 4 cluster toggles.
	require.Len(t, doc.LayerControl.Entries, 6)
	for _, e := range doc.LayerControl.Entries {
		assert.True(t, e.Visible)
	}
	assert.Equal(t, "Ranges Dwanwana FM", doc.LayerControl.Entries[0].Name)
}

func TestCompose_DocumentSerializable(t *testing.T) {
	doc, err := Compose(scenarioDataset(), Options{})
	require.NoError(t, err)

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"build_id"`)
	assert.Contains(t, string(raw), `"Polygon"`)

	var round map[string]any
	require.NoError(t, json.Unmarshal(raw, &round))
}

func TestCompose_PopulationFormatting(t *testing.T) {
	ds := scenarioDataset()
	ds.Clusters[0].PopulationCount = 12741

	doc, err := Compose(ds, Options{Stations: []string{"Dwanwana FM"}})
	require.NoError(t, err)

	var found bool
	for _, g := range doc.Groups {
		for _, f := range g.Features {
			if f.Role == entity.RoleClusterMain && strings.Contains(f.Tooltip, "12,741") {
				found = true
			}
		}
	}
	assert.True(t, found, "population counts are grouped with thousands separators")
}

func TestObservedBufferKMs(t *testing.T) {
	buffers := []entity.CoverageBuffer{
		{StationName: "Dokolo FM", BufferKM: 60},
		{StationName: "Dokolo FM", BufferKM: 20},
		{StationName: "Dwanwana FM", BufferKM: 60},
		{StationName: "Dwanwana FM", BufferKM: 25},
	}

	// Distinct radii in first-seen order.
	assert.Equal(t, []string{"60", "20", "25"}, ObservedBufferKMs(buffers))
	assert.Nil(t, ObservedBufferKMs(nil))
}
