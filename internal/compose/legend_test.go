package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radioreach/stationmap/internal/entity"
)

func TestSynthesizeLegend_ObservedValuesOnly(t *testing.T) {
	in := legendInput{
		stations: []entity.StationLocation{
			{StationName: "Dokolo FM", Color: "blue"},
		},
		bufferKMs:    map[int]bool{20: true, 60: true},
		clusterTypes: map[entity.ClusterType]bool{entity.ClusterMain: true},
	}

	legend, err := synthesizeLegend(in, BufferRules(), ClusterRules())
	require.NoError(t, err)

	// Only the observed subset of the closed tables, not all four radii.
	require.Len(t, legend.Buffers, 2)
	assert.Equal(t, "20", legend.Buffers[0].Value)
	assert.Equal(t, "60", legend.Buffers[1].Value)

	require.Len(t, legend.Clusters, 1)
	assert.Equal(t, "main", legend.Clusters[0].Value)
}

func TestSynthesizeLegend_Labels(t *testing.T) {
	in := legendInput{
		bufferKMs: map[int]bool{20: true, 25: true, 40: true, 60: true},
		clusterTypes: map[entity.ClusterType]bool{
			entity.ClusterMain:        true,
			entity.ClusterReplacement: true,
		},
	}

	legend, err := synthesizeLegend(in, BufferRules(), ClusterRules())
	require.NoError(t, err)

	assert.Equal(t, "20km (solid line, highest opacity)", legend.Buffers[0].Label)
	assert.Equal(t, "25km (dashed line)", legend.Buffers[1].Label)
	assert.Equal(t, "60km (dashed line, lowest opacity)", legend.Buffers[3].Label)

	assert.Equal(t, "Solid fill - Main clusters", legend.Clusters[0].Label)
	assert.Equal(t, "Dashed outline - Replacement clusters", legend.Clusters[1].Label)
}

func TestSynthesizeLegend_ConditionalReferences(t *testing.T) {
	in := legendInput{hasVillageGeom: true}

	legend, err := synthesizeLegend(in, BufferRules(), ClusterRules())
	require.NoError(t, err)
	assert.Equal(t, []string{"Nearest village points"}, legend.References)

	in = legendInput{}
	legend, err = synthesizeLegend(in, BufferRules(), ClusterRules())
	require.NoError(t, err)
	assert.Empty(t, legend.References)
}

func TestSynthesizeLegend_StaleTableFails(t *testing.T) {
	in := legendInput{bufferKMs: map[int]bool{30: true}}

	_, err := synthesizeLegend(in, BufferRules(), ClusterRules())
	require.Error(t, err)
	assert.True(t, IsStyleResolution(err))
}
