package compose

import (
	"fmt"
	"sort"

	"github.com/radioreach/stationmap/internal/entity"
)

// LegendStation is one rendered station's legend row.
type LegendStation struct {
	StationName string `json:"station_name"`
	Color       string `json:"color"`
}

// LegendEntry describes one observed style-rule key.
type LegendEntry struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Style Style  `json:"style"`
}

// Legend is derived from what is actually rendered: one row per rendered
// station, one row per discriminant value observed in the data (not the full
// closed rule table), and reference rows only for layers with at least one
// valid geometry.
type Legend struct {
	Stations   []LegendStation `json:"stations"`
	Clusters   []LegendEntry   `json:"clusters"`
	Buffers    []LegendEntry   `json:"buffers"`
	References []string        `json:"references,omitempty"`
}

// legendInput carries the observed values the synthesizer works from.
type legendInput struct {
	stations       []entity.StationLocation
	bufferKMs      map[int]bool
	clusterTypes   map[entity.ClusterType]bool
	hasRoadGeom    bool
	hasVillageGeom bool
}

// synthesizeLegend builds the legend from observed data and the rule tables
// actually used for styling.
func synthesizeLegend(in legendInput, bufferRules, clusterRules RuleTable) (Legend, error) {
	legend := Legend{}

	for _, s := range in.stations {
		legend.Stations = append(legend.Stations, LegendStation{
			StationName: s.StationName,
			Color:       s.Color,
		})
	}

	kms := make([]int, 0, len(in.bufferKMs))
	for km := range in.bufferKMs {
		kms = append(kms, km)
	}
	sort.Ints(kms)
	for _, km := range kms {
		style, err := bufferRules.ResolveInt(km)
		if err != nil {
			return Legend{}, err
		}
		legend.Buffers = append(legend.Buffers, LegendEntry{
			Value: fmt.Sprintf("%d", km),
			Label: bufferLabel(km, kms, style),
			Style: style,
		})
	}

	types := make([]string, 0, len(in.clusterTypes))
	for ct := range in.clusterTypes {
		types = append(types, string(ct))
	}
	sort.Strings(types) // main before replacement
	for _, ct := range types {
		style, err := clusterRules.Resolve(ct)
		if err != nil {
			return Legend{}, err
		}
		legend.Clusters = append(legend.Clusters, LegendEntry{
			Value: ct,
			Label: clusterLabel(entity.ClusterType(ct)),
			Style: style,
		})
	}

	if in.hasRoadGeom {
		legend.References = append(legend.References, "Nearest road points")
	}
	if in.hasVillageGeom {
		legend.References = append(legend.References, "Nearest village points")
	}

	return legend, nil
}

// bufferLabel renders a human-readable description of one coverage ring.
func bufferLabel(km int, observed []int, style Style) string {
	line := "solid line"
	if !style.Solid() {
		line = "dashed line"
	}
	switch {
	case len(observed) > 1 && km == observed[0]:
		return fmt.Sprintf("%dkm (%s, highest opacity)", km, line)
	case len(observed) > 1 && km == observed[len(observed)-1]:
		return fmt.Sprintf("%dkm (%s, lowest opacity)", km, line)
	default:
		return fmt.Sprintf("%dkm (%s)", km, line)
	}
}

func clusterLabel(ct entity.ClusterType) string {
	switch ct {
	case entity.ClusterMain:
		return "Solid fill - Main clusters"
	case entity.ClusterReplacement:
		return "Dashed outline - Replacement clusters"
	default:
		return string(ct)
	}
}
