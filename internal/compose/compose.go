// Package compose implements the layered map composition engine: it joins the
// entity collections, resolves per-feature styles from closed rule tables,
// partitions features into toggleable groups, synthesizes the legend, and
// assembles the ordered map document.
//
// Compose is a pure function of its inputs. It never mutates the dataset, so
// concurrent builds over the same snapshot are safe.
package compose

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/radioreach/stationmap/internal/entity"
)

// DefaultZoom is the initial zoom level centered on the anchor coordinate.
const DefaultZoom = 10

// Options controls one composition.
type Options struct {
	// Stations selects the stations to include. Empty means all. Output is
	// invariant under reordering of this set; membership is exact.
	Stations []string

	BufferRules  RuleTable
	ClusterRules RuleTable
	BaseLayers   []BaseLayer
	Zoom         int
}

// withDefaults fills zero-valued options.
func (o Options) withDefaults() Options {
	if o.BufferRules.rules == nil {
		o.BufferRules = BufferRules()
	}
	if o.ClusterRules.rules == nil {
		o.ClusterRules = ClusterRules()
	}
	if o.Zoom == 0 {
		o.Zoom = DefaultZoom
	}
	return o
}

// Compose runs the full pipeline: select -> join -> style -> group -> legend
// -> document. Any hard failure aborts the build; no partial document is
// returned.
func Compose(ds *entity.Dataset, opts Options) (*MapDocument, error) {
	opts = opts.withDefaults()

	if err := ds.Validate(); err != nil {
		return nil, err
	}

	stations, err := selectStations(ds, opts.Stations)
	if err != nil {
		return nil, err
	}
	selected := make(map[string]bool, len(stations))
	colors := make(map[string]string, len(stations))
	for _, s := range stations {
		selected[s.StationName] = true
		colors[s.StationName] = s.Color
	}

	centroids, err := JoinCentroids(ds.Centroids, ds.GridCells)
	if err != nil {
		return nil, err
	}

	b := featureBuilder{
		selected:     selected,
		colors:       colors,
		bufferRules:  opts.BufferRules,
		clusterRules: opts.ClusterRules,
		printer:      message.NewPrinter(language.English),
		legend: legendInput{
			stations:     stations,
			bufferKMs:    make(map[int]bool),
			clusterTypes: make(map[entity.ClusterType]bool),
		},
	}

	if err := b.buffers(ds.Buffers); err != nil {
		return nil, err
	}
	if err := b.clusters(ds.Clusters); err != nil {
		return nil, err
	}
	b.gridCells(ds.GridCells)
	b.centroids(centroids)
	b.roads(ds.Roads)
	b.villages(ds.Villages)

	if b.skipped > 0 {
		zap.L().Debug("skipped reference points without geometry", zap.Int("count", b.skipped))
	}

	groups := Partition(b.features, stations)

	legend, err := synthesizeLegend(b.legend, opts.BufferRules, opts.ClusterRules)
	if err != nil {
		return nil, err
	}

	return assembleDocument(stations, groups, legend, b.skipped, opts), nil
}

// selectStations filters the station collection to the selection, preserving
// collection order so the output is invariant under selection reordering. An
// unknown selected name is a hard error.
func selectStations(ds *entity.Dataset, selection []string) ([]entity.StationLocation, error) {
	if len(selection) == 0 {
		return ds.Stations, nil
	}

	want := make(map[string]bool, len(selection))
	for _, name := range selection {
		want[name] = true
	}
	for name := range want {
		if ds.Station(name) == nil {
			return nil, &entity.DataIntegrityError{
				Entity: "station",
				Key:    name,
				Reason: "selected station not in dataset",
			}
		}
	}

	var out []entity.StationLocation
	for _, s := range ds.Stations {
		if want[s.StationName] {
			out = append(out, s)
		}
	}
	return out, nil
}

// featureBuilder accumulates styled features for the selected stations and
// records the discriminant values the legend needs.
type featureBuilder struct {
	selected     map[string]bool
	colors       map[string]string
	bufferRules  RuleTable
	clusterRules RuleTable
	printer      *message.Printer

	features []Feature
	legend   legendInput
	skipped  int
}

// stationColor resolves a feature's display color. A feature referencing a
// station outside the dataset is a broken foreign key.
func (b *featureBuilder) stationColor(entityName, station string) (string, error) {
	c, ok := b.colors[station]
	if !ok {
		return "", &entity.DataIntegrityError{
			Entity: entityName,
			Key:    station,
			Reason: "references unknown station",
		}
	}
	return c, nil
}

func (b *featureBuilder) buffers(buffers []entity.CoverageBuffer) error {
	for _, buf := range buffers {
		if !b.selected[buf.StationName] {
			continue
		}
		style, err := b.bufferRules.ResolveInt(buf.BufferKM)
		if err != nil {
			return err
		}
		color := buf.Color
		if color == "" {
			c, err := b.stationColor("coverage_buffer", buf.StationName)
			if err != nil {
				return err
			}
			color = c
		}
		b.legend.bufferKMs[buf.BufferKM] = true
		b.features = append(b.features, Feature{
			StationName: buf.StationName,
			Role:        entity.RoleBuffer,
			Geometry:    buf.Geometry,
			Color:       color,
			Style:       style,
			BufferKM:    buf.BufferKM,
			Tooltip:     fmt.Sprintf("%s - %dkm range", buf.StationName, buf.BufferKM),
			Popup:       fmt.Sprintf("%s\nCoverage Range: %d km", buf.StationName, buf.BufferKM),
		})
	}
	return nil
}

func (b *featureBuilder) clusters(clusters []entity.SampledCluster) error {
	for _, cl := range clusters {
		if !b.selected[cl.StationName] {
			continue
		}
		style, err := b.clusterRules.Resolve(string(cl.ClusterType))
		if err != nil {
			return err
		}
		color, err := b.stationColor("sampled_cluster", cl.StationName)
		if err != nil {
			return err
		}
		role := entity.RoleClusterMain
		if cl.ClusterType == entity.ClusterReplacement {
			role = entity.RoleClusterReplacement
		}
		b.legend.clusterTypes[cl.ClusterType] = true
		b.features = append(b.features, Feature{
			StationName: cl.StationName,
			Role:        role,
			Geometry:    cl.Geometry,
			Color:       color,
			Style:       style,
			Tooltip: b.printer.Sprintf("Station: %s | Type: %s | Population: %d",
				cl.StationName, cl.ClusterType, cl.PopulationCount),
		})
	}
	return nil
}

// referenceStyle is the fixed style for non-discriminated reference layers.
var referenceStyle = Style{FillOpacity: 0.05, DashArray: "1,3", Weight: 1}

func (b *featureBuilder) gridCells(cells []entity.GridCell) {
	for _, c := range cells {
		if !b.selected[c.StationName] || c.Geometry == nil {
			continue
		}
		color := b.colors[c.StationName]
		b.features = append(b.features, Feature{
			StationName: c.StationName,
			Role:        entity.RoleGridReference,
			Geometry:    c.Geometry,
			Color:       color,
			Style:       referenceStyle,
			Tooltip: b.printer.Sprintf("Grid %s | Est. population 2020: %d",
				c.GridID, c.EstPopulation2020),
		})
	}
}

func (b *featureBuilder) centroids(centroids []entity.Centroid) {
	for _, c := range centroids {
		if !b.selected[c.StationName] || c.Geometry == nil {
			continue
		}
		tooltip := b.printer.Sprintf("Grid %s | Est. population 2020: %d", c.GridID, c.EstPopulation2020)
		popup := ""
		if c.NearestRoadMapsLink != "" {
			popup = "Nearest road: " + c.NearestRoadMapsLink
		}
		b.features = append(b.features, Feature{
			StationName: c.StationName,
			Role:        entity.RoleCentroidReference,
			Geometry:    c.Geometry,
			Color:       b.colors[c.StationName],
			Style:       referenceStyle,
			Tooltip:     tooltip,
			Popup:       popup,
		})
	}
}

// roads and villages absorb nil geometry per feature. A missing reference
// point is an expected state, not an error.
func (b *featureBuilder) roads(roads []entity.RoadPoint) {
	for _, r := range roads {
		if !b.selected[r.StationName] {
			continue
		}
		if r.Geometry == nil {
			b.skipped++
			continue
		}
		b.legend.hasRoadGeom = true
		b.features = append(b.features, Feature{
			StationName: r.StationName,
			Role:        entity.RoleRoadReference,
			Geometry:    r.Geometry,
			Color:       b.colors[r.StationName],
			Style:       referenceStyle,
			Tooltip:     roadTooltip(r),
		})
	}
}

func (b *featureBuilder) villages(villages []entity.VillagePoint) {
	for _, v := range villages {
		if !b.selected[v.StationName] {
			continue
		}
		if v.Geometry == nil {
			b.skipped++
			continue
		}
		b.legend.hasVillageGeom = true
		tooltip := v.Name
		if tooltip == "" {
			tooltip = "Village near grid " + v.GridID
		}
		b.features = append(b.features, Feature{
			StationName: v.StationName,
			Role:        entity.RoleVillageReference,
			Geometry:    v.Geometry,
			Color:       b.colors[v.StationName],
			Style:       referenceStyle,
			Tooltip:     tooltip,
		})
	}
}

func roadTooltip(r entity.RoadPoint) string {
	if r.Name != "" {
		return r.Name
	}
	if r.GridID != "" {
		return "Road near grid " + r.GridID
	}
	return "Nearest road"
}

// ObservedBufferKMs returns the distinct buffer radii in a dataset, useful for
// preflight checks against the rule table.
func ObservedBufferKMs(buffers []entity.CoverageBuffer) []string {
	seen := make(map[int]bool)
	var out []string
	for _, b := range buffers {
		if !seen[b.BufferKM] {
			seen[b.BufferKM] = true
			out = append(out, strconv.Itoa(b.BufferKM))
		}
	}
	return out
}
