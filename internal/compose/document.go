package compose

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/radioreach/stationmap/internal/entity"
)

// Coordinate is a WGS84 longitude/latitude pair.
type Coordinate struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// BaseLayer is one selectable tile source. Layers are peers, not fallbacks.
type BaseLayer struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Attribution string `json:"attribution,omitempty"`
	Default     bool   `json:"default,omitempty"`
}

// DefaultBaseLayers returns the standard base-layer choices: OpenStreetMap as
// the default plus satellite imagery as a peer.
func DefaultBaseLayers() []BaseLayer {
	return []BaseLayer{
		{
			Name:        "OpenStreetMap",
			URL:         "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
			Attribution: "© OpenStreetMap contributors",
			Default:     true,
		},
		{
			Name:        "Esri WorldImagery",
			URL:         "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
			Attribution: "Tiles © Esri",
		},
	}
}

// Marker is an always-visible station anchor. Markers sit outside every
// toggleable group so layer toggling can never hide a station.
type Marker struct {
	StationName string     `json:"station_name"`
	Coordinate  Coordinate `json:"coordinate"`
	Color       string     `json:"color"`
	Icon        string     `json:"icon"`
	Tooltip     string     `json:"tooltip,omitempty"`
	Popup       string     `json:"popup,omitempty"`
}

// DocumentGroup is one entry in the document's ordered stacking list. Buffer
// groups are split per radius so z-order is explicit; entries belonging to the
// same toggleable layer share a Name.
type DocumentGroup struct {
	Key      GroupKey  `json:"key"`
	Name     string    `json:"name"`
	BufferKM int       `json:"buffer_km,omitempty"`
	Features []Feature `json:"features"`
}

// LayerControlEntry is one toggle in the layer-control manifest.
type LayerControlEntry struct {
	Name    string `json:"name"`
	Visible bool   `json:"visible"`
}

// LayerControl is the manifest the rendering backend uses for visibility
// toggling. Default state is everything visible, control expanded.
type LayerControl struct {
	Collapsed bool                `json:"collapsed"`
	Entries   []LayerControlEntry `json:"entries"`
}

// MapDocument is the fully serializable output of one composition. It holds
// no live handles; a backend can render it in another process.
type MapDocument struct {
	BuildID           string          `json:"build_id"`
	GeneratedAt       time.Time       `json:"generated_at"`
	Anchor            Coordinate      `json:"anchor"`
	Zoom              int             `json:"zoom"`
	BaseLayers        []BaseLayer     `json:"base_layers"`
	Groups            []DocumentGroup `json:"groups"`
	Markers           []Marker        `json:"markers"`
	Legend            Legend          `json:"legend"`
	LayerControl      LayerControl    `json:"layer_control"`
	SkippedReferences int             `json:"skipped_references,omitempty"`
}

// GroupNames returns document group names in stacking order, without
// duplicates.
func (d *MapDocument) GroupNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, g := range d.Groups {
		if !seen[g.Name] {
			seen[g.Name] = true
			names = append(names, g.Name)
		}
	}
	return names
}

// anchorFor returns the arithmetic mean of the rendered station coordinates.
func anchorFor(stations []entity.StationLocation) Coordinate {
	if len(stations) == 0 {
		return Coordinate{}
	}
	var lon, lat float64
	for _, s := range stations {
		lon += s.Longitude
		lat += s.Latitude
	}
	n := float64(len(stations))
	return Coordinate{Lon: lon / n, Lat: lat / n}
}

// assembleDocument orders groups for correct visual stacking and attaches
// markers, legend, and the layer-control manifest.
//
// Buffer entries are inserted largest radius first so the smaller, more
// opaque rings paint on top; reversing this order would hide the
// highest-confidence range behind lower-confidence ones. Cluster groups
// follow (main before replacement per station), then reference groups.
func assembleDocument(stations []entity.StationLocation, groups []FeatureGroup, legend Legend, skipped int, opts Options) *MapDocument {
	doc := &MapDocument{
		BuildID:           uuid.NewString(),
		GeneratedAt:       time.Now().UTC(),
		Anchor:            anchorFor(stations),
		Zoom:              opts.Zoom,
		BaseLayers:        opts.BaseLayers,
		Legend:            legend,
		SkippedReferences: skipped,
	}
	if len(doc.BaseLayers) == 0 {
		doc.BaseLayers = DefaultBaseLayers()
	}

	// Buffers: split per (station, radius), radii descending, stations in
	// collection order within each radius. Entries for one station share the
	// group name so they toggle as one layer.
	type bufKey struct {
		station string
		km      int
	}
	buffers := make(map[bufKey][]Feature)
	kmSet := make(map[int]bool)
	for _, g := range groups {
		if g.Key.Role != entity.RoleBuffer {
			continue
		}
		for _, f := range g.Features {
			k := bufKey{station: f.StationName, km: f.BufferKM}
			buffers[k] = append(buffers[k], f)
			kmSet[f.BufferKM] = true
		}
	}
	kms := make([]int, 0, len(kmSet))
	for km := range kmSet {
		kms = append(kms, km)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(kms)))
	for _, km := range kms {
		for _, s := range stations {
			fs, ok := buffers[bufKey{station: s.StationName, km: km}]
			if !ok {
				continue
			}
			doc.Groups = append(doc.Groups, DocumentGroup{
				Key:      GroupKey{StationName: s.StationName, Role: entity.RoleBuffer},
				Name:     GroupName(s.StationName, entity.RoleBuffer),
				BufferKM: km,
				Features: fs,
			})
		}
	}

	// Cluster and reference groups keep Partition's order: stations in
	// collection order, main before replacement, references last.
	for _, g := range groups {
		if g.Key.Role == entity.RoleBuffer {
			continue
		}
		doc.Groups = append(doc.Groups, DocumentGroup{
			Key:      g.Key,
			Name:     g.Name,
			Features: g.Features,
		})
	}

	// Station markers, one per rendered station, outside every group.
	for _, s := range stations {
		doc.Markers = append(doc.Markers, Marker{
			StationName: s.StationName,
			Coordinate:  Coordinate{Lon: s.Longitude, Lat: s.Latitude},
			Color:       s.Color,
			Icon:        "radio",
			Tooltip:     "Click to see " + s.StationName + " location",
			Popup:       s.StationName,
		})
	}

	doc.LayerControl = LayerControl{Collapsed: false}
	for _, name := range doc.GroupNames() {
		doc.LayerControl.Entries = append(doc.LayerControl.Entries, LayerControlEntry{
			Name:    name,
			Visible: true,
		})
	}

	return doc
}
