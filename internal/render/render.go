// Package render is the boundary to rendering backends: it serializes
// composed map documents to JSON and per-group GeoJSON artifacts. It is only
// invoked when a caller explicitly asks for an artifact; composition itself
// has no side effects.
package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/radioreach/stationmap/internal/compose"
)

// WriteDocument writes the full map document as indented JSON.
func WriteDocument(path string, doc *compose.MapDocument) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return eris.Wrap(err, "render: marshal document")
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return eris.Wrapf(err, "render: write %s", path)
	}
	zap.L().Info("wrote map document", zap.String("path", path), zap.Int("bytes", len(raw)))
	return nil
}

// WriteGroupGeoJSON writes one GeoJSON FeatureCollection per document group
// into dir. File names are derived from group names plus the buffer radius
// where groups share a toggle name.
func WriteGroupGeoJSON(dir string, doc *compose.MapDocument) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "render: create %s", dir)
	}

	for _, group := range doc.Groups {
		fc := geojson.FeatureCollection{}
		for _, f := range group.Features {
			if f.Geometry == nil {
				continue
			}
			props := map[string]any{
				"station_name": f.StationName,
				"role":         string(f.Role),
				"color":        f.Color,
				"fill_opacity": f.Style.FillOpacity,
				"weight":       f.Style.Weight,
			}
			if f.Style.DashArray != "" {
				props["dash_array"] = f.Style.DashArray
			}
			if f.Tooltip != "" {
				props["tooltip"] = f.Tooltip
			}
			if f.BufferKM != 0 {
				props["buffer_km"] = f.BufferKM
			}
			fc.Features = append(fc.Features, &geojson.Feature{
				Geometry:   f.Geometry,
				Properties: props,
			})
		}

		raw, err := fc.MarshalJSON()
		if err != nil {
			return eris.Wrapf(err, "render: marshal group %s", group.Name)
		}
		path := filepath.Join(dir, groupFileName(group))
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			return eris.Wrapf(err, "render: write %s", path)
		}
	}

	zap.L().Info("wrote group GeoJSON", zap.String("dir", dir), zap.Int("groups", len(doc.Groups)))
	return nil
}

// groupFileName builds a filesystem-safe name for one document group.
func groupFileName(g compose.DocumentGroup) string {
	name := strings.ToLower(g.Name)
	name = strings.NewReplacer(" - ", "_", " ", "_", "/", "_").Replace(name)
	if g.BufferKM != 0 {
		name = fmt.Sprintf("%s_%dkm", name, g.BufferKM)
	}
	return name + ".geojson"
}
