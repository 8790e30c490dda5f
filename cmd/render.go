package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/radioreach/stationmap/internal/compose"
	"github.com/radioreach/stationmap/internal/render"
)

var (
	renderStations   []string
	renderOut        string
	renderGeoJSONDir string
	renderZoom       int
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Compose the map document and write it to disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		src, closeSrc, err := newSource(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeSrc()

		ds, err := src.Load(ctx)
		if err != nil {
			return err
		}

		opts, err := composeOptions(cfg, renderStations, renderZoom)
		if err != nil {
			return err
		}

		doc, err := compose.Compose(ds, opts)
		if err != nil {
			return err
		}

		if err := render.WriteDocument(renderOut, doc); err != nil {
			return err
		}

		if renderGeoJSONDir != "" {
			if err := render.WriteGroupGeoJSON(renderGeoJSONDir, doc); err != nil {
				return err
			}
		}

		zap.L().Info("map rendered",
			zap.String("out", renderOut),
			zap.String("build_id", doc.BuildID),
			zap.Int("groups", len(doc.Groups)),
			zap.Int("markers", len(doc.Markers)),
		)
		return nil
	},
}

func init() {
	renderCmd.Flags().StringSliceVar(&renderStations, "stations", nil, "stations to include (default all)")
	renderCmd.Flags().StringVar(&renderOut, "out", "map_document.json", "output document path")
	renderCmd.Flags().StringVar(&renderGeoJSONDir, "geojson-dir", "", "also write per-group GeoJSON files here")
	renderCmd.Flags().IntVar(&renderZoom, "zoom", 0, "initial zoom (default from config)")
	rootCmd.AddCommand(renderCmd)
}
