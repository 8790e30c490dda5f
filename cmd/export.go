package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/radioreach/stationmap/internal/export"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export cluster sampling sheets to an xlsx workbook",
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

		if err := export.WriteWorkbook(exportOut, ds); err != nil {
			return err
		}

		zap.L().Info("workbook written",
			zap.String("out", exportOut),
			zap.Int("stations", len(ds.Stations)),
			zap.Int("clusters", len(ds.Clusters)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "clusters.xlsx", "output workbook path")
	rootCmd.AddCommand(exportCmd)
}
