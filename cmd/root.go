package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/radioreach/stationmap/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "stationmap",
	Short: "Radio station coverage map composer",
	Long:  "Loads station locations, coverage buffers, and sampling clusters from GeoPackage, shapefile, or PostGIS sources and composes them into a layered map document.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
