package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/radioreach/stationmap/internal/compose"
	"github.com/radioreach/stationmap/internal/entity"
)

var stationsCmd = &cobra.Command{
	Use:   "stations",
	Short: "List stations and collection counts from the configured source",
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

		p := message.NewPrinter(language.English)
		for _, st := range ds.Stations {
			main, repl := clusterCounts(ds, st.StationName)
			pop := stationPopulation(ds, st.StationName)
			p.Fprintf(cmd.OutOrStdout(), "%s (%s): %d buffers, %d main clusters, %d replacement clusters, est. population %d\n",
				st.StationName, st.Color,
				bufferCount(ds, st.StationName), main, repl, pop)
		}
		if len(ds.Stations) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no stations found")
			return nil
		}
		if kms := compose.ObservedBufferKMs(ds.Buffers); len(kms) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "coverage radii: %s km\n", strings.Join(kms, ", "))
		}
		return nil
	},
}

func bufferCount(ds *entity.Dataset, station string) int {
	n := 0
	for _, b := range ds.Buffers {
		if b.StationName == station {
			n++
		}
	}
	return n
}

func clusterCounts(ds *entity.Dataset, station string) (main, repl int) {
	for _, c := range ds.Clusters {
		if c.StationName != station {
			continue
		}
		if c.ClusterType == entity.ClusterMain {
			main++
		} else {
			repl++
		}
	}
	return main, repl
}

func stationPopulation(ds *entity.Dataset, station string) int {
	total := 0
	for _, c := range ds.Centroids {
		if c.StationName == station {
			total += c.EstPopulation2020
		}
	}
	return total
}

func init() {
	rootCmd.AddCommand(stationsCmd)
}
