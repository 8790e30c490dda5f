// Package export writes station and cluster summaries as XLSX workbooks for
// the survey field teams.
package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/radioreach/stationmap/internal/entity"
)

// WriteWorkbook writes one workbook: a Stations overview sheet plus one
// cluster sheet per station.
func WriteWorkbook(path string, ds *entity.Dataset) error {
	file := xlsx.NewFile()

	overview, err := file.AddSheet("Stations")
	if err != nil {
		return eris.Wrap(err, "export: add overview sheet")
	}
	header := overview.AddRow()
	for _, h := range []string{"Station", "Color", "Longitude", "Latitude", "Buffers", "Main Clusters", "Replacement Clusters"} {
		header.AddCell().Value = h
	}

	for _, s := range ds.Stations {
		buffers, mains, repls := 0, 0, 0
		for _, b := range ds.Buffers {
			if b.StationName == s.StationName {
				buffers++
			}
		}
		for _, c := range ds.Clusters {
			if c.StationName != s.StationName {
				continue
			}
			if c.ClusterType == entity.ClusterMain {
				mains++
			} else {
				repls++
			}
		}

		row := overview.AddRow()
		row.AddCell().Value = s.StationName
		row.AddCell().Value = s.Color
		row.AddCell().SetFloat(s.Longitude)
		row.AddCell().SetFloat(s.Latitude)
		row.AddCell().SetInt(buffers)
		row.AddCell().SetInt(mains)
		row.AddCell().SetInt(repls)
	}

	for _, s := range ds.Stations {
		sheet, err := file.AddSheet(sheetName(s.StationName))
		if err != nil {
			return eris.Wrapf(err, "export: add sheet for %s", s.StationName)
		}
		head := sheet.AddRow()
		for _, h := range []string{"Grid ID", "Cluster Type", "Population"} {
			head.AddCell().Value = h
		}
		for _, c := range ds.Clusters {
			if c.StationName != s.StationName {
				continue
			}
			row := sheet.AddRow()
			row.AddCell().Value = c.GridID
			row.AddCell().Value = string(c.ClusterType)
			row.AddCell().SetInt(c.PopulationCount)
		}
	}

	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	zap.L().Info("wrote cluster workbook", zap.String("path", path), zap.Int("stations", len(ds.Stations)))
	return nil
}

// sheetName truncates to the 31-character Excel sheet-name limit.
func sheetName(station string) string {
	if len(station) > 31 {
		return station[:31]
	}
	return station
}
