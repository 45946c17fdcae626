package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/ogulcanaydogan/dwlr-guardian/pkg/model"
)

// WriteCSV writes readings with a header row in the same layout Parse reads.
func WriteCSV(w io.Writer, readings []model.Reading) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range readings {
		row := []string{
			r.StationID,
			r.Time.Format(time.RFC3339),
			strconv.FormatFloat(r.WaterLevel, 'f', -1, 64),
			strconv.FormatFloat(r.Lat, 'f', -1, 64),
			strconv.FormatFloat(r.Lon, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFilename is the download name for a station export.
func ExportFilename(stationID string) string {
	return stationID + "_water_data.csv"
}
