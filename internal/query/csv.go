package query

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/fieldwatch/aegis/internal/models"
)

// csvColumns fixes the export column order per spec.md §4.5's "CSV export
// of the track query with an explicit column order" requirement.
var csvColumns = []string{
	"kit_id", "drone_id", "pilot_id", "operator_id", "caa_id", "rid_make", "rid_model", "rid_source", "track_type",
	"lat", "lon", "altitude_m", "speed_ms", "vspeed_ms", "heading_deg", "height_m", "direction_deg",
	"pilot_lat", "pilot_lon", "home_lat", "home_lon", "rssi",
	"observed_at", "ingested_at",
}

// WriteTracksCSV streams tracks to w in the fixed column order. A header
// line is always written, even for zero rows, matching spec.md §7's
// "CSV export on zero rows returns 200 with just a header line".
func WriteTracksCSV(w io.Writer, tracks []models.Track) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvColumns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, t := range tracks {
		rssi := ""
		if t.RSSI != nil {
			rssi = strconv.FormatFloat(*t.RSSI, 'f', -1, 64)
		}
		row := []string{
			t.KitID,
			t.DroneID,
			t.PilotID,
			t.OperatorID,
			t.CAAID,
			t.RIDMake,
			t.RIDModel,
			t.RIDSource,
			t.TrackType,
			strconv.FormatFloat(t.Lat, 'f', -1, 64),
			strconv.FormatFloat(t.Lon, 'f', -1, 64),
			strconv.FormatFloat(t.AltitudeM, 'f', -1, 64),
			strconv.FormatFloat(t.SpeedMS, 'f', -1, 64),
			strconv.FormatFloat(t.VSpeedMS, 'f', -1, 64),
			strconv.FormatFloat(t.HeadingDeg, 'f', -1, 64),
			strconv.FormatFloat(t.HeightM, 'f', -1, 64),
			strconv.FormatFloat(t.DirectionDeg, 'f', -1, 64),
			strconv.FormatFloat(t.PilotLat, 'f', -1, 64),
			strconv.FormatFloat(t.PilotLon, 'f', -1, 64),
			strconv.FormatFloat(t.HomeLat, 'f', -1, 64),
			strconv.FormatFloat(t.HomeLon, 'f', -1, 64),
			rssi,
			t.ObservedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			t.IngestedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
