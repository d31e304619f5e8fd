package history

import (
	"io"
	"time"

	"codeberg.org/mutker/dronedash/internal/errors"
	"codeberg.org/mutker/dronedash/internal/telemetry"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Telemetry"

var exportHeader = []any{
	"Timestamp", "Device Time (ms)",
	"Voltage (V)", "Current (A)", "Remaining (%)", "Battery Temp (°C)",
	"Local X (m)", "Local Y (m)", "Local Z (m)",
	"Latitude", "Longitude", "Altitude (m)", "Relative Alt (m)",
	"Roll (rad)", "Pitch (rad)", "Yaw (rad)",
	"VX (m/s)", "VY (m/s)", "VZ (m/s)",
	"Rangefinder (m)",
	"System Status", "Base Mode", "Custom Mode",
}

// exportRow flattens a snapshot into one spreadsheet row. Absent records
// leave their cells empty rather than zero.
func exportRow(s telemetry.Snapshot) []any {
	row := make([]any, len(exportHeader))
	row[0] = s.Timestamp.Format(time.RFC3339Nano)
	row[1] = s.DeviceTimeMs

	if b := s.Battery; b != nil {
		row[2], row[3], row[4], row[5] = b.Voltage, b.Current, b.RemainingPct, b.Temperature
	}
	if p := s.Position; p != nil {
		if l := p.Local; l != nil {
			row[6], row[7], row[8] = l.X, l.Y, l.Z
		}
		if g := p.Global; g != nil {
			row[9], row[10], row[11], row[12] = g.Lat, g.Lon, g.Alt, g.RelativeAlt
		}
	}
	if a := s.Attitude; a != nil {
		row[13], row[14], row[15] = a.Roll, a.Pitch, a.Yaw
	}
	if v := s.Velocity; v != nil {
		row[16], row[17], row[18] = v.VX, v.VY, v.VZ
	}
	if r := s.Rangefinder; r != nil {
		row[19] = r.Distance
	}
	if h := s.Heartbeat; h != nil {
		row[20], row[21], row[22] = h.SystemStatus, h.BaseMode, h.CustomMode
	}

	return row
}

// WriteXLSX renders snapshots as a single-sheet workbook, one row each
func WriteXLSX(w io.Writer, snapshots []telemetry.Snapshot) error {
	errFactory := errors.New()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return errFactory.Wrap(ErrExportFailed, err)
	}

	sw, err := f.NewStreamWriter(exportSheet)
	if err != nil {
		return errFactory.Wrap(ErrExportFailed, err)
	}

	if err := sw.SetRow("A1", exportHeader); err != nil {
		return errFactory.Wrap(ErrExportFailed, err)
	}

	for i, s := range snapshots {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errFactory.Wrap(ErrExportFailed, err)
		}
		if err := sw.SetRow(cell, exportRow(s)); err != nil {
			return errFactory.Wrap(ErrExportFailed, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return errFactory.Wrap(ErrExportFailed, err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return errFactory.Wrap(ErrExportFailed, err)
	}

	return nil
}
