package tdf

import (
	"database/sql"
	"fmt"
	"path/filepath"
)

// HasDiaTables reports whether the dataset at path carries the DIA window
// scheduling tables.
func HasDiaTables(path string) (bool, error) {
	db, err := sql.Open("sqlite3", filepath.Join(path, MetadataFileName))
	if err != nil {
		return false, fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer db.Close()

	hasInfo, err := HasTable(db, "DiaFrameMsMsInfo")
	if err != nil {
		return false, err
	}
	hasWindows, err := HasTable(db, "DiaFrameMsMsWindows")
	if err != nil {
		return false, err
	}
	return hasInfo && hasWindows, nil
}

// DiaMsMsInfo assigns one fragment frame to a DIA window group. Persisted
// as the DiaFrameMsMsInfo table.
type DiaMsMsInfo struct {
	Frame       int64
	WindowGroup int64
}

// DiaMsMsWindow describes one isolation window of a DIA window group.
// Persisted as the DiaFrameMsMsWindows table.
type DiaMsMsWindow struct {
	WindowGroup     int64
	ScanNumBegin    int64
	ScanNumEnd      int64
	IsolationMz     float64
	IsolationWidth  float64
	CollisionEnergy float64
}

// DatasetDIA is a Dataset with DIA window scheduling tables loaded.
type DatasetDIA struct {
	*Dataset

	info    []DiaMsMsInfo
	windows []DiaMsMsWindow
}

// OpenDatasetDIA opens a DIA dataset, additionally loading the
// DiaFrameMsMsInfo and DiaFrameMsMsWindows tables.
func OpenDatasetDIA(path string) (*DatasetDIA, error) {
	ds, err := OpenDataset(path)
	if err != nil {
		return nil, err
	}
	dia := &DatasetDIA{Dataset: ds}
	if err := dia.loadDiaTables(); err != nil {
		ds.Close()
		return nil, err
	}
	return dia, nil
}

func (ds *DatasetDIA) loadDiaTables() error {
	infoTable, err := ReadTable(ds.db, "DiaFrameMsMsInfo")
	if err != nil {
		return err
	}
	fi := infoTable.ColumnIndex("Frame")
	gi := infoTable.ColumnIndex("WindowGroup")
	if fi < 0 || gi < 0 {
		return fmt.Errorf("DiaFrameMsMsInfo has unexpected columns %v", infoTable.Columns)
	}
	for _, row := range infoTable.Rows {
		ds.info = append(ds.info, DiaMsMsInfo{
			Frame:       asInt64(row[fi]),
			WindowGroup: asInt64(row[gi]),
		})
	}

	windowTable, err := ReadTable(ds.db, "DiaFrameMsMsWindows")
	if err != nil {
		return err
	}
	cols := map[string]int{}
	for _, name := range []string{"WindowGroup", "ScanNumBegin", "ScanNumEnd",
		"IsolationMz", "IsolationWidth", "CollisionEnergy"} {
		i := windowTable.ColumnIndex(name)
		if i < 0 {
			return fmt.Errorf("DiaFrameMsMsWindows is missing column %s", name)
		}
		cols[name] = i
	}
	for _, row := range windowTable.Rows {
		ds.windows = append(ds.windows, DiaMsMsWindow{
			WindowGroup:     asInt64(row[cols["WindowGroup"]]),
			ScanNumBegin:    asInt64(row[cols["ScanNumBegin"]]),
			ScanNumEnd:      asInt64(row[cols["ScanNumEnd"]]),
			IsolationMz:     asFloat64(row[cols["IsolationMz"]]),
			IsolationWidth:  asFloat64(row[cols["IsolationWidth"]]),
			CollisionEnergy: asFloat64(row[cols["CollisionEnergy"]]),
		})
	}
	return nil
}

// DiaMsMsInfo returns the frame to window-group assignments.
func (ds *DatasetDIA) DiaMsMsInfo() []DiaMsMsInfo { return ds.info }

// DiaMsMsWindows returns all isolation window definitions.
func (ds *DatasetDIA) DiaMsMsWindows() []DiaMsMsWindow { return ds.windows }

// FramesToWindowGroups returns the fragment-frame id to window-group map
// used for noise classification: a frame id present as a key is a DIA
// fragment frame.
func (ds *DatasetDIA) FramesToWindowGroups() map[int64]int64 {
	m := make(map[int64]int64, len(ds.info))
	for _, info := range ds.info {
		m[info.Frame] = info.WindowGroup
	}
	return m
}

// WindowsForGroup returns the isolation windows of one window group.
func (ds *DatasetDIA) WindowsForGroup(group int64) []DiaMsMsWindow {
	var out []DiaMsMsWindow
	for _, w := range ds.windows {
		if w.WindowGroup == group {
			out = append(out, w)
		}
	}
	return out
}
