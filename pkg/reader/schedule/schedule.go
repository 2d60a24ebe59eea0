// Package schedule reads DIA window schedules from TOML files: the
// isolation window definitions per window group and the assignment of
// fragment frames to window groups. The schedule supplies the rows for
// the DiaFrameMsMsInfo and DiaFrameMsMsWindows tables of a written
// dataset.
package schedule

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/ChrisMcGann/TDFKey/pkg/tdf"
)

// Schedule is a parsed DIA window schedule.
type Schedule struct {
	Windows     []Window     `toml:"windows"`
	Assignments []Assignment `toml:"frames"`
}

// Window defines one isolation window of a window group.
type Window struct {
	Group           int64   `toml:"group"`
	ScanStart       int64   `toml:"scan_start"`
	ScanEnd         int64   `toml:"scan_end"`
	IsolationMz     float64 `toml:"isolation_mz"`
	IsolationWidth  float64 `toml:"isolation_width"`
	CollisionEnergy float64 `toml:"collision_energy"`
}

// Assignment maps one fragment frame to a window group.
type Assignment struct {
	Frame int64 `toml:"frame"`
	Group int64 `toml:"group"`
}

// Load reads and validates a schedule file.
func Load(path string) (*Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates schedule TOML.
func Parse(data []byte) (*Schedule, error) {
	var s Schedule
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse schedule: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Schedule) validate() error {
	if len(s.Windows) == 0 {
		return fmt.Errorf("schedule defines no windows")
	}
	groups := make(map[int64]bool)
	for i, w := range s.Windows {
		if w.Group <= 0 {
			return fmt.Errorf("window %d: group must be positive", i)
		}
		if w.ScanStart < 0 || w.ScanEnd < w.ScanStart {
			return fmt.Errorf("window %d: invalid scan range [%d, %d]", i, w.ScanStart, w.ScanEnd)
		}
		if w.IsolationMz <= 0 || w.IsolationWidth <= 0 {
			return fmt.Errorf("window %d: isolation m/z and width must be positive", i)
		}
		groups[w.Group] = true
	}
	seen := make(map[int64]bool)
	for i, a := range s.Assignments {
		if a.Frame <= 0 {
			return fmt.Errorf("assignment %d: frame must be positive", i)
		}
		if !groups[a.Group] {
			return fmt.Errorf("assignment %d: frame %d references undefined window group %d", i, a.Frame, a.Group)
		}
		if seen[a.Frame] {
			return fmt.Errorf("assignment %d: frame %d assigned to more than one window group", i, a.Frame)
		}
		seen[a.Frame] = true
	}
	return nil
}

// DiaMsMsInfo returns the assignments as DiaFrameMsMsInfo rows.
func (s *Schedule) DiaMsMsInfo() []tdf.DiaMsMsInfo {
	out := make([]tdf.DiaMsMsInfo, len(s.Assignments))
	for i, a := range s.Assignments {
		out[i] = tdf.DiaMsMsInfo{Frame: a.Frame, WindowGroup: a.Group}
	}
	return out
}

// DiaMsMsWindows returns the window definitions as DiaFrameMsMsWindows rows.
func (s *Schedule) DiaMsMsWindows() []tdf.DiaMsMsWindow {
	out := make([]tdf.DiaMsMsWindow, len(s.Windows))
	for i, w := range s.Windows {
		out[i] = tdf.DiaMsMsWindow{
			WindowGroup:     w.Group,
			ScanNumBegin:    w.ScanStart,
			ScanNumEnd:      w.ScanEnd,
			IsolationMz:     w.IsolationMz,
			IsolationWidth:  w.IsolationWidth,
			CollisionEnergy: w.CollisionEnergy,
		}
	}
	return out
}

// WindowGroupOf returns the fragment-frame id to window-group map used by
// the noise injector.
func (s *Schedule) WindowGroupOf() map[int64]int64 {
	m := make(map[int64]int64, len(s.Assignments))
	for _, a := range s.Assignments {
		m[a.Frame] = a.Group
	}
	return m
}
