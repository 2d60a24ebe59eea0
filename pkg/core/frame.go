// Package core provides the in-memory data model for TIMS-TOF acquisition
// frames used by the TDFKey read and write pipelines.
package core

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// MS type tags as stored in the Frames table MsMsType column.
const (
	MsTypePrecursor   = 0
	MsTypeFragmentDDA = 8
	MsTypeFragmentDIA = 9
)

// Frame represents a single acquisition frame: scalar metadata plus five
// parallel peak arrays of identical length. Scan and Tof are the discretized
// counterparts of Mobility and Mz, derived through a coordinate transform.
//
// Frames coming from a trusted boundary (the dataset reader, the noise
// sampler) are built as plain struct literals; use NewFrame when the arrays
// come from an unvalidated source.
type Frame struct {
	FrameID       int64
	MsType        int
	RetentionTime float64 // seconds

	Scan      []int32
	Mobility  []float64
	Tof       []int32
	Mz        []float64
	Intensity []float64
}

// ValidationError represents an error found during frame validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// NewFrame constructs a validated Frame. The five peak arrays must have
// identical length and contain finite values.
func NewFrame(frameID int64, msType int, retentionTime float64,
	scan []int32, mobility []float64, tof []int32, mz, intensity []float64) (*Frame, error) {

	f := &Frame{
		FrameID:       frameID,
		MsType:        msType,
		RetentionTime: retentionTime,
		Scan:          scan,
		Mobility:      mobility,
		Tof:           tof,
		Mz:            mz,
		Intensity:     intensity,
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks that a frame meets all requirements for processing.
func (f *Frame) Validate() error {
	var errs []string

	if f.FrameID <= 0 {
		errs = append(errs, "frame id must be positive")
	}
	if f.MsType < 0 {
		errs = append(errs, "ms type must be non-negative")
	}

	n := len(f.Scan)
	if len(f.Mobility) != n || len(f.Tof) != n || len(f.Mz) != n || len(f.Intensity) != n {
		errs = append(errs, fmt.Sprintf(
			"peak arrays must have equal length: scan=%d mobility=%d tof=%d mz=%d intensity=%d",
			len(f.Scan), len(f.Mobility), len(f.Tof), len(f.Mz), len(f.Intensity)))
	} else {
		for i := 0; i < n; i++ {
			if math.IsNaN(f.Mz[i]) || math.IsInf(f.Mz[i], 0) {
				errs = append(errs, fmt.Sprintf("peak %d has invalid m/z", i))
			}
			if math.IsNaN(f.Intensity[i]) || math.IsInf(f.Intensity[i], 0) {
				errs = append(errs, fmt.Sprintf("peak %d has invalid intensity", i))
			}
			if f.Intensity[i] < 0 {
				errs = append(errs, fmt.Sprintf("peak %d intensity must be non-negative", i))
			}
			if f.Scan[i] < 0 {
				errs = append(errs, fmt.Sprintf("peak %d scan must be non-negative", i))
			}
		}
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   "Frame",
			Message: strings.Join(errs, "; "),
		}
	}
	return nil
}

// IsFragment reports whether the frame is an MS2 (fragment) frame.
func (f *Frame) IsFragment() bool {
	return f.MsType > 0
}

// NumPeaks returns the peak count.
func (f *Frame) NumPeaks() int {
	return len(f.Mz)
}

// MaxIntensity returns the largest peak intensity, or 0 for an empty frame.
func (f *Frame) MaxIntensity() float64 {
	max := 0.0
	for _, v := range f.Intensity {
		if v > max {
			max = v
		}
	}
	return max
}

// SummedIntensity returns the sum of all peak intensities, or 0 for an
// empty frame.
func (f *Frame) SummedIntensity() float64 {
	sum := 0.0
	for _, v := range f.Intensity {
		sum += v
	}
	return sum
}

// IsSorted reports whether the peaks are in canonical (scan, tof) order.
func (f *Frame) IsSorted() bool {
	for i := 1; i < len(f.Scan); i++ {
		if f.Scan[i] < f.Scan[i-1] ||
			(f.Scan[i] == f.Scan[i-1] && f.Tof[i] < f.Tof[i-1]) {
			return false
		}
	}
	return true
}

// Sort orders the peaks canonically by (scan, tof) in place.
func (f *Frame) Sort() {
	if f.IsSorted() {
		return
	}
	idx := make([]int, len(f.Scan))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		i, j := idx[a], idx[b]
		if f.Scan[i] != f.Scan[j] {
			return f.Scan[i] < f.Scan[j]
		}
		return f.Tof[i] < f.Tof[j]
	})
	f.reorder(idx)
}

func (f *Frame) reorder(idx []int) {
	scan := make([]int32, len(idx))
	mob := make([]float64, len(idx))
	tof := make([]int32, len(idx))
	mz := make([]float64, len(idx))
	intensity := make([]float64, len(idx))
	for pos, i := range idx {
		scan[pos] = f.Scan[i]
		mob[pos] = f.Mobility[i]
		tof[pos] = f.Tof[i]
		mz[pos] = f.Mz[i]
		intensity[pos] = f.Intensity[i]
	}
	f.Scan, f.Mobility, f.Tof, f.Mz, f.Intensity = scan, mob, tof, mz, intensity
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	c := &Frame{
		FrameID:       f.FrameID,
		MsType:        f.MsType,
		RetentionTime: f.RetentionTime,
		Scan:          append([]int32(nil), f.Scan...),
		Mobility:      append([]float64(nil), f.Mobility...),
		Tof:           append([]int32(nil), f.Tof...),
		Mz:            append([]float64(nil), f.Mz...),
		Intensity:     append([]float64(nil), f.Intensity...),
	}
	return c
}

// Add merges another frame into this one peak-wise and returns the result
// as a new frame: the union of (scan, tof) coordinates with intensities
// added. Scalar metadata (frame id, retention time, MS type) is inherited
// from the receiver. Neither input is modified.
func (f *Frame) Add(other *Frame) *Frame {
	type coord struct {
		scan int32
		tof  int32
	}
	type peak struct {
		mobility  float64
		mz        float64
		intensity float64
	}

	merged := make(map[coord]peak, len(f.Scan)+len(other.Scan))
	for i := range f.Scan {
		key := coord{f.Scan[i], f.Tof[i]}
		p, ok := merged[key]
		if !ok {
			p.mobility = f.Mobility[i]
			p.mz = f.Mz[i]
		}
		p.intensity += f.Intensity[i]
		merged[key] = p
	}
	for i := range other.Scan {
		key := coord{other.Scan[i], other.Tof[i]}
		p, ok := merged[key]
		if !ok {
			p.mobility = other.Mobility[i]
			p.mz = other.Mz[i]
		}
		p.intensity += other.Intensity[i]
		merged[key] = p
	}

	keys := make([]coord, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].scan != keys[b].scan {
			return keys[a].scan < keys[b].scan
		}
		return keys[a].tof < keys[b].tof
	})

	out := &Frame{
		FrameID:       f.FrameID,
		MsType:        f.MsType,
		RetentionTime: f.RetentionTime,
		Scan:          make([]int32, 0, len(keys)),
		Mobility:      make([]float64, 0, len(keys)),
		Tof:           make([]int32, 0, len(keys)),
		Mz:            make([]float64, 0, len(keys)),
		Intensity:     make([]float64, 0, len(keys)),
	}
	for _, k := range keys {
		p := merged[k]
		out.Scan = append(out.Scan, k.scan)
		out.Mobility = append(out.Mobility, p.mobility)
		out.Tof = append(out.Tof, k.tof)
		out.Mz = append(out.Mz, p.mz)
		out.Intensity = append(out.Intensity, p.intensity)
	}
	return out
}
