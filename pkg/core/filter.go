package core

import "math"

// RangeFilter holds coordinate and intensity bounds for peak filtering.
// Zero-valued bounds are widened to cover everything, so a partially
// populated filter only constrains the dimensions it names.
type RangeFilter struct {
	MzMin, MzMax               float64
	ScanMin, ScanMax           int32
	MobilityMin, MobilityMax   float64
	IntensityMin, IntensityMax float64
}

// normalized returns a copy with unset upper bounds widened to +Inf /
// MaxInt32 so the keep test stays a plain interval check.
func (r RangeFilter) normalized() RangeFilter {
	if r.MzMax == 0 {
		r.MzMax = math.Inf(1)
	}
	if r.ScanMax == 0 {
		r.ScanMax = math.MaxInt32
	}
	if r.MobilityMax == 0 {
		r.MobilityMax = math.Inf(1)
	}
	if r.IntensityMax == 0 {
		r.IntensityMax = math.Inf(1)
	}
	return r
}

func (r RangeFilter) keep(f *Frame, i int) bool {
	return f.Mz[i] >= r.MzMin && f.Mz[i] <= r.MzMax &&
		f.Scan[i] >= r.ScanMin && f.Scan[i] <= r.ScanMax &&
		f.Mobility[i] >= r.MobilityMin && f.Mobility[i] <= r.MobilityMax &&
		f.Intensity[i] >= r.IntensityMin && f.Intensity[i] <= r.IntensityMax
}

// FilterRanged returns a new frame containing only the peaks whose m/z,
// scan, mobility and intensity fall inside the filter's bounds. The input
// frame is not modified.
func (f *Frame) FilterRanged(r RangeFilter) *Frame {
	r = r.normalized()

	out := &Frame{
		FrameID:       f.FrameID,
		MsType:        f.MsType,
		RetentionTime: f.RetentionTime,
	}
	for i := range f.Mz {
		if !r.keep(f, i) {
			continue
		}
		out.Scan = append(out.Scan, f.Scan[i])
		out.Mobility = append(out.Mobility, f.Mobility[i])
		out.Tof = append(out.Tof, f.Tof[i])
		out.Mz = append(out.Mz, f.Mz[i])
		out.Intensity = append(out.Intensity, f.Intensity[i])
	}
	return out
}

// RemoveZeroIntensityPeaks drops peaks with zero intensity in place.
func (f *Frame) RemoveZeroIntensityPeaks() {
	n := 0
	for i := range f.Intensity {
		if f.Intensity[i] <= 0 {
			continue
		}
		f.Scan[n] = f.Scan[i]
		f.Mobility[n] = f.Mobility[i]
		f.Tof[n] = f.Tof[i]
		f.Mz[n] = f.Mz[i]
		f.Intensity[n] = f.Intensity[i]
		n++
	}
	f.Scan = f.Scan[:n]
	f.Mobility = f.Mobility[:n]
	f.Tof = f.Tof[:n]
	f.Mz = f.Mz[:n]
	f.Intensity = f.Intensity[:n]
}
