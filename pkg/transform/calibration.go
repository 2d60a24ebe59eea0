package transform

import (
	"fmt"
	"math"
)

// DefaultTofBins is the TOF digitizer sample count assumed when a dataset
// does not carry DigitizerNumSamples in its global metadata.
const DefaultTofBins = 400000

// LinearCalibration is a frame-independent CoordinateTransform built from a
// dataset's acquisition ranges. TOF indices follow the square-root law of
// time-of-flight analyzers (flight time proportional to sqrt(m/z)); scan
// indices decrease with increasing mobility, matching the TIMS ramp which
// elutes high-mobility ions last.
type LinearCalibration struct {
	mzLower, mzUpper float64
	imLower, imUpper float64
	numScans         int
	tofBins          int

	sqrtLower, sqrtSpan float64
}

// NewLinearCalibration builds a calibration for the given acquisition
// ranges. numScans and tofBins set the resolution of the scan and TOF axes.
func NewLinearCalibration(mzLower, mzUpper, imLower, imUpper float64, numScans, tofBins int) (*LinearCalibration, error) {
	if mzLower <= 0 || mzUpper <= mzLower {
		return nil, fmt.Errorf("invalid m/z acquisition range [%g, %g]", mzLower, mzUpper)
	}
	if imLower <= 0 || imUpper <= imLower {
		return nil, fmt.Errorf("invalid mobility acquisition range [%g, %g]", imLower, imUpper)
	}
	if numScans < 2 {
		return nil, fmt.Errorf("scan count must be at least 2, got %d", numScans)
	}
	if tofBins < 2 {
		return nil, fmt.Errorf("tof bin count must be at least 2, got %d", tofBins)
	}

	sqrtLower := math.Sqrt(mzLower)
	return &LinearCalibration{
		mzLower:   mzLower,
		mzUpper:   mzUpper,
		imLower:   imLower,
		imUpper:   imUpper,
		numScans:  numScans,
		tofBins:   tofBins,
		sqrtLower: sqrtLower,
		sqrtSpan:  math.Sqrt(mzUpper) - sqrtLower,
	}, nil
}

// NumScans returns the scan axis resolution.
func (c *LinearCalibration) NumScans() int { return c.numScans }

// MzToTof converts m/z values to TOF indices. Values outside the
// acquisition range clamp to the first/last bin.
func (c *LinearCalibration) MzToTof(_ int64, mz []float64) []int32 {
	tof := make([]int32, len(mz))
	for i, m := range mz {
		frac := (math.Sqrt(m) - c.sqrtLower) / c.sqrtSpan
		tof[i] = clampIndex(frac, c.tofBins)
	}
	return tof
}

// TofToMz converts TOF indices back to m/z values.
func (c *LinearCalibration) TofToMz(_ int64, tof []int32) []float64 {
	mz := make([]float64, len(tof))
	for i, t := range tof {
		s := c.sqrtLower + float64(t)/float64(c.tofBins-1)*c.sqrtSpan
		mz[i] = s * s
	}
	return mz
}

// InverseMobilityToScan converts inverse mobility values to scan indices.
func (c *LinearCalibration) InverseMobilityToScan(_ int64, mobility []float64) []int32 {
	scan := make([]int32, len(mobility))
	for i, m := range mobility {
		frac := (c.imUpper - m) / (c.imUpper - c.imLower)
		scan[i] = clampIndex(frac, c.numScans)
	}
	return scan
}

// ScanToInverseMobility converts scan indices back to inverse mobility.
func (c *LinearCalibration) ScanToInverseMobility(_ int64, scan []int32) []float64 {
	mobility := make([]float64, len(scan))
	for i, s := range scan {
		mobility[i] = c.imUpper - float64(s)/float64(c.numScans-1)*(c.imUpper-c.imLower)
	}
	return mobility
}

func clampIndex(frac float64, bins int) int32 {
	idx := int32(math.Round(frac * float64(bins-1)))
	if idx < 0 {
		return 0
	}
	if idx > int32(bins-1) {
		return int32(bins - 1)
	}
	return idx
}
