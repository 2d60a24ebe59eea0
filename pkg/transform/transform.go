// Package transform defines the coordinate transform boundary between
// physical (m/z, inverse mobility) and discretized (TOF index, scan index)
// peak coordinates. The engine performing the actual conversion is hidden
// behind the CoordinateTransform interface so the read and write pipelines
// never depend on a specific implementation.
package transform

// CoordinateTransform maps between physical and discretized coordinates.
// All conversions are keyed by frame id: calibration may drift over an
// acquisition, so an implementation is free to return frame-dependent
// results.
type CoordinateTransform interface {
	// MzToTof converts m/z values to TOF indices.
	MzToTof(frameID int64, mz []float64) []int32
	// TofToMz converts TOF indices back to m/z values.
	TofToMz(frameID int64, tof []int32) []float64
	// InverseMobilityToScan converts inverse mobility values to scan indices.
	InverseMobilityToScan(frameID int64, mobility []float64) []int32
	// ScanToInverseMobility converts scan indices back to inverse mobility.
	ScanToInverseMobility(frameID int64, scan []int32) []float64
}
