package tdf

import (
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/ChrisMcGann/TDFKey/pkg/codec"
	"github.com/ChrisMcGann/TDFKey/pkg/core"
	"github.com/ChrisMcGann/TDFKey/pkg/transform"
)

// Compressor serializes frames into compressed binary payloads: physical
// coordinates are discretized through the transform, then the (scan, tof,
// intensity) triples are encoded by the codec.
type Compressor struct {
	transform transform.CoordinateTransform
	numScans  int

	// calibrationFrameID, when non-zero, overrides the frame id used for
	// coordinate conversion. Synthetic frames written against a template
	// dataset are all discretized with the template's frame 1 calibration.
	calibrationFrameID int64
}

// NewCompressor returns a compressor bound to a transform and a scan axis
// resolution. calibrationFrameID of 0 means each frame is converted with
// its own id.
func NewCompressor(t transform.CoordinateTransform, numScans int, calibrationFrameID int64) *Compressor {
	return &Compressor{
		transform:          t,
		numScans:           numScans,
		calibrationFrameID: calibrationFrameID,
	}
}

// Compress converts one frame's m/z and mobility arrays to TOF and scan
// indices and encodes the result into a single payload.
func (c *Compressor) Compress(f *core.Frame) ([]byte, error) {
	id := f.FrameID
	if c.calibrationFrameID != 0 {
		id = c.calibrationFrameID
	}

	tof := c.transform.MzToTof(id, f.Mz)
	scan := c.transform.InverseMobilityToScan(id, f.Mobility)

	intensity := make([]uint32, len(f.Intensity))
	for i, v := range f.Intensity {
		intensity[i] = clampIntensity(v)
	}

	blob, err := codec.Encode(scan, tof, intensity, c.numScans)
	if err != nil {
		return nil, fmt.Errorf("failed to compress frame %d: %w", f.FrameID, err)
	}
	return blob, nil
}

// CompressMany compresses a batch of frames, up to threads at a time. The
// result is indexed by input position and each payload is byte-identical
// to what Compress would produce for that frame; parallelism only changes
// the wall clock, never the output.
func (c *Compressor) CompressMany(frames []*core.Frame, threads int) ([][]byte, error) {
	if threads < 1 {
		threads = 1
	}
	out := make([][]byte, len(frames))

	var g errgroup.Group
	g.SetLimit(threads)
	for i, f := range frames {
		i, f := i, f
		g.Go(func() error {
			blob, err := c.Compress(f)
			if err != nil {
				return err
			}
			out[i] = blob
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func clampIntensity(v float64) uint32 {
	if v <= 0 {
		return 0
	}
	r := math.Round(v)
	if r >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(r)
}
