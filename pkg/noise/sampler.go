package noise

import (
	"fmt"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/ChrisMcGann/TDFKey/pkg/core"
	"github.com/ChrisMcGann/TDFKey/pkg/tdf"
)

// DatasetSampler draws background signal from a real DIA reference
// dataset: it picks reference frames without replacement, sums them
// peak-wise, rescales the summed signal so its maximum intensity equals
// the requested ceiling, and thins the peaks to the sample fraction.
type DatasetSampler struct {
	ds  *tdf.Dataset
	src rand.Source

	// window group -> fragment frame ids of that group
	groupFrames map[int64][]int64
}

// NewDatasetSampler builds a sampler over a reference dataset.
// windowGroupOf maps the reference's fragment frame ids to their DIA
// window groups (DatasetDIA.FramesToWindowGroups for a DIA reference).
// The seed makes sampling reproducible across runs.
func NewDatasetSampler(ds *tdf.Dataset, windowGroupOf map[int64]int64, seed uint64) *DatasetSampler {
	groupFrames := make(map[int64][]int64)
	for frame, group := range windowGroupOf {
		groupFrames[group] = append(groupFrames[group], frame)
	}
	// map iteration order is random; keep pools deterministic under a seed
	for _, frames := range groupFrames {
		sort.Slice(frames, func(i, j int) bool { return frames[i] < frames[j] })
	}
	return &DatasetSampler{
		ds:          ds,
		src:         rand.NewSource(seed),
		groupFrames: groupFrames,
	}
}

// SamplePrecursorSignal draws background from the reference dataset's MS1
// frames.
func (s *DatasetSampler) SamplePrecursorSignal(numFrames int, intensityMax, sampleFraction float64) (*core.Frame, error) {
	return s.sample(s.ds.PrecursorFrames(), numFrames, intensityMax, sampleFraction)
}

// SampleFragmentSignal draws background from the reference dataset's MS2
// frames belonging to the given DIA window group.
func (s *DatasetSampler) SampleFragmentSignal(numFrames int, windowGroup int64, intensityMax, sampleFraction float64) (*core.Frame, error) {
	pool := s.groupFrames[windowGroup]
	if len(pool) == 0 {
		return nil, fmt.Errorf("reference dataset has no frames for window group %d", windowGroup)
	}
	return s.sample(pool, numFrames, intensityMax, sampleFraction)
}

func (s *DatasetSampler) sample(pool []int64, numFrames int, intensityMax, sampleFraction float64) (*core.Frame, error) {
	if len(pool) == 0 {
		return nil, fmt.Errorf("reference dataset has no frames to sample from")
	}
	if numFrames < 1 {
		numFrames = 1
	}
	if numFrames > len(pool) {
		numFrames = len(pool)
	}

	idx := make([]int, numFrames)
	sampleuv.WithoutReplacement(idx, len(pool), s.src)

	var sum *core.Frame
	for _, i := range idx {
		f, err := s.ds.GetFrame(pool[i])
		if err != nil {
			return nil, err
		}
		if sum == nil {
			sum = f
		} else {
			sum = sum.Add(f)
		}
	}

	rescale(sum, intensityMax)
	return thin(sum, sampleFraction, s.src), nil
}

// rescale scales all intensities so the maximum equals intensityMax.
func rescale(f *core.Frame, intensityMax float64) {
	max := f.MaxIntensity()
	if max <= 0 || intensityMax <= 0 {
		return
	}
	factor := intensityMax / max
	for i := range f.Intensity {
		f.Intensity[i] *= factor
	}
}

// thin keeps each peak with probability fraction.
func thin(f *core.Frame, fraction float64, src rand.Source) *core.Frame {
	if fraction >= 1 {
		return f
	}
	bern := distuv.Bernoulli{P: fraction, Src: src}

	out := &core.Frame{
		FrameID:       f.FrameID,
		MsType:        f.MsType,
		RetentionTime: f.RetentionTime,
	}
	for i := range f.Intensity {
		if bern.Rand() == 0 {
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
