// Package noise injects synthetic acquisition background into simulated
// frames by sampling real reference data. Fragment frames (members of a
// DIA window group) draw from a window-group-keyed background model,
// precursor frames from a group-independent one; the sampled signal is
// merged additively into the input frame.
package noise

import (
	"fmt"

	"github.com/ChrisMcGann/TDFKey/pkg/core"
)

// Defaults matching typical simulation runs.
const (
	DefaultNumFrames      = 10
	DefaultIntensityMax   = 30
	DefaultSampleFraction = 0.5
)

// Sampler produces synthetic background signal from a reference dataset.
type Sampler interface {
	// SamplePrecursorSignal draws background from numFrames reference MS1
	// frames, rescaled to intensityMax and thinned to sampleFraction.
	SamplePrecursorSignal(numFrames int, intensityMax, sampleFraction float64) (*core.Frame, error)
	// SampleFragmentSignal draws background from numFrames reference MS2
	// frames of one DIA window group.
	SampleFragmentSignal(numFrames int, windowGroup int64, intensityMax, sampleFraction float64) (*core.Frame, error)
}

// Config holds the sampling parameters of an injector.
type Config struct {
	NumFrames      int
	IntensityMax   float64
	SampleFraction float64
}

func (c Config) withDefaults() Config {
	if c.NumFrames <= 0 {
		c.NumFrames = DefaultNumFrames
	}
	if c.IntensityMax <= 0 {
		c.IntensityMax = DefaultIntensityMax
	}
	if c.SampleFraction <= 0 {
		c.SampleFraction = DefaultSampleFraction
	}
	return c
}

// Injector adds sampled background signal to frames. Classification is by
// window-group membership: a frame whose id is a key of the window-group
// map takes the fragment path, every other frame the precursor path.
type Injector struct {
	sampler       Sampler
	windowGroupOf map[int64]int64
	cfg           Config
}

// NewInjector builds an injector over a sampler and the fragment-frame to
// window-group map of the acquisition scheme.
func NewInjector(sampler Sampler, windowGroupOf map[int64]int64, cfg Config) *Injector {
	return &Injector{
		sampler:       sampler,
		windowGroupOf: windowGroupOf,
		cfg:           cfg.withDefaults(),
	}
}

// Inject returns the input frame with sampled background merged in: the
// union of (scan, tof) coordinates with intensities added. Frame id,
// retention time and MS type are inherited from the input; the input is
// not modified.
func (inj *Injector) Inject(f *core.Frame) (*core.Frame, error) {
	var (
		bg  *core.Frame
		err error
	)
	if group, ok := inj.windowGroupOf[f.FrameID]; ok {
		bg, err = inj.sampler.SampleFragmentSignal(
			inj.cfg.NumFrames, group, inj.cfg.IntensityMax, inj.cfg.SampleFraction)
	} else {
		bg, err = inj.sampler.SamplePrecursorSignal(
			inj.cfg.NumFrames, inj.cfg.IntensityMax, inj.cfg.SampleFraction)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to sample background for frame %d: %w", f.FrameID, err)
	}
	return f.Add(bg), nil
}

// InjectAll injects background into every frame, in order.
func (inj *Injector) InjectAll(frames []*core.Frame) ([]*core.Frame, error) {
	out := make([]*core.Frame, len(frames))
	for i, f := range frames {
		noisy, err := inj.Inject(f)
		if err != nil {
			return nil, err
		}
		out[i] = noisy
	}
	return out, nil
}
