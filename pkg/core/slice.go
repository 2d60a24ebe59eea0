package core

// Slice is an ordered group of frames, typically a contiguous retention
// time window pulled from a dataset.
type Slice struct {
	Frames []*Frame
}

// FrameIDs returns the frame ids in slice order.
func (s *Slice) FrameIDs() []int64 {
	ids := make([]int64, len(s.Frames))
	for i, f := range s.Frames {
		ids[i] = f.FrameID
	}
	return ids
}

// PrecursorFrames returns the precursor (MS1) frames of the slice.
func (s *Slice) PrecursorFrames() []*Frame {
	var out []*Frame
	for _, f := range s.Frames {
		if !f.IsFragment() {
			out = append(out, f)
		}
	}
	return out
}

// FragmentFrames returns the fragment (MS2) frames of the slice.
func (s *Slice) FragmentFrames() []*Frame {
	var out []*Frame
	for _, f := range s.Frames {
		if f.IsFragment() {
			out = append(out, f)
		}
	}
	return out
}

// FilterRanged applies a range filter to every frame of the slice and
// returns the filtered slice.
func (s *Slice) FilterRanged(r RangeFilter) *Slice {
	out := &Slice{Frames: make([]*Frame, len(s.Frames))}
	for i, f := range s.Frames {
		out.Frames[i] = f.FilterRanged(r)
	}
	return out
}
