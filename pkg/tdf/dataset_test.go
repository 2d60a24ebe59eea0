package tdf

import (
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/ChrisMcGann/TDFKey/pkg/core"
)

// writtenDataset writes a small mixed MS1/MS2 dataset through the writer
// and opens it for reading.
func writtenDataset(t *testing.T, numFrames int) *Dataset {
	t.Helper()

	template := newTemplateDataset(t, numFrames, 32)
	var frames []*core.Frame
	for id := int64(1); id <= int64(numFrames); id++ {
		msType := core.MsTypeFragmentDIA
		if id%2 == 1 {
			msType = core.MsTypePrecursor
		}
		frames = append(frames, testFrame(id, msType, 3))
	}
	out := writeDataset(t, template, frames, WriterConfig{Dir: t.TempDir()}, true)

	ds, err := OpenDataset(out)
	if err != nil {
		t.Fatalf("OpenDataset() error = %v", err)
	}
	t.Cleanup(func() { ds.Close() })
	return ds
}

func TestDatasetAccessors(t *testing.T) {
	ds := writtenDataset(t, 4)

	if got := ds.FrameCount(); got != 4 {
		t.Errorf("FrameCount() = %d, want 4", got)
	}
	if got := ds.NumScans(); got != 32 {
		t.Errorf("NumScans() = %d, want 32", got)
	}
	if ds.MzLower() != 100 || ds.MzUpper() != 1700 {
		t.Errorf("m/z range = [%g, %g], want [100, 1700]", ds.MzLower(), ds.MzUpper())
	}
	if ds.ImLower() != 0.6 || ds.ImUpper() != 1.6 {
		t.Errorf("1/K0 range = [%g, %g], want [0.6, 1.6]", ds.ImLower(), ds.ImUpper())
	}
	if got := ds.Description(); got != "synthetic template" {
		t.Errorf("Description() = %q", got)
	}
	if ds.Transform() == nil {
		t.Error("Transform() = nil")
	}
}

func TestDatasetFramePartition(t *testing.T) {
	ds := writtenDataset(t, 5)

	wantPrecursor := []int64{1, 3, 5}
	wantFragment := []int64{2, 4}
	if got := ds.PrecursorFrames(); len(got) != len(wantPrecursor) {
		t.Fatalf("PrecursorFrames() = %v, want %v", got, wantPrecursor)
	} else {
		for i := range got {
			if got[i] != wantPrecursor[i] {
				t.Errorf("PrecursorFrames()[%d] = %d, want %d", i, got[i], wantPrecursor[i])
			}
		}
	}
	if got := ds.FragmentFrames(); len(got) != len(wantFragment) {
		t.Fatalf("FragmentFrames() = %v, want %v", got, wantFragment)
	} else {
		for i := range got {
			if got[i] != wantFragment[i] {
				t.Errorf("FragmentFrames()[%d] = %d, want %d", i, got[i], wantFragment[i])
			}
		}
	}
}

func TestDatasetGetFrameUnknownID(t *testing.T) {
	ds := writtenDataset(t, 2)
	if _, err := ds.GetFrame(99); err == nil {
		t.Error("expected error for unknown frame id")
	}
	if _, err := ds.FrameMeta(0); err == nil {
		t.Error("expected error for frame id 0")
	}
}

func TestDatasetGetSlice(t *testing.T) {
	ds := writtenDataset(t, 4)

	s, err := ds.GetSlice([]int64{2, 4})
	if err != nil {
		t.Fatalf("GetSlice() error = %v", err)
	}
	if len(s.Frames) != 2 || s.Frames[0].FrameID != 2 || s.Frames[1].FrameID != 4 {
		t.Errorf("GetSlice() frame ids = %v", s.FrameIDs())
	}
	for _, f := range s.Frames {
		if err := f.Validate(); err != nil {
			t.Errorf("frame %d invalid after read: %v", f.FrameID, err)
		}
	}
}

func TestDatasetIteratorRestarts(t *testing.T) {
	ds := writtenDataset(t, 3)

	readAll := func() []int64 {
		var ids []int64
		for {
			f, err := ds.Next()
			if errors.Is(err, io.EOF) {
				return ids
			}
			if err != nil {
				t.Fatalf("Next() error = %v", err)
			}
			ids = append(ids, f.FrameID)
		}
	}

	first := readAll()
	if len(first) != 3 || first[0] != 1 || first[2] != 3 {
		t.Fatalf("first pass yielded %v, want [1 2 3]", first)
	}

	// the cursor resets on EOF, a second pass sees the same frames
	second := readAll()
	if len(second) != 3 || second[0] != 1 {
		t.Fatalf("second pass yielded %v, want [1 2 3]", second)
	}
}

func TestDatasetAverageCycleLength(t *testing.T) {
	ds := writtenDataset(t, 4)

	// testFrame spaces retention times 0.5 s apart
	if got := ds.AverageCycleLength(); got < 0.499 || got > 0.501 {
		t.Errorf("AverageCycleLength() = %g, want 0.5", got)
	}
}

func TestOpenDatasetMissingMetadata(t *testing.T) {
	if _, err := OpenDataset(t.TempDir()); err == nil {
		t.Error("expected error opening a directory without a metadata store")
	}
}

func TestOpenDatasetMissingAcqRange(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "broken.d")
	buildTemplate(t, dir, 2, 16)

	db, err := sql.Open("sqlite3", filepath.Join(dir, MetadataFileName))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`DELETE FROM GlobalMetadata WHERE Key = 'MzAcqRangeLower'`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	if _, err := OpenDataset(dir); err == nil {
		t.Error("expected error for dataset without m/z acquisition range")
	}
}
