package noise

import (
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ChrisMcGann/TDFKey/pkg/core"
	"github.com/ChrisMcGann/TDFKey/pkg/tdf"
)

// referenceDataset writes a small dataset with alternating MS1/MS2 frames
// to sample background from.
func referenceDataset(t *testing.T, numFrames int) *tdf.Dataset {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "template.d")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	db, err := sql.Open("sqlite3", filepath.Join(dir, tdf.MetadataFileName))
	if err != nil {
		t.Fatal(err)
	}
	stmts := []string{
		`CREATE TABLE Frames (Id INTEGER PRIMARY KEY, Time REAL, ScanMode INTEGER,
			MsMsType INTEGER, TimsId INTEGER, MaxIntensity INTEGER,
			SummedIntensities INTEGER, NumScans INTEGER, NumPeaks INTEGER)`,
		`CREATE TABLE Segments (Id INTEGER PRIMARY KEY, FirstFrame INTEGER, LastFrame INTEGER)`,
		`CREATE TABLE GlobalMetadata (Key TEXT, Value TEXT)`,
		`CREATE TABLE MzCalibration (Id INTEGER PRIMARY KEY, ModelType INTEGER)`,
		`CREATE TABLE TimsCalibration (Id INTEGER PRIMARY KEY, ModelType INTEGER)`,
		`CREATE TABLE FrameMsmsInfo (Frame INTEGER PRIMARY KEY, Parent INTEGER)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatal(err)
		}
	}
	for id := 1; id <= numFrames; id++ {
		msType := core.MsTypeFragmentDIA
		if id%2 == 1 {
			msType = core.MsTypePrecursor
		}
		if _, err := db.Exec(`INSERT INTO Frames VALUES (?, ?, 9, ?, 0, 0, 0, 32, 0)`,
			id, float64(id)*0.1, msType); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := db.Exec(`INSERT INTO Segments VALUES (1, 1, ?)`, numFrames); err != nil {
		t.Fatal(err)
	}
	for k, v := range map[string]string{
		"OneOverK0AcqRangeLower": "0.6",
		"OneOverK0AcqRangeUpper": "1.6",
		"MzAcqRangeLower":        "100",
		"MzAcqRangeUpper":        "1700",
	} {
		if _, err := db.Exec(`INSERT INTO GlobalMetadata VALUES (?, ?)`, k, v); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := db.Exec(`INSERT INTO MzCalibration VALUES (1, 1)`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO TimsCalibration VALUES (1, 2)`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	template, err := tdf.OpenDataset(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer template.Close()

	w, err := tdf.NewWriter(template, tdf.WriterConfig{Dir: t.TempDir(), Name: "ref.d"})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	for id := int64(1); id <= int64(numFrames); id++ {
		msType := core.MsTypeFragmentDIA
		if id%2 == 1 {
			msType = core.MsTypePrecursor
		}
		f := &core.Frame{
			FrameID:       id,
			MsType:        msType,
			RetentionTime: float64(id) * 0.1,
			Scan:          []int32{0, 0},
			Mobility:      []float64{1.4, 1.0},
			Tof:           []int32{0, 0},
			Mz:            []float64{300 + float64(id), 800 + float64(id)},
			Intensity:     []float64{float64(10 * id), float64(20 * id)},
		}
		if err := w.WriteFrame(f, 9); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.WriteFrameMetaData(); err != nil {
		t.Fatal(err)
	}

	ds, err := tdf.OpenDataset(w.Path())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ds.Close() })
	return ds
}

func TestDatasetSamplerPrecursor(t *testing.T) {
	ds := referenceDataset(t, 6)
	s := NewDatasetSampler(ds, nil, 1)

	f, err := s.SamplePrecursorSignal(2, 40, 1)
	if err != nil {
		t.Fatalf("SamplePrecursorSignal() error = %v", err)
	}
	if f.NumPeaks() == 0 {
		t.Fatal("sampled background has no peaks")
	}
	if got := f.MaxIntensity(); math.Abs(got-40) > 1e-9 {
		t.Errorf("MaxIntensity() = %g, want the rescale ceiling 40", got)
	}
	if err := f.Validate(); err != nil {
		t.Errorf("sampled frame invalid: %v", err)
	}
}

func TestDatasetSamplerFragmentGroups(t *testing.T) {
	ds := referenceDataset(t, 6)
	windowGroupOf := map[int64]int64{2: 1, 4: 1, 6: 2}
	s := NewDatasetSampler(ds, windowGroupOf, 1)

	f, err := s.SampleFragmentSignal(2, 1, 30, 1)
	if err != nil {
		t.Fatalf("SampleFragmentSignal() error = %v", err)
	}
	if f.NumPeaks() == 0 {
		t.Fatal("sampled background has no peaks")
	}

	if _, err := s.SampleFragmentSignal(2, 99, 30, 1); err == nil {
		t.Error("expected error for an unknown window group")
	}
}

func TestDatasetSamplerClampsPoolSize(t *testing.T) {
	ds := referenceDataset(t, 4)
	s := NewDatasetSampler(ds, nil, 1)

	// more frames requested than MS1 frames exist
	if _, err := s.SamplePrecursorSignal(100, 30, 1); err != nil {
		t.Errorf("SamplePrecursorSignal() error = %v, want pool clamp", err)
	}
}

func TestDatasetSamplerDeterministic(t *testing.T) {
	ds := referenceDataset(t, 6)

	a, err := NewDatasetSampler(ds, nil, 7).SamplePrecursorSignal(2, 30, 0.8)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewDatasetSampler(ds, nil, 7).SamplePrecursorSignal(2, 30, 0.8)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("identical seeds produced different background frames")
	}
}
