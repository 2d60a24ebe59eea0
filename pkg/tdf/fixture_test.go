package tdf

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/ChrisMcGann/TDFKey/pkg/core"
)

// newTemplateDataset builds a minimal on-disk template dataset with
// numFrames frame rows and the calibration tables a writer session copies.
func newTemplateDataset(t *testing.T, numFrames, numScans int) *Dataset {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "template.d")
	path := buildTemplate(t, dir, numFrames, numScans)

	ds, err := OpenDataset(path)
	if err != nil {
		t.Fatalf("OpenDataset(template) error = %v", err)
	}
	t.Cleanup(func() { ds.Close() })
	return ds
}

func buildTemplate(t *testing.T, dir string, numFrames, numScans int) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	db, err := sql.Open("sqlite3", filepath.Join(dir, MetadataFileName))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE Frames (Id INTEGER PRIMARY KEY, Time REAL, ScanMode INTEGER,
			MsMsType INTEGER, TimsId INTEGER, MaxIntensity INTEGER,
			SummedIntensities INTEGER, NumScans INTEGER, NumPeaks INTEGER,
			AccumulationTime REAL)`,
		`CREATE TABLE Segments (Id INTEGER PRIMARY KEY, FirstFrame INTEGER, LastFrame INTEGER)`,
		`CREATE TABLE GlobalMetadata (Key TEXT, Value TEXT)`,
		`CREATE TABLE MzCalibration (Id INTEGER PRIMARY KEY, ModelType INTEGER, DigitizerTimebase REAL, DigitizerDelay REAL)`,
		`CREATE TABLE TimsCalibration (Id INTEGER PRIMARY KEY, ModelType INTEGER, C0 REAL, C1 REAL)`,
		`CREATE TABLE FrameMsmsInfo (Frame INTEGER PRIMARY KEY, Parent INTEGER, TriggerMass REAL)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("fixture schema: %v", err)
		}
	}

	for id := 1; id <= numFrames; id++ {
		msType := core.MsTypeFragmentDIA
		if id%2 == 1 {
			msType = core.MsTypePrecursor
		}
		// AccumulationTime encodes the row index so tests can tell which
		// template row a written frame copied from
		_, err := db.Exec(`INSERT INTO Frames VALUES (?, ?, 8, ?, 0, 0, 0, ?, 0, ?)`,
			id, float64(id)*0.1, msType, numScans, 100.0+float64(id))
		if err != nil {
			t.Fatalf("fixture frames: %v", err)
		}
	}
	if _, err := db.Exec(`INSERT INTO Segments VALUES (1, 1, ?)`, numFrames); err != nil {
		t.Fatalf("fixture segments: %v", err)
	}

	meta := map[string]string{
		"OneOverK0AcqRangeLower": "0.6",
		"OneOverK0AcqRangeUpper": "1.6",
		"MzAcqRangeLower":        "100",
		"MzAcqRangeUpper":        "1700",
		"DigitizerNumSamples":    "400000",
		"Description":            "synthetic template",
	}
	for k, v := range meta {
		if _, err := db.Exec(`INSERT INTO GlobalMetadata VALUES (?, ?)`, k, v); err != nil {
			t.Fatalf("fixture metadata: %v", err)
		}
	}

	if _, err := db.Exec(`INSERT INTO MzCalibration VALUES (1, 1, 0.1, 0.0)`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO TimsCalibration VALUES (1, 2, 0.5, 0.01)`); err != nil {
		t.Fatal(err)
	}
	return dir
}

// testFrame builds a valid frame with peaks spread over the acquisition
// ranges of the fixture template.
func testFrame(id int64, msType, numPeaks int) *core.Frame {
	f := &core.Frame{
		FrameID:       id,
		MsType:        msType,
		RetentionTime: float64(id) * 0.5,
	}
	for i := 0; i < numPeaks; i++ {
		f.Scan = append(f.Scan, int32(i*3))
		f.Mobility = append(f.Mobility, 1.5-0.01*float64(i))
		f.Tof = append(f.Tof, 0)
		f.Mz = append(f.Mz, 200+10*float64(id)+float64(i))
		f.Intensity = append(f.Intensity, float64(10*(i+1)))
	}
	return f
}

// writeDataset runs a full writer session over frames and returns the
// finalized dataset path.
func writeDataset(t *testing.T, template *Dataset, frames []*core.Frame, cfg WriterConfig, batched bool) string {
	t.Helper()

	w, err := NewWriter(template, cfg)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	defer w.Close()

	if batched {
		if err := w.WriteFrames(frames, 8); err != nil {
			t.Fatalf("WriteFrames() error = %v", err)
		}
	} else {
		for _, f := range frames {
			if err := w.WriteFrame(f, 8); err != nil {
				t.Fatalf("WriteFrame(%d) error = %v", f.FrameID, err)
			}
		}
	}
	if err := w.WriteFrameMetaData(); err != nil {
		t.Fatalf("WriteFrameMetaData() error = %v", err)
	}
	return w.Path()
}
