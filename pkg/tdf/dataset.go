package tdf

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ChrisMcGann/TDFKey/pkg/codec"
	"github.com/ChrisMcGann/TDFKey/pkg/core"
	"github.com/ChrisMcGann/TDFKey/pkg/transform"
)

// Global metadata keys every readable dataset must carry.
const (
	keyImLower = "OneOverK0AcqRangeLower"
	keyImUpper = "OneOverK0AcqRangeUpper"
	keyMzLower = "MzAcqRangeLower"
	keyMzUpper = "MzAcqRangeUpper"

	keyDigitizerSamples = "DigitizerNumSamples"
)

// FrameMeta is the typed view of one Frames table row. TimsID is the byte
// offset of the frame's compressed payload inside analysis.tdf_bin.
type FrameMeta struct {
	ID                int64
	Time              float64
	ScanMode          int64
	MsMsType          int64
	TimsID            int64
	MaxIntensity      int64
	SummedIntensities int64
	NumScans          int64
	NumPeaks          int64
}

// Dataset is the read side of a TIMS-TOF raw dataset. All metadata is
// loaded once at open time; frame payloads are read on demand from the
// binary container. The dataset exclusively owns its coordinate transform
// binding.
type Dataset struct {
	path    string
	db      *sql.DB
	bin     *os.File
	binPath string

	frameTable *Table
	metas      []FrameMeta
	metaByID   map[int64]int

	global map[string]string

	imLower, imUpper float64
	mzLower, mzUpper float64
	numScans         int

	precursorFrames []int64
	fragmentFrames  []int64

	transform transform.CoordinateTransform

	cursor int64
}

// OpenDataset opens the dataset directory at path (a `.d` directory
// containing analysis.tdf and analysis.tdf_bin), loading the frame table
// and global metadata eagerly. Missing or malformed acquisition-range
// metadata is fatal at open time.
func OpenDataset(path string) (*Dataset, error) {
	metaPath := filepath.Join(path, MetadataFileName)
	if _, err := os.Stat(metaPath); err != nil {
		return nil, fmt.Errorf("no metadata store at %s: %w", metaPath, err)
	}

	db, err := sql.Open("sqlite3", metaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}

	ds := &Dataset{
		path:    path,
		db:      db,
		binPath: filepath.Join(path, BinaryFileName),
		cursor:  1,
	}
	if err := ds.load(); err != nil {
		db.Close()
		return nil, err
	}
	return ds, nil
}

func (ds *Dataset) load() error {
	var err error
	ds.frameTable, err = ReadTable(ds.db, "Frames")
	if err != nil {
		return err
	}
	ds.metas, err = parseFrameMetas(ds.frameTable)
	if err != nil {
		return err
	}
	sort.Slice(ds.metas, func(i, j int) bool { return ds.metas[i].ID < ds.metas[j].ID })

	ds.metaByID = make(map[int64]int, len(ds.metas))
	for i, m := range ds.metas {
		ds.metaByID[m.ID] = i
		if m.MsMsType == core.MsTypePrecursor {
			ds.precursorFrames = append(ds.precursorFrames, m.ID)
		} else {
			ds.fragmentFrames = append(ds.fragmentFrames, m.ID)
		}
		if int(m.NumScans) > ds.numScans {
			ds.numScans = int(m.NumScans)
		}
	}

	globalTable, err := ReadTable(ds.db, "GlobalMetadata")
	if err != nil {
		return err
	}
	ds.global, err = keyValueMap(globalTable)
	if err != nil {
		return err
	}

	if ds.imLower, err = ds.globalFloat(keyImLower); err != nil {
		return err
	}
	if ds.imUpper, err = ds.globalFloat(keyImUpper); err != nil {
		return err
	}
	if ds.mzLower, err = ds.globalFloat(keyMzLower); err != nil {
		return err
	}
	if ds.mzUpper, err = ds.globalFloat(keyMzUpper); err != nil {
		return err
	}

	tofBins := transform.DefaultTofBins
	if s, ok := ds.global[keyDigitizerSamples]; ok {
		if v, err := strconv.Atoi(s); err == nil && v > 1 {
			tofBins = v
		}
	}
	if ds.numScans < 2 {
		return fmt.Errorf("dataset %s has no usable scan count", ds.path)
	}
	ds.transform, err = transform.NewLinearCalibration(
		ds.mzLower, ds.mzUpper, ds.imLower, ds.imUpper, ds.numScans, tofBins)
	if err != nil {
		return fmt.Errorf("failed to build coordinate transform: %w", err)
	}
	return nil
}

func parseFrameMetas(t *Table) ([]FrameMeta, error) {
	required := []string{"Id", "Time", "ScanMode", "MsMsType", "TimsId",
		"MaxIntensity", "SummedIntensities", "NumScans", "NumPeaks"}
	idx := make(map[string]int, len(required))
	for _, name := range required {
		i := t.ColumnIndex(name)
		if i < 0 {
			return nil, fmt.Errorf("frames table is missing column %s", name)
		}
		idx[name] = i
	}

	metas := make([]FrameMeta, len(t.Rows))
	for i, row := range t.Rows {
		metas[i] = FrameMeta{
			ID:                asInt64(row[idx["Id"]]),
			Time:              asFloat64(row[idx["Time"]]),
			ScanMode:          asInt64(row[idx["ScanMode"]]),
			MsMsType:          asInt64(row[idx["MsMsType"]]),
			TimsID:            asInt64(row[idx["TimsId"]]),
			MaxIntensity:      asInt64(row[idx["MaxIntensity"]]),
			SummedIntensities: asInt64(row[idx["SummedIntensities"]]),
			NumScans:          asInt64(row[idx["NumScans"]]),
			NumPeaks:          asInt64(row[idx["NumPeaks"]]),
		}
	}
	return metas, nil
}

func keyValueMap(t *Table) (map[string]string, error) {
	ki := t.ColumnIndex("Key")
	vi := t.ColumnIndex("Value")
	if ki < 0 || vi < 0 {
		return nil, fmt.Errorf("table %s is not a key/value table", t.Name)
	}
	m := make(map[string]string, len(t.Rows))
	for _, row := range t.Rows {
		m[asString(row[ki])] = asString(row[vi])
	}
	return m, nil
}

func (ds *Dataset) globalFloat(key string) (float64, error) {
	s, ok := ds.global[key]
	if !ok {
		return 0, fmt.Errorf("global metadata is missing %s", key)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("global metadata %s is not a float: %w", key, err)
	}
	return v, nil
}

// Path returns the dataset directory.
func (ds *Dataset) Path() string { return ds.path }

// FrameCount returns the number of frames in the dataset.
func (ds *Dataset) FrameCount() int { return len(ds.metas) }

// NumScans returns the dataset's scan axis resolution.
func (ds *Dataset) NumScans() int { return ds.numScans }

// ImLower returns the lower end of the inverse mobility acquisition range.
func (ds *Dataset) ImLower() float64 { return ds.imLower }

// ImUpper returns the upper end of the inverse mobility acquisition range.
func (ds *Dataset) ImUpper() float64 { return ds.imUpper }

// MzLower returns the lower end of the m/z acquisition range.
func (ds *Dataset) MzLower() float64 { return ds.mzLower }

// MzUpper returns the upper end of the m/z acquisition range.
func (ds *Dataset) MzUpper() float64 { return ds.mzUpper }

// Description returns the free-text dataset description, if present.
func (ds *Dataset) Description() string { return ds.global["Description"] }

// GlobalMetadata returns the key/value global metadata map.
func (ds *Dataset) GlobalMetadata() map[string]string { return ds.global }

// Transform returns the dataset's coordinate transform binding.
func (ds *Dataset) Transform() transform.CoordinateTransform { return ds.transform }

// PrecursorFrames returns the ids of all MS1 frames (MsMsType == 0),
// ascending. Computed once at open time.
func (ds *Dataset) PrecursorFrames() []int64 { return ds.precursorFrames }

// FragmentFrames returns the ids of all MS2 frames (MsMsType > 0),
// ascending. Computed once at open time.
func (ds *Dataset) FragmentFrames() []int64 { return ds.fragmentFrames }

// FrameMeta returns the metadata row for a frame id.
func (ds *Dataset) FrameMeta(id int64) (FrameMeta, error) {
	i, ok := ds.metaByID[id]
	if !ok {
		return FrameMeta{}, fmt.Errorf("no frame with id %d", id)
	}
	return ds.metas[i], nil
}

// FrameMetas returns all frame metadata rows in ascending id order.
func (ds *Dataset) FrameMetas() []FrameMeta { return ds.metas }

// AverageCycleLength returns the mean retention time difference between
// consecutive frames, in seconds.
func (ds *Dataset) AverageCycleLength() float64 {
	if len(ds.metas) < 2 {
		return 0
	}
	sum := 0.0
	for i := 1; i < len(ds.metas); i++ {
		sum += ds.metas[i].Time - ds.metas[i-1].Time
	}
	return sum / float64(len(ds.metas)-1)
}

// GetFrame reads, decompresses and coordinate-lifts one frame.
func (ds *Dataset) GetFrame(id int64) (*core.Frame, error) {
	meta, err := ds.FrameMeta(id)
	if err != nil {
		return nil, err
	}
	if ds.bin == nil {
		ds.bin, err = os.Open(ds.binPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open binary file: %w", err)
		}
	}

	var prefix [codec.PrefixBytes]byte
	if _, err := ds.bin.ReadAt(prefix[:], meta.TimsID); err != nil {
		return nil, fmt.Errorf("failed to read payload prefix of frame %d: %w", id, err)
	}
	length, err := codec.PayloadLength(prefix[:])
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", id, err)
	}
	blob := make([]byte, length)
	if _, err := ds.bin.ReadAt(blob, meta.TimsID); err != nil {
		return nil, fmt.Errorf("failed to read payload of frame %d: %w", id, err)
	}

	scan, tof, intensity, _, err := codec.Decode(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame %d: %w", id, err)
	}

	fIntensity := make([]float64, len(intensity))
	for i, v := range intensity {
		fIntensity[i] = float64(v)
	}
	// arrays are consistent by construction, no re-validation needed
	return &core.Frame{
		FrameID:       id,
		MsType:        int(meta.MsMsType),
		RetentionTime: meta.Time,
		Scan:          scan,
		Mobility:      ds.transform.ScanToInverseMobility(id, scan),
		Tof:           tof,
		Mz:            ds.transform.TofToMz(id, tof),
		Intensity:     fIntensity,
	}, nil
}

// GetSlice reads the given frames in order and returns them as a slice.
func (ds *Dataset) GetSlice(ids []int64) (*core.Slice, error) {
	s := &core.Slice{Frames: make([]*core.Frame, 0, len(ids))}
	for _, id := range ids {
		f, err := ds.GetFrame(id)
		if err != nil {
			return nil, err
		}
		s.Frames = append(s.Frames, f)
	}
	return s, nil
}

// Next returns the next frame of the sequential iteration, ascending from
// frame id 1 through FrameCount. At the end it returns io.EOF and resets
// the cursor, so a fresh iteration can restart.
func (ds *Dataset) Next() (*core.Frame, error) {
	if ds.cursor > int64(ds.FrameCount()) {
		ds.cursor = 1
		return nil, io.EOF
	}
	f, err := ds.GetFrame(ds.cursor)
	if err != nil {
		return nil, err
	}
	ds.cursor++
	return f, nil
}

// Close releases the metadata store and binary file handles.
func (ds *Dataset) Close() error {
	var firstErr error
	if ds.bin != nil {
		if err := ds.bin.Close(); err != nil {
			firstErr = err
		}
		ds.bin = nil
	}
	if err := ds.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
