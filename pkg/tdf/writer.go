package tdf

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ChrisMcGann/TDFKey/pkg/core"
)

// ErrFinalized is returned by write operations after the frame table has
// been persisted; a writer session is terminal once finalized.
var ErrFinalized = errors.New("tdf: writer already finalized")

// templateTables are copied verbatim from the template dataset into a new
// dataset at open time.
var templateTables = []string{"MzCalibration", "TimsCalibration", "GlobalMetadata", "FrameMsmsInfo"}

// WriterConfig configures a writer session.
type WriterConfig struct {
	// Dir is the parent directory the dataset directory is created in.
	Dir string
	// Name is the dataset directory name, conventionally ending in ".d".
	Name string
	// HeaderBytes is the reserved zero-filled region at the start of
	// analysis.tdf_bin. Defaults to DefaultHeaderBytes.
	HeaderBytes int
	// UseTemplateFrameOne makes every frame copy its metadata row from the
	// template's first frame and discretize with the template's frame 1
	// calibration, instead of addressing the template by the written
	// frame's own id.
	UseTemplateFrameOne bool
	// Threads bounds the parallel compression of batched writes.
	// Defaults to 4.
	Threads int
}

// Writer builds a new raw dataset against a template: it copies the
// template's calibration tables, compresses and appends frames to the
// binary container, accumulates one metadata row per frame, and persists
// the frame and segment tables in a single finalize step.
//
// A session moves through three states: opening (NewWriter), writing
// (WriteFrame / WriteFrames, repeatable), and finalized
// (WriteFrameMetaData, terminal). Opening over an existing dataset
// truncates it without warning.
type Writer struct {
	template *Dataset
	cfg      WriterConfig

	fullPath string
	db       *sql.DB
	log      *AppendLog
	comp     *Compressor

	frameRows [][]any
	finalized bool
}

// NewWriter opens a writer session for a new dataset under
// cfg.Dir/cfg.Name, seeded from the template dataset's calibration
// metadata.
func NewWriter(template *Dataset, cfg WriterConfig) (*Writer, error) {
	if cfg.Name == "" {
		cfg.Name = "RAW.d"
	}
	if cfg.HeaderBytes == 0 {
		cfg.HeaderBytes = DefaultHeaderBytes
	}
	if cfg.Threads < 1 {
		cfg.Threads = 4
	}

	w := &Writer{
		template: template,
		cfg:      cfg,
		fullPath: filepath.Join(cfg.Dir, cfg.Name),
	}

	if err := os.MkdirAll(w.fullPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create dataset directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(w.fullPath, MetadataFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}
	w.db = db

	for _, name := range templateTables {
		if err := CopyTable(template.db, db, name); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to copy template table: %w", err)
		}
	}

	w.log, err = OpenAppendLog(filepath.Join(w.fullPath, BinaryFileName), cfg.HeaderBytes)
	if err != nil {
		db.Close()
		return nil, err
	}

	var calibrationFrameID int64
	if cfg.UseTemplateFrameOne {
		calibrationFrameID = 1
	}
	w.comp = NewCompressor(template.transform, template.numScans, calibrationFrameID)

	return w, nil
}

// Path returns the dataset directory being written.
func (w *Writer) Path() string { return w.fullPath }

// Position returns the current append cursor of the binary container.
func (w *Writer) Position() int64 { return w.log.Position() }

// buildFrameRow copies the template metadata row addressed by the frame id
// (1-based; row 0 under UseTemplateFrameOne) and overwrites the per-frame
// fields. A frame id beyond the template's frame table is fatal.
func (w *Writer) buildFrameRow(f *core.Frame, scanMode int, offset int64) ([]any, error) {
	t := w.template.frameTable

	idx := 0
	if !w.cfg.UseTemplateFrameOne {
		idx = int(f.FrameID) - 1
	}
	if idx < 0 || idx >= len(t.Rows) {
		return nil, fmt.Errorf("frame id %d exceeds template frame table (%d rows)",
			f.FrameID, len(t.Rows))
	}

	row := append([]any(nil), t.Rows[idx]...)
	set := func(column string, v any) error {
		i := t.ColumnIndex(column)
		if i < 0 {
			return fmt.Errorf("template frames table is missing column %s", column)
		}
		row[i] = v
		return nil
	}

	fields := []struct {
		column string
		value  any
	}{
		{"Id", f.FrameID},
		{"Time", f.RetentionTime},
		{"ScanMode", int64(scanMode)},
		{"MsMsType", int64(f.MsType)},
		{"TimsId", offset},
		{"MaxIntensity", int64(f.MaxIntensity())},
		{"SummedIntensities", int64(f.SummedIntensity())},
		{"NumScans", int64(w.template.numScans)},
		{"NumPeaks", int64(f.NumPeaks())},
	}
	for _, fv := range fields {
		if err := set(fv.column, fv.value); err != nil {
			return nil, err
		}
	}
	return row, nil
}

// WriteFrame compresses and appends one frame and records its metadata
// row. The row's TimsId is the offset at which the payload was appended;
// it is recorded only after the append succeeded.
func (w *Writer) WriteFrame(f *core.Frame, scanMode int) error {
	if w.finalized {
		return ErrFinalized
	}
	blob, err := w.comp.Compress(f)
	if err != nil {
		return err
	}
	return w.appendFrame(f, scanMode, blob)
}

// WriteFrames writes a batch of frames. Compression runs in parallel
// (bounded by the configured thread count) but frames are appended in
// input order, so the resulting container bytes and metadata rows are
// identical to per-frame writes.
func (w *Writer) WriteFrames(frames []*core.Frame, scanMode int) error {
	if w.finalized {
		return ErrFinalized
	}
	blobs, err := w.comp.CompressMany(frames, w.cfg.Threads)
	if err != nil {
		return err
	}
	for i, f := range frames {
		if err := w.appendFrame(f, scanMode, blobs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) appendFrame(f *core.Frame, scanMode int, blob []byte) error {
	// build the row first so a template-index error aborts before any bytes
	// land in the container; the row is recorded only after the append
	// succeeded
	row, err := w.buildFrameRow(f, scanMode, w.log.Position())
	if err != nil {
		return err
	}
	if _, err := w.log.Append(blob); err != nil {
		return err
	}
	w.frameRows = append(w.frameRows, row)
	return nil
}

// WriteFrameMetaData finalizes the session: it persists the accumulated
// rows as the Frames table, sets the one-row Segments table's LastFrame to
// the largest written frame id, and rejects any further writes.
func (w *Writer) WriteFrameMetaData() error {
	if w.finalized {
		return ErrFinalized
	}
	if len(w.frameRows) == 0 {
		return errors.New("tdf: no frames written")
	}

	t := w.template.frameTable
	frames := &Table{
		Name:    "Frames",
		Create:  t.Create,
		Columns: t.Columns,
		Rows:    w.frameRows,
	}
	if err := frames.Write(w.db); err != nil {
		return err
	}

	idCol := t.ColumnIndex("Id")
	var lastFrame int64
	for _, row := range w.frameRows {
		if id := asInt64(row[idCol]); id > lastFrame {
			lastFrame = id
		}
	}

	segments, err := ReadTable(w.template.db, "Segments")
	if err != nil {
		return err
	}
	lf := segments.ColumnIndex("LastFrame")
	if lf < 0 {
		return errors.New("tdf: template segments table is missing LastFrame")
	}
	for _, row := range segments.Rows {
		row[lf] = lastFrame
	}
	if err := segments.Write(w.db); err != nil {
		return err
	}

	if err := w.log.Sync(); err != nil {
		return fmt.Errorf("failed to sync binary file: %w", err)
	}
	w.finalized = true
	return nil
}

// WriteDiaMsMsInfo persists the frame to window-group assignment table,
// replacing any existing one.
func (w *Writer) WriteDiaMsMsInfo(info []DiaMsMsInfo) error {
	t := &Table{
		Name:    "DiaFrameMsMsInfo",
		Create:  `CREATE TABLE "DiaFrameMsMsInfo" (Frame INTEGER PRIMARY KEY, WindowGroup INTEGER NOT NULL)`,
		Columns: []string{"Frame", "WindowGroup"},
	}
	for _, row := range info {
		t.Rows = append(t.Rows, []any{row.Frame, row.WindowGroup})
	}
	return t.Write(w.db)
}

// WriteDiaMsMsWindows persists the isolation window definition table,
// replacing any existing one.
func (w *Writer) WriteDiaMsMsWindows(windows []DiaMsMsWindow) error {
	t := &Table{
		Name: "DiaFrameMsMsWindows",
		Create: `CREATE TABLE "DiaFrameMsMsWindows" (WindowGroup INTEGER NOT NULL, ScanNumBegin INTEGER NOT NULL, ` +
			`ScanNumEnd INTEGER NOT NULL, IsolationMz REAL NOT NULL, IsolationWidth REAL NOT NULL, ` +
			`CollisionEnergy REAL NOT NULL)`,
		Columns: []string{"WindowGroup", "ScanNumBegin", "ScanNumEnd",
			"IsolationMz", "IsolationWidth", "CollisionEnergy"},
	}
	for _, row := range windows {
		t.Rows = append(t.Rows, []any{row.WindowGroup, row.ScanNumBegin, row.ScanNumEnd,
			row.IsolationMz, row.IsolationWidth, row.CollisionEnergy})
	}
	return t.Write(w.db)
}

// Close releases the binary container and metadata store handles. It does
// not finalize: an unfinalized session leaves the dataset without a frame
// table and therefore unusable.
func (w *Writer) Close() error {
	var firstErr error
	if err := w.log.Close(); err != nil {
		firstErr = err
	}
	if err := w.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
