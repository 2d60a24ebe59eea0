// Package tdf implements reading and writing of TIMS-TOF raw datasets:
// a `.d` directory holding relational metadata in analysis.tdf (SQLite)
// and compressed frame payloads in the append-only analysis.tdf_bin file.
package tdf

import (
	"fmt"
	"os"
)

// BinaryFileName is the frame payload container inside a dataset directory.
const BinaryFileName = "analysis.tdf_bin"

// MetadataFileName is the SQLite metadata store inside a dataset directory.
const MetadataFileName = "analysis.tdf"

// DefaultHeaderBytes is the size of the zero-filled reserved region at the
// start of analysis.tdf_bin.
const DefaultHeaderBytes = 64

// AppendLog owns the analysis.tdf_bin write path: an append-only file with
// a reserved zero-filled header and a position cursor equal to the current
// file length. Offsets returned by Append are stable forever; the file is
// never compacted or edited in place.
type AppendLog struct {
	f   *os.File
	pos int64
}

// OpenAppendLog creates (or truncates) the log at path, writes headerBytes
// zero bytes, and sets the cursor to headerBytes.
func OpenAppendLog(path string, headerBytes int) (*AppendLog, error) {
	if headerBytes < 0 {
		return nil, fmt.Errorf("header size must be non-negative, got %d", headerBytes)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create binary file: %w", err)
	}
	if headerBytes > 0 {
		if _, err := f.Write(make([]byte, headerBytes)); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write binary header: %w", err)
		}
	}
	return &AppendLog{f: f, pos: int64(headerBytes)}, nil
}

// Append writes b at the end of the log and returns the offset at which
// the write began. On error the session must be considered failed: the
// file is left at whatever length the OS actually wrote and the cursor is
// no longer trustworthy.
func (l *AppendLog) Append(b []byte) (int64, error) {
	offset := l.pos
	if _, err := l.f.Write(b); err != nil {
		return 0, fmt.Errorf("failed to append %d bytes at offset %d: %w", len(b), offset, err)
	}
	l.pos += int64(len(b))
	return offset, nil
}

// Position returns the current cursor, i.e. the offset the next Append
// will return.
func (l *AppendLog) Position() int64 {
	return l.pos
}

// Sync flushes the log to stable storage.
func (l *AppendLog) Sync() error {
	return l.f.Sync()
}

// Close closes the underlying file.
func (l *AppendLog) Close() error {
	return l.f.Close()
}
