package tdf

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func openMemoryLikeDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), name))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTableCopy(t *testing.T) {
	src := openMemoryLikeDB(t, "src.tdf")
	dst := openMemoryLikeDB(t, "dst.tdf")

	if _, err := src.Exec(`CREATE TABLE GlobalMetadata (Key TEXT, Value TEXT)`); err != nil {
		t.Fatal(err)
	}
	rows := map[string]string{
		"MzAcqRangeLower": "100",
		"MzAcqRangeUpper": "1700",
		"Description":     "copied table",
	}
	for k, v := range rows {
		if _, err := src.Exec(`INSERT INTO GlobalMetadata VALUES (?, ?)`, k, v); err != nil {
			t.Fatal(err)
		}
	}

	if err := CopyTable(src, dst, "GlobalMetadata"); err != nil {
		t.Fatalf("CopyTable() error = %v", err)
	}

	copied, err := ReadTable(dst, "GlobalMetadata")
	if err != nil {
		t.Fatalf("ReadTable(dst) error = %v", err)
	}
	if len(copied.Rows) != len(rows) {
		t.Fatalf("copied %d rows, want %d", len(copied.Rows), len(rows))
	}
	got, err := keyValueMap(copied)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range rows {
		if got[k] != v {
			t.Errorf("copied %s = %q, want %q", k, got[k], v)
		}
	}
}

func TestTableWriteReplacesExisting(t *testing.T) {
	db := openMemoryLikeDB(t, "replace.tdf")

	first := &Table{
		Name:    "Segments",
		Create:  `CREATE TABLE Segments (Id INTEGER PRIMARY KEY, FirstFrame INTEGER, LastFrame INTEGER)`,
		Columns: []string{"Id", "FirstFrame", "LastFrame"},
		Rows:    [][]any{{int64(1), int64(1), int64(10)}},
	}
	if err := first.Write(db); err != nil {
		t.Fatal(err)
	}

	second := &Table{
		Name:    first.Name,
		Create:  first.Create,
		Columns: first.Columns,
		Rows:    [][]any{{int64(1), int64(1), int64(99)}},
	}
	if err := second.Write(db); err != nil {
		t.Fatal(err)
	}

	var count, lastFrame int64
	if err := db.QueryRow(`SELECT COUNT(*), MAX(LastFrame) FROM Segments`).Scan(&count, &lastFrame); err != nil {
		t.Fatal(err)
	}
	if count != 1 || lastFrame != 99 {
		t.Errorf("after rewrite: %d rows, LastFrame %d; want 1 row, LastFrame 99", count, lastFrame)
	}
}

func TestReadTableMissing(t *testing.T) {
	db := openMemoryLikeDB(t, "empty.tdf")
	if _, err := db.Exec(`CREATE TABLE Anchor (Id INTEGER)`); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadTable(db, "NoSuchTable"); err == nil {
		t.Error("expected error reading a missing table")
	}
}

func TestHasTable(t *testing.T) {
	db := openMemoryLikeDB(t, "probe.tdf")
	if _, err := db.Exec(`CREATE TABLE Frames (Id INTEGER)`); err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		name string
		want bool
	}{
		{"Frames", true},
		{"DiaFrameMsMsInfo", false},
	} {
		got, err := HasTable(db, tt.name)
		if err != nil {
			t.Fatalf("HasTable(%s) error = %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("HasTable(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestValueCoercions(t *testing.T) {
	if got := asInt64([]byte("42")); got != 42 {
		t.Errorf("asInt64([]byte) = %d, want 42", got)
	}
	if got := asInt64(float64(7.9)); got != 7 {
		t.Errorf("asInt64(float64) = %d, want 7", got)
	}
	if got := asFloat64("1.25"); got != 1.25 {
		t.Errorf("asFloat64(string) = %g, want 1.25", got)
	}
	if got := asString(nil); got != "" {
		t.Errorf("asString(nil) = %q, want empty", got)
	}
	if got := asString([]byte("abc")); got != "abc" {
		t.Errorf("asString([]byte) = %q, want abc", got)
	}
}
