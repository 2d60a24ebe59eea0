package tdf

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Table is an in-memory snapshot of one SQLite table: the original CREATE
// statement from sqlite_master plus all rows. It is the unit of the
// template-copy mechanism: calibration and metadata tables are copied
// verbatim from a template dataset into a freshly written one.
type Table struct {
	Name    string
	Create  string
	Columns []string
	Rows    [][]any
}

// ReadTable loads a full table snapshot from db.
func ReadTable(db *sql.DB, name string) (*Table, error) {
	var create string
	err := db.QueryRow(
		"SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", name,
	).Scan(&create)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("table %s does not exist", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read schema of %s: %w", name, err)
	}

	rows, err := db.Query("SELECT * FROM " + quoteIdent(name))
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", name, err)
	}

	t := &Table{Name: name, Create: create, Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row of %s: %w", name, err)
		}
		for i, v := range vals {
			// the driver reuses byte buffers between rows
			if b, ok := v.([]byte); ok {
				vals[i] = append([]byte(nil), b...)
			}
		}
		t.Rows = append(t.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate table %s: %w", name, err)
	}
	return t, nil
}

// Write persists the snapshot into db, replacing any existing table of the
// same name. All rows go through one transaction with a single prepared
// statement.
func (t *Table) Write(db *sql.DB) error {
	if _, err := db.Exec("DROP TABLE IF EXISTS " + quoteIdent(t.Name)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", t.Name, err)
	}
	if _, err := db.Exec(t.Create); err != nil {
		return fmt.Errorf("failed to create table %s: %w", t.Name, err)
	}
	if len(t.Rows) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction for %s: %w", t.Name, err)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.Columns)), ", ")
	stmt, err := tx.Prepare(fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(t.Name), joinIdents(t.Columns), placeholders))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert for %s: %w", t.Name, err)
	}
	defer stmt.Close()

	for _, row := range t.Rows {
		if _, err := stmt.Exec(row...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert row into %s: %w", t.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", t.Name, err)
	}
	return nil
}

// ColumnIndex returns the position of a column, or -1 if absent.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// CopyTable reads a table from src and writes it into dst, replacing any
// existing table of the same name.
func CopyTable(src, dst *sql.DB, name string) error {
	t, err := ReadTable(src, name)
	if err != nil {
		return err
	}
	return t.Write(dst)
}

// HasTable reports whether db contains a table with the given name.
func HasTable(db *sql.DB, name string) (bool, error) {
	var n int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to probe table %s: %w", name, err)
	}
	return n > 0, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func joinIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

// asInt64 coerces a scanned SQLite value to int64. SQLite is dynamically
// typed, so numeric columns can surface as int64, float64 or text.
func asInt64(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case float64:
		return int64(x)
	case []byte:
		n, _ := strconv.ParseInt(string(x), 10, 64)
		return n
	case string:
		n, _ := strconv.ParseInt(x, 10, 64)
		return n
	default:
		return 0
	}
}

// asFloat64 coerces a scanned SQLite value to float64.
func asFloat64(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	case []byte:
		f, _ := strconv.ParseFloat(string(x), 64)
		return f
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	default:
		return 0
	}
}

// asString coerces a scanned SQLite value to string.
func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}
