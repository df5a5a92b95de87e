package mailmerge

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultKeyColumn is the database column every row must fill unless the
// run configuration names a different one.
const DefaultKeyColumn = "email"

// Row is one recipient record: column name → value.
type Row map[string]string

// Get retrieves a value by column name.
func (r Row) Get(name string) (string, bool) {
	v, ok := r[name]
	return v, ok
}

// Database reads recipient rows from a CSV file, one row per call. The
// header row names the columns; every data row must carry the same number
// of fields and a non-empty value in the key column. Rows are read
// lazily; reopen the file to start over.
type Database struct {
	path      string
	keyColumn string
	file      *os.File
	reader    *csv.Reader
	columns   []string
	row       int // data rows read so far
}

// OpenDatabase opens a CSV database and validates its header row. The
// key column defaults to "email" when keyColumn is empty.
func OpenDatabase(path, keyColumn string) (*Database, error) {
	if keyColumn == "" {
		keyColumn = DefaultKeyColumn
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, path)
		}
		return nil, NewDatabaseError(path, 0, "cannot open file", err)
	}

	// BOMOverride picks the matching UTF-16 decoder when the file opens
	// with a byte-order mark and strips a UTF-8 one.
	decoded := transform.NewReader(f, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	reader := csv.NewReader(decoded)

	header, err := reader.Read()
	if err != nil {
		f.Close()
		if err == io.EOF {
			return nil, NewDatabaseError(path, 0, "empty database", nil)
		}
		return nil, NewDatabaseError(path, 0, "cannot read header row", err)
	}

	seen := make(map[string]bool, len(header))
	hasKey := false
	for _, col := range header {
		if col == "" {
			f.Close()
			return nil, NewDatabaseError(path, 0, "empty column name in header", nil)
		}
		if seen[col] {
			f.Close()
			return nil, NewDatabaseError(path, 0, fmt.Sprintf("duplicate column %q in header", col), nil)
		}
		seen[col] = true
		if col == keyColumn {
			hasKey = true
		}
	}
	if !hasKey {
		f.Close()
		return nil, NewDatabaseError(path, 0, fmt.Sprintf("missing %q column", keyColumn), nil)
	}

	return &Database{
		path:      path,
		keyColumn: keyColumn,
		file:      f,
		reader:    reader,
		columns:   header,
	}, nil
}

// Columns returns the column names in file order.
func (d *Database) Columns() []string {
	return d.columns
}

// KeyColumn returns the column every row must fill.
func (d *Database) KeyColumn() string {
	return d.keyColumn
}

// Next returns the next recipient row, or io.EOF once the database is
// exhausted. Any other failure is a *DatabaseError carrying the 1-based
// data row number.
func (d *Database) Next() (Row, error) {
	failing := d.row + 1

	record, err := d.reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		if errors.Is(err, csv.ErrFieldCount) {
			return nil, NewDatabaseError(d.path, failing,
				fmt.Sprintf("expected %d fields", len(d.columns)), err)
		}
		return nil, NewDatabaseError(d.path, failing, "malformed row", err)
	}
	d.row++

	row := make(Row, len(d.columns))
	for i, col := range d.columns {
		if !readable(record[i]) {
			return nil, NewDatabaseError(d.path, d.row,
				fmt.Sprintf("column %q holds undecodable text", col), nil)
		}
		row[col] = record[i]
	}

	if strings.TrimSpace(row[d.keyColumn]) == "" {
		return nil, NewDatabaseError(d.path, d.row,
			fmt.Sprintf("empty %q column", d.keyColumn), nil)
	}

	return row, nil
}

// Close releases the underlying file.
func (d *Database) Close() error {
	return d.file.Close()
}

// readable reports whether a decoded field is usable text. The decoder
// substitutes U+FFFD for bytes it cannot decode, so either an invalid
// sequence or a substitution marks the field unreadable.
func readable(s string) bool {
	return utf8.ValidString(s) && !strings.ContainsRune(s, utf8.RuneError)
}
