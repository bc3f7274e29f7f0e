// Package dataset serializes in-memory record tables to the delimited row
// format GOBNILP reads. The output file keeps a fixed name inside a
// designated data directory so repeated runs overwrite the previous upload.
package dataset

import (
	"os"
	"path/filepath"
	"strings"

	gerrors "github.com/bnkit/gobn/internal/errors"
)

// FileName is the fixed name data files are written under.
const FileName = "userdata.dat"

// DefaultDelimiter separates values within a row unless overridden.
const DefaultDelimiter = ","

// Table is an in-memory dataset. Names is the optional header of variable
// names; when present it is written as the first line and the solver is told
// names are included.
type Table struct {
	Names []string
	Rows  [][]string
}

// Validate checks that every row has the same width, and that the header (if
// any) matches it.
func (t *Table) Validate() error {
	if len(t.Rows) == 0 {
		return gerrors.New(gerrors.CategoryDataset, gerrors.SeverityFatal, "dataset has no rows")
	}
	width := len(t.Rows[0])
	if len(t.Names) > 0 && len(t.Names) != width {
		return gerrors.New(gerrors.CategoryDataset, gerrors.SeverityFatal, "header width does not match rows").
			WithContext("names", len(t.Names)).
			WithContext("columns", width)
	}
	for i, row := range t.Rows {
		if len(row) != width {
			return gerrors.New(gerrors.CategoryDataset, gerrors.SeverityFatal, "ragged dataset row").
				WithContext("row", i).
				WithContext("want", width).
				WithContext("got", len(row))
		}
	}
	return nil
}

// Writer writes tables into a data directory.
type Writer struct {
	Dir       string
	Delimiter string // empty means DefaultDelimiter
}

// Write serializes the table to <Dir>/userdata.dat, one delimited row per
// record, header first when names are given. It returns the written path and
// the settings the solver needs to read the file back (delimiter, and names
// when a header was written).
func (w *Writer) Write(tbl *Table) (string, map[string]any, error) {
	if err := tbl.Validate(); err != nil {
		return "", nil, err
	}

	delim := w.Delimiter
	if delim == "" {
		delim = DefaultDelimiter
	}

	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", nil, gerrors.Wrap(err, gerrors.CategoryDataset, gerrors.SeverityFatal, "create data directory").
			WithContext("dir", w.Dir)
	}

	var b strings.Builder
	if len(tbl.Names) > 0 {
		b.WriteString(strings.Join(tbl.Names, delim))
		b.WriteByte('\n')
	}
	for _, row := range tbl.Rows {
		b.WriteString(strings.Join(row, delim))
		b.WriteByte('\n')
	}

	path := filepath.Join(w.Dir, FileName)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", nil, gerrors.Wrap(err, gerrors.CategoryDataset, gerrors.SeverityFatal, "write data file").
			WithContext("path", path)
	}

	// Quoting convention is preserved by the settings patcher itself.
	updates := map[string]any{"delimiter": delim}
	if len(tbl.Names) > 0 {
		updates["names"] = "TRUE"
	}
	return path, updates, nil
}
