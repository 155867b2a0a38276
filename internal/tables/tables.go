package tables

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// ErrNotFound reports that no table file exists for a base path.
var ErrNotFound = errors.New("table file not found")

// Table is a parsed tabular artifact. Cell values stay as strings; the
// helpers below coerce to numbers where callers need them.
type Table struct {
	Columns []string
	Records []map[string]string
}

func (t *Table) Empty() bool { return t == nil || len(t.Records) == 0 }

// LowerColumns maps lower-cased column names to the original spelling,
// for case-insensitive feature matching.
func (t *Table) LowerColumns() map[string]string {
	out := make(map[string]string, len(t.Columns))
	for _, c := range t.Columns {
		out[strings.ToLower(c)] = c
	}
	return out
}

// Float parses a cell as a number.
func (t *Table) Float(rec map[string]string, col string) (float64, bool) {
	s, ok := rec[col]
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// JSONRecords converts records to JSON-friendly maps, numbers where cells
// parse as numbers. limit <= 0 means all rows.
func (t *Table) JSONRecords(limit int) []map[string]any {
	n := len(t.Records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]map[string]any, 0, n)
	for _, rec := range t.Records[:n] {
		row := make(map[string]any, len(t.Columns))
		for _, c := range t.Columns {
			s := rec[c]
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && s != "" {
				row[c] = f
			} else {
				row[c] = s
			}
		}
		out = append(out, row)
	}
	return out
}

// FromRows builds a Table from a header row plus data rows.
func FromRows(rows [][]string) *Table {
	if len(rows) == 0 {
		return &Table{}
	}
	header := rows[0]
	t := &Table{Columns: header, Records: make([]map[string]string, 0, len(rows)-1)}
	for _, row := range rows[1:] {
		rec := make(map[string]string, len(header))
		for i, c := range header {
			if i < len(row) {
				rec[c] = row[i]
			}
		}
		t.Records = append(t.Records, rec)
	}
	return t
}

// Magic prefixes for uploaded spreadsheets: zip archives (XLSX) and the
// compound-file binary format (legacy XLS).
var (
	zipMagic  = []byte{0x50, 0x4B, 0x03, 0x04}
	cfbfMagic = []byte{0xD0, 0xCF, 0x11, 0xE0}
)

// Decode parses an uploaded blob. The format is sniffed from leading bytes:
// zip signature means XLSX, CFBF signature means legacy XLS, anything else is
// tried as comma- then semicolon-delimited CSV.
func Decode(b []byte) (*Table, error) {
	switch {
	case bytes.HasPrefix(b, zipMagic):
		return decodeXLSX(b)
	case bytes.HasPrefix(b, cfbfMagic):
		return decodeXLS(b)
	default:
		t, err := decodeCSV(b, ',')
		if err != nil || len(t.Columns) <= 1 {
			if t2, err2 := decodeCSV(b, ';'); err2 == nil && len(t2.Columns) > 1 {
				return t2, nil
			}
		}
		return t, err
	}
}

func decodeCSV(b []byte, sep rune) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(b))
	r.Comma = sep
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	return FromRows(rows), nil
}

func decodeXLSX(b []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	return FromRows(rows), nil
}

func decodeXLS(b []byte) (*Table, error) {
	wb, err := xls.OpenReader(bytes.NewReader(b), "utf-8")
	if err != nil {
		return nil, err
	}
	rows := wb.ReadAllCells(1 << 20)
	return FromRows(rows), nil
}

// ReadAny reads base.(csv|xlsx|xls), first extension that exists wins.
// Returns ErrNotFound when none exist.
func ReadAny(base string) (*Table, error) {
	for _, ext := range []string{".csv", ".xlsx", ".xls"} {
		p := base + ext
		b, err := os.ReadFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		switch ext {
		case ".xlsx":
			return decodeXLSX(b)
		case ".xls":
			return decodeXLS(b)
		default:
			return decodeCSV(b, ',')
		}
	}
	return nil, fmt.Errorf("%w: %s.(csv|xlsx|xls)", ErrNotFound, base)
}

// ReadAnyOptional is ReadAny with silent degradation: nil when the table is
// absent or unreadable.
func ReadAnyOptional(base string) *Table {
	t, err := ReadAny(base)
	if err != nil {
		return nil
	}
	return t
}

// WriteCSV writes the table as CSV.
func WriteCSV(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		return err
	}
	row := make([]string, len(t.Columns))
	for _, rec := range t.Records {
		for i, c := range t.Columns {
			row[i] = rec[c]
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteAllFormats writes base.csv always and base.xlsx best-effort.
func WriteAllFormats(base string, t *Table) error {
	if err := WriteCSV(base+".csv", t); err != nil {
		return err
	}
	_ = writeXLSX(base+".xlsx", t)
	return nil
}

func writeXLSX(path string, t *Table) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, c := range t.Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, c); err != nil {
			return err
		}
	}
	for r, rec := range t.Records {
		for i, c := range t.Columns {
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, rec[c]); err != nil {
				return err
			}
		}
	}
	return f.SaveAs(path)
}

// ReadAll is a convenience for small CSV fixtures in tests and tools.
func ReadAll(r io.Reader) (*Table, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return decodeCSV(b, ',')
}
