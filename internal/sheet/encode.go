package sheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	xlsxSheetName = "Sheet1"
)

// Output is a serialized table ready to be written out.
type Output struct {
	Name        string
	ContentType string
	Format      Format
	Data        []byte
}

// OutputFormat returns the family a file called name is saved as: CSV for
// .csv files, XLSX for everything else.
func OutputFormat(name string) Format {
	if Ext(name) == "csv" {
		return FormatCSV
	}
	return FormatXLSX
}

// EditedName replaces the extension of name with _edited.<ext>.
func EditedName(name string, f Format) string {
	base := strings.TrimSuffix(name, path.Ext(name))
	return base + "_edited." + f.String()
}

// Encode serializes t in the family of originalName.
func Encode(t *Table, originalName string) (Output, error) {
	format := OutputFormat(originalName)
	out := Output{Name: EditedName(originalName, format), Format: format}

	var buf bytes.Buffer
	switch format {
	case FormatCSV:
		out.ContentType = ContentTypeCSV
		if err := WriteCSV(&buf, t); err != nil {
			return Output{}, err
		}
	default:
		out.ContentType = ContentTypeXLSX
		if err := WriteXLSX(&buf, t); err != nil {
			return Output{}, err
		}
	}
	out.Data = buf.Bytes()
	return out, nil
}

// WriteCSV writes the header and rows as comma-separated text. Fields with
// a comma, quote or line break are quoted, with embedded quotes doubled.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := writeRecord(w, cw, t.Headers()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range t.Rows() {
		if err := writeRecord(w, cw, r.Strings()); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeRecord writes rec through cw. A record of one empty field would come
// out as a blank line, which readers skip, so it is written as "" instead.
func writeRecord(w io.Writer, cw *csv.Writer, rec []string) error {
	if len(rec) != 1 || rec[0] != "" {
		return cw.Write(rec)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\"\"\n")
	return err
}

// WriteXLSX writes a single-sheet workbook named Sheet1 whose first row is
// the header.
func WriteXLSX(w io.Writer, t *Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(xlsxSheetName)
	if err != nil {
		return fmt.Errorf("create sheet writer: %w", err)
	}

	header := make([]interface{}, len(t.Headers()))
	for i, h := range t.Headers() {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for ri, r := range t.Rows() {
		values := make([]interface{}, len(r.Cells))
		for ci, c := range r.Cells {
			if n, ok := c.Float(); ok {
				values[ci] = n
			} else {
				values[ci] = c.String()
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, ri+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, values); err != nil {
			return fmt.Errorf("write row %d: %w", ri+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
