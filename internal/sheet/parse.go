package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrEmptyFile is returned when a file yields no rows at all.
	ErrEmptyFile = errors.New("file is empty")
	// ErrUnsupportedType is returned for extensions other than csv and xlsx.
	ErrUnsupportedType = errors.New("unsupported file type, please use CSV or Excel (.xlsx) files")
)

// Format is a file family the editor can read and write.
type Format int

const (
	FormatCSV Format = iota
	FormatXLSX
)

func (f Format) String() string {
	if f == FormatCSV {
		return "csv"
	}
	return "xlsx"
}

// Ext returns the lower-case extension of name without the dot.
func Ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

// FormatOf maps an extension (with or without a leading dot) to a Format.
func FormatOf(ext string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "csv":
		return FormatCSV, nil
	case "xlsx", "xlsm":
		return FormatXLSX, nil
	case "xls":
		return 0, fmt.Errorf("%w: legacy .xls workbooks cannot be read, save the file as .xlsx first", ErrUnsupportedType)
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
}

// Parse turns raw file bytes into a Table. The first row becomes the header.
func Parse(data []byte, ext string) (*Table, error) {
	format, err := FormatOf(ext)
	if err != nil {
		return nil, err
	}
	var records [][]Cell
	switch format {
	case FormatCSV:
		records, err = readCSV(data)
	default:
		records, err = readWorkbook(data)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	headers := make([]string, len(records[0]))
	for i, c := range records[0] {
		headers[i] = c.String()
	}
	return NewTable(headers, records[1:]), nil
}

// ParseFile reads and parses a local file, using its extension.
func ParseFile(name string) (*Table, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return Parse(data, Ext(name))
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func readCSV(data []byte) ([][]Cell, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]Cell
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		records = append(records, Texts(rec...))
	}
	return records, nil
}

func readWorkbook(data []byte) ([][]Cell, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	records := make([][]Cell, 0, len(rows))
	for ri, row := range rows {
		cells := make([]Cell, len(row))
		for ci, v := range row {
			cells[ci] = workbookCell(f, sheet, ci+1, ri+1, v)
		}
		records = append(records, cells)
	}
	return records, nil
}

// workbookCell keeps numeric cells numeric. Numbers are usually stored
// without a type attribute, so an untyped value that parses as a float is a
// number too.
func workbookCell(f *excelize.File, sheet string, col, row int, v string) Cell {
	if v == "" {
		return Text("")
	}
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return Text(v)
	}
	typ, err := f.GetCellType(sheet, name)
	if err != nil {
		return Text(v)
	}
	if typ != excelize.CellTypeNumber && typ != excelize.CellTypeUnset {
		return Text(v)
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return Text(v)
	}
	return Number(n)
}
