package sheet

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// PreviewData is the payload handed from the upload flow to the editor.
type PreviewData struct {
	Headers  []string `json:"headers"`
	Rows     [][]Cell `json:"rows"`
	FileName string   `json:"fileName"`
	FileType string   `json:"fileType"`
	RowCount int      `json:"rowCount"`
}

// Preview captures the table as a transfer payload.
func (t *Table) Preview(fileName, fileType string) PreviewData {
	rows := make([][]Cell, len(t.rows))
	for i, r := range t.rows {
		rows[i] = r.Cells
	}
	return PreviewData{
		Headers:  t.headers,
		Rows:     rows,
		FileName: fileName,
		FileType: fileType,
		RowCount: len(rows),
	}
}

// Table rebuilds a table from the payload. RowCount is recomputed from Rows.
func (p PreviewData) Table() *Table {
	return NewTable(p.Headers, p.Rows)
}

// WritePreview encodes p as JSON.
func WritePreview(w io.Writer, p PreviewData) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

// ReadPreview decodes a payload written by WritePreview.
func ReadPreview(r io.Reader) (PreviewData, error) {
	var p PreviewData
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return PreviewData{}, fmt.Errorf("failed to load preview data: %w", err)
	}
	if len(p.Headers) == 0 && len(p.Rows) == 0 {
		return PreviewData{}, ErrEmptyFile
	}
	return p, nil
}

// LoadFile reads a CSV or XLSX file, or a JSON preview payload written by
// WritePreview. It returns the table and the name of the spreadsheet it
// came from.
func LoadFile(name string) (*Table, string, error) {
	if Ext(name) != "json" {
		t, err := ParseFile(name)
		return t, filepath.Base(name), err
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", name, err)
	}
	defer f.Close()
	p, err := ReadPreview(f)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", name, err)
	}
	source := filepath.Base(p.FileName)
	if _, err := FormatOf(Ext(source)); err != nil {
		source = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)) + ".csv"
	}
	return p.Table(), source, nil
}
