package sheet

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"
)

func rowStrings(t *Table) [][]string {
	out := make([][]string, 0, t.RowCount())
	for _, r := range t.Rows() {
		out = append(out, r.Strings())
	}
	return out
}

func checkWidth(t *testing.T, tbl *Table) {
	t.Helper()
	for i, r := range tbl.Rows() {
		if len(r.Cells) != tbl.Width() {
			t.Fatalf("row %d has %d cells, want %d", i, len(r.Cells), tbl.Width())
		}
	}
}

func TestParseCSV(t *testing.T) {
	data := "\xEF\xBB\xBFname,age\n\nada,36\n\nbob\ncy,41,extra\n"
	tbl, err := Parse([]byte(data), "CSV")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	wantHeaders := []string{"name", "age", "Column 3"}
	if diff := cmp.Diff(wantHeaders, tbl.Headers()); diff != "" {
		t.Fatalf("headers mismatch (-want +got):\n%s", diff)
	}
	wantRows := [][]string{
		{"ada", "36", ""},
		{"bob", "", ""},
		{"cy", "41", "extra"},
	}
	if diff := cmp.Diff(wantRows, rowStrings(tbl)); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
	if tbl.RowCount() != 3 {
		t.Fatalf("RowCount = %d, want 3", tbl.RowCount())
	}
	checkWidth(t, tbl)

	for _, r := range tbl.Rows() {
		for _, c := range r.Cells {
			if c.IsNumber() {
				t.Fatalf("csv cell %q parsed as number", c)
			}
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		ext  string
		want error
	}{
		{"empty csv", "", "csv", ErrEmptyFile},
		{"blank lines", "\n\n\n", ".csv", ErrEmptyFile},
		{"text file", "a,b", "txt", ErrUnsupportedType},
		{"legacy xls", "a,b", "xls", ErrUnsupportedType},
		{"no extension", "a,b", "", ErrUnsupportedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), tt.ext)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Parse error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHeaderOnlyCSV(t *testing.T) {
	tbl, err := Parse([]byte("a,b,c\n"), "csv")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tbl.RowCount() != 0 || tbl.Width() != 3 {
		t.Fatalf("got %d rows x %d cols, want 0 x 3", tbl.RowCount(), tbl.Width())
	}
}

func TestCSVRoundTrip(t *testing.T) {
	orig := NewTable([]string{"plain", "with,comma", `quote"d`}, [][]Cell{
		Texts("1", "a,b", `say "hi"`),
		Texts("", "line\nbreak", "x"),
		{Number(2.5), Text("y"), Text("")},
	})

	var buf bytes.Buffer
	if err := WriteCSV(&buf, orig); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if !strings.Contains(buf.String(), `"say ""hi"""`) {
		t.Fatalf("embedded quotes not doubled:\n%s", buf.String())
	}

	back, err := Parse(buf.Bytes(), "csv")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if diff := cmp.Diff(orig.Headers(), back.Headers()); diff != "" {
		t.Fatalf("headers mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(rowStrings(orig), rowStrings(back)); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestCSVRoundTripSingleEmptyField(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		rows    [][]Cell
	}{
		{"empty row", []string{"name"}, [][]Cell{Texts("a"), Texts(""), Texts("b")}},
		{"empty header", []string{""}, [][]Cell{Texts("x")}},
		{"only empty rows", []string{"n"}, [][]Cell{Texts(""), Texts("")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := NewTable(tt.headers, tt.rows)
			var buf bytes.Buffer
			if err := WriteCSV(&buf, orig); err != nil {
				t.Fatalf("WriteCSV: %v", err)
			}
			back, err := Parse(buf.Bytes(), "csv")
			if err != nil {
				t.Fatalf("Parse(%q): %v", buf.String(), err)
			}
			if diff := cmp.Diff(orig.Headers(), back.Headers()); diff != "" {
				t.Fatalf("headers mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(rowStrings(orig), rowStrings(back)); diff != "" {
				t.Fatalf("rows mismatch for %q (-want +got):\n%s", buf.String(), diff)
			}
		})
	}
}

func TestXLSErrorNamesFormat(t *testing.T) {
	_, err := FormatOf(".xls")
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("FormatOf(.xls) error = %v", err)
	}
	if !strings.Contains(err.Error(), ".xls") {
		t.Fatalf("error %q does not mention .xls", err)
	}
}

func TestXLSXRoundTrip(t *testing.T) {
	orig := NewTable([]string{"id", "name", "note"}, [][]Cell{
		{Number(1), Text("ada"), Text("")},
		{Number(10.5), Text("007"), Text("x")},
	})

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, orig); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}
	back, err := Parse(buf.Bytes(), "xlsx")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if diff := cmp.Diff(orig.Headers(), back.Headers()); diff != "" {
		t.Fatalf("headers mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(rowStrings(orig), rowStrings(back)); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
	checkWidth(t, back)

	if n, ok := back.Row(1).Cells[0].Float(); !ok || n != 10.5 {
		t.Fatalf("numeric cell = %v, %v; want 10.5, true", n, ok)
	}
	if back.Row(1).Cells[1].IsNumber() {
		t.Fatal("text cell 007 came back as a number")
	}
}

func TestXLSXFirstSheetOnly(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "city")
	f.SetCellValue("Sheet1", "B1", "pop")
	f.SetCellValue("Sheet1", "A2", "Oslo")
	f.SetCellValue("Sheet1", "B2", 709000)
	if _, err := f.NewSheet("Ignored"); err != nil {
		t.Fatalf("NewSheet: %v", err)
	}
	f.SetCellValue("Ignored", "A1", "nope")

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	tbl, err := Parse(buf.Bytes(), "xlsx")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if diff := cmp.Diff([]string{"city", "pop"}, tbl.Headers()); diff != "" {
		t.Fatalf("headers mismatch (-want +got):\n%s", diff)
	}
	if !tbl.Row(0).Cells[1].IsNumber() {
		t.Fatal("population should be numeric")
	}
}

func TestXLSXEmptySheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if _, err := Parse(buf.Bytes(), "xlsx"); !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("Parse error = %v, want ErrEmptyFile", err)
	}
}

func TestEncodeNames(t *testing.T) {
	tbl := NewTable([]string{"a"}, [][]Cell{Texts("1")})
	tests := []struct {
		in       string
		wantName string
		wantType string
	}{
		{"report.csv", "report_edited.csv", ContentTypeCSV},
		{"report.CSV", "report_edited.csv", ContentTypeCSV},
		{"book.xlsx", "book_edited.xlsx", ContentTypeXLSX},
		{"archive.v2.xlsm", "archive.v2_edited.xlsx", ContentTypeXLSX},
		{"noext", "noext_edited.xlsx", ContentTypeXLSX},
	}
	for _, tt := range tests {
		out, err := Encode(tbl, tt.in)
		if err != nil {
			t.Fatalf("Encode(%q): %v", tt.in, err)
		}
		if out.Name != tt.wantName || out.ContentType != tt.wantType {
			t.Errorf("Encode(%q) = %q %q, want %q %q", tt.in, out.Name, out.ContentType, tt.wantName, tt.wantType)
		}
		if len(out.Data) == 0 {
			t.Errorf("Encode(%q) produced no data", tt.in)
		}
	}
}

func TestPreviewJSON(t *testing.T) {
	tbl := NewTable([]string{"n", "s"}, [][]Cell{{Number(3), Text("three")}})
	var buf bytes.Buffer
	if err := WritePreview(&buf, tbl.Preview("nums.xlsx", ContentTypeXLSX)); err != nil {
		t.Fatalf("WritePreview: %v", err)
	}

	var raw struct {
		Rows     [][]any `json:"rows"`
		RowCount int     `json:"rowCount"`
	}
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := raw.Rows[0][0].(float64); !ok {
		t.Fatalf("numeric cell encoded as %T", raw.Rows[0][0])
	}
	if raw.RowCount != 1 {
		t.Fatalf("rowCount = %d, want 1", raw.RowCount)
	}

	p, err := ReadPreview(&buf)
	if err != nil {
		t.Fatalf("ReadPreview: %v", err)
	}
	back := p.Table()
	if !back.Row(0).Cells[0].IsNumber() || back.Row(0).Cells[1].String() != "three" {
		t.Fatalf("unexpected round trip: %v", rowStrings(back))
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "people.csv")
	if err := os.WriteFile(csvPath, []byte("name\nada\n"), 0600); err != nil {
		t.Fatal(err)
	}
	tbl, name, err := LoadFile(csvPath)
	if err != nil || name != "people.csv" || tbl.RowCount() != 1 {
		t.Fatalf("LoadFile(csv) = %v rows, %q, %v", tbl, name, err)
	}

	var buf bytes.Buffer
	src := NewTable([]string{"n"}, [][]Cell{{Number(1)}, {Number(2)}})
	if err := WritePreview(&buf, src.Preview("nums.xlsx", ContentTypeXLSX)); err != nil {
		t.Fatal(err)
	}
	jsonPath := filepath.Join(dir, "nums.json")
	if err := os.WriteFile(jsonPath, buf.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}
	tbl, name, err = LoadFile(jsonPath)
	if err != nil {
		t.Fatalf("LoadFile(json): %v", err)
	}
	if name != "nums.xlsx" {
		t.Fatalf("source name = %q, want nums.xlsx", name)
	}
	if diff := cmp.Diff([][]string{{"1"}, {"2"}}, rowStrings(tbl)); diff != "" {
		t.Fatalf("rows (-want +got):\n%s", diff)
	}

	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, []byte(`{"headers":[],"rows":[]}`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadFile(empty); !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("LoadFile(empty preview) = %v, want ErrEmptyFile", err)
	}
}

func TestTableOps(t *testing.T) {
	tbl := NewTable([]string{"a", "b", "c"}, [][]Cell{
		Texts("1", "2", "3"),
		Texts("4", "5", "6"),
		Texts("7", "8", "9"),
	})
	snap := tbl.Clone()

	tbl.MoveColumn(0, 2)
	if diff := cmp.Diff([]string{"b", "c", "a"}, tbl.Headers()); diff != "" {
		t.Fatalf("MoveColumn headers (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"2", "3", "1"}, tbl.Row(0).Strings()); diff != "" {
		t.Fatalf("MoveColumn row (-want +got):\n%s", diff)
	}

	id := tbl.Row(2).ID
	if n := tbl.DeleteRows([]int{0, 0, 1, 7}); n != 2 {
		t.Fatalf("DeleteRows removed %d, want 2", n)
	}
	if i, ok := tbl.IndexOf(id); !ok || i != 0 {
		t.Fatalf("IndexOf after delete = %d, %v; want 0, true", i, ok)
	}

	tbl.DeleteColumn(1)
	tbl.AppendColumn("d")
	r := tbl.AppendRow()
	if r.ID <= id {
		t.Fatalf("new row id %d not greater than %d", r.ID, id)
	}
	checkWidth(t, tbl)

	if diff := cmp.Diff([][]string{{"1", "2", "3"}, {"4", "5", "6"}, {"7", "8", "9"}}, rowStrings(snap)); diff != "" {
		t.Fatalf("clone was modified (-want +got):\n%s", diff)
	}
}

func TestLabel(t *testing.T) {
	tbl := NewTable([]string{"", "name"}, nil)
	if got := tbl.Label(0); got != "Column 1" {
		t.Fatalf("Label(0) = %q, want Column 1", got)
	}
	if got := tbl.Label(1); got != "name" {
		t.Fatalf("Label(1) = %q, want name", got)
	}
}
