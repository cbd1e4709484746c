package sheet

import (
	"fmt"
	"slices"
)

// Row is one table row. ID is assigned when the row enters the table and
// survives every edit, sort and filter.
type Row struct {
	ID    int64
	Cells []Cell
}

// Strings returns the textual form of every cell.
func (r Row) Strings() []string {
	out := make([]string, len(r.Cells))
	for i, c := range r.Cells {
		out[i] = c.String()
	}
	return out
}

// Table is the canonical in-memory form of one loaded file. Every row has
// exactly len(Headers()) cells.
type Table struct {
	headers []string
	rows    []Row
	nextID  int64
	index   map[int64]int
}

// DefaultLabel is the label given to unnamed columns.
func DefaultLabel(i int) string {
	return fmt.Sprintf("Column %d", i+1)
}

// NewTable builds a table from headers and rows. Short rows are padded with
// empty cells; rows wider than the header extend it with default labels.
func NewTable(headers []string, rows [][]Cell) *Table {
	t := &Table{headers: slices.Clone(headers)}
	width := len(t.headers)
	for _, r := range rows {
		width = max(width, len(r))
	}
	for i := len(t.headers); i < width; i++ {
		t.headers = append(t.headers, DefaultLabel(i))
	}
	t.rows = make([]Row, 0, len(rows))
	for _, r := range rows {
		t.rows = append(t.rows, Row{ID: t.allocID(), Cells: pad(slices.Clone(r), width)})
	}
	return t
}

func pad(cells []Cell, width int) []Cell {
	for len(cells) < width {
		cells = append(cells, Text(""))
	}
	return cells
}

func (t *Table) allocID() int64 {
	t.nextID++
	return t.nextID
}

// Headers returns the column names. The slice must not be modified.
func (t *Table) Headers() []string {
	return t.headers
}

// Width returns the number of columns.
func (t *Table) Width() int {
	return len(t.headers)
}

// Label returns the display label of column i.
func (t *Table) Label(i int) string {
	if i < 0 || i >= len(t.headers) {
		return ""
	}
	if t.headers[i] == "" {
		return DefaultLabel(i)
	}
	return t.headers[i]
}

// Rows returns the rows in canonical order. The slice must not be modified.
func (t *Table) Rows() []Row {
	return t.rows
}

// RowCount returns the number of rows.
func (t *Table) RowCount() int {
	return len(t.rows)
}

// Row returns the row at canonical index i.
func (t *Table) Row(i int) Row {
	return t.rows[i]
}

// IndexOf returns the canonical index of the row with the given ID.
func (t *Table) IndexOf(id int64) (int, bool) {
	if t.index == nil {
		t.index = make(map[int64]int, len(t.rows))
		for i, r := range t.rows {
			t.index[r.ID] = i
		}
	}
	i, ok := t.index[id]
	return i, ok
}

func (t *Table) reindex() {
	t.index = nil
}

// Clone returns a deep copy, row IDs included.
func (t *Table) Clone() *Table {
	c := &Table{
		headers: slices.Clone(t.headers),
		rows:    make([]Row, len(t.rows)),
		nextID:  t.nextID,
	}
	for i, r := range t.rows {
		c.rows[i] = Row{ID: r.ID, Cells: slices.Clone(r.Cells)}
	}
	return c
}

// SetCell replaces the cell at canonical row i, column col.
func (t *Table) SetCell(i, col int, c Cell) {
	r := &t.rows[i]
	r.Cells = pad(r.Cells, len(t.headers))
	r.Cells[col] = c
}

// AppendRow adds an all-empty row at the end and returns it.
func (t *Table) AppendRow() Row {
	r := Row{ID: t.allocID(), Cells: pad(nil, len(t.headers))}
	t.rows = append(t.rows, r)
	if t.index != nil {
		t.index[r.ID] = len(t.rows) - 1
	}
	return r
}

// DeleteRows removes the rows at the given canonical indices. Duplicates and
// out-of-range indices are ignored. It returns the number of rows removed.
func (t *Table) DeleteRows(indices []int) int {
	idx := slices.Clone(indices)
	slices.Sort(idx)
	idx = slices.Compact(idx)
	removed := 0
	for j := len(idx) - 1; j >= 0; j-- {
		i := idx[j]
		if i < 0 || i >= len(t.rows) {
			continue
		}
		t.rows = slices.Delete(t.rows, i, i+1)
		removed++
	}
	if removed > 0 {
		t.reindex()
	}
	return removed
}

// AppendColumn adds a column with the given name and an empty cell in
// every row.
func (t *Table) AppendColumn(name string) {
	t.headers = append(t.headers, name)
	for i := range t.rows {
		t.rows[i].Cells = pad(t.rows[i].Cells, len(t.headers))
	}
}

// RenameColumn sets the header of column i.
func (t *Table) RenameColumn(i int, name string) {
	t.headers[i] = name
}

// DeleteColumn removes column i from the header and every row.
func (t *Table) DeleteColumn(i int) {
	t.headers = slices.Delete(t.headers, i, i+1)
	for j := range t.rows {
		cells := pad(t.rows[j].Cells, len(t.headers)+1)
		t.rows[j].Cells = slices.Delete(cells, i, i+1)
	}
}

// MoveColumn moves column from to position to, keeping the order of the
// other columns.
func (t *Table) MoveColumn(from, to int) {
	t.headers = move(t.headers, from, to)
	for j := range t.rows {
		t.rows[j].Cells = move(pad(t.rows[j].Cells, len(t.headers)), from, to)
	}
}

func move[T any](s []T, from, to int) []T {
	v := s[from]
	s = slices.Delete(s, from, from+1)
	return slices.Insert(s, to, v)
}
