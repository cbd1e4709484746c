package editor

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"sheetdb/internal/sheet"
)

// Direction is a sort direction.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// SortSpec sorts the view by a single column.
type SortSpec struct {
	Column    int
	Direction Direction
}

// NextSort returns the sort that follows cur when column col is clicked:
// a new column starts ascending, the same column goes ascending, descending,
// then off.
func NextSort(cur *SortSpec, col int) *SortSpec {
	if cur == nil || cur.Column != col {
		return &SortSpec{Column: col, Direction: Ascending}
	}
	if cur.Direction == Ascending {
		return &SortSpec{Column: col, Direction: Descending}
	}
	return nil
}

// ViewState holds the view transforms applied on top of the canonical table.
type ViewState struct {
	Search      string
	Sort        *SortSpec
	Page        int
	RowsPerPage int
}

// Display is one rendered page of the table.
type Display struct {
	Headers []string
	// Rows are the rows of the current page, in view order.
	Rows []sheet.Row
	// RowCount is the number of rows on the current page.
	RowCount      int
	FilteredCount int
	Page          int
	TotalPages    int
	// Offset is the position of Rows[0] within the filtered, sorted rows.
	Offset int
}

// TotalPages returns the page count for n rows, never less than 1.
func TotalPages(n, rowsPerPage int) int {
	if rowsPerPage <= 0 || n <= 0 {
		return 1
	}
	return (n + rowsPerPage - 1) / rowsPerPage
}

// Transform filters, sorts and paginates t. It does not modify t.
func Transform(t *sheet.Table, v ViewState) Display {
	rows := FilterRows(t.Rows(), v.Search)
	if v.Sort != nil && v.Sort.Column >= 0 && v.Sort.Column < t.Width() {
		rows = SortRows(rows, *v.Sort)
	}

	rpp := v.RowsPerPage
	if rpp <= 0 {
		rpp = max(len(rows), 1)
	}
	total := TotalPages(len(rows), rpp)
	page := min(max(v.Page, 1), total)

	start := min((page-1)*rpp, len(rows))
	end := min(start+rpp, len(rows))
	pageRows := rows[start:end]

	return Display{
		Headers:       t.Headers(),
		Rows:          pageRows,
		RowCount:      len(pageRows),
		FilteredCount: len(rows),
		Page:          page,
		TotalPages:    total,
		Offset:        start,
	}
}

// FilterRows keeps the rows with at least one cell containing query,
// ignoring case. An empty query keeps every row.
func FilterRows(rows []sheet.Row, query string) []sheet.Row {
	if query == "" {
		return rows
	}
	q := strings.ToLower(query)
	var out []sheet.Row
	for _, r := range rows {
		for _, c := range r.Cells {
			if strings.Contains(strings.ToLower(c.String()), q) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// SortRows returns a stably sorted copy of rows. Cells compare with a
// numeric-aware collation, so "2" sorts before "10".
func SortRows(rows []sheet.Row, spec SortSpec) []sheet.Row {
	out := slices.Clone(rows)
	col := collate.New(language.Und, collate.Numeric)
	slices.SortStableFunc(out, func(a, b sheet.Row) int {
		c := col.CompareString(cellText(a, spec.Column), cellText(b, spec.Column))
		if spec.Direction == Descending {
			return -c
		}
		return c
	})
	return out
}

func cellText(r sheet.Row, col int) string {
	if col < len(r.Cells) {
		return r.Cells[col].String()
	}
	return ""
}
