package editor

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"sheetdb/internal/sheet"
)

func texts(rows ...[]string) [][]sheet.Cell {
	out := make([][]sheet.Cell, len(rows))
	for i, r := range rows {
		out[i] = sheet.Texts(r...)
	}
	return out
}

func displayStrings(d Display) [][]string {
	out := make([][]string, 0, len(d.Rows))
	for _, r := range d.Rows {
		out = append(out, r.Strings())
	}
	return out
}

func TestSortNumericAware(t *testing.T) {
	tbl := sheet.NewTable([]string{"A", "B"}, texts(
		[]string{"1", "x"},
		[]string{"10", "y"},
		[]string{"2", "z"},
	))

	d := Transform(tbl, ViewState{Sort: &SortSpec{Column: 0, Direction: Ascending}})
	want := [][]string{{"1", "x"}, {"2", "z"}, {"10", "y"}}
	if diff := cmp.Diff(want, displayStrings(d)); diff != "" {
		t.Fatalf("ascending (-want +got):\n%s", diff)
	}

	d = Transform(tbl, ViewState{Sort: &SortSpec{Column: 0, Direction: Descending}})
	want = [][]string{{"10", "y"}, {"2", "z"}, {"1", "x"}}
	if diff := cmp.Diff(want, displayStrings(d)); diff != "" {
		t.Fatalf("descending (-want +got):\n%s", diff)
	}
}

func TestNextSortCycle(t *testing.T) {
	var s *SortSpec
	s = NextSort(s, 1)
	if s == nil || s.Column != 1 || s.Direction != Ascending {
		t.Fatalf("first click = %+v, want column 1 asc", s)
	}
	s = NextSort(s, 1)
	if s == nil || s.Direction != Descending {
		t.Fatalf("second click = %+v, want desc", s)
	}
	if s = NextSort(s, 1); s != nil {
		t.Fatalf("third click = %+v, want nil", s)
	}

	s = NextSort(&SortSpec{Column: 0, Direction: Descending}, 2)
	if s == nil || s.Column != 2 || s.Direction != Ascending {
		t.Fatalf("other column = %+v, want column 2 asc", s)
	}
}

func TestSearchCaseInsensitive(t *testing.T) {
	tbl := sheet.NewTable([]string{"name", "city"}, texts(
		[]string{"Ada", "London"},
		[]string{"Bob", "Paris"},
		[]string{"Cy", "LONDONDERRY"},
	))
	d := Transform(tbl, ViewState{Search: "london", Page: 1, RowsPerPage: 10})
	want := [][]string{{"Ada", "London"}, {"Cy", "LONDONDERRY"}}
	if diff := cmp.Diff(want, displayStrings(d)); diff != "" {
		t.Fatalf("search (-want +got):\n%s", diff)
	}
	if d.FilteredCount != 2 {
		t.Fatalf("FilteredCount = %d, want 2", d.FilteredCount)
	}

	d = Transform(tbl, ViewState{Search: "nowhere", Page: 3, RowsPerPage: 10})
	if d.RowCount != 0 || d.TotalPages != 1 || d.Page != 1 {
		t.Fatalf("empty result = %d rows, page %d/%d; want 0 rows, page 1/1", d.RowCount, d.Page, d.TotalPages)
	}
}

func TestPaginationCoversFilteredRows(t *testing.T) {
	var rows [][]string
	for i := 0; i < 23; i++ {
		rows = append(rows, []string{string(rune('a' + i))})
	}
	tbl := sheet.NewTable([]string{"c"}, texts(rows...))

	for _, rpp := range []int{1, 5, 10, 23, 50} {
		first := Transform(tbl, ViewState{Page: 1, RowsPerPage: rpp})
		if first.TotalPages < 1 {
			t.Fatalf("rpp %d: TotalPages = %d", rpp, first.TotalPages)
		}
		seen := make(map[int64]bool)
		sum := 0
		for p := 1; p <= first.TotalPages; p++ {
			d := Transform(tbl, ViewState{Page: p, RowsPerPage: rpp})
			if d.RowCount > rpp {
				t.Fatalf("rpp %d page %d: %d rows", rpp, p, d.RowCount)
			}
			for _, r := range d.Rows {
				if seen[r.ID] {
					t.Fatalf("rpp %d: row %d on two pages", rpp, r.ID)
				}
				seen[r.ID] = true
			}
			sum += d.RowCount
		}
		if sum != first.FilteredCount {
			t.Fatalf("rpp %d: pages hold %d rows, want %d", rpp, sum, first.FilteredCount)
		}
	}
}

func TestPageClamped(t *testing.T) {
	tbl := sheet.NewTable([]string{"c"}, texts([]string{"1"}, []string{"2"}, []string{"3"}))
	d := Transform(tbl, ViewState{Page: 9, RowsPerPage: 2})
	if d.Page != 2 || d.Offset != 2 || d.RowCount != 1 {
		t.Fatalf("got page %d offset %d rows %d; want 2, 2, 1", d.Page, d.Offset, d.RowCount)
	}
}

func TestTransformLeavesTableAlone(t *testing.T) {
	tbl := sheet.NewTable([]string{"c"}, texts([]string{"b"}, []string{"a"}))
	Transform(tbl, ViewState{Sort: &SortSpec{Column: 0}})
	if got := tbl.Row(0).Strings()[0]; got != "b" {
		t.Fatalf("canonical order changed: first row %q", got)
	}
}
