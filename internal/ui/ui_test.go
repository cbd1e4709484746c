package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"sheetdb/internal/editor"
	"sheetdb/internal/sheet"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestGrid(t *testing.T) GridModel {
	t.Helper()
	tbl := sheet.NewTable([]string{"name", "age"}, [][]sheet.Cell{
		sheet.Texts("ada", "36"),
		sheet.Texts("bob", "4"),
		sheet.Texts("cy", "120"),
	})
	s := editor.NewSession(tbl, editor.Options{
		FileName:    "people.csv",
		RowsPerPage: 10,
		Features:    editor.AllFeatures(),
	})
	g := NewGridModel()
	g.SetSize(100, 20)
	g.SetFocused(true)
	g.SetSession(s)
	return g
}

func msgOf(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	return cmd()
}

func TestGridView(t *testing.T) {
	g := newTestGrid(t)
	view := g.View()
	for _, want := range []string{"people.csv", "name", "age", "ada", "bob", "rows 1-3 of 3", "page 1/1"} {
		if !strings.Contains(view, want) {
			t.Errorf("view is missing %q", want)
		}
	}

	empty := NewGridModel()
	empty.SetSize(80, 10)
	if !strings.Contains(empty.View(), "Open a file") {
		t.Error("empty grid should prompt to open a file")
	}
}

func TestGridSort(t *testing.T) {
	g := newTestGrid(t)
	g, _ = g.Update(tea.KeyMsg{Type: tea.KeyRight})
	g, cmd := g.Update(runes("s"))
	if sort := g.Session().ViewState().Sort; sort == nil || sort.Column != 1 {
		t.Fatalf("sort = %+v, want column 1", sort)
	}
	if msg, ok := msgOf(t, cmd).(StatusMsg); !ok || !strings.Contains(msg.Text, "age") {
		t.Fatalf("status = %+v", msg)
	}
	d := g.Session().Display()
	if got := d.Rows[0].Cells[1].String(); got != "4" {
		t.Fatalf("first row after numeric sort has age %q, want 4", got)
	}
	if !strings.Contains(g.View(), "▲") {
		t.Fatal("sort indicator not shown")
	}
}

func TestGridEdit(t *testing.T) {
	g := newTestGrid(t)
	g, _ = g.Update(runes("e"))
	if !g.IsEditing() {
		t.Fatal("e did not enter edit mode")
	}
	g, _ = g.Update(runes("!"))
	g, cmd := g.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if g.IsEditing() {
		t.Fatal("enter did not leave edit mode")
	}
	if _, ok := msgOf(t, cmd).(GridChangedMsg); !ok {
		t.Fatal("commit did not report a change")
	}
	if got := g.Session().Table().Row(0).Cells[0].String(); got != "ada!" {
		t.Fatalf("cell = %q, want ada!", got)
	}

	g, _ = g.Update(runes("e"))
	g, _ = g.Update(runes("?"))
	g, _ = g.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if got := g.Session().Table().Row(0).Cells[0].String(); got != "ada!" {
		t.Fatalf("cancelled edit changed the cell to %q", got)
	}
}

func TestGridTabFollowsResortedRow(t *testing.T) {
	g := newTestGrid(t)
	g, _ = g.Update(runes("s"))
	ada := g.Session().Table().Row(0).ID

	g, _ = g.Update(runes("e"))
	g.editInput.SetValue("zed")
	g, _ = g.Update(tea.KeyMsg{Type: tea.KeyTab})
	if !g.IsEditing() {
		t.Fatal("tab did not open the next cell")
	}
	target, ok := g.Session().Editing()
	if !ok || target.RowID != ada || target.Column != 1 {
		t.Fatalf("edit target = %+v, want row %d column 1", target, ada)
	}
	d := g.Session().Display()
	if got := d.Rows[g.cursorRow].ID; got != ada {
		t.Fatalf("cursor on row %d, want %d", got, ada)
	}
	if got := d.Rows[g.cursorRow].Cells[0].String(); got != "zed" {
		t.Fatalf("cursor row name = %q, want zed", got)
	}
}

func TestGridTabStopsWhenRowLeavesView(t *testing.T) {
	g := newTestGrid(t)
	if err := g.Session().SetSearch("ada"); err != nil {
		t.Fatal(err)
	}
	g.sync()
	g, _ = g.Update(runes("e"))
	g.editInput.SetValue("zed")
	g, cmd := g.Update(tea.KeyMsg{Type: tea.KeyTab})
	if g.IsEditing() {
		t.Fatal("tab kept editing a row the search hides")
	}
	if _, ok := msgOf(t, cmd).(GridChangedMsg); !ok {
		t.Fatal("commit did not report a change")
	}
	if got := g.Session().Table().Row(0).Cells[0].String(); got != "zed" {
		t.Fatalf("cell = %q, want zed", got)
	}
}

func TestGridAddRowUnderSort(t *testing.T) {
	g := newTestGrid(t)
	g, _ = g.Update(runes("s"))
	g, _ = g.Update(runes("a"))

	tbl := g.Session().Table()
	added := tbl.Row(tbl.RowCount() - 1).ID
	if got := g.Session().Display().Rows[g.cursorRow].ID; got != added {
		t.Fatalf("cursor on row %d, want the new row %d", got, added)
	}
}

func TestGridRowsPerPage(t *testing.T) {
	g := newTestGrid(t)
	g, cmd := g.Update(runes("P"))
	req, ok := msgOf(t, cmd).(PromptRequestMsg)
	if !ok || req.Action != ActionRowsPerPage || req.Initial != "10" {
		t.Fatalf("got %+v, want rows per page prompt", req)
	}

	g, _ = g.Apply(ModalDoneMsg{Action: ActionRowsPerPage, Value: "2", OK: true})
	if d := g.Session().Display(); d.TotalPages != 2 || d.RowCount != 2 {
		t.Fatalf("display = %d rows over %d pages, want 2 over 2", d.RowCount, d.TotalPages)
	}
	g, cmd = g.Apply(ModalDoneMsg{Action: ActionRowsPerPage, Value: "many", OK: true})
	if msg, ok := msgOf(t, cmd).(StatusMsg); !ok || msg.Type != MsgError {
		t.Fatalf("non-numeric page size gave %+v", msg)
	}
	if g.Session().ViewState().RowsPerPage != 2 {
		t.Fatal("bad page size changed the view")
	}
}

func TestGridEscClearsSelection(t *testing.T) {
	g := newTestGrid(t)
	g, _ = g.Update(runes(" "))
	g, _ = g.Update(runes("c"))
	g, _ = g.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if _, ok := g.Session().SelectedColumn(); ok || g.Session().SelectedRowCount() != 0 {
		t.Fatal("esc did not clear the selection")
	}
}

func TestGridDeleteRowsConfirms(t *testing.T) {
	g := newTestGrid(t)
	g, _ = g.Update(runes("d"))
	if g.Session().Table().RowCount() != 3 {
		t.Fatal("delete without selection removed rows")
	}

	g, _ = g.Update(runes(" "))
	g, cmd := g.Update(runes("d"))
	req, ok := msgOf(t, cmd).(ConfirmRequestMsg)
	if !ok || req.Action != ActionDeleteRows {
		t.Fatalf("got %+v, want delete confirmation", req)
	}
	if g.Session().Table().RowCount() != 3 {
		t.Fatal("rows deleted before confirmation")
	}

	g, _ = g.Apply(ModalDoneMsg{Action: ActionDeleteRows, OK: false})
	if g.Session().Table().RowCount() != 3 {
		t.Fatal("cancelled confirmation deleted rows")
	}
	g, _ = g.Apply(ModalDoneMsg{Action: ActionDeleteRows, OK: true})
	if g.Session().Table().RowCount() != 2 {
		t.Fatalf("RowCount = %d, want 2", g.Session().Table().RowCount())
	}
}

func TestGridColumnOps(t *testing.T) {
	g := newTestGrid(t)
	g, _ = g.Update(runes("A"))
	if w := g.Session().Table().Width(); w != 3 {
		t.Fatalf("width = %d after add column", w)
	}
	g, _ = g.Apply(ModalDoneMsg{Action: ActionRenameColumn, Value: "city", OK: true})
	if got := g.Session().Table().Headers()[2]; got != "city" {
		t.Fatalf("renamed header = %q", got)
	}
	g, _ = g.Update(runes("<"))
	if got := g.Session().Table().Headers()[1]; got != "city" {
		t.Fatalf("moved header = %q", got)
	}
}

func TestModalPrompt(t *testing.T) {
	m := NewModalModel()
	m.OpenPrompt(ActionRenameFile, "Rename file", "old")
	m, _ = m.Update(runes("er"))
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.Visible() {
		t.Fatal("modal still visible after enter")
	}
	done, ok := msgOf(t, cmd).(ModalDoneMsg)
	if !ok || !done.OK || done.Value != "older" || done.Action != ActionRenameFile {
		t.Fatalf("done = %+v", done)
	}
}

func TestModalRejectsEmptyPrompt(t *testing.T) {
	m := NewModalModel()
	m.OpenPrompt(ActionUpload, "Upload", "")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil || !m.Visible() {
		t.Fatal("empty prompt value was accepted")
	}
	if !strings.Contains(m.View(), "cannot be empty") {
		t.Fatal("empty value error not shown")
	}
}

func TestModalConfirm(t *testing.T) {
	m := NewModalModel()
	m.OpenConfirm(ActionDeleteFile, "Delete a.csv?")
	if !strings.Contains(m.View(), "Delete a.csv?") {
		t.Fatal("prompt not rendered")
	}
	_, cmd := m.Update(runes("n"))
	if done := msgOf(t, cmd).(ModalDoneMsg); done.OK {
		t.Fatal("n confirmed the action")
	}
	m.OpenConfirm(ActionDeleteFile, "Delete a.csv?")
	_, cmd = m.Update(runes("y"))
	if done := msgOf(t, cmd).(ModalDoneMsg); !done.OK {
		t.Fatal("y did not confirm the action")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"a long value", 8, "a lon..."},
		{"abcdef", 2, "ab"},
		{"anything", 0, ""},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}
