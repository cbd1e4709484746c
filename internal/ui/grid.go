package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/paginator"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"sheetdb/internal/editor"
	"sheetdb/internal/sheet"
)

// SaveRequestMsg asks the app to save the open table.
type SaveRequestMsg struct{}

// GridChangedMsg is sent after the grid mutated the session.
type GridChangedMsg struct{}

const (
	minColWidth = 6
	maxColWidth = 40
	markerWidth = 2
)

// GridModel is the editable table view over an editor session.
type GridModel struct {
	session *editor.Session
	keys    GridKeyMap
	help    help.Model
	pager   paginator.Model

	cursorRow    int
	cursorCol    int
	colOffset    int
	scrollOffset int
	colWidths    []int

	focused     bool
	editing     bool
	editInput   textinput.Model
	searching   bool
	searchInput textinput.Model

	width  int
	height int
}

// NewGridModel creates an empty grid.
func NewGridModel() GridModel {
	edit := textinput.New()
	edit.Prompt = ""
	search := textinput.New()
	search.Prompt = "/"
	search.PromptStyle = SearchLabel
	search.TextStyle = SearchInput

	p := paginator.New()
	p.Type = paginator.Arabic
	p.ArabicFormat = "page %d/%d"

	return GridModel{
		keys:        DefaultGridKeys(),
		help:        help.New(),
		pager:       p,
		editInput:   edit,
		searchInput: search,
	}
}

// SetSession shows s in the grid.
func (m *GridModel) SetSession(s *editor.Session) {
	m.session = s
	m.cursorRow = 0
	m.cursorCol = 0
	m.colOffset = 0
	m.scrollOffset = 0
	m.editing = false
	m.searching = false
	m.searchInput.SetValue("")
	m.sync()
}

// Session returns the session shown, or nil.
func (m GridModel) Session() *editor.Session {
	return m.session
}

// Clear removes the session from the grid.
func (m *GridModel) Clear() {
	m.session = nil
	m.colWidths = nil
	m.editing = false
	m.searching = false
}

// SetFocused sets focus state.
func (m *GridModel) SetFocused(f bool) {
	m.focused = f
}

// SetSize sets the grid dimensions.
func (m *GridModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.help.Width = w
	m.ensureRowVisible()
}

// IsEditing reports whether a cell is being edited.
func (m GridModel) IsEditing() bool {
	return m.editing
}

// CapturesInput reports whether keys go to a text field.
func (m GridModel) CapturesInput() bool {
	return m.editing || m.searching
}

// sync brings the cursor, widths and paginator in line with the session
// after any change.
func (m *GridModel) sync() {
	if m.session == nil {
		return
	}
	d := m.session.Display()
	m.cursorRow = min(m.cursorRow, max(d.RowCount-1, 0))
	m.cursorCol = min(m.cursorCol, max(len(d.Headers)-1, 0))
	if m.colOffset > m.cursorCol {
		m.colOffset = m.cursorCol
	}
	m.pager.TotalPages = d.TotalPages
	m.pager.Page = d.Page - 1
	m.calcColWidths(d)
	m.ensureRowVisible()
}

func (m *GridModel) calcColWidths(d editor.Display) {
	t := m.session.Table()
	m.colWidths = make([]int, len(d.Headers))
	for i := range d.Headers {
		w := max(runewidth.StringWidth(t.Label(i))+2, minColWidth)
		for _, r := range d.Rows {
			if i < len(r.Cells) {
				w = max(w, runewidth.StringWidth(sanitizeCell(r.Cells[i].String())))
			}
		}
		m.colWidths[i] = min(w, maxColWidth)
	}
}

// Init satisfies tea.Model.
func (m GridModel) Init() tea.Cmd {
	return nil
}

// Update handles key events.
func (m GridModel) Update(msg tea.Msg) (GridModel, tea.Cmd) {
	if !m.focused || m.session == nil {
		return m, nil
	}
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case m.editing:
		return m.updateEditMode(keyMsg)
	case m.searching:
		return m.updateSearchMode(keyMsg)
	}
	return m.updateNavMode(keyMsg)
}

func changed() tea.Msg { return GridChangedMsg{} }

func (m GridModel) fail(err error) tea.Cmd {
	return statusCmd(err.Error(), MsgError)
}

func (m GridModel) updateNavMode(msg tea.KeyMsg) (GridModel, tea.Cmd) {
	s := m.session
	d := s.Display()

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursorRow > 0 {
			m.cursorRow--
			m.ensureRowVisible()
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursorRow < d.RowCount-1 {
			m.cursorRow++
			m.ensureRowVisible()
		}
	case key.Matches(msg, m.keys.Left):
		if m.cursorCol > 0 {
			m.cursorCol--
			m.ensureColVisible()
		}
	case key.Matches(msg, m.keys.Right):
		if m.cursorCol < len(d.Headers)-1 {
			m.cursorCol++
			m.ensureColVisible()
		}
	case key.Matches(msg, m.keys.NextPage):
		if err := s.NextPage(); err != nil {
			return m, m.fail(err)
		}
		m.cursorRow, m.scrollOffset = 0, 0
		m.sync()
	case key.Matches(msg, m.keys.PrevPage):
		if err := s.PrevPage(); err != nil {
			return m, m.fail(err)
		}
		m.cursorRow, m.scrollOffset = 0, 0
		m.sync()
	case key.Matches(msg, m.keys.PageSize):
		if !s.Features().Pagination {
			return m, m.fail(fmt.Errorf("pagination: %w", editor.ErrFeatureDisabled))
		}
		rpp := strconv.Itoa(s.ViewState().RowsPerPage)
		return m, func() tea.Msg {
			return PromptRequestMsg{Action: ActionRowsPerPage, Title: "Rows per page", Initial: rpp}
		}
	case key.Matches(msg, m.keys.Edit):
		if d.RowCount == 0 {
			return m, nil
		}
		value, err := s.BeginEdit(m.cursorRow, m.cursorCol)
		if err != nil {
			return m, m.fail(err)
		}
		m.editing = true
		m.editInput.SetValue(value)
		m.editInput.CursorEnd()
		return m, m.editInput.Focus()
	case key.Matches(msg, m.keys.Search):
		if !s.Features().Search {
			return m, m.fail(fmt.Errorf("search: %w", editor.ErrFeatureDisabled))
		}
		m.searching = true
		m.searchInput.SetValue(s.ViewState().Search)
		m.searchInput.CursorEnd()
		return m, m.searchInput.Focus()
	case key.Matches(msg, m.keys.Sort):
		if err := s.ToggleSort(m.cursorCol); err != nil {
			return m, m.fail(err)
		}
		m.cursorRow, m.scrollOffset = 0, 0
		m.sync()
		return m, m.sortStatus()
	case key.Matches(msg, m.keys.SelectRow):
		if d.RowCount == 0 {
			return m, nil
		}
		if err := s.ToggleRowSelection(m.cursorRow); err != nil {
			return m, m.fail(err)
		}
		if m.cursorRow < d.RowCount-1 {
			m.cursorRow++
			m.ensureRowVisible()
		}
	case key.Matches(msg, m.keys.SelectCol):
		if err := s.SelectColumn(m.cursorCol); err != nil {
			return m, m.fail(err)
		}
	case key.Matches(msg, m.keys.Unselect):
		s.ClearSelection()
	case key.Matches(msg, m.keys.AddRow):
		r, err := s.AddRow()
		if err != nil {
			return m, m.fail(err)
		}
		m.revealRow(r.ID)
		return m, changed
	case key.Matches(msg, m.keys.DeleteRows):
		if !s.Features().RowOps {
			return m, m.fail(fmt.Errorf("delete rows: %w", editor.ErrFeatureDisabled))
		}
		n := s.SelectedRowCount()
		if n == 0 {
			return m, statusCmd("No rows selected, press space to select", MsgInfo)
		}
		return m, func() tea.Msg {
			return ConfirmRequestMsg{Action: ActionDeleteRows, Prompt: fmt.Sprintf("Delete %d selected %s?", n, plural(n, "row", "rows"))}
		}
	case key.Matches(msg, m.keys.AddCol):
		if err := s.AddColumn(); err != nil {
			return m, m.fail(err)
		}
		m.sync()
		m.cursorCol = len(s.Display().Headers) - 1
		m.ensureColVisible()
		return m, changed
	case key.Matches(msg, m.keys.RenameCol):
		if !s.Features().ColumnOps {
			return m, m.fail(fmt.Errorf("rename column: %w", editor.ErrFeatureDisabled))
		}
		return m, func() tea.Msg {
			return PromptRequestMsg{Action: ActionRenameColumn, Title: "Rename column", Initial: s.Table().Label(m.cursorCol)}
		}
	case key.Matches(msg, m.keys.DeleteCol):
		if !s.Features().ColumnOps {
			return m, m.fail(fmt.Errorf("delete column: %w", editor.ErrFeatureDisabled))
		}
		if s.Table().Width() <= 1 {
			return m, m.fail(editor.ErrLastColumn)
		}
		label := s.Table().Label(m.cursorCol)
		return m, func() tea.Msg {
			return ConfirmRequestMsg{Action: ActionDeleteColumn, Prompt: fmt.Sprintf("Delete column %q?", label)}
		}
	case key.Matches(msg, m.keys.MoveColLeft):
		return m.moveColumn(-1)
	case key.Matches(msg, m.keys.MoveColRight):
		return m.moveColumn(1)
	case key.Matches(msg, m.keys.Copy):
		if d.RowCount == 0 {
			return m, nil
		}
		value := d.Rows[m.cursorRow].Cells[m.cursorCol].String()
		if err := clipboard.WriteAll(value); err != nil {
			return m, m.fail(fmt.Errorf("copy: %w", err))
		}
		return m, statusCmd("Copied cell value", MsgSuccess)
	case key.Matches(msg, m.keys.Discard):
		if !s.HasChanges() {
			return m, statusCmd("No changes to discard", MsgInfo)
		}
		return m, func() tea.Msg {
			return ConfirmRequestMsg{Action: ActionDiscard, Prompt: fmt.Sprintf("Discard %s?", s.Changes().Summary())}
		}
	case key.Matches(msg, m.keys.Save):
		return m, func() tea.Msg { return SaveRequestMsg{} }
	case key.Matches(msg, m.keys.Export):
		name := strings.TrimSuffix(s.FileName(), "."+sheet.Ext(s.FileName()))
		return m, func() tea.Msg {
			return PromptRequestMsg{Action: ActionExport, Title: "Export to PostgreSQL table", Initial: name}
		}
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case msg.String() == "g":
		m.cursorRow, m.scrollOffset = 0, 0
	case msg.String() == "G":
		m.cursorRow = max(d.RowCount-1, 0)
		m.ensureRowVisible()
	}
	return m, nil
}

func (m GridModel) moveColumn(delta int) (GridModel, tea.Cmd) {
	to := m.cursorCol + delta
	if to < 0 || to >= m.session.Table().Width() {
		return m, nil
	}
	if err := m.session.MoveColumn(m.cursorCol, to); err != nil {
		return m, m.fail(err)
	}
	m.cursorCol = to
	m.sync()
	m.ensureColVisible()
	return m, changed
}

// revealRow moves the cursor onto the row with the given ID, changing page
// if needed.
func (m *GridModel) revealRow(id int64) {
	pos, ok := m.session.Reveal(id)
	m.sync()
	if ok {
		m.cursorRow = pos
	}
	m.cursorCol = 0
	m.colOffset = 0
	m.ensureRowVisible()
}

func (m GridModel) sortStatus() tea.Cmd {
	sort := m.session.ViewState().Sort
	if sort == nil {
		return statusCmd("Sort cleared", MsgInfo)
	}
	return statusCmd(fmt.Sprintf("Sorted by %s (%s)", m.session.Table().Label(sort.Column), sort.Direction), MsgInfo)
}

// Apply carries out a confirmed grid action.
func (m GridModel) Apply(done ModalDoneMsg) (GridModel, tea.Cmd) {
	if m.session == nil || !done.OK {
		return m, nil
	}
	s := m.session
	switch done.Action {
	case ActionDeleteRows:
		n, err := s.DeleteSelectedRows()
		if err != nil {
			return m, m.fail(err)
		}
		m.sync()
		return m, tea.Batch(changed, statusCmd(fmt.Sprintf("Deleted %d %s", n, plural(n, "row", "rows")), MsgSuccess))
	case ActionDeleteColumn:
		if err := s.DeleteColumn(m.cursorCol); err != nil {
			return m, m.fail(err)
		}
		m.sync()
		return m, changed
	case ActionRenameColumn:
		if err := s.RenameColumn(m.cursorCol, done.Value); err != nil {
			return m, m.fail(err)
		}
		m.sync()
		return m, changed
	case ActionRowsPerPage:
		n, err := strconv.Atoi(strings.TrimSpace(done.Value))
		if err != nil {
			return m, m.fail(fmt.Errorf("rows per page: %q is not a number", done.Value))
		}
		if err := s.SetRowsPerPage(n); err != nil {
			return m, m.fail(err)
		}
		m.cursorRow, m.scrollOffset = 0, 0
		m.sync()
		return m, statusCmd(fmt.Sprintf("Showing %d rows per page", n), MsgInfo)
	case ActionDiscard:
		s.Discard()
		m.sync()
		return m, tea.Batch(changed, statusCmd("Changes discarded", MsgInfo))
	}
	return m, nil
}

func (m GridModel) updateSearchMode(msg tea.KeyMsg) (GridModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searching = false
		m.searchInput.Blur()
		m.searchInput.SetValue("")
		if err := m.session.SetSearch(""); err != nil {
			return m, m.fail(err)
		}
		m.cursorRow, m.scrollOffset = 0, 0
		m.sync()
		return m, nil
	case "enter":
		m.searching = false
		m.searchInput.Blur()
		d := m.session.Display()
		return m, statusCmd(fmt.Sprintf("%d matching %s", d.FilteredCount, plural(d.FilteredCount, "row", "rows")), MsgInfo)
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	if q := m.searchInput.Value(); q != m.session.ViewState().Search {
		if err := m.session.SetSearch(q); err != nil {
			return m, m.fail(err)
		}
		m.cursorRow, m.scrollOffset = 0, 0
		m.sync()
	}
	return m, cmd
}

func (m GridModel) updateEditMode(msg tea.KeyMsg) (GridModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.session.CancelEdit()
		m.editing = false
		m.editInput.Blur()
		return m, nil
	case "enter", "tab", "shift+tab":
		target, _ := m.session.Editing()
		if err := m.session.CommitEdit(m.editInput.Value()); err != nil {
			m.editing = false
			m.editInput.Blur()
			return m, m.fail(err)
		}
		m.editing = false
		m.editInput.Blur()
		m.sync()

		// The edit may have moved the row under the sort or search.
		pos, onPage := m.session.PagePosition(target.RowID)
		if !onPage {
			return m, changed
		}
		m.cursorRow = pos
		m.ensureRowVisible()

		next := m.cursorCol
		switch msg.String() {
		case "tab":
			next++
		case "shift+tab":
			next--
		}
		if next == m.cursorCol || next < 0 || next >= len(m.colWidths) {
			return m, changed
		}
		m.cursorCol = next
		m.ensureColVisible()
		value, err := m.session.BeginEdit(m.cursorRow, m.cursorCol)
		if err != nil {
			return m, tea.Batch(changed, m.fail(err))
		}
		m.editing = true
		m.editInput.SetValue(value)
		m.editInput.CursorEnd()
		return m, tea.Batch(changed, m.editInput.Focus())
	}

	var cmd tea.Cmd
	m.editInput, cmd = m.editInput.Update(msg)
	return m, cmd
}

func (m *GridModel) ensureRowVisible() {
	visRows := m.visibleRowCount()
	if m.cursorRow < m.scrollOffset {
		m.scrollOffset = m.cursorRow
	} else if m.cursorRow >= m.scrollOffset+visRows {
		m.scrollOffset = m.cursorRow - visRows + 1
	}
}

func (m *GridModel) ensureColVisible() {
	if m.cursorCol < m.colOffset {
		m.colOffset = m.cursorCol
	}
	usedWidth := markerWidth
	for i := m.colOffset; i <= m.cursorCol && i < len(m.colWidths); i++ {
		usedWidth += m.colWidths[i] + 3
	}
	innerW := m.width - 4
	for usedWidth > innerW && m.colOffset < m.cursorCol {
		usedWidth -= m.colWidths[m.colOffset] + 3
		m.colOffset++
	}
}

func (m GridModel) visibleRowCount() int {
	// border (2), header, separator, footer, search line
	return max(m.height-6, 1)
}

// View renders the grid.
func (m GridModel) View() string {
	borderStyle := UnfocusedBorder
	if m.focused {
		borderStyle = FocusedBorder
	}

	innerW := max(m.width-2, 10)
	innerH := max(m.height-2, 3)

	var content string
	switch {
	case m.session == nil:
		content = DimText.Render("Open a file from the list to start editing")
	case m.help.ShowAll:
		content = m.help.View(m.keys)
	default:
		content = m.renderTable(innerW, innerH)
	}
	return borderStyle.Width(innerW).Height(innerH).MaxHeight(innerH + 2).Render(content)
}

func (m GridModel) renderTable(w, h int) string {
	s := m.session
	d := s.Display()
	t := s.Table()
	var b strings.Builder

	title := HeaderStyle.Render(s.FileName())
	if s.HasChanges() {
		title += ModifiedText.Render(" [modified]")
	}
	b.WriteString(title)
	b.WriteString("\n")
	h--

	if q := s.ViewState().Search; m.searching || q != "" {
		line := m.searchInput.View()
		if !m.searching {
			line = SearchLabel.Render("/") + SearchInput.Render(q)
		}
		if d.FilteredCount == 0 {
			line += DimText.Render(" [no matches]")
		} else {
			line += DimText.Render(fmt.Sprintf(" [%d matches]", d.FilteredCount))
		}
		b.WriteString(line)
		b.WriteString("\n")
		h--
	}

	if len(d.Headers) == 0 {
		b.WriteString(DimText.Render("No columns"))
		return b.String()
	}

	visibleCols := m.visibleColumns(w)
	sort := s.ViewState().Sort
	selCol, hasSelCol := s.SelectedColumn()

	headerParts := make([]string, 0, len(visibleCols))
	for _, ci := range visibleCols {
		colW := m.colWidths[ci]
		name := t.Label(ci)
		if sort != nil && sort.Column == ci {
			if sort.Direction == editor.Ascending {
				name += " ▲"
			} else {
				name += " ▼"
			}
		}
		style := HeaderStyle
		if hasSelCol && selCol == ci {
			style = SelectedHeader
		}
		headerParts = append(headerParts, style.Width(colW).Render(truncate(name, colW)))
	}
	b.WriteString(strings.Repeat(" ", markerWidth))
	b.WriteString(strings.Join(headerParts, " | "))
	b.WriteString("\n")

	sepParts := make([]string, 0, len(visibleCols))
	for _, ci := range visibleCols {
		sepParts = append(sepParts, strings.Repeat("─", m.colWidths[ci]))
	}
	b.WriteString(DimText.Render(strings.Repeat("─", markerWidth) + strings.Join(sepParts, "─┼─")))
	b.WriteString("\n")

	visRows := max(h-3, 1)
	start := min(m.scrollOffset, d.RowCount)
	end := min(start+visRows, d.RowCount)

	if d.RowCount == 0 {
		msg := "No rows"
		if s.ViewState().Search != "" {
			msg = "No rows match the search"
		}
		b.WriteString(DimText.Render(msg))
	}

	for ri := start; ri < end; ri++ {
		row := d.Rows[ri]
		selected := s.IsRowSelected(row.ID)
		marker := "  "
		if selected {
			marker = AccentText.Render("● ")
		}

		rowParts := make([]string, 0, len(visibleCols))
		for _, ci := range visibleCols {
			colW := m.colWidths[ci]
			isCursor := ri == m.cursorRow && ci == m.cursorCol && m.focused

			if m.editing && isCursor {
				m.editInput.Width = colW
				rowParts = append(rowParts, CellEditing.Width(colW).Render(truncate(m.editInput.View(), colW)))
				continue
			}

			cell := row.Cells[ci]
			val := truncate(sanitizeCell(cell.String()), colW)
			_, modified := s.Changes().CellEdit(row.ID, ci)

			var style lipgloss.Style
			switch {
			case isCursor:
				style = CellCursor
			case selected, hasSelCol && selCol == ci:
				style = CellSelected
			case modified:
				style = ModifiedText
			case cell.IsEmpty():
				style = EmptyText
			default:
				style = CellNormal
			}
			if cell.IsNumber() && !isCursor {
				style = style.Align(lipgloss.Right)
			}
			rowParts = append(rowParts, style.Width(colW).Render(val))
		}
		b.WriteString(marker)
		b.WriteString(strings.Join(rowParts, " | "))
		b.WriteString("\n")
	}

	for i := end - start; i < visRows; i++ {
		b.WriteString("\n")
	}
	b.WriteString(m.footer(d, w))
	return b.String()
}

func (m GridModel) footer(d editor.Display, w int) string {
	parts := []string{m.pager.View()}
	if d.RowCount > 0 {
		parts = append(parts, fmt.Sprintf("rows %d-%d of %d", d.Offset+1, d.Offset+d.RowCount, d.FilteredCount))
	} else {
		parts = append(parts, fmt.Sprintf("0 of %d rows", d.FilteredCount))
	}
	if total := m.session.Table().RowCount(); total != d.FilteredCount {
		parts = append(parts, fmt.Sprintf("%d total", total))
	}
	if n := m.session.SelectedRowCount(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d selected", n))
	}
	info := DimText.Render(strings.Join(parts, " · "))
	hints := m.help.ShortHelpView(m.keys.ShortHelp())
	if lipgloss.Width(info)+2+lipgloss.Width(hints) > w {
		return info
	}
	return info + "  " + hints
}

func (m GridModel) visibleColumns(availWidth int) []int {
	if len(m.colWidths) == 0 {
		return nil
	}
	var cols []int
	usedWidth := markerWidth
	for i := m.colOffset; i < len(m.colWidths); i++ {
		needed := m.colWidths[i]
		if len(cols) > 0 {
			needed += 3
		}
		if usedWidth+needed > availWidth && len(cols) > 0 {
			break
		}
		cols = append(cols, i)
		usedWidth += needed
	}
	return cols
}

func sanitizeCell(s string) string {
	r := strings.NewReplacer("\r\n", "↵", "\n", "↵", "\r", "↵", "\t", " ")
	return r.Replace(s)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
