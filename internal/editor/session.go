package editor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"sheetdb/internal/sheet"
)

var (
	// ErrLastColumn is returned when deleting the only remaining column.
	ErrLastColumn = errors.New("cannot delete the last column")
	// ErrOutOfRange is returned for a row or column outside the current view.
	ErrOutOfRange = errors.New("position out of range")
	// ErrFeatureDisabled is returned when an operation's feature is off.
	ErrFeatureDisabled = errors.New("feature disabled")
	// ErrNotEditing is returned by CommitEdit when no cell is being edited.
	ErrNotEditing = errors.New("no cell is being edited")
)

// DefaultRowsPerPage is the page size used when none is configured.
const DefaultRowsPerPage = 50

// Features switches editor capabilities on and off.
type Features struct {
	Search     bool `json:"search"`
	Sort       bool `json:"sort"`
	Pagination bool `json:"pagination"`
	RowOps     bool `json:"rowOps"`
	ColumnOps  bool `json:"columnOps"`
}

// AllFeatures enables everything.
func AllFeatures() Features {
	return Features{Search: true, Sort: true, Pagination: true, RowOps: true, ColumnOps: true}
}

// Options configure a new Session.
type Options struct {
	FileName    string
	FileType    string
	RowsPerPage int
	Features    Features
}

// EditTarget identifies the cell in edit mode by row ID, so it stays put
// while the row moves within the view.
type EditTarget struct {
	RowID  int64
	Column int
}

// Session is one editing session over a loaded table.
type Session struct {
	table    *sheet.Table
	original *sheet.Table
	view     ViewState
	features Features
	changes  *ChangeTracker

	selRows map[int64]struct{}
	selCol  int
	editing *EditTarget

	display *Display

	fileName string
	fileType string
}

// NewSession starts a session over t. The session takes ownership of t.
func NewSession(t *sheet.Table, opts Options) *Session {
	rpp := opts.RowsPerPage
	if rpp <= 0 {
		rpp = DefaultRowsPerPage
	}
	return &Session{
		table:    t,
		original: t.Clone(),
		view:     ViewState{Page: 1, RowsPerPage: rpp},
		features: opts.Features,
		changes:  NewChangeTracker(),
		selRows:  make(map[int64]struct{}),
		selCol:   -1,
		fileName: opts.FileName,
		fileType: opts.FileType,
	}
}

// Table returns the canonical table.
func (s *Session) Table() *sheet.Table { return s.table }

// FileName returns the name of the loaded file.
func (s *Session) FileName() string { return s.fileName }

// FileType returns the content type of the loaded file.
func (s *Session) FileType() string { return s.fileType }

// Features returns the enabled features.
func (s *Session) Features() Features { return s.features }

// Changes returns the change tracker.
func (s *Session) Changes() *ChangeTracker { return s.changes }

// HasChanges reports whether there are unsaved changes.
func (s *Session) HasChanges() bool { return s.changes.HasChanges() }

// ViewState returns the current view state.
func (s *Session) ViewState() ViewState { return s.view }

func (s *Session) effectiveView() ViewState {
	v := s.view
	if !s.features.Pagination {
		v.Page = 1
		v.RowsPerPage = max(s.table.RowCount(), 1)
	}
	return v
}

// Display returns the current page of the view.
func (s *Session) Display() Display {
	if s.display == nil {
		d := Transform(s.table, s.effectiveView())
		s.display = &d
	}
	return *s.display
}

func (s *Session) invalidate() {
	s.display = nil
}

// viewChanged is called when the visible window moves. Selection is only
// meaningful within one window, so it is dropped.
func (s *Session) viewChanged() {
	s.invalidate()
	s.clearSelection()
}

// clampPage keeps the page within range after the row count changed.
func (s *Session) clampPage() {
	s.invalidate()
	total := TotalPages(len(FilterRows(s.table.Rows(), s.view.Search)), s.view.RowsPerPage)
	if s.view.Page > total {
		s.view.Page = total
	}
	if s.view.Page < 1 {
		s.view.Page = 1
	}
}

// resolve maps a row of the current page to its canonical index.
func (s *Session) resolve(viewRow int) (int64, int, error) {
	d := s.Display()
	if viewRow < 0 || viewRow >= len(d.Rows) {
		return 0, 0, fmt.Errorf("%w: row %d of %d", ErrOutOfRange, viewRow, len(d.Rows))
	}
	id := d.Rows[viewRow].ID
	idx, ok := s.table.IndexOf(id)
	if !ok {
		return 0, 0, fmt.Errorf("%w: row %d", ErrOutOfRange, id)
	}
	return id, idx, nil
}

func (s *Session) checkColumn(col int) error {
	if col < 0 || col >= s.table.Width() {
		return fmt.Errorf("%w: column %d of %d", ErrOutOfRange, col, s.table.Width())
	}
	return nil
}

// SetSearch changes the search filter and goes back to the first page.
func (s *Session) SetSearch(q string) error {
	if !s.features.Search {
		return fmt.Errorf("search: %w", ErrFeatureDisabled)
	}
	if q == s.view.Search {
		return nil
	}
	s.view.Search = q
	s.view.Page = 1
	s.viewChanged()
	return nil
}

// ToggleSort cycles the sort on col and goes back to the first page.
func (s *Session) ToggleSort(col int) error {
	if !s.features.Sort {
		return fmt.Errorf("sort: %w", ErrFeatureDisabled)
	}
	if err := s.checkColumn(col); err != nil {
		return err
	}
	s.view.Sort = NextSort(s.view.Sort, col)
	s.view.Page = 1
	s.viewChanged()
	return nil
}

// SetPage moves to page p, clamped to the valid range.
func (s *Session) SetPage(p int) error {
	if !s.features.Pagination {
		return fmt.Errorf("pagination: %w", ErrFeatureDisabled)
	}
	total := s.Display().TotalPages
	p = min(max(p, 1), total)
	if p == s.view.Page {
		return nil
	}
	s.view.Page = p
	s.viewChanged()
	return nil
}

// NextPage moves one page forward.
func (s *Session) NextPage() error { return s.SetPage(s.view.Page + 1) }

// PrevPage moves one page back.
func (s *Session) PrevPage() error { return s.SetPage(s.view.Page - 1) }

// SetRowsPerPage changes the page size and goes back to the first page.
func (s *Session) SetRowsPerPage(n int) error {
	if !s.features.Pagination {
		return fmt.Errorf("pagination: %w", ErrFeatureDisabled)
	}
	if n <= 0 {
		return fmt.Errorf("%w: rows per page %d", ErrOutOfRange, n)
	}
	s.view.RowsPerPage = n
	s.view.Page = 1
	s.viewChanged()
	return nil
}

// EditCell sets the cell at a row of the current page and column col.
func (s *Session) EditCell(viewRow, col int, value string) error {
	id, idx, err := s.resolve(viewRow)
	if err != nil {
		return err
	}
	if err := s.checkColumn(col); err != nil {
		return err
	}
	s.setCell(id, idx, col, value)
	return nil
}

func (s *Session) setCell(id int64, idx, col int, value string) {
	old := s.table.Row(idx).Cells[col]
	if !old.IsNumber() && old.String() == value {
		return
	}
	s.table.SetCell(idx, col, sheet.Text(value))
	s.changes.Record(Change{Type: OpEdit, RowID: id, Column: col, OldValue: old.String(), NewValue: value})
	s.invalidate()
}

// BeginEdit puts the cell at a row of the current page into edit mode and
// returns its current value.
func (s *Session) BeginEdit(viewRow, col int) (string, error) {
	id, idx, err := s.resolve(viewRow)
	if err != nil {
		return "", err
	}
	if err := s.checkColumn(col); err != nil {
		return "", err
	}
	s.editing = &EditTarget{RowID: id, Column: col}
	return s.table.Row(idx).Cells[col].String(), nil
}

// Editing returns the cell in edit mode, if any.
func (s *Session) Editing() (EditTarget, bool) {
	if s.editing == nil {
		return EditTarget{}, false
	}
	return *s.editing, true
}

// PagePosition returns where the row with the given ID sits on the current
// page.
func (s *Session) PagePosition(id int64) (int, bool) {
	for i, r := range s.Display().Rows {
		if r.ID == id {
			return i, true
		}
	}
	return 0, false
}

// Reveal moves to the page that holds the row with the given ID and returns
// its position on that page. It reports false when the search hides the row.
func (s *Session) Reveal(id int64) (int, bool) {
	v := s.view
	v.Page, v.RowsPerPage = 1, 0
	for i, r := range Transform(s.table, v).Rows {
		if r.ID != id {
			continue
		}
		if !s.features.Pagination {
			return i, true
		}
		rpp := s.view.RowsPerPage
		_ = s.SetPage(i/rpp + 1)
		return i % rpp, true
	}
	return 0, false
}

// CommitEdit writes value into the cell in edit mode and leaves edit mode.
func (s *Session) CommitEdit(value string) error {
	if s.editing == nil {
		return ErrNotEditing
	}
	target := *s.editing
	s.editing = nil
	idx, ok := s.table.IndexOf(target.RowID)
	if !ok {
		return fmt.Errorf("%w: row %d", ErrOutOfRange, target.RowID)
	}
	if err := s.checkColumn(target.Column); err != nil {
		return err
	}
	s.setCell(target.RowID, idx, target.Column, value)
	return nil
}

// CancelEdit leaves edit mode without changing the cell.
func (s *Session) CancelEdit() {
	s.editing = nil
}

// AddRow appends an empty row at the end of the canonical table.
func (s *Session) AddRow() (sheet.Row, error) {
	if !s.features.RowOps {
		return sheet.Row{}, fmt.Errorf("add row: %w", ErrFeatureDisabled)
	}
	r := s.table.AppendRow()
	s.changes.Record(Change{Type: OpInsertRow, RowID: r.ID})
	s.invalidate()
	return r, nil
}

// ToggleRowSelection selects or unselects a row of the current page.
func (s *Session) ToggleRowSelection(viewRow int) error {
	if !s.features.RowOps {
		return fmt.Errorf("select row: %w", ErrFeatureDisabled)
	}
	id, _, err := s.resolve(viewRow)
	if err != nil {
		return err
	}
	if _, ok := s.selRows[id]; ok {
		delete(s.selRows, id)
	} else {
		s.selRows[id] = struct{}{}
	}
	return nil
}

// IsRowSelected reports whether the row with the given ID is selected.
func (s *Session) IsRowSelected(id int64) bool {
	_, ok := s.selRows[id]
	return ok
}

// SelectedRowCount returns the number of selected rows.
func (s *Session) SelectedRowCount() int {
	return len(s.selRows)
}

// SelectColumn selects column col, or unselects it if already selected.
func (s *Session) SelectColumn(col int) error {
	if err := s.checkColumn(col); err != nil {
		return err
	}
	if s.selCol == col {
		s.selCol = -1
	} else {
		s.selCol = col
	}
	return nil
}

// SelectedColumn returns the selected column, if any.
func (s *Session) SelectedColumn() (int, bool) {
	return s.selCol, s.selCol >= 0
}

// ClearSelection drops the row and column selection.
func (s *Session) ClearSelection() {
	s.clearSelection()
}

func (s *Session) clearSelection() {
	clear(s.selRows)
	s.selCol = -1
}

// DeleteSelectedRows removes the selected rows and returns how many were
// removed.
func (s *Session) DeleteSelectedRows() (int, error) {
	if !s.features.RowOps {
		return 0, fmt.Errorf("delete rows: %w", ErrFeatureDisabled)
	}
	if len(s.selRows) == 0 {
		return 0, nil
	}
	indices := make([]int, 0, len(s.selRows))
	for id := range s.selRows {
		if idx, ok := s.table.IndexOf(id); ok {
			indices = append(indices, idx)
		}
	}
	if s.editing != nil {
		if _, ok := s.selRows[s.editing.RowID]; ok {
			s.editing = nil
		}
	}
	n := s.table.DeleteRows(indices)
	if n > 0 {
		s.changes.Record(Change{Type: OpDeleteRows, Count: n})
	}
	s.clearSelection()
	s.clampPage()
	return n, nil
}

// AddColumn appends a column named "Column N+1".
func (s *Session) AddColumn() error {
	if !s.features.ColumnOps {
		return fmt.Errorf("add column: %w", ErrFeatureDisabled)
	}
	col := s.table.Width()
	s.table.AppendColumn(sheet.DefaultLabel(col))
	s.changes.Record(Change{Type: OpAddColumn, Column: col})
	s.invalidate()
	return nil
}

// RenameColumn renames column col. An empty name falls back to the default
// label.
func (s *Session) RenameColumn(col int, name string) error {
	if !s.features.ColumnOps {
		return fmt.Errorf("rename column: %w", ErrFeatureDisabled)
	}
	if err := s.checkColumn(col); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = sheet.DefaultLabel(col)
	}
	old := s.table.Headers()[col]
	if old == name {
		return nil
	}
	s.table.RenameColumn(col, name)
	s.changes.Record(Change{Type: OpRenameColumn, Column: col, OldValue: old, NewValue: name})
	s.invalidate()
	return nil
}

// DeleteColumn removes column col. The last remaining column cannot be
// deleted.
func (s *Session) DeleteColumn(col int) error {
	if !s.features.ColumnOps {
		return fmt.Errorf("delete column: %w", ErrFeatureDisabled)
	}
	if err := s.checkColumn(col); err != nil {
		return err
	}
	if s.table.Width() <= 1 {
		return ErrLastColumn
	}
	old := s.table.Headers()[col]
	s.table.DeleteColumn(col)
	s.changes.Record(Change{Type: OpDeleteColumn, Column: col, OldValue: old})

	s.remapColumns(func(c int) (int, bool) {
		switch {
		case c == col:
			return 0, false
		case c > col:
			return c - 1, true
		default:
			return c, true
		}
	})
	return nil
}

// MoveColumn moves column from to index to.
func (s *Session) MoveColumn(from, to int) error {
	if !s.features.ColumnOps {
		return fmt.Errorf("move column: %w", ErrFeatureDisabled)
	}
	if err := s.checkColumn(from); err != nil {
		return err
	}
	if err := s.checkColumn(to); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	s.table.MoveColumn(from, to)
	s.changes.Record(Change{Type: OpMoveColumn, Column: from, NewValue: fmt.Sprint(to)})

	s.remapColumns(func(c int) (int, bool) {
		switch {
		case c == from:
			return to, true
		case from < to && c > from && c <= to:
			return c - 1, true
		case to < from && c >= to && c < from:
			return c + 1, true
		default:
			return c, true
		}
	})
	return nil
}

// remapColumns carries the sort, column selection and edit target along
// with a column move or removal.
func (s *Session) remapColumns(remap func(int) (int, bool)) {
	if s.view.Sort != nil {
		if c, ok := remap(s.view.Sort.Column); ok {
			s.view.Sort = &SortSpec{Column: c, Direction: s.view.Sort.Direction}
		} else {
			s.view.Sort = nil
			s.view.Page = 1
		}
	}
	if s.selCol >= 0 {
		if c, ok := remap(s.selCol); ok {
			s.selCol = c
		} else {
			s.selCol = -1
		}
	}
	if s.editing != nil {
		if c, ok := remap(s.editing.Column); ok {
			s.editing.Column = c
		} else {
			s.editing = nil
		}
	}
	s.changes.remapColumns(remap)
	s.invalidate()
}

// Discard restores the table as it was at load time or at the last save.
func (s *Session) Discard() {
	s.table = s.original.Clone()
	s.changes.Clear()
	s.editing = nil
	s.clearSelection()
	if s.view.Sort != nil && s.view.Sort.Column >= s.table.Width() {
		s.view.Sort = nil
	}
	s.clampPage()
}

// Encode serializes the table in the family of the loaded file.
func (s *Session) Encode() (sheet.Output, error) {
	return sheet.Encode(s.table, s.fileName)
}

// Save writes the serialized table to w and marks the session clean.
func (s *Session) Save(w io.Writer) (sheet.Output, error) {
	out, err := s.Encode()
	if err != nil {
		return sheet.Output{}, err
	}
	if _, err := w.Write(out.Data); err != nil {
		return sheet.Output{}, fmt.Errorf("write %s: %w", out.Name, err)
	}
	s.MarkSaved()
	return out, nil
}

// SaveFile writes the serialized table into dir and returns the file path.
func (s *Session) SaveFile(dir string) (string, error) {
	out, err := s.Encode()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, filepath.Base(out.Name))
	if err := os.WriteFile(path, out.Data, 0644); err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	s.MarkSaved()
	return path, nil
}

// MarkSaved makes the current table the new restore point.
func (s *Session) MarkSaved() {
	s.original = s.table.Clone()
	s.changes.Clear()
}
