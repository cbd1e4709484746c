package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"sheetdb/internal/config"
	"sheetdb/internal/db"
	"sheetdb/internal/editor"
	"sheetdb/internal/sheet"
	"sheetdb/internal/ui"
	"sheetdb/internal/workspace"
)

const (
	filesPaneWidth = 34
	exportTimeout  = 30 * time.Second
)

// Options configure the root model.
type Options struct {
	// Workspace is nil when a single local file is edited.
	Workspace *workspace.Workspace
	// LocalTable and LocalName describe the local file, if any.
	LocalTable *sheet.Table
	LocalName  string
	// SaveDir receives the _edited output files.
	SaveDir string
	// ExportURI is the PostgreSQL URI used by the export action.
	ExportURI string
	Editor    config.Editor
	// Title is shown in the top bar.
	Title string
	Log   logrus.FieldLogger
}

// tickMsg is sent to clear expired status messages.
type tickMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg{}
	})
}

// filesLoadedMsg carries the workspace listing.
type filesLoadedMsg struct {
	listing workspace.Listing
	err     error
}

// fileOpenedMsg carries a downloaded and parsed file.
type fileOpenedMsg struct {
	file  workspace.File
	table *sheet.Table
	err   error
}

// uploadedMsg carries the result of an upload and its preview.
type uploadedMsg struct {
	file    workspace.File
	preview sheet.PreviewData
	err     error
}

// renamedMsg carries the result of a rename.
type renamedMsg struct {
	from string
	file workspace.File
	err  error
}

// deletedMsg carries the result of a delete.
type deletedMsg struct {
	file workspace.File
	err  error
}

// exportedMsg carries the result of a database export.
type exportedMsg struct {
	table string
	rows  int64
	err   error
}

// Model is the root Bubble Tea model.
type Model struct {
	activePane ui.Pane
	files      ui.FilesModel
	grid       ui.GridModel
	modal      ui.ModalModel
	statusbar  ui.StatusBarModel

	ws         *workspace.Workspace
	activeFile workspace.File
	localName  string
	saveDir    string
	exportURI  string
	editorCfg  config.Editor
	title      string
	log        logrus.FieldLogger

	width  int
	height int
}

// NewModel creates the root app model.
func NewModel(opts Options) Model {
	log := opts.Log
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	m := Model{
		files:     ui.NewFilesModel(),
		grid:      ui.NewGridModel(),
		modal:     ui.NewModalModel(),
		statusbar: ui.NewStatusBarModel(),
		ws:        opts.Workspace,
		localName: opts.LocalName,
		saveDir:   opts.SaveDir,
		exportURI: opts.ExportURI,
		editorCfg: opts.Editor,
		title:     opts.Title,
		log:       log,
	}
	if m.saveDir == "" {
		m.saveDir = "."
	}

	if opts.LocalTable != nil {
		name := filepath.Base(opts.LocalName)
		m.grid.SetSession(m.newSession(opts.LocalTable, name, workspace.ContentType(name)))
	}
	if m.ws != nil {
		m.focus(ui.PaneFiles)
	} else {
		m.focus(ui.PaneGrid)
	}
	return m
}

func (m Model) newSession(t *sheet.Table, name, fileType string) *editor.Session {
	return editor.NewSession(t, editor.Options{
		FileName:    name,
		FileType:    fileType,
		RowsPerPage: m.editorCfg.RowsPerPage,
		Features:    m.editorCfg.Features,
	})
}

// Init starts the app.
func (m Model) Init() tea.Cmd {
	if m.ws == nil {
		return tickCmd()
	}
	return tea.Batch(tickCmd(), m.loadFiles())
}

// Update handles all messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		return m, nil

	case tickMsg:
		m.statusbar.ClearExpiredMessage()
		return m, tickCmd()

	case ui.StatusMsg:
		m.statusbar.SetMessage(msg.Text, msg.Type)
		return m, nil

	case ui.ConfirmRequestMsg:
		m.modal.OpenConfirm(msg.Action, msg.Prompt)
		return m, nil

	case ui.PromptRequestMsg:
		return m, m.modal.OpenPrompt(msg.Action, msg.Title, msg.Initial)

	case ui.ModalDoneMsg:
		return m.applyModal(msg)

	case ui.GridChangedMsg:
		m.refreshPending()
		return m, nil

	case ui.SaveRequestMsg:
		m.save()
		return m, nil

	case ui.FileSelectedMsg:
		return m.open(msg.File)

	case ui.RefreshFilesMsg:
		return m.startOp("Refreshing", m.loadFiles())

	case filesLoadedMsg:
		m.statusbar.SetBusy("")
		if msg.err != nil {
			m.fail("Failed to load files", msg.err)
			return m, nil
		}
		m.files.SetListing(msg.listing)
		return m, nil

	case fileOpenedMsg:
		m.statusbar.SetBusy("")
		if msg.err != nil {
			m.fail("Failed to open "+msg.file.DisplayName, msg.err)
			return m, nil
		}
		m.activeFile = msg.file
		m.files.SetActive(msg.file.Name)
		m.grid.SetSession(m.newSession(msg.table, msg.file.DisplayName, msg.file.MimeType))
		m.refreshPending()
		m.focus(ui.PaneGrid)
		m.statusbar.SetMessage(fmt.Sprintf("Opened %s (%d rows)", msg.file.DisplayName, msg.table.RowCount()), ui.MsgSuccess)
		return m, nil

	case uploadedMsg:
		m.statusbar.SetBusy("")
		if msg.err != nil {
			m.fail("Upload failed", msg.err)
			return m, nil
		}
		if m.hasUnsaved() {
			m.statusbar.SetMessage(fmt.Sprintf("Uploaded %s, save or discard changes to open it", msg.file.DisplayName), ui.MsgInfo)
			return m.startOp("Refreshing", m.loadFiles())
		}
		m.activeFile = msg.file
		m.files.SetActive(msg.file.Name)
		m.grid.SetSession(m.newSession(msg.preview.Table(), msg.preview.FileName, msg.preview.FileType))
		m.refreshPending()
		m.focus(ui.PaneGrid)
		m.statusbar.SetMessage(fmt.Sprintf("Uploaded %s (%d rows)", msg.file.DisplayName, msg.preview.RowCount), ui.MsgSuccess)
		return m.startOp("Refreshing", m.loadFiles())

	case renamedMsg:
		m.statusbar.SetBusy("")
		if msg.err != nil {
			m.fail("Rename failed", msg.err)
			return m, nil
		}
		if m.activeFile.Name == msg.from {
			m.activeFile = msg.file
			m.files.SetActive(msg.file.Name)
		}
		m.statusbar.SetMessage("Renamed to "+msg.file.DisplayName, ui.MsgSuccess)
		return m.startOp("Refreshing", m.loadFiles())

	case deletedMsg:
		m.statusbar.SetBusy("")
		if msg.err != nil {
			m.fail("Delete failed", msg.err)
			return m, nil
		}
		if m.activeFile.Name == msg.file.Name {
			m.activeFile = workspace.File{}
			m.files.SetActive("")
			m.grid.Clear()
			m.refreshPending()
		}
		m.statusbar.SetMessage("Deleted "+msg.file.DisplayName, ui.MsgSuccess)
		return m.startOp("Refreshing", m.loadFiles())

	case exportedMsg:
		m.statusbar.SetBusy("")
		if msg.err != nil {
			m.fail("Export failed", msg.err)
			return m, nil
		}
		m.statusbar.SetMessage(fmt.Sprintf("Exported %d %s to %s", msg.rows, plural(int(msg.rows), "row", "rows"), msg.table), ui.MsgSuccess)
		return m, nil

	case tea.KeyMsg:
		if m.modal.Visible() {
			var cmd tea.Cmd
			m.modal, cmd = m.modal.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c":
			return m.quit()
		case "q":
			if !m.grid.CapturesInput() {
				return m.quit()
			}
		case "tab", "shift+tab":
			if m.ws != nil && !m.grid.CapturesInput() {
				if m.activePane == ui.PaneFiles {
					m.focus(ui.PaneGrid)
				} else {
					m.focus(ui.PaneFiles)
				}
				return m, nil
			}
		}
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.statusbar, cmd = m.statusbar.Update(msg)
	cmds = append(cmds, cmd)

	if m.modal.Visible() {
		m.modal, cmd = m.modal.Update(msg)
		return m, tea.Batch(append(cmds, cmd)...)
	}

	// Forward to focused pane
	switch m.activePane {
	case ui.PaneFiles:
		m.files, cmd = m.files.Update(msg)
	case ui.PaneGrid:
		m.grid, cmd = m.grid.Update(msg)
		m.statusbar.SetEditMode(m.grid.IsEditing())
	}
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// applyModal routes a closed modal to the grid or to a file action.
func (m Model) applyModal(done ui.ModalDoneMsg) (tea.Model, tea.Cmd) {
	if !done.OK {
		if done.Action != ui.ActionNone {
			m.statusbar.SetMessage("Cancelled", ui.MsgInfo)
		}
		return m, nil
	}

	switch done.Action {
	case ui.ActionDeleteRows, ui.ActionDeleteColumn, ui.ActionRenameColumn, ui.ActionRowsPerPage, ui.ActionDiscard:
		var cmd tea.Cmd
		m.grid, cmd = m.grid.Apply(done)
		return m, cmd

	case ui.ActionQuit:
		return m, tea.Quit

	case ui.ActionUpload:
		if m.hasUnsaved() {
			m.statusbar.SetMessage("Save or discard changes before uploading", ui.MsgError)
			return m, nil
		}
		return m.startOp("Uploading", m.upload(done.Value))

	case ui.ActionRenameFile:
		f, ok := m.files.Current()
		if !ok {
			return m, nil
		}
		return m.startOp("Renaming", m.rename(f, done.Value))

	case ui.ActionDeleteFile:
		f, ok := m.files.Current()
		if !ok {
			return m, nil
		}
		return m.startOp("Deleting", m.delete(f))

	case ui.ActionExport:
		if m.exportURI == "" {
			m.statusbar.SetMessage("No export database configured (use --export-uri)", ui.MsgError)
			return m, nil
		}
		s := m.grid.Session()
		if s == nil {
			return m, nil
		}
		return m.startOp("Exporting", m.export(s.Table().Clone(), strings.TrimSpace(done.Value)))
	}
	return m, nil
}

// startOp runs cmd unless another storage operation is still running.
func (m Model) startOp(label string, cmd tea.Cmd) (tea.Model, tea.Cmd) {
	if m.statusbar.Busy() {
		m.statusbar.SetMessage("Another operation is still running", ui.MsgError)
		return m, nil
	}
	return m, tea.Batch(m.statusbar.SetBusy(label+"..."), cmd)
}

func (m Model) hasUnsaved() bool {
	s := m.grid.Session()
	return s != nil && s.HasChanges()
}

func (m Model) open(f workspace.File) (tea.Model, tea.Cmd) {
	if m.hasUnsaved() {
		m.statusbar.SetMessage("Save or discard changes before opening another file", ui.MsgError)
		return m, nil
	}
	return m.startOp("Opening "+f.DisplayName, m.openFile(f))
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if s := m.grid.Session(); s != nil && s.HasChanges() {
		m.modal.OpenConfirm(ui.ActionQuit, fmt.Sprintf("Quit with %s unsaved?", s.Changes().Summary()))
		return m, nil
	}
	return m, tea.Quit
}

func (m *Model) save() {
	s := m.grid.Session()
	if s == nil {
		return
	}
	path, err := s.SaveFile(m.saveDir)
	if err != nil {
		m.fail("Save failed", err)
		return
	}
	m.log.WithFields(logrus.Fields{"path": path, "rows": s.Table().RowCount()}).Info("table saved")
	m.refreshPending()
	m.statusbar.SetMessage("Saved "+path, ui.MsgSuccess)
}

func (m *Model) fail(prefix string, err error) {
	m.log.WithError(err).Warn(strings.ToLower(prefix))
	m.statusbar.SetMessage(prefix+": "+err.Error(), ui.MsgError)
}

func (m *Model) refreshPending() {
	s := m.grid.Session()
	if s == nil {
		m.statusbar.SetPending(0, "")
		return
	}
	m.statusbar.SetPending(s.Changes().PendingCount(), s.Changes().Summary())
}

func (m *Model) focus(p ui.Pane) {
	m.activePane = p
	m.files.SetFocused(p == ui.PaneFiles)
	m.grid.SetFocused(p == ui.PaneGrid)
	m.statusbar.SetActivePane(p)
	m.statusbar.SetEditMode(false)
}

func (m *Model) recalcLayout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	availH := m.height - 3 // top bar + status bar + spacing
	if availH < 6 {
		availH = 6
	}
	gridW := m.width
	if m.ws != nil {
		m.files.SetSize(filesPaneWidth, availH)
		gridW = m.width - filesPaneWidth - 1
	}
	m.grid.SetSize(gridW, availH)
	m.modal.SetSize(m.width, m.height)
	m.statusbar.SetWidth(m.width)
}

// View renders the full layout.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.modal.Visible() {
		return m.modal.View()
	}

	topBar := ui.TopBarStyle.Width(m.width - 2).Render(fmt.Sprintf(" %s ", m.topBarText()))

	mainArea := m.grid.View()
	if m.ws != nil {
		mainArea = lipgloss.JoinHorizontal(lipgloss.Top, m.files.View(), mainArea)
	}
	return lipgloss.JoinVertical(lipgloss.Left, topBar, mainArea, m.statusbar.View())
}

func (m Model) topBarText() string {
	parts := []string{"sheetdb"}
	if m.title != "" {
		parts = append(parts, m.title)
	}
	switch {
	case m.ws == nil && m.localName != "":
		parts = append(parts, m.localName)
	case m.activeFile.Name != "":
		parts = append(parts, m.activeFile.DisplayName)
	}
	return strings.Join(parts, " | ")
}

func (m Model) loadFiles() tea.Cmd {
	ws := m.ws
	return func() tea.Msg {
		l, err := ws.Files(context.Background())
		return filesLoadedMsg{listing: l, err: err}
	}
}

func (m Model) openFile(f workspace.File) tea.Cmd {
	ws := m.ws
	return func() tea.Msg {
		t, err := ws.Open(context.Background(), f)
		return fileOpenedMsg{file: f, table: t, err: err}
	}
}

func (m Model) upload(path string) tea.Cmd {
	ws := m.ws
	if ws == nil {
		return nil
	}
	path = expandHome(strings.TrimSpace(path))
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return uploadedMsg{err: fmt.Errorf("read %s: %w", path, err)}
		}
		f, preview, err := ws.Upload(context.Background(), filepath.Base(path), data)
		return uploadedMsg{file: f, preview: preview, err: err}
	}
}

func (m Model) rename(f workspace.File, name string) tea.Cmd {
	ws := m.ws
	return func() tea.Msg {
		nf, err := ws.Rename(context.Background(), f, name)
		return renamedMsg{from: f.Name, file: nf, err: err}
	}
}

func (m Model) delete(f workspace.File) tea.Cmd {
	ws := m.ws
	return func() tea.Msg {
		return deletedMsg{file: f, err: ws.Delete(context.Background(), f)}
	}
}

func (m Model) export(t *sheet.Table, table string) tea.Cmd {
	uri := m.exportURI
	log := m.log
	return func() tea.Msg {
		if table == "" {
			return exportedMsg{err: errors.New("table name cannot be empty")}
		}
		d, err := db.ConnectURI(uri)
		if err != nil {
			return exportedMsg{err: err}
		}
		defer d.Close()

		ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
		defer cancel()
		n, err := d.ExportTable(ctx, t, table)
		if err != nil {
			return exportedMsg{table: table, err: err}
		}
		log.WithFields(logrus.Fields{"table": table, "rows": n}).Info("table exported")
		return exportedMsg{table: table, rows: n}
	}
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
