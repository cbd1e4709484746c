package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"sheetdb/internal/workspace"
)

// FileSelectedMsg is sent when a file is opened from the list.
type FileSelectedMsg struct {
	File workspace.File
}

// RefreshFilesMsg asks the app to reload the file list.
type RefreshFilesMsg struct{}

// FilesModel is the workspace file list.
type FilesModel struct {
	listing workspace.Listing
	cursor  int
	active  string
	loading bool
	focused bool
	keys    FilesKeyMap
	width   int
	height  int
}

// NewFilesModel creates an empty file list.
func NewFilesModel() FilesModel {
	return FilesModel{keys: DefaultFilesKeys(), loading: true}
}

// SetFocused sets the focus state.
func (m *FilesModel) SetFocused(f bool) {
	m.focused = f
}

// SetSize sets the list dimensions.
func (m *FilesModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetListing replaces the listed files.
func (m *FilesModel) SetListing(l workspace.Listing) {
	m.listing = l
	m.loading = false
	if m.cursor >= len(l.Files) {
		m.cursor = max(0, len(l.Files)-1)
	}
}

// SetActive marks the file open in the grid.
func (m *FilesModel) SetActive(name string) {
	m.active = name
}

// Current returns the file under the cursor.
func (m FilesModel) Current() (workspace.File, bool) {
	if m.cursor < 0 || m.cursor >= len(m.listing.Files) {
		return workspace.File{}, false
	}
	return m.listing.Files[m.cursor], true
}

// Update handles key events.
func (m FilesModel) Update(msg tea.Msg) (FilesModel, tea.Cmd) {
	if !m.focused {
		return m, nil
	}
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, m.keys.Down):
		if m.cursor < len(m.listing.Files)-1 {
			m.cursor++
		}
	case key.Matches(keyMsg, m.keys.Open):
		if f, ok := m.Current(); ok {
			return m, func() tea.Msg { return FileSelectedMsg{File: f} }
		}
	case key.Matches(keyMsg, m.keys.Upload):
		return m, func() tea.Msg {
			return PromptRequestMsg{Action: ActionUpload, Title: "Upload file (path to .csv or .xlsx)"}
		}
	case key.Matches(keyMsg, m.keys.Rename):
		if f, ok := m.Current(); ok {
			return m, func() tea.Msg {
				return PromptRequestMsg{Action: ActionRenameFile, Title: "Rename file", Initial: f.DisplayName}
			}
		}
	case key.Matches(keyMsg, m.keys.Delete):
		if f, ok := m.Current(); ok {
			return m, func() tea.Msg {
				return ConfirmRequestMsg{Action: ActionDeleteFile, Prompt: fmt.Sprintf("Delete %s?", f.DisplayName)}
			}
		}
	case key.Matches(keyMsg, m.keys.Refresh):
		return m, func() tea.Msg { return RefreshFilesMsg{} }
	}
	return m, nil
}

// View renders the file list.
func (m FilesModel) View() string {
	borderStyle := UnfocusedBorder
	if m.focused {
		borderStyle = FocusedBorder
	}

	innerW := max(m.width-2, 5)
	innerH := max(m.height-2, 1)

	var b strings.Builder
	b.WriteString(HeaderStyle.Render("Files"))
	b.WriteString("\n")
	summary := fmt.Sprintf("  %d files, %s", len(m.listing.Files), humanize.IBytes(uint64(m.listing.TotalSize)))
	b.WriteString(SubHeaderStyle.Render(truncate(summary, innerW)))
	b.WriteString("\n")

	linesUsed := 2
	switch {
	case m.loading:
		b.WriteString(DimText.Render("  Loading..."))
		linesUsed++
	case len(m.listing.Files) == 0:
		b.WriteString(DimText.Render("  No files yet, press u to upload"))
		linesUsed++
	default:
		start := 0
		if visible := innerH - linesUsed; m.cursor >= visible {
			start = m.cursor - visible + 1
		}
		for i := start; i < len(m.listing.Files) && linesUsed < innerH; i++ {
			f := m.listing.Files[i]
			size := humanize.IBytes(uint64(f.Size))
			nameW := max(innerW-len(size)-3, 3)
			label := fmt.Sprintf("%-*s %s", nameW, truncate(f.DisplayName, nameW), size)

			var line string
			switch {
			case i == m.cursor && m.focused:
				line = SidebarCursorItem.Width(innerW).Render(label)
			case f.Name == m.active:
				line = SidebarActiveItem.Width(innerW).Render(label)
			default:
				line = SidebarItem.Width(innerW).Render(label)
			}
			b.WriteString(line)
			b.WriteString("\n")
			linesUsed++
		}
	}

	content := lipgloss.NewStyle().Width(innerW).Height(innerH).MaxHeight(innerH).Render(b.String())
	return borderStyle.Width(innerW).Height(innerH).Render(content)
}
