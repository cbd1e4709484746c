package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// MessageType represents the type of status message.
type MessageType int

const (
	MsgInfo MessageType = iota
	MsgSuccess
	MsgError
)

// StatusMsg asks the app to show a message in the status bar.
type StatusMsg struct {
	Text string
	Type MessageType
}

func statusCmd(text string, t MessageType) tea.Cmd {
	return func() tea.Msg { return StatusMsg{Text: text, Type: t} }
}

// Pane identifies the focused pane.
type Pane int

const (
	PaneFiles Pane = iota
	PaneGrid
)

// StatusBarModel is the context-aware status bar at the bottom.
type StatusBarModel struct {
	message     string
	messageType MessageType
	messageTime time.Time
	pending     string
	pendingN    int
	activePane  Pane
	editMode    bool
	busy        string
	spinner     spinner.Model
	width       int
}

// NewStatusBarModel creates a new status bar.
func NewStatusBarModel() StatusBarModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = AccentText
	return StatusBarModel{spinner: s}
}

// SetWidth sets the status bar width.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// SetMessage sets a status message.
func (m *StatusBarModel) SetMessage(msg string, t MessageType) {
	m.message = msg
	m.messageType = t
	m.messageTime = time.Now()
}

// SetPending updates the pending change count and its summary.
func (m *StatusBarModel) SetPending(count int, summary string) {
	m.pendingN = count
	m.pending = summary
}

// SetActivePane sets which pane is focused.
func (m *StatusBarModel) SetActivePane(p Pane) {
	m.activePane = p
}

// SetEditMode sets whether a cell is being edited.
func (m *StatusBarModel) SetEditMode(editing bool) {
	m.editMode = editing
}

// SetBusy shows label with a spinner while an operation runs. An empty label
// hides it.
func (m *StatusBarModel) SetBusy(label string) tea.Cmd {
	m.busy = label
	if label == "" {
		return nil
	}
	return m.spinner.Tick
}

// Busy reports whether an operation is running.
func (m StatusBarModel) Busy() bool {
	return m.busy != ""
}

// Update advances the spinner.
func (m StatusBarModel) Update(msg tea.Msg) (StatusBarModel, tea.Cmd) {
	if _, ok := msg.(spinner.TickMsg); ok && m.busy != "" {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// ClearExpiredMessage clears success messages after 3 seconds.
func (m *StatusBarModel) ClearExpiredMessage() {
	if m.messageType == MsgSuccess && time.Since(m.messageTime) > 3*time.Second {
		m.message = ""
	}
}

// View renders the status bar.
func (m StatusBarModel) View() string {
	hints := m.contextHints()

	var rightParts []string
	if m.busy != "" {
		rightParts = append(rightParts, m.spinner.View()+" "+m.busy)
	}
	if m.pendingN > 0 {
		rightParts = append(rightParts, fmt.Sprintf("Pending: %s | Ctrl+S to save", m.pending))
	}
	right := strings.Join(rightParts, " | ")

	if m.message != "" {
		var msgStyle lipgloss.Style
		switch m.messageType {
		case MsgError:
			msgStyle = StatusErrorStyle
		case MsgSuccess:
			msgStyle = StatusSuccessStyle
		default:
			msgStyle = StatusBarStyle
		}
		hints = msgStyle.Render(m.message)
	}

	w := max(m.width, 20)
	gap := max(w-lipgloss.Width(hints)-lipgloss.Width(right)-2, 1)

	line := hints + strings.Repeat(" ", gap) + right
	return StatusBarStyle.Width(w).Render(line)
}

func (m StatusBarModel) contextHints() string {
	if m.editMode {
		return "Type to edit | Enter/Tab Commit | Esc Cancel"
	}

	switch m.activePane {
	case PaneFiles:
		return "j/k Navigate | Enter Open | u Upload | r Rename | d Delete | Tab Switch pane"
	case PaneGrid:
		return "e Edit | / Search | s Sort | space Select | ? Help | Tab Switch pane"
	default:
		return "Tab Switch pane | Ctrl+C Quit"
	}
}
